package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/nhle/puttnotify/internal/api"
	"github.com/nhle/puttnotify/internal/credential"
	"github.com/nhle/puttnotify/internal/log"
	"github.com/nhle/puttnotify/internal/model"
	"github.com/nhle/puttnotify/internal/notify"
	"github.com/nhle/puttnotify/internal/session"
	"github.com/nhle/puttnotify/internal/store"
)

var errSignedOut = errors.New("not signed in, run `puttnotify login` first")

// env is the set of components shared by every command.
type env struct {
	cfg     *model.AppConfig
	session *session.Store
	client  *api.Client
	db      store.Store
	inbox   *notify.Store
	closers []func()
}

// newEnv loads the config, installs the logger and opens the stores.
// console mirrors log records to stderr.
func newEnv(console bool) (*env, error) {
	cfg, errConfig := model.LoadConfig(cfgFile)
	if errConfig != nil {
		return nil, errConfig
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logClose, errLog := log.Setup(log.Options{
		Level:   log.Level(cfg.Log.Level),
		File:    cfg.Log.File,
		Console: console,
	})
	if errLog != nil {
		return nil, errLog
	}

	e := &env{cfg: cfg, closers: []func(){logClose}}

	vault, errVault := credential.Open(model.ConfigDir())
	if errVault != nil {
		e.Close()
		return nil, errVault
	}

	e.session = session.New(vault)
	e.session.Load()

	db, errDB := store.NewSQLiteStore(cfg.DB.Path)
	if errDB != nil {
		e.Close()
		return nil, fmt.Errorf("opening cache: %w", errDB)
	}
	e.db = db
	e.closers = append(e.closers, func() { log.Closer(db) })

	e.client = api.NewClient(cfg.API.BaseURL, e.session,
		api.WithTimeout(cfg.API.Timeout()),
		api.WithMaxRetries(cfg.API.MaxRetries))

	e.inbox = notify.NewStore(e.client, e.session, notify.WithCache(e.db))

	return e, nil
}

// Close releases everything newEnv opened, newest first.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// requireSession fails when nobody is signed in.
func (e *env) requireSession() (model.Credential, error) {
	cred, ok := e.session.Credential()
	if !ok {
		return model.Credential{}, errSignedOut
	}
	return cred, nil
}

// streamURL returns the live notification endpoint.
func (e *env) streamURL() string {
	return e.cfg.API.BaseURL + e.cfg.Stream.Path
}

// checkAuth clears the stored credential when the server rejected it.
func (e *env) checkAuth(err error) error {
	if err == nil || !api.IsAuthError(err) {
		return err
	}

	if errClear := e.session.Clear(); errClear != nil {
		slog.Error("Failed to clear session", log.ErrAttr(errClear))
	}

	return errors.New("session expired, run `puttnotify login` to sign in again")
}

// fetch loads the first page into the inbox.
func (e *env) fetch(ctx context.Context) error {
	return e.checkAuth(e.inbox.FetchAll(ctx, e.cfg.Display.PageSize, 0))
}

// checkConnection asks the API at baseURL for the unread count with the
// current session.
func (e *env) checkConnection(ctx context.Context, baseURL string) error {
	playerID, ok := e.session.PlayerID()
	if !ok {
		return errSignedOut
	}

	client := api.NewClient(baseURL, e.session, api.WithTimeout(e.cfg.API.Timeout()), api.WithMaxRetries(0))
	_, err := client.UnreadCount(ctx, playerID)
	return err
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid notification id %q", arg)
	}
	return id, nil
}
