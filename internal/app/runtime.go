package app

import (
	"context"
	"log/slog"
	gosync "sync"

	"github.com/nhle/puttnotify/internal/log"
	"github.com/nhle/puttnotify/internal/notify"
	"github.com/nhle/puttnotify/internal/session"
)

// Stream is the live delivery channel as seen by the runtime.
type Stream interface {
	Connect(ctx context.Context)
	Disconnect()
}

// Runtime keeps the live channel and the inbox in step with the session:
// signing in connects and loads the inbox, signing out disconnects and
// forgets it, cache included.
type Runtime struct {
	session  *session.Store
	inbox    *notify.Store
	stream   Stream
	pageSize int

	mu     gosync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRuntime creates a Runtime. Nothing happens until Start.
func NewRuntime(s *session.Store, inbox *notify.Store, stream Stream, pageSize int) *Runtime {
	if pageSize <= 0 {
		pageSize = notify.DefaultPageSize
	}

	return &Runtime{
		session:  s,
		inbox:    inbox,
		stream:   stream,
		pageSize: pageSize,
	}
}

// Start subscribes to session changes and, when already signed in, opens
// the channel right away. The channel stays down for as long as nobody is
// signed in.
func (r *Runtime) Start(ctx context.Context) {
	r.mu.Lock()
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	r.session.Subscribe(r.onSessionChange)

	if _, ok := r.session.Token(); ok {
		r.stream.Connect(r.context())
	}
}

// Stop tears the channel down.
func (r *Runtime) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	r.stream.Disconnect()
}

func (r *Runtime) context() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

func (r *Runtime) onSessionChange(change session.Change) {
	ctx := r.context()
	if ctx.Err() != nil {
		return
	}

	if !change.Authenticated {
		slog.Info("Signed out, closing notification stream")
		r.stream.Disconnect()
		if err := r.inbox.Forget(ctx, change.Credential.PlayerID); err != nil {
			slog.Warn("Failed to clear cached inbox", log.ErrAttr(err))
		}
		return
	}

	slog.Info("Signed in, opening notification stream", slog.Int64("player_id", change.Credential.PlayerID))
	r.stream.Connect(ctx)

	go func() {
		if err := r.inbox.FetchAll(ctx, r.pageSize, 0); err != nil {
			slog.Warn("Initial notification fetch failed", log.ErrAttr(err))
		}
	}()
}

// Reconnect reopens the channel when signed in.
func (r *Runtime) Reconnect() {
	if _, ok := r.session.Token(); ok {
		r.stream.Connect(r.context())
	}
}
