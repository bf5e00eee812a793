package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/nhle/puttnotify/internal/api"
	"github.com/nhle/puttnotify/internal/app"
	"github.com/nhle/puttnotify/internal/credential"
	"github.com/nhle/puttnotify/internal/desktop"
	"github.com/nhle/puttnotify/internal/model"
	"github.com/nhle/puttnotify/internal/notify"
	"github.com/nhle/puttnotify/internal/session"
	"github.com/nhle/puttnotify/internal/store"
	"github.com/nhle/puttnotify/internal/testutil"
	"github.com/nhle/puttnotify/internal/ui/command"
	"github.com/nhle/puttnotify/internal/ui/inbox"
)

type backend struct {
	mu           sync.Mutex
	requests     []string
	rejectWrites bool
}

func (b *backend) handler(t *testing.T) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, r.Method+" "+r.URL.Path)
		reject := b.rejectWrites && r.Method != http.MethodGet
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")

		if reject {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Token expired"})
			return
		}

		if r.Method == http.MethodGet && r.URL.Path == "/player/7/notifications" {
			_ = json.NewEncoder(w).Encode(model.NotificationPage{
				Notifications: []model.Notification{
					{ID: 2, Kind: model.KindDuelChallenge, Title: "Duel from Bob", Message: "Bob challenged you"},
					{ID: 1, Kind: model.KindAchievement, Title: "First putt", Read: true},
				},
				UnreadCount: 1,
			})
			return
		}

		_, _ = w.Write([]byte(`{"success":true}`))
	})
}

func (b *backend) RejectWrites() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rejectWrites = true
}

func (b *backend) Requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string(nil), b.requests...)
}

type fixture struct {
	backend *backend
	session *session.Store
	inbox   *notify.Store
	db      *store.SQLiteStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	b := &backend{}
	srv := httptest.NewServer(b.handler(t))
	t.Cleanup(srv.Close)

	sess := session.New(credential.NewMemory())
	require.NoError(t, sess.Set("token", &model.Profile{PlayerID: 7, Name: "Ann"}))

	client := api.NewClient(srv.URL, sess)
	db := testutil.NewTestStore(t)

	return fixture{
		backend: b,
		session: sess,
		inbox:   notify.NewStore(client, sess, notify.WithCache(db)),
		db:      db,
	}
}

func sized(t *testing.T, m app.Model) app.Model {
	t.Helper()

	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(app.Model)
}

func TestOpeningNotificationMarksItRead(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.inbox.FetchAll(context.Background(), 20, 0))

	m := sized(t, app.New(app.Options{Session: f.session, Inbox: f.inbox}))

	n := f.inbox.Snapshot().Notifications[0]
	next, cmd := m.Update(inbox.OpenMsg{Notification: n})
	require.NotNil(t, cmd)

	next, _ = next.Update(cmd())
	m = next.(app.Model)

	require.Contains(t, f.backend.Requests(), "POST /player/7/notifications/2/read")
	require.Equal(t, 0, f.inbox.Snapshot().UnreadCount)
	require.Contains(t, m.View(), "Bob challenged you")
}

func TestAuthErrorSignsOut(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.inbox.FetchAll(context.Background(), 20, 0))
	f.backend.RejectWrites()

	m := sized(t, app.New(app.Options{Session: f.session, Inbox: f.inbox}))

	_, cmd := m.Update(inbox.DeleteMsg{ID: 2})
	require.NotNil(t, cmd)

	next, quit := m.Update(cmd())
	require.NotNil(t, quit)
	require.Equal(t, tea.QuitMsg{}, quit())
	require.Contains(t, next.(app.Model).QuitMessage(), "Session expired")

	_, ok := f.session.Token()
	require.False(t, ok)
}

func TestDesktopCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	db := testutil.NewTestStore(t)
	bridge := desktop.NewBridge(db, nil)

	m := sized(t, app.New(app.Options{Session: f.session, Inbox: f.inbox, Bridge: bridge}))

	next, _ := m.Update(command.CommandMsg(command.DesktopOff))
	require.Equal(t, desktop.PermissionDenied, bridge.Permission())

	_, _ = next.Update(command.CommandMsg(command.DesktopOn))
	require.Equal(t, desktop.PermissionGranted, bridge.Permission())
}

func TestHeaderShowsUnreadBadge(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.inbox.FetchAll(context.Background(), 20, 0))

	m := sized(t, app.New(app.Options{Session: f.session, Inbox: f.inbox}))
	view := m.View()

	require.Contains(t, view, "[1 new]")
	require.Contains(t, view, "Ann")
}

type fakeStream struct {
	mu          sync.Mutex
	connects    int
	disconnects int
}

func (s *fakeStream) Connect(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
}

func (s *fakeStream) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects++
}

func (s *fakeStream) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects, s.disconnects
}

func TestRuntimeFollowsSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ch := &fakeStream{}

	rt := app.NewRuntime(f.session, f.inbox, ch, 20)
	rt.Start(context.Background())
	t.Cleanup(rt.Stop)

	connects, _ := ch.counts()
	require.Equal(t, 1, connects)

	require.NoError(t, f.session.Clear())
	_, disconnects := ch.counts()
	require.Equal(t, 1, disconnects)
	require.Empty(t, f.inbox.Snapshot().Notifications)

	require.NoError(t, f.session.Set("token", &model.Profile{PlayerID: 7}))
	connects, _ = ch.counts()
	require.Equal(t, 2, connects)

	require.Eventually(t, func() bool {
		return len(f.inbox.Snapshot().Notifications) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestLogoutCommandClearsCachedInbox(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)

	rt := app.NewRuntime(f.session, f.inbox, &fakeStream{}, 20)
	rt.Start(ctx)
	t.Cleanup(rt.Stop)

	require.NoError(t, f.inbox.FetchAll(ctx, 20, 0))
	_, err := f.db.LoadInbox(ctx, 7)
	require.NoError(t, err)

	m := sized(t, app.New(app.Options{Session: f.session, Inbox: f.inbox, Runtime: rt}))

	next, quit := m.Update(command.CommandMsg(command.Logout))
	require.NotNil(t, quit)
	require.Equal(t, "Signed out.", next.(app.Model).QuitMessage())

	require.Empty(t, f.inbox.Snapshot().Notifications)
	_, err = f.db.LoadInbox(ctx, 7)
	require.ErrorIs(t, err, store.ErrNotFound)
}
