package stream_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/nhle/puttnotify/internal/model"
	"github.com/nhle/puttnotify/internal/notify"
	"github.com/nhle/puttnotify/internal/stream"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type signedIn struct {
	on atomic.Bool
}

func newSignedIn() *signedIn {
	s := &signedIn{}
	s.on.Store(true)
	return s
}

func (s *signedIn) Token() (string, bool) {
	if s.on.Load() {
		return "tok-1", true
	}
	return "", false
}

func (s *signedIn) PlayerID() (int64, bool) {
	return 42, s.on.Load()
}

type recorder struct {
	mu  sync.Mutex
	ids []int64
}

func (r *recorder) Deliver(n model.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ids = append(r.ids, n.ID)
}

func (r *recorder) IDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]int64(nil), r.ids...)
}

func notificationEvent(id int64) string {
	return fmt.Sprintf("data: {\"type\":\"notification\",\"notification\":{\"id\":%d,\"type\":\"duel_challenge\",\"title\":\"Duel\",\"message\":\"m\",\"read_status\":false}}\n\n", id)
}

// sseServer serves events on every connection and then holds the
// connection open until the client goes away.
func sseServer(t *testing.T, attempts *atomic.Int32, check func(*http.Request), events ...string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		if check != nil {
			check(r)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		for _, event := range events {
			_, _ = fmt.Fprint(w, event)
			flusher.Flush()
		}

		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)

	return server
}

func failingServer(t *testing.T, attempts *atomic.Int32) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	return server
}

func TestPushesReachSinksInOrder(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	server := sseServer(t, &attempts, func(r *http.Request) {
		require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		require.Empty(t, r.URL.Query().Get("token"))
	},
		"data: {\"type\":\"connected\",\"playerId\":42}\n\n",
		notificationEvent(1),
		":heartbeat\n\n",
		"data: not json\n\n",
		"data: {\"type\":\"future_kind\"}\n\n",
		notificationEvent(2),
	)

	tokens := newSignedIn()
	inbox := notify.NewStore(nil, tokens)
	rec := &recorder{}

	ch := stream.New(server.URL+"/api/notifications/stream", tokens,
		[]stream.Sink{stream.SinkFunc(inbox.Push), rec},
		stream.WithClock(clock.NewMock()),
	)
	ch.Connect(context.Background())
	t.Cleanup(ch.Disconnect)

	require.Eventually(t, func() bool {
		return len(rec.IDs()) == 2
	}, waitFor, tick)

	require.Equal(t, []int64{1, 2}, rec.IDs())
	require.Equal(t, stream.Connected, ch.State())

	state := inbox.Snapshot()
	require.Len(t, state.Notifications, 2)
	require.Equal(t, int64(2), state.Notifications[0].ID)
	require.Equal(t, int64(1), state.Notifications[1].ID)
	require.Equal(t, 2, state.UnreadCount)
}

func TestTokenInQuery(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	server := sseServer(t, &attempts, func(r *http.Request) {
		require.Equal(t, "tok-1", r.URL.Query().Get("token"))
		require.Empty(t, r.Header.Get("Authorization"))
	})

	ch := stream.New(server.URL, newSignedIn(), nil,
		stream.WithClock(clock.NewMock()),
		stream.WithTokenInQuery(true),
	)
	ch.Connect(context.Background())
	t.Cleanup(ch.Disconnect)

	require.Eventually(t, func() bool {
		return ch.State() == stream.Connected
	}, waitFor, tick)
	require.Equal(t, int32(1), attempts.Load())
}

func TestReconnectAfterFixedDelay(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	server := failingServer(t, &attempts)
	mock := clock.NewMock()

	ch := stream.New(server.URL, newSignedIn(), nil, stream.WithClock(mock))
	ch.Connect(context.Background())
	t.Cleanup(ch.Disconnect)

	require.Eventually(t, func() bool {
		return attempts.Load() == 1 && ch.State() == stream.Disconnected
	}, waitFor, tick)

	mock.Add(stream.DefaultReconnectDelay - time.Second)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), attempts.Load())

	mock.Add(time.Second)
	require.Eventually(t, func() bool {
		return attempts.Load() == 2 && ch.State() == stream.Disconnected
	}, waitFor, tick)
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	server := failingServer(t, &attempts)
	mock := clock.NewMock()

	var (
		mu     sync.Mutex
		states []stream.State
	)
	ch := stream.New(server.URL, newSignedIn(), nil,
		stream.WithClock(mock),
		stream.WithOnState(func(s stream.State) {
			mu.Lock()
			defer mu.Unlock()
			states = append(states, s)
		}),
	)
	ch.Connect(context.Background())

	require.Eventually(t, func() bool {
		return attempts.Load() == 1 && ch.State() == stream.Disconnected
	}, waitFor, tick)

	ch.Disconnect()
	mock.Add(10 * stream.DefaultReconnectDelay)
	time.Sleep(50 * time.Millisecond)

	require.Equal(t, int32(1), attempts.Load())
	require.Equal(t, stream.Disconnected, ch.State())

	mu.Lock()
	defer mu.Unlock()
	require.ElementsMatch(t, []stream.State{stream.Connecting, stream.Disconnected}, states)
}

func TestNoReconnectAfterSignOut(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	server := failingServer(t, &attempts)
	mock := clock.NewMock()
	tokens := newSignedIn()

	ch := stream.New(server.URL, tokens, nil, stream.WithClock(mock))
	ch.Connect(context.Background())
	t.Cleanup(ch.Disconnect)

	require.Eventually(t, func() bool {
		return attempts.Load() == 1 && ch.State() == stream.Disconnected
	}, waitFor, tick)

	// Signed out before the retry fires.
	tokens.on.Store(false)
	mock.Add(stream.DefaultReconnectDelay)
	time.Sleep(50 * time.Millisecond)

	require.Equal(t, int32(1), attempts.Load())
	require.Equal(t, stream.Disconnected, ch.State())
}

func TestConnectWithoutTokenStaysDisconnected(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	server := failingServer(t, &attempts)
	tokens := newSignedIn()
	tokens.on.Store(false)

	ch := stream.New(server.URL, tokens, nil, stream.WithClock(clock.NewMock()))
	ch.Connect(context.Background())

	require.Equal(t, stream.Disconnected, ch.State())
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(0), attempts.Load())
}

func TestReconnectAfterServerClose(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, notificationEvent(int64(n)))
		w.(http.Flusher).Flush()

		if n > 1 {
			<-r.Context().Done()
		}
	}))
	t.Cleanup(server.Close)

	mock := clock.NewMock()
	rec := &recorder{}
	ch := stream.New(server.URL, newSignedIn(), []stream.Sink{rec},
		stream.WithClock(mock),
		stream.WithReconnectDelay(time.Second),
	)
	ch.Connect(context.Background())
	t.Cleanup(ch.Disconnect)

	require.Eventually(t, func() bool {
		return len(rec.IDs()) == 1 && ch.State() == stream.Disconnected
	}, waitFor, tick)

	mock.Add(time.Second)

	require.Eventually(t, func() bool {
		return ch.State() == stream.Connected && len(rec.IDs()) == 2
	}, waitFor, tick)
	require.Equal(t, []int64{1, 2}, rec.IDs())
}

func TestConnectReplacesExistingConnection(t *testing.T) {
	t.Parallel()

	var (
		attempts atomic.Int32
		open     atomic.Int32
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		open.Add(1)
		defer open.Add(-1)

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)

	ch := stream.New(server.URL, newSignedIn(), nil, stream.WithClock(clock.NewMock()))
	t.Cleanup(ch.Disconnect)

	ch.Connect(context.Background())
	require.Eventually(t, func() bool { return ch.State() == stream.Connected }, waitFor, tick)

	ch.Connect(context.Background())
	require.Eventually(t, func() bool {
		return attempts.Load() == 2 && open.Load() == 1 && ch.State() == stream.Connected
	}, waitFor, tick)
}
