package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nhle/puttnotify/internal/api"
	"github.com/nhle/puttnotify/internal/model"
	"github.com/nhle/puttnotify/internal/notify"
	"github.com/nhle/puttnotify/internal/store"
	"github.com/nhle/puttnotify/internal/testutil"
)

func TestParseID(t *testing.T) {
	t.Parallel()

	id, err := parseID("42")
	require.NoError(t, err)
	require.Equal(t, int64(42), id)

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := parseID(bad)
		require.Error(t, err, bad)
	}
}

func TestRenderTable(t *testing.T) {
	t.Parallel()

	state := notify.State{
		Notifications: []model.Notification{
			{ID: 2, Kind: model.KindDuelChallenge, Title: "Duel from Bob", CreatedAt: time.Now().Add(-time.Hour)},
			{ID: 1, Kind: model.KindAchievement, Title: "First putt", Read: true},
		},
		UnreadCount: 1,
	}

	all := renderTable(state, false)
	require.Contains(t, all, "Duel from Bob")
	require.Contains(t, all, "First putt")
	require.Contains(t, all, "duel")

	unread := renderTable(state, true)
	require.Contains(t, unread, "Duel from Bob")
	require.NotContains(t, unread, "First putt")
}

func TestPrinter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printer(&buf).Deliver(model.Notification{
		Kind:    model.KindLeagueInvitation,
		Title:   "Sunday League",
		Message: "Ann invited you",
	})

	require.Contains(t, buf.String(), "league")
	require.Contains(t, buf.String(), "Sunday League: Ann invited you")
}

type signedIn int64

func (signedIn) Token() (string, bool) { return "token", true }

func (p signedIn) PlayerID() (int64, bool) { return int64(p), true }

func TestLoadPageFallsBackToCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := testutil.NewTestStore(t)
	require.NoError(t, db.SaveInbox(ctx, store.Inbox{
		PlayerID:      3,
		Notifications: []model.Notification{{ID: 8, Kind: model.KindFriendRequest, Title: "Cal wants to be friends"}},
		UnreadCount:   1,
		SyncedAt:      time.Now(),
	}))

	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	client := api.NewClient(baseURL, signedIn(3), api.WithMaxRetries(0))
	inbox := notify.NewStore(client, signedIn(3), notify.WithCache(db))

	cached, err := loadPage(ctx, inbox, 20, 0, false)
	require.NoError(t, err)
	require.True(t, cached)

	state := inbox.Snapshot()
	require.Len(t, state.Notifications, 1)
	require.Equal(t, int64(8), state.Notifications[0].ID)
	require.Equal(t, 1, state.UnreadCount)
}

func TestLoadPageKeepsServerErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	client := api.NewClient(server.URL, signedIn(3), api.WithMaxRetries(0))
	inbox := notify.NewStore(client, signedIn(3), notify.WithCache(testutil.NewTestStore(t)))

	cached, err := loadPage(context.Background(), inbox, 20, 0, false)
	require.True(t, api.IsAuthError(err))
	require.False(t, cached)
}
