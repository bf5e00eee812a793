package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nhle/puttnotify/internal/model"
	"github.com/nhle/puttnotify/internal/store"
	"github.com/nhle/puttnotify/internal/testutil"
)

func TestInboxRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := testutil.NewTestStore(t)

	older := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	err := db.SaveInbox(ctx, store.Inbox{
		PlayerID: 42,
		Notifications: []model.Notification{
			{ID: 1, Kind: model.KindAchievement, Title: "Streak", Message: "10 in a row", Read: true, CreatedAt: older},
			{
				ID: 2, Kind: model.KindDuelChallenge, Title: "Duel", Message: "Bob challenged you",
				CreatedAt: newer, LinkPath: "/duels/7", Data: json.RawMessage(`{"duel_id":7}`),
			},
		},
		UnreadCount: 1,
		SyncedAt:    newer,
	})
	require.NoError(t, err)

	inbox, err := db.LoadInbox(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, 1, inbox.UnreadCount)
	require.Len(t, inbox.Notifications, 2)

	first := inbox.Notifications[0]
	require.Equal(t, int64(2), first.ID)
	require.False(t, first.Read)
	require.Equal(t, "/duels/7", first.LinkPath)
	require.JSONEq(t, `{"duel_id":7}`, string(first.Data))
	require.True(t, newer.Equal(first.CreatedAt))

	second := inbox.Notifications[1]
	require.Equal(t, int64(1), second.ID)
	require.True(t, second.Read)
	require.Nil(t, second.Data)
}

func TestSaveInboxReplaces(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := testutil.NewTestStore(t)
	now := time.Now()

	require.NoError(t, db.SaveInbox(ctx, store.Inbox{
		PlayerID:      1,
		Notifications: []model.Notification{{ID: 1, CreatedAt: now}, {ID: 2, CreatedAt: now}},
		UnreadCount:   2,
	}))
	require.NoError(t, db.SaveInbox(ctx, store.Inbox{
		PlayerID:      1,
		Notifications: []model.Notification{{ID: 3, CreatedAt: now}},
		UnreadCount:   0,
	}))

	inbox, err := db.LoadInbox(ctx, 1)
	require.NoError(t, err)
	require.Len(t, inbox.Notifications, 1)
	require.Equal(t, int64(3), inbox.Notifications[0].ID)
	require.Equal(t, 0, inbox.UnreadCount)
}

func TestInboxIsPerPlayer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := testutil.NewTestStore(t)
	now := time.Now()

	require.NoError(t, db.SaveInbox(ctx, store.Inbox{
		PlayerID:      1,
		Notifications: []model.Notification{{ID: 1, CreatedAt: now}},
		UnreadCount:   1,
	}))
	require.NoError(t, db.SaveInbox(ctx, store.Inbox{
		PlayerID:      2,
		Notifications: []model.Notification{{ID: 1, CreatedAt: now}},
		UnreadCount:   1,
	}))

	require.NoError(t, db.DeleteInbox(ctx, 1))

	_, err := db.LoadInbox(ctx, 1)
	require.ErrorIs(t, err, store.ErrNotFound)

	inbox, err := db.LoadInbox(ctx, 2)
	require.NoError(t, err)
	require.Len(t, inbox.Notifications, 1)
}

func TestLoadInboxMissing(t *testing.T) {
	t.Parallel()

	_, err := testutil.NewTestStore(t).LoadInbox(context.Background(), 99)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSettings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := testutil.NewTestStore(t)

	_, err := db.GetSetting(ctx, "desktop.permission")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, db.SetSetting(ctx, "desktop.permission", "granted"))
	require.NoError(t, db.SetSetting(ctx, "desktop.permission", "denied"))

	value, err := db.GetSetting(ctx, "desktop.permission")
	require.NoError(t, err)
	require.Equal(t, "denied", value)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/cache.db"

	first, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, first.SetSetting(context.Background(), "k", "v"))
	require.NoError(t, first.Close())

	second, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	value, err := second.GetSetting(context.Background(), "k")
	require.NoError(t, err)
	require.Equal(t, "v", value)
}
