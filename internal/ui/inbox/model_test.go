package inbox_test

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/nhle/puttnotify/internal/keys"
	"github.com/nhle/puttnotify/internal/model"
	"github.com/nhle/puttnotify/internal/ui/inbox"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sample() []model.Notification {
	return []model.Notification{
		{ID: 3, Kind: model.KindDuelChallenge, Title: "Duel from Bob"},
		{ID: 2, Kind: model.KindAchievement, Title: "Ten in a row", Read: true},
		{ID: 1, Kind: model.KindLeagueInvitation, Title: "Join Sunday League"},
	}
}

func TestSelectEmitsOpen(t *testing.T) {
	t.Parallel()

	m := inbox.New(keys.DefaultKeyMap(), 80, 20)
	m.SetNotifications(sample(), 2, false)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	msg, ok := cmd().(inbox.OpenMsg)
	require.True(t, ok)
	require.Equal(t, int64(3), msg.Notification.ID)
}

func TestMarkReadSkipsReadNotification(t *testing.T) {
	t.Parallel()

	m := inbox.New(keys.DefaultKeyMap(), 80, 20)
	m.SetNotifications(sample(), 2, false)

	_, cmd := m.Update(runes("r"))
	require.NotNil(t, cmd)
	require.Equal(t, inbox.MarkReadMsg{ID: 3}, cmd())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	n, ok := m.Selected()
	require.True(t, ok)
	require.Equal(t, int64(2), n.ID)

	_, cmd = m.Update(runes("r"))
	require.Nil(t, cmd)
}

func TestDeleteAndMarkAll(t *testing.T) {
	t.Parallel()

	m := inbox.New(keys.DefaultKeyMap(), 80, 20)
	m.SetNotifications(sample(), 2, false)

	_, cmd := m.Update(runes("d"))
	require.Equal(t, inbox.DeleteMsg{ID: 3}, cmd())

	_, cmd = m.Update(runes("A"))
	require.Equal(t, inbox.MarkAllReadMsg{}, cmd())
}

func TestSelectionFollowsNotification(t *testing.T) {
	t.Parallel()

	m := inbox.New(keys.DefaultKeyMap(), 80, 20)
	m.SetNotifications(sample(), 2, false)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})

	// A push lands on top; the cursor stays on the same notification.
	pushed := append([]model.Notification{{ID: 9, Title: "New"}}, sample()...)
	m.SetNotifications(pushed, 3, false)

	n, ok := m.Selected()
	require.True(t, ok)
	require.Equal(t, int64(2), n.ID)
	require.Equal(t, 4, m.Len())
}

func TestEmptyState(t *testing.T) {
	t.Parallel()

	m := inbox.New(keys.DefaultKeyMap(), 80, 20)
	m.SetNotifications(nil, 0, true)
	require.Contains(t, m.View(), "Loading notifications")

	m.SetNotifications(nil, 0, false)
	require.Contains(t, m.View(), "No notifications yet")

	_, ok := m.Selected()
	require.False(t, ok)
}

func TestItemDescription(t *testing.T) {
	t.Parallel()

	item := inbox.Item{Notification: model.Notification{
		Kind:      model.KindMatchResult,
		CreatedAt: time.Now().Add(-3 * time.Hour),
	}}
	require.Equal(t, "result | 3 hours ago", item.Description())
	require.Empty(t, inbox.Age(time.Time{}))
}
