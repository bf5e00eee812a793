package detail_test

import (
	"encoding/json"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/nhle/puttnotify/internal/keys"
	"github.com/nhle/puttnotify/internal/model"
	"github.com/nhle/puttnotify/internal/ui/detail"
	"github.com/nhle/puttnotify/internal/ui/inbox"
)

func TestDetailRendersNotification(t *testing.T) {
	t.Parallel()

	m := detail.New(keys.DefaultKeyMap(), 100, 30)
	require.Contains(t, m.View(), "No notification selected")

	m.SetNotification(model.Notification{
		ID:       4,
		Kind:     model.KindDuelChallenge,
		Title:    "Duel from Bob",
		Message:  "Bob challenged you to a 10 putt duel.",
		LinkPath: "/duels/12",
		Data:     json.RawMessage(`{"duelId":12}`),
	})

	view := m.View()
	require.Contains(t, view, "Duel from Bob")
	require.Contains(t, view, "/duels/12")
	require.Contains(t, view, "10 putt duel")
	require.Contains(t, view, `"duelId": 12`)

	n, ok := m.Current()
	require.True(t, ok)
	require.Equal(t, int64(4), n.ID)
}

func TestDetailKeys(t *testing.T) {
	t.Parallel()

	m := detail.New(keys.DefaultKeyMap(), 100, 30)
	m.SetNotification(model.Notification{ID: 4, Title: "x"})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.Equal(t, detail.BackMsg{}, cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	require.Equal(t, inbox.DeleteMsg{ID: 4}, cmd())
}
