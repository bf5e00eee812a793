package inbox

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/puttnotify/internal/keys"
	"github.com/nhle/puttnotify/internal/model"
	"github.com/nhle/puttnotify/internal/theme"
)

// OpenMsg is sent when the user selects a notification to view.
type OpenMsg struct {
	Notification model.Notification
}

// MarkReadMsg asks the parent to mark one notification as read.
type MarkReadMsg struct {
	ID int64
}

// MarkAllReadMsg asks the parent to mark every notification as read.
type MarkAllReadMsg struct{}

// DeleteMsg asks the parent to delete one notification.
type DeleteMsg struct {
	ID int64
}

// Model is the notification list view component.
type Model struct {
	list    list.Model
	keys    *keys.KeyMap
	unread  int
	loading bool
	width   int
	height  int
}

// New creates a new inbox list model.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetStatusBarItemName("notification", "notifications")
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		keys:   k,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// SetNotifications replaces the listed notifications, keeping the cursor on
// the previously selected notification when it is still present.
func (m *Model) SetNotifications(ns []model.Notification, unread int, loading bool) tea.Cmd {
	m.unread = unread
	m.loading = loading

	prev, hadSelection := m.Selected()

	items := make([]list.Item, len(ns))
	selected := -1
	for i, n := range ns {
		items[i] = Item{Notification: n}
		if hadSelection && n.ID == prev.ID {
			selected = i
		}
	}

	cmd := m.list.SetItems(items)
	if selected >= 0 {
		m.list.Select(selected)
	}
	m.list.Title = fmt.Sprintf("Notifications (%d unread)", unread)

	return cmd
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	item, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return item.Notification, true
}

// Len returns the number of listed notifications.
func (m Model) Len() int {
	return len(m.list.Items())
}

// Update handles messages for the inbox view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if cmd, handled := m.handleKeys(msg); handled {
			return m, cmd
		}
	}

	// Navigation keys (up/down/pgup/pgdn) go to the list.
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKeys(msg tea.KeyMsg) (tea.Cmd, bool) {
	if key.Matches(msg, m.keys.MarkAllRead) {
		return func() tea.Msg { return MarkAllReadMsg{} }, true
	}

	n, ok := m.Selected()
	if !ok {
		return nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Select):
		return func() tea.Msg { return OpenMsg{Notification: n} }, true

	case key.Matches(msg, m.keys.MarkRead):
		if n.Read {
			return nil, true
		}
		return func() tea.Msg { return MarkReadMsg{ID: n.ID} }, true

	case key.Matches(msg, m.keys.Delete):
		return func() tea.Msg { return DeleteMsg{ID: n.ID} }, true
	}

	return nil, false
}

// View renders the inbox view.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}

	return m.list.View()
}

// renderEmptyState shows guidance text when the inbox is empty.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.loading {
		return style.Render("Loading notifications...")
	}

	return style.Render("No notifications yet.\n\nNew ones show up here as they arrive.")
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}
