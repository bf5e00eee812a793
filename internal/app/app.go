package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/puttnotify/internal/api"
	"github.com/nhle/puttnotify/internal/desktop"
	"github.com/nhle/puttnotify/internal/keys"
	"github.com/nhle/puttnotify/internal/log"
	"github.com/nhle/puttnotify/internal/model"
	"github.com/nhle/puttnotify/internal/notify"
	"github.com/nhle/puttnotify/internal/session"
	"github.com/nhle/puttnotify/internal/stream"
	appsync "github.com/nhle/puttnotify/internal/sync"
	"github.com/nhle/puttnotify/internal/theme"
	"github.com/nhle/puttnotify/internal/ui"
	"github.com/nhle/puttnotify/internal/ui/command"
	configview "github.com/nhle/puttnotify/internal/ui/config"
	"github.com/nhle/puttnotify/internal/ui/detail"
	helpview "github.com/nhle/puttnotify/internal/ui/help"
	"github.com/nhle/puttnotify/internal/ui/inbox"
)

// toastDuration is how long a pushed notification stays on screen.
const toastDuration = 5 * time.Second

// sessionExpired is shown when the server rejects the stored credential.
const sessionExpired = "Session expired. Run `puttnotify login` to sign in again."

// actionDoneMsg reports the outcome of a store call started by the UI.
type actionDoneMsg struct {
	err error
}

// toastExpiredMsg hides the toast it refers to.
type toastExpiredMsg struct {
	seq int
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewHelp
	ViewCommand
	ViewConfig
)

// Options holds the components the root model drives.
type Options struct {
	Session    *session.Store
	Inbox      *notify.Store
	Runtime    *Runtime
	Reconciler *appsync.Reconciler
	Bridge     *desktop.Bridge
	Tray       *desktop.Tray
	States     *StateFeed
	PageSize   int

	// Config enables the settings view, saved to ConfigPath.
	Config     *model.AppConfig
	ConfigPath string
	Checker    configview.Checker
}

// Model is the root Bubble Tea model that manages view routing, layout and
// the notification components.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	inboxView    inbox.Model
	detail       detail.Model
	helpView     helpview.Model
	commandView  command.Model
	configView   configview.Model
	opts         Options
	state        notify.State
	live         stream.State
	toast        *desktop.Toast
	toastSeq     int
	lastSync     time.Time
	ready        bool
	quitMessage  string
}

// New creates a new root application model.
func New(opts Options) Model {
	km := keys.DefaultKeyMap()
	if opts.PageSize <= 0 {
		opts.PageSize = notify.DefaultPageSize
	}

	var cfg model.AppConfig
	if opts.Config != nil {
		cfg = *opts.Config
	}

	state := opts.Inbox.Snapshot()
	inboxView := inbox.New(km, 80, 22)
	inboxView.SetNotifications(state.Notifications, state.UnreadCount, state.Loading)

	return Model{
		currentView: ViewList,
		keys:        km,
		inboxView:   inboxView,
		detail:      detail.New(km, 80, 22),
		helpView:    helpview.New(km, 80, 22),
		commandView: command.New(80, 22),
		configView:  configview.New(cfg, opts.ConfigPath, opts.Checker, 80, 22),
		opts:        opts,
		state:       state,
	}
}

// QuitMessage returns the message to print after the program exits.
func (m Model) QuitMessage() string {
	return m.quitMessage
}

// Init primes the inbox from the cache, fetches the first page and starts
// listening to every background source.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.loadInbox(),
		waitForChanges(m.opts.Inbox),
		waitForToast(m.opts.Tray),
	}
	if m.opts.States != nil {
		cmds = append(cmds, m.opts.States.Wait())
	}
	if m.opts.Reconciler != nil {
		cmds = append(cmds, m.opts.Reconciler.Start())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.inboxView.SetSize(contentWidth, contentHeight)
		m.detail.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		m.configView.SetSize(contentWidth, contentHeight)
		return m, nil

	case inboxChangedMsg:
		m.state = msg.state
		cmd := m.inboxView.SetNotifications(msg.state.Notifications, msg.state.UnreadCount, msg.state.Loading)
		m.syncDetail()
		return m, tea.Batch(cmd, waitForChanges(m.opts.Inbox))

	case streamStateMsg:
		m.live = msg.state
		return m, m.opts.States.Wait()

	case toastMsg:
		toast := msg.toast
		m.toast = &toast
		m.toastSeq++
		seq := m.toastSeq
		return m, tea.Batch(
			waitForToast(m.opts.Tray),
			tea.Tick(toastDuration, func(time.Time) tea.Msg {
				return toastExpiredMsg{seq: seq}
			}),
		)

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = nil
		}
		return m, nil

	case appsync.BadgeMsg:
		if msg.Error == nil {
			m.lastSync = msg.At
		}
		return m, m.opts.Reconciler.Wait()

	case appsync.AuthErrorMsg:
		return m, m.signOut(msg.Message)

	case actionDoneMsg:
		if msg.err != nil && api.IsAuthError(msg.err) {
			return m, m.signOut(sessionExpired)
		}
		return m, nil

	case inbox.OpenMsg:
		m.previousView = m.currentView
		m.currentView = ViewDetail
		m.detail.SetNotification(msg.Notification)
		if !msg.Notification.Read {
			return m, m.markRead(msg.Notification.ID)
		}
		return m, nil

	case inbox.MarkReadMsg:
		return m, m.markRead(msg.ID)

	case inbox.MarkAllReadMsg:
		return m, m.run(m.opts.Inbox.MarkAllAsRead)

	case inbox.DeleteMsg:
		if m.currentView == ViewDetail {
			m.currentView = ViewList
		}
		id := msg.ID
		return m, m.run(func(ctx context.Context) error {
			return m.opts.Inbox.Delete(ctx, id)
		})

	case detail.BackMsg:
		m.currentView = ViewList
		return m, nil

	case configview.ConfigDoneMsg:
		m.currentView = ViewList
		return m, nil

	case configview.ConfigSavedMsg:
		m.opts.PageSize = msg.Config.Display.PageSize
		if !msg.Config.Desktop.Enabled {
			m.setDesktop(desktop.PermissionDenied)
		}
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case tea.KeyMsg:
		// Global keys that work regardless of current view
		switch msg.String() {
		case "ctrl+c":
			return m, m.quit()

		case "q":
			if m.currentView == ViewList {
				return m, m.quit()
			}

		case "esc":
			if m.currentView == ViewHelp || m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}

		case "?":
			if m.currentView == ViewCommand || m.currentView == ViewConfig {
				break
			}
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case ":":
			if m.currentView == ViewConfig {
				break
			}
			if m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewCommand
			return m, m.commandView.Focus()

		case "R":
			if m.currentView == ViewList {
				return m, m.refresh()
			}

		case "c":
			if m.currentView == ViewList {
				return m, m.openSettings()
			}

		case "x":
			if m.currentView == ViewList && m.state.Err != "" {
				m.opts.Inbox.ClearError()
				return m, nil
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.inboxView, cmd = m.inboxView.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewConfig:
		m.configView, cmd = m.configView.Update(msg)
	}

	return m, cmd
}

// syncDetail keeps the open notification in step with the store.
func (m *Model) syncDetail() {
	current, ok := m.detail.Current()
	if !ok {
		return
	}

	for _, n := range m.state.Notifications {
		if n.ID == current.ID {
			m.detail.SetNotification(n)
			return
		}
	}

	if m.currentView == ViewDetail {
		m.currentView = ViewList
	}
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.title(), m.live == stream.Connected, m.connectionStatus())
	content := m.overlayToast(m.renderContent())

	var statusBar string
	if m.state.Err != "" && m.currentView == ViewList {
		statusBar = m.layout.RenderErrorBar(m.state.Err + " | x dismiss")
	} else {
		statusBar = m.layout.RenderStatusBar(m.keyHints())
	}

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.inboxView.View()
	case ViewDetail:
		return m.detail.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewConfig:
		return m.configView.View()
	default:
		return ""
	}
}

// overlayToast draws the toast over the bottom lines of content.
func (m Model) overlayToast(content string) string {
	if m.toast == nil {
		return content
	}

	body := lipgloss.JoinVertical(
		lipgloss.Left,
		lipgloss.NewStyle().Bold(true).Render(m.toast.Title),
		m.toast.Body,
	)
	toastLines := strings.Split(m.layout.RenderToast(theme.ToastStyle.Render(body)), "\n")

	lines := strings.Split(content, "\n")
	if len(lines) < len(toastLines) {
		return content
	}
	copy(lines[len(lines)-len(toastLines):], toastLines)

	return strings.Join(lines, "\n")
}

func (m Model) title() string {
	title := "Proof of Putt"
	if cred, ok := m.opts.Session.Credential(); ok {
		title += " · " + cred.DisplayName()
	}
	if m.state.UnreadCount > 0 {
		title = fmt.Sprintf("%s [%d new]", title, m.state.UnreadCount)
	}
	return title
}

// connectionStatus returns a short string describing the live channel.
func (m Model) connectionStatus() string {
	switch m.live {
	case stream.Connected:
		return "● live"
	case stream.Connecting:
		return "○ connecting"
	default:
		if _, ok := m.opts.Session.Token(); ok {
			return "○ reconnecting"
		}
		return "○ offline"
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return ": close command | enter execute | esc back"
	case ViewDetail:
		return "esc back | d delete | j/k scroll"
	case ViewConfig:
		return "e edit | t test connection | esc back"
	default:
		hints := "q quit | ? help | enter view | r read | A read all | d delete | R refresh | c settings"
		if !m.lastSync.IsZero() {
			hints += " | synced " + inbox.Age(m.lastSync)
		}
		return hints
	}
}

// loadInbox restores the cached inbox and then fetches the first page.
func (m Model) loadInbox() tea.Cmd {
	s := m.opts.Inbox
	pageSize := m.opts.PageSize
	return func() tea.Msg {
		ctx := context.Background()
		if _, err := s.Restore(ctx); err != nil {
			slog.Warn("Failed to restore cached inbox", log.ErrAttr(err))
		}
		return actionDoneMsg{err: s.FetchAll(ctx, pageSize, 0)}
	}
}

func (m Model) refresh() tea.Cmd {
	if m.opts.Reconciler != nil {
		m.opts.Reconciler.Refresh()
	}
	pageSize := m.opts.PageSize
	s := m.opts.Inbox
	return m.run(func(ctx context.Context) error {
		return s.FetchAll(ctx, pageSize, 0)
	})
}

func (m Model) markRead(id int64) tea.Cmd {
	s := m.opts.Inbox
	return m.run(func(ctx context.Context) error {
		return s.MarkAsRead(ctx, id)
	})
}

// run executes a store call off the UI goroutine.
func (m Model) run(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: fn(context.Background())}
	}
}

// signOut forgets the credential and leaves the program.
func (m *Model) signOut(message string) tea.Cmd {
	m.quitMessage = message
	if err := m.opts.Session.Clear(); err != nil {
		slog.Error("Failed to clear session", log.ErrAttr(err))
	}
	return m.quit()
}

func (m Model) quit() tea.Cmd {
	if m.opts.Reconciler != nil {
		m.opts.Reconciler.Stop()
	}
	return tea.Quit
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch cmd {
	case command.Refresh, "sync":
		return m.refresh()
	case command.ReadAll:
		return m.run(m.opts.Inbox.MarkAllAsRead)
	case command.DesktopOn:
		m.setDesktop(desktop.PermissionGranted)
		return nil
	case command.DesktopOff:
		m.setDesktop(desktop.PermissionDenied)
		return nil
	case command.Reconnect:
		if m.opts.Runtime != nil {
			m.opts.Runtime.Reconnect()
		}
		return nil
	case command.Settings:
		return m.openSettings()
	case command.Logout:
		return m.signOut("Signed out.")
	case command.Quit, "q":
		return m.quit()
	default:
		return nil
	}
}

func (m *Model) openSettings() tea.Cmd {
	if m.opts.Config == nil {
		return nil
	}
	m.previousView = m.currentView
	m.currentView = ViewConfig
	return m.configView.Init()
}

func (m *Model) setDesktop(permission desktop.Permission) {
	if m.opts.Bridge == nil {
		return
	}
	m.opts.Bridge.SetPermission(context.Background(), permission)
}
