package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/puttnotify/internal/desktop"
	"github.com/nhle/puttnotify/internal/notify"
	"github.com/nhle/puttnotify/internal/stream"
)

// inboxChangedMsg carries a fresh snapshot of the notification store.
type inboxChangedMsg struct {
	state notify.State
}

// streamStateMsg reports a live channel transition.
type streamStateMsg struct {
	state stream.State
}

// toastMsg carries a pushed notification to show as a popup.
type toastMsg struct {
	toast desktop.Toast
}

// StateFeed hands channel transitions to the Bubble Tea runtime. Pass
// Publish to stream.WithOnState.
type StateFeed struct {
	ch chan stream.State
}

// NewStateFeed creates an empty feed.
func NewStateFeed() *StateFeed {
	return &StateFeed{ch: make(chan stream.State, 16)}
}

// Publish records a transition without blocking the channel.
func (f *StateFeed) Publish(state stream.State) {
	select {
	case f.ch <- state:
	default:
		// The UI only needs the latest state; drop the oldest one.
		select {
		case <-f.ch:
		default:
		}
		select {
		case f.ch <- state:
		default:
		}
	}
}

// Wait returns a tea.Cmd that waits for the next transition.
func (f *StateFeed) Wait() tea.Cmd {
	return func() tea.Msg {
		return streamStateMsg{state: <-f.ch}
	}
}

// waitForChanges returns a tea.Cmd that waits until the store changes.
func waitForChanges(s *notify.Store) tea.Cmd {
	return func() tea.Msg {
		<-s.Changes()
		return inboxChangedMsg{state: s.Snapshot()}
	}
}

// waitForToast returns a tea.Cmd that waits for the next toast.
func waitForToast(t *desktop.Tray) tea.Cmd {
	if t == nil {
		return nil
	}
	return func() tea.Msg {
		return toastMsg{toast: <-t.Toasts()}
	}
}
