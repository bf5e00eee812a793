package desktop

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode"

	"github.com/charmbracelet/huh"
)

// Terminal raises notifications with the OSC 9 escape sequence, which
// terminals such as iTerm2 and WezTerm turn into native
// desktop notifications.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminal returns a Terminal writing to w, usually os.Stdout.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) Notify(_ string, title, body string) error {
	text := sanitize(title)
	if body != "" {
		text += ": " + sanitize(body)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := fmt.Fprintf(t.w, "\x1b]9;%s\x07", text); err != nil {
		return fmt.Errorf("writing terminal notification: %w", err)
	}
	return nil
}

// sanitize drops control characters so the text cannot end the escape
// sequence early.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}

// Toast is one notification queued for the TUI.
type Toast struct {
	Tag   string
	Title string
	Body  string
}

// Tray queues notifications for display inside the TUI. When the queue is
// full the newest toast is dropped.
type Tray struct {
	toasts chan Toast
}

// NewTray returns a Tray holding up to size pending toasts.
func NewTray(size int) *Tray {
	if size <= 0 {
		size = 8
	}
	return &Tray{toasts: make(chan Toast, size)}
}

func (t *Tray) Notify(tag, title, body string) error {
	select {
	case t.toasts <- Toast{Tag: tag, Title: title, Body: body}:
	default:
	}
	return nil
}

// Toasts returns the queue the TUI reads from.
func (t *Tray) Toasts() <-chan Toast {
	return t.toasts
}

// ConfirmPrompter asks in the terminal with a yes/no form.
type ConfirmPrompter struct{}

func (ConfirmPrompter) Ask(ctx context.Context) (bool, error) {
	allowed := true

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Show desktop notifications?").
				Description("Duel challenges and league invitations will pop up on your desktop.").
				Affirmative("Allow").
				Negative("Block").
				Value(&allowed),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		return false, fmt.Errorf("asking for desktop permission: %w", err)
	}

	return allowed, nil
}
