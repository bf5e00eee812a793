// Package desktop mirrors live notifications to the operating system once
// the player has allowed it.
package desktop

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/nhle/puttnotify/internal/log"
	"github.com/nhle/puttnotify/internal/model"
	"github.com/nhle/puttnotify/internal/store"
)

// Permission is the player's answer to the desktop notification prompt.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// SettingKey is where the permission is persisted.
const SettingKey = "desktop.permission"

// maxShownTags bounds how many delivered tags are remembered for
// de-duplication. The oldest tag is forgotten first.
const maxShownTags = 512

// Settings persists the permission between runs.
type Settings interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Prompter asks the player whether desktop notifications are allowed.
type Prompter interface {
	Ask(ctx context.Context) (bool, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context) (bool, error)

func (f PrompterFunc) Ask(ctx context.Context) (bool, error) {
	return f(ctx)
}

// Notifier shows one desktop notification. Deliveries sharing a tag
// replace each other.
type Notifier interface {
	Notify(tag, title, body string) error
}

// Bridge holds the permission and fans notifications out to notifiers.
type Bridge struct {
	settings  Settings
	prompter  Prompter
	notifiers []Notifier

	once       sync.Once
	mu         sync.Mutex
	permission Permission
	shown      map[string]struct{}
	order      []string
}

// NewBridge returns a bridge in the default (undecided) state. prompter
// may be nil when no one can be asked.
func NewBridge(settings Settings, prompter Prompter, notifiers ...Notifier) *Bridge {
	return &Bridge{
		settings:   settings,
		prompter:   prompter,
		notifiers:  notifiers,
		permission: PermissionDefault,
		shown:      make(map[string]struct{}),
	}
}

// Init loads the stored permission and, when the player never answered,
// asks exactly once. Later calls return the settled value.
func (b *Bridge) Init(ctx context.Context) Permission {
	b.once.Do(func() {
		permission := b.load(ctx)

		if permission == PermissionDefault && b.prompter != nil {
			allowed, err := b.prompter.Ask(ctx)
			if err != nil {
				slog.Warn("Desktop notification prompt failed", log.ErrAttr(err))
			} else {
				permission = PermissionDenied
				if allowed {
					permission = PermissionGranted
				}
				b.save(ctx, permission)
			}
		}

		b.mu.Lock()
		b.permission = permission
		b.mu.Unlock()
	})

	return b.Permission()
}

// Permission returns the current permission.
func (b *Bridge) Permission() Permission {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.permission
}

// SetPermission records an explicit answer, for example from a settings
// command.
func (b *Bridge) SetPermission(ctx context.Context, permission Permission) {
	b.mu.Lock()
	b.permission = permission
	b.mu.Unlock()

	b.save(ctx, permission)
}

// Deliver raises a desktop notification when permitted. A notification
// whose tag was already shown is skipped.
func (b *Bridge) Deliver(n model.Notification) {
	tag := n.Tag()

	b.mu.Lock()
	if b.permission != PermissionGranted {
		b.mu.Unlock()
		return
	}
	if _, seen := b.shown[tag]; seen {
		b.mu.Unlock()
		return
	}
	b.remember(tag)
	b.mu.Unlock()

	title := n.Title
	if title == "" {
		title = "Proof of Putt"
	}

	for _, notifier := range b.notifiers {
		if err := notifier.Notify(tag, title, n.Message); err != nil {
			slog.Warn("Failed to show desktop notification", log.ErrAttr(err), slog.String("tag", tag))
		}
	}
}

// remember records tag, evicting the oldest one past maxShownTags. Callers
// hold b.mu.
func (b *Bridge) remember(tag string) {
	if len(b.order) >= maxShownTags {
		delete(b.shown, b.order[0])
		b.order = b.order[1:]
	}
	b.shown[tag] = struct{}{}
	b.order = append(b.order, tag)
}

func (b *Bridge) load(ctx context.Context) Permission {
	if b.settings == nil {
		return PermissionDefault
	}

	value, err := b.settings.GetSetting(ctx, SettingKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("Failed to read desktop permission", log.ErrAttr(err))
		}
		return PermissionDefault
	}

	switch Permission(value) {
	case PermissionGranted, PermissionDenied:
		return Permission(value)
	default:
		return PermissionDefault
	}
}

func (b *Bridge) save(ctx context.Context, permission Permission) {
	if b.settings == nil {
		return
	}

	if err := b.settings.SetSetting(ctx, SettingKey, string(permission)); err != nil {
		slog.Warn("Failed to save desktop permission", log.ErrAttr(err))
	}
}
