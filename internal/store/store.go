package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/puttnotify/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Inbox is the cached notification list of one player.
type Inbox struct {
	PlayerID      int64
	Notifications []model.Notification
	UnreadCount   int
	SyncedAt      time.Time
}

// Store defines the persistence interface for the local notification
// cache and application settings.
type Store interface {
	// === Inbox cache ===

	SaveInbox(ctx context.Context, inbox Inbox) error
	LoadInbox(ctx context.Context, playerID int64) (*Inbox, error)
	DeleteInbox(ctx context.Context, playerID int64) error

	// === Settings ===

	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	Close() error
}
