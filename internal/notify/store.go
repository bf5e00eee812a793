// Package notify holds the client-side view of the player's notifications
// and the mutations the UI may apply to it.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nhle/puttnotify/internal/api"
	"github.com/nhle/puttnotify/internal/log"
	"github.com/nhle/puttnotify/internal/model"
	"github.com/nhle/puttnotify/internal/session"
	"github.com/nhle/puttnotify/internal/store"
)

// User-visible error messages.
const (
	ErrMsgLoad    = "Failed to load notifications"
	ErrMsgRead    = "Failed to mark notification as read"
	ErrMsgReadAll = "Failed to mark all notifications as read"
	ErrMsgDelete  = "Failed to delete notification"
)

// DefaultPageSize is used by FetchAll when no limit is given.
const DefaultPageSize = 20

// Gateway is the subset of the REST API the store needs.
type Gateway interface {
	Notifications(ctx context.Context, playerID int64, page api.Page) (*model.NotificationPage, error)
	UnreadCount(ctx context.Context, playerID int64) (int, error)
	MarkNotificationRead(ctx context.Context, playerID, notificationID int64) error
	MarkAllNotificationsRead(ctx context.Context, playerID int64) error
	DeleteNotification(ctx context.Context, playerID, notificationID int64) error
}

// Identity resolves the player whose notifications are shown.
type Identity interface {
	PlayerID() (int64, bool)
}

// Cache persists the inbox between runs.
type Cache interface {
	SaveInbox(ctx context.Context, inbox store.Inbox) error
	LoadInbox(ctx context.Context, playerID int64) (*store.Inbox, error)
	DeleteInbox(ctx context.Context, playerID int64) error
}

// State is a point-in-time copy of the store.
type State struct {
	Notifications []model.Notification
	UnreadCount   int
	Loading       bool
	// Err is the last user-visible failure, empty when none.
	Err string
}

// push records a notification delivered while a fetch was in flight.
type push struct {
	seq uint64
	id  int64
}

// Store is the single owner of the in-memory notification list. All
// methods are safe for concurrent use.
type Store struct {
	gateway  Gateway
	identity Identity
	cache    Cache

	mu            sync.Mutex
	notifications []model.Notification
	unread        int
	inflight      int
	errMsg        string
	seq           uint64
	pushes        []push
	// epoch changes on every Reset; work started in an older epoch is
	// discarded when it completes.
	epoch uint64

	cacheMu sync.Mutex
	changes chan struct{}
}

// Option customizes a Store.
type Option func(*Store)

// WithCache enables write-through persistence of the inbox.
func WithCache(cache Cache) Option {
	return func(s *Store) {
		s.cache = cache
	}
}

// NewStore returns an empty store.
func NewStore(gateway Gateway, identity Identity, opts ...Option) *Store {
	s := &Store{
		gateway:       gateway,
		identity:      identity,
		notifications: []model.Notification{},
		changes:       make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Changes signals after every state change. Signals coalesce, so a
// receiver should read Snapshot after each one.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	list := make([]model.Notification, len(s.notifications))
	copy(list, s.notifications)

	return State{
		Notifications: list,
		UnreadCount:   s.unread,
		Loading:       s.inflight > 0,
		Err:           s.errMsg,
	}
}

// FetchAll loads one page from the server and replaces the list and
// counter with it. Notifications pushed while the request was in flight
// and missing from the response are kept on top. On failure prior state
// is left untouched.
func (s *Store) FetchAll(ctx context.Context, limit, offset int) error {
	playerID, ok := s.identity.PlayerID()
	if !ok {
		return session.ErrNotSignedIn
	}

	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	s.mu.Lock()
	s.inflight++
	s.errMsg = ""
	startSeq := s.seq
	epoch := s.epoch
	s.mu.Unlock()
	s.signal()

	page, err := s.gateway.Notifications(ctx, playerID, api.Page{Limit: limit, Offset: offset})

	s.mu.Lock()
	s.inflight--
	if s.epoch != epoch {
		s.trimPushesLocked()
		s.mu.Unlock()
		s.signal()

		slog.Debug("Discarding notification page from a previous session", slog.Int64("player_id", playerID))
		return err
	}
	if err != nil {
		s.errMsg = ErrMsgLoad
		s.trimPushesLocked()
		s.mu.Unlock()
		s.signal()

		slog.Error("Failed to fetch notifications", log.ErrAttr(err), slog.Int64("player_id", playerID))
		return err
	}

	s.applyPageLocked(page, startSeq)
	s.trimPushesLocked()
	s.mu.Unlock()
	s.signal()

	s.persist(ctx, playerID, epoch)

	return nil
}

func (s *Store) applyPageLocked(page *model.NotificationPage, startSeq uint64) {
	inResponse := make(map[int64]struct{}, len(page.Notifications))
	for _, n := range page.Notifications {
		inResponse[n.ID] = struct{}{}
	}

	late := make(map[int64]struct{})
	for _, p := range s.pushes {
		if p.seq > startSeq {
			if _, ok := inResponse[p.id]; !ok {
				late[p.id] = struct{}{}
			}
		}
	}

	merged := make([]model.Notification, 0, len(page.Notifications)+len(late))
	unread := max(page.UnreadCount, 0)
	for _, n := range s.notifications {
		if _, ok := late[n.ID]; ok {
			merged = append(merged, n)
			if !n.Read {
				unread++
			}
		}
	}
	merged = append(merged, page.Notifications...)

	s.notifications = merged
	s.unread = unread
}

// trimPushesLocked forgets recorded pushes once no fetch can need them.
func (s *Store) trimPushesLocked() {
	if s.inflight == 0 {
		s.pushes = nil
	}
}

// FetchUnreadCount refreshes only the counter. Any failure sets it to 0.
func (s *Store) FetchUnreadCount(ctx context.Context) (int, error) {
	playerID, ok := s.identity.PlayerID()
	if !ok {
		return 0, session.ErrNotSignedIn
	}

	epoch := s.currentEpoch()

	count, err := s.gateway.UnreadCount(ctx, playerID)
	if err != nil {
		slog.Warn("Failed to fetch unread notification count", log.ErrAttr(err))
		count = 0
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return count, err
	}
	s.unread = max(count, 0)
	s.mu.Unlock()
	s.signal()

	return count, err
}

// MarkAsRead flips the entry to read and confirms with the server. A
// failed confirmation sets the error message but keeps the local change.
func (s *Store) MarkAsRead(ctx context.Context, id int64) error {
	playerID, ok := s.identity.PlayerID()
	if !ok {
		return session.ErrNotSignedIn
	}

	s.mu.Lock()
	wasUnread := true
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			wasUnread = !s.notifications[i].Read
			s.notifications[i].Read = true
			break
		}
	}
	if wasUnread {
		s.unread = max(s.unread-1, 0)
	}
	epoch := s.epoch
	s.mu.Unlock()
	s.signal()

	if err := s.gateway.MarkNotificationRead(ctx, playerID, id); err != nil {
		s.fail(epoch, ErrMsgRead)
		slog.Error("Failed to mark notification as read", log.ErrAttr(err), slog.Int64("id", id))
		return err
	}

	s.persist(ctx, playerID, epoch)

	return nil
}

// MarkAllAsRead flips every entry to read and zeroes the counter. When
// nothing is unread it returns without calling the server.
func (s *Store) MarkAllAsRead(ctx context.Context) error {
	playerID, ok := s.identity.PlayerID()
	if !ok {
		return session.ErrNotSignedIn
	}

	s.mu.Lock()
	anyUnread := s.unread > 0
	for i := range s.notifications {
		if !s.notifications[i].Read {
			anyUnread = true
			s.notifications[i].Read = true
		}
	}
	s.unread = 0
	epoch := s.epoch
	s.mu.Unlock()

	if !anyUnread {
		return nil
	}
	s.signal()

	if err := s.gateway.MarkAllNotificationsRead(ctx, playerID); err != nil {
		s.fail(epoch, ErrMsgReadAll)
		slog.Error("Failed to mark all notifications as read", log.ErrAttr(err))
		return err
	}

	s.persist(ctx, playerID, epoch)

	return nil
}

// Delete removes the entry locally and on the server. The entry is never
// restored, and a not-found answer counts as success.
func (s *Store) Delete(ctx context.Context, id int64) error {
	playerID, ok := s.identity.PlayerID()
	if !ok {
		return session.ErrNotSignedIn
	}

	s.mu.Lock()
	kept := s.notifications[:0:0]
	for _, n := range s.notifications {
		if n.ID == id {
			if !n.Read {
				s.unread = max(s.unread-1, 0)
			}
			continue
		}
		kept = append(kept, n)
	}
	s.notifications = kept
	epoch := s.epoch
	s.mu.Unlock()
	s.signal()

	err := s.gateway.DeleteNotification(ctx, playerID, id)
	switch {
	case err == nil:
	case api.IsNotFound(err):
		slog.Debug("Notification already deleted", slog.Int64("id", id))
	default:
		s.fail(epoch, ErrMsgDelete)
		slog.Error("Failed to delete notification", log.ErrAttr(err), slog.Int64("id", id))
		return err
	}

	s.persist(ctx, playerID, epoch)

	return nil
}

// Push prepends a live-delivered notification. A notification already in
// the list is not added or counted twice.
func (s *Store) Push(n model.Notification) {
	s.mu.Lock()
	for _, existing := range s.notifications {
		if existing.ID == n.ID {
			s.mu.Unlock()
			return
		}
	}

	s.notifications = append([]model.Notification{n}, s.notifications...)
	if !n.Read {
		s.unread++
	}

	s.seq++
	if s.inflight > 0 {
		s.pushes = append(s.pushes, push{seq: s.seq, id: n.ID})
	}
	epoch := s.epoch
	s.mu.Unlock()
	s.signal()

	if playerID, ok := s.identity.PlayerID(); ok {
		s.persist(context.Background(), playerID, epoch)
	}
}

// ClearError dismisses the current error message.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.errMsg = ""
	s.mu.Unlock()
	s.signal()
}

// Reset forgets everything, typically on logout. Requests still in
// flight finish without touching the store or the cache.
func (s *Store) Reset() {
	s.mu.Lock()
	s.epoch++
	s.notifications = []model.Notification{}
	s.unread = 0
	s.errMsg = ""
	s.pushes = nil
	s.mu.Unlock()
	s.signal()
}

// Forget resets the store and drops the cached inbox of playerID.
func (s *Store) Forget(ctx context.Context, playerID int64) error {
	s.Reset()

	if s.cache == nil || playerID == 0 {
		return nil
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if err := s.cache.DeleteInbox(context.WithoutCancel(ctx), playerID); err != nil {
		return fmt.Errorf("clearing cached inbox: %w", err)
	}

	return nil
}

// Restore primes an empty store from the cache. It reports whether
// anything was loaded.
func (s *Store) Restore(ctx context.Context) (bool, error) {
	if s.cache == nil {
		return false, nil
	}

	playerID, ok := s.identity.PlayerID()
	if !ok {
		return false, session.ErrNotSignedIn
	}

	epoch := s.currentEpoch()

	inbox, err := s.cache.LoadInbox(ctx, playerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	s.mu.Lock()
	if s.epoch != epoch || len(s.notifications) > 0 || s.seq > 0 {
		s.mu.Unlock()
		return false, nil
	}
	s.notifications = inbox.Notifications
	s.unread = max(inbox.UnreadCount, 0)
	s.mu.Unlock()
	s.signal()

	return true, nil
}

func (s *Store) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.epoch
}

// fail records msg unless the store was reset since epoch.
func (s *Store) fail(epoch uint64, msg string) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.errMsg = msg
	s.mu.Unlock()
	s.signal()
}

func (s *Store) signal() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// persist writes the current state through to the cache. Writes are
// serialized so the newest snapshot always lands last, and skipped once
// the store has been reset since epoch.
func (s *Store) persist(ctx context.Context, playerID int64, epoch uint64) {
	if s.cache == nil {
		return
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	state := s.snapshotLocked()
	s.mu.Unlock()

	err := s.cache.SaveInbox(context.WithoutCancel(ctx), store.Inbox{
		PlayerID:      playerID,
		Notifications: state.Notifications,
		UnreadCount:   state.UnreadCount,
		SyncedAt:      time.Now(),
	})
	if err != nil {
		slog.Warn("Failed to cache notifications", log.ErrAttr(err))
	}
}
