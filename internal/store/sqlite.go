package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/puttnotify/internal/model"
)

const memoryPath = ":memory:"

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != memoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if dbPath == memoryPath {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SaveInbox replaces the cached notification list and counter of one
// player.
func (s *SQLiteStore) SaveInbox(ctx context.Context, inbox Inbox) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications WHERE player_id = ?", inbox.PlayerID); err != nil {
		return fmt.Errorf("clearing cached notifications: %w", err)
	}

	const query = `
		INSERT INTO notifications (
			player_id, id, kind, title, message,
			read_status, created_at, link_path, data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, n := range inbox.Notifications {
		_, err = stmt.ExecContext(ctx,
			inbox.PlayerID, n.ID, n.Kind, n.Title, n.Message,
			boolToInt(n.Read), n.CreatedAt.UTC(), n.LinkPath, string(n.Data),
		)
		if err != nil {
			return fmt.Errorf("caching notification %d: %w", n.ID, err)
		}
	}

	syncedAt := inbox.SyncedAt
	if syncedAt.IsZero() {
		syncedAt = time.Now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inbox_state (player_id, unread_count, synced_at)
		VALUES (?, ?, ?)
		ON CONFLICT(player_id) DO UPDATE SET
			unread_count = excluded.unread_count,
			synced_at = excluded.synced_at`,
		inbox.PlayerID, inbox.UnreadCount, syncedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving inbox state: %w", err)
	}

	return tx.Commit()
}

// notificationRow mirrors a notifications row.
type notificationRow struct {
	PlayerID  int64     `db:"player_id"`
	ID        int64     `db:"id"`
	Kind      string    `db:"kind"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	Read      bool      `db:"read_status"`
	CreatedAt time.Time `db:"created_at"`
	LinkPath  string    `db:"link_path"`
	Data      string    `db:"data"`
}

func (r notificationRow) toModel() model.Notification {
	n := model.Notification{
		ID:        r.ID,
		Kind:      r.Kind,
		Title:     r.Title,
		Message:   r.Message,
		Read:      r.Read,
		CreatedAt: r.CreatedAt,
		LinkPath:  r.LinkPath,
	}
	if r.Data != "" {
		n.Data = json.RawMessage(r.Data)
	}
	return n
}

// LoadInbox returns the cached inbox of a player, newest first. It
// returns ErrNotFound when nothing was cached yet.
func (s *SQLiteStore) LoadInbox(ctx context.Context, playerID int64) (*Inbox, error) {
	var state struct {
		UnreadCount int       `db:"unread_count"`
		SyncedAt    time.Time `db:"synced_at"`
	}

	err := s.db.GetContext(ctx, &state,
		"SELECT unread_count, synced_at FROM inbox_state WHERE player_id = ?", playerID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading inbox state: %w", err)
	}

	var rows []notificationRow
	err = s.db.SelectContext(ctx, &rows, `
		SELECT * FROM notifications
		WHERE player_id = ?
		ORDER BY created_at DESC, id DESC`,
		playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading cached notifications: %w", err)
	}

	inbox := &Inbox{
		PlayerID:      playerID,
		Notifications: make([]model.Notification, 0, len(rows)),
		UnreadCount:   state.UnreadCount,
		SyncedAt:      state.SyncedAt,
	}
	for _, row := range rows {
		inbox.Notifications = append(inbox.Notifications, row.toModel())
	}

	return inbox, nil
}

// DeleteInbox drops everything cached for a player.
func (s *SQLiteStore) DeleteInbox(ctx context.Context, playerID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications WHERE player_id = ?", playerID); err != nil {
		return fmt.Errorf("deleting cached notifications: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM inbox_state WHERE player_id = ?", playerID); err != nil {
		return fmt.Errorf("deleting inbox state: %w", err)
	}

	return tx.Commit()
}

// GetSetting returns the value stored under key, or ErrNotFound.
func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM settings WHERE key = ?", key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("getting setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting inserts or replaces a setting.
func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
