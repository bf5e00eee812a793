package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	player_id   INTEGER NOT NULL,
	id          INTEGER NOT NULL,
	kind        TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL DEFAULT '',
	read_status INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL,
	link_path   TEXT NOT NULL DEFAULT '',
	data        TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (player_id, id)
);

CREATE TABLE IF NOT EXISTS inbox_state (
	player_id    INTEGER PRIMARY KEY,
	unread_count INTEGER NOT NULL DEFAULT 0,
	synced_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_player_created
	ON notifications(player_id, created_at DESC);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
