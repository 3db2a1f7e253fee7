package sqlite

// migrations run in order; schema_version records the last applied index.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		id            TEXT PRIMARY KEY,
		thread_id     TEXT NOT NULL DEFAULT '',
		snippet       TEXT NOT NULL DEFAULT '',
		label_ids     TEXT NOT NULL DEFAULT '[]',
		size_estimate INTEGER NOT NULL DEFAULT 0,
		internal_date INTEGER NOT NULL DEFAULT 0,
		raw           BLOB,
		stored_at     INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_internal_date ON messages(internal_date)`,
}
