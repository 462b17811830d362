// Package recordstore provides SQLite-backed journal storage with optional FTS5
// full-text search over record titles and contents.
package recordstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS records (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    INTEGER NOT NULL,
	mood_id    INTEGER,
	date       INTEGER NOT NULL,
	status     TEXT NOT NULL DEFAULT 'ACTIVE',
	title      TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_user_date ON records(user_id, date);

CREATE TABLE IF NOT EXISTS activities (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS activity_records (
	record_id   INTEGER NOT NULL REFERENCES records(id) ON DELETE CASCADE,
	activity_id INTEGER NOT NULL,
	UNIQUE(record_id, activity_id)
);

CREATE INDEX IF NOT EXISTS idx_activity_records_activity ON activity_records(activity_id);

CREATE TABLE IF NOT EXISTS files (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id INTEGER NOT NULL REFERENCES records(id) ON DELETE CASCADE,
	user_id   INTEGER NOT NULL,
	fname     TEXT NOT NULL DEFAULT '',
	type      TEXT NOT NULL DEFAULT '',
	url       TEXT NOT NULL DEFAULT '',
	fkey      TEXT NOT NULL DEFAULT '',
	size      INTEGER NOT NULL DEFAULT 0,
	duration  REAL,
	checksum  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_files_record ON files(record_id);
CREATE INDEX IF NOT EXISTS idx_files_fkey ON files(fkey);
`

// DB wraps a sql.DB with journal-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("recordstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("recordstore: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("recordstore: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("recordstore: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
