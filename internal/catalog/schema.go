// Package catalog persists model declarations in SQLite and serves them as a
// schema definition service. The Loader keeps it in step with the schema
// directory.
package catalog

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sources (
	path       TEXT PRIMARY KEY,
	checksum   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS models (
	name   TEXT PRIMARY KEY,
	source TEXT NOT NULL REFERENCES sources(path) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS attributes (
	model         TEXT NOT NULL REFERENCES models(name) ON DELETE CASCADE,
	name          TEXT NOT NULL,
	type          TEXT NOT NULL DEFAULT '',
	default_value TEXT,
	default_expr  TEXT NOT NULL DEFAULT '',
	options       TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (model, name)
);

CREATE TABLE IF NOT EXISTS relationships (
	model   TEXT NOT NULL REFERENCES models(name) ON DELETE CASCADE,
	key     TEXT NOT NULL,
	kind    TEXT NOT NULL,
	type    TEXT NOT NULL,
	inverse TEXT NOT NULL DEFAULT '',
	options TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (model, key)
);

CREATE INDEX IF NOT EXISTS idx_models_source ON models(source);
`

// DB wraps a sql.DB with catalog operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("catalog: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
