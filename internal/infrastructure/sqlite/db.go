// Package sqlite persists dispatch snapshots in a SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/zjrosen/multidispatch/internal/dispatch"
	"github.com/zjrosen/multidispatch/internal/log"
)

const schema = `
PRAGMA foreign_keys = ON;
CREATE TABLE IF NOT EXISTS snapshots (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	guid       TEXT    NOT NULL UNIQUE,
	operation  TEXT    NOT NULL,
	method     INTEGER NOT NULL DEFAULT 0,
	ordering   TEXT    NOT NULL DEFAULT '[]',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_operation ON snapshots (operation, id);
CREATE TABLE IF NOT EXISTS snapshot_entries (
	snapshot_id INTEGER NOT NULL REFERENCES snapshots (id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	signature   TEXT    NOT NULL,
	variant     TEXT    NOT NULL,
	PRIMARY KEY (snapshot_id, position)
);`

// DB owns the connection to the snapshot database.
type DB struct {
	conn *sql.DB
}

// NewDB opens (creating if needed) the database at path and applies the
// schema. The parent directory is created with 0700 permissions.
func NewDB(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(wal)"
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		log.ErrorErr(log.CatStore, "Failed to open database", err, "path", path)
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db, err := Open(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	log.Info(log.CatStore, "Opened snapshot database", "path", path)
	return db, nil
}

// Open wraps an existing connection and applies the schema.
func Open(conn *sql.DB) (*DB, error) {
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Connection returns the underlying *sql.DB.
func (db *DB) Connection() *sql.DB {
	return db.conn
}

// SnapshotRepository returns a store backed by this database.
func (db *DB) SnapshotRepository() *SnapshotRepository {
	return newSnapshotRepository(db.conn)
}

var _ dispatch.SnapshotStore = (*SnapshotRepository)(nil)
