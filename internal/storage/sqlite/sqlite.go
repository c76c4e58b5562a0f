// Package sqlite persists the toolchain cache index in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SQLiteStorage is the on-disk index of cached toolchains
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// New opens (creating if needed) the index database at path
func New(path string) (*SQLiteStorage, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// WAL plus a busy timeout lets concurrent sabre processes share one cache
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: path}, nil
}

// migrate records the schema version, refusing databases written by a newer sabre
func migrate(db *sql.DB) error {
	var current string
	err := db.QueryRow("SELECT value FROM config WHERE key = ?", "schema_version").Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		_, err = db.Exec("INSERT INTO config (key, value) VALUES (?, ?)", "schema_version", schemaVersion)
		return err
	case err != nil:
		return fmt.Errorf("failed to read schema_version: %w", err)
	case current > schemaVersion:
		return fmt.Errorf("index schema version %s is newer than supported %s", current, schemaVersion)
	}
	return nil
}

// Path returns the database file location
func (s *SQLiteStorage) Path() string { return s.path }

// Close closes the database
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
