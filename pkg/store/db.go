// Package store persists extension records in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens the sqlite database at path, creating its directory if needed.
// Transactions take the write lock at BEGIN (_txlock=immediate) so the
// check-then-insert sequence in a write transaction is never interleaved
// with another writer.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// dsn builds a SQLite URI filename. The path is percent-escaped so '?', '#'
// and '%' in it are not read as URI syntax.
func dsn(path string) string {
	escaped := (&url.URL{Path: path}).EscapedPath()
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate", escaped)
}

// Now returns UTC time truncated to seconds.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
