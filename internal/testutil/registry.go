package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"extblock/pkg/registry"
	"extblock/pkg/store"
)

// Database opens a migrated and seeded sqlite database under t.TempDir.
func Database(t *testing.T) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "extblock.db")

	db, err := store.Open(path)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := store.Migrate(path); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := store.Seed(context.Background(), db, registry.FixedExtensions); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return db, path
}

// NewRegistry returns a Registry over a fresh database.
func NewRegistry(t *testing.T, opts registry.Options) *registry.Registry {
	t.Helper()
	db, _ := Database(t)
	return registry.New(store.New(db), opts)
}
