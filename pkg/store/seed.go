package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Seed inserts the fixed extensions with active=false. Existing rows are left
// untouched, so it is safe to run on every startup and never resets a
// toggled flag.
func Seed(ctx context.Context, db *sql.DB, fixed []string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	now := Now()
	for _, ext := range fixed {
		id := uuid.NewSHA1(uuid.NameSpaceOID, []byte("ext:"+ext)).String()
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO blocked_extension(id, extension, is_fixed, is_active, created_at)
		VALUES (?, ?, 1, 0, ?)
		ON CONFLICT(extension) DO NOTHING;
		`, id, ext, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("seed %s: %w", ext, err)
		}
	}
	return tx.Commit()
}
