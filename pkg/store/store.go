package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"extblock/pkg/registry"
)

var _ registry.Store = (*Store)(nil)

// Store implements registry.Store over a sqlite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New wraps db.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: Now}
}

// WithTx runs fn in a transaction.
func (s *Store) WithTx(ctx context.Context, readOnly bool, fn func(registry.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: readOnly})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&txRepo{tx: tx, now: s.now}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", translate(err))
	}
	return nil
}

type txRepo struct {
	tx  *sql.Tx
	now func() time.Time
}

const selectColumns = `SELECT id, extension, is_fixed, is_active, created_at FROM blocked_extension`

func (t *txRepo) FindByExtension(ctx context.Context, ext string) (*registry.Record, error) {
	row := t.tx.QueryRowContext(ctx, selectColumns+` WHERE extension = ?`, ext)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (t *txRepo) ListByFixed(ctx context.Context, fixed bool) ([]registry.Record, error) {
	rows, err := t.tx.QueryContext(ctx, selectColumns+` WHERE is_fixed = ? ORDER BY rowid`, fixed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]registry.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (t *txRepo) CountCustom(ctx context.Context) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocked_extension WHERE is_fixed = 0`).Scan(&n)
	return n, err
}

func (t *txRepo) InsertCustom(ctx context.Context, ext string, limit int) (registry.Record, error) {
	rec := registry.Record{
		ID:        uuid.NewString(),
		Extension: ext,
		Fixed:     false,
		Active:    true,
		CreatedAt: t.now(),
	}
	res, err := t.tx.ExecContext(ctx, `
	INSERT INTO blocked_extension(id, extension, is_fixed, is_active, created_at)
	SELECT ?, ?, 0, 1, ?
	WHERE (SELECT COUNT(*) FROM blocked_extension WHERE is_fixed = 0) < ?;
	`, rec.ID, rec.Extension, rec.CreatedAt, limit)
	if err != nil {
		return registry.Record{}, translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return registry.Record{}, err
	}
	if n == 0 {
		return registry.Record{}, registry.ErrLimitReached
	}
	return rec, nil
}

func (t *txRepo) SetActive(ctx context.Context, ext string, active bool) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE blocked_extension SET is_active = ? WHERE extension = ?`, active, ext)
	return err
}

func (t *txRepo) Delete(ctx context.Context, ext string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM blocked_extension WHERE extension = ?`, ext)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (registry.Record, error) {
	var rec registry.Record
	if err := s.Scan(&rec.ID, &rec.Extension, &rec.Fixed, &rec.Active, &rec.CreatedAt); err != nil {
		return registry.Record{}, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

// translate maps driver constraint failures onto registry sentinels.
func translate(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %v", registry.ErrUniqueViolation, err)
	}
	return err
}
