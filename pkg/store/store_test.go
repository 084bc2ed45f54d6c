package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"extblock/pkg/registry"
)

func openTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "extblock.db")
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(path))
	return db, path
}

func TestMigrate(t *testing.T) {
	_, path := openTestDB(t)

	// A second run is a no-op.
	require.NoError(t, Migrate(path))

	v, dirty, err := SchemaVersion(path)
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(1), v)
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)
	s := New(db)

	require.NoError(t, Seed(ctx, db, registry.FixedExtensions))

	var exeID string
	require.NoError(t, s.WithTx(ctx, false, func(tx registry.Tx) error {
		rec, err := tx.FindByExtension(ctx, "exe")
		if err != nil {
			return err
		}
		exeID = rec.ID
		return tx.SetActive(ctx, "exe", true)
	}))

	require.NoError(t, Seed(ctx, db, registry.FixedExtensions))

	require.NoError(t, s.WithTx(ctx, true, func(tx registry.Tx) error {
		fixed, err := tx.ListByFixed(ctx, true)
		require.NoError(t, err)
		require.Len(t, fixed, len(registry.FixedExtensions))
		for i, rec := range fixed {
			require.Equal(t, registry.FixedExtensions[i], rec.Extension)
			require.Equal(t, rec.Extension == "exe", rec.Active, rec.Extension)
			if rec.Extension == "exe" {
				require.Equal(t, exeID, rec.ID)
			}
		}
		return nil
	}))
}

func TestInsertCustom(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)
	s := New(db)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	var created registry.Record
	require.NoError(t, s.WithTx(ctx, false, func(tx registry.Tx) error {
		var err error
		created, err = tx.InsertCustom(ctx, "sh", registry.MaxCustomCount)
		return err
	}))
	require.False(t, created.Fixed)
	require.True(t, created.Active)

	require.NoError(t, s.WithTx(ctx, true, func(tx registry.Tx) error {
		rec, err := tx.FindByExtension(ctx, "sh")
		require.NoError(t, err)
		require.NotNil(t, rec)
		require.Equal(t, created.ID, rec.ID)
		require.True(t, rec.CreatedAt.Equal(created.CreatedAt), "created_at %s != %s", rec.CreatedAt, created.CreatedAt)

		n, err := tx.CountCustom(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		missing, err := tx.FindByExtension(ctx, "pdf")
		require.NoError(t, err)
		require.Nil(t, missing)
		return nil
	}))
}

func TestInsertCustomUniqueViolation(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)
	s := New(db)

	insert := func() error {
		return s.WithTx(ctx, false, func(tx registry.Tx) error {
			_, err := tx.InsertCustom(ctx, "sh", registry.MaxCustomCount)
			return err
		})
	}
	require.NoError(t, insert())
	err := insert()
	require.ErrorIs(t, err, registry.ErrUniqueViolation)
}

func TestInsertCustomLimit(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)
	s := New(db)

	err := s.WithTx(ctx, false, func(tx registry.Tx) error {
		for _, ext := range []string{"a", "b"} {
			if _, err := tx.InsertCustom(ctx, ext, 2); err != nil {
				return err
			}
		}
		_, err := tx.InsertCustom(ctx, "c", 2)
		return err
	})
	require.ErrorIs(t, err, registry.ErrLimitReached)

	// The failed transaction rolled back the first two inserts.
	require.NoError(t, s.WithTx(ctx, true, func(tx registry.Tx) error {
		n, err := tx.CountCustom(ctx)
		require.NoError(t, err)
		require.Equal(t, 0, n)
		return nil
	}))
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)
	s := New(db)

	require.Panics(t, func() {
		_ = s.WithTx(ctx, false, func(tx registry.Tx) error {
			if _, err := tx.InsertCustom(ctx, "sh", registry.MaxCustomCount); err != nil {
				return err
			}
			panic("boom")
		})
	})

	require.NoError(t, s.WithTx(ctx, true, func(tx registry.Tx) error {
		rec, err := tx.FindByExtension(ctx, "sh")
		require.NoError(t, err)
		require.Nil(t, rec)
		return nil
	}))
}

func TestDeleteAndSetActive(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)
	s := New(db)

	require.NoError(t, s.WithTx(ctx, false, func(tx registry.Tx) error {
		if _, err := tx.InsertCustom(ctx, "sh", registry.MaxCustomCount); err != nil {
			return err
		}
		if err := tx.SetActive(ctx, "sh", false); err != nil {
			return err
		}
		rec, err := tx.FindByExtension(ctx, "sh")
		if err != nil {
			return err
		}
		if rec.Active {
			return errors.New("sh still active")
		}
		return tx.Delete(ctx, "sh")
	}))

	require.NoError(t, s.WithTx(ctx, true, func(tx registry.Tx) error {
		custom, err := tx.ListByFixed(ctx, false)
		require.NoError(t, err)
		require.Empty(t, custom)
		return nil
	}))
}

func TestTranslatePassesOtherErrors(t *testing.T) {
	err := errors.New("other")
	require.Equal(t, err, translate(err))
	require.False(t, errors.Is(translate(err), registry.ErrUniqueViolation))
}

func TestOpenPathWithURIChars(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "odd dir#1")
	path := filepath.Join(dir, "ext?v=1%20.db")

	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(path))
	require.NoError(t, Seed(ctx, db, registry.FixedExtensions))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.Contains(t, names, "ext?v=1%20.db")

	v, dirty, err := SchemaVersion(path)
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(1), v)
}
