package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// Options configures a Registry.
type Options struct {
	// StrictToggle rejects ToggleFixed on custom records instead of flipping
	// their active flag.
	StrictToggle bool
	Log          *slog.Logger
}

// Registry applies normalize, validate, persist to every operation. It holds
// no state of its own; every call reads the store.
type Registry struct {
	store        Store
	strictToggle bool
	log          *slog.Logger
}

// New creates a Registry backed by store.
func New(store Store, opts Options) *Registry {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		store:        store,
		strictToggle: opts.StrictToggle,
		log:          log,
	}
}

// List returns every fixed and custom record.
func (r *Registry) List(ctx context.Context) (Listing, error) {
	var listing Listing
	err := r.store.WithTx(ctx, true, func(tx Tx) error {
		fixed, err := tx.ListByFixed(ctx, true)
		if err != nil {
			return fmt.Errorf("list fixed extensions: %w", err)
		}
		custom, err := tx.ListByFixed(ctx, false)
		if err != nil {
			return fmt.Errorf("list custom extensions: %w", err)
		}
		listing = Listing{
			Fixed:          fixed,
			Custom:         custom,
			CustomCount:    len(custom),
			MaxCustomCount: MaxCustomCount,
		}
		return nil
	})
	if err != nil {
		return Listing{}, err
	}
	return listing, nil
}

// ToggleFixed flips the active flag of the record named by raw and returns
// the updated record.
func (r *Registry) ToggleFixed(ctx context.Context, raw string) (Record, error) {
	ext := Normalize(raw)
	var updated Record
	err := r.store.WithTx(ctx, false, func(tx Tx) error {
		rec, err := tx.FindByExtension(ctx, ext)
		if err != nil {
			return fmt.Errorf("find extension: %w", err)
		}
		if rec == nil {
			return newError(CodeExtensionNotFound, ext)
		}
		if r.strictToggle && !rec.Fixed {
			return newError(CodeCannotToggleCustom, ext)
		}
		if err := tx.SetActive(ctx, ext, !rec.Active); err != nil {
			return fmt.Errorf("set active: %w", err)
		}
		updated = *rec
		updated.Active = !rec.Active
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	r.log.Info("toggled extension", "extension", ext, "active", updated.Active, "fixed", updated.Fixed)
	return updated, nil
}

// AddCustom validates raw and stores it as a custom extension.
func (r *Registry) AddCustom(ctx context.Context, raw string) (Record, error) {
	ext := Normalize(raw)
	if err := Validate(ext); err != nil {
		return Record{}, err
	}

	var created Record
	err := r.store.WithTx(ctx, false, func(tx Tx) error {
		existing, err := tx.FindByExtension(ctx, ext)
		if err != nil {
			return fmt.Errorf("find extension: %w", err)
		}
		if existing != nil {
			return newError(CodeDuplicateExtension, ext)
		}

		count, err := tx.CountCustom(ctx)
		if err != nil {
			return fmt.Errorf("count custom extensions: %w", err)
		}
		if count >= MaxCustomCount {
			return newError(CodeMaxCustomExceeded, ext)
		}

		// The pre-checks above only pick the error; the unique index and the
		// count guard in InsertCustom are what hold under concurrent writers.
		created, err = tx.InsertCustom(ctx, ext, MaxCustomCount)
		switch {
		case errors.Is(err, ErrUniqueViolation):
			return newError(CodeDuplicateExtension, ext)
		case errors.Is(err, ErrLimitReached):
			return newError(CodeMaxCustomExceeded, ext)
		case err != nil:
			return fmt.Errorf("insert custom extension: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUniqueViolation) {
			return Record{}, newError(CodeDuplicateExtension, ext)
		}
		return Record{}, err
	}
	r.log.Info("added custom extension", "extension", ext)
	return created, nil
}

// DeleteCustom removes the custom extension named by raw.
func (r *Registry) DeleteCustom(ctx context.Context, raw string) error {
	ext := Normalize(raw)
	err := r.store.WithTx(ctx, false, func(tx Tx) error {
		rec, err := tx.FindByExtension(ctx, ext)
		if err != nil {
			return fmt.Errorf("find extension: %w", err)
		}
		if rec == nil {
			return newError(CodeExtensionNotFound, ext)
		}
		if rec.Fixed {
			return newError(CodeCannotDeleteFixed, ext)
		}
		if err := tx.Delete(ctx, ext); err != nil {
			return fmt.Errorf("delete extension: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.log.Info("deleted custom extension", "extension", ext)
	return nil
}

// IsBlocked reports whether uploads with extension raw should be rejected:
// a matching record exists and is active. Input that would fail validation
// is never blocked.
func (r *Registry) IsBlocked(ctx context.Context, raw string) (bool, error) {
	ext := Normalize(raw)
	if Validate(ext) != nil {
		return false, nil
	}
	var blocked bool
	err := r.store.WithTx(ctx, true, func(tx Tx) error {
		rec, err := tx.FindByExtension(ctx, ext)
		if err != nil {
			return fmt.Errorf("find extension: %w", err)
		}
		blocked = rec != nil && rec.Active
		return nil
	})
	return blocked, err
}

// ActiveExtensions returns every blocked extension in lexical order.
func (r *Registry) ActiveExtensions(ctx context.Context) ([]string, error) {
	listing, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]string, 0, len(listing.Fixed)+len(listing.Custom))
	for _, rec := range listing.Fixed {
		if rec.Active {
			active = append(active, rec.Extension)
		}
	}
	for _, rec := range listing.Custom {
		if rec.Active {
			active = append(active, rec.Extension)
		}
	}
	sort.Strings(active)
	return active, nil
}
