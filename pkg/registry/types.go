// Package registry governs the set of blocked file extensions: a fixed seeded
// set whose active flag users toggle, and a bounded set of custom extensions.
package registry

import (
	"context"
	"errors"
	"time"
)

const (
	// MaxCustomCount caps the number of custom extensions.
	MaxCustomCount = 200
	// MaxExtensionLength is the longest extension accepted, in characters.
	MaxExtensionLength = 20
)

// FixedExtensions is the seeded set, inserted once with active=false.
var FixedExtensions = []string{"bat", "cmd", "com", "cpl", "exe", "scr", "js"}

// Record is a persisted extension entry.
type Record struct {
	ID        string
	Extension string
	Fixed     bool
	Active    bool
	CreatedAt time.Time
}

// Listing is the full view returned by List.
type Listing struct {
	Fixed          []Record
	Custom         []Record
	CustomCount    int
	MaxCustomCount int
}

var (
	// ErrUniqueViolation is returned by a Tx when an insert collides with an
	// existing extension.
	ErrUniqueViolation = errors.New("extension already stored")
	// ErrLimitReached is returned by a Tx when a guarded insert finds the
	// custom count at its limit.
	ErrLimitReached = errors.New("custom extension limit reached")
)

// Store runs fn inside one transaction. It commits when fn returns nil and
// rolls back otherwise, including when fn panics.
type Store interface {
	WithTx(ctx context.Context, readOnly bool, fn func(Tx) error) error
}

// Tx is the set of queries available inside a transaction.
type Tx interface {
	// FindByExtension returns nil, nil when no record matches.
	FindByExtension(ctx context.Context, ext string) (*Record, error)
	ListByFixed(ctx context.Context, fixed bool) ([]Record, error)
	CountCustom(ctx context.Context) (int, error)
	// InsertCustom stores ext as fixed=false, active=true unless the custom
	// count has reached limit.
	InsertCustom(ctx context.Context, ext string, limit int) (Record, error)
	SetActive(ctx context.Context, ext string, active bool) error
	Delete(ctx context.Context, ext string) error
}
