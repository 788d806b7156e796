// Package storage persists per-player baselines and the immutable history of
// match bundles. Backends: local files, SQLite, libSQL (Turso) and Postgres.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"hyperwatch/internal/bundle"
	"hyperwatch/internal/stats"
)

var (
	// ErrRangeOverlap is returned when a bundle's range is neither strictly
	// after the player's latest range nor a widening of it.
	ErrRangeOverlap = errors.New("match range overlaps committed history")
	// ErrAlreadyCommitted is returned when a bundle with the same range as the
	// player's latest one is committed again. Nothing is written.
	ErrAlreadyCommitted = errors.New("match range already committed")
	// ErrInvalidRange is returned for empty or inverted ranges
	ErrInvalidRange = errors.New("invalid match range")
	// ErrBundleNotFound is returned when no bundle matches a lookup
	ErrBundleNotFound = errors.New("bundle not found")
	// ErrUnknownBackend is returned by Open for unsupported backends
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// BaselineStore holds the most recently accepted snapshot of every player
type BaselineStore interface {
	// GetBaseline returns nil, nil when the player has no baseline yet
	GetBaseline(ctx context.Context, playerID string) (*stats.Snapshot, error)
	SetBaseline(ctx context.Context, playerID string, s *stats.Snapshot) error
	Baselines(ctx context.Context) (map[string]*stats.Snapshot, error)
}

// BundleStore is the append-only match history
type BundleStore interface {
	// CommitBundle appends b. A range sharing the latest bundle's first match
	// and reaching further replaces that bundle.
	CommitBundle(ctx context.Context, playerID string, b bundle.Bundle) error
	// Bundles returns a player's history ordered by range
	Bundles(ctx context.Context, playerID string) ([]bundle.Bundle, error)
	// Bundle returns the bundle committed for exactly r
	Bundle(ctx context.Context, playerID string, r bundle.MatchRange) (*bundle.Bundle, error)
}

// Store is a complete backend
type Store interface {
	BaselineStore
	BundleStore
	io.Closer
}

// Backend names
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendLibSQL   = "libsql"
	BackendPostgres = "postgres"
)

// Config selects and locates a backend
type Config struct {
	Backend string
	// Dir is the data directory of the file backend
	Dir string
	// DSN is the SQLite path, libSQL URL or Postgres connection string
	DSN string
	// AuthToken is appended to libSQL URLs
	AuthToken string
}

// Open connects to the configured backend and prepares its schema
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendFile, "":
		return NewFileStore(cfg.Dir)
	case BackendSQLite:
		return OpenSQLite(ctx, cfg.DSN)
	case BackendLibSQL:
		return OpenLibSQL(ctx, cfg.DSN, cfg.AuthToken)
	case BackendPostgres:
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// appendMode says how a validated bundle is written
type appendMode int

const (
	// appendNew adds a bundle after the last one
	appendNew appendMode = iota
	// appendReplace widens the last bundle. It happens when a commit went
	// through but the baseline did not, so the next cycle re-processes the
	// same first match together with newer ones.
	appendReplace
)

// planAppend decides whether r may follow last, the highest committed range.
// Committing last again gives ErrAlreadyCommitted.
func planAppend(last *bundle.MatchRange, r bundle.MatchRange) (appendMode, error) {
	if !r.Valid() {
		return 0, fmt.Errorf("%w: %d-%d", ErrInvalidRange, r.First, r.Last)
	}
	if last == nil {
		return appendNew, nil
	}
	switch {
	case *last == r:
		return 0, fmt.Errorf("%w: %s", ErrAlreadyCommitted, r)
	case r.First == last.First && r.Contains(last.Last+1):
		return appendReplace, nil
	case r.Overlaps(*last) || r.First < last.First:
		return 0, fmt.Errorf("%w: %s after %s", ErrRangeOverlap, r, *last)
	}
	return appendNew, nil
}
