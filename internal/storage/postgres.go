package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hyperwatch/internal/bundle"
	"hyperwatch/internal/stats"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS baselines (
		player_id TEXT PRIMARY KEY,
		snapshot JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bundles (
		player_id TEXT NOT NULL,
		first_match BIGINT NOT NULL,
		last_match BIGINT NOT NULL,
		games BIGINT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL,
		diff JSONB NOT NULL,
		PRIMARY KEY (player_id, first_match)
	);

	CREATE INDEX IF NOT EXISTS idx_bundles_player_last ON bundles(player_id, last_match);
`

// PostgresStore is a pgx connection pool backend
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres creates a connection pool and prepares the schema
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres: connection string not set")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Pool returns the underlying connection pool for custom queries
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// GetBaseline returns the stored baseline, or nil when absent
func (s *PostgresStore) GetBaseline(ctx context.Context, playerID string) (*stats.Snapshot, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT snapshot FROM baselines WHERE player_id = $1`, playerID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query baseline: %w", err)
	}
	return decodeSnapshot(raw)
}

// SetBaseline upserts the player's baseline
func (s *PostgresStore) SetBaseline(ctx context.Context, playerID string, snap *stats.Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO baselines (player_id, snapshot, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (player_id) DO UPDATE SET
			snapshot = EXCLUDED.snapshot,
			updated_at = EXCLUDED.updated_at
	`, playerID, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert baseline: %w", err)
	}
	return nil
}

// Baselines returns every stored baseline
func (s *PostgresStore) Baselines(ctx context.Context) (map[string]*stats.Snapshot, error) {
	rows, err := s.pool.Query(ctx, `SELECT player_id, snapshot FROM baselines`)
	if err != nil {
		return nil, fmt.Errorf("failed to query baselines: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*stats.Snapshot)
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan baseline: %w", err)
		}
		snap, err := decodeSnapshot(raw)
		if err != nil {
			return nil, fmt.Errorf("baseline %s: %w", id, err)
		}
		out[id] = snap
	}
	return out, rows.Err()
}

// CommitBundle appends or widens a bundle. The player's latest row is locked so that
// concurrent writers cannot interleave ranges.
func (s *PostgresStore) CommitBundle(ctx context.Context, playerID string, b bundle.Bundle) error {
	diff, err := json.Marshal(b.Diff)
	if err != nil {
		return fmt.Errorf("failed to encode diff: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var last *bundle.MatchRange
	var r bundle.MatchRange
	err = tx.QueryRow(ctx, `
		SELECT first_match, last_match FROM bundles
		WHERE player_id = $1 ORDER BY last_match DESC LIMIT 1
		FOR UPDATE
	`, playerID).Scan(&r.First, &r.Last)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to query last range: %w", err)
	default:
		last = &r
	}

	mode, err := planAppend(last, b.Range)
	if err != nil {
		return err
	}

	if mode == appendReplace {
		_, err = tx.Exec(ctx, `
			UPDATE bundles SET last_match = $3, games = $4, recorded_at = $5, diff = $6
			WHERE player_id = $1 AND first_match = $2
		`, playerID, b.Range.First, b.Range.Last, b.Range.Count(), b.Time.UTC(), string(diff))
		if err != nil {
			return fmt.Errorf("failed to replace bundle: %w", err)
		}
	} else {
		_, err = tx.Exec(ctx, `
			INSERT INTO bundles (player_id, first_match, last_match, games, recorded_at, diff)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, playerID, b.Range.First, b.Range.Last, b.Range.Count(), b.Time.UTC(), string(diff))
		if err != nil {
			return fmt.Errorf("failed to insert bundle: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit bundle: %w", err)
	}
	return nil
}

// Bundles returns a player's history ordered by range
func (s *PostgresStore) Bundles(ctx context.Context, playerID string) ([]bundle.Bundle, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT first_match, last_match, recorded_at, diff FROM bundles
		WHERE player_id = $1 ORDER BY first_match
	`, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bundles: %w", err)
	}
	defer rows.Close()

	var out []bundle.Bundle
	for rows.Next() {
		b, err := scanPgBundle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// Bundle returns the bundle committed for exactly r
func (s *PostgresStore) Bundle(ctx context.Context, playerID string, r bundle.MatchRange) (*bundle.Bundle, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT first_match, last_match, recorded_at, diff FROM bundles
		WHERE player_id = $1 AND first_match = $2 AND last_match = $3
	`, playerID, r.First, r.Last)

	b, err := scanPgBundle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", ErrBundleNotFound, playerID, r)
	}
	return b, err
}

func scanPgBundle(row pgx.Row) (*bundle.Bundle, error) {
	var (
		r          bundle.MatchRange
		recordedAt time.Time
		diff       []byte
	)
	if err := row.Scan(&r.First, &r.Last, &recordedAt, &diff); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan bundle: %w", err)
	}

	var d stats.Delta
	if err := json.Unmarshal(diff, &d); err != nil {
		return nil, fmt.Errorf("failed to decode diff: %w", err)
	}

	b := bundle.Build(recordedAt, r, &d)
	return &b, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
