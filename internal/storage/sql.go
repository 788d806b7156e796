package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"hyperwatch/internal/bundle"
	"hyperwatch/internal/stats"

	json "github.com/goccy/go-json"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

const pingTimeout = 10 * time.Second

var sqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS baselines (
		player_id TEXT PRIMARY KEY,
		snapshot TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bundles (
		player_id TEXT NOT NULL,
		first_match INTEGER NOT NULL,
		last_match INTEGER NOT NULL,
		games INTEGER NOT NULL,
		recorded_at TEXT NOT NULL,
		diff TEXT NOT NULL,
		PRIMARY KEY (player_id, first_match)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bundles_player_last ON bundles(player_id, last_match)`,
}

// SQLStore is a database/sql backend shared by SQLite and libSQL
type SQLStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a local SQLite database file
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if path == "" {
		return nil, errors.New("sqlite: database path not set")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	return newSQLStore(ctx, db)
}

// OpenLibSQL connects to a Turso / libSQL server
func OpenLibSQL(ctx context.Context, dbURL, authToken string) (*SQLStore, error) {
	if dbURL == "" {
		return nil, errors.New("libsql: database URL not set")
	}
	connStr := dbURL
	if authToken != "" {
		connStr = fmt.Sprintf("%s?authToken=%s", dbURL, url.QueryEscape(authToken))
	}

	db, err := sql.Open("libsql", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to libsql: %w", err)
	}

	return newSQLStore(ctx, db)
}

func newSQLStore(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) createTables(ctx context.Context) error {
	for _, query := range sqlSchema {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// GetBaseline returns the stored baseline, or nil when absent
func (s *SQLStore) GetBaseline(ctx context.Context, playerID string) (*stats.Snapshot, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM baselines WHERE player_id = ?`, playerID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query baseline: %w", err)
	}
	return decodeSnapshot([]byte(raw))
}

// SetBaseline upserts the player's baseline
func (s *SQLStore) SetBaseline(ctx context.Context, playerID string, snap *stats.Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO baselines (player_id, snapshot, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(player_id) DO UPDATE SET
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at
	`, playerID, string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert baseline: %w", err)
	}
	return nil
}

// Baselines returns every stored baseline
func (s *SQLStore) Baselines(ctx context.Context) (map[string]*stats.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT player_id, snapshot FROM baselines`)
	if err != nil {
		return nil, fmt.Errorf("failed to query baselines: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*stats.Snapshot)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan baseline: %w", err)
		}
		snap, err := decodeSnapshot([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("baseline %s: %w", id, err)
		}
		out[id] = snap
	}
	return out, rows.Err()
}

// CommitBundle appends or widens a bundle inside a transaction that also
// checks the range against the player's latest one.
func (s *SQLStore) CommitBundle(ctx context.Context, playerID string, b bundle.Bundle) error {
	diff, err := json.Marshal(b.Diff)
	if err != nil {
		return fmt.Errorf("failed to encode diff: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var last *bundle.MatchRange
	var r bundle.MatchRange
	err = tx.QueryRowContext(ctx, `
		SELECT first_match, last_match FROM bundles
		WHERE player_id = ? ORDER BY last_match DESC LIMIT 1
	`, playerID).Scan(&r.First, &r.Last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to query last range: %w", err)
	default:
		last = &r
	}

	mode, err := planAppend(last, b.Range)
	if err != nil {
		return err
	}

	recordedAt := b.Time.UTC().Format(time.RFC3339Nano)
	if mode == appendReplace {
		_, err = tx.ExecContext(ctx, `
			UPDATE bundles SET last_match = ?, games = ?, recorded_at = ?, diff = ?
			WHERE player_id = ? AND first_match = ?
		`, b.Range.Last, b.Range.Count(), recordedAt, string(diff), playerID, b.Range.First)
		if err != nil {
			return fmt.Errorf("failed to replace bundle: %w", err)
		}
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO bundles (player_id, first_match, last_match, games, recorded_at, diff)
			VALUES (?, ?, ?, ?, ?, ?)
		`, playerID, b.Range.First, b.Range.Last, b.Range.Count(), recordedAt, string(diff))
		if err != nil {
			return fmt.Errorf("failed to insert bundle: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bundle: %w", err)
	}
	return nil
}

// Bundles returns a player's history ordered by range
func (s *SQLStore) Bundles(ctx context.Context, playerID string) ([]bundle.Bundle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT first_match, last_match, recorded_at, diff FROM bundles
		WHERE player_id = ? ORDER BY first_match
	`, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bundles: %w", err)
	}
	defer rows.Close()

	var out []bundle.Bundle
	for rows.Next() {
		b, err := scanSQLBundle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// Bundle returns the bundle committed for exactly r
func (s *SQLStore) Bundle(ctx context.Context, playerID string, r bundle.MatchRange) (*bundle.Bundle, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT first_match, last_match, recorded_at, diff FROM bundles
		WHERE player_id = ? AND first_match = ? AND last_match = ?
	`, playerID, r.First, r.Last)

	b, err := scanSQLBundle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", ErrBundleNotFound, playerID, r)
	}
	return b, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLBundle(row rowScanner) (*bundle.Bundle, error) {
	var (
		r          bundle.MatchRange
		recordedAt string
		diff       string
	)
	if err := row.Scan(&r.First, &r.Last, &recordedAt, &diff); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan bundle: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid recorded_at %q: %w", recordedAt, err)
	}
	var d stats.Delta
	if err := json.Unmarshal([]byte(diff), &d); err != nil {
		return nil, fmt.Errorf("failed to decode diff: %w", err)
	}

	b := bundle.Build(t, r, &d)
	return &b, nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func encodeSnapshot(snap *stats.Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, errors.New("nil baseline")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (*stats.Snapshot, error) {
	var snap stats.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}
