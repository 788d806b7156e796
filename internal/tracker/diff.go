package tracker

import (
	"fmt"
	"os"

	"hyperwatch/internal/stats"

	json "github.com/goccy/go-json"
)

// DiffResult is a standalone comparison of two snapshots
type DiffResult struct {
	Delta      *stats.Delta     `json:"diff"`
	Highlights stats.Highlights `json:"highlights"`
}

// Diff compares two snapshots with the same rules the loop uses
func Diff(before, after *stats.Snapshot) (*DiffResult, error) {
	d, err := stats.ComputeDelta(before, after)
	if err != nil {
		return nil, err
	}
	return &DiffResult{Delta: d, Highlights: stats.PickHighlights(d)}, nil
}

// LoadSnapshot reads a snapshot from a JSON file. Both a bare snapshot and a
// {"profile", "stats"} player document are accepted.
func LoadSnapshot(path string) (*stats.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if raw, ok := fields["stats"]; ok {
		if _, hasProfile := fields["profile"]; hasProfile {
			data = raw
		}
	}

	var s stats.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &s, nil
}
