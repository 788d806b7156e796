// Package roster keeps the list of watched players in a YAML file and
// resolves it into profiles for the tracker.
package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"hyperwatch/internal/hyperscape"
	"hyperwatch/internal/stats"
	"hyperwatch/internal/tracker"

	"gopkg.in/yaml.v3"
)

var (
	// ErrAlreadyWatching is returned when adding a username that is already listed
	ErrAlreadyWatching = errors.New("already watching")
	// ErrNotWatching is returned when removing a username that is not listed
	ErrNotWatching = errors.New("not watching")
)

// Entry is one watched player
type Entry struct {
	Username string `yaml:"username"`
	Platform string `yaml:"platform"`
	// ID is filled once the player was resolved upstream
	ID string `yaml:"id,omitempty"`
}

type document struct {
	Players []Entry `yaml:"players"`
}

// File is a roster stored as YAML
type File struct {
	Path string

	mu sync.Mutex
}

// Open returns the roster stored at path; the file is created on first save
func Open(path string) *File {
	return &File{Path: path}
}

// Load reads every entry. A missing file is an empty roster.
func (f *File) Load() ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *File) load() ([]Entry, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse roster %s: %w", f.Path, err)
	}
	return doc.Players, nil
}

// Save replaces the roster atomically
func (f *File) Save(entries []Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.save(entries)
}

func (f *File) save(entries []Entry) error {
	data, err := yaml.Marshal(document{Players: entries})
	if err != nil {
		return fmt.Errorf("failed to encode roster: %w", err)
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create roster directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".roster-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write roster: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write roster: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("failed to replace roster: %w", err)
	}
	return nil
}

// Add appends an entry. Usernames are unique regardless of case; the
// platform is normalized and defaults to uplay.
func (f *File) Add(e Entry) (Entry, error) {
	platform := hyperscape.DefaultPlatform
	if e.Platform != "" {
		p, err := hyperscape.NormalizePlatform(e.Platform)
		if err != nil {
			return Entry{}, err
		}
		platform = p
	}
	e.Platform = platform

	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return Entry{}, err
	}
	if i := indexOf(entries, e.Username); i >= 0 {
		return entries[i], fmt.Errorf("%w %s", ErrAlreadyWatching, entries[i].Username)
	}
	if err := f.save(append(entries, e)); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Remove drops the entry with the given username (case-insensitive)
func (f *File) Remove(username string) (Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return Entry{}, err
	}
	i := indexOf(entries, username)
	if i < 0 {
		return Entry{}, fmt.Errorf("%w %s", ErrNotWatching, username)
	}
	removed := entries[i]
	entries = append(entries[:i], entries[i+1:]...)
	if err := f.save(entries); err != nil {
		return Entry{}, err
	}
	return removed, nil
}

// Names lists the watched usernames in roster order
func (f *File) Names() ([]string, error) {
	entries, err := f.Load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Username)
	}
	return names, nil
}

func indexOf(entries []Entry, username string) int {
	for i, e := range entries {
		if strings.EqualFold(e.Username, username) {
			return i
		}
	}
	return -1
}

// Resolver looks players up upstream
type Resolver interface {
	GetUser(ctx context.Context, platform, username string) (*stats.Profile, error)
	GetUserByID(ctx context.Context, id string) (*stats.Profile, error)
}

// Resolve turns entries into profiles. Entries with a known ID and username
// need no lookup; an ID alone is looked up by ID and a username alone is
// searched on its platform. Entries that fail to resolve are logged and
// skipped.
func Resolve(ctx context.Context, resolver Resolver, entries []Entry, logger *slog.Logger) []stats.Profile {
	if logger == nil {
		logger = slog.Default()
	}

	profiles := make([]stats.Profile, 0, len(entries))
	for _, e := range entries {
		if e.ID != "" && e.Username != "" {
			profiles = append(profiles, stats.Profile{ID: e.ID, Name: e.Username, Platform: e.Platform})
			continue
		}

		var (
			p   *stats.Profile
			err error
		)
		if e.ID != "" {
			p, err = resolver.GetUserByID(ctx, e.ID)
		} else {
			platform := e.Platform
			if platform == "" {
				platform = hyperscape.DefaultPlatform
			}
			p, err = resolver.GetUser(ctx, platform, e.Username)
		}
		if err != nil {
			logger.WarnContext(ctx, "roster: failed to resolve player",
				"component", "roster", "username", e.Username, "id", e.ID, "error", err)
			continue
		}
		profiles = append(profiles, *p)
	}
	return profiles
}

// RosterFunc re-reads the file on every sweep so edits made while the loop
// runs are picked up on the next tick.
func (f *File) RosterFunc(resolver Resolver, logger *slog.Logger) tracker.RosterFunc {
	return func(ctx context.Context) ([]stats.Profile, error) {
		entries, err := f.Load()
		if err != nil {
			return nil, err
		}
		return Resolve(ctx, resolver, entries, logger), nil
	}
}
