package storage

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"hyperwatch/internal/bundle"
	"hyperwatch/internal/stats"

	"github.com/bits-and-blooms/bloom/v3"
	json "github.com/goccy/go-json"
)

const (
	baselineFile = "stats.json"
	gamesDir     = "games"
	archiveDir   = "archive"

	// Sizing for the committed-range index
	indexCapacity  = 100000
	indexFalseRate = 0.001
)

// FileStore keeps all baselines in <dir>/stats.json and one JSON file per
// bundle in <dir>/games/<player>/<first>[-<last>].json.
type FileStore struct {
	mu sync.Mutex

	dir       string
	baselines map[string]*stats.Snapshot

	// committed holds "<player>/<stem>" of every bundle file
	committed *bloom.BloomFilter
	// last caches the highest committed range per player
	last map[string]*bundle.MatchRange
}

// NewFileStore opens (creating if needed) a file store rooted at dir
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("file store: directory not set")
	}
	for _, d := range []string{dir, filepath.Join(dir, gamesDir), filepath.Join(dir, archiveDir)} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}

	s := &FileStore{
		dir:       dir,
		baselines: make(map[string]*stats.Snapshot),
		committed: bloom.NewWithEstimates(indexCapacity, indexFalseRate),
		last:      make(map[string]*bundle.MatchRange),
	}

	if err := s.loadBaselines(); err != nil {
		return nil, err
	}
	if err := s.buildIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) loadBaselines() error {
	data, err := os.ReadFile(filepath.Join(s.dir, baselineFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read baselines: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &s.baselines); err != nil {
		return fmt.Errorf("failed to decode baselines: %w", err)
	}
	return nil
}

func (s *FileStore) buildIndex() error {
	players, err := os.ReadDir(filepath.Join(s.dir, gamesDir))
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}
	for _, p := range players {
		if !p.IsDir() {
			continue
		}
		ranges, err := s.playerRanges(p.Name())
		if err != nil {
			return err
		}
		for _, r := range ranges {
			s.committed.AddString(indexKey(p.Name(), r))
		}
	}

	archives, err := os.ReadDir(filepath.Join(s.dir, archiveDir))
	if err != nil {
		return fmt.Errorf("failed to list archives: %w", err)
	}
	for _, a := range archives {
		playerID, ok := strings.CutSuffix(a.Name(), ".jsonl.gz")
		if a.IsDir() || !ok {
			continue
		}
		bundles, err := s.readArchive(playerID)
		if err != nil {
			return err
		}
		for _, b := range bundles {
			s.committed.AddString(indexKey(playerID, b.Range))
		}
	}
	return nil
}

func indexKey(playerID string, r bundle.MatchRange) string {
	return playerID + "/" + r.String()
}

func (s *FileStore) playerDir(playerID string) string {
	return filepath.Join(s.dir, gamesDir, playerID)
}

func (s *FileStore) archivePath(playerID string) string {
	return filepath.Join(s.dir, archiveDir, playerID+".jsonl.gz")
}

// playerRanges lists the ranges of a player's live bundle files in order
func (s *FileStore) playerRanges(playerID string) ([]bundle.MatchRange, error) {
	entries, err := os.ReadDir(s.playerDir(playerID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list history of %s: %w", playerID, err)
	}

	var ranges []bundle.MatchRange
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		r, err := bundle.ParseRange(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		ranges = append(ranges, r)
	}
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].First != ranges[j].First {
			return ranges[i].First < ranges[j].First
		}
		return ranges[i].Last < ranges[j].Last
	})
	return ranges, nil
}

// GetBaseline returns a copy of the player's baseline, or nil when absent
func (s *FileStore) GetBaseline(_ context.Context, playerID string) (*stats.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.baselines[playerID]
	if !ok {
		return nil, nil
	}
	return cloneSnapshot(snap)
}

// SetBaseline replaces the player's baseline and rewrites stats.json atomically
func (s *FileStore) SetBaseline(_ context.Context, playerID string, snap *stats.Snapshot) error {
	if snap == nil {
		return errors.New("file store: nil baseline")
	}
	c, err := cloneSnapshot(snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.baselines[playerID]
	s.baselines[playerID] = c
	if err := s.flushBaselines(); err != nil {
		if had {
			s.baselines[playerID] = prev
		} else {
			delete(s.baselines, playerID)
		}
		return err
	}
	return nil
}

// Baselines returns copies of every stored baseline
func (s *FileStore) Baselines(_ context.Context) (map[string]*stats.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*stats.Snapshot, len(s.baselines))
	for id, snap := range s.baselines {
		c, err := cloneSnapshot(snap)
		if err != nil {
			return nil, err
		}
		out[id] = c
	}
	return out, nil
}

func (s *FileStore) flushBaselines() error {
	data, err := json.MarshalIndent(s.baselines, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode baselines: %w", err)
	}
	return writeFileAtomic(filepath.Join(s.dir, baselineFile), data)
}

// CommitBundle writes a bundle file. A widened latest range is written
// under its new stem and the old file is removed.
func (s *FileStore) CommitBundle(_ context.Context, playerID string, b bundle.Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, err := s.lastRange(playerID)
	if err != nil {
		return err
	}

	mode, err := planAppend(last, b.Range)
	if err != nil {
		return err
	}

	var replaced string
	if mode == appendReplace {
		replaced = s.bundlePath(playerID, *last)
		if _, err := os.Stat(replaced); err != nil {
			// only archived: the archive is never rewritten
			return fmt.Errorf("%w: %s after archived %s", ErrRangeOverlap, b.Range, *last)
		}
	}

	if err := os.MkdirAll(s.playerDir(playerID), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	b.Games = b.Range.Count()
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}
	if err := writeFileAtomic(s.bundlePath(playerID, b.Range), data); err != nil {
		return err
	}

	s.committed.AddString(indexKey(playerID, b.Range))
	r := b.Range
	s.last[playerID] = &r

	if replaced != "" {
		if err := os.Remove(replaced); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove replaced bundle %s: %w", *last, err)
		}
	}
	return nil
}

func (s *FileStore) bundlePath(playerID string, r bundle.MatchRange) string {
	return filepath.Join(s.playerDir(playerID), r.String()+".json")
}

// lastRange returns the highest committed range of a player, including
// archived history. Must be called with s.mu held.
func (s *FileStore) lastRange(playerID string) (*bundle.MatchRange, error) {
	if r, ok := s.last[playerID]; ok {
		return r, nil
	}

	var last *bundle.MatchRange
	archived, err := s.readArchive(playerID)
	if err != nil {
		return nil, err
	}
	for i := range archived {
		if last == nil || archived[i].Range.Last > last.Last {
			r := archived[i].Range
			last = &r
		}
	}

	ranges, err := s.playerRanges(playerID)
	if err != nil {
		return nil, err
	}
	if n := len(ranges); n > 0 && (last == nil || ranges[n-1].Last > last.Last) {
		r := ranges[n-1]
		last = &r
	}

	s.last[playerID] = last
	return last, nil
}

// Bundles returns archived and live bundles of a player ordered by range
func (s *FileStore) Bundles(_ context.Context, playerID string) ([]bundle.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.readArchive(playerID)
	if err != nil {
		return nil, err
	}

	ranges, err := s.playerRanges(playerID)
	if err != nil {
		return nil, err
	}
	for _, r := range ranges {
		data, err := os.ReadFile(s.bundlePath(playerID, r))
		if err != nil {
			return nil, fmt.Errorf("failed to read bundle %s: %w", r, err)
		}
		var b bundle.Bundle
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("failed to decode bundle %s: %w", r, err)
		}
		out = append(out, b)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Range.First < out[j].Range.First })
	return out, nil
}

// Bundle returns the single bundle committed for exactly r. The bloom index
// answers most misses without touching the disk.
func (s *FileStore) Bundle(_ context.Context, playerID string, r bundle.MatchRange) (*bundle.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.committed.TestString(indexKey(playerID, r)) {
		return nil, fmt.Errorf("%w: %s %s", ErrBundleNotFound, playerID, r)
	}

	data, err := os.ReadFile(s.bundlePath(playerID, r))
	if err == nil {
		var b bundle.Bundle
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("failed to decode bundle %s: %w", r, err)
		}
		return &b, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read bundle %s: %w", r, err)
	}

	archived, err := s.readArchive(playerID)
	if err != nil {
		return nil, err
	}
	for i := range archived {
		if archived[i].Range == r {
			return &archived[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s %s", ErrBundleNotFound, playerID, r)
}

// ArchivePlayer compresses a player's live history into
// <dir>/archive/<player>.jsonl.gz (one bundle per line, appended to any
// previous archive), removes the live bundle files and drops the baseline.
func (s *FileStore) ArchivePlayer(_ context.Context, playerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readArchive(playerID)
	if err != nil {
		return 0, err
	}

	ranges, err := s.playerRanges(playerID)
	if err != nil {
		return 0, err
	}

	all := existing
	for _, r := range ranges {
		data, err := os.ReadFile(s.bundlePath(playerID, r))
		if err != nil {
			return 0, fmt.Errorf("failed to read bundle %s: %w", r, err)
		}
		var b bundle.Bundle
		if err := json.Unmarshal(data, &b); err != nil {
			return 0, fmt.Errorf("failed to decode bundle %s: %w", r, err)
		}
		all = append(all, b)
	}

	if len(ranges) > 0 {
		if err := s.writeArchive(playerID, all); err != nil {
			return 0, err
		}
		if err := os.RemoveAll(s.playerDir(playerID)); err != nil {
			return 0, fmt.Errorf("failed to remove live history: %w", err)
		}
	}

	if _, ok := s.baselines[playerID]; ok {
		prev := s.baselines[playerID]
		delete(s.baselines, playerID)
		if err := s.flushBaselines(); err != nil {
			s.baselines[playerID] = prev
			return 0, err
		}
	}

	return len(ranges), nil
}

func (s *FileStore) writeArchive(playerID string, bundles []bundle.Bundle) error {
	path := s.archivePath(playerID)
	tmp := path + ".tmp"

	dst, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	gz := gzip.NewWriter(dst)
	w := bufio.NewWriterSize(gz, 64*1024)
	enc := json.NewEncoder(w)
	for _, b := range bundles {
		if err := enc.Encode(b); err != nil {
			dst.Close()
			os.Remove(tmp)
			return fmt.Errorf("failed to write archive: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		dst.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to flush archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		dst.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to compress archive: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close archive: %w", err)
	}
	return os.Rename(tmp, path)
}

func (s *FileStore) readArchive(playerID string) ([]bundle.Bundle, error) {
	f, err := os.Open(s.archivePath(playerID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	defer gz.Close()

	var out []bundle.Bundle
	dec := json.NewDecoder(gz)
	for {
		var b bundle.Bundle
		err := dec.Decode(&b)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode archive: %w", err)
		}
		out = append(out, b)
	}
	return out, nil
}

// Close is a no-op; every write is flushed immediately
func (s *FileStore) Close() error {
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// cloneSnapshot deep-copies through JSON so callers never share item maps
func cloneSnapshot(s *stats.Snapshot) (*stats.Snapshot, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	var c stats.Snapshot
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &c, nil
}
