// Package bundle segments new matches into inclusive ranges and packages a range
// with its stats delta into the persisted history record.
package bundle

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"hyperwatch/internal/stats"

	json "github.com/goccy/go-json"
)

// ErrBadRange is returned by ParseRange for text that is not "N" or "N-M"
var ErrBadRange = errors.New("malformed match range")

// MatchRange is an inclusive span of 1-based cumulative match indexes
type MatchRange struct {
	First int64
	Last  int64
}

// Segment decides whether matches were played between two cumulative match
// counts. It returns false when the count did not grow (including regressions).
func Segment(beforeMatches, afterMatches int64) (MatchRange, bool) {
	if afterMatches-beforeMatches <= 0 {
		return MatchRange{}, false
	}
	return MatchRange{First: beforeMatches + 1, Last: afterMatches}, true
}

// Count returns the number of matches covered by r
func (r MatchRange) Count() int64 {
	return r.Last - r.First + 1
}

// Valid reports whether r covers at least one match
func (r MatchRange) Valid() bool {
	return r.First >= 1 && r.Last >= r.First
}

// Contains reports whether match index n lies inside r
func (r MatchRange) Contains(n int64) bool {
	return n >= r.First && n <= r.Last
}

// Overlaps reports whether r and o share at least one match index
func (r MatchRange) Overlaps(o MatchRange) bool {
	return r.First <= o.Last && o.First <= r.Last
}

// String renders "11" for a single match and "11-15" otherwise
func (r MatchRange) String() string {
	if r.First == r.Last {
		return strconv.FormatInt(r.First, 10)
	}
	return fmt.Sprintf("%d-%d", r.First, r.Last)
}

// ParseRange reverses String. The result is not checked with Valid.
func ParseRange(s string) (MatchRange, error) {
	first, last, found := strings.Cut(strings.TrimSpace(s), "-")
	f, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return MatchRange{}, fmt.Errorf("%w: %q", ErrBadRange, s)
	}
	if !found {
		return MatchRange{First: f, Last: f}, nil
	}
	l, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return MatchRange{}, fmt.Errorf("%w: %q", ErrBadRange, s)
	}
	return MatchRange{First: f, Last: l}, nil
}

// MarshalJSON encodes r as a [first, last] pair
func (r MatchRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int64{r.First, r.Last})
}

// UnmarshalJSON decodes a [first, last] pair
func (r *MatchRange) UnmarshalJSON(data []byte) error {
	var pair [2]int64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decode match range: %w", err)
	}
	r.First, r.Last = pair[0], pair[1]
	return nil
}

// Bundle is one immutable history record: the matches of one update and their
// aggregate delta.
type Bundle struct {
	Time  time.Time    `json:"t"`
	Games int64        `json:"games"`
	Range MatchRange   `json:"range"`
	Diff  *stats.Delta `json:"diff"`
}

// Build packages a range and its delta. The game count is always derived from
// the range.
func Build(t time.Time, r MatchRange, d *stats.Delta) Bundle {
	return Bundle{
		Time:  t.UTC(),
		Games: r.Count(),
		Range: r,
		Diff:  d,
	}
}

// UnmarshalJSON decodes a stored bundle and recomputes the game count from its
// range, ignoring whatever count was stored.
func (b *Bundle) UnmarshalJSON(data []byte) error {
	type plain Bundle
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode bundle: %w", err)
	}
	*b = Bundle(p)
	b.Games = b.Range.Count()
	return nil
}
