package bundle

import (
	"testing"
	"time"

	"hyperwatch/internal/stats"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSegment_Boundaries tests no-update, single, multi and regression cases
func TestSegment_Boundaries(t *testing.T) {
	_, ok := Segment(10, 10)
	assert.False(t, ok, "no new matches")

	r, ok := Segment(10, 11)
	require.True(t, ok)
	assert.Equal(t, MatchRange{First: 11, Last: 11}, r)
	assert.Equal(t, int64(1), r.Count())

	r, ok = Segment(10, 15)
	require.True(t, ok)
	assert.Equal(t, MatchRange{First: 11, Last: 15}, r)
	assert.Equal(t, int64(5), r.Count())

	_, ok = Segment(15, 10)
	assert.False(t, ok, "regression")
}

// TestSegment_FirstMatch tests a player whose first match is recorded
func TestSegment_FirstMatch(t *testing.T) {
	r, ok := Segment(0, 1)
	require.True(t, ok)
	assert.Equal(t, MatchRange{First: 1, Last: 1}, r)
	assert.True(t, r.Valid())
}

// TestMatchRange_Overlaps tests range overlap detection
func TestMatchRange_Overlaps(t *testing.T) {
	a := MatchRange{First: 5, Last: 7}

	assert.True(t, a.Overlaps(MatchRange{First: 7, Last: 9}))
	assert.True(t, a.Overlaps(MatchRange{First: 1, Last: 5}))
	assert.True(t, a.Overlaps(MatchRange{First: 6, Last: 6}))
	assert.False(t, a.Overlaps(MatchRange{First: 8, Last: 9}))
	assert.False(t, a.Overlaps(MatchRange{First: 1, Last: 4}))

	assert.True(t, a.Contains(5))
	assert.False(t, a.Contains(8))
}

// TestMatchRange_String tests the history file stem format
func TestMatchRange_String(t *testing.T) {
	assert.Equal(t, "11", MatchRange{First: 11, Last: 11}.String())
	assert.Equal(t, "11-15", MatchRange{First: 11, Last: 15}.String())
}

// TestParseRange tests parsing the String form back
func TestParseRange(t *testing.T) {
	r, err := ParseRange("11")
	require.NoError(t, err)
	assert.Equal(t, MatchRange{First: 11, Last: 11}, r)

	r, err = ParseRange("11-15")
	require.NoError(t, err)
	assert.Equal(t, MatchRange{First: 11, Last: 15}, r)

	for _, bad := range []string{"notes", "", "11-", "-3"} {
		_, err = ParseRange(bad)
		assert.ErrorIs(t, err, ErrBadRange, bad)
	}
}

// TestBuild_CountFromRange tests that the game count is derived from the range
func TestBuild_CountFromRange(t *testing.T) {
	ts := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
	b := Build(ts, MatchRange{First: 5, Last: 7}, &stats.Delta{Matches: 3})

	assert.Equal(t, int64(3), b.Games)
	assert.Equal(t, ts, b.Time)
	assert.Equal(t, int64(5), b.Range.First)
	assert.Equal(t, int64(7), b.Range.Last)
}

// TestBundle_DecodeRecomputesCount tests that a stored count never overrides the range
func TestBundle_DecodeRecomputesCount(t *testing.T) {
	raw := `{"t":"2021-03-04T05:06:07Z","games":42,"range":[5,7],"diff":{"kills":3,"kd":"+0.10"}}`

	var b Bundle
	require.NoError(t, json.Unmarshal([]byte(raw), &b))

	assert.Equal(t, int64(3), b.Games)
	assert.Equal(t, MatchRange{First: 5, Last: 7}, b.Range)
	require.NotNil(t, b.Diff)
	assert.Equal(t, int64(3), b.Diff.Kills)
	assert.Equal(t, "+0.10", b.Diff.KD)
}

// TestBundle_Encode tests the persisted bundle shape
func TestBundle_Encode(t *testing.T) {
	b := Build(time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC), MatchRange{First: 11, Last: 12}, &stats.Delta{})

	data, err := json.Marshal(b)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.Equal(t, "2021-03-04T05:06:07Z", generic["t"])
	assert.Equal(t, float64(2), generic["games"])
	assert.Equal(t, []any{float64(11), float64(12)}, generic["range"])
	assert.Contains(t, generic, "diff")
}
