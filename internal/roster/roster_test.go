package roster

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hyperwatch/internal/hyperscape"
	"hyperwatch/internal/observability"
	"hyperwatch/internal/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFile(t *testing.T) *File {
	return Open(filepath.Join(t.TempDir(), "nested", "roster.yaml"))
}

func TestFile_LoadMissing(t *testing.T) {
	entries, err := newFile(t).Load()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFile_AddRemove(t *testing.T) {
	f := newFile(t)

	added, err := f.Add(Entry{Username: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, hyperscape.PlatformUplay, added.Platform)

	_, err = f.Add(Entry{Username: "bob", Platform: "PS5", ID: "id-bob"})
	require.NoError(t, err)

	_, err = f.Add(Entry{Username: "ALICE"})
	assert.ErrorIs(t, err, ErrAlreadyWatching)

	_, err = f.Add(Entry{Username: "carol", Platform: "gameboy"})
	assert.ErrorIs(t, err, hyperscape.ErrUnknownPlatform)

	names, err := f.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "bob"}, names)

	entries, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, Entry{Username: "bob", Platform: hyperscape.PlatformPSN, ID: "id-bob"}, entries[1])

	removed, err := f.Remove("alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", removed.Username)

	_, err = f.Remove("alice")
	assert.ErrorIs(t, err, ErrNotWatching)

	names, err = f.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, names)
}

func TestFile_YAMLLayout(t *testing.T) {
	f := newFile(t)
	require.NoError(t, f.Save([]Entry{{Username: "alice", Platform: "xbl", ID: "id-1"}}))

	data, err := os.ReadFile(f.Path)
	require.NoError(t, err)
	body := string(data)
	assert.True(t, strings.HasPrefix(body, "players:\n"), body)
	for _, line := range []string{"- username: alice\n", "platform: xbl\n", "id: id-1\n"} {
		assert.Contains(t, body, line)
	}

	_, err = f.Add(Entry{Username: "bob"})
	require.NoError(t, err)
	data, err = os.ReadFile(f.Path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "id: \"\"", "empty IDs are omitted")
}

func TestFile_InvalidYAML(t *testing.T) {
	f := newFile(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.Path), 0o755))
	require.NoError(t, os.WriteFile(f.Path, []byte("players: [unclosed"), 0o644))

	_, err := f.Load()
	assert.Error(t, err)
}

type fakeResolver struct {
	byName map[string]stats.Profile
	byID   map[string]stats.Profile
	calls  int
}

func (r *fakeResolver) GetUser(_ context.Context, platform, username string) (*stats.Profile, error) {
	r.calls++
	p, ok := r.byName[platform+"/"+username]
	if !ok {
		return nil, hyperscape.ErrNotFound
	}
	return &p, nil
}

func (r *fakeResolver) GetUserByID(_ context.Context, id string) (*stats.Profile, error) {
	r.calls++
	p, ok := r.byID[id]
	if !ok {
		return nil, hyperscape.ErrNotFound
	}
	return &p, nil
}

func TestResolve(t *testing.T) {
	resolver := &fakeResolver{
		byName: map[string]stats.Profile{
			"uplay/alice": {ID: "id-alice", Name: "Alice", Platform: "uplay"},
		},
		byID: map[string]stats.Profile{
			"id-carol": {ID: "id-carol", Name: "carol", Platform: "psn"},
		},
	}

	entries := []Entry{
		{Username: "alice"},
		{Username: "bob", Platform: "xbl", ID: "id-bob"},
		{ID: "id-carol"},
		{Username: "ghost", Platform: "uplay"},
	}

	profiles := Resolve(context.Background(), resolver, entries, observability.Discard())
	assert.Equal(t, []stats.Profile{
		{ID: "id-alice", Name: "Alice", Platform: "uplay"},
		{ID: "id-bob", Name: "bob", Platform: "xbl"},
		{ID: "id-carol", Name: "carol", Platform: "psn"},
	}, profiles)
	assert.Equal(t, 3, resolver.calls, "entries with ID and username skip the lookup")
}

func TestRosterFunc_RereadsFile(t *testing.T) {
	f := newFile(t)
	resolver := &fakeResolver{}
	roster := f.RosterFunc(resolver, observability.Discard())

	profiles, err := roster(context.Background())
	require.NoError(t, err)
	assert.Empty(t, profiles)

	_, err = f.Add(Entry{Username: "dave", ID: "id-dave"})
	require.NoError(t, err)

	profiles, err = roster(context.Background())
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "id-dave", profiles[0].ID)
}
