package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRankWeapons_ScoreOrder tests exclusion of unused weapons and score ordering
func TestRankWeapons_ScoreOrder(t *testing.T) {
	weapons := map[string]WeaponDelta{
		"A": {Name: "A", Kills: 3, Damage: 100},
		"B": {Name: "B", Kills: 1, Damage: 310},
		"C": {Name: "C", Kills: 0, Damage: 0},
	}

	ranked := RankWeapons(weapons)

	require.Len(t, ranked, 2)
	assert.Equal(t, "B", ranked[0].Name) // (1+1)*310 = 620
	assert.Equal(t, "A", ranked[1].Name) // (3+1)*100 = 400
}

// TestRankWeapons_ZeroDamageKills tests that kills without damage do not qualify
func TestRankWeapons_ZeroDamageKills(t *testing.T) {
	ranked := RankWeapons(map[string]WeaponDelta{
		"Ghost": {Name: "Ghost", Kills: 2, Damage: 0},
	})
	assert.Empty(t, ranked)
}

// TestRankWeapons_TiesKeepKeyOrder tests that equal scores are ordered by key
func TestRankWeapons_TiesKeepKeyOrder(t *testing.T) {
	weapons := map[string]WeaponDelta{
		"Zeta":  {Name: "Zeta", Kills: 1, Damage: 50},
		"Alpha": {Name: "Alpha", Kills: 0, Damage: 100},
		"Mid":   {Name: "Mid", Kills: 4, Damage: 20},
	}

	for i := 0; i < 20; i++ {
		ranked := RankWeapons(weapons)
		require.Len(t, ranked, 3)
		assert.Equal(t, []string{"Alpha", "Mid", "Zeta"}, []string{ranked[0].Name, ranked[1].Name, ranked[2].Name})
	}
}

// TestRankFused_MostFused tests that hacks and weapons compete for most fused
func TestRankFused_MostFused(t *testing.T) {
	ranked := RankFused(
		map[string]WeaponDelta{"X": {Name: "X", Fusions: 2}, "Idle": {Name: "Idle"}},
		map[string]HackDelta{"Y": {Name: "Y", Fusions: 5}},
	)

	require.Len(t, ranked, 2)
	assert.Equal(t, "Y", ranked[0].Name)
	assert.Equal(t, KindHack, ranked[0].Kind)
	assert.Equal(t, "X", ranked[1].Name)
	assert.Equal(t, KindWeapon, ranked[1].Kind)
}

// TestRankFused_TiesPreferWeapons tests tie ordering across item kinds
func TestRankFused_TiesPreferWeapons(t *testing.T) {
	ranked := RankFused(
		map[string]WeaponDelta{"Harpy": {Name: "Harpy", Fusions: 3}},
		map[string]HackDelta{"Armor": {Name: "Armor", Fusions: 3}},
	)

	require.Len(t, ranked, 2)
	assert.Equal(t, "Harpy", ranked[0].Name)
	assert.Equal(t, "Armor", ranked[1].Name)
}

// TestPickHighlights tests highlight selection from a computed delta
func TestPickHighlights(t *testing.T) {
	before := sampleSnapshot()
	after := afterOneMatch(before)

	d, err := ComputeDelta(before, after)
	require.NoError(t, err)

	h := PickHighlights(d)

	require.NotNil(t, h.BestWeapon)
	assert.Equal(t, "Protocol V", h.BestWeapon.Name)
	assert.Nil(t, h.SecondWeapon)
	require.NotNil(t, h.MostFused)
	assert.Equal(t, "Mine", h.MostFused.Name)
	assert.Equal(t, int64(2), h.MostFused.Fusions)
}

// TestPickHighlights_Empty tests that a quiet session yields no highlights
func TestPickHighlights_Empty(t *testing.T) {
	s := sampleSnapshot()
	d, err := ComputeDelta(s, s)
	require.NoError(t, err)

	h := PickHighlights(d)
	assert.Nil(t, h.BestWeapon)
	assert.Nil(t, h.SecondWeapon)
	assert.Nil(t, h.MostFused)

	assert.Equal(t, Highlights{}, PickHighlights(nil))
}
