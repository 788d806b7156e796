package stats

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Wins:            12,
		CrownWins:       3,
		Damage:          40210,
		Assists:         55,
		Matches:         140,
		ChestsBroken:    900,
		CrownPickups:    7,
		DamageDone:      61200,
		Kills:           230,
		Fusions:         410,
		Revives:         33,
		LastRank:        4,
		SoloLastRank:    4,
		SquadLastRank:   9,
		TimePlayed:      Seconds(180000),
		SoloCrownWins:   1,
		SquadCrownWins:  2,
		SoloTimePlayed:  Seconds(90000),
		SquadTimePlayed: Seconds(90000),
		SoloMatches:     70,
		SquadMatches:    70,
		SoloWins:        5,
		SquadWins:       7,
		CareerBests: CareerBests{
			FusedToMax: 2, Chests: 31, Shockwaved: 6, DamageDone: 2100, Revealed: 8,
			Assists: 5, DamageShielded: 800, LongRangeKills: 3, ShortRangeKills: 7,
			Kills: 11, ItemsFused: 14, CriticalDamage: 900, SurvivalTime: Seconds(1260),
			Healed: 400, Revives: 4, SnaresTriggered: 2, MinesTriggered: 3,
		},
		WeaponHeadshotDamage:   20000,
		WeaponBodyDamage:       35000,
		DamageByItems:          6200,
		AverageKillsPerMatch:   1.64,
		AverageDamagePerKill:   266.08,
		Losses:                 128,
		SoloLosses:             65,
		SquadLosses:            63,
		Winrate:                8.57,
		SoloWinrate:            7.14,
		SquadWinrate:           10,
		CrownPickupSuccessRate: 42.85,
		KD:                     1.82,
		HeadshotAccuracy:       21.3,
		Weapons: Weapons{
			"DragonFly": {Name: "Dragon Fly", Kills: 40, Damage: 9000, HeadshotDamage: 3000, Fusions: 50, HeadshotAccuracy: 20.5},
			"ProtocolV": {Name: "Protocol V", Kills: 60, Damage: 15000, HeadshotDamage: 7000, Fusions: 80, HeadshotAccuracy: 31.2},
			"Harpy":     {Name: "Harpy", Kills: 20, Damage: 5000, HeadshotDamage: 1000, Fusions: 30, HeadshotAccuracy: 12.1},
		},
		Hacks: Hacks{
			"Mine":      {Name: "Mine", Kills: 4, Damage: 1200, Fusions: 20},
			"Shockwave": {Name: "Shockwave", Kills: 1, Damage: 300, Fusions: 11},
		},
	}
}

func cloneSnapshot(s *Snapshot) *Snapshot {
	c := *s
	c.Weapons = make(Weapons, len(s.Weapons))
	for k, v := range s.Weapons {
		c.Weapons[k] = v
	}
	c.Hacks = make(Hacks, len(s.Hacks))
	for k, v := range s.Hacks {
		c.Hacks[k] = v
	}
	return &c
}

// afterOneMatch advances s by one solo match in which the player used the
// Protocol V and fused a mine twice.
func afterOneMatch(s *Snapshot) *Snapshot {
	a := cloneSnapshot(s)
	a.Matches++
	a.SoloMatches++
	a.Kills += 4
	a.DamageDone += 1100
	a.ChestsBroken += 12
	a.Fusions += 3
	a.TimePlayed += 900
	a.SoloTimePlayed += 900
	a.LastRank = 2
	a.SoloLastRank = 2
	a.Winrate = 8.51
	a.KD = 1.84
	a.CareerBests.Chests = 31
	a.CareerBests.Kills = 11
	a.CareerBests.DamageDone = 2100

	w := a.Weapons["ProtocolV"]
	w.Kills += 4
	w.Damage += 1000
	w.Fusions++
	a.Weapons["ProtocolV"] = w

	h := a.Hacks["Mine"]
	h.Fusions += 2
	h.Damage += 100
	a.Hacks["Mine"] = h
	return a
}

// TestComputeDelta_Identity tests that diffing a snapshot with itself yields no change
func TestComputeDelta_Identity(t *testing.T) {
	s := sampleSnapshot()

	d, err := ComputeDelta(s, s)
	require.NoError(t, err)

	assert.Zero(t, d.Wins)
	assert.Zero(t, d.Kills)
	assert.Zero(t, d.Matches)
	assert.Zero(t, d.DamageDone)
	assert.Zero(t, d.SoloTimePlayed)
	assert.Zero(t, d.SquadTimePlayed)
	assert.Zero(t, d.AverageKillsPerMatch)
	assert.Zero(t, d.HeadshotAccuracy)

	// Carry-through fields keep the snapshot's values.
	assert.Equal(t, s.LastRank, d.LastRank)
	assert.Equal(t, s.TimePlayed, d.TimePlayed)
	assert.Equal(t, s.SoloLastRank, d.SoloLastRank)
	assert.Equal(t, s.SquadLastRank, d.SquadLastRank)

	assert.Equal(t, "+0.00", d.Winrate)
	assert.Equal(t, "+0.00", d.KD)
	assert.Equal(t, "+0.00", d.CrownPickupSuccessRate)
	assert.False(t, d.CareerBests.Any())

	require.Len(t, d.Weapons, len(s.Weapons))
	for key, w := range d.Weapons {
		assert.Equal(t, s.Weapons[key].Name, w.Name)
		assert.Zero(t, w.Kills, key)
		assert.Zero(t, w.Damage, key)
		assert.Zero(t, w.Fusions, key)
		assert.Zero(t, w.HeadshotDamage, key)
	}
	require.Len(t, d.Hacks, len(s.Hacks))
	for key, h := range d.Hacks {
		assert.Zero(t, h.Kills, key)
		assert.Zero(t, h.Damage, key)
		assert.Zero(t, h.Fusions, key)
	}
}

// TestComputeDelta_Counters tests the subtraction and carry-through rules
func TestComputeDelta_Counters(t *testing.T) {
	before := sampleSnapshot()
	after := afterOneMatch(before)

	d, err := ComputeDelta(before, after)
	require.NoError(t, err)

	assert.Equal(t, int64(1), d.Matches)
	assert.Equal(t, int64(1), d.SoloMatches)
	assert.Zero(t, d.SquadMatches)
	assert.Equal(t, int64(4), d.Kills)
	assert.Equal(t, int64(1100), d.DamageDone)
	assert.Equal(t, int64(12), d.ChestsBroken)
	assert.Equal(t, int64(3), d.Fusions)
	assert.Equal(t, Seconds(900), d.SoloTimePlayed)
	assert.Zero(t, d.SquadTimePlayed)

	assert.Equal(t, int64(2), d.LastRank)
	assert.Equal(t, after.TimePlayed, d.TimePlayed)

	assert.Equal(t, "-0.06", d.Winrate)
	assert.Equal(t, "+0.02", d.KD)

	pv := d.Weapons["ProtocolV"]
	assert.Equal(t, "Protocol V", pv.Name)
	assert.Equal(t, int64(4), pv.Kills)
	assert.Equal(t, int64(1000), pv.Damage)
	assert.Equal(t, int64(1), pv.Fusions)

	assert.Equal(t, int64(2), d.Hacks["Mine"].Fusions)
	assert.Equal(t, int64(100), d.Hacks["Mine"].Damage)
}

// TestComputeDelta_Additivity tests that diffs over consecutive ranges add up
func TestComputeDelta_Additivity(t *testing.T) {
	a := sampleSnapshot()
	b := afterOneMatch(a)
	c := afterOneMatch(b)
	c.SquadMatches += 2
	c.SquadWins++
	c.Revives += 3

	ab, err := ComputeDelta(a, b)
	require.NoError(t, err)
	bc, err := ComputeDelta(b, c)
	require.NoError(t, err)
	ac, err := ComputeDelta(a, c)
	require.NoError(t, err)

	assert.Equal(t, ab.Matches+bc.Matches, ac.Matches)
	assert.Equal(t, ab.Kills+bc.Kills, ac.Kills)
	assert.Equal(t, ab.DamageDone+bc.DamageDone, ac.DamageDone)
	assert.Equal(t, ab.Fusions+bc.Fusions, ac.Fusions)
	assert.Equal(t, ab.Revives+bc.Revives, ac.Revives)
	assert.Equal(t, ab.SquadMatches+bc.SquadMatches, ac.SquadMatches)
	assert.Equal(t, ab.SquadWins+bc.SquadWins, ac.SquadWins)
	assert.Equal(t, ab.ChestsBroken+bc.ChestsBroken, ac.ChestsBroken)
	assert.Equal(t, ab.SoloTimePlayed+bc.SoloTimePlayed, ac.SoloTimePlayed)

	for key := range ac.Weapons {
		assert.Equal(t, ab.Weapons[key].Kills+bc.Weapons[key].Kills, ac.Weapons[key].Kills, key)
		assert.Equal(t, ab.Weapons[key].Damage+bc.Weapons[key].Damage, ac.Weapons[key].Damage, key)
		assert.Equal(t, ab.Weapons[key].Fusions+bc.Weapons[key].Fusions, ac.Weapons[key].Fusions, key)
	}
	for key := range ac.Hacks {
		assert.Equal(t, ab.Hacks[key].Fusions+bc.Hacks[key].Fusions, ac.Hacks[key].Fusions, key)
	}
}

// TestComputeDelta_CareerBests tests that only strict improvements set a flag
func TestComputeDelta_CareerBests(t *testing.T) {
	before := sampleSnapshot()
	after := cloneSnapshot(before)
	after.CareerBests.Kills = before.CareerBests.Kills + 1
	after.CareerBests.Shockwaved = before.CareerBests.Shockwaved + 2
	after.CareerBests.SurvivalTime = before.CareerBests.SurvivalTime + 30
	after.CareerBests.Chests = before.CareerBests.Chests // equal

	d, err := ComputeDelta(before, after)
	require.NoError(t, err)

	assert.True(t, d.CareerBests.Kills)
	assert.True(t, d.CareerBests.Shockwaved)
	assert.True(t, d.CareerBests.SurvivalTime)
	assert.False(t, d.CareerBests.Chests)
	assert.False(t, d.CareerBests.DamageDone)
	assert.True(t, d.CareerBests.Any())
}

// TestComputeDelta_MissingWeapon tests that an unknown weapon key fails the diff
func TestComputeDelta_MissingWeapon(t *testing.T) {
	before := sampleSnapshot()
	after := cloneSnapshot(before)
	after.Weapons["Skybreaker"] = WeaponStats{Name: "Skybreaker", Kills: 1, Damage: 100}

	_, err := ComputeDelta(before, after)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
	assert.Contains(t, err.Error(), "Skybreaker")
}

// TestComputeDelta_MissingHack tests that an unknown hack key fails the diff
func TestComputeDelta_MissingHack(t *testing.T) {
	before := sampleSnapshot()
	after := cloneSnapshot(before)
	after.Hacks["Teleport"] = HackStats{Name: "Teleport"}

	_, err := ComputeDelta(before, after)
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

// TestComputeDelta_RemovedItem tests that items only in before are dropped
func TestComputeDelta_RemovedItem(t *testing.T) {
	before := sampleSnapshot()
	after := cloneSnapshot(before)
	delete(after.Weapons, "Harpy")

	d, err := ComputeDelta(before, after)
	require.NoError(t, err)
	assert.NotContains(t, d.Weapons, "Harpy")
	assert.Len(t, d.Weapons, len(after.Weapons))
}

// TestComputeDelta_Nil tests that nil snapshots are rejected
func TestComputeDelta_Nil(t *testing.T) {
	_, err := ComputeDelta(nil, sampleSnapshot())
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

// TestFormatSigned tests the signed two-decimal rendering of rate changes
func TestFormatSigned(t *testing.T) {
	tests := []struct {
		before, after float64
		want          string
	}{
		{40.00, 42.50, "+2.50"},
		{42.50, 40.00, "-2.50"},
		{10, 10, "+0.00"},
		{1.5, 1.25, "-0.25"},
		{0, 100, "+100.00"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSigned(tt.after-tt.before), "%v -> %v", tt.before, tt.after)
	}
}

// TestItemKey tests display name normalization
func TestItemKey(t *testing.T) {
	assert.Equal(t, "ProtocolV", ItemKey("Protocol V"))
	assert.Equal(t, "DTap", ItemKey("D-Tap"))
	assert.Equal(t, "MammothMK", ItemKey("Mammoth MK1"))
	assert.Equal(t, "SalvoEPL", ItemKey("Salvo EPL"))
	assert.Equal(t, "", ItemKey("123"))
}
