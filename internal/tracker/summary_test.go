package tracker

import (
	"testing"
	"time"

	"hyperwatch/internal/bundle"
	"hyperwatch/internal/stats"

	"github.com/stretchr/testify/assert"
)

func TestSummarize_Solo(t *testing.T) {
	d := &stats.Delta{
		Matches:      1,
		SoloMatches:  1,
		Wins:         1,
		SoloWins:     1,
		SoloLastRank: 1,
		Kills:        7,
		DamageDone:   1200,
		Fusions:      3,
		ChestsBroken: 9,
		KD:           "+0.04",
		Winrate:      "+0.10",
		SoloWinrate:  "+0.25",
		SquadWinrate: "+0.00",
		CareerBests:  stats.CareerBestFlags{Kills: true, Chests: true},
		Weapons: map[string]stats.WeaponDelta{
			"ProtocolV": {Name: "Protocol V", Kills: 5, Damage: 900},
			"Dragonfly": {Name: "Dragonfly", Kills: 2, Damage: 300, Fusions: 2},
		},
		Hacks: map[string]stats.HackDelta{
			"Mine": {Name: "Mine", Fusions: 1},
		},
	}
	b := bundle.Build(time.Now(), bundle.MatchRange{First: 42, Last: 42}, d)

	s := Summarize(alice, b)
	assert.Equal(t, ModeSolo, s.Mode)
	assert.True(t, s.Won)
	assert.Equal(t, int64(1), s.Place)
	assert.Equal(t, int64(1), s.Games)
	assert.Equal(t, "+0.25", s.ModeWinrateChange)
	assert.Equal(t, int64(9), s.Chests)
	assert.True(t, s.PersonalBests.Kills)
	assert.True(t, s.PersonalBests.Chests)
	assert.False(t, s.PersonalBests.Damage)
	assert.True(t, s.CareerBest)

	if assert.NotNil(t, s.Highlights.BestWeapon) && assert.NotNil(t, s.Highlights.SecondWeapon) {
		assert.Equal(t, "Protocol V", s.Highlights.BestWeapon.Name)
		assert.Equal(t, "Dragonfly", s.Highlights.SecondWeapon.Name)
	}
	if assert.NotNil(t, s.Highlights.MostFused) {
		assert.Equal(t, "Dragonfly", s.Highlights.MostFused.Name)
	}
}

func TestSummarize_SquadLoss(t *testing.T) {
	d := &stats.Delta{
		Matches:       1,
		SquadMatches:  1,
		SquadLastRank: 4,
		Assists:       2,
		Revives:       1,
		SquadWinrate:  "-0.30",
	}
	s := Summarize(bob, bundle.Build(time.Now(), bundle.MatchRange{First: 3, Last: 3}, d))

	assert.Equal(t, ModeSquad, s.Mode)
	assert.False(t, s.Won)
	assert.Equal(t, int64(4), s.Place)
	assert.Equal(t, "-0.30", s.ModeWinrateChange)
	assert.Equal(t, int64(2), s.Assists)
	assert.Nil(t, s.Highlights.BestWeapon)
	assert.Nil(t, s.Highlights.MostFused)
}

func TestSummarize_Multi(t *testing.T) {
	d := &stats.Delta{
		Matches:         3,
		SoloMatches:     2,
		Wins:            1,
		SoloWins:        1,
		SoloLastRank:    1,
		SoloTimePlayed:  900,
		SquadTimePlayed: 600,
		CareerBests:     stats.CareerBestFlags{SurvivalTime: true},
	}
	s := Summarize(alice, bundle.Build(time.Now(), bundle.MatchRange{First: 11, Last: 13}, d))

	assert.Equal(t, ModeMulti, s.Mode)
	assert.Equal(t, int64(3), s.Games)
	assert.Equal(t, int64(1), s.SoloWins)
	assert.False(t, s.Won, "won is only set for single matches")
	assert.Zero(t, s.Place)
	assert.Empty(t, s.ModeWinrateChange)
	assert.Equal(t, stats.Seconds(1500), s.TimePlayed)
	assert.True(t, s.CareerBest, "career bests outside PersonalBests still count")
}

func TestSummarize_NilDiff(t *testing.T) {
	s := Summarize(alice, bundle.Bundle{Range: bundle.MatchRange{First: 1, Last: 1}})
	assert.Equal(t, ModeSquad, s.Mode)
	assert.Equal(t, int64(1), s.Games)
}
