package stats

import (
	"errors"
	"fmt"
)

// ErrSchemaMismatch is returned when the two snapshots of a diff cannot be
// aligned, e.g. the after snapshot knows an item the before snapshot does not.
var ErrSchemaMismatch = errors.New("schema mismatch")

// Delta mirrors Snapshot. Counters hold after-before, carry-through fields hold
// the after value, rates hold a signed two-decimal string and career bests are
// flags set when a new personal best was reached.
type Delta struct {
	Wins         int64 `json:"wins"`
	CrownWins    int64 `json:"crown_wins"`
	Damage       int64 `json:"damage"`
	Assists      int64 `json:"assists"`
	Matches      int64 `json:"matches"`
	ChestsBroken int64 `json:"chests_broken"`
	CrownPickups int64 `json:"crown_pickups"`
	DamageDone   int64 `json:"damage_done"`
	Kills        int64 `json:"kills"`
	Fusions      int64 `json:"fusions"`
	Revives      int64 `json:"revives"`

	LastRank      int64   `json:"last_rank"`
	SoloLastRank  int64   `json:"solo_last_rank"`
	SquadLastRank int64   `json:"squad_last_rank"`
	TimePlayed    Seconds `json:"time_played"`

	SoloCrownWins   int64   `json:"solo_crown_wins"`
	SquadCrownWins  int64   `json:"squad_crown_wins"`
	SoloTimePlayed  Seconds `json:"solo_time_played"`
	SquadTimePlayed Seconds `json:"squad_time_played"`
	SoloMatches     int64   `json:"solo_matches"`
	SquadMatches    int64   `json:"squad_matches"`
	SoloWins        int64   `json:"solo_wins"`
	SquadWins       int64   `json:"squad_wins"`

	CareerBests CareerBestFlags `json:"career_bests"`

	WeaponHeadshotDamage int64   `json:"weapon_headshot_damage"`
	WeaponBodyDamage     int64   `json:"weapon_body_damage"`
	DamageByItems        int64   `json:"damage_by_items"`
	AverageKillsPerMatch float64 `json:"average_kills_per_match"`
	AverageDamagePerKill float64 `json:"average_damage_per_kill"`
	Losses               int64   `json:"losses"`
	SoloLosses           int64   `json:"solo_losses"`
	SquadLosses          int64   `json:"squad_losses"`

	Winrate                string  `json:"winrate"`
	SoloWinrate            string  `json:"solo_winrate"`
	SquadWinrate           string  `json:"squad_winrate"`
	CrownPickupSuccessRate string  `json:"crown_pickup_success_rate"`
	KD                     string  `json:"kd"`
	HeadshotAccuracy       float64 `json:"headshot_accuracy"`

	Weapons map[string]WeaponDelta `json:"weapons"`
	Hacks   map[string]HackDelta   `json:"hacks"`
}

// CareerBestFlags marks which career bests improved between two snapshots
type CareerBestFlags struct {
	FusedToMax      bool `json:"fused_to_max"`
	Chests          bool `json:"chests"`
	Shockwaved      bool `json:"shockwaved"`
	DamageDone      bool `json:"damage_done"`
	Revealed        bool `json:"revealed"`
	Assists         bool `json:"assists"`
	DamageShielded  bool `json:"damage_shielded"`
	LongRangeKills  bool `json:"long_range_kills"`
	ShortRangeKills bool `json:"short_range_kills"`
	Kills           bool `json:"kills"`
	ItemsFused      bool `json:"items_fused"`
	CriticalDamage  bool `json:"critical_damage"`
	SurvivalTime    bool `json:"survival_time"`
	Healed          bool `json:"healed"`
	Revives         bool `json:"revives"`
	SnaresTriggered bool `json:"snares_triggered"`
	MinesTriggered  bool `json:"mines_triggered"`
}

// Any reports whether at least one personal best was set
func (f CareerBestFlags) Any() bool {
	return f.FusedToMax || f.Chests || f.Shockwaved || f.DamageDone || f.Revealed ||
		f.Assists || f.DamageShielded || f.LongRangeKills || f.ShortRangeKills ||
		f.Kills || f.ItemsFused || f.CriticalDamage || f.SurvivalTime || f.Healed ||
		f.Revives || f.SnaresTriggered || f.MinesTriggered
}

// WeaponDelta is the change in one weapon's stats
type WeaponDelta struct {
	Name             string  `json:"name"`
	Kills            int64   `json:"kills"`
	Damage           int64   `json:"damage"`
	HeadshotDamage   int64   `json:"headshot_damage"`
	Fusions          int64   `json:"fusions"`
	HeadshotAccuracy float64 `json:"headshot_accuracy"`
}

// HackDelta is the change in one hack's stats
type HackDelta struct {
	Name    string `json:"name"`
	Kills   int64  `json:"kills"`
	Damage  int64  `json:"damage"`
	Fusions int64  `json:"fusions"`
}

// FormatSigned renders a rate difference with two decimals and an explicit
// "+" for non-negative values.
func FormatSigned(d float64) string {
	if d < 0 {
		return fmt.Sprintf("%.2f", d)
	}
	return fmt.Sprintf("+%.2f", d)
}

// ComputeDelta diffs two snapshots of the same player. The item maps of the
// result hold exactly the keys of after; a key missing from before fails with
// ErrSchemaMismatch.
func ComputeDelta(before, after *Snapshot) (*Delta, error) {
	if before == nil || after == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrSchemaMismatch)
	}

	weapons, err := diffWeapons(before.Weapons, after.Weapons)
	if err != nil {
		return nil, err
	}
	hacks, err := diffHacks(before.Hacks, after.Hacks)
	if err != nil {
		return nil, err
	}

	return &Delta{
		Wins:         after.Wins - before.Wins,
		CrownWins:    after.CrownWins - before.CrownWins,
		Damage:       after.Damage - before.Damage,
		Assists:      after.Assists - before.Assists,
		Matches:      after.Matches - before.Matches,
		ChestsBroken: after.ChestsBroken - before.ChestsBroken,
		CrownPickups: after.CrownPickups - before.CrownPickups,
		DamageDone:   after.DamageDone - before.DamageDone,
		Kills:        after.Kills - before.Kills,
		Fusions:      after.Fusions - before.Fusions,
		Revives:      after.Revives - before.Revives,

		LastRank:      after.LastRank,
		SoloLastRank:  after.SoloLastRank,
		SquadLastRank: after.SquadLastRank,
		TimePlayed:    after.TimePlayed,

		SoloCrownWins:   after.SoloCrownWins - before.SoloCrownWins,
		SquadCrownWins:  after.SquadCrownWins - before.SquadCrownWins,
		SoloTimePlayed:  after.SoloTimePlayed - before.SoloTimePlayed,
		SquadTimePlayed: after.SquadTimePlayed - before.SquadTimePlayed,
		SoloMatches:     after.SoloMatches - before.SoloMatches,
		SquadMatches:    after.SquadMatches - before.SquadMatches,
		SoloWins:        after.SoloWins - before.SoloWins,
		SquadWins:       after.SquadWins - before.SquadWins,

		CareerBests: diffCareerBests(&before.CareerBests, &after.CareerBests),

		WeaponHeadshotDamage: after.WeaponHeadshotDamage - before.WeaponHeadshotDamage,
		WeaponBodyDamage:     after.WeaponBodyDamage - before.WeaponBodyDamage,
		DamageByItems:        after.DamageByItems - before.DamageByItems,
		AverageKillsPerMatch: after.AverageKillsPerMatch - before.AverageKillsPerMatch,
		AverageDamagePerKill: after.AverageDamagePerKill - before.AverageDamagePerKill,
		Losses:               after.Losses - before.Losses,
		SoloLosses:           after.SoloLosses - before.SoloLosses,
		SquadLosses:          after.SquadLosses - before.SquadLosses,

		Winrate:                FormatSigned(after.Winrate - before.Winrate),
		SoloWinrate:            FormatSigned(after.SoloWinrate - before.SoloWinrate),
		SquadWinrate:           FormatSigned(after.SquadWinrate - before.SquadWinrate),
		CrownPickupSuccessRate: FormatSigned(after.CrownPickupSuccessRate - before.CrownPickupSuccessRate),
		KD:                     FormatSigned(after.KD - before.KD),
		HeadshotAccuracy:       after.HeadshotAccuracy - before.HeadshotAccuracy,

		Weapons: weapons,
		Hacks:   hacks,
	}, nil
}

func diffCareerBests(before, after *CareerBests) CareerBestFlags {
	return CareerBestFlags{
		FusedToMax:      after.FusedToMax-before.FusedToMax > 0,
		Chests:          after.Chests-before.Chests > 0,
		Shockwaved:      after.Shockwaved-before.Shockwaved > 0,
		DamageDone:      after.DamageDone-before.DamageDone > 0,
		Revealed:        after.Revealed-before.Revealed > 0,
		Assists:         after.Assists-before.Assists > 0,
		DamageShielded:  after.DamageShielded-before.DamageShielded > 0,
		LongRangeKills:  after.LongRangeKills-before.LongRangeKills > 0,
		ShortRangeKills: after.ShortRangeKills-before.ShortRangeKills > 0,
		Kills:           after.Kills-before.Kills > 0,
		ItemsFused:      after.ItemsFused-before.ItemsFused > 0,
		CriticalDamage:  after.CriticalDamage-before.CriticalDamage > 0,
		SurvivalTime:    after.SurvivalTime-before.SurvivalTime > 0,
		Healed:          after.Healed-before.Healed > 0,
		Revives:         after.Revives-before.Revives > 0,
		SnaresTriggered: after.SnaresTriggered-before.SnaresTriggered > 0,
		MinesTriggered:  after.MinesTriggered-before.MinesTriggered > 0,
	}
}

func diffWeapons(before, after Weapons) (map[string]WeaponDelta, error) {
	out := make(map[string]WeaponDelta, len(after))
	for key, item := range after {
		prev, ok := before[key]
		if !ok {
			return nil, fmt.Errorf("%w: weapon %q missing from baseline", ErrSchemaMismatch, key)
		}
		out[key] = WeaponDelta{
			Name:             item.Name,
			Kills:            item.Kills - prev.Kills,
			Damage:           item.Damage - prev.Damage,
			HeadshotDamage:   item.HeadshotDamage - prev.HeadshotDamage,
			Fusions:          item.Fusions - prev.Fusions,
			HeadshotAccuracy: item.HeadshotAccuracy - prev.HeadshotAccuracy,
		}
	}
	return out, nil
}

func diffHacks(before, after Hacks) (map[string]HackDelta, error) {
	out := make(map[string]HackDelta, len(after))
	for key, item := range after {
		prev, ok := before[key]
		if !ok {
			return nil, fmt.Errorf("%w: hack %q missing from baseline", ErrSchemaMismatch, key)
		}
		out[key] = HackDelta{
			Name:    item.Name,
			Kills:   item.Kills - prev.Kills,
			Damage:  item.Damage - prev.Damage,
			Fusions: item.Fusions - prev.Fusions,
		}
	}
	return out, nil
}
