// Package stats holds the cumulative player statistics schema and the logic that
// turns two observations of it into a per-session delta and its highlights.
package stats

import (
	"strings"
	"unicode"
)

// Profile identifies one watched player
type Profile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Platform string `json:"platform"`
}

// Player is a profile together with its latest lifetime statistics
type Player struct {
	Profile Profile  `json:"profile"`
	Stats   Snapshot `json:"stats"`
}

// Snapshot is a player's cumulative lifetime statistics at one point in time
type Snapshot struct {
	Wins         int64 `json:"wins"`
	CrownWins    int64 `json:"crown_wins"`
	Damage       int64 `json:"damage"` // damage taken
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

	CareerBests CareerBests `json:"career_bests"`

	WeaponHeadshotDamage int64   `json:"weapon_headshot_damage"`
	WeaponBodyDamage     int64   `json:"weapon_body_damage"`
	DamageByItems        int64   `json:"damage_by_items"`
	AverageKillsPerMatch float64 `json:"average_kills_per_match"`
	AverageDamagePerKill float64 `json:"average_damage_per_kill"`
	Losses               int64   `json:"losses"`
	SoloLosses           int64   `json:"solo_losses"`
	SquadLosses          int64   `json:"squad_losses"`

	// Rates are percentages (or a ratio for KD) as reported upstream.
	Winrate                float64 `json:"winrate"`
	SoloWinrate            float64 `json:"solo_winrate"`
	SquadWinrate           float64 `json:"squad_winrate"`
	CrownPickupSuccessRate float64 `json:"crown_pickup_success_rate"`
	KD                     float64 `json:"kd"`
	HeadshotAccuracy       float64 `json:"headshot_accuracy"`

	Weapons Weapons `json:"weapons"`
	Hacks   Hacks   `json:"hacks"`
}

// CareerBests are the best single-match values ever recorded for a player.
// Every field only grows over time.
type CareerBests struct {
	FusedToMax      int64   `json:"fused_to_max"`
	Chests          int64   `json:"chests"`
	Shockwaved      int64   `json:"shockwaved"`
	DamageDone      int64   `json:"damage_done"`
	Revealed        int64   `json:"revealed"`
	Assists         int64   `json:"assists"`
	DamageShielded  int64   `json:"damage_shielded"`
	LongRangeKills  int64   `json:"long_range_kills"`
	ShortRangeKills int64   `json:"short_range_kills"`
	Kills           int64   `json:"kills"`
	ItemsFused      int64   `json:"items_fused"`
	CriticalDamage  int64   `json:"critical_damage"`
	SurvivalTime    Seconds `json:"survival_time"`
	Healed          int64   `json:"healed"`
	Revives         int64   `json:"revives"`
	SnaresTriggered int64   `json:"snares_triggered"`
	MinesTriggered  int64   `json:"mines_triggered"`
}

// WeaponStats are the lifetime stats of a single weapon
type WeaponStats struct {
	Name             string  `json:"name"`
	Kills            int64   `json:"kills"`
	Damage           int64   `json:"damage"`
	HeadshotDamage   int64   `json:"headshot_damage"`
	Fusions          int64   `json:"fusions"`
	HeadshotAccuracy float64 `json:"headshot_accuracy"`
}

// HackStats are the lifetime stats of a single hack
type HackStats struct {
	Name    string `json:"name"`
	Kills   int64  `json:"kills"`
	Damage  int64  `json:"damage"`
	Fusions int64  `json:"fusions"`
}

// Weapons maps an item key (see ItemKey) to weapon stats
type Weapons map[string]WeaponStats

// Hacks maps an item key (see ItemKey) to hack stats
type Hacks map[string]HackStats

// ItemKey derives the map key of a weapon or hack from its display name by
// keeping only ASCII letters ("Protocol V" -> "ProtocolV").
func ItemKey(displayName string) string {
	var b strings.Builder
	b.Grow(len(displayName))
	for _, r := range displayName {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
