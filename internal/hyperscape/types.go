package hyperscape

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"hyperwatch/internal/stats"

	json "github.com/goccy/go-json"
)

// number decodes a JSON number or a numeric string ("12.5", "12.5%", "").
// Upstream is inconsistent about which one it sends.
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("invalid numeric string %q", s)
		}
		*n = number(f)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", data)
	}
	*n = number(f)
	return nil
}

func (n number) count() int64 {
	return int64(math.Round(float64(n)))
}

// perc floors a percentage to two decimals
func (n number) perc() float64 {
	return math.Floor(float64(n)*100) / 100
}

type wireProfile struct {
	ID       string `json:"p_id"`
	Name     string `json:"p_name"`
	Platform string `json:"p_platform"`
}

type statsResponse struct {
	Status int         `json:"status"`
	Player wireProfile `json:"player"`
	Data   struct {
		Stats   wireStats             `json:"stats"`
		Weapons map[string]wireWeapon `json:"weapons"`
		Hacks   map[string]wireHack   `json:"hacks"`
	} `json:"data"`
}

type wireStats struct {
	Wins            number        `json:"wins"`
	CrownWins       number        `json:"crown_wins"`
	Damage          number        `json:"damage"`
	Assists         number        `json:"assists"`
	Matches         number        `json:"matches"`
	ChestsBroken    number        `json:"chests_broken"`
	CrownPickups    number        `json:"crown_pickups"`
	DamageDone      number        `json:"damage_done"`
	Kills           number        `json:"kills"`
	Fusions         number        `json:"fusions"`
	LastRank        number        `json:"last_rank"`
	Revives         number        `json:"revives"`
	TimePlayed      stats.Seconds `json:"time_played"`
	SoloCrownWins   number        `json:"solo_crown_wins"`
	SquadCrownWins  number        `json:"squad_crown_wins"`
	SoloLastRank    number        `json:"solo_last_rank"`
	SquadLastRank   number        `json:"squad_last_rank"`
	SoloTimePlayed  stats.Seconds `json:"solo_time_played"`
	SquadTimePlayed stats.Seconds `json:"squad_time_played"`
	SoloMatches     number        `json:"solo_matches"`
	SquadMatches    number        `json:"squad_matches"`
	SoloWins        number        `json:"solo_wins"`
	SquadWins       number        `json:"squad_wins"`

	BestFusedToMax      number        `json:"careerbest_fused_to_max"`
	BestChests          number        `json:"careerbest_chests"`
	BestShockwaved      number        `json:"careerbest_shockwaved"`
	BestDamageDone      number        `json:"careerbest_damage_done"`
	BestRevealed        number        `json:"careerbest_revealed"`
	BestAssists         number        `json:"careerbest_assists"`
	BestDamageShielded  number        `json:"careerbest_damage_shielded"`
	BestLongRangeKills  number        `json:"careerbest_long_range_final_blows"`
	BestShortRangeKills number        `json:"careerbest_short_range_final_blows"`
	BestKills           number        `json:"careerbest_kills"`
	BestItemsFused      number        `json:"careerbest_item_fused"`
	BestCriticalDamage  number        `json:"careerbest_critical_damage"`
	BestSurvivalTime    stats.Seconds `json:"careerbest_survival_time"`
	BestHealed          number        `json:"careerbest_healed"`
	BestRevives         number        `json:"careerbest_revives"`
	BestSnaresTriggered number        `json:"careerbest_snare_triggered"`
	BestMinesTriggered  number        `json:"careerbest_mines_triggered"`

	WeaponHeadshotDamage number `json:"weapon_headshot_damage"`
	WeaponBodyDamage     number `json:"weapon_body_damage"`
	DamageByItems        number `json:"damage_by_items"`
	AvgKillsPerMatch     number `json:"avg_kills_per_match"`
	AvgDamagePerKill     number `json:"avg_dmg_per_kill"`
	Losses               number `json:"losses"`
	SoloLosses           number `json:"solo_losses"`
	SquadLosses          number `json:"squad_losses"`
	Winrate              number `json:"winrate"`
	SoloWinrate          number `json:"solo_winrate"`
	SquadWinrate         number `json:"squad_winrate"`
	CrownPickSuccessRate number `json:"crown_pick_success_rate"`
	KD                   number `json:"kd"`
	HeadshotAccuracy     number `json:"headshot_accuracy"`
}

type wireWeapon struct {
	Kills          number `json:"kills"`
	Damage         number `json:"damage"`
	HeadshotDamage number `json:"headshot_damage"`
	Fusions        number `json:"fusions"`
	HSAccuracy     number `json:"hs_accuracy"`
}

type wireHack struct {
	Kills   number `json:"kills"`
	Damage  number `json:"damage"`
	Fusions number `json:"fusions"`
}

type searchResponse struct {
	Status  int                    `json:"status"`
	Players map[string]searchEntry `json:"players"`
}

type searchEntry struct {
	Profile wireProfile `json:"profile"`
}

// first returns the top search hit. Entries are keyed by their rank, so keys
// are compared numerically when possible.
func (r *searchResponse) first() (searchEntry, bool) {
	if len(r.Players) == 0 {
		return searchEntry{}, false
	}
	keys := make([]string, 0, len(r.Players))
	for k := range r.Players {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return r.Players[keys[0]], true
}

func (r *statsResponse) toPlayer() (*stats.Player, error) {
	s := r.Data.Stats

	weapons, err := mapWeapons(r.Data.Weapons)
	if err != nil {
		return nil, err
	}
	hacks, err := mapHacks(r.Data.Hacks)
	if err != nil {
		return nil, err
	}

	return &stats.Player{
		Profile: stats.Profile{
			ID:       r.Player.ID,
			Name:     r.Player.Name,
			Platform: r.Player.Platform,
		},
		Stats: stats.Snapshot{
			Wins:            s.Wins.count(),
			CrownWins:       s.CrownWins.count(),
			Damage:          s.Damage.count(),
			Assists:         s.Assists.count(),
			Matches:         s.Matches.count(),
			ChestsBroken:    s.ChestsBroken.count(),
			CrownPickups:    s.CrownPickups.count(),
			DamageDone:      s.DamageDone.count(),
			Kills:           s.Kills.count(),
			Fusions:         s.Fusions.count(),
			Revives:         s.Revives.count(),
			LastRank:        s.LastRank.count(),
			SoloLastRank:    s.SoloLastRank.count(),
			SquadLastRank:   s.SquadLastRank.count(),
			TimePlayed:      s.TimePlayed,
			SoloCrownWins:   s.SoloCrownWins.count(),
			SquadCrownWins:  s.SquadCrownWins.count(),
			SoloTimePlayed:  s.SoloTimePlayed,
			SquadTimePlayed: s.SquadTimePlayed,
			SoloMatches:     s.SoloMatches.count(),
			SquadMatches:    s.SquadMatches.count(),
			SoloWins:        s.SoloWins.count(),
			SquadWins:       s.SquadWins.count(),

			CareerBests: stats.CareerBests{
				FusedToMax:      s.BestFusedToMax.count(),
				Chests:          s.BestChests.count(),
				Shockwaved:      s.BestShockwaved.count(),
				DamageDone:      s.BestDamageDone.count(),
				Revealed:        s.BestRevealed.count(),
				Assists:         s.BestAssists.count(),
				DamageShielded:  s.BestDamageShielded.count(),
				LongRangeKills:  s.BestLongRangeKills.count(),
				ShortRangeKills: s.BestShortRangeKills.count(),
				Kills:           s.BestKills.count(),
				ItemsFused:      s.BestItemsFused.count(),
				CriticalDamage:  s.BestCriticalDamage.count(),
				SurvivalTime:    s.BestSurvivalTime,
				Healed:          s.BestHealed.count(),
				Revives:         s.BestRevives.count(),
				SnaresTriggered: s.BestSnaresTriggered.count(),
				MinesTriggered:  s.BestMinesTriggered.count(),
			},

			WeaponHeadshotDamage: s.WeaponHeadshotDamage.count(),
			WeaponBodyDamage:     s.WeaponBodyDamage.count(),
			DamageByItems:        s.DamageByItems.count(),
			AverageKillsPerMatch: float64(s.AvgKillsPerMatch),
			AverageDamagePerKill: float64(s.AvgDamagePerKill),
			Losses:               s.Losses.count(),
			SoloLosses:           s.SoloLosses.count(),
			SquadLosses:          s.SquadLosses.count(),

			Winrate:                s.Winrate.perc(),
			SoloWinrate:            s.SoloWinrate.perc(),
			SquadWinrate:           s.SquadWinrate.perc(),
			CrownPickupSuccessRate: s.CrownPickSuccessRate.perc(),
			KD:                     float64(s.KD),
			HeadshotAccuracy:       s.HeadshotAccuracy.perc(),

			Weapons: weapons,
			Hacks:   hacks,
		},
	}, nil
}

func itemKey(kind, name string, seen map[string]string) (string, error) {
	key := stats.ItemKey(name)
	if key == "" {
		return "", fmt.Errorf("%w: %s %q has no usable key", stats.ErrSchemaMismatch, kind, name)
	}
	if other, dup := seen[key]; dup {
		return "", fmt.Errorf("%w: %ss %q and %q share key %q", stats.ErrSchemaMismatch, kind, other, name, key)
	}
	seen[key] = name
	return key, nil
}

func mapWeapons(in map[string]wireWeapon) (stats.Weapons, error) {
	out := make(stats.Weapons, len(in))
	seen := make(map[string]string, len(in))
	for name, w := range in {
		key, err := itemKey("weapon", name, seen)
		if err != nil {
			return nil, err
		}
		out[key] = stats.WeaponStats{
			Name:             name,
			Kills:            w.Kills.count(),
			Damage:           w.Damage.count(),
			HeadshotDamage:   w.HeadshotDamage.count(),
			Fusions:          w.Fusions.count(),
			HeadshotAccuracy: float64(w.HSAccuracy),
		}
	}
	return out, nil
}

func mapHacks(in map[string]wireHack) (stats.Hacks, error) {
	out := make(stats.Hacks, len(in))
	seen := make(map[string]string, len(in))
	for name, h := range in {
		key, err := itemKey("hack", name, seen)
		if err != nil {
			return nil, err
		}
		out[key] = stats.HackStats{
			Name:    name,
			Kills:   h.Kills.count(),
			Damage:  h.Damage.count(),
			Fusions: h.Fusions.count(),
		}
	}
	return out, nil
}
