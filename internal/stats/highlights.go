package stats

import (
	"sort"
)

// ItemKind distinguishes weapons from hacks in mixed rankings
type ItemKind string

const (
	KindWeapon ItemKind = "weapon"
	KindHack   ItemKind = "hack"
)

// ItemDelta is a weapon or hack change in a mixed ranking
type ItemDelta struct {
	Key     string   `json:"key"`
	Kind    ItemKind `json:"kind"`
	Name    string   `json:"name"`
	Kills   int64    `json:"kills"`
	Damage  int64    `json:"damage"`
	Fusions int64    `json:"fusions"`
}

// Highlights are the ranked facts surfaced in a summary. Nil entries mean no
// item qualified.
type Highlights struct {
	BestWeapon   *WeaponDelta `json:"best_weapon,omitempty"`
	SecondWeapon *WeaponDelta `json:"second_weapon,omitempty"`
	MostFused    *ItemDelta   `json:"most_fused,omitempty"`
}

// WeaponScore is the ranking score of a weapon: (kills + 1) * damage
func WeaponScore(w WeaponDelta) int64 {
	return (w.Kills + 1) * w.Damage
}

// RankWeapons drops weapons with a zero score (i.e. no damage dealt) and
// orders the rest by descending score. Equal scores keep ascending key order.
func RankWeapons(weapons map[string]WeaponDelta) []WeaponDelta {
	ranked := make([]WeaponDelta, 0, len(weapons))
	for _, key := range sortedKeys(weapons) {
		w := weapons[key]
		if WeaponScore(w) == 0 {
			continue
		}
		ranked = append(ranked, w)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return WeaponScore(ranked[i]) > WeaponScore(ranked[j])
	})
	return ranked
}

// RankFused merges weapons and hacks, drops unfused items and orders the rest
// by descending fusions. Equal counts keep weapons before hacks, each in
// ascending key order.
func RankFused(weapons map[string]WeaponDelta, hacks map[string]HackDelta) []ItemDelta {
	ranked := make([]ItemDelta, 0, len(weapons)+len(hacks))
	for _, key := range sortedKeys(weapons) {
		w := weapons[key]
		if w.Fusions == 0 {
			continue
		}
		ranked = append(ranked, ItemDelta{Key: key, Kind: KindWeapon, Name: w.Name, Kills: w.Kills, Damage: w.Damage, Fusions: w.Fusions})
	}
	for _, key := range sortedKeys(hacks) {
		h := hacks[key]
		if h.Fusions == 0 {
			continue
		}
		ranked = append(ranked, ItemDelta{Key: key, Kind: KindHack, Name: h.Name, Kills: h.Kills, Damage: h.Damage, Fusions: h.Fusions})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fusions > ranked[j].Fusions
	})
	return ranked
}

// PickHighlights selects the best and second-best weapon and the most fused item
func PickHighlights(d *Delta) Highlights {
	var h Highlights
	if d == nil {
		return h
	}

	weapons := RankWeapons(d.Weapons)
	if len(weapons) > 0 {
		h.BestWeapon = &weapons[0]
	}
	if len(weapons) > 1 {
		h.SecondWeapon = &weapons[1]
	}

	if fused := RankFused(d.Weapons, d.Hacks); len(fused) > 0 {
		h.MostFused = &fused[0]
	}
	return h
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
