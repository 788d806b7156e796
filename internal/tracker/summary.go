package tracker

import (
	"hyperwatch/internal/bundle"
	"hyperwatch/internal/stats"
)

// Mode tells which kind of session a summary describes
type Mode string

const (
	ModeSolo  Mode = "solo"
	ModeSquad Mode = "squad"
	// ModeMulti covers more than one match, possibly mixing solo and squad
	ModeMulti Mode = "multi"
)

// PersonalBests marks the career bests improved during the session
type PersonalBests struct {
	Kills      bool `json:"kills"`
	Assists    bool `json:"assists"`
	Revives    bool `json:"revives"`
	Damage     bool `json:"damage"`
	ItemsFused bool `json:"items_fused"`
	Chests     bool `json:"chests"`
}

// Summary is the structured result of one recorded session, handed to a
// SummarySink for presentation.
type Summary struct {
	Player stats.Profile     `json:"player"`
	Range  bundle.MatchRange `json:"range"`
	Games  int64             `json:"games"`
	Mode   Mode              `json:"mode"`

	// Won and Place describe single-match sessions; Place is the last rank
	// in the session's mode.
	Won   bool  `json:"won"`
	Place int64 `json:"place"`

	Kills      int64         `json:"kills"`
	Assists    int64         `json:"assists"`
	Revives    int64         `json:"revives"`
	DamageDone int64         `json:"damage_done"`
	Fusions    int64         `json:"fusions"`
	Chests     int64         `json:"chests"`
	// TimePlayed is the solo plus squad time spent in the session's matches
	TimePlayed stats.Seconds `json:"time_played"`

	KDChange      string `json:"kd_change"`
	WinrateChange string `json:"winrate_change"`
	// ModeWinrateChange is the solo or squad rate for single matches
	ModeWinrateChange string `json:"mode_winrate_change,omitempty"`

	SoloWins           int64  `json:"solo_wins"`
	SquadWins          int64  `json:"squad_wins"`
	SoloWinrateChange  string `json:"solo_winrate_change"`
	SquadWinrateChange string `json:"squad_winrate_change"`

	PersonalBests PersonalBests `json:"personal_bests"`
	// CareerBest is set when any career best improved, including those
	// PersonalBests does not list
	CareerBest bool             `json:"career_best"`
	Highlights stats.Highlights `json:"highlights"`
}

// Summarize selects the facts of a committed bundle
func Summarize(player stats.Profile, b bundle.Bundle) Summary {
	d := b.Diff
	if d == nil {
		d = &stats.Delta{}
	}

	s := Summary{
		Player:     player,
		Range:      b.Range,
		Games:      b.Range.Count(),
		Kills:      d.Kills,
		Assists:    d.Assists,
		Revives:    d.Revives,
		DamageDone: d.DamageDone,
		Fusions:    d.Fusions,
		Chests:     d.ChestsBroken,
		TimePlayed: d.SoloTimePlayed + d.SquadTimePlayed,

		KDChange:           d.KD,
		WinrateChange:      d.Winrate,
		SoloWins:           d.SoloWins,
		SquadWins:          d.SquadWins,
		SoloWinrateChange:  d.SoloWinrate,
		SquadWinrateChange: d.SquadWinrate,

		PersonalBests: PersonalBests{
			Kills:      d.CareerBests.Kills,
			Assists:    d.CareerBests.Assists,
			Revives:    d.CareerBests.Revives,
			Damage:     d.CareerBests.DamageDone,
			ItemsFused: d.CareerBests.ItemsFused,
			Chests:     d.CareerBests.Chests,
		},
		CareerBest: d.CareerBests.Any(),
		Highlights: stats.PickHighlights(d),
	}

	switch {
	case s.Games > 1:
		s.Mode = ModeMulti
	case d.SoloMatches > 0:
		s.Mode = ModeSolo
		s.Won = d.Wins > 0
		s.Place = d.SoloLastRank
		s.ModeWinrateChange = d.SoloWinrate
	default:
		s.Mode = ModeSquad
		s.Won = d.Wins > 0
		s.Place = d.SquadLastRank
		s.ModeWinrateChange = d.SquadWinrate
	}

	return s
}
