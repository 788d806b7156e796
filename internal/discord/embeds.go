package discord

import (
	"fmt"
	"strings"

	"hyperwatch/internal/stats"
	"hyperwatch/internal/tracker"

	"github.com/dustin/go-humanize"
)

// colorSummary is the accent of every summary embed (0x6977bb)
const colorSummary = 6911931

const footerCareerBest = "New career best 🏆"

var markdownEscaper = strings.NewReplacer("*", `\*`, "`", "\\`", "_", `\_`)

// Escape neutralises the markdown characters Discord would interpret in a name
func Escape(s string) string {
	return markdownEscaper.Replace(s)
}

// NewSummaryPayload renders a session summary as a single embed
func NewSummaryPayload(s tracker.Summary) WebhookPayload {
	var embed Embed
	switch s.Mode {
	case tracker.ModeMulti:
		embed = multiEmbed(s)
	default:
		embed = singleEmbed(s)
	}
	embed.Color = colorSummary
	if s.CareerBest {
		embed.Footer = &EmbedFooter{Text: footerCareerBest}
	}
	return WebhookPayload{Embeds: []Embed{embed}}
}

func singleEmbed(s tracker.Summary) Embed {
	result := "finished"
	if s.Won {
		result = "won"
	}

	var lines overview
	lines.add("Game #", code(humanize.Comma(s.Range.First)))
	lines.counter("Kills", s.Kills, s.PersonalBests.Kills)
	if s.Mode == tracker.ModeSquad {
		lines.counter("Assists", s.Assists, s.PersonalBests.Assists)
		lines.counter("Revives", s.Revives, s.PersonalBests.Revives)
	}
	lines.counter("Damage", s.DamageDone, s.PersonalBests.Damage)
	lines.add("KD change", code(s.KDChange))
	if s.Mode == tracker.ModeSquad {
		lines.add("Squad win rate change", code(s.ModeWinrateChange+"%"))
	} else {
		lines.add("Solo win rate change", code(s.ModeWinrateChange+"%"))
	}
	lines.counter("Fusions", s.Fusions, s.PersonalBests.ItemsFused)
	lines.counter("Chests", s.Chests, s.PersonalBests.Chests)
	lines.highlights(s.Highlights)

	return Embed{
		Title:       "Game recorded 🕹",
		Description: fmt.Sprintf("%s just %s a %s game (Place #%d)", Escape(s.Player.Name), result, s.Mode, s.Place),
		Fields:      []EmbedField{{Name: "Game Overview", Value: lines.String()}},
	}
}

func multiEmbed(s tracker.Summary) Embed {
	var lines overview
	lines.add("Games", fmt.Sprintf("%s (%s)",
		code(humanize.Comma(s.Range.First)+" - "+humanize.Comma(s.Range.Last)), humanize.Comma(s.Games)))
	if s.TimePlayed > 0 {
		lines.add("Time played", code(s.TimePlayed.String()))
	}
	lines.add("Solo wins", fmt.Sprintf("%s (%s)", code(humanize.Comma(s.SoloWins)), code(s.SoloWinrateChange+"%")))
	lines.add("Squad wins", fmt.Sprintf("%s (%s)", code(humanize.Comma(s.SquadWins)), code(s.SquadWinrateChange+"%")))
	lines.counter("Kills", s.Kills, s.PersonalBests.Kills)
	lines.counter("Assists", s.Assists, s.PersonalBests.Assists)
	lines.counter("Revives", s.Revives, s.PersonalBests.Revives)
	lines.counter("Damage", s.DamageDone, s.PersonalBests.Damage)
	lines.add("KD change", code(s.KDChange))
	lines.add("Win rate change", code(s.WinrateChange+"%"))
	lines.counter("Fusions", s.Fusions, s.PersonalBests.ItemsFused)
	lines.counter("Chests", s.Chests, s.PersonalBests.Chests)
	lines.highlights(s.Highlights)

	return Embed{
		Title:       "Games recorded 🕹",
		Description: "Multiple games recorded for " + Escape(s.Player.Name),
		Fields:      []EmbedField{{Name: "Games Overview", Value: lines.String()}},
	}
}

// overview accumulates the "**Label**: value" lines of an embed field
type overview struct {
	lines []string
}

func (o *overview) add(label, value string) {
	o.lines = append(o.lines, "**"+label+"**: "+value)
}

func (o *overview) counter(label string, n int64, pb bool) {
	value := code(humanize.Comma(n))
	if pb {
		value += " (PB)"
	}
	o.add(label, value)
}

func (o *overview) highlights(h stats.Highlights) {
	o.add("Best weapon", weaponLine(h.BestWeapon))
	o.add("Second best weapon", weaponLine(h.SecondWeapon))

	if f := h.MostFused; f != nil {
		o.add("Most fused item", fmt.Sprintf("%s (%s %s)", f.Name, code(humanize.Comma(f.Fusions)), plural(f.Fusions, "fusion")))
	} else {
		o.add("Most fused item", "N/A")
	}
}

func (o *overview) String() string {
	return strings.Join(o.lines, "\n")
}

func weaponLine(w *stats.WeaponDelta) string {
	if w == nil {
		return "N/A"
	}
	return fmt.Sprintf("%s (%s %s, %s damage)", w.Name,
		code(humanize.Comma(w.Kills)), plural(w.Kills, "kill"), code(humanize.Comma(w.Damage)))
}

func code(s string) string {
	return "`" + s + "`"
}

func plural(n int64, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
