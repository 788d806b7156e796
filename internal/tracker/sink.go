package tracker

import (
	"context"
	"errors"
	"log/slog"
)

// SummarySink receives the summary of every recorded session
type SummarySink interface {
	Publish(ctx context.Context, s Summary) error
}

// SinkFunc adapts a function to SummarySink
type SinkFunc func(ctx context.Context, s Summary) error

// Publish calls f
func (f SinkFunc) Publish(ctx context.Context, s Summary) error {
	return f(ctx, s)
}

// LogSink writes summaries to a structured logger
type LogSink struct {
	Logger *slog.Logger
}

// Publish logs the summary facts
func (l LogSink) Publish(ctx context.Context, s Summary) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{
		"component", "summary",
		"player", s.Player.Name,
		"player_id", s.Player.ID,
		"range", s.Range.String(),
		"games", s.Games,
		"mode", string(s.Mode),
		"kills", s.Kills,
		"damage", s.DamageDone,
		"kd_change", s.KDChange,
		"winrate_change", s.WinrateChange,
	}
	if s.TimePlayed > 0 {
		attrs = append(attrs, "played", s.TimePlayed.Duration())
	}
	if s.CareerBest {
		attrs = append(attrs, "career_best", true)
	}
	if s.Mode != ModeMulti {
		attrs = append(attrs, "won", s.Won, "place", s.Place)
	}
	if w := s.Highlights.BestWeapon; w != nil {
		attrs = append(attrs, "best_weapon", w.Name)
	}
	if f := s.Highlights.MostFused; f != nil {
		attrs = append(attrs, "most_fused", f.Name)
	}

	logger.InfoContext(ctx, "summary: session recorded", attrs...)
	return nil
}

// MultiSink fans a summary out to every sink and joins their errors
type MultiSink []SummarySink

// Publish delivers to all sinks even when some fail
func (m MultiSink) Publish(ctx context.Context, s Summary) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
