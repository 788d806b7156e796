// Package tracker runs the roster update loop: it polls every watched player,
// turns new matches into committed bundles and hands their summaries to a sink.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"hyperwatch/internal/bundle"
	"hyperwatch/internal/hyperscape"
	"hyperwatch/internal/observability"
	"hyperwatch/internal/stats"
	"hyperwatch/internal/storage"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrPersistence wraps a baseline or bundle write that failed after all retries
var ErrPersistence = errors.New("persistence failed")

// Source fetches the current stats of a player
type Source interface {
	GetStats(ctx context.Context, id string) (*stats.Player, error)
}

// Baselines maps player IDs to their last accepted snapshot
type Baselines map[string]*stats.Snapshot

// RosterFunc returns the players to sweep; it is called once per cycle
type RosterFunc func(ctx context.Context) ([]stats.Profile, error)

// Config holds the loop timing and retry policy
type Config struct {
	// Interval between sweeps (default: 5 minutes)
	Interval time.Duration
	// PersistRetries is how many times a failed write is retried (default: 3)
	PersistRetries int
	// RetryBackoff is the wait before the first retry; it grows linearly (default: 2s)
	RetryBackoff time.Duration
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval:       5 * time.Minute,
		PersistRetries: 3,
		RetryBackoff:   2 * time.Second,
	}
}

// Outcome of one player's update
type Outcome string

const (
	OutcomeSeeded    Outcome = observability.OutcomeSeeded
	OutcomeUnchanged Outcome = observability.OutcomeUnchanged
	OutcomeUpdated   Outcome = observability.OutcomeUpdated
	OutcomeFailed    Outcome = observability.OutcomeFailed
)

// PlayerResult is the outcome of one player within a sweep
type PlayerResult struct {
	Player  stats.Profile
	Outcome Outcome
	// Range is set when a bundle was committed
	Range *bundle.MatchRange
	Err   error
}

// Report describes one sweep
type Report struct {
	// Skipped is true when the sweep did not run because another was in flight
	Skipped   bool
	Seeded    int
	Unchanged int
	Updated   int
	Failed    int
	Results   []PlayerResult
	Duration  time.Duration
}

func (r *Report) add(res PlayerResult) {
	switch res.Outcome {
	case OutcomeSeeded:
		r.Seeded++
	case OutcomeUnchanged:
		r.Unchanged++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeFailed:
		r.Failed++
	}
	r.Results = append(r.Results, res)
}

// Tracker orchestrates the roster update loop
type Tracker struct {
	config Config

	// External dependencies (injected)
	source    Source
	baselines storage.BaselineStore
	bundles   storage.BundleStore
	sink      SummarySink

	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	// running guards against overlapping sweeps
	running sync.Mutex
}

// Option configures a Tracker
type Option func(*Tracker)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = l
	}
}

// WithMetrics enables Prometheus instruments
func WithMetrics(m *observability.Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// WithClock overrides the time source used to stamp bundles
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// New creates a tracker. A nil sink discards summaries.
func New(source Source, baselines storage.BaselineStore, bundles storage.BundleStore, sink SummarySink, config Config, opts ...Option) *Tracker {
	t := &Tracker{
		config:    config,
		source:    source,
		baselines: baselines,
		bundles:   bundles,
		sink:      sink,
		logger:    slog.Default(),
		tracer:    observability.Tracer(),
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("component", "tracker")
	return t
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run loads the stored baselines and sweeps the roster immediately, then on
// every tick until ctx is cancelled. A tick that arrives while a sweep is
// still running is skipped.
func (t *Tracker) Run(ctx context.Context, roster RosterFunc) error {
	if t.config.Interval <= 0 {
		return fmt.Errorf("invalid interval %s", t.config.Interval)
	}

	baselines, err := t.baselines.Baselines(ctx)
	if err != nil {
		return fmt.Errorf("failed to load baselines: %w", err)
	}
	current := Baselines(baselines)

	t.logger.Info("tracker: starting", "interval", t.config.Interval, "baselines", len(current))

	cycle := func() {
		players, err := roster(ctx)
		if err != nil {
			t.logger.Error("tracker: failed to load roster", "error", err)
			return
		}
		next, report := t.Sweep(ctx, players, current)
		if report.Skipped {
			t.logger.Warn("tracker: previous sweep still running, skipping tick")
			return
		}
		current = next
	}

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	cycle()
	for {
		// Drop a tick that fired while the sweep was running
		select {
		case <-ticker.C:
			t.logger.Warn("tracker: sweep overran interval, skipping tick")
		default:
		}

		select {
		case <-ctx.Done():
			t.logger.Info("tracker: stopping")
			return ctx.Err()
		case <-ticker.C:
			cycle()
		}
	}
}

// Sweep updates every player of the roster once, strictly in order. The
// returned baselines reflect every accepted snapshot; the input map is not
// modified. Per-player failures are recorded in the report and never stop
// the sweep.
func (t *Tracker) Sweep(ctx context.Context, roster []stats.Profile, baselines Baselines) (Baselines, Report) {
	if !t.running.TryLock() {
		return baselines, Report{Skipped: true}
	}
	defer t.running.Unlock()

	start := time.Now()
	ctx, span := t.tracer.Start(ctx, "tracker.sweep", trace.WithAttributes(
		attribute.Int("roster.size", len(roster)),
	))
	defer span.End()

	next := make(Baselines, len(baselines))
	maps.Copy(next, baselines)

	t.logger.InfoContext(ctx, "tracker: gathering player statistics", "players", len(roster))

	var report Report
	for _, player := range roster {
		if ctx.Err() != nil {
			break
		}
		res := t.updatePlayer(ctx, player, next)
		t.metrics.Poll(string(res.Outcome))
		if res.Err != nil {
			t.metrics.Error(errorKind(res.Err))
			t.logger.ErrorContext(ctx, "tracker: player update failed",
				"player", player.Name, "player_id", player.ID, "kind", errorKind(res.Err), "error", res.Err)
		}
		report.add(res)
	}

	report.Duration = time.Since(start)
	t.metrics.Sweep(len(roster), report.Duration)
	span.SetAttributes(
		attribute.Int("players.updated", report.Updated),
		attribute.Int("players.failed", report.Failed),
	)

	t.logger.InfoContext(ctx, "tracker: sweep complete",
		"seeded", report.Seeded, "unchanged", report.Unchanged,
		"updated", report.Updated, "failed", report.Failed, "duration", report.Duration)

	return next, report
}

// updatePlayer runs one player's cycle and advances baselines[player.ID] only
// when every write succeeded.
func (t *Tracker) updatePlayer(ctx context.Context, player stats.Profile, baselines Baselines) PlayerResult {
	ctx, span := t.tracer.Start(ctx, "tracker.update_player", trace.WithAttributes(
		attribute.String("player.id", player.ID),
	))
	defer span.End()
	ctx = observability.WithPlayer(ctx, player.ID)

	res := PlayerResult{Player: player}
	fail := func(err error) PlayerResult {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}

	current, err := t.source.GetStats(ctx, player.ID)
	if err != nil {
		return fail(err)
	}
	after := &current.Stats
	if current.Profile.Name != "" {
		res.Player.Name = current.Profile.Name
	}

	before, ok := baselines[player.ID]
	if !ok || before == nil {
		if err := t.persist(ctx, "set baseline", func(ctx context.Context) error {
			return t.baselines.SetBaseline(ctx, player.ID, after)
		}); err != nil {
			return fail(err)
		}
		baselines[player.ID] = after
		t.logger.InfoContext(ctx, "tracker: loaded initial statistics", "player", res.Player.Name)
		res.Outcome = OutcomeSeeded
		return res
	}

	r, ok := bundle.Segment(before.Matches, after.Matches)
	if !ok {
		t.logger.DebugContext(ctx, "tracker: no new matches", "player", res.Player.Name)
		res.Outcome = OutcomeUnchanged
		return res
	}

	t.logger.InfoContext(ctx, "tracker: new matches found", "player", res.Player.Name, "matches", r.Count())

	delta, err := stats.ComputeDelta(before, after)
	if err != nil {
		return fail(err)
	}

	b := bundle.Build(t.now(), r, delta)
	recorded := true
	if err := t.persist(ctx, "commit bundle", func(ctx context.Context) error {
		err := t.bundles.CommitBundle(ctx, player.ID, b)
		if errors.Is(err, storage.ErrAlreadyCommitted) {
			recorded = false
			return nil
		}
		return err
	}); err != nil {
		return fail(err)
	}
	res.Range = &r

	if recorded {
		t.metrics.Bundle(r.Count())
		if t.sink != nil {
			if err := t.sink.Publish(ctx, Summarize(res.Player, b)); err != nil {
				t.logger.WarnContext(ctx, "tracker: failed to publish summary", "player", res.Player.Name, "error", err)
			}
		}
	} else {
		t.logger.InfoContext(ctx, "tracker: matches already recorded", "player", res.Player.Name, "range", r.String())
	}

	if err := t.persist(ctx, "set baseline", func(ctx context.Context) error {
		return t.baselines.SetBaseline(ctx, player.ID, after)
	}); err != nil {
		return fail(err)
	}
	baselines[player.ID] = after

	res.Outcome = OutcomeUpdated
	return res
}

// persist runs a write, retrying transient failures with linear backoff
func (t *Tracker) persist(ctx context.Context, op string, write func(ctx context.Context) error) error {
	retries := max(t.config.PersistRetries, 0)

	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			t.logger.WarnContext(ctx, "tracker: retrying write", "op", op, "attempt", attempt, "error", err)
			if serr := t.sleep(ctx, time.Duration(attempt)*t.config.RetryBackoff); serr != nil {
				break
			}
		}
		err = write(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, storage.ErrRangeOverlap) || errors.Is(err, storage.ErrInvalidRange) {
			break
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// errorKind labels an update failure for metrics and logs
func errorKind(err error) string {
	switch {
	case errors.Is(err, stats.ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, hyperscape.ErrNotFound):
		return "not_found"
	case errors.Is(err, hyperscape.ErrUpstream):
		return "upstream"
	case errors.Is(err, storage.ErrRangeOverlap):
		return "range_overlap"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
