package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	namespace  = "hyperwatch"
	tracerName = "hyperwatch/tracker"
)

// Poll outcomes recorded by Metrics.Poll
const (
	OutcomeSeeded    = "seeded"
	OutcomeUnchanged = "unchanged"
	OutcomeUpdated   = "updated"
	OutcomeFailed    = "failed"
)

// Metrics holds the tracker's Prometheus instruments. Each instance owns its
// registry so several can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	polls          *prometheus.CounterVec
	bundles        prometheus.Counter
	matches        prometheus.Counter
	errors         *prometheus.CounterVec
	sweepDuration  prometheus.Histogram
	rosterSize     prometheus.Gauge
	lastSweepEpoch prometheus.Gauge
}

// NewMetrics creates and registers every instrument
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Player polls by outcome.",
		}, []string{"outcome"}),
		bundles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundles_total",
			Help:      "Bundles committed to history.",
		}),
		matches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_recorded_total",
			Help:      "Matches covered by committed bundles.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Per-player update failures by kind.",
		}, []string{"kind"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of a full roster sweep.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		rosterSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "roster_players",
			Help:      "Players in the roster at the last sweep.",
		}),
		lastSweepEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sweep_timestamp_seconds",
			Help:      "Unix time the last sweep finished.",
		}),
	}

	registry.MustRegister(
		m.polls, m.bundles, m.matches, m.errors, m.sweepDuration, m.rosterSize, m.lastSweepEpoch,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the /metrics scrape endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Poll counts one player poll
func (m *Metrics) Poll(outcome string) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(outcome).Inc()
}

// Bundle counts one committed bundle of n matches
func (m *Metrics) Bundle(n int64) {
	if m == nil {
		return
	}
	m.bundles.Inc()
	m.matches.Add(float64(n))
}

// Error counts one failure of the given kind
func (m *Metrics) Error(kind string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(kind).Inc()
}

// Sweep records a finished sweep
func (m *Metrics) Sweep(players int, d time.Duration) {
	if m == nil {
		return
	}
	m.rosterSize.Set(float64(players))
	m.sweepDuration.Observe(d.Seconds())
	m.lastSweepEpoch.SetToCurrentTime()
}

// Tracer returns the tracker's tracer from the global provider. It is a no-op
// unless the embedding program installs an SDK provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
