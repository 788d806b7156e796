// Package observability builds the structured logger, the Prometheus metrics
// and the tracer shared by every component.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID  = "trace_id"
	attrSpanID   = "span_id"
	attrService  = "service"
	attrPlayerID = "player_id"

	serviceName = "hyperwatch"
)

// Log formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	// ErrInvalidLevel is returned for unknown log levels
	ErrInvalidLevel = errors.New("invalid log level")
	// ErrInvalidFormat is returned for unknown log formats
	ErrInvalidFormat = errors.New("invalid log format")
)

// LogConfig selects the level and output format of the logger
type LogConfig struct {
	Level  string
	Format string
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
}

// NewLogger builds a text or JSON logger writing to w. Records carry the
// service name, the player from WithPlayer and, inside a span, its trace and
// span IDs.
func NewLogger(cfg LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}

	var inner slog.Handler
	switch strings.ToLower(cfg.Format) {
	case FormatText, "":
		inner = slog.NewTextHandler(w, opts)
	case FormatJSON:
		inner = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, cfg.Format)
	}

	return slog.New(newContextHandler(inner)), nil
}

type playerKey struct{}

// WithPlayer marks ctx as belonging to one player's update. Records logged
// with it carry player_id, whichever component writes them.
func WithPlayer(ctx context.Context, playerID string) context.Context {
	return context.WithValue(ctx, playerKey{}, playerID)
}

// PlayerFrom returns the player set by WithPlayer
func PlayerFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(playerKey{}).(string)
	return id, ok && id != ""
}

// contextHandler copies the player ID and the active span out of the record's
// context into its attributes.
type contextHandler struct {
	inner slog.Handler
}

func newContextHandler(inner slog.Handler) contextHandler {
	return contextHandler{inner: inner.WithAttrs([]slog.Attr{slog.String(attrService, serviceName)})}
}

func (h contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h contextHandler) Handle(ctx context.Context, record slog.Record) error {
	if id, ok := PlayerFrom(ctx); ok {
		record.AddAttrs(slog.String(attrPlayerID, id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}
	return h.inner.Handle(ctx, record)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{inner: h.inner.WithGroup(name)}
}

// Discard returns a logger that drops everything, for tests and quiet commands
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
