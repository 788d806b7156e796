// Package config loads hyperwatch settings from a YAML file, the environment
// and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"hyperwatch/internal/hyperscape"
	"hyperwatch/internal/observability"
	"hyperwatch/internal/storage"
	"hyperwatch/internal/tracker"
)

// Validation errors
var (
	ErrInvalidInterval = errors.New("poll interval must be positive")
	ErrInvalidRetries  = errors.New("persist retries must not be negative")
	ErrInvalidTimeout  = errors.New("api timeout must be positive")
	ErrInvalidBackend  = errors.New("invalid storage backend")
	ErrMissingDSN      = errors.New("storage dsn is required for this backend")
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// Config is the top-level configuration.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Poll    PollConfig    `mapstructure:"poll"`
	API     APIConfig     `mapstructure:"api"`
	Storage StorageConfig `mapstructure:"storage"`
	Discord DiscordConfig `mapstructure:"discord"`
	Roster  RosterConfig  `mapstructure:"roster"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// PollConfig controls the update loop
type PollConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	PersistRetries int           `mapstructure:"persist_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
}

// APIConfig points at the stats API
type APIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond int           `mapstructure:"requests_per_second"`
}

// StorageConfig selects the backend
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	Dir       string `mapstructure:"dir"`
	DSN       string `mapstructure:"dsn"`
	AuthToken string `mapstructure:"auth_token"`
}

// DiscordConfig holds the summary webhook; empty disables it
type DiscordConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

// RosterConfig locates the roster file
type RosterConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds the logger settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds the metrics listener; empty disables it
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, c.Poll.Interval)
	}
	if c.Poll.PersistRetries < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRetries, c.Poll.PersistRetries)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, c.API.Timeout)
	}

	switch c.Storage.Backend {
	case storage.BackendFile, storage.BackendSQLite:
	case storage.BackendLibSQL, storage.BackendPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("%w: %s", ErrMissingDSN, c.Storage.Backend)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Storage.Backend)
	}

	if _, err := observability.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}
	if c.Logging.Format != observability.FormatText && c.Logging.Format != observability.FormatJSON {
		return fmt.Errorf("%w: %q", observability.ErrInvalidFormat, c.Logging.Format)
	}

	return nil
}

// TrackerConfig returns the loop settings
func (c *Config) TrackerConfig() tracker.Config {
	return tracker.Config{
		Interval:       c.Poll.Interval,
		PersistRetries: c.Poll.PersistRetries,
		RetryBackoff:   c.Poll.RetryBackoff,
	}
}

// StorageConfig returns the backend settings. SQLite falls back to a
// database file inside the data directory.
func (c *Config) StorageConfig() storage.Config {
	dsn := c.Storage.DSN
	if c.Storage.Backend == storage.BackendSQLite && dsn == "" {
		dsn = filepath.Join(c.Storage.Dir, "hyperwatch.db")
	}
	return storage.Config{
		Backend:   c.Storage.Backend,
		Dir:       c.Storage.Dir,
		DSN:       dsn,
		AuthToken: c.Storage.AuthToken,
	}
}

// LogConfig returns the logger settings
func (c *Config) LogConfig() observability.LogConfig {
	return observability.LogConfig{Level: c.Logging.Level, Format: c.Logging.Format}
}

// ClientOptions returns the stats API client options
func (c *Config) ClientOptions() []hyperscape.Option {
	opts := []hyperscape.Option{
		hyperscape.WithTimeout(c.API.Timeout),
		hyperscape.WithRateLimit(c.API.RequestsPerSecond),
	}
	if c.API.BaseURL != "" {
		opts = append(opts, hyperscape.WithBaseURL(c.API.BaseURL))
	}
	return opts
}
