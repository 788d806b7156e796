package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"hyperwatch/internal/hyperscape"
	"hyperwatch/internal/observability"
	"hyperwatch/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hyperwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPollInterval, cfg.Poll.Interval)
	assert.Equal(t, DefaultPersistRetries, cfg.Poll.PersistRetries)
	assert.Equal(t, DefaultRetryBackoff, cfg.Poll.RetryBackoff)
	assert.Equal(t, hyperscape.DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, DefaultAPITimeout, cfg.API.Timeout)
	assert.Equal(t, DefaultRequestsPerSecond, cfg.API.RequestsPerSecond)
	assert.Equal(t, storage.BackendFile, cfg.Storage.Backend)
	assert.Equal(t, DefaultStorageDir, cfg.Storage.Dir)
	assert.Equal(t, DefaultRosterPath, cfg.Roster.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Discord.WebhookURL)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
poll:
  interval: 90s
  persist_retries: 1
storage:
  backend: sqlite
  dir: /var/lib/hyperwatch
logging:
  level: debug
  format: json
discord:
  webhook_url: https://discord.example/hook
`)
	t.Setenv("HYPERWATCH_POLL_INTERVAL", "2m")
	t.Setenv("HYPERWATCH_METRICS_ADDR", ":9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.Poll.Interval, "env overrides the file")
	assert.Equal(t, 1, cfg.Poll.PersistRetries)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, "https://discord.example/hook", cfg.Discord.WebhookURL)

	sc := cfg.StorageConfig()
	assert.Equal(t, storage.BackendSQLite, sc.Backend)
	assert.Equal(t, filepath.Join("/var/lib/hyperwatch", "hyperwatch.db"), sc.DSN)

	assert.Equal(t, observability.LogConfig{Level: "debug", Format: "json"}, cfg.LogConfig())

	tc := cfg.TrackerConfig()
	assert.Equal(t, 2*time.Minute, tc.Interval)
	assert.Equal(t, 1, tc.PersistRetries)
}

func TestLoad_InvalidFile(t *testing.T) {
	_, err := Load(writeConfig(t, "poll: [oops"))
	assert.Error(t, err)
}

func TestLoad_ValidationError(t *testing.T) {
	_, err := Load(writeConfig(t, "storage:\n  backend: postgres\n"))
	assert.ErrorIs(t, err, ErrMissingDSN)
}

func TestLoad_ZeroTimeoutFromEnv(t *testing.T) {
	t.Setenv("HYPERWATCH_API_TIMEOUT", "0")
	_, err := Load(writeConfig(t, "poll:\n  interval: 1m\n"))
	assert.ErrorIs(t, err, ErrInvalidTimeout)
}

func validConfig() Config {
	return Config{
		Poll:    PollConfig{Interval: time.Minute, PersistRetries: 3, RetryBackoff: time.Second},
		API:     APIConfig{Timeout: 30 * time.Second},
		Storage: StorageConfig{Backend: storage.BackendFile, Dir: "data"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"zero interval", func(c *Config) { c.Poll.Interval = 0 }, ErrInvalidInterval},
		{"negative retries", func(c *Config) { c.Poll.PersistRetries = -1 }, ErrInvalidRetries},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, ErrInvalidTimeout},
		{"negative timeout", func(c *Config) { c.API.Timeout = -time.Second }, ErrInvalidTimeout},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "mongo" }, ErrInvalidBackend},
		{"libsql without url", func(c *Config) { c.Storage.Backend = storage.BackendLibSQL }, ErrMissingDSN},
		{"postgres with dsn", func(c *Config) {
			c.Storage.Backend = storage.BackendPostgres
			c.Storage.DSN = "postgres://localhost/hyperwatch"
		}, nil},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, ErrInvalidLogLevel},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, observability.ErrInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("HYPERWATCH_ROSTER_PATH=/tmp/watch.yaml\n"), 0o644))
	t.Setenv("HYPERWATCH_ROSTER_PATH", "")
	os.Unsetenv("HYPERWATCH_ROSTER_PATH")

	assert.Equal(t, ".env", LoadDotEnv())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/watch.yaml", cfg.Roster.Path)
}

func TestClientOptions(t *testing.T) {
	cfg := validConfig()
	cfg.API = APIConfig{BaseURL: "http://localhost:1", Timeout: time.Second, RequestsPerSecond: 2}
	assert.Len(t, cfg.ClientOptions(), 3)

	cfg.API.BaseURL = ""
	assert.Len(t, cfg.ClientOptions(), 2)
}
