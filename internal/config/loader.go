package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"hyperwatch/internal/hyperscape"
	"hyperwatch/internal/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = "hyperwatch"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for hyperwatch settings.
const envPrefix = "HYPERWATCH"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Defaults
const (
	DefaultPollInterval      = 5 * time.Minute
	DefaultPersistRetries    = 3
	DefaultRetryBackoff      = 2 * time.Second
	DefaultAPITimeout        = 30 * time.Second
	DefaultRequestsPerSecond = 5
	DefaultStorageDir        = "./data"
	DefaultRosterPath        = "roster.yaml"
)

// envPaths are tried in order; the first .env found is loaded
var envPaths = []string{".env", "../.env", "config/.env"}

// LoadDotEnv loads the first .env file found without overriding variables
// already set. It returns the path that was loaded, or "".
func LoadDotEnv() string {
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			return path
		}
	}
	return ""
}

// Load loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in ".", "./config" and
// "/etc/hyperwatch". Missing config file is not an error; defaults are used.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/hyperwatch")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("poll.interval", DefaultPollInterval)
	v.SetDefault("poll.persist_retries", DefaultPersistRetries)
	v.SetDefault("poll.retry_backoff", DefaultRetryBackoff)

	v.SetDefault("api.base_url", hyperscape.DefaultBaseURL)
	v.SetDefault("api.timeout", DefaultAPITimeout)
	v.SetDefault("api.requests_per_second", DefaultRequestsPerSecond)

	v.SetDefault("storage.backend", storage.BackendFile)
	v.SetDefault("storage.dir", DefaultStorageDir)
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.auth_token", "")

	v.SetDefault("discord.webhook_url", "")
	v.SetDefault("roster.path", DefaultRosterPath)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("metrics.addr", "")
}
