package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultRemoteURL is the dialogue endpoint used when PARLEY_REMOTE_URL is unset.
const DefaultRemoteURL = "https://obz7hjinr4.execute-api.ap-south-1.amazonaws.com/dev"

// Config contains all runtime settings for the parley server.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	LogLevel  string
	LogPretty bool
	LogFile   string

	GatewayMode   string
	RemoteURL     string
	RemoteTimeout time.Duration
	BELimit       int

	DatabaseURL   string
	JournalRedact bool
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "parley"),
		LogLevel:         envOrDefault("APP_LOG_LEVEL", "info"),
		LogFile:          trimmedEnv("APP_LOG_FILE"),
		GatewayMode:      strings.ToLower(envOrDefault("PARLEY_GATEWAY_MODE", "http")),
		RemoteURL:        envOrDefault("PARLEY_REMOTE_URL", DefaultRemoteURL),
		DatabaseURL:      trimmedEnv("DATABASE_URL"),
		ShutdownTimeout:  15 * time.Second,
		RemoteTimeout:    60 * time.Second,
		BELimit:          5,
		JournalRedact:    true,
	}

	var err error
	if cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.RemoteTimeout, err = durationFromEnv("PARLEY_REMOTE_TIMEOUT", cfg.RemoteTimeout); err != nil {
		return Config{}, err
	}
	if cfg.BELimit, err = intFromEnv("PARLEY_BE_LIMIT", cfg.BELimit); err != nil {
		return Config{}, err
	}
	if cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin); err != nil {
		return Config{}, err
	}
	if cfg.LogPretty, err = boolFromEnv("APP_LOG_PRETTY", cfg.LogPretty); err != nil {
		return Config{}, err
	}
	if cfg.JournalRedact, err = boolFromEnv("PARLEY_JOURNAL_REDACT", cfg.JournalRedact); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.GatewayMode {
	case "http", "mock":
	default:
		return fmt.Errorf("PARLEY_GATEWAY_MODE must be http or mock, got %q", c.GatewayMode)
	}
	if c.GatewayMode == "http" && c.RemoteURL == "" {
		return fmt.Errorf("PARLEY_REMOTE_URL is required in http mode")
	}
	if c.RemoteTimeout <= 0 {
		return fmt.Errorf("PARLEY_REMOTE_TIMEOUT must be positive")
	}
	if c.BELimit <= 0 {
		return fmt.Errorf("PARLEY_BE_LIMIT must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("APP_SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	v := trimmedEnv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
