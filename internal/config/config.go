// Package config loads server configuration from an optional YAML file and
// environment variables. Environment variables always win, so a deployment
// can ship a base file and override single values per instance.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the server.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Verify    VerifyConfig    `yaml:"verify"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int    `yaml:"port"`
	Host         string `yaml:"host"`
	ReadTimeout  int    `yaml:"read_timeout"`  // seconds
	WriteTimeout int    `yaml:"write_timeout"` // seconds
	IdleTimeout  int    `yaml:"idle_timeout"`  // seconds
}

// LedgerConfig holds read-client settings for the ledger node.
type LedgerConfig struct {
	Endpoint       string  `yaml:"endpoint"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// VerifyConfig holds verification engine settings.
type VerifyConfig struct {
	FanOut   int  `yaml:"fan_out"`
	FailFast bool `yaml:"fail_fast"`
}

// StorageConfig holds audit-log storage configuration.
type StorageConfig struct {
	Type     string         `yaml:"type"` // "sqlite" or "postgres"
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// PostgresConfig holds Postgres connection settings.
type PostgresConfig struct {
	URL string `yaml:"url"`
}

// SQLiteConfig holds SQLite settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// RateLimitConfig holds HTTP rate limiting settings.
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min"`
	BurstSize      int  `yaml:"burst_size"`
	CleanupMinutes int  `yaml:"cleanup_minutes"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load loads configuration: defaults, then the YAML file named by
// SOURCEPROOF_CONFIG (if set), then environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("SOURCEPROOF_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	// If DATABASE_URL is set, default to postgres.
	if cfg.Storage.Postgres.URL != "" && cfg.Storage.Type == "sqlite" && os.Getenv("STORAGE_TYPE") == "" {
		cfg.Storage.Type = "postgres"
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30,
			WriteTimeout: 60,
			IdleTimeout:  120,
		},
		Ledger: LedgerConfig{
			Endpoint:       "http://127.0.0.1:9000",
			TimeoutSeconds: 30,
			RateLimitRPS:   50,
			RateLimitBurst: 100,
		},
		Verify: VerifyConfig{
			FanOut:   8,
			FailFast: true,
		},
		Storage: StorageConfig{
			Type:   "sqlite",
			SQLite: SQLiteConfig{Path: "./data/sourceproof.db"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 300,
			BurstSize:      50,
			CleanupMinutes: 10,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("HOST", cfg.Server.Host)
	cfg.Server.ReadTimeout = getEnvInt("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvInt("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvInt("SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)

	cfg.Ledger.Endpoint = getEnv("LEDGER_ENDPOINT", cfg.Ledger.Endpoint)
	cfg.Ledger.TimeoutSeconds = getEnvInt("LEDGER_TIMEOUT_SECONDS", cfg.Ledger.TimeoutSeconds)
	cfg.Ledger.RateLimitRPS = getEnvFloat("LEDGER_RATE_LIMIT_RPS", cfg.Ledger.RateLimitRPS)
	cfg.Ledger.RateLimitBurst = getEnvInt("LEDGER_RATE_LIMIT_BURST", cfg.Ledger.RateLimitBurst)

	cfg.Verify.FanOut = getEnvInt("VERIFY_FAN_OUT", cfg.Verify.FanOut)
	cfg.Verify.FailFast = getEnvBool("VERIFY_FAIL_FAST", cfg.Verify.FailFast)

	cfg.Storage.Type = getEnv("STORAGE_TYPE", cfg.Storage.Type)
	cfg.Storage.Postgres.URL = getEnv("DATABASE_URL", cfg.Storage.Postgres.URL)
	cfg.Storage.SQLite.Path = getEnv("SQLITE_PATH", cfg.Storage.SQLite.Path)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.RateLimit.Enabled = getEnvBool("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RequestsPerMin = getEnvInt("RATE_LIMIT_RPM", cfg.RateLimit.RequestsPerMin)
	cfg.RateLimit.BurstSize = getEnvInt("RATE_LIMIT_BURST", cfg.RateLimit.BurstSize)
	cfg.RateLimit.CleanupMinutes = getEnvInt("RATE_LIMIT_CLEANUP_MINUTES", cfg.RateLimit.CleanupMinutes)

	cfg.Metrics.Enabled = getEnvBool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Port = getEnvInt("METRICS_PORT", cfg.Metrics.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}
