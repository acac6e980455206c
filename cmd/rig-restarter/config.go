package main

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all process settings for rig-restarter.
type Config struct {
	// Files
	RigsFile     string
	DefaultsFile string

	// Logging
	LogLevel string
	LogFile  string

	// Journal (empty disables)
	JournalDB string

	// Pool queries
	QueryTimeout       time.Duration
	PoolRateLimit      float64
	QueryFailurePolicy string

	// Outlets
	OutletTimeout time.Duration

	// Discovery
	DiscoveryTimeout     time.Duration
	DiscoveryConcurrency int

	// Error reporting
	SentryDSN         string
	SentryEnvironment string
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		RigsFile:             "rigs.json",
		DefaultsFile:         "defaults.json",
		LogLevel:             "info",
		LogFile:              "rig_restarter.log",
		QueryTimeout:         15 * time.Second,
		PoolRateLimit:        0.5,
		QueryFailurePolicy:   "offline",
		OutletTimeout:        5 * time.Second,
		DiscoveryTimeout:     2 * time.Second,
		DiscoveryConcurrency: 64,
	}
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if v := os.Getenv("RIGS_FILE"); v != "" {
		cfg.RigsFile = v
	}
	if v := os.Getenv("DEFAULTS_FILE"); v != "" {
		cfg.DefaultsFile = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	// LOG_FILE may be set to empty to disable the file sink.
	if v, ok := os.LookupEnv("LOG_FILE"); ok {
		cfg.LogFile = v
	}
	if v := os.Getenv("JOURNAL_DB"); v != "" {
		cfg.JournalDB = v
	}
	if v := os.Getenv("QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.QueryTimeout = d
		}
	}
	if v := os.Getenv("POOL_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.PoolRateLimit = f
		}
	}
	if v := os.Getenv("QUERY_FAILURE_POLICY"); v != "" {
		cfg.QueryFailurePolicy = v
	}
	if v := os.Getenv("OUTLET_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.OutletTimeout = d
		}
	}
	if v := os.Getenv("DISCOVERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.DiscoveryTimeout = d
		}
	}
	if v := os.Getenv("DISCOVERY_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DiscoveryConcurrency = n
		}
	}
	cfg.SentryDSN = os.Getenv("SENTRY_DSN")
	cfg.SentryEnvironment = os.Getenv("SENTRY_ENVIRONMENT")

	return cfg
}
