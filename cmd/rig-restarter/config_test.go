package main

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"RIGS_FILE", "QUERY_TIMEOUT", "POOL_RATE_LIMIT", "JOURNAL_DB", "SENTRY_DSN"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	want := DefaultConfig()
	if cfg.RigsFile != want.RigsFile || cfg.QueryTimeout != want.QueryTimeout || cfg.PoolRateLimit != want.PoolRateLimit {
		t.Errorf("want defaults, got %+v", cfg)
	}
	if cfg.JournalDB != "" || cfg.SentryDSN != "" {
		t.Errorf("journal and sentry should be off by default: %+v", cfg)
	}
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("RIGS_FILE", "/etc/rigs/rigs.json")
	t.Setenv("DEFAULTS_FILE", "/etc/rigs/defaults.json")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FILE", "")
	t.Setenv("JOURNAL_DB", "journal.db")
	t.Setenv("QUERY_TIMEOUT", "30s")
	t.Setenv("POOL_RATE_LIMIT", "2")
	t.Setenv("QUERY_FAILURE_POLICY", "skip")
	t.Setenv("OUTLET_TIMEOUT", "1s")
	t.Setenv("DISCOVERY_CONCURRENCY", "8")

	cfg := LoadConfig()

	if cfg.RigsFile != "/etc/rigs/rigs.json" || cfg.DefaultsFile != "/etc/rigs/defaults.json" {
		t.Errorf("files: %s %s", cfg.RigsFile, cfg.DefaultsFile)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel: %s", cfg.LogLevel)
	}
	if cfg.LogFile != "" {
		t.Errorf("empty LOG_FILE should disable the file sink, got %q", cfg.LogFile)
	}
	if cfg.JournalDB != "journal.db" || cfg.QueryFailurePolicy != "skip" {
		t.Errorf("journal %q policy %q", cfg.JournalDB, cfg.QueryFailurePolicy)
	}
	if cfg.QueryTimeout != 30*time.Second || cfg.OutletTimeout != time.Second {
		t.Errorf("timeouts: query %s outlet %s", cfg.QueryTimeout, cfg.OutletTimeout)
	}
	if cfg.PoolRateLimit != 2 || cfg.DiscoveryConcurrency != 8 {
		t.Errorf("rate %v concurrency %d", cfg.PoolRateLimit, cfg.DiscoveryConcurrency)
	}
}

func TestLoadConfig_IgnoresBadValues(t *testing.T) {
	t.Setenv("QUERY_TIMEOUT", "soon")
	t.Setenv("OUTLET_TIMEOUT", "-1s")
	t.Setenv("DISCOVERY_CONCURRENCY", "0")

	cfg := LoadConfig()
	want := DefaultConfig()
	if cfg.QueryTimeout != want.QueryTimeout || cfg.OutletTimeout != want.OutletTimeout {
		t.Errorf("bad durations should keep defaults: %s %s", cfg.QueryTimeout, cfg.OutletTimeout)
	}
	if cfg.DiscoveryConcurrency != want.DiscoveryConcurrency {
		t.Errorf("DiscoveryConcurrency: %d", cfg.DiscoveryConcurrency)
	}
}
