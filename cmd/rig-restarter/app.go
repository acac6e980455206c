package main

import (
	"fmt"

	"github.com/powerhive/rig-restarter/pkg/pool"
	"github.com/powerhive/rig-restarter/pkg/rig"
)

// loadRigs reads the defaults and rig files and returns the merged rigs.
func loadRigs(cfg *Config) ([]rig.Config, error) {
	defaults, err := rig.LoadDefaults(cfg.DefaultsFile)
	if err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	rigs, err := rig.LoadRigs(cfg.RigsFile, defaults)
	if err != nil {
		return nil, fmt.Errorf("load rigs: %w", err)
	}
	return rigs, nil
}

func newPoolClient(cfg *Config) *pool.HTTPClient {
	return pool.NewClient(
		pool.WithTimeout(cfg.QueryTimeout),
		pool.WithRateLimit(cfg.PoolRateLimit, 1),
	)
}
