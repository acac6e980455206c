// rig-restarter watches mining rigs through their pool's API and
// power-cycles the Kasa outlet of any rig that stops reporting.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(LoadConfig()).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(cfg *Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "rig-restarter",
		Short: "Power-cycle mining rigs that stop reporting to their pool",
		Long: `rig-restarter polls each rig's pool for its worker status and power-cycles
the rig through a Kasa smart plug or power strip outlet when it goes offline.
After max_consecutive_restarts failed recoveries in a row it stops touching
that rig.

Rigs are read from RIGS_FILE (default rigs.json) and merged over the per-pool
defaults in DEFAULTS_FILE (default defaults.json).

Environment Variables:
  RIGS_FILE              Rig list (default: rigs.json)
  DEFAULTS_FILE          Per-pool defaults (default: defaults.json)
  LOG_LEVEL              debug, info, warn or error (default: info)
  LOG_FILE               Log file, empty to disable (default: rig_restarter.log)
  JOURNAL_DB             SQLite event journal path (default: disabled)
  QUERY_TIMEOUT          Pool request timeout (default: 15s)
  POOL_RATE_LIMIT        Pool requests per second per provider (default: 0.5)
  QUERY_FAILURE_POLICY   offline, skip or halt (default: offline)
  OUTLET_TIMEOUT         Kasa request timeout (default: 5s)
  DISCOVERY_TIMEOUT      Per-host discovery timeout (default: 2s)
  DISCOVERY_CONCURRENCY  Parallel discovery probes (default: 64)
  SENTRY_DSN             Report rig failures to Sentry (default: disabled)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFleet(cmd, cfg)
		},
	}

	root.PersistentFlags().StringVar(&cfg.RigsFile, "rigs", cfg.RigsFile, "Path to the rig list")
	root.PersistentFlags().StringVar(&cfg.DefaultsFile, "defaults", cfg.DefaultsFile, "Path to the per-pool defaults")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")

	root.AddCommand(
		newRunCommand(cfg),
		newCheckCommand(cfg),
		newValidateCommand(cfg),
		newDiscoverCommand(cfg),
		newJournalCommand(cfg),
	)
	return root
}
