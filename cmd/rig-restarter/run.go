package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/powerhive/rig-restarter/internal/logger"
	"github.com/powerhive/rig-restarter/internal/observability"
	"github.com/powerhive/rig-restarter/pkg/fleet"
	"github.com/powerhive/rig-restarter/pkg/journal"
	"github.com/powerhive/rig-restarter/pkg/kasa"
	"github.com/powerhive/rig-restarter/pkg/monitor"
	"github.com/powerhive/rig-restarter/pkg/rig"
)

func newRunCommand(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Monitor every rig until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFleet(cmd, cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.JournalDB, "journal", cfg.JournalDB, "SQLite event journal path (empty disables)")
	cmd.Flags().StringVar(&cfg.QueryFailurePolicy, "on-query-failure", cfg.QueryFailurePolicy, "offline, skip or halt")
	return cmd
}

func runFleet(cmd *cobra.Command, cfg *Config) error {
	policy, err := monitor.ParsePolicy(cfg.QueryFailurePolicy)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Close()

	flush, err := observability.InitSentry(observability.Options{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
	})
	if err != nil {
		log.Warnf("Sentry disabled: %v", err)
	}
	defer flush()
	if observability.Enabled() {
		log.Info("Sentry error reporting enabled")
	}

	rigs, err := loadRigs(cfg)
	if err != nil {
		return err
	}

	recorder := journal.Discard
	if cfg.JournalDB != "" {
		repo, err := journal.NewSQLiteRepository(cfg.JournalDB)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer repo.Close()
		recorder = repo
		log.Infof("Journal: %s", cfg.JournalDB)
	}

	source := newPoolClient(cfg)
	dialer := kasa.NewDialer(kasa.WithTimeout(cfg.OutletTimeout))

	factory := func(rc rig.Config) fleet.Runner {
		return monitor.New(rc, source, dialer,
			monitor.WithLogger(log),
			monitor.WithJournal(recorder),
			monitor.WithPolicy(policy),
		)
	}

	log.Infof("Loaded %d rigs from %s (query failure policy: %s)", len(rigs), cfg.RigsFile, policy)
	err = fleet.NewSupervisor(factory, fleet.WithLogger(log)).Run(cmd.Context(), rigs)
	if err != nil {
		return err
	}
	log.Info("Shutdown complete")
	return nil
}
