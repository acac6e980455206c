package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/powerhive/rig-restarter/pkg/journal"
)

func newJournalCommand(cfg *Config) *cobra.Command {
	var (
		dbPath string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "journal [worker]",
		Short: "Show recent monitor events from the journal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return errors.New("no journal configured (set JOURNAL_DB or --db)")
			}
			repo, err := journal.NewSQLiteRepository(dbPath)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer repo.Close()

			var worker string
			if len(args) == 1 {
				worker = args[0]
			}
			return printJournal(cmd, repo, worker, limit)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", cfg.JournalDB, "SQLite event journal path")
	cmd.Flags().IntVarP(&limit, "limit", "n", journal.DefaultLimit, "Maximum number of events")
	return cmd
}

func printJournal(cmd *cobra.Command, repo journal.Repository, worker string, limit int) error {
	events, err := repo.Recent(cmd.Context(), worker, limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No events")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tRIG\tEVENT\tRESTARTS\tDETAIL")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", humanize.Time(e.CreatedAt), e.Worker, e.Kind, e.Failures, eventDetail(e))
	}
	return w.Flush()
}

func eventDetail(e *journal.Event) string {
	if e.Kind != journal.KindStatus || e.Online == nil {
		return e.Message
	}
	state := "OFFLINE"
	if *e.Online {
		state = "ONLINE"
	}
	if e.LastSeenAge != nil {
		return fmt.Sprintf("%s, last seen %s ago", state, *e.LastSeenAge)
	}
	return state
}
