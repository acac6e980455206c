package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/powerhive/rig-restarter/pkg/monitor"
	"github.com/powerhive/rig-restarter/pkg/pool"
	"github.com/powerhive/rig-restarter/pkg/rig"
)

func newCheckCommand(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "check [worker...]",
		Short: "Query each rig's pool once and print its status",
		Long: `Query each rig's pool once and print whether it is online, using the same
staleness rules as the monitor. Outlets are never touched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rigs, err := loadRigs(cfg)
			if err != nil {
				return err
			}
			rigs, err = selectRigs(rigs, args)
			if err != nil {
				return err
			}
			return checkRigs(cmd, newPoolClient(cfg), rigs)
		},
	}
}

// selectRigs keeps only the named workers, in the order given. No names
// keeps every rig.
func selectRigs(rigs []rig.Config, names []string) ([]rig.Config, error) {
	if len(names) == 0 {
		return rigs, nil
	}
	byName := make(map[string]rig.Config, len(rigs))
	for _, r := range rigs {
		byName[r.WorkerName] = r
	}
	out := make([]rig.Config, 0, len(names))
	for _, name := range names {
		r, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("no rig named %q", name)
		}
		out = append(out, r)
	}
	return out, nil
}

func checkRigs(cmd *cobra.Command, source pool.StatusSource, rigs []rig.Config) error {
	clock := monitor.RealClock()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RIG\tPOOL\tSTATUS\tLAST SEEN")

	var errs []error
	for _, rc := range rigs {
		res, err := monitor.Check(cmd.Context(), source, rc, clock)
		if err != nil {
			fmt.Fprintf(w, "%s\t%s\tERROR\t%v\n", rc.WorkerName, rc.StatusAPI, err)
			errs = append(errs, fmt.Errorf("%s: %w", rc.WorkerName, err))
			continue
		}
		state := "OFFLINE"
		if res.Online {
			state = "ONLINE"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rc.WorkerName, rc.StatusAPI, state, res.LastSeen())
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return errors.Join(errs...)
}
