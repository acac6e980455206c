package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/powerhive/rig-restarter/pkg/monitor"
	"github.com/powerhive/rig-restarter/pkg/rig"
)

func newValidateCommand(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the rig files and print the merged configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := monitor.ParsePolicy(cfg.QueryFailurePolicy); err != nil {
				return err
			}
			rigs, err := loadRigs(cfg)
			if err != nil {
				return err
			}
			if err := printRigs(cmd, rigs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d rigs OK\n", len(rigs))
			return nil
		},
	}
}

func printRigs(cmd *cobra.Command, rigs []rig.Config) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RIG\tPOOL\tOUTLET\tOFFLINE AFTER\tCHECK EVERY\tCOOLDOWN\tOFF FOR\tMAX RESTARTS")
	for _, rc := range rigs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			rc.WorkerName,
			poolLabel(rc),
			rc.DeviceAddress+" "+rc.Plug.String(),
			offlineLabel(rc.TimeUntilOffline),
			rc.StatusCheckFrequency,
			rc.StatusCheckCooldown,
			rc.PowerCycleOffDuration,
			rc.MaxConsecutiveRestarts,
		)
	}
	return w.Flush()
}

func poolLabel(rc rig.Config) string {
	if rc.Coin == "" {
		return string(rc.StatusAPI)
	}
	return string(rc.StatusAPI) + "/" + strings.ToLower(rc.Coin)
}

func offlineLabel(minutes float64) string {
	if minutes <= 0 {
		return "pool flag"
	}
	return fmt.Sprintf("%gm", minutes)
}
