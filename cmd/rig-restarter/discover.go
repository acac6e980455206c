package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/powerhive/rig-restarter/pkg/discovery"
)

func newDiscoverCommand(cfg *Config) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "discover <cidr|range|ip>",
		Short: "Find Kasa plugs and power strips on the network",
		Long: `Scan a network for Kasa devices and list their outlets. The plug index and
alias columns are the values accepted by smart_strip_plug_number and
smart_strip_plug_name.

Examples:
  rig-restarter discover 192.168.1.0/24
  rig-restarter discover 192.168.1.10-192.168.1.60`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scanner := discovery.NewScanner(
				discovery.WithTimeout(cfg.DiscoveryTimeout),
				discovery.WithConcurrency(cfg.DiscoveryConcurrency),
				discovery.WithPort(port),
			)
			return discover(cmd, scanner, args[0])
		},
	}
	cmd.Flags().IntVar(&port, "port", discovery.DefaultScanOptions().Port, "Kasa TCP port")
	return cmd
}

func discover(cmd *cobra.Command, scanner *discovery.Scanner, target string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scanning %s...\n", target)

	res, err := scanner.ScanNetwork(cmd.Context(), target)
	if res == nil {
		return fmt.Errorf("scan %s: %w", target, err)
	}

	fmt.Fprintf(out, "Scanned %d addresses in %s, %d responded, %d Kasa devices\n\n",
		res.ScannedIPs, res.Duration.Round(time.Millisecond), res.ResponsiveHosts, len(res.Devices))

	if len(res.Devices) > 0 {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "IP\tMODEL\tALIAS\tPLUG\tPLUG ALIAS\tSTATE")
		for _, dev := range res.Devices {
			if !dev.IsStrip() {
				fmt.Fprintf(w, "%s\t%s\t%s\t-\t-\t%s\n", dev.IP, dev.Model, dev.Alias, onOff(dev.RelayOn))
				continue
			}
			for _, p := range dev.Plugs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", dev.IP, dev.Model, dev.Alias, p.Index, p.Alias, onOff(p.On))
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	// Partial results are still printed when the scan is interrupted.
	return err
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
