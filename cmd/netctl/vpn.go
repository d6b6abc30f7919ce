package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"netctl/internal/netinfo"
	"netctl/internal/render"
	"netctl/internal/watch"
)

var vpnDetailed bool

func newVPNCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vpn",
		Short: "VPN connection status",
	}
	cmd.AddCommand(newVPNStatusCmd(), newVPNWatchCmd())
	return cmd
}

func newVPNStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show VPN connection status",
		Args:  cobra.NoArgs,
		RunE:  runVPNStatusCmd,
	}
	cmd.Flags().BoolVar(&vpnDetailed, "detailed", false, "show tunnel traffic counters")
	return cmd
}

func newVPNWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Monitor VPN connection continuously",
		Args:  cobra.NoArgs,
		RunE:  runVPNWatchCmd,
	}
}

func runVPNStatusCmd(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := netinfo.NewInspector(a.log).VPN(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(st)
	}
	fmt.Print(render.VPNStatus(st, vpnDetailed))
	return nil
}

func runVPNWatchCmd(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	insp := netinfo.NewInspector(a.log)
	const refresh = 5 * time.Second
	return watch.Run(cmd.Context(), watch.Options{Interval: refresh, Immediate: true},
		func(ctx context.Context, _ time.Time) error {
			st, err := insp.VPN(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(st)
			}
			clearScreen()
			fmt.Print(render.VPNStatus(st, true))
			fmt.Printf("refreshing every %s (Ctrl+C to stop)\n", refresh)
			return nil
		})
}
