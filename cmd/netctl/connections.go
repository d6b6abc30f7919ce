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

var (
	connApp      string
	connExternal bool
	connWatch    bool
	connInterval time.Duration
)

func newConnectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connections",
		Short: "List active network connections by application",
		Args:  cobra.NoArgs,
		RunE:  runConnectionsCmd,
	}
	cmd.Flags().StringVar(&connApp, "app", "", "filter by application name")
	cmd.Flags().BoolVar(&connExternal, "external", false, "show only external (non-local) connections")
	cmd.Flags().BoolVar(&connWatch, "watch", false, "continuous monitoring mode")
	cmd.Flags().DurationVar(&connInterval, "interval", 2*time.Second, "refresh interval (used with --watch)")
	return cmd
}

func runConnectionsCmd(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	insp := netinfo.NewInspector(a.log)
	filter := netinfo.ConnFilter{App: connApp, ExternalOnly: connExternal}

	show := func(ctx context.Context) error {
		rep, err := insp.Connections(ctx, filter)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(rep)
		}
		if connWatch {
			clearScreen()
		}
		fmt.Print(render.ConnReport(rep))
		return nil
	}

	if !connWatch {
		return show(cmd.Context())
	}
	return watch.Run(cmd.Context(), watch.Options{Interval: connInterval, Immediate: true},
		func(ctx context.Context, _ time.Time) error {
			if err := show(ctx); err != nil {
				return err
			}
			fmt.Printf("refreshing every %s (Ctrl+C to stop)\n", connInterval)
			return nil
		})
}
