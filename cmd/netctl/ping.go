package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"netctl/internal/config"
	"netctl/internal/pingstat"
	"netctl/internal/probe"
	"netctl/internal/render"
	"netctl/pkg/logx"
)

const defaultPingTarget = "google.com"

var (
	pingCount         int
	pingHostsFlag     string
	pingWatch         bool
	pingWatchInterval time.Duration
)

func newPingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping [host]",
		Short: "Connection quality test (ping with statistics)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPingCmd,
	}
	cmd.Flags().IntVar(&pingCount, "count", 0, "number of probes to send")
	cmd.Flags().StringVar(&pingHostsFlag, "hosts", "", "ping multiple hosts (comma-separated)")
	cmd.Flags().BoolVar(&pingWatch, "watch", false, "keep probing and refresh statistics")
	cmd.Flags().DurationVar(&pingWatchInterval, "interval", time.Second, "refresh interval (used with --watch)")
	return cmd
}

func runPingCmd(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	opts, err := pingOptions(a.cfg.Ping)
	if err != nil {
		return err
	}

	targets := pingTargets(args)
	pinger := probe.NewPinger(a.log)

	if pingWatch {
		if len(targets) != 1 {
			return fmt.Errorf("--watch supports a single host")
		}
		opts.Count = 0 // unbounded
		return pinger.Watch(ctx, targets[0], opts, pingWatchInterval, func(rep pingstat.Report) {
			if jsonOut {
				_ = printJSON(rep)
				return
			}
			clearScreen()
			fmt.Print(render.PingReport(&rep))
		})
	}

	if len(targets) == 1 {
		rep, err := pinger.Run(ctx, targets[0], opts)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(rep)
		}
		fmt.Print(render.PingReport(&rep))
		return nil
	}

	results := pinger.RunMulti(ctx, targets, opts, 5)
	reports := make([]*pingstat.Report, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			a.log.Warn("ping failed", logx.String("host", res.Host), logx.Err(res.Err))
			continue
		}
		rep := res.Report
		reports = append(reports, &rep)
	}
	if len(reports) == 0 {
		return fmt.Errorf("no host produced a report")
	}
	if jsonOut {
		return printJSON(reports)
	}
	fmt.Print(render.PingReports(reports))
	return nil
}

func pingOptions(cfg config.PingConfig) (probe.Options, error) {
	interval, err := config.ParseDurationOrDefault("ping.interval", cfg.Interval, 200*time.Millisecond)
	if err != nil {
		return probe.Options{}, err
	}
	timeout, err := config.ParseDurationOrDefault("ping.timeout", cfg.Timeout, 2*time.Second)
	if err != nil {
		return probe.Options{}, err
	}

	count := pingCount
	if count <= 0 {
		count = cfg.Count
	}
	return probe.Options{Count: count, Interval: interval, Timeout: timeout}, nil
}

func pingTargets(args []string) []string {
	if pingHostsFlag != "" {
		var targets []string
		for _, h := range strings.Split(pingHostsFlag, ",") {
			if h = strings.TrimSpace(h); h != "" {
				targets = append(targets, h)
			}
		}
		if len(targets) > 0 {
			return targets
		}
	}
	if len(args) == 1 {
		return args
	}
	return []string{defaultPingTarget}
}
