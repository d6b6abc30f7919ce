package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"netctl/internal/bandwidth"
	"netctl/internal/config"
	"netctl/internal/notify"
	"netctl/internal/psnet"
	"netctl/internal/render"
	"netctl/internal/watch"
	"netctl/pkg/logx"
)

const watchTopDefault = 10

var (
	bwTop   int
	bwApp   string
	bwAlert string
	bwWatch bool
)

func newBandwidthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bandwidth",
		Short: "Real-time bandwidth usage per application",
		Args:  cobra.NoArgs,
		RunE:  runBandwidthCmd,
	}
	cmd.Flags().IntVar(&bwTop, "top", 0, "show top N bandwidth consumers")
	cmd.Flags().StringVar(&bwApp, "app", "", "monitor a specific application")
	cmd.Flags().StringVar(&bwAlert, "alert", "", `alert threshold per app (e.g. "10MB")`)
	cmd.Flags().BoolVar(&bwWatch, "watch", false, "continuous monitoring mode")
	return cmd
}

func runBandwidthCmd(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	interval, err := config.ParseDurationOrDefault("bandwidth.interval", a.cfg.Bandwidth.Interval, time.Second)
	if err != nil {
		return err
	}

	agg, err := buildAggregator(a.cfg.Bandwidth)
	if err != nil {
		return err
	}

	sampler := psnet.NewSampler(a.log)
	notifier, err := notify.New(notify.Config{
		TelegramToken: a.cfg.Notify.TelegramToken,
		ChatID:        a.cfg.Notify.ChatID,
		RatePerMin:    a.cfg.Notify.RatePerMin,
	}, a.log)
	if err != nil {
		a.log.Warn("notifier unavailable", logx.Err(err))
	}

	tick := func(tctx context.Context, now time.Time) (*bandwidth.Snapshot, error) {
		batch, err := sampler.Sample(tctx)
		if err != nil {
			return nil, err
		}
		if batch == nil {
			return nil, fmt.Errorf("no bandwidth source available (per-process counters may need elevated privileges)")
		}
		snap, alerts := agg.Observe(batch, now)
		for _, ev := range alerts {
			label := ev.App
			if ev.Total() {
				label = "total"
			}
			a.log.Warn("bandwidth alert",
				logx.String("app", label),
				logx.String("rate", render.FormatBps(ev.RateBps)),
				logx.String("threshold", render.FormatBps(ev.ThresholdBps)))
			notifier.Send(tctx, fmt.Sprintf("bandwidth alert: %s at %s (threshold %s)",
				label, render.FormatBps(ev.RateBps), render.FormatBps(ev.ThresholdBps)))
		}
		return &snap, nil
	}

	if !bwWatch {
		// One shot still needs two samples: the first only establishes the
		// per-process baselines.
		if _, err := tick(ctx, time.Now()); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		snap, err := tick(ctx, time.Now())
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(snap)
		}
		fmt.Print(render.BandwidthSnapshot(snap))
		return nil
	}

	first := true
	return watch.Run(ctx, watch.Options{Interval: interval, Immediate: true},
		func(tctx context.Context, now time.Time) error {
			snap, err := tick(tctx, now)
			if err != nil {
				return err
			}
			if first {
				first = false // baseline tick, nothing to show yet
				return nil
			}
			if jsonOut {
				return printJSON(snap)
			}
			clearScreen()
			fmt.Print(render.BandwidthSnapshot(snap))
			fmt.Printf("refreshing every %s (Ctrl+C to stop)\n", interval)
			return nil
		})
}

func buildAggregator(cfg config.BandwidthConfig) (*bandwidth.Aggregator, error) {
	topN := bwTop
	if topN <= 0 {
		topN = cfg.Top
	}
	if topN <= 0 && bwWatch {
		topN = watchTopDefault
	}

	opts := []bandwidth.Option{bandwidth.WithTopN(topN)}
	if bwApp != "" {
		opts = append(opts, bandwidth.WithAppFilter(bwApp))
	}

	threshold := bwAlert
	if threshold == "" {
		threshold = cfg.Alert
	}
	if threshold != "" {
		bps, err := bandwidth.ParseThreshold(threshold)
		if err != nil {
			return nil, fmt.Errorf("--alert: %w", err)
		}
		opts = append(opts, bandwidth.WithAlerts(bandwidth.NewAlertMonitor(bps, 0)))
	}

	return bandwidth.NewAggregator(opts...), nil
}
