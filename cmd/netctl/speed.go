package main

import (
	"context"
	"fmt"
	"time"

	sdnotify "github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"netctl/internal/history"
	"netctl/internal/notify"
	"netctl/internal/render"
	"netctl/internal/speed"
	"netctl/pkg/logx"
)

var (
	speedServer   string
	speedDetailed bool
	speedOutput   string
	speedRounds   int
	speedSchedule string

	speedHistoryN    int
	speedStatsWindow time.Duration
)

func newSpeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "speed",
		Short: "Network speed test (download/upload)",
		Args:  cobra.NoArgs,
		RunE:  runSpeedCmd,
	}
	cmd.Flags().StringVar(&speedServer, "server", "", "server to use (cloudflare, google, auto)")
	cmd.Flags().BoolVar(&speedDetailed, "detailed", false, "detailed metrics (latency, jitter, packet loss)")
	cmd.Flags().StringVar(&speedOutput, "output", "", "export results to a JSON file")
	cmd.Flags().IntVar(&speedRounds, "rounds", 0, "transfer rounds per direction (median reported)")
	cmd.Flags().StringVar(&speedSchedule, "schedule", "", `run periodically (cron spec, e.g. "@every 30m")`)

	cmd.AddCommand(newSpeedHistoryCmd(), newSpeedStatsCmd())
	return cmd
}

func newSpeedHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent speed test runs",
		Args:  cobra.NoArgs,
		RunE:  runSpeedHistoryCmd,
	}
	cmd.Flags().IntVarP(&speedHistoryN, "limit", "n", 10, "number of runs to show")
	return cmd
}

func newSpeedStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Aggregate stored speed test runs",
		Args:  cobra.NoArgs,
		RunE:  runSpeedStatsCmd,
	}
	cmd.Flags().DurationVar(&speedStatsWindow, "window", 24*time.Hour, "aggregation window")
	return cmd
}

func runSpeedCmd(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	if speedSchedule != "" {
		return runSpeedSchedule(ctx, a)
	}

	rep, err := runSpeedOnce(ctx, a)
	if err != nil {
		return err
	}

	if speedOutput != "" {
		if err := speed.Export(speedOutput, rep); err != nil {
			return fmt.Errorf("export results: %w", err)
		}
		a.log.Info("results exported", logx.String("path", speedOutput))
	}

	if jsonOut {
		return printJSON(rep)
	}
	fmt.Print(render.SpeedReport(rep))
	return nil
}

func runSpeedOnce(ctx context.Context, a *app) (*speed.Report, error) {
	serverName := speedServer
	if serverName == "" {
		serverName = a.cfg.Speed.Server
	}
	srv, err := selectSpeedServer(ctx, a.log, serverName)
	if err != nil {
		return nil, err
	}

	rounds := speedRounds
	if rounds <= 0 {
		rounds = a.cfg.Speed.Rounds
	}

	eng := speed.NewEngine(a.log)
	rep, err := eng.Run(ctx, srv, speed.Config{Detailed: speedDetailed, Rounds: rounds})
	if err != nil {
		return nil, err
	}

	recordRun(ctx, a, rep)
	return rep, nil
}

// selectSpeedServer resolves the server name. An unknown name comes back from
// the catalog with a fallback server; warn and test against that rather than
// refusing to run. Errors without a fallback (auto discovery failed) abort.
func selectSpeedServer(ctx context.Context, log logx.Logger, name string) (speed.Server, error) {
	srv, err := speed.SelectServer(ctx, name)
	if err != nil {
		if srv.Name == "" {
			return speed.Server{}, err
		}
		log.Warn("speed server selection", logx.Err(err))
	}
	return srv, nil
}

// recordRun appends to the local history; failures never fail the test.
func recordRun(ctx context.Context, a *app, rep *speed.Report) {
	store, err := history.Open(a.cfg.Speed.HistoryPath)
	if err != nil {
		a.log.Warn("history unavailable", logx.Err(err))
		return
	}
	defer store.Close()
	if _, err := store.Append(ctx, rep); err != nil {
		a.log.Warn("history append failed", logx.Err(err))
	}
}

func runSpeedSchedule(ctx context.Context, a *app) error {
	notifier, err := notify.New(notify.Config{
		TelegramToken: a.cfg.Notify.TelegramToken,
		ChatID:        a.cfg.Notify.ChatID,
		RatePerMin:    a.cfg.Notify.RatePerMin,
	}, a.log)
	if err != nil {
		a.log.Warn("notifier unavailable", logx.Err(err))
	}

	job := func() {
		rep, err := runSpeedOnce(ctx, a)
		if err != nil {
			a.log.Error("scheduled speed test failed", logx.Err(err))
			notifier.Send(ctx, fmt.Sprintf("speed test failed: %v", err))
			return
		}
		a.log.Info("scheduled speed test done",
			logx.Float64("download_mbps", rep.DownloadMbps),
			logx.Float64("upload_mbps", rep.UploadMbps),
			logx.String("verdict", string(rep.Verdict)))
		notifier.Send(ctx, fmt.Sprintf("speed test: %.1f Mbit/s down, %.1f Mbit/s up (%s)",
			rep.DownloadMbps, rep.UploadMbps, rep.Verdict))
	}

	c := cron.New()
	if _, err := c.AddFunc(speedSchedule, job); err != nil {
		return fmt.Errorf("invalid --schedule %q: %w", speedSchedule, err)
	}
	c.Start()
	defer c.Stop()

	_, _ = sdnotify.SdNotify(false, sdnotify.SdNotifyReady)
	a.log.Info("speed test schedule active", logx.String("spec", speedSchedule))

	job() // one run right away, then on schedule

	<-ctx.Done()
	return ctx.Err()
}

func runSpeedHistoryCmd(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := history.Open(a.cfg.Speed.HistoryPath)
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.Recent(cmd.Context(), speedHistoryN)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(recs)
	}
	fmt.Print(render.SpeedHistory(recs))
	return nil
}

func runSpeedStatsCmd(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := history.Open(a.cfg.Speed.HistoryPath)
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := store.StatsSince(cmd.Context(), time.Now().Add(-speedStatsWindow))
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(st)
	}
	fmt.Print(render.SpeedStats(st, speedStatsWindow))
	return nil
}
