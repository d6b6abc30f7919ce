package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"netctl/internal/block"
	"netctl/internal/config"
	"netctl/internal/render"
	"netctl/pkg/logx"
)

var (
	blockAdd      string
	blockRemove   string
	blockList     bool
	blockEnable   bool
	blockDisable  bool
	blockDuration string

	blockDaemonEvery time.Duration
)

func newBlockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "block",
		Short: "Domain blocker / focus mode",
		Args:  cobra.NoArgs,
		RunE:  runBlockCmd,
	}
	cmd.Flags().StringVar(&blockAdd, "add", "", "add domains to block (comma-separated)")
	cmd.Flags().StringVar(&blockRemove, "remove", "", "remove a domain from the block list")
	cmd.Flags().BoolVar(&blockList, "list", false, "list all blocked domains")
	cmd.Flags().BoolVar(&blockEnable, "enable", false, "enable all domain blocks")
	cmd.Flags().BoolVar(&blockDisable, "disable", false, "disable all domain blocks")
	cmd.Flags().StringVar(&blockDuration, "duration", "", `duration for temporary blocks (e.g. "2h", "30m")`)

	cmd.AddCommand(newBlockDaemonCmd())
	return cmd
}

func newBlockDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Reconcile timed blocks in the background",
		Args:  cobra.NoArgs,
		RunE:  runBlockDaemonCmd,
	}
	cmd.Flags().DurationVar(&blockDaemonEvery, "every", 0, "reconciliation interval")
	return cmd
}

func blockScheduler(a *app) *block.Scheduler {
	paths := block.Paths{
		Hosts:  a.cfg.Block.HostsPath,
		Backup: a.cfg.Block.BackupPath,
		State:  a.cfg.Block.StatePath,
	}
	return block.NewScheduler(paths, a.log)
}

func runBlockCmd(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	sched := blockScheduler(a)

	switch {
	case blockAdd != "":
		return blockErr(runBlockAdd(cmd, sched))
	case blockRemove != "":
		err := sched.Remove(blockRemove)
		if errors.Is(err, block.ErrNotBlocked) {
			a.log.Warn("domain is not blocked", logx.String("domain", blockRemove))
			return nil
		}
		if err != nil {
			return blockErr(err)
		}
		fmt.Printf("unblocked %s\n", blockRemove)
		return nil
	case blockEnable:
		if err := sched.Enable(); err != nil {
			return blockErr(err)
		}
		fmt.Println("blocking enabled")
		return nil
	case blockDisable:
		if err := sched.Disable(); err != nil {
			return blockErr(err)
		}
		fmt.Println("blocking disabled")
		return nil
	}

	// --list and the bare `block` invocation both show status.
	st, err := sched.List()
	if err != nil {
		return blockErr(err)
	}
	if jsonOut {
		return printJSON(st)
	}
	fmt.Print(render.BlockStatus(st))
	return nil
}

func runBlockAdd(cmd *cobra.Command, sched *block.Scheduler) error {
	var domains []string
	for _, d := range strings.Split(blockAdd, ",") {
		if d = strings.TrimSpace(d); d != "" {
			domains = append(domains, d)
		}
	}
	if len(domains) == 0 {
		return fmt.Errorf("--add needs at least one domain")
	}

	hasDuration := cmd.Flags().Changed("duration")
	var duration time.Duration
	if hasDuration {
		var err error
		duration, err = config.ParseDurationField("--duration", blockDuration)
		if err != nil {
			return err
		}
	}

	res, err := sched.Add(domains, duration, hasDuration)
	if err != nil {
		return err
	}
	for _, d := range res.Added {
		if hasDuration {
			fmt.Printf("blocked %s for %s\n", d, duration)
		} else {
			fmt.Printf("blocked %s\n", d)
		}
	}
	for _, d := range res.Updated {
		fmt.Printf("updated expiry for %s\n", d)
	}
	return nil
}

func runBlockDaemonCmd(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	every := blockDaemonEvery
	if every <= 0 {
		every, err = config.ParseDurationOrDefault("block.reconcile_every",
			a.cfg.Block.ReconcileEvery, time.Minute)
		if err != nil {
			return err
		}
	}

	return block.NewDaemon(blockScheduler(a), every, a.log).Run(cmd.Context())
}

// blockErr decorates permission failures with the usual remedy.
func blockErr(err error) error {
	if errors.Is(err, block.ErrPermission) {
		return fmt.Errorf("%w (try again with sudo)", err)
	}
	return err
}
