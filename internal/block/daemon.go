package block

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"netctl/pkg/logx"
)

// Daemon keeps the hosts file reconciled in the background: a cron-driven
// periodic sweep expires timed blocks, and an fsnotify watch on the hosts
// file catches external edits (another tool rewriting it) and re-applies the
// block section.
type Daemon struct {
	sched *Scheduler
	every time.Duration
	log   logx.Logger
}

func NewDaemon(sched *Scheduler, every time.Duration, log logx.Logger) *Daemon {
	if every <= 0 {
		every = time.Minute
	}
	return &Daemon{sched: sched, every: every, log: log}
}

// Run blocks until ctx is canceled. Reconcile failures are logged and
// retried on the next trigger; only setup failures abort.
func (d *Daemon) Run(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", d.every), func() { d.reconcile("timer") })
	if err != nil {
		return fmt.Errorf("schedule reconciliation: %w", err)
	}
	c.Start()
	defer c.Stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch hosts file: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(d.sched.paths.Hosts); err != nil {
		return fmt.Errorf("watch %s: %w", d.sched.paths.Hosts, err)
	}

	// Under systemd this reports readiness; elsewhere it is a no-op.
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	d.reconcile("startup")

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			// Editors and our own atomic rename produce event bursts; settle
			// before reacting.
			debounce = time.After(500 * time.Millisecond)
			// Rename/remove drops the watch on some platforms; re-add.
			if ev.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
				_ = watcher.Add(d.sched.paths.Hosts)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.log.Warn("hosts watch error", logx.Err(err))
		case <-debounce:
			debounce = nil
			d.reconcile("hosts changed")
		}
	}
}

func (d *Daemon) reconcile(reason string) {
	expired, err := d.sched.Reconcile()
	if err != nil {
		d.log.Error("reconcile failed", logx.String("reason", reason), logx.Err(err))
		return
	}
	if len(expired) > 0 {
		d.log.Info("reconciled", logx.String("reason", reason), logx.Any("expired", expired))
	}
}
