// Package probe produces RTT samples for internal/pingstat.
//
// The primary prober uses ICMP echo via pro-bing (unprivileged UDP mode, with
// a privileged retry for hosts where that is blocked). When ICMP is
// unavailable entirely, a TCP connect probe against port 80 approximates RTT.
package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"netctl/internal/pingstat"
	"netctl/pkg/logx"
)

// Options bound a single ping run.
type Options struct {
	Count    int           // number of probes; <= 0 means DefaultCount
	Interval time.Duration // spacing between probes
	Timeout  time.Duration // per-probe upper bound; no probe may hang past it
}

const (
	DefaultCount    = 10
	DefaultInterval = 200 * time.Millisecond
	DefaultTimeout  = 2 * time.Second
)

func (o Options) withDefaults() Options {
	if o.Count <= 0 {
		o.Count = DefaultCount
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Pinger runs ping measurements against single hosts.
type Pinger struct {
	log logx.Logger

	// tcpFallback allows disabling the TCP path in tests.
	tcpFallback bool
}

func NewPinger(log logx.Logger) *Pinger {
	return &Pinger{log: log, tcpFallback: true}
}

// Run probes one host and returns the final report. A host that answers no
// probes yields an unreachable report, not an error; errors mean the probe
// source itself could not be set up.
func (p *Pinger) Run(ctx context.Context, host string, opts Options) (pingstat.Report, error) {
	opts = opts.withDefaults()
	col := pingstat.NewCollector(host)

	err := p.runICMP(ctx, host, opts, col)
	if err != nil && p.tcpFallback {
		p.log.Debug("icmp probing unavailable, falling back to tcp", logx.String("host", host), logx.Err(err))
		err = p.runTCP(ctx, host, opts, col)
	}
	if err != nil {
		return pingstat.Report{}, fmt.Errorf("probe %s: %w", host, err)
	}
	return col.Snapshot(), nil
}

// Watch probes the host continuously and invokes onTick with a running
// snapshot once per tickEvery until ctx is canceled.
func (p *Pinger) Watch(ctx context.Context, host string, opts Options, tickEvery time.Duration, onTick func(pingstat.Report)) error {
	opts = opts.withDefaults()
	if tickEvery <= 0 {
		tickEvery = time.Second
	}
	col := pingstat.NewCollector(host)

	done := make(chan error, 1)
	go func() {
		// Count 0 on the pro-bing side means unbounded; we drive cancellation
		// through ctx.
		unbounded := opts
		unbounded.Count = 0
		done <- p.runICMP(ctx, host, unbounded, col)
	}()

	t := time.NewTicker(tickEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-done:
			return err
		case <-t.C:
			onTick(col.Snapshot())
		}
	}
}

func (p *Pinger) runICMP(ctx context.Context, host string, opts Options, col *pingstat.Collector) error {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return err
	}
	pinger.Count = opts.Count
	pinger.Interval = opts.Interval
	if budget := totalBudget(opts); budget > 0 {
		pinger.Timeout = budget
	}
	pinger.SetPrivileged(false)

	pinger.OnSend = func(pkt *probing.Packet) { col.Sent() }
	pinger.OnRecv = func(pkt *probing.Packet) { col.Receive(pkt.Seq, pkt.Rtt, time.Now()) }
	if ipaddr := pinger.IPAddr(); ipaddr != nil {
		col.SetAddr(ipaddr.String())
	}

	if err := pinger.RunWithContext(ctx); err != nil {
		// Unprivileged UDP sockets are disabled on some systems; retry raw.
		pinger.SetPrivileged(true)
		if rerr := pinger.RunWithContext(ctx); rerr != nil {
			return err
		}
	}
	return nil
}

// runTCP approximates RTT with timed TCP connects to port 80.
func (p *Pinger) runTCP(ctx context.Context, host string, opts Options, col *pingstat.Collector) error {
	target := net.JoinHostPort(host, "80")
	d := net.Dialer{Timeout: opts.Timeout}

	count := opts.Count
	if count <= 0 {
		count = DefaultCount
	}
	for seq := 0; seq < count; seq++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		col.Sent()
		start := time.Now()
		conn, err := d.DialContext(ctx, "tcp", target)
		if err == nil {
			col.Receive(seq, time.Since(start), time.Now())
			_ = conn.Close()
		} else {
			col.Lost(seq, time.Now())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.Interval):
		}
	}
	return nil
}

// totalBudget caps a whole bounded run: per-probe budget plus the inter-probe
// spacing.
func totalBudget(opts Options) time.Duration {
	if opts.Count <= 0 {
		// Unbounded run: pro-bing interprets a zero timeout as "forever",
		// which is what watch mode wants (ctx drives cancellation).
		return 0
	}
	return time.Duration(opts.Count)*(opts.Interval+opts.Timeout) + opts.Timeout
}
