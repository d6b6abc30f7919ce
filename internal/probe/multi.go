package probe

import (
	"context"

	"golang.org/x/sync/errgroup"

	"netctl/internal/pingstat"
)

// HostResult pairs a target with its report (or setup error).
type HostResult struct {
	Host   string
	Report pingstat.Report
	Err    error
}

// RunMulti probes several hosts concurrently. Each host gets its own
// collector so one slow target never blocks the others. Per-host failures are
// carried in the result, not returned: partial results beat no results.
func (p *Pinger) RunMulti(ctx context.Context, hosts []string, opts Options, maxConcurrent int) []HostResult {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	results := make([]HostResult, len(hosts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for i, h := range hosts {
		i, h := i, h
		g.Go(func() error {
			rep, err := p.Run(gctx, h, opts)
			results[i] = HostResult{Host: h, Report: rep, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	// Results keep the caller's host order.
	return results
}
