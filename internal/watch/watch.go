// Package watch is the periodic-task primitive behind the --watch modes: one
// tick per interval, a timestamp per tick, cancellation between ticks, and a
// per-tick timeout independent of the cadence.
package watch

import (
	"context"
	"errors"
	"time"
)

// Options shape a watch loop.
type Options struct {
	Interval time.Duration
	// TickTimeout bounds one tick's work; 0 defaults to the interval, so an
	// overrunning tick is abandoned rather than backing up the loop.
	TickTimeout time.Duration
	// Immediate runs the first tick right away instead of waiting one interval.
	Immediate bool
}

// ErrStop lets a tick function end the loop cleanly.
var ErrStop = errors.New("watch: stop")

// Run drives fn once per interval until ctx is canceled or fn returns
// ErrStop. fn receives the tick's own context (carrying the tick timeout)
// and the tick timestamp; consumers must use that timestamp rather than
// assuming perfectly periodic spacing. Errors from fn other than ErrStop are
// returned to the caller.
func Run(ctx context.Context, opts Options, fn func(ctx context.Context, now time.Time) error) error {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.TickTimeout <= 0 {
		opts.TickTimeout = opts.Interval
	}

	tick := func(now time.Time) error {
		tctx, cancel := context.WithTimeout(ctx, opts.TickTimeout)
		defer cancel()
		return fn(tctx, now)
	}

	if opts.Immediate {
		if err := tick(time.Now()); err != nil {
			return stopOrErr(err)
		}
	}

	t := time.NewTicker(opts.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			if err := tick(now); err != nil {
				return stopOrErr(err)
			}
		}
	}
}

func stopOrErr(err error) error {
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}
