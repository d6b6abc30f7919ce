package watch

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunTicksUntilStop(t *testing.T) {
	t.Parallel()

	var ticks int
	err := Run(context.Background(), Options{Interval: 5 * time.Millisecond},
		func(_ context.Context, now time.Time) error {
			if now.IsZero() {
				t.Error("tick timestamp is zero")
			}
			ticks++
			if ticks == 3 {
				return ErrStop
			}
			return nil
		})
	if err != nil {
		t.Fatalf("Run: %v (ErrStop must read as a clean stop)", err)
	}
	if ticks != 3 {
		t.Fatalf("ticks = %d, want 3", ticks)
	}
}

func TestRunImmediate(t *testing.T) {
	t.Parallel()

	start := time.Now()
	err := Run(context.Background(), Options{Interval: time.Hour, Immediate: true},
		func(context.Context, time.Time) error { return ErrStop })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("immediate tick waited %v", elapsed)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{Interval: time.Hour}, func(context.Context, time.Time) error {
			t.Error("tick fired before the first interval")
			return nil
		})
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunPropagatesTickError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	err := Run(context.Background(), Options{Interval: time.Millisecond, Immediate: true},
		func(context.Context, time.Time) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestRunTickTimeout(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(),
		Options{Interval: time.Hour, TickTimeout: 10 * time.Millisecond, Immediate: true},
		func(ctx context.Context, _ time.Time) error {
			select {
			case <-ctx.Done():
				return ErrStop // overrunning tick gets cut off
			case <-time.After(5 * time.Second):
				return errors.New("tick context never expired")
			}
		})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}
