// Package psnet reads raw per-process byte counters from platform tools and
// hands them to the bandwidth aggregator as parsed samples.
//
// Resolution order: nettop (macOS, true per-process cumulative counters),
// then ss + /proc (Linux, queue-depth approximation), then /proc/net/dev
// interface totals as a last resort (reported as pseudo-apps named after the
// interface).
package psnet

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"netctl/internal/bandwidth"
	"netctl/pkg/logx"
)

// Sampler produces one batch of counter samples per call.
type Sampler struct {
	log logx.Logger

	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
	readFile   func(path string) ([]byte, error)
}

func NewSampler(log logx.Logger) *Sampler {
	return &Sampler{
		log:        log,
		runCommand: runCommand,
		readFile:   os.ReadFile,
	}
}

// Sample collects one batch. An empty batch with nil error means no source
// was usable (typically a privilege problem); callers decide how to surface
// that.
func (s *Sampler) Sample(ctx context.Context) ([]bandwidth.CounterSample, error) {
	now := time.Now()

	if out, err := s.runCommand(ctx, "nettop", "-P", "-L", "1", "-J", "bytes_in,bytes_out", "-x"); err == nil {
		if batch := parseNettop(out, now); len(batch) > 0 {
			return batch, nil
		}
	}

	if out, err := s.runCommand(ctx, "ss", "-tunap"); err == nil {
		batch := parseSS(out, now)
		for i := range batch {
			if batch[i].Name == "" {
				batch[i].Name = s.processName(batch[i].PID)
			}
		}
		if len(batch) > 0 {
			return batch, nil
		}
	}

	if data, err := s.readFile("/proc/net/dev"); err == nil {
		if batch := parseProcNetDev(data, now); len(batch) > 0 {
			s.log.Debug("per-process counters unavailable, using interface totals")
			return batch, nil
		}
	}

	return nil, nil
}

// processName resolves a PID to its command name via /proc, falling back to ps.
func (s *Sampler) processName(pid int) string {
	if pid <= 0 {
		return "Unknown"
	}
	if data, err := s.readFile(filepath.Join("/proc", itoa(pid), "comm")); err == nil {
		if name := strings.TrimSpace(string(data)); name != "" {
			return name
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if out, err := s.runCommand(ctx, "ps", "-p", itoa(pid), "-o", "comm="); err == nil {
		name := strings.TrimSpace(string(out))
		if name != "" {
			return filepath.Base(name)
		}
	}
	return "Unknown"
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Output()
}
