// Package bandwidth converts periodic per-process byte-counter readings into
// rate snapshots and edge-triggered alerts.
//
// The aggregator consumes already-parsed counter samples (internal/psnet
// produces them) and never touches the system itself.
package bandwidth

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// CounterSample is one cumulative byte-counter reading for a process.
// Counters are monotonic per process unless the process restarted.
type CounterSample struct {
	PID     int
	Name    string
	RxBytes uint64
	TxBytes uint64
	At      time.Time
}

// Rate is the derived per-app transfer rate over one sampling window.
type Rate struct {
	Name        string
	DownloadBps float64
	UploadBps   float64
	Window      time.Duration
}

func (r Rate) TotalBps() float64 { return r.DownloadBps + r.UploadBps }

// Snapshot is the per-tick ranking. Entries are sorted by total rate
// descending; entries beyond the configured top-N are folded into Other.
type Snapshot struct {
	At      time.Time
	Entries []Rate
	Other   *OtherBucket

	TotalDownloadBps float64
	TotalUploadBps   float64
}

// OtherBucket aggregates the entries that did not make the top-N cut.
type OtherBucket struct {
	Apps        int
	DownloadBps float64
	UploadBps   float64
}

func (o OtherBucket) Label() string { return fmt.Sprintf("Other (%d apps)", o.Apps) }

// Aggregator holds per-process baselines between ticks.
//
// Not safe for concurrent use; watch loops drive it from a single goroutine.
type Aggregator struct {
	topN   int // <= 0 means unlimited
	filter string

	prev map[int]CounterSample

	alerts *AlertMonitor
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithTopN caps how many apps are reported individually. n <= 0 reports all.
func WithTopN(n int) Option { return func(a *Aggregator) { a.topN = n } }

// WithAppFilter keeps only apps whose name contains the given substring
// (case-insensitive).
func WithAppFilter(name string) Option { return func(a *Aggregator) { a.filter = name } }

// WithAlerts attaches an alert monitor evaluated on every tick.
func WithAlerts(m *AlertMonitor) Option { return func(a *Aggregator) { a.alerts = m } }

func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{prev: make(map[int]CounterSample)}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Observe ingests one tick's batch and returns the snapshot for that tick,
// plus any alert events that fired on it.
//
// Per-process handling:
//   - seen before with counters >= previous: rate = delta / elapsed
//   - first sighting: baseline only, no rate this tick (a fresh baseline
//     would otherwise report the process's lifetime total as a burst)
//   - counter decreased: process restarted; re-baseline, no rate this tick
func (a *Aggregator) Observe(batch []CounterSample, now time.Time) (Snapshot, []AlertEvent) {
	perApp := make(map[string]*Rate)
	next := make(map[int]CounterSample, len(batch))

	for _, cur := range batch {
		next[cur.PID] = cur

		prev, seen := a.prev[cur.PID]
		if !seen {
			continue
		}
		if cur.RxBytes < prev.RxBytes || cur.TxBytes < prev.TxBytes {
			// Counter reset: restart. The new reading becomes the baseline.
			continue
		}
		elapsed := cur.At.Sub(prev.At)
		if elapsed <= 0 {
			continue
		}
		secs := elapsed.Seconds()

		r := perApp[cur.Name]
		if r == nil {
			r = &Rate{Name: cur.Name, Window: elapsed}
			perApp[cur.Name] = r
		}
		r.DownloadBps += float64(cur.RxBytes-prev.RxBytes) / secs
		r.UploadBps += float64(cur.TxBytes-prev.TxBytes) / secs
	}
	a.prev = next

	entries := make([]Rate, 0, len(perApp))
	for _, r := range perApp {
		if a.filter != "" && !containsFold(r.Name, a.filter) {
			continue
		}
		entries = append(entries, *r)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalBps() != entries[j].TotalBps() {
			return entries[i].TotalBps() > entries[j].TotalBps()
		}
		return entries[i].Name < entries[j].Name
	})

	snap := Snapshot{At: now}
	for _, e := range entries {
		snap.TotalDownloadBps += e.DownloadBps
		snap.TotalUploadBps += e.UploadBps
	}

	if a.topN > 0 && len(entries) > a.topN {
		rest := entries[a.topN:]
		other := &OtherBucket{Apps: len(rest)}
		for _, e := range rest {
			other.DownloadBps += e.DownloadBps
			other.UploadBps += e.UploadBps
		}
		snap.Entries = entries[:a.topN]
		snap.Other = other
	} else {
		snap.Entries = entries
	}

	var events []AlertEvent
	if a.alerts != nil {
		events = a.alerts.Evaluate(entries, snap.TotalDownloadBps+snap.TotalUploadBps, now)
	}
	return snap, events
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
