// Package pingstat turns a stream of per-probe RTT samples into latency,
// jitter, loss and quality statistics.
//
// The collector is the measurement core: probing itself (ICMP, TCP fallback)
// lives in internal/probe and feeds samples in here.
package pingstat

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Sample is one probe outcome. Lost samples carry no RTT.
type Sample struct {
	Seq  int
	RTT  time.Duration
	Lost bool
	At   time.Time
}

// Report is a point-in-time view over the samples collected so far.
//
// When Received == 0 the latency figures are undefined and Unreachable is set;
// callers must not interpret the zero values as measurements.
type Report struct {
	Host     string  `json:"host"`
	Addr     string  `json:"addr,omitempty"`
	Sent     int     `json:"sent"`
	Received int     `json:"received"`
	LossPct  float64 `json:"loss_pct"`

	Unreachable bool    `json:"unreachable"`
	MinMs       float64 `json:"min_ms"`
	AvgMs       float64 `json:"avg_ms"`
	MaxMs       float64 `json:"max_ms"`
	StdDevMs    float64 `json:"stddev_ms"`
	JitterMs    float64 `json:"jitter_ms"`

	Quality Verdict `json:"quality"`
}

// Collector accumulates RTT samples for a single target host.
//
// It is safe for concurrent use: probe callbacks may record new samples while
// another goroutine takes a Snapshot.
type Collector struct {
	mu   sync.Mutex
	host string
	addr string

	sent    int
	samples map[int]Sample // keyed by sequence number
}

func NewCollector(host string) *Collector {
	return &Collector{host: host, samples: make(map[int]Sample)}
}

// SetAddr records the resolved address for reporting.
func (c *Collector) SetAddr(addr string) {
	c.mu.Lock()
	c.addr = addr
	c.mu.Unlock()
}

// Sent marks one probe as dispatched. The sent count grows immediately,
// before the reply (or its absence) is known, so loss is computed against
// everything dispatched so far.
func (c *Collector) Sent() {
	c.mu.Lock()
	c.sent++
	c.mu.Unlock()
}

// Receive records a reply for the given sequence number. A duplicate reply
// for a sequence already recorded is ignored; sequence numbers are never
// reused within one run.
func (c *Collector) Receive(seq int, rtt time.Duration, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.samples[seq]; dup {
		return
	}
	c.samples[seq] = Sample{Seq: seq, RTT: rtt, At: at}
}

// Lost explicitly records a probe as lost. Optional: probes that simply never
// answer are counted as lost anyway (sent minus received).
func (c *Collector) Lost(seq int, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.samples[seq]; dup {
		return
	}
	c.samples[seq] = Sample{Seq: seq, Lost: true, At: at}
}

// Snapshot computes a Report from the samples so far without blocking new
// samples from arriving for longer than the computation itself.
func (c *Collector) Snapshot() Report {
	c.mu.Lock()
	host := c.host
	addr := c.addr
	sent := c.sent
	received := make([]Sample, 0, len(c.samples))
	for _, s := range c.samples {
		if !s.Lost {
			received = append(received, s)
		}
	}
	c.mu.Unlock()

	// Jitter is defined over sequence order, not arrival order.
	sort.Slice(received, func(i, j int) bool { return received[i].Seq < received[j].Seq })

	r := Report{Host: host, Addr: addr, Sent: sent, Received: len(received)}
	if sent > 0 {
		r.LossPct = float64(sent-len(received)) / float64(sent) * 100
	}

	if len(received) == 0 {
		r.Unreachable = true
		r.Quality = VerdictPoor
		return r
	}

	rtts := make([]float64, len(received))
	for i, s := range received {
		rtts[i] = float64(s.RTT) / float64(time.Millisecond)
	}

	r.MinMs = rtts[0]
	r.MaxMs = rtts[0]
	var sum float64
	for _, v := range rtts {
		sum += v
		if v < r.MinMs {
			r.MinMs = v
		}
		if v > r.MaxMs {
			r.MaxMs = v
		}
	}
	r.AvgMs = sum / float64(len(rtts))

	if len(rtts) >= 2 {
		var variance float64
		for _, v := range rtts {
			d := v - r.AvgMs
			variance += d * d
		}
		variance /= float64(len(rtts) - 1)
		r.StdDevMs = math.Sqrt(variance)

		var diffSum float64
		for i := 1; i < len(rtts); i++ {
			diffSum += math.Abs(rtts[i] - rtts[i-1])
		}
		r.JitterMs = diffSum / float64(len(rtts)-1)
	}

	r.Quality = Classify(r.LossPct, r.AvgMs, r.JitterMs)
	return r
}
