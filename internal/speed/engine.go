package speed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"netctl/internal/pingstat"
	"netctl/internal/probe"
	"netctl/pkg/logx"
)

// Config controls one engine run.
type Config struct {
	Detailed bool
	// Rounds is the number of transfer rounds per direction; the median
	// round is reported. Defaults: 1 (quick), 3 (detailed).
	Rounds int

	DownloadBytes int64 // per-round download size (sized servers only)
	UploadBytes   int64 // per-round upload payload size

	TransferTimeout time.Duration
	PingCount       int // probes for the embedded ping report
}

const (
	defaultDownloadBytes   = 25_000_000
	defaultUploadBytes     = 5_000_000
	defaultTransferTimeout = 30 * time.Second
	quickPingCount         = 5
	detailedPingCount      = 20
)

func (c Config) withDefaults() Config {
	if c.Rounds <= 0 {
		if c.Detailed {
			c.Rounds = 3
		} else {
			c.Rounds = 1
		}
	}
	if c.DownloadBytes <= 0 {
		c.DownloadBytes = defaultDownloadBytes
	}
	if c.UploadBytes <= 0 {
		c.UploadBytes = defaultUploadBytes
	}
	if c.TransferTimeout <= 0 {
		c.TransferTimeout = defaultTransferTimeout
	}
	if c.PingCount <= 0 {
		if c.Detailed {
			c.PingCount = detailedPingCount
		} else {
			c.PingCount = quickPingCount
		}
	}
	return c
}

// HostPinger produces a ping report for a host; satisfied by *probe.Pinger.
type HostPinger interface {
	Run(ctx context.Context, host string, opts probe.Options) (pingstat.Report, error)
}

// Engine runs speed tests. Construct with NewEngine.
type Engine struct {
	client *http.Client
	pinger HostPinger
	log    logx.Logger

	now func() time.Time
}

// EngineOption customizes an Engine (tests inject clients and clocks).
type EngineOption func(*Engine)

func WithHTTPClient(c *http.Client) EngineOption { return func(e *Engine) { e.client = c } }
func WithPinger(p HostPinger) EngineOption       { return func(e *Engine) { e.pinger = p } }
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(log logx.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		client: &http.Client{Timeout: defaultTransferTimeout},
		pinger: probe.NewPinger(log),
		log:    log,
		now:    time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run executes the full test against one server. A leg that fails twice is
// reported as unavailable instead of failing the run; Run only errors when
// every component (both directions and ping) produced nothing.
func (e *Engine) Run(ctx context.Context, srv Server, cfg Config) (*Report, error) {
	cfg = cfg.withDefaults()

	rep := &Report{
		Timestamp: e.now(),
		Server:    srv.String(),
		Detailed:  cfg.Detailed,
	}

	if pr, err := e.pinger.Run(ctx, srv.Host, probe.Options{Count: cfg.PingCount}); err != nil {
		e.log.Warn("ping leg failed", logx.String("host", srv.Host), logx.Err(err))
	} else if !pr.Unreachable {
		rep.PingOK = true
		rep.PingMs = pr.AvgMs
		rep.JitterMs = pr.JitterMs
		rep.LossPct = pr.LossPct
		rep.Ping = &pr
	}

	if mbps, ok := e.measure(ctx, srv, cfg, Download); ok {
		rep.DownloadOK = true
		rep.DownloadMbps = mbps
	}
	if mbps, ok := e.measure(ctx, srv, cfg, Upload); ok {
		rep.UploadOK = true
		rep.UploadMbps = mbps
	}

	if !rep.DownloadOK && !rep.UploadOK && !rep.PingOK {
		return nil, fmt.Errorf("speed test against %s produced no results", srv.String())
	}

	rep.Verdict = ClassifyReport(rep)
	return rep, nil
}

// measure runs the configured rounds for one direction and reports the
// median round. Each round gets one retry; a round that fails twice counts
// as failed, and a direction with zero successful rounds is unavailable.
func (e *Engine) measure(ctx context.Context, srv Server, cfg Config, dir Direction) (float64, bool) {
	rates := make([]float64, 0, cfg.Rounds)
	for round := 0; round < cfg.Rounds; round++ {
		res, err := e.transferOnce(ctx, srv, cfg, dir)
		if err != nil {
			e.log.Debug("transfer failed, retrying once",
				logx.String("direction", string(dir)), logx.Int("round", round), logx.Err(err))
			res, err = e.transferOnce(ctx, srv, cfg, dir)
		}
		if err != nil {
			e.log.Warn("transfer failed after retry",
				logx.String("direction", string(dir)), logx.Int("round", round), logx.Err(err))
			continue
		}
		rates = append(rates, res.Mbps())
	}
	if len(rates) == 0 {
		return 0, false
	}
	return median(rates), true
}

func (e *Engine) transferOnce(ctx context.Context, srv Server, cfg Config, dir Direction) (TransferResult, error) {
	tctx, cancel := context.WithTimeout(ctx, cfg.TransferTimeout)
	defer cancel()

	switch dir {
	case Download:
		return e.download(tctx, srv, cfg.DownloadBytes)
	default:
		return e.upload(tctx, srv, cfg.UploadBytes)
	}
}

func (e *Engine) download(ctx context.Context, srv Server, size int64) (TransferResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sizedDownloadURL(srv, size), nil)
	if err != nil {
		return TransferResult{}, err
	}

	start := e.now()
	resp, err := e.client.Do(req)
	if err != nil {
		return TransferResult{}, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return TransferResult{}, fmt.Errorf("download: server returned %s", resp.Status)
	}

	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return TransferResult{}, fmt.Errorf("download: %w", err)
	}
	elapsed := e.now().Sub(start)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	return TransferResult{Direction: Download, Bytes: n, Elapsed: elapsed, Server: srv.Name}, nil
}

func (e *Engine) upload(ctx context.Context, srv Server, size int64) (TransferResult, error) {
	payload := make([]byte, size)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.UploadURL, bytes.NewReader(payload))
	if err != nil {
		return TransferResult{}, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	start := e.now()
	resp, err := e.client.Do(req)
	if err != nil {
		return TransferResult{}, fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		return TransferResult{}, fmt.Errorf("upload: server returned %s", resp.Status)
	}
	elapsed := e.now().Sub(start)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	return TransferResult{Direction: Upload, Bytes: size, Elapsed: elapsed, Server: srv.Name}, nil
}

// median resists a single slow or fast outlier round better than the mean.
func median(vals []float64) float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
