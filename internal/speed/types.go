// Package speed drives timed download/upload transfers against a measurement
// server and derives throughput, latency and a composite quality verdict.
package speed

import (
	"time"

	"netctl/internal/pingstat"
)

// Direction labels one transfer leg.
type Direction string

const (
	Download Direction = "download"
	Upload   Direction = "upload"
)

// TransferResult is one timed transfer attempt.
type TransferResult struct {
	Direction Direction
	Bytes     int64
	Elapsed   time.Duration
	Server    string
}

// Mbps converts the transfer into megabits per second.
func (t TransferResult) Mbps() float64 {
	if t.Elapsed <= 0 {
		return 0
	}
	return float64(t.Bytes) * 8 / t.Elapsed.Seconds() / 1e6
}

// Report is the aggregated outcome of one speed test.
//
// A direction that failed twice has its OK flag cleared and the Mbps figure
// is meaningless; everything else in the report is still valid.
type Report struct {
	Timestamp time.Time `json:"timestamp"`
	Server    string    `json:"server"`

	DownloadMbps float64 `json:"download_mbps"`
	DownloadOK   bool    `json:"download_ok"`
	UploadMbps   float64 `json:"upload_mbps"`
	UploadOK     bool    `json:"upload_ok"`

	PingMs   float64 `json:"ping_ms"`
	JitterMs float64 `json:"jitter_ms"`
	LossPct  float64 `json:"loss_pct"`
	PingOK   bool    `json:"ping_ok"`
	Detailed bool    `json:"detailed"`
	Verdict  Verdict `json:"verdict"`

	Ping *pingstat.Report `json:"ping_report,omitempty"`
}
