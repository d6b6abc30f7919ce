package speed

import "math"

// Verdict is the composite connection classification.
type Verdict string

const (
	VerdictExcellent   Verdict = "excellent"
	VerdictGood        Verdict = "good"
	VerdictFair        Verdict = "fair"
	VerdictPoor        Verdict = "poor"
	VerdictUnavailable Verdict = "unavailable"
)

// VerdictRule is one row of the composite table: a report matches when every
// bound holds. Rules are evaluated top-down, first match wins.
type VerdictRule struct {
	Verdict      Verdict
	MinDownload  float64 // Mbps
	MinUpload    float64 // Mbps
	MaxLatencyMs float64
	MaxLossPct   float64
	Description  string
}

// VerdictRules is the published composite classification table.
var VerdictRules = []VerdictRule{
	{
		Verdict:     VerdictExcellent,
		MinDownload: 100, MinUpload: 20, MaxLatencyMs: 30, MaxLossPct: 0.5,
		Description: "excellent for streaming, calls and gaming",
	},
	{
		Verdict:     VerdictGood,
		MinDownload: 25, MinUpload: 5, MaxLatencyMs: 60, MaxLossPct: 1,
		Description: "good for HD streaming and video calls",
	},
	{
		Verdict:     VerdictFair,
		MinDownload: 5, MinUpload: 1, MaxLatencyMs: 120, MaxLossPct: 5,
		Description: "fair; large transfers and calls may struggle",
	},
	{
		Verdict:     VerdictPoor,
		MinDownload: 0, MinUpload: 0, MaxLatencyMs: math.Inf(1), MaxLossPct: math.Inf(1),
		Description: "poor connection quality",
	},
}

// ClassifyReport runs a report through VerdictRules. Legs marked unavailable
// are exempted from their bounds; a report with no usable legs at all is
// unavailable.
func ClassifyReport(r *Report) Verdict {
	if !r.DownloadOK && !r.UploadOK && !r.PingOK {
		return VerdictUnavailable
	}
	for _, rule := range VerdictRules {
		if r.DownloadOK && r.DownloadMbps < rule.MinDownload {
			continue
		}
		if r.UploadOK && r.UploadMbps < rule.MinUpload {
			continue
		}
		if r.PingOK && (r.PingMs > rule.MaxLatencyMs || r.LossPct > rule.MaxLossPct) {
			continue
		}
		return rule.Verdict
	}
	return VerdictPoor
}

// DescribeVerdict returns the operator-facing hint for a verdict.
func DescribeVerdict(v Verdict) string {
	for _, rule := range VerdictRules {
		if rule.Verdict == v {
			return rule.Description
		}
	}
	return "no measurement available"
}
