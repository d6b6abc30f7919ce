package pingstat

import "math"

// Verdict is a four-tier link quality classification.
type Verdict string

const (
	VerdictExcellent Verdict = "excellent"
	VerdictGood      Verdict = "good"
	VerdictFair      Verdict = "fair"
	VerdictPoor      Verdict = "poor"
)

// QualityRule is one row of the verdict table.
//
// Rules are evaluated top-down and the first match wins. A rule with
// LossAbovePct > 0 matches when loss exceeds that bound regardless of
// latency. Otherwise the rule matches when avg RTT and jitter are both
// within the Max bounds.
type QualityRule struct {
	Verdict      Verdict
	LossAbovePct float64
	MaxAvgMs     float64
	MaxJitterMs  float64
}

// QualityRules is the published classification table. Loss dominates:
// anything above 5% loss can never rate better than fair.
var QualityRules = []QualityRule{
	{Verdict: VerdictPoor, LossAbovePct: 20},
	{Verdict: VerdictFair, LossAbovePct: 5},
	{Verdict: VerdictExcellent, MaxAvgMs: 30, MaxJitterMs: 10},
	{Verdict: VerdictGood, MaxAvgMs: 60, MaxJitterMs: 20},
	{Verdict: VerdictFair, MaxAvgMs: 100, MaxJitterMs: math.Inf(1)},
	{Verdict: VerdictPoor, MaxAvgMs: math.Inf(1), MaxJitterMs: math.Inf(1)},
}

// Classify runs the metrics through QualityRules.
func Classify(lossPct, avgMs, jitterMs float64) Verdict {
	for _, r := range QualityRules {
		if r.LossAbovePct > 0 {
			if lossPct > r.LossAbovePct {
				return r.Verdict
			}
			continue
		}
		if avgMs <= r.MaxAvgMs && jitterMs <= r.MaxJitterMs {
			return r.Verdict
		}
	}
	return VerdictPoor
}

// Describe maps a verdict to the operator-facing hint shown next to it.
func Describe(v Verdict) string {
	switch v {
	case VerdictExcellent:
		return "suitable for real-time apps"
	case VerdictGood:
		return "suitable for most applications"
	case VerdictFair:
		return "may affect real-time apps"
	default:
		return "high latency or loss"
	}
}
