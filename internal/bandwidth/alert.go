package bandwidth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AlertEvent is emitted once per threshold crossing (edge-triggered).
type AlertEvent struct {
	ID           string
	App          string // empty for the total-traffic alert
	RateBps      float64
	ThresholdBps float64
	At           time.Time
}

func (e AlertEvent) Total() bool { return e.App == "" }

// AlertMonitor tracks which thresholds are currently above their bound so an
// alert fires on the crossing tick only, not on every tick the condition
// holds. The alert re-arms once the rate drops back under the threshold.
type AlertMonitor struct {
	PerAppBps float64 // 0 disables per-app alerts
	TotalBps  float64 // 0 disables the total alert

	firing map[string]bool // keyed by app name; "" is the total
}

func NewAlertMonitor(perAppBps, totalBps float64) *AlertMonitor {
	return &AlertMonitor{PerAppBps: perAppBps, TotalBps: totalBps, firing: make(map[string]bool)}
}

// Evaluate checks one tick's entries against the thresholds.
func (m *AlertMonitor) Evaluate(entries []Rate, totalBps float64, now time.Time) []AlertEvent {
	var events []AlertEvent

	if m.TotalBps > 0 {
		events = append(events, m.check("", totalBps, m.TotalBps, now)...)
	}
	if m.PerAppBps > 0 {
		seen := make(map[string]bool, len(entries))
		for _, e := range entries {
			seen[e.Name] = true
			events = append(events, m.check(e.Name, e.TotalBps(), m.PerAppBps, now)...)
		}
		// Apps that vanished from the snapshot re-arm.
		for name := range m.firing {
			if name != "" && !seen[name] {
				delete(m.firing, name)
			}
		}
	}
	return events
}

func (m *AlertMonitor) check(key string, rate, threshold float64, now time.Time) []AlertEvent {
	above := rate > threshold
	was := m.firing[key]
	switch {
	case above && !was:
		m.firing[key] = true
		return []AlertEvent{{
			ID:           uuid.NewString(),
			App:          key,
			RateBps:      rate,
			ThresholdBps: threshold,
			At:           now,
		}}
	case !above && was:
		delete(m.firing, key)
	}
	return nil
}

// ParseThreshold parses operator threshold strings like "10MB", "500KB",
// "1.5GB" or a raw byte count. Units are decimal (KB = 1000 bytes), matching
// how rates are displayed.
func ParseThreshold(s string) (float64, error) {
	t := strings.ToUpper(strings.TrimSpace(s))
	if t == "" {
		return 0, fmt.Errorf("empty threshold")
	}

	mult := 1.0
	switch {
	case strings.HasSuffix(t, "GB"):
		mult, t = 1e9, strings.TrimSuffix(t, "GB")
	case strings.HasSuffix(t, "MB"):
		mult, t = 1e6, strings.TrimSuffix(t, "MB")
	case strings.HasSuffix(t, "KB"):
		mult, t = 1e3, strings.TrimSuffix(t, "KB")
	case strings.HasSuffix(t, "B"):
		t = strings.TrimSuffix(t, "B")
	}

	n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid threshold %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("threshold must be >= 0")
	}
	return n * mult, nil
}
