// Package render formats reports for the terminal. JSON output bypasses this
// package entirely; everything here is for human eyes.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"netctl/internal/bandwidth"
	"netctl/internal/block"
	"netctl/internal/history"
	"netctl/internal/pingstat"
	"netctl/internal/speed"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	excellentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	goodStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	fairStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	poorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

func verdictStyle(v string) lipgloss.Style {
	switch v {
	case "excellent":
		return excellentStyle
	case "good":
		return goodStyle
	case "fair":
		return fairStyle
	case "poor":
		return poorStyle
	}
	return mutedStyle
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

// FormatBps renders a byte rate as a decimal-SI figure per second.
func FormatBps(bps float64) string {
	if bps < 0 {
		bps = 0
	}
	return humanize.Bytes(uint64(bps)) + "/s"
}

func formatMs(ms float64) string {
	return fmt.Sprintf("%.1f ms", ms)
}

func formatMbps(mbps float64, ok bool) string {
	if !ok {
		return mutedStyle.Render("unavailable")
	}
	return fmt.Sprintf("%.1f Mbit/s", mbps)
}

// PingReport renders the statistics for one host.
func PingReport(r *pingstat.Report) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("ping "+r.Host) + "\n")

	if r.Unreachable {
		b.WriteString(poorStyle.Render("unreachable") +
			fmt.Sprintf("  (%d sent, 0 received)\n", r.Sent))
		return b.String()
	}

	t := newTable("sent", "recv", "loss", "min", "avg", "max", "stddev", "jitter", "quality")
	t.Row(
		fmt.Sprintf("%d", r.Sent),
		fmt.Sprintf("%d", r.Received),
		fmt.Sprintf("%.1f%%", r.LossPct),
		formatMs(r.MinMs),
		formatMs(r.AvgMs),
		formatMs(r.MaxMs),
		formatMs(r.StdDevMs),
		formatMs(r.JitterMs),
		verdictStyle(string(r.Quality)).Render(string(r.Quality)),
	)
	b.WriteString(t.Render() + "\n")
	return b.String()
}

// PingReports renders one row per host for multi-target runs.
func PingReports(reports []*pingstat.Report) string {
	t := newTable("host", "sent", "recv", "loss", "avg", "jitter", "quality")
	for _, r := range reports {
		if r.Unreachable {
			t.Row(r.Host, fmt.Sprintf("%d", r.Sent), "0", "100.0%",
				mutedStyle.Render("-"), mutedStyle.Render("-"),
				poorStyle.Render("unreachable"))
			continue
		}
		t.Row(r.Host,
			fmt.Sprintf("%d", r.Sent),
			fmt.Sprintf("%d", r.Received),
			fmt.Sprintf("%.1f%%", r.LossPct),
			formatMs(r.AvgMs),
			formatMs(r.JitterMs),
			verdictStyle(string(r.Quality)).Render(string(r.Quality)),
		)
	}
	return t.Render() + "\n"
}

// BandwidthSnapshot renders one sampling tick.
func BandwidthSnapshot(s *bandwidth.Snapshot) string {
	var b strings.Builder
	b.WriteString(mutedStyle.Render(s.At.Format("15:04:05")) + "  total " +
		FormatBps(s.TotalDownloadBps) + " down / " +
		FormatBps(s.TotalUploadBps) + " up\n")

	if len(s.Entries) == 0 && s.Other == nil {
		b.WriteString(mutedStyle.Render("no traffic observed this interval") + "\n")
		return b.String()
	}

	t := newTable("app", "download", "upload", "total")
	for _, e := range s.Entries {
		t.Row(e.Name, FormatBps(e.DownloadBps), FormatBps(e.UploadBps), FormatBps(e.TotalBps()))
	}
	if s.Other != nil {
		t.Row(mutedStyle.Render(s.Other.Label()),
			FormatBps(s.Other.DownloadBps),
			FormatBps(s.Other.UploadBps),
			FormatBps(s.Other.DownloadBps+s.Other.UploadBps))
	}
	b.WriteString(t.Render() + "\n")
	return b.String()
}

// SpeedReport renders the outcome of one speed test run.
func SpeedReport(r *speed.Report) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("speed test") + "  " +
		mutedStyle.Render(r.Server) + "\n")

	t := newTable("metric", "value")
	t.Row("download", formatMbps(r.DownloadMbps, r.DownloadOK))
	t.Row("upload", formatMbps(r.UploadMbps, r.UploadOK))
	if r.PingOK {
		t.Row("ping", formatMs(r.PingMs))
		t.Row("jitter", formatMs(r.JitterMs))
		t.Row("loss", fmt.Sprintf("%.1f%%", r.LossPct))
	} else {
		t.Row("ping", mutedStyle.Render("unavailable"))
	}
	t.Row("verdict", verdictStyle(string(r.Verdict)).Render(string(r.Verdict)))
	b.WriteString(t.Render() + "\n")

	if desc := speed.DescribeVerdict(r.Verdict); desc != "" {
		b.WriteString(mutedStyle.Render(desc) + "\n")
	}
	return b.String()
}

// SpeedHistory renders stored runs, newest first.
func SpeedHistory(recs []history.Record) string {
	if len(recs) == 0 {
		return mutedStyle.Render("no recorded runs") + "\n"
	}
	t := newTable("when", "server", "download", "upload", "ping", "verdict")
	for _, rec := range recs {
		r := rec.Report
		t.Row(
			r.Timestamp.Local().Format("2006-01-02 15:04"),
			r.Server,
			formatMbps(r.DownloadMbps, r.DownloadOK),
			formatMbps(r.UploadMbps, r.UploadOK),
			pingCell(r),
			verdictStyle(string(r.Verdict)).Render(string(r.Verdict)),
		)
	}
	return t.Render() + "\n"
}

func pingCell(r speed.Report) string {
	if !r.PingOK {
		return mutedStyle.Render("-")
	}
	return formatMs(r.PingMs)
}

// SpeedStats renders aggregates over a window of stored runs.
func SpeedStats(st *history.Stats, window time.Duration) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("speed test stats") + "  " +
		mutedStyle.Render(fmt.Sprintf("last %s, %d runs", window, st.Count)) + "\n")
	if st.Count == 0 {
		b.WriteString(mutedStyle.Render("no runs in window") + "\n")
		return b.String()
	}

	t := newTable("metric", "avg", "min", "max")
	t.Row("download",
		fmt.Sprintf("%.1f Mbit/s", st.AvgDownload),
		fmt.Sprintf("%.1f Mbit/s", st.MinDownload),
		fmt.Sprintf("%.1f Mbit/s", st.MaxDownload))
	t.Row("upload",
		fmt.Sprintf("%.1f Mbit/s", st.AvgUpload),
		fmt.Sprintf("%.1f Mbit/s", st.MinUpload),
		fmt.Sprintf("%.1f Mbit/s", st.MaxUpload))
	t.Row("ping", formatMs(st.AvgPing), "", "")
	b.WriteString(t.Render() + "\n")
	return b.String()
}

// BlockStatus renders the active blocklist.
func BlockStatus(st *block.Status) string {
	var b strings.Builder
	state := excellentStyle.Render("enabled")
	if !st.Enabled {
		state = mutedStyle.Render("disabled")
	}
	b.WriteString(titleStyle.Render("blocklist") + "  " + state + "\n")

	if len(st.Entries) == 0 {
		b.WriteString(mutedStyle.Render("no blocked domains") + "\n")
		return b.String()
	}

	t := newTable("domain", "added", "expires", "remaining")
	for _, e := range st.Entries {
		expires := mutedStyle.Render("never")
		remaining := mutedStyle.Render("-")
		if e.ExpiresAt != nil {
			expires = e.ExpiresAt.Local().Format("2006-01-02 15:04")
			remaining = formatRemaining(e.Remaining(st.Now))
		}
		t.Row(e.Domain, e.CreatedAt.Local().Format("2006-01-02 15:04"), expires, remaining)
	}
	b.WriteString(t.Render() + "\n")
	return b.String()
}

func formatRemaining(d time.Duration) string {
	if d <= 0 {
		return poorStyle.Render("expired")
	}
	return d.Round(time.Second).String()
}
