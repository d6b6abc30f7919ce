package render

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"netctl/internal/netinfo"
)

const maxConnectionRows = 30

// ConnReport renders the connection listing with totals.
func ConnReport(rep *netinfo.ConnReport) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("active network connections") + "\n")

	if len(rep.Connections) == 0 {
		b.WriteString(mutedStyle.Render("no active connections found") + "\n")
		return b.String()
	}

	shown := len(rep.Connections)
	if shown > maxConnectionRows {
		shown = maxConnectionRows
	}

	t := newTable("pid", "app", "remote", "proto", "state")
	for _, c := range rep.Connections[:shown] {
		t.Row(c.PID, c.App, c.Remote, c.Protocol, c.State)
	}
	b.WriteString(t.Render() + "\n")
	b.WriteString(fmt.Sprintf("total %d (%d shown), external %d, local %d\n",
		rep.Total, shown, rep.External, rep.Local))
	return b.String()
}

// VPNStatus renders tunnel state.
func VPNStatus(st *netinfo.VPNStatus, detailed bool) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("vpn status") + "\n")

	if !st.Connected {
		b.WriteString(mutedStyle.Render("no active VPN tunnel detected") + "\n")
		b.WriteString(mutedStyle.Render("checked tun/utun/tap/ppp/wg/ipsec interfaces") + "\n")
		return b.String()
	}

	t := newTable("field", "value")
	t.Row("state", excellentStyle.Render("connected"))
	if st.Server != "" {
		t.Row("server", st.Server)
	}
	t.Row("protocol", st.Protocol)
	t.Row("interface", st.Interface)
	if st.LocalIP != "" || st.TunnelIP != "" {
		t.Row("ip", fmt.Sprintf("%s -> %s", orUnknown(st.LocalIP), orUnknown(st.TunnelIP)))
	}
	if len(st.DNSServers) > 0 {
		t.Row("dns", strings.Join(st.DNSServers, ", "))
	}
	if detailed {
		t.Row("sent", humanize.Bytes(st.BytesSent))
		t.Row("received", humanize.Bytes(st.BytesReceived))
	}
	b.WriteString(t.Render() + "\n")
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// ResolveResult renders one lookup.
func ResolveResult(res *netinfo.ResolveResult) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("dns resolution") + "  " + res.Domain + "\n")
	if len(res.IPv4) > 0 {
		b.WriteString("ipv4:\n")
		for _, ip := range res.IPv4 {
			b.WriteString("  " + ip + "\n")
		}
	}
	if len(res.IPv6) > 0 {
		b.WriteString("ipv6:\n")
		for _, ip := range res.IPv6 {
			b.WriteString("  " + ip + "\n")
		}
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf("resolved in %.1f ms, %d IPv4 / %d IPv6 records",
		float64(res.Elapsed.Microseconds())/1000, len(res.IPv4), len(res.IPv6))) + "\n")
	return b.String()
}

// DNSServers renders the configured resolvers.
func DNSServers(servers []netinfo.DNSServer) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("configured dns servers") + "\n")
	if len(servers) == 0 {
		b.WriteString(mutedStyle.Render("no dns servers found") + "\n")
		return b.String()
	}
	for _, s := range servers {
		b.WriteString("  " + s.Addr + "  " + mutedStyle.Render("("+s.Label+")") + "\n")
	}
	return b.String()
}

// DNSBenchmark renders the resolver comparison and a recommendation.
func DNSBenchmark(results []netinfo.BenchmarkResult) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("dns benchmark") + "\n")

	t := newTable("server", "avg latency", "success")
	for _, r := range results {
		latency := mutedStyle.Render("timeout")
		if r.AvgMs > 0 {
			latency = fmt.Sprintf("%.0f ms", r.AvgMs)
		}
		t.Row(fmt.Sprintf("%s (%s)", r.Server, r.Label), latency,
			fmt.Sprintf("%.0f%%", r.SuccessPct))
	}
	b.WriteString(t.Render() + "\n")

	if best := netinfo.Best(results); best != nil {
		b.WriteString(fmt.Sprintf("recommendation: %s (%s)\n",
			excellentStyle.Render(best.Server), best.Label))
	}
	return b.String()
}
