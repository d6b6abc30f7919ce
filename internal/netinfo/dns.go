package netinfo

import (
	"context"
	"net"
	"sort"
	"strings"
	"time"
)

// ResolveResult is one system-resolver lookup.
type ResolveResult struct {
	Domain  string        `json:"domain"`
	IPv4    []string      `json:"ipv4,omitempty"`
	IPv6    []string      `json:"ipv6,omitempty"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// DNSServer is one configured resolver with a vendor label.
type DNSServer struct {
	Addr  string `json:"addr"`
	Label string `json:"label"`
}

// BenchmarkResult is one resolver's aggregate over the probe domains.
type BenchmarkResult struct {
	Server     string  `json:"server"`
	Label      string  `json:"label"`
	AvgMs      float64 `json:"avg_ms"`
	SuccessPct float64 `json:"success_pct"`
}

// Resolve looks a domain up with the system resolver.
func (i *Inspector) Resolve(ctx context.Context, domain string) (*ResolveResult, error) {
	start := time.Now()
	ips, err := net.DefaultResolver.LookupIPAddr(ctx, domain)
	if err != nil {
		return nil, err
	}

	res := &ResolveResult{Domain: domain, Elapsed: time.Since(start)}
	for _, ip := range ips {
		if ip.IP.To4() != nil {
			res.IPv4 = append(res.IPv4, ip.IP.String())
		} else {
			res.IPv6 = append(res.IPv6, ip.IP.String())
		}
	}
	sort.Strings(res.IPv4)
	sort.Strings(res.IPv6)
	return res, nil
}

// FlushCache asks the platform's cache daemon to drop its entries. Returns
// false when no known flusher succeeded (often a privilege problem).
func (i *Inspector) FlushCache(ctx context.Context) bool {
	ok := false
	if _, err := i.runCommand(ctx, "resolvectl", "flush-caches"); err == nil {
		ok = true
	}
	if _, err := i.runCommand(ctx, "dscacheutil", "-flushcache"); err == nil {
		_, _ = i.runCommand(ctx, "killall", "-HUP", "mDNSResponder")
		ok = true
	}
	return ok
}

// Servers lists configured resolvers from resolv.conf, scutil as fallback.
func (i *Inspector) Servers(ctx context.Context) []DNSServer {
	var out []DNSServer
	if data, err := i.readFile("/etc/resolv.conf"); err == nil {
		for _, addr := range parseResolvConf(data) {
			out = append(out, DNSServer{Addr: addr, Label: IdentifyDNSServer(addr)})
		}
	}
	if len(out) == 0 {
		if data, err := i.runCommand(ctx, "scutil", "--dns"); err == nil {
			for _, addr := range parseScutilDNS(data) {
				out = append(out, DNSServer{Addr: addr, Label: IdentifyDNSServer(addr)})
			}
		}
	}
	return out
}

// benchmarkDomains exercise several unrelated zones so one slow
// authoritative server does not skew a resolver's average.
var benchmarkDomains = []string{
	"google.com",
	"github.com",
	"cloudflare.com",
	"amazon.com",
	"microsoft.com",
}

var publicResolvers = []DNSServer{
	{Addr: "1.1.1.1", Label: "Cloudflare"},
	{Addr: "8.8.8.8", Label: "Google"},
	{Addr: "208.67.222.222", Label: "Cisco/OpenDNS"},
	{Addr: "9.9.9.9", Label: "Quad9"},
}

// Benchmark times lookups against the well-known public resolvers plus the
// system default. Results come back in test order; the caller picks the best.
func (i *Inspector) Benchmark(ctx context.Context) []BenchmarkResult {
	targets := make([]DNSServer, len(publicResolvers))
	copy(targets, publicResolvers)

	if sys := i.Servers(ctx); len(sys) > 0 {
		targets = append(targets, DNSServer{Addr: sys[0].Addr, Label: "System"})
	}

	out := make([]BenchmarkResult, 0, len(targets))
	for _, t := range targets {
		avg, success := benchmarkResolver(ctx, t.Addr, benchmarkDomains)
		out = append(out, BenchmarkResult{
			Server:     t.Addr,
			Label:      t.Label,
			AvgMs:      avg,
			SuccessPct: success,
		})
	}
	return out
}

// Best returns the fastest result that resolved anything, or nil.
func Best(results []BenchmarkResult) *BenchmarkResult {
	var best *BenchmarkResult
	for idx := range results {
		r := &results[idx]
		if r.AvgMs <= 0 {
			continue
		}
		if best == nil || r.AvgMs < best.AvgMs {
			best = r
		}
	}
	return best
}

// benchmarkResolver queries one server directly, bypassing the system
// resolver, via a net.Resolver dialing server:53.
func benchmarkResolver(ctx context.Context, server string, domains []string) (avgMs, successPct float64) {
	r := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{Timeout: 2 * time.Second}
			return d.DialContext(ctx, network, net.JoinHostPort(server, "53"))
		},
	}

	var total float64
	var successes int
	for _, domain := range domains {
		qctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		start := time.Now()
		ips, err := r.LookupIPAddr(qctx, domain)
		cancel()
		if err != nil || len(ips) == 0 {
			continue
		}
		total += float64(time.Since(start).Microseconds()) / 1000
		successes++
	}

	if successes > 0 {
		avgMs = total / float64(successes)
	}
	successPct = float64(successes) / float64(len(domains)) * 100
	return avgMs, successPct
}

// IdentifyDNSServer labels well-known public resolver addresses.
func IdentifyDNSServer(addr string) string {
	switch addr {
	case "1.1.1.1", "1.0.0.1":
		return "Cloudflare"
	case "8.8.8.8", "8.8.4.4":
		return "Google"
	case "208.67.222.222", "208.67.220.220":
		return "Cisco/OpenDNS"
	case "9.9.9.9", "149.112.112.112":
		return "Quad9"
	}
	return "ISP/Custom"
}

func (i *Inspector) systemDNSServers(ctx context.Context) []string {
	servers := i.Servers(ctx)
	out := make([]string, 0, len(servers))
	for _, s := range servers {
		out = append(out, s.Addr)
	}
	return out
}

func parseResolvConf(data []byte) []string {
	var servers []string
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "nameserver") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			servers = append(servers, fields[1])
		}
	}
	return servers
}

func parseScutilDNS(data []byte) []string {
	var servers []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.Contains(line, "nameserver[") {
			continue
		}
		if _, val, ok := strings.Cut(line, ":"); ok {
			addr := strings.TrimSpace(val)
			if addr != "" && !seen[addr] {
				seen[addr] = true
				servers = append(servers, addr)
			}
		}
	}
	return servers
}
