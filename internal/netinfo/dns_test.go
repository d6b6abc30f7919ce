package netinfo

import (
	"context"
	"errors"
	"testing"

	"netctl/pkg/logx"
)

const resolvConf = `# Generated by NetworkManager
search lan
nameserver 192.168.1.1
nameserver 8.8.8.8
# nameserver 1.1.1.1
options edns0
`

func TestParseResolvConf(t *testing.T) {
	t.Parallel()
	servers := parseResolvConf([]byte(resolvConf))

	want := []string{"192.168.1.1", "8.8.8.8"}
	if len(servers) != len(want) {
		t.Fatalf("servers = %v, want %v", servers, want)
	}
	for n := range want {
		if servers[n] != want[n] {
			t.Fatalf("servers = %v, want %v", servers, want)
		}
	}
}

const scutilOut = `DNS configuration

resolver #1
  nameserver[0] : 192.168.1.1
  nameserver[1] : 1.1.1.1
  if_index : 14 (en0)

resolver #2
  nameserver[0] : 192.168.1.1
  domain   : local
`

func TestParseScutilDNS(t *testing.T) {
	t.Parallel()
	servers := parseScutilDNS([]byte(scutilOut))

	// Repeated addresses across resolvers collapse to one entry.
	want := []string{"192.168.1.1", "1.1.1.1"}
	if len(servers) != len(want) {
		t.Fatalf("servers = %v, want %v", servers, want)
	}
	for n := range want {
		if servers[n] != want[n] {
			t.Fatalf("servers = %v, want %v", servers, want)
		}
	}
}

func TestServersFallsBackToScutil(t *testing.T) {
	t.Parallel()

	i := NewInspector(logx.Nop())
	i.readFile = func(string) ([]byte, error) { return nil, errors.New("not found") }
	i.runCommand = func(_ context.Context, name string, _ ...string) ([]byte, error) {
		if name == "scutil" {
			return []byte(scutilOut), nil
		}
		return nil, errors.New("not found")
	}

	servers := i.Servers(context.Background())
	if len(servers) != 2 {
		t.Fatalf("servers = %+v", servers)
	}
	if servers[1].Addr != "1.1.1.1" || servers[1].Label != "Cloudflare" {
		t.Fatalf("labelled server: %+v", servers[1])
	}
	if servers[0].Label != "ISP/Custom" {
		t.Fatalf("router address labelled %q", servers[0].Label)
	}
}

func TestIdentifyDNSServer(t *testing.T) {
	t.Parallel()
	tests := []struct{ addr, want string }{
		{"1.1.1.1", "Cloudflare"},
		{"1.0.0.1", "Cloudflare"},
		{"8.8.4.4", "Google"},
		{"208.67.220.220", "Cisco/OpenDNS"},
		{"9.9.9.9", "Quad9"},
		{"192.168.1.1", "ISP/Custom"},
	}
	for _, tt := range tests {
		if got := IdentifyDNSServer(tt.addr); got != tt.want {
			t.Errorf("IdentifyDNSServer(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestBest(t *testing.T) {
	t.Parallel()

	results := []BenchmarkResult{
		{Server: "9.9.9.9", AvgMs: 0, SuccessPct: 0}, // nothing resolved
		{Server: "8.8.8.8", AvgMs: 22.5, SuccessPct: 100},
		{Server: "1.1.1.1", AvgMs: 12.1, SuccessPct: 100},
	}
	best := Best(results)
	if best == nil || best.Server != "1.1.1.1" {
		t.Fatalf("Best = %+v, want 1.1.1.1", best)
	}

	if got := Best([]BenchmarkResult{{AvgMs: 0}}); got != nil {
		t.Fatalf("Best over failures = %+v, want nil", got)
	}
	if got := Best(nil); got != nil {
		t.Fatalf("Best(nil) = %+v", got)
	}
}

func TestFlushCacheReportsFailure(t *testing.T) {
	t.Parallel()

	i := NewInspector(logx.Nop())
	i.runCommand = func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("permission denied")
	}
	if i.FlushCache(context.Background()) {
		t.Fatal("FlushCache should be false when every flusher fails")
	}

	i.runCommand = func(_ context.Context, name string, _ ...string) ([]byte, error) {
		if name == "resolvectl" {
			return nil, nil
		}
		return nil, errors.New("not found")
	}
	if !i.FlushCache(context.Background()) {
		t.Fatal("FlushCache should be true when resolvectl succeeds")
	}
}
