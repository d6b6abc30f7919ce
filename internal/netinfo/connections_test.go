package netinfo

import (
	"context"
	"errors"
	"testing"

	"netctl/pkg/logx"
)

const lsofOut = `COMMAND   PID USER   FD   TYPE DEVICE SIZE/OFF NODE NAME
Safari   4721  dan  12u  IPv4 0xaa   0t0      TCP  10.0.0.5:55000->142.250.80.46:443 (ESTABLISHED)
Safari   4721  dan  13u  IPv4 0xab   0t0      TCP  10.0.0.5:55001->151.101.1.140:80 (CLOSE_WAIT)
mDNSResp  345  dan   8u  IPv4 0xac   0t0      UDP  *:5353
sshd       99 root   3u  IPv4 0xad   0t0      TCP  *:22 (LISTEN)
short line
`

func TestParseLsof(t *testing.T) {
	t.Parallel()
	conns := parseLsof([]byte(lsofOut))

	if len(conns) != 4 {
		t.Fatalf("len = %d, want 4 (header and short line skipped)", len(conns))
	}

	https := conns[0]
	if https.App != "Safari" || https.PID != "4721" {
		t.Fatalf("owner: %+v", https)
	}
	if https.Remote != "142.250.80.46:443" {
		t.Fatalf("remote side of -> pair: %+v", https)
	}
	if https.Protocol != "TCP/HTTPS" || https.State != "ESTAB" {
		t.Fatalf("classification: %+v", https)
	}

	if c := conns[1]; c.Protocol != "TCP/HTTP" || c.State != "CLOSE_W" {
		t.Fatalf("port 80 close-wait: %+v", c)
	}
	// No state in parens: NAME is the last field.
	if c := conns[2]; c.Protocol != "UDP" || c.State != "" || c.Remote != "*:5353" {
		t.Fatalf("stateless udp socket: %+v", c)
	}
	if c := conns[3]; c.State != "LISTEN" || c.Remote != "*:22" {
		t.Fatalf("listener: %+v", c)
	}
}

const ssConnOut = `Netid State  Recv-Q Send-Q Local Address:Port  Peer Address:Port Process
tcp   ESTAB  0      0      10.0.0.5:55000      1.2.3.4:443       users:(("curl",pid=1234,fd=5))
udp   UNCONN 0      0      0.0.0.0:5353        0.0.0.0:*
`

func TestParseSSConnections(t *testing.T) {
	t.Parallel()
	conns := parseSSConnections([]byte(ssConnOut))

	if len(conns) != 2 {
		t.Fatalf("len = %d, want 2", len(conns))
	}
	if c := conns[0]; c.PID != "1234" || c.Remote != "1.2.3.4:443" || c.Protocol != "TCP/HTTPS" || c.State != "ESTAB" {
		t.Fatalf("tcp socket: %+v", c)
	}
	// ss leaves the process column empty without privileges.
	if c := conns[1]; c.PID != "-" || c.Protocol != "UDP" {
		t.Fatalf("pid-less socket: %+v", c)
	}
}

func TestConnectionsFallbackAndNameLookup(t *testing.T) {
	t.Parallel()

	i := NewInspector(logx.Nop())
	i.runCommand = func(_ context.Context, name string, _ ...string) ([]byte, error) {
		if name == "ss" {
			return []byte(ssConnOut), nil
		}
		return nil, errors.New("not found")
	}
	i.readFile = func(path string) ([]byte, error) {
		if path == "/proc/1234/comm" {
			return []byte("curl\n"), nil
		}
		return nil, errors.New("not found")
	}

	rep, err := i.Connections(context.Background(), ConnFilter{})
	if err != nil {
		t.Fatalf("Connections: %v", err)
	}
	if rep.Total != 2 || rep.External != 1 || rep.Local != 1 {
		t.Fatalf("totals: %+v", rep)
	}
	names := map[string]string{}
	for _, c := range rep.Connections {
		names[c.PID] = c.App
	}
	if names["1234"] != "curl" {
		t.Fatalf("pid 1234 resolved to %q", names["1234"])
	}
	if names["-"] != "Unknown" {
		t.Fatalf("anonymous socket labelled %q", names["-"])
	}
}

func TestConnectionsDeduplicatesAndFilters(t *testing.T) {
	t.Parallel()

	// Two fds of the same pid to the same remote in the same state.
	out := `COMMAND   PID USER   FD   TYPE DEVICE SIZE/OFF NODE NAME
chrome   9001  dan  10u  IPv4 0xaa   0t0      TCP  10.0.0.5:1->1.2.3.4:443 (ESTABLISHED)
chrome   9001  dan  11u  IPv4 0xab   0t0      TCP  10.0.0.5:1->1.2.3.4:443 (ESTABLISHED)
chrome   9001  dan  12u  IPv4 0xac   0t0      TCP  10.0.0.5:2->127.0.0.1:8080 (ESTABLISHED)
spotify  9002  dan   4u  IPv4 0xad   0t0      TCP  10.0.0.5:3->5.6.7.8:443 (ESTABLISHED)
`
	i := NewInspector(logx.Nop())
	i.runCommand = func(_ context.Context, name string, _ ...string) ([]byte, error) {
		if name == "lsof" {
			return []byte(out), nil
		}
		return nil, errors.New("not found")
	}

	rep, err := i.Connections(context.Background(), ConnFilter{App: "CHROME", ExternalOnly: true})
	if err != nil {
		t.Fatalf("Connections: %v", err)
	}
	// Totals count sockets, rows are deduplicated per pid/remote/state.
	if rep.Total != 2 || rep.External != 2 || rep.Local != 0 {
		t.Fatalf("filtered totals: %+v", rep)
	}
	if len(rep.Connections) != 1 || rep.Connections[0].Remote != "1.2.3.4:443" {
		t.Fatalf("rows: %+v", rep.Connections)
	}
}

func TestIsLocalAddr(t *testing.T) {
	t.Parallel()
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:8080", true},
		{"0.0.0.0:*", true},
		{"[::1]:443", true},
		{"*:5353", true},
		{"localhost:3000", true},
		{"192.168.1.10:22", true},
		{"10.0.0.1:80", true},
		{"172.16.0.1:80", true},
		{"1.2.3.4:443", false},
		{"142.250.80.46:443", false},
	}
	for _, tt := range tests {
		if got := IsLocalAddr(tt.addr); got != tt.want {
			t.Errorf("IsLocalAddr(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestAbbreviateState(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{"ESTABLISHED", "ESTAB"},
		{"ESTAB", "ESTAB"},
		{"LISTEN", "LISTEN"},
		{"CLOSE_WAIT", "CLOSE_W"},
		{"TIME-WAIT", "TIME_W"},
		{"SYN_SENT", "SYN_SENT"},
	}
	for _, tt := range tests {
		if got := abbreviateState(tt.in); got != tt.want {
			t.Errorf("abbreviateState(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
