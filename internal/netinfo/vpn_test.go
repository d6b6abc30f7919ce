package netinfo

import (
	"context"
	"errors"
	"strings"
	"testing"

	"netctl/pkg/logx"
)

const ipLinkOut = `1: lo: <LOOPBACK,UP,LOWER_UP> mtu 65536 qdisc noqueue state UNKNOWN
2: eth0: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500 qdisc fq state UP
3: tun1: <POINTOPOINT,NOARP> mtu 1500 qdisc noop state DOWN
4: wg0@NONE: <POINTOPOINT,NOARP,UP,LOWER_UP> mtu 1420 qdisc noqueue state UNKNOWN
`

func TestParseIPLinkTunnel(t *testing.T) {
	t.Parallel()

	if got := parseIPLinkTunnel([]byte(ipLinkOut)); got != "wg0" {
		t.Fatalf("parseIPLinkTunnel = %q, want wg0 (down tunnel and non-tunnels skipped)", got)
	}

	noTunnel := strings.ReplaceAll(ipLinkOut, "wg0@NONE", "eth1")
	if got := parseIPLinkTunnel([]byte(noTunnel)); got != "" {
		t.Fatalf("parseIPLinkTunnel = %q, want empty", got)
	}
}

const ifconfigOut = `en0: flags=8863<UP,BROADCAST,SMART,RUNNING> mtu 1500
	inet 192.168.1.5 netmask 0xffffff00 broadcast 192.168.1.255
utun3: flags=8051<UP,POINTOPOINT,RUNNING> mtu 1400
	inet 10.8.0.2 --> 10.8.0.1 netmask 0xffffffff
`

func TestParseIfconfigTunnel(t *testing.T) {
	t.Parallel()

	if got := parseIfconfigTunnel([]byte(ifconfigOut)); got != "utun3" {
		t.Fatalf("parseIfconfigTunnel = %q, want utun3", got)
	}
	// A tunnel header without an inet line is not connected.
	only := "utun9: flags=8051<UP,POINTOPOINT> mtu 1400\n"
	if got := parseIfconfigTunnel([]byte(only)); got != "" {
		t.Fatalf("parseIfconfigTunnel = %q, want empty without an address", got)
	}
}

func TestParseInetAddr(t *testing.T) {
	t.Parallel()

	ipAddr := "5: wg0: <POINTOPOINT> mtu 1420\n    inet 10.8.0.2/24 brd 10.8.0.255 scope global wg0\n"
	if got := parseInetAddr([]byte(ipAddr), true); got != "10.8.0.2" {
		t.Fatalf("CIDR not stripped: %q", got)
	}
	if got := parseInetAddr([]byte(ifconfigOut), false); got != "192.168.1.5" {
		t.Fatalf("first inet line wins: %q", got)
	}
	if got := parseInetAddr([]byte("nothing here\n"), true); got != "" {
		t.Fatalf("parseInetAddr = %q, want empty", got)
	}
}

func TestProtocolForInterface(t *testing.T) {
	t.Parallel()
	tests := []struct{ iface, want string }{
		{"wg0", "WireGuard"},
		{"tun0", "OpenVPN/IKEv2"},
		{"utun3", "OpenVPN/IKEv2"},
		{"ppp0", "PPTP/L2TP"},
		{"ipsec0", "VPN"},
	}
	for _, tt := range tests {
		if got := protocolForInterface(tt.iface); got != tt.want {
			t.Errorf("protocolForInterface(%q) = %q, want %q", tt.iface, got, tt.want)
		}
	}
}

func TestVPNNoTunnel(t *testing.T) {
	t.Parallel()

	i := NewInspector(logx.Nop())
	i.runCommand = func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("not found")
	}
	i.readFile = func(string) ([]byte, error) { return nil, errors.New("not found") }

	st, err := i.VPN(context.Background())
	if err != nil {
		t.Fatalf("VPN: %v", err)
	}
	if st.Connected {
		t.Fatalf("Connected = true with no detection source: %+v", st)
	}
}

func TestVPNDetectsTunnelInterface(t *testing.T) {
	t.Parallel()

	i := NewInspector(logx.Nop())
	i.runCommand = func(_ context.Context, name string, args ...string) ([]byte, error) {
		switch name {
		case "ip":
			if len(args) > 0 && args[0] == "link" {
				return []byte(ipLinkOut), nil
			}
			// ip addr show wg0
			return []byte("    inet 10.8.0.2/24 scope global wg0\n"), nil
		case "hostname":
			return []byte("192.168.1.5 fe80::1\n"), nil
		}
		return nil, errors.New("not found")
	}
	i.readFile = func(path string) ([]byte, error) {
		switch path {
		case "/sys/class/net/wg0/statistics/tx_bytes":
			return []byte("1111\n"), nil
		case "/sys/class/net/wg0/statistics/rx_bytes":
			return []byte("2222\n"), nil
		case "/etc/resolv.conf":
			return []byte("nameserver 1.1.1.1\n"), nil
		}
		return nil, errors.New("not found")
	}

	st, err := i.VPN(context.Background())
	if err != nil {
		t.Fatalf("VPN: %v", err)
	}
	if !st.Connected || st.Interface != "wg0" || st.Protocol != "WireGuard" {
		t.Fatalf("detection: %+v", st)
	}
	if st.TunnelIP != "10.8.0.2" || st.LocalIP != "192.168.1.5" {
		t.Fatalf("addresses: %+v", st)
	}
	if st.BytesSent != 1111 || st.BytesReceived != 2222 {
		t.Fatalf("counters: %+v", st)
	}
	if len(st.DNSServers) != 1 || st.DNSServers[0] != "1.1.1.1" {
		t.Fatalf("dns servers: %+v", st.DNSServers)
	}
}

func TestVPNWireGuardFallback(t *testing.T) {
	t.Parallel()

	wgShow := "interface: wg0\n  public key: abc\npeer: def\n  endpoint: 203.0.113.1:51820\n"
	i := NewInspector(logx.Nop())
	i.runCommand = func(_ context.Context, name string, _ ...string) ([]byte, error) {
		if name == "wg" {
			return []byte(wgShow), nil
		}
		return nil, errors.New("not found")
	}
	i.readFile = func(string) ([]byte, error) { return nil, errors.New("not found") }

	st, err := i.VPN(context.Background())
	if err != nil {
		t.Fatalf("VPN: %v", err)
	}
	if !st.Connected || st.Protocol != "WireGuard" || st.Interface != "wg0" {
		t.Fatalf("wg fallback: %+v", st)
	}
	if st.Server != "203.0.113.1:51820" {
		t.Fatalf("endpoint: %q", st.Server)
	}
}
