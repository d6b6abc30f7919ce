package netinfo

import (
	"context"
	"strconv"
	"strings"
)

// VPNStatus describes the active tunnel, if any.
type VPNStatus struct {
	Connected bool   `json:"connected"`
	Interface string `json:"interface,omitempty"`
	Protocol  string `json:"protocol,omitempty"`
	Server    string `json:"server,omitempty"`
	LocalIP   string `json:"local_ip,omitempty"`
	TunnelIP  string `json:"tunnel_ip,omitempty"`

	DNSServers    []string `json:"dns_servers,omitempty"`
	BytesSent     uint64   `json:"bytes_sent"`
	BytesReceived uint64   `json:"bytes_received"`
}

var tunnelPrefixes = []string{"utun", "tun", "tap", "ppp", "wg", "ipsec", "gif"}

// VPN detects the first up tunnel interface and gathers its details. A nil
// error with Connected=false means detection worked and found nothing.
func (i *Inspector) VPN(ctx context.Context) (*VPNStatus, error) {
	st := &VPNStatus{}

	iface, proto := i.detectTunnelInterface(ctx)
	if iface == "" {
		// wg show works even when the interface name is nonstandard.
		if wgIface, endpoint := i.detectWireGuard(ctx); wgIface != "" {
			iface, proto = wgIface, "WireGuard"
			st.Server = endpoint
		}
	}
	if iface == "" {
		return st, nil
	}

	st.Connected = true
	st.Interface = iface
	st.Protocol = proto
	st.TunnelIP = i.interfaceIP(ctx, iface)
	st.LocalIP = i.localIP(ctx)
	st.DNSServers = i.systemDNSServers(ctx)
	st.BytesSent, st.BytesReceived = i.interfaceCounters(iface)
	return st, nil
}

func (i *Inspector) detectTunnelInterface(ctx context.Context) (name, proto string) {
	if out, err := i.runCommand(ctx, "ip", "link", "show"); err == nil {
		if name = parseIPLinkTunnel(out); name != "" {
			return name, protocolForInterface(name)
		}
	}
	if out, err := i.runCommand(ctx, "ifconfig"); err == nil {
		if name = parseIfconfigTunnel(out); name != "" {
			return name, protocolForInterface(name)
		}
	}
	return "", ""
}

func (i *Inspector) detectWireGuard(ctx context.Context) (iface, endpoint string) {
	out, err := i.runCommand(ctx, "wg", "show")
	if err != nil || len(strings.TrimSpace(string(out))) == 0 {
		return "", ""
	}
	lines := strings.Split(string(out), "\n")
	if first, _, ok := strings.Cut(lines[0], ":"); ok {
		iface = strings.TrimSpace(strings.TrimPrefix(first, "interface"))
	}
	for _, line := range lines {
		if strings.Contains(line, "endpoint") {
			if _, val, ok := strings.Cut(line, ":"); ok {
				endpoint = strings.TrimSpace(val)
			}
			break
		}
	}
	if iface == "" {
		iface = "wg0"
	}
	return iface, endpoint
}

func (i *Inspector) interfaceIP(ctx context.Context, iface string) string {
	if out, err := i.runCommand(ctx, "ip", "addr", "show", iface); err == nil {
		if ip := parseInetAddr(out, true); ip != "" {
			return ip
		}
	}
	if out, err := i.runCommand(ctx, "ifconfig", iface); err == nil {
		return parseInetAddr(out, false)
	}
	return ""
}

func (i *Inspector) localIP(ctx context.Context) string {
	if out, err := i.runCommand(ctx, "hostname", "-I"); err == nil {
		if fields := strings.Fields(string(out)); len(fields) > 0 {
			return fields[0]
		}
	}
	if out, err := i.runCommand(ctx, "ipconfig", "getifaddr", "en0"); err == nil {
		return strings.TrimSpace(string(out))
	}
	return ""
}

func (i *Inspector) interfaceCounters(iface string) (sent, received uint64) {
	sent = readCounterFile(i.readFile, "/sys/class/net/"+iface+"/statistics/tx_bytes")
	received = readCounterFile(i.readFile, "/sys/class/net/"+iface+"/statistics/rx_bytes")
	return sent, received
}

func readCounterFile(readFile func(string) ([]byte, error), path string) uint64 {
	data, err := readFile(path)
	if err != nil {
		return 0
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func protocolForInterface(name string) string {
	switch {
	case strings.HasPrefix(name, "wg"):
		return "WireGuard"
	case strings.HasPrefix(name, "tun"), strings.HasPrefix(name, "utun"):
		return "OpenVPN/IKEv2"
	case strings.HasPrefix(name, "ppp"):
		return "PPTP/L2TP"
	}
	return "VPN"
}

// parseIPLinkTunnel scans `ip link show` output for an UP tunnel interface.
func parseIPLinkTunnel(out []byte) string {
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(line, "UP") {
			continue
		}
		parts := strings.SplitN(line, ":", 3)
		if len(parts) < 2 {
			continue
		}
		name := strings.TrimSpace(parts[1])
		if idx := strings.Index(name, "@"); idx >= 0 {
			name = name[:idx]
		}
		for _, prefix := range tunnelPrefixes {
			if strings.HasPrefix(name, prefix) {
				return name
			}
		}
	}
	return ""
}

// parseIfconfigTunnel scans ifconfig output for a tunnel interface carrying
// an inet address.
func parseIfconfigTunnel(out []byte) string {
	current := ""
	for _, line := range strings.Split(string(out), "\n") {
		if len(line) > 0 && line[0] != '\t' && line[0] != ' ' && strings.Contains(line, ":") {
			current = strings.SplitN(line, ":", 2)[0]
			continue
		}
		if !strings.Contains(line, "inet ") {
			continue
		}
		for _, prefix := range tunnelPrefixes {
			if strings.HasPrefix(current, prefix) {
				return current
			}
		}
	}
	return ""
}

// parseInetAddr extracts the first inet address; stripCIDR drops a /nn suffix
// (ip addr prints CIDR, ifconfig does not).
func parseInetAddr(out []byte, stripCIDR bool) string {
	for _, line := range strings.Split(string(out), "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "inet ") {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) < 2 {
			continue
		}
		addr := fields[1]
		if stripCIDR {
			if idx := strings.Index(addr, "/"); idx >= 0 {
				addr = addr[:idx]
			}
		}
		return addr
	}
	return ""
}
