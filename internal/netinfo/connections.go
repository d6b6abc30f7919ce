package netinfo

import (
	"context"
	"sort"
	"strings"
)

// Connection is one socket owned by a process.
type Connection struct {
	PID      string `json:"pid"`
	App      string `json:"app"`
	Remote   string `json:"remote"`
	Protocol string `json:"protocol"`
	State    string `json:"state"`
}

// ConnFilter narrows a connection listing.
type ConnFilter struct {
	App          string // case-insensitive substring match on the app name
	ExternalOnly bool
}

// ConnReport is a deduplicated, filtered listing with pre-filter totals.
type ConnReport struct {
	Connections []Connection `json:"connections"`
	Total       int          `json:"total"`
	External    int          `json:"external"`
	Local       int          `json:"local"`
}

// Connections snapshots active sockets, lsof first, ss as fallback.
func (i *Inspector) Connections(ctx context.Context, filter ConnFilter) (*ConnReport, error) {
	var conns []Connection

	if out, err := i.runCommand(ctx, "lsof", "-i", "-n", "-P"); err == nil {
		conns = parseLsof(out)
	}
	if len(conns) == 0 {
		if out, err := i.runCommand(ctx, "ss", "-tunap"); err == nil {
			conns = parseSSConnections(out)
			for idx := range conns {
				if conns[idx].App == "" {
					conns[idx].App = i.lookupProcessName(conns[idx].PID)
				}
			}
		}
	}

	if filter.App != "" {
		app := strings.ToLower(filter.App)
		conns = keep(conns, func(c Connection) bool {
			return strings.Contains(strings.ToLower(c.App), app)
		})
	}
	if filter.ExternalOnly {
		conns = keep(conns, func(c Connection) bool { return !IsLocalAddr(c.Remote) })
	}

	rep := &ConnReport{Total: len(conns)}
	for _, c := range conns {
		if IsLocalAddr(c.Remote) {
			rep.Local++
		} else {
			rep.External++
		}
	}

	// One row per pid/remote/state triple; repeated fds add nothing.
	seen := make(map[string]bool, len(conns))
	for _, c := range conns {
		key := c.PID + "|" + c.Remote + "|" + c.State
		if seen[key] {
			continue
		}
		seen[key] = true
		rep.Connections = append(rep.Connections, c)
	}
	sort.Slice(rep.Connections, func(a, b int) bool {
		if rep.Connections[a].App != rep.Connections[b].App {
			return rep.Connections[a].App < rep.Connections[b].App
		}
		return rep.Connections[a].Remote < rep.Connections[b].Remote
	})
	return rep, nil
}

func (i *Inspector) lookupProcessName(pid string) string {
	if pid == "" || pid == "-" {
		return "Unknown"
	}
	if data, err := i.readFile("/proc/" + pid + "/comm"); err == nil {
		if name := strings.TrimSpace(string(data)); name != "" {
			return name
		}
	}
	return "Unknown"
}

func keep(conns []Connection, pred func(Connection) bool) []Connection {
	out := conns[:0]
	for _, c := range conns {
		if pred(c) {
			out = append(out, c)
		}
	}
	return out
}

// IsLocalAddr reports whether the address is loopback, wildcard or RFC1918.
func IsLocalAddr(addr string) bool {
	for _, prefix := range []string{
		"127.", "0.0.0.0", "[::1]", "*:", "localhost",
		"192.168.", "10.", "172.16.",
	} {
		if strings.HasPrefix(addr, prefix) {
			return true
		}
	}
	return false
}

func parseLsof(out []byte) []Connection {
	var conns []Connection
	lines := strings.Split(string(out), "\n")
	for n, line := range lines {
		if n == 0 {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 9 {
			continue
		}

		app := fields[0]
		pid := fields[1]

		// With a state, NAME is the second-to-last field and the state the
		// last; without one, NAME is last.
		state := ""
		connInfo := fields[len(fields)-1]
		if strings.HasPrefix(fields[len(fields)-1], "(") {
			state = strings.Trim(fields[len(fields)-1], "()")
			connInfo = fields[len(fields)-2]
		}

		proto := classifyProtocol(fields[7], connInfo)

		remote := connInfo
		if idx := strings.Index(connInfo, "->"); idx >= 0 {
			remote = connInfo[idx+2:]
		}

		conns = append(conns, Connection{
			PID:      pid,
			App:      app,
			Remote:   remote,
			Protocol: proto,
			State:    abbreviateState(state),
		})
	}
	return conns
}

func parseSSConnections(out []byte) []Connection {
	var conns []Connection
	lines := strings.Split(string(out), "\n")
	for n, line := range lines {
		if n == 0 {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}

		proto := strings.ToUpper(fields[0])
		state := fields[1]
		remote := fields[5]

		pid := "-"
		if len(fields) > 6 && strings.Contains(fields[6], "pid=") {
			rest := fields[6][strings.Index(fields[6], "pid=")+4:]
			if idx := strings.IndexAny(rest, ",)"); idx >= 0 {
				rest = rest[:idx]
			}
			pid = rest
		}

		conns = append(conns, Connection{
			PID:      pid,
			Remote:   remote,
			Protocol: classifyProtocol(proto, remote),
			State:    abbreviateState(state),
		})
	}
	return conns
}

func classifyProtocol(proto, connInfo string) string {
	p := strings.ToUpper(proto)
	switch {
	case strings.Contains(p, "TCP"):
		if strings.Contains(connInfo, ":443") {
			return "TCP/HTTPS"
		}
		if strings.Contains(connInfo, ":80") {
			return "TCP/HTTP"
		}
		return "TCP"
	case strings.Contains(p, "UDP"):
		return "UDP"
	}
	return proto
}

func abbreviateState(state string) string {
	switch state {
	case "ESTABLISHED", "ESTAB":
		return "ESTAB"
	case "LISTEN":
		return "LISTEN"
	case "CLOSE_WAIT", "CLOSE-WAIT":
		return "CLOSE_W"
	case "TIME_WAIT", "TIME-WAIT":
		return "TIME_W"
	}
	return state
}
