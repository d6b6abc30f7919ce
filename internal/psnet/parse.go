package psnet

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
	"time"

	"netctl/internal/bandwidth"
)

// parseNettop parses `nettop -P -L 1 -J bytes_in,bytes_out -x` CSV output:
//
//	time,process.pid,bytes_in,bytes_out,
//	...,Safari.4721,123456,7890,
func parseNettop(out []byte, now time.Time) []bandwidth.CounterSample {
	var batch []bandwidth.CounterSample

	sc := bufio.NewScanner(bytes.NewReader(out))
	first := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if first { // header
			first = false
			continue
		}
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 4 {
			continue
		}

		proc := strings.TrimSpace(parts[1])
		name, pid := splitNettopProcess(proc)
		if name == "" {
			continue
		}
		rx, err1 := strconv.ParseUint(strings.TrimSpace(parts[2]), 10, 64)
		tx, err2 := strconv.ParseUint(strings.TrimSpace(parts[3]), 10, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		batch = append(batch, bandwidth.CounterSample{
			PID: pid, Name: name, RxBytes: rx, TxBytes: tx, At: now,
		})
	}
	return batch
}

// splitNettopProcess splits "Safari.4721" into name and pid. The process name
// itself may contain dots, so the pid is the last dot-separated field.
func splitNettopProcess(s string) (string, int) {
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return s, 0
	}
	pid, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return s, 0
	}
	return s[:i], pid
}

// parseSS parses `ss -tunap` output. Recv-Q/Send-Q are instantaneous queue
// depths, not cumulative counters; summed per PID they still rank heavy
// talkers, and the aggregator's reset handling tolerates the non-monotonic
// readings.
func parseSS(out []byte, now time.Time) []bandwidth.CounterSample {
	type acc struct {
		rx, tx uint64
	}
	perPID := make(map[int]*acc)

	sc := bufio.NewScanner(bytes.NewReader(out))
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first { // header
			first = false
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}
		rx, err1 := strconv.ParseUint(fields[2], 10, 64)
		tx, err2 := strconv.ParseUint(fields[3], 10, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		pid := extractSSPid(line)
		if pid <= 0 {
			continue
		}
		a := perPID[pid]
		if a == nil {
			a = &acc{}
			perPID[pid] = a
		}
		a.rx += rx
		a.tx += tx
	}

	batch := make([]bandwidth.CounterSample, 0, len(perPID))
	for pid, a := range perPID {
		batch = append(batch, bandwidth.CounterSample{
			PID: pid, RxBytes: a.rx, TxBytes: a.tx, At: now,
		})
	}
	return batch
}

// extractSSPid pulls the pid out of `users:(("curl",pid=1234,fd=5))`.
func extractSSPid(line string) int {
	i := strings.Index(line, "pid=")
	if i < 0 {
		return 0
	}
	rest := line[i+len("pid="):]
	end := strings.IndexAny(rest, ",)")
	if end < 0 {
		end = len(rest)
	}
	pid, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0
	}
	return pid
}

// parseProcNetDev parses /proc/net/dev into pseudo-app samples named after
// each interface. The loopback interface is skipped.
func parseProcNetDev(data []byte, now time.Time) []bandwidth.CounterSample {
	var batch []bandwidth.CounterSample

	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if lineNo <= 2 { // two header lines
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 10 {
			continue
		}
		iface := strings.TrimSuffix(fields[0], ":")
		if iface == "lo" {
			continue
		}
		rx, err1 := strconv.ParseUint(fields[1], 10, 64)
		tx, err2 := strconv.ParseUint(fields[9], 10, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		batch = append(batch, bandwidth.CounterSample{
			// Interface pseudo-entries get synthetic negative PIDs so they
			// never collide with real processes across sources.
			PID:     -(lineNo),
			Name:    "(" + iface + ")",
			RxBytes: rx,
			TxBytes: tx,
			At:      now,
		})
	}
	return batch
}

func itoa(n int) string { return strconv.Itoa(n) }
