package block

import (
	"fmt"
	"os"
	"strings"
)

const (
	markerBegin = "# >>> netctl block begin"
	markerEnd   = "# <<< netctl block end"
)

// renderHosts returns the hosts content with the netctl section replaced.
// When enabled is false or there are no entries, the section is removed
// entirely.
func renderHosts(current string, entries []Entry, enabled bool) string {
	base := stripSection(current)

	if !enabled || len(entries) == 0 {
		return base
	}

	var b strings.Builder
	b.WriteString(base)
	if base != "" && !strings.HasSuffix(base, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(markerBegin)
	b.WriteByte('\n')
	for _, e := range entries {
		fmt.Fprintf(&b, "127.0.0.1 %s\n", e.Domain)
		fmt.Fprintf(&b, "127.0.0.1 www.%s\n", e.Domain)
	}
	b.WriteString(markerEnd)
	b.WriteByte('\n')
	return b.String()
}

// stripSection removes the marker-delimited netctl section, leaving the rest
// of the file untouched.
func stripSection(content string) string {
	if !strings.Contains(content, markerBegin) {
		return content
	}
	var b strings.Builder
	inside := false
	for _, line := range strings.SplitAfter(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == markerBegin {
			inside = true
			continue
		}
		if trimmed == markerEnd {
			inside = false
			continue
		}
		if !inside {
			b.WriteString(line)
		}
	}
	return b.String()
}

// hasSection reports whether the hosts content carries a netctl section.
func hasSection(content string) bool {
	return strings.Contains(content, markerBegin)
}

// writeFileAtomic writes via temp-and-rename in the target's directory so a
// concurrent reader never observes a half-written file.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	tmp := path + ".netctl.tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return mapPermission(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return mapPermission(err)
	}
	return nil
}

func mapPermission(err error) error {
	if os.IsPermission(err) {
		return ErrPermission
	}
	return err
}
