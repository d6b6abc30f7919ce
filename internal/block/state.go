// Package block maintains a time-bounded domain blocklist backed by the
// system hosts file.
//
// Every entry walks a small state machine: active -> expired when a duration
// was supplied, active -> removed on explicit removal. A global enabled flag
// gates whether active entries are rendered into the hosts file at all. All
// read-modify-write-persist cycles run under a file lock so concurrent netctl
// invocations serialize.
package block

import (
	"encoding/json"
	"strings"
	"time"
)

// EntryState tags where an entry sits in its lifecycle. Persisted entries are
// always active; expired and removed entries leave the set.
type EntryState string

const (
	StateActive  EntryState = "active"
	StateExpired EntryState = "expired"
	StateRemoved EntryState = "removed"
)

// Entry is one blocked domain. Domains are stored lowercase and are unique
// within a State.
type Entry struct {
	Domain    string     `json:"domain"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the entry's expiry time has passed. Entries with no
// expiry never expire.
func (e Entry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// Remaining returns the time until expiry, or zero for indefinite entries.
func (e Entry) Remaining(now time.Time) time.Duration {
	if e.ExpiresAt == nil {
		return 0
	}
	d := e.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// State is the full persisted blocklist representation.
type State struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
	Enabled bool    `json:"enabled"`

	// BackupCaptured records that the pre-modification hosts content has
	// been saved; the backup is never overwritten while it exists.
	BackupCaptured bool `json:"backup_captured"`
}

const stateVersion = 1

func newState() *State {
	return &State{Version: stateVersion}
}

func decodeState(data []byte) (*State, error) {
	if len(data) == 0 {
		return newState(), nil
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, ErrCorruptState
	}
	if st.Version == 0 || st.Version > stateVersion {
		return nil, ErrCorruptState
	}
	return &st, nil
}

func (s *State) encode() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// find returns the index of a domain, or -1.
func (s *State) find(domain string) int {
	for i, e := range s.Entries {
		if e.Domain == domain {
			return i
		}
	}
	return -1
}

// sweep transitions active entries whose expiry passed to expired and drops
// them from the set. Returns the expired domains.
func (s *State) sweep(now time.Time) []string {
	var expired []string
	kept := s.Entries[:0]
	for _, e := range s.Entries {
		if e.Expired(now) {
			expired = append(expired, e.Domain)
			continue
		}
		kept = append(kept, e)
	}
	s.Entries = kept
	return expired
}

// CanonicalDomain normalizes a user-supplied domain for the unique key:
// lowercase, trimmed, no trailing dot, no leading "www.".
func CanonicalDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimSuffix(d, ".")
	d = strings.TrimPrefix(d, "www.")
	return d
}
