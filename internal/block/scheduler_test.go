package block

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"netctl/pkg/logx"
)

const baseHosts = "127.0.0.1 localhost\n::1 localhost\n"

type fixture struct {
	paths Paths
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	paths := Paths{
		Hosts:  filepath.Join(dir, "hosts"),
		Backup: filepath.Join(dir, "hosts.bak"),
		State:  filepath.Join(dir, "blocks.json"),
	}
	if err := os.WriteFile(paths.Hosts, []byte(baseHosts), 0o644); err != nil {
		t.Fatal(err)
	}
	return &fixture{paths: paths, now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fixture) scheduler() *Scheduler {
	return NewScheduler(f.paths, logx.Nop(), WithClock(func() time.Time { return f.now }))
}

func (f *fixture) hosts(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.paths.Hosts)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestAddWritesHostsSection(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := f.scheduler()

	res, err := s.Add([]string{"Example.com", "WWW.Reddit.com."}, 0, false)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(res.Added) != 2 || res.Added[0] != "example.com" || res.Added[1] != "reddit.com" {
		t.Fatalf("Added = %v, want canonicalized [example.com reddit.com]", res.Added)
	}

	hosts := f.hosts(t)
	for _, want := range []string{
		markerBegin, markerEnd,
		"127.0.0.1 example.com", "127.0.0.1 www.example.com",
		"127.0.0.1 reddit.com", "127.0.0.1 www.reddit.com",
	} {
		if !strings.Contains(hosts, want) {
			t.Fatalf("hosts file missing %q:\n%s", want, hosts)
		}
	}
	if !strings.HasPrefix(hosts, baseHosts) {
		t.Fatalf("original hosts content disturbed:\n%s", hosts)
	}
}

func TestDuplicateAddReplacesExpiry(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := f.scheduler()

	if _, err := s.Add([]string{"example.com"}, time.Hour, true); err != nil {
		t.Fatalf("Add: %v", err)
	}
	res, err := s.Add([]string{"example.com"}, 2*time.Hour, true)
	if err != nil {
		t.Fatalf("re-Add: %v", err)
	}
	if len(res.Updated) != 1 || len(res.Added) != 0 {
		t.Fatalf("re-add result = %+v, want one update", res)
	}

	st, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(st.Entries) != 1 {
		t.Fatalf("entries = %d, want 1 (domains are unique)", len(st.Entries))
	}
	want := f.now.Add(2 * time.Hour)
	if st.Entries[0].ExpiresAt == nil || !st.Entries[0].ExpiresAt.Equal(want) {
		t.Fatalf("expiry = %v, want %v", st.Entries[0].ExpiresAt, want)
	}

	// Re-add without a duration converts to indefinite.
	if _, err := s.Add([]string{"example.com"}, 0, false); err != nil {
		t.Fatalf("indefinite re-Add: %v", err)
	}
	st, _ = s.List()
	if st.Entries[0].ExpiresAt != nil {
		t.Fatalf("expiry = %v, want indefinite", st.Entries[0].ExpiresAt)
	}
}

func TestTimedBlockExpiresExactlyOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := f.scheduler()

	if _, err := s.Add([]string{"example.com"}, 30*time.Minute, true); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// One second before expiry: still blocked.
	f.now = f.now.Add(30*time.Minute - time.Second)
	expired, err := s.Reconcile()
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(expired) != 0 {
		t.Fatalf("expired early: %v", expired)
	}
	if !strings.Contains(f.hosts(t), "example.com") {
		t.Fatal("entry dropped before expiry")
	}

	// At expiry: transitions, hosts restored.
	f.now = f.now.Add(time.Second)
	expired, err = s.Reconcile()
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(expired) != 1 || expired[0] != "example.com" {
		t.Fatalf("expired = %v, want [example.com]", expired)
	}
	if got := f.hosts(t); got != baseHosts {
		t.Fatalf("hosts not restored byte-identical:\n%q\nwant\n%q", got, baseHosts)
	}

	// Second pass reports nothing: the transition happened exactly once.
	expired, err = s.Reconcile()
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(expired) != 0 {
		t.Fatalf("expired again: %v", expired)
	}
}

func TestZeroDurationExpiresAtNextReconcile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := f.scheduler()

	if _, err := s.Add([]string{"example.com"}, 0, true); err != nil {
		t.Fatalf("Add: %v", err)
	}
	// Already expired at creation time, so it never reaches the hosts file.
	if strings.Contains(f.hosts(t), "example.com") {
		t.Fatal("zero-duration block reached the hosts file")
	}

	expired, err := s.Reconcile()
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(expired) != 1 {
		t.Fatalf("expired = %v, want the zero-duration entry", expired)
	}
}

func TestDisableRestoresBackupByteIdentical(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	// Content with quirks that a naive rewrite would normalize.
	quirky := "# my hosts\t \n127.0.0.1 localhost\n\n\n10.0.0.1   nas # trailing comment"
	if err := os.WriteFile(f.paths.Hosts, []byte(quirky), 0o644); err != nil {
		t.Fatal(err)
	}
	s := f.scheduler()

	if _, err := s.Add([]string{"example.com"}, 0, false); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if f.hosts(t) == quirky {
		t.Fatal("hosts unchanged after add")
	}

	if err := s.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if got := f.hosts(t); got != quirky {
		t.Fatalf("restore not byte-identical:\n%q\nwant\n%q", got, quirky)
	}
	if _, err := os.Stat(f.paths.Backup); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("backup should be released after restore, stat err = %v", err)
	}

	// Re-enable renders the section again from live state.
	if err := s.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if !strings.Contains(f.hosts(t), "example.com") {
		t.Fatal("re-enable did not re-render the section")
	}
}

func TestBackupCapturedOnceAcrossMutations(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := f.scheduler()

	if _, err := s.Add([]string{"a.com"}, 0, false); err != nil {
		t.Fatal(err)
	}
	backup1, err := os.ReadFile(f.paths.Backup)
	if err != nil {
		t.Fatalf("backup not captured: %v", err)
	}
	if string(backup1) != baseHosts {
		t.Fatalf("backup = %q, want pristine hosts", backup1)
	}

	// Further adds must not overwrite the captured baseline.
	if _, err := s.Add([]string{"b.com"}, 0, false); err != nil {
		t.Fatal(err)
	}
	backup2, err := os.ReadFile(f.paths.Backup)
	if err != nil {
		t.Fatal(err)
	}
	if string(backup2) != string(backup1) {
		t.Fatal("backup overwritten by a later mutation")
	}
}

func TestRemoveAbsentDomain(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := f.scheduler()

	err := s.Remove("nope.com")
	if !errors.Is(err, ErrNotBlocked) {
		t.Fatalf("err = %v, want ErrNotBlocked", err)
	}
}

func TestRemoveLastEntryRestoresHosts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := f.scheduler()

	if _, err := s.Add([]string{"example.com"}, 0, false); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove("www.example.com"); err != nil { // canonicalizes to example.com
		t.Fatalf("Remove: %v", err)
	}
	if got := f.hosts(t); got != baseHosts {
		t.Fatalf("hosts not restored after last removal:\n%q", got)
	}
}

func TestCorruptStateFailsClosed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if err := os.WriteFile(f.paths.State, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := f.scheduler()

	if _, err := s.Add([]string{"example.com"}, 0, false); !errors.Is(err, ErrCorruptState) {
		t.Fatalf("Add err = %v, want ErrCorruptState", err)
	}
	if _, err := s.List(); !errors.Is(err, ErrCorruptState) {
		t.Fatalf("List err = %v, want ErrCorruptState", err)
	}
	// The corrupt file must survive untouched for manual inspection.
	data, err := os.ReadFile(f.paths.State)
	if err != nil || string(data) != "{not json" {
		t.Fatalf("corrupt state modified: %q, %v", data, err)
	}
}

func TestUnknownStateVersionFailsClosed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if err := os.WriteFile(f.paths.State, []byte(`{"version": 99}`), 0o644); err != nil {
		t.Fatal(err)
	}
	s := f.scheduler()
	if _, err := s.List(); !errors.Is(err, ErrCorruptState) {
		t.Fatalf("err = %v, want ErrCorruptState", err)
	}
}

func TestCanonicalDomain(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{"Example.COM", "example.com"},
		{"  example.com  ", "example.com"},
		{"example.com.", "example.com"},
		{"www.example.com", "example.com"},
		{"WWW.Example.Com.", "example.com"},
	}
	for _, tt := range tests {
		if got := CanonicalDomain(tt.in); got != tt.want {
			t.Fatalf("CanonicalDomain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStatePersistsAcrossSchedulers(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	s1 := f.scheduler()
	if _, err := s1.Add([]string{"example.com"}, time.Hour, true); err != nil {
		t.Fatal(err)
	}

	s2 := f.scheduler()
	st, err := s2.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(st.Entries) != 1 || st.Entries[0].Domain != "example.com" || !st.Enabled {
		t.Fatalf("state did not survive reload: %+v", st)
	}
}
