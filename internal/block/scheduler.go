package block

import (
	"fmt"
	"time"

	"github.com/gofrs/flock"

	"netctl/pkg/logx"
)

// Paths locates the three files the scheduler owns or touches.
type Paths struct {
	Hosts  string // system hosts file
	Backup string // pre-modification baseline, captured once
	State  string // persisted blocklist state (JSON)
}

// DefaultPaths are the production locations.
var DefaultPaths = Paths{
	Hosts:  "/etc/hosts",
	Backup: "/etc/hosts.netctl.bak",
	State:  "/var/lib/netctl/blocks.json",
}

// Scheduler owns all mutations of the blocklist state and its persisted
// representation. Every operation locks, loads, reconciles expiry, mutates,
// and persists atomically.
type Scheduler struct {
	paths Paths
	lock  *flock.Flock
	now   func() time.Time
	log   logx.Logger
}

// SchedulerOption customizes a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock injects a fake clock for tests.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func NewScheduler(paths Paths, log logx.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		paths: paths,
		lock:  flock.New(paths.State + ".lock"),
		now:   time.Now,
		log:   log,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AddResult describes what Add did per domain.
type AddResult struct {
	Added   []string
	Updated []string // already present; expiry replaced
}

// Add inserts domains in active state. A domain that is already blocked has
// its expiry REPLACED by the new one (or cleared when no duration is given);
// this is deliberate so `block --add` is repeatable and a re-add can extend
// or shorten a running block. Adding also enables blocking globally.
//
// hasDuration distinguishes "no --duration flag" (indefinite) from an
// explicit zero duration, which creates an entry that expires immediately
// and is swept by the next reconciliation.
func (s *Scheduler) Add(domains []string, duration time.Duration, hasDuration bool) (AddResult, error) {
	var res AddResult
	_, err := s.withState(func(st *State) error {
		now := s.now()
		var expiry *time.Time
		if hasDuration {
			t := now.Add(duration)
			expiry = &t
		}

		for _, raw := range domains {
			d := CanonicalDomain(raw)
			if d == "" {
				continue
			}
			if i := st.find(d); i >= 0 {
				st.Entries[i].ExpiresAt = expiry
				res.Updated = append(res.Updated, d)
				continue
			}
			st.Entries = append(st.Entries, Entry{Domain: d, CreatedAt: now, ExpiresAt: expiry})
			res.Added = append(res.Added, d)
		}
		st.Enabled = true
		return nil
	})
	return res, err
}

// Remove deletes a domain. Removing an absent domain returns ErrNotBlocked
// (a warning no-op for the caller, never fatal).
func (s *Scheduler) Remove(domain string) error {
	d := CanonicalDomain(domain)
	_, err := s.withState(func(st *State) error {
		i := st.find(d)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrNotBlocked, d)
		}
		st.Entries = append(st.Entries[:i], st.Entries[i+1:]...)
		return nil
	})
	return err
}

// Enable turns the global switch on.
func (s *Scheduler) Enable() error {
	_, err := s.withState(func(st *State) error {
		st.Enabled = true
		return nil
	})
	return err
}

// Disable turns the global switch off. The hosts file is restored to the
// backup captured at first activation, byte-identical.
func (s *Scheduler) Disable() error {
	_, err := s.withState(func(st *State) error {
		st.Enabled = false
		return nil
	})
	return err
}

// Reconcile sweeps expired entries and re-syncs the hosts file. Returns the
// domains that expired on this pass.
func (s *Scheduler) Reconcile() ([]string, error) {
	return s.withState(func(st *State) error { return nil })
}

// Status is a read-only snapshot for listing.
type Status struct {
	Entries []Entry
	Enabled bool
	Now     time.Time
}

// List reconciles, persists any expiry transitions, and returns the state.
func (s *Scheduler) List() (*Status, error) {
	var out Status
	_, err := s.withState(func(st *State) error {
		out.Entries = append([]Entry(nil), st.Entries...)
		out.Enabled = st.Enabled
		out.Now = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// withState runs one locked read-reconcile-mutate-persist cycle and returns
// the domains expired by the reconcile step.
func (s *Scheduler) withState(mutate func(st *State) error) ([]string, error) {
	if err := s.lockState(); err != nil {
		return nil, err
	}
	defer func() { _ = s.lock.Unlock() }()

	st, err := s.loadState()
	if err != nil {
		return nil, err
	}

	expired := st.sweep(s.now())
	for _, d := range expired {
		s.log.Info("block expired", logx.String("domain", d))
	}

	if err := mutate(st); err != nil {
		// Expiry transitions still persist even when the mutation itself
		// was a no-op error (e.g. removing an absent domain).
		if len(expired) > 0 {
			if serr := s.saveState(st); serr == nil {
				_ = s.applyHosts(st)
			}
		}
		return expired, err
	}

	if err := s.saveState(st); err != nil {
		return expired, err
	}
	return expired, s.applyHosts(st)
}
