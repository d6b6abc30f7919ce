package block

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// lockState takes the inter-process lock guarding the whole cycle. A stuck
// holder should not wedge the CLI forever, so acquisition is bounded.
func (s *Scheduler) lockState() error {
	if dir := filepath.Dir(s.paths.State); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return mapPermission(err)
		}
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		ok, err := s.lock.TryLock()
		if err != nil {
			return mapPermission(err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("block state is locked by another netctl process")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (s *Scheduler) loadState() (*State, error) {
	data, err := os.ReadFile(s.paths.State)
	if errors.Is(err, os.ErrNotExist) {
		return newState(), nil
	}
	if err != nil {
		return nil, mapPermission(err)
	}
	return decodeState(data)
}

func (s *Scheduler) saveState(st *State) error {
	data, err := st.encode()
	if err != nil {
		return err
	}
	return writeFileAtomic(s.paths.State, data, 0o644)
}

// applyHosts syncs the hosts file with the effective block set.
//
// Activation captures a one-time backup of the untouched hosts content before
// the first write; the backup is never overwritten while blocks remain
// active. Full deactivation (global disable, or an emptied set) restores the
// backup byte-identical and releases it, so the next activation captures a
// fresh baseline.
func (s *Scheduler) applyHosts(st *State) error {
	now := s.now()
	effective := make([]Entry, 0, len(st.Entries))
	for _, e := range st.Entries {
		if !e.Expired(now) {
			effective = append(effective, e)
		}
	}

	active := st.Enabled && len(effective) > 0
	if !active {
		return s.deactivateHosts(st)
	}

	current, err := os.ReadFile(s.paths.Hosts)
	if err != nil {
		return mapPermission(err)
	}

	if !st.BackupCaptured {
		if _, err := os.Stat(s.paths.Backup); errors.Is(err, os.ErrNotExist) {
			if err := writeFileAtomic(s.paths.Backup, []byte(stripSection(string(current))), 0o644); err != nil {
				return err
			}
		}
		st.BackupCaptured = true
		if err := s.saveState(st); err != nil {
			return err
		}
	}

	rendered := renderHosts(string(current), effective, true)
	if rendered == string(current) {
		return nil
	}
	return writeFileAtomic(s.paths.Hosts, []byte(rendered), 0o644)
}

func (s *Scheduler) deactivateHosts(st *State) error {
	if st.BackupCaptured {
		backup, err := os.ReadFile(s.paths.Backup)
		if err == nil {
			if err := writeFileAtomic(s.paths.Hosts, backup, 0o644); err != nil {
				return err
			}
			_ = os.Remove(s.paths.Backup)
			st.BackupCaptured = false
			return s.saveState(st)
		}
		if !errors.Is(err, os.ErrNotExist) {
			return mapPermission(err)
		}
		// Backup vanished under us; fall through and strip our section.
		st.BackupCaptured = false
		if err := s.saveState(st); err != nil {
			return err
		}
	}

	current, err := os.ReadFile(s.paths.Hosts)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return mapPermission(err)
	}
	if !hasSection(string(current)) {
		return nil
	}
	return writeFileAtomic(s.paths.Hosts, []byte(stripSection(string(current))), 0o644)
}
