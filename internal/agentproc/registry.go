// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package agentproc

import (
	"sync"

	ps "github.com/mitchellh/go-ps"
)

// stopSender is a one-shot broadcast close: closing it wakes every watcher
// and further closes are no-ops (guarded by sync.Once at the call site).
type stopSender chan struct{}

// Registry is a thin mutex over a map of live sessions to their stop
// signal, mirroring a process table: register fails on a duplicate,
// stop is idempotent-safe via a sync.Once per entry, remove drops the
// entry outright.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	stop stopSender
	once sync.Once
	pid  int
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Register adds sessionID to the registry and returns a channel that is
// closed when Stop is later called for this session. It fails if the
// session is already registered.
func (r *Registry) Register(sessionID string) (<-chan struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[sessionID]; ok {
		return nil, ErrAlreadyRegistered
	}
	e := &registryEntry{stop: make(stopSender)}
	r.entries[sessionID] = e
	return e.stop, nil
}

// Stop broadcasts the one-shot stop signal for a session. It is safe to
// call more than once; only the first call has an effect.
func (r *Registry) Stop(sessionID string) error {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	r.mu.Unlock()
	if !ok {
		return ErrNotRegistered
	}
	e.once.Do(func() { close(e.stop) })
	return nil
}

// Remove drops the registry entry for a session, signalling stop first if
// it hasn't already fired.
func (r *Registry) Remove(sessionID string) error {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	if ok {
		delete(r.entries, sessionID)
	}
	r.mu.Unlock()
	if !ok {
		return ErrNotRegistered
	}
	e.once.Do(func() { close(e.stop) })
	return nil
}

// SetPID records the OS process id backing a registered session, so Reap
// can later tell a genuinely exited child from one whose readLoop hasn't
// noticed EOF yet. Returns ErrNotRegistered if the session has no entry.
func (r *Registry) SetPID(sessionID string, pid int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return ErrNotRegistered
	}
	e.pid = pid
	return nil
}

// Reap sweeps every registered session whose recorded PID no longer
// corresponds to a live OS process (checked via go-ps, the same liveness
// primitive a process supervisor uses) and signals Stop for each. Sessions
// with no recorded PID yet are left alone. It returns the session ids it
// reaped.
func (r *Registry) Reap() []string {
	r.mu.Lock()
	type pidEntry struct {
		sessionID string
		pid       int
	}
	var candidates []pidEntry
	for id, e := range r.entries {
		if e.pid > 0 {
			candidates = append(candidates, pidEntry{id, e.pid})
		}
	}
	r.mu.Unlock()

	var reaped []string
	for _, c := range candidates {
		proc, err := ps.FindProcess(c.pid)
		if err != nil || proc != nil {
			continue
		}
		if r.Stop(c.sessionID) == nil {
			reaped = append(reaped, c.sessionID)
		}
	}
	return reaped
}

// Status reports whether a session currently has a registry entry.
func (r *Registry) Status(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[sessionID]
	return ok
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// IsEmpty reports whether the registry has no entries.
func (r *Registry) IsEmpty() bool { return r.Count() == 0 }

// SessionIDs returns every currently registered session id.
func (r *Registry) SessionIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}
