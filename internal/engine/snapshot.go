// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"sync"

	"github.com/wingedpig/unbound/internal/store"
)

// SessionSnapshot is the point-in-time view of one session's committed
// messages, as of the last refreshSnapshot.
type SessionSnapshot struct {
	Closed   bool            `json:"closed"`
	Messages []store.Message `json:"messages"`
}

// Snapshot is an immutable, value-typed clone of every session's committed
// state as of some refresh time. Holding one handle and calling its methods
// never observes a later write — a stale snapshot is a valid, internally
// consistent view, never a torn one.
type Snapshot struct {
	sessions map[string]SessionSnapshot
}

// Session returns the snapshot's view of one session, and whether it was
// present at refresh time.
func (s Snapshot) Session(sessionID string) (SessionSnapshot, bool) {
	v, ok := s.sessions[sessionID]
	return v, ok
}

// Sessions returns every session id known to this snapshot.
func (s Snapshot) Sessions() []string {
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// snapshotCache holds the current immutable Snapshot behind a
// read-many/write-one lock (C3). refresh replaces it atomically.
type snapshotCache struct {
	mu  sync.RWMutex
	cur Snapshot
}

func newSnapshotCache() *snapshotCache {
	return &snapshotCache{cur: Snapshot{sessions: make(map[string]SessionSnapshot)}}
}

// get returns a cheap reference to the current snapshot. Snapshot is
// immutable by convention (callers must not mutate the slices/map it
// exposes); all mutation happens via replace.
func (c *snapshotCache) get() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur
}

// replace atomically installs a freshly-built snapshot.
func (c *snapshotCache) replace(next Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = next
}
