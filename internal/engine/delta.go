// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"sync"

	"github.com/wingedpig/unbound/internal/store"
)

// Delta is a value-typed, immutable-to-the-caller view of the messages
// appended to a session since the last refreshSnapshot. Readers never
// observe a torn state because Get returns a copy.
type Delta struct {
	Cursor   int64 // last_message_id as of the most recent refresh, or 0
	Messages []store.Message
}

type deltaEntry struct {
	cursor   int64
	messages []store.Message
}

// deltaStore is the per-session delta tail (C2, first half). All mutating
// methods must be called under the engine's single write mutex; Get may be
// called from any goroutine.
type deltaStore struct {
	mu      sync.Mutex
	entries map[string]*deltaEntry
}

func newDeltaStore() *deltaStore {
	return &deltaStore{entries: make(map[string]*deltaEntry)}
}

// initSession zeroes the delta for a session and records the recovery
// cursor. Called at recovery and after refreshSnapshot.
func (d *deltaStore) initSession(sessionID string, lastMessageID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[sessionID] = &deltaEntry{cursor: lastMessageID}
}

// append adds a newly committed message to the session's delta tail.
func (d *deltaStore) append(sessionID string, msg store.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[sessionID]
	if !ok {
		e = &deltaEntry{}
		d.entries[sessionID] = e
	}
	e.messages = append(e.messages, msg)
}

// get returns a value-typed clone of the session's current delta.
func (d *deltaStore) get(sessionID string) Delta {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[sessionID]
	if !ok {
		return Delta{}
	}
	msgs := make([]store.Message, len(e.messages))
	copy(msgs, e.messages)
	return Delta{Cursor: e.cursor, Messages: msgs}
}

// clear empties the delta tail for a session, called by refreshSnapshot
// once the snapshot has absorbed everything up to the new cursor.
func (d *deltaStore) clear(sessionID string, newCursor int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[sessionID] = &deltaEntry{cursor: newCursor}
}

// remove drops a session's delta entirely (hard delete).
func (d *deltaStore) remove(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, sessionID)
}
