// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package engine implements the session engine (C4) and its two derived
// read layers: the delta tail plus live broadcast (C2), and the snapshot
// cache (C3). The engine serializes every write under one mutex across
// three ordered steps — commit to the durable store, update derived state,
// emit a side effect. This lock is never refactored into finer-grained
// locks: splitting it would let a reader observe derived state ahead of
// the commit it derives from.
package engine

import (
	"sync"

	"github.com/wingedpig/unbound/internal/store"
)

// Engine orchestrates the write path, recovery, and the three read views.
type Engine struct {
	db    *store.Store
	sink  Sink
	delta *deltaStore
	live  *liveHub
	snap  *snapshotCache

	writeMu sync.Mutex
}

// Open opens a durable store at path and recovers the engine from it.
func Open(path string, sink Sink) (*Engine, error) {
	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	return newEngine(db, sink)
}

// InMemory opens a non-persistent engine, for tests and ephemeral use.
func InMemory(sink Sink) (*Engine, error) {
	db, err := store.InMemory()
	if err != nil {
		return nil, err
	}
	return newEngine(db, sink)
}

func newEngine(db *store.Store, sink Sink) (*Engine, error) {
	if sink == nil {
		sink = NopSink{}
	}
	e := &Engine{
		db:    db,
		sink:  sink,
		delta: newDeltaStore(),
		live:  newLiveHub(),
		snap:  newSnapshotCache(),
	}
	if err := e.recover(); err != nil {
		db.Close()
		return nil, err
	}
	return e, nil
}

// recover populates the snapshot and delta cursors from the durable store.
// It runs entirely synchronously and MUST NOT call the sink or
// live.notify — this is the rule that makes crash recovery idempotent:
// replaying committed state on startup never re-fires the effects that
// accompanied the original writes.
func (e *Engine) recover() error {
	sessions, err := e.db.ListSessions()
	if err != nil {
		return err
	}

	next := Snapshot{sessions: make(map[string]SessionSnapshot, len(sessions))}
	for _, sess := range sessions {
		msgs, err := e.db.GetMessages(sess.SessionID)
		if err != nil {
			return err
		}
		next.sessions[sess.SessionID] = SessionSnapshot{Closed: sess.Closed, Messages: msgs}

		last, err := e.db.GetLastMessageID(sess.SessionID)
		if err != nil {
			return err
		}
		e.delta.initSession(sess.SessionID, last)
	}
	e.snap.replace(next)
	return nil
}

// SetSink replaces the sink used for future effects. Callers that need a
// sink built from the engine's own store (the backend sync workers, which
// take *store.Store in their constructors) open the engine first, build
// their sink, and install it here before accepting any writes.
func (e *Engine) SetSink(sink Sink) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if sink == nil {
		sink = NopSink{}
	}
	e.sink = sink
}

// Close releases the durable store handle and terminates every live
// subscription bound to this engine. Callers blocked on a LiveSubscription's
// channel observe it close rather than hang.
func (e *Engine) Close() error {
	e.live.closeAll()
	return e.db.Close()
}

// CreateSession commits a new session and emits SessionCreated.
func (e *Engine) CreateSession(repositoryID, title string) (*store.Session, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	sess, err := e.db.CreateSession(repositoryID, title)
	if err != nil {
		return nil, err
	}

	e.delta.initSession(sess.SessionID, 0)
	e.snapAddSession(sess.SessionID)

	e.sink.Emit(Effect{Kind: EffectSessionCreated, SessionID: sess.SessionID})
	return sess, nil
}

// snapAddSession inserts an empty entry for a newly created session into
// the current snapshot so readers see it without waiting for a refresh.
func (e *Engine) snapAddSession(sessionID string) {
	e.snap.mu.Lock()
	defer e.snap.mu.Unlock()
	next := make(map[string]SessionSnapshot, len(e.snap.cur.sessions)+1)
	for k, v := range e.snap.cur.sessions {
		next[k] = v
	}
	next[sessionID] = SessionSnapshot{}
	e.snap.cur = Snapshot{sessions: next}
}

// Append is the central write-path operation: commit, then derived state,
// then side effect, in that order and never any other.
func (e *Engine) Append(sessionID string, content []byte) (*store.Message, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	sess, err := e.db.GetSession(sessionID)
	if err != nil {
		if err == store.ErrSessionNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if sess.Closed {
		return nil, ErrSessionClosed
	}

	// Step 1: commit.
	id, seq, err := e.db.InsertMessage(sessionID, content)
	if err != nil {
		return nil, err
	}
	msg := store.Message{
		MessageID:      id,
		SessionID:      sessionID,
		Content:        content,
		SequenceNumber: seq,
	}

	// Step 2: derived state, infallible after commit.
	e.delta.append(sessionID, msg)
	e.live.notify(sessionID, msg)

	// Step 3: side effect.
	e.sink.Emit(Effect{Kind: EffectMessageAppended, SessionID: sessionID, MessageID: id})

	return &msg, nil
}

// CloseSession performs the one-shot closed transition for a session and
// emits SessionClosed exactly once. A second call is a silent no-op,
// matching store.CloseSession's idempotency.
func (e *Engine) CloseSession(sessionID string) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	did, err := e.db.CloseSession(sessionID)
	if err != nil {
		if err == store.ErrSessionNotFound {
			return ErrSessionNotFound
		}
		return err
	}
	if !did {
		return nil
	}

	e.snapMarkClosed(sessionID)
	e.live.closeSession(sessionID)
	e.sink.Emit(Effect{Kind: EffectSessionClosed, SessionID: sessionID})
	return nil
}

func (e *Engine) snapMarkClosed(sessionID string) {
	e.snap.mu.Lock()
	defer e.snap.mu.Unlock()
	cur, ok := e.snap.cur.sessions[sessionID]
	if !ok {
		return
	}
	cur.Closed = true
	next := make(map[string]SessionSnapshot, len(e.snap.cur.sessions))
	for k, v := range e.snap.cur.sessions {
		next[k] = v
	}
	next[sessionID] = cur
	e.snap.cur = Snapshot{sessions: next}
}

// SetAgentStatus is a degenerate append: commit first, then a sink event.
// It has no delta/live component since agent status is not part of the
// message stream.
func (e *Engine) SetAgentStatus(sessionID string, status store.AgentStatus) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if err := e.db.SetAgentStatus(sessionID, status); err != nil {
		return err
	}
	e.sink.Emit(Effect{Kind: EffectMessageAppended, SessionID: sessionID})
	return nil
}

// Snapshot returns a cheap, immutable clone of the full session/message
// state as of the last refresh.
func (e *Engine) Snapshot() Snapshot { return e.snap.get() }

// Delta returns the session's current delta tail.
func (e *Engine) Delta(sessionID string) Delta { return e.delta.get(sessionID) }

// Subscribe opens a live subscription for a session.
func (e *Engine) Subscribe(sessionID string) *LiveSubscription { return e.live.subscribe(sessionID) }

// Unsubscribe closes a previously opened live subscription.
func (e *Engine) Unsubscribe(sessionID string, sub *LiveSubscription) {
	e.live.unsubscribe(sessionID, sub)
}

// RefreshSnapshot atomically reads full state from the durable store,
// replaces the snapshot, and clears every session's delta tail.
func (e *Engine) RefreshSnapshot() error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	sessions, err := e.db.ListSessions()
	if err != nil {
		return err
	}

	next := Snapshot{sessions: make(map[string]SessionSnapshot, len(sessions))}
	for _, sess := range sessions {
		msgs, err := e.db.GetMessages(sess.SessionID)
		if err != nil {
			return err
		}
		next.sessions[sess.SessionID] = SessionSnapshot{Closed: sess.Closed, Messages: msgs}

		last, err := e.db.GetLastMessageID(sess.SessionID)
		if err != nil {
			return err
		}
		e.delta.clear(sess.SessionID, last)
	}
	e.snap.replace(next)
	return nil
}

// DeleteSession hard-deletes a session and all derived state for it.
func (e *Engine) DeleteSession(sessionID string) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if err := e.db.DeleteSession(sessionID); err != nil {
		return err
	}
	e.delta.remove(sessionID)
	e.live.closeSession(sessionID)

	e.snap.mu.Lock()
	next := make(map[string]SessionSnapshot, len(e.snap.cur.sessions))
	for k, v := range e.snap.cur.sessions {
		if k != sessionID {
			next[k] = v
		}
	}
	e.snap.cur = Snapshot{sessions: next}
	e.snap.mu.Unlock()

	return nil
}

// Store exposes the underlying durable store for components (C11-C14) that
// need direct read access beyond the three engine read views — e.g. outbox
// draining, which is not part of the engine's own invariant surface.
func (e *Engine) Store() *store.Store { return e.db }
