// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"testing"
	"time"

	"github.com/wingedpig/unbound/internal/store"
)

func newTestEngine(t *testing.T, sink Sink) *Engine {
	t.Helper()
	e, err := InMemory(sink)
	if err != nil {
		t.Fatalf("InMemory: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func mustRepo(t *testing.T, e *Engine) string {
	t.Helper()
	repo, err := e.Store().CreateRepository("/tmp/r", "r", true)
	if err != nil {
		t.Fatalf("CreateRepository: %v", err)
	}
	return repo.ID
}

// TestAppendOrdering is P1: a commit is durable before derived state or the
// side effect observes it.
func TestAppendOrdering(t *testing.T) {
	rec := &RecordingSink{}
	e := newTestEngine(t, rec)
	repoID := mustRepo(t, e)

	sess, err := e.CreateSession(repoID, "t")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	msg, err := e.Append(sess.SessionID, []byte("hello"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	stored, err := e.Store().GetMessages(sess.SessionID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(stored) != 1 || stored[0].MessageID != msg.MessageID {
		t.Fatalf("commit not observed in durable store before Append returned")
	}

	delta := e.Delta(sess.SessionID)
	if len(delta.Messages) != 1 || delta.Messages[0].MessageID != msg.MessageID {
		t.Fatalf("derived delta did not reflect the append")
	}

	effects := rec.Effects()
	if len(effects) != 2 {
		t.Fatalf("expected 2 effects (create, append), got %d", len(effects))
	}
	if effects[0].Kind != EffectSessionCreated || effects[1].Kind != EffectMessageAppended {
		t.Fatalf("unexpected effect order: %+v", effects)
	}
}

// TestRecoveryIsSilent is P2: recovering an engine from an existing store
// populates snapshot and delta state without invoking the sink.
func TestRecoveryIsSilent(t *testing.T) {
	db, err := store.InMemory()
	if err != nil {
		t.Fatalf("InMemory: %v", err)
	}
	defer db.Close()

	repo, _ := db.CreateRepository("/tmp/r2", "r2", true)
	sess, _ := db.CreateSession(repo.ID, "t")
	db.InsertMessage(sess.SessionID, []byte("a"))
	db.InsertMessage(sess.SessionID, []byte("b"))

	rec := &RecordingSink{}
	e, err := newEngine(db, rec)
	if err != nil {
		t.Fatalf("newEngine: %v", err)
	}
	defer e.live.closeAll()

	if effects := rec.Effects(); len(effects) != 0 {
		t.Fatalf("recovery must not emit effects, got %d", len(effects))
	}

	snap := e.Snapshot()
	view, ok := snap.Session(sess.SessionID)
	if !ok || len(view.Messages) != 2 {
		t.Fatalf("recovered snapshot missing messages: %+v", view)
	}

	delta := e.Delta(sess.SessionID)
	if len(delta.Messages) != 0 {
		t.Fatalf("recovered delta should be empty, cursor-only, got %d messages", len(delta.Messages))
	}
	if delta.Cursor != view.Messages[1].MessageID {
		t.Fatalf("recovered cursor = %d, want %d", delta.Cursor, view.Messages[1].MessageID)
	}
}

// TestSnapshotDeltaPartition is P3: at any instant, snapshot ∪ delta
// reconstructs the full committed history with no overlap or gap.
func TestSnapshotDeltaPartition(t *testing.T) {
	e := newTestEngine(t, nil)
	repoID := mustRepo(t, e)
	sess, _ := e.CreateSession(repoID, "t")

	for i := 0; i < 3; i++ {
		if _, err := e.Append(sess.SessionID, []byte("x")); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := e.RefreshSnapshot(); err != nil {
		t.Fatalf("RefreshSnapshot: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := e.Append(sess.SessionID, []byte("y")); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	snap := e.Snapshot()
	view, _ := snap.Session(sess.SessionID)
	delta := e.Delta(sess.SessionID)

	if len(view.Messages) != 3 {
		t.Fatalf("snapshot has %d messages, want 3", len(view.Messages))
	}
	if len(delta.Messages) != 2 {
		t.Fatalf("delta has %d messages, want 2", len(delta.Messages))
	}
	seen := make(map[int64]bool)
	for _, m := range view.Messages {
		seen[m.MessageID] = true
	}
	for _, m := range delta.Messages {
		if seen[m.MessageID] {
			t.Fatalf("message %d present in both snapshot and delta", m.MessageID)
		}
	}
	if delta.Cursor != view.Messages[2].MessageID {
		t.Fatalf("delta cursor = %d, want %d", delta.Cursor, view.Messages[2].MessageID)
	}
}

// TestLiveSubscriptionOrdering is P4: a live subscriber observes appends in
// commit order, matching the order visible via delta afterward.
func TestLiveSubscriptionOrdering(t *testing.T) {
	e := newTestEngine(t, nil)
	repoID := mustRepo(t, e)
	sess, _ := e.CreateSession(repoID, "t")

	sub := e.Subscribe(sess.SessionID)
	defer e.Unsubscribe(sess.SessionID, sub)

	var appended []int64
	for i := 0; i < 4; i++ {
		msg, err := e.Append(sess.SessionID, []byte("x"))
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		appended = append(appended, msg.MessageID)
	}

	for i, want := range appended {
		select {
		case got := <-sub.C():
			if got.MessageID != want {
				t.Fatalf("live message %d = %d, want %d", i, got.MessageID, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for live message %d", i)
		}
	}

	delta := e.Delta(sess.SessionID)
	if len(delta.Messages) != len(appended) {
		t.Fatalf("delta has %d messages, want %d", len(delta.Messages), len(appended))
	}
	for i, m := range delta.Messages {
		if m.MessageID != appended[i] {
			t.Fatalf("delta message %d = %d, want %d", i, m.MessageID, appended[i])
		}
	}
}

// TestMonotonicMessageIDs is P5 at the engine level: across many sessions
// interleaved, every message_id handed out is strictly increasing.
func TestMonotonicMessageIDs(t *testing.T) {
	e := newTestEngine(t, nil)
	repoID := mustRepo(t, e)
	s1, _ := e.CreateSession(repoID, "a")
	s2, _ := e.CreateSession(repoID, "b")

	var last int64
	for i := 0; i < 10; i++ {
		target := s1
		if i%2 == 0 {
			target = s2
		}
		msg, err := e.Append(target.SessionID, []byte("x"))
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if msg.MessageID <= last {
			t.Fatalf("message_id not monotonic: %d <= %d", msg.MessageID, last)
		}
		last = msg.MessageID
	}
}

// TestSnapshotStaleButValid is P6: a Snapshot handle taken before further
// writes remains internally consistent and never observes a later write.
func TestSnapshotStaleButValid(t *testing.T) {
	e := newTestEngine(t, nil)
	repoID := mustRepo(t, e)
	sess, _ := e.CreateSession(repoID, "t")
	e.Append(sess.SessionID, []byte("x"))
	if err := e.RefreshSnapshot(); err != nil {
		t.Fatalf("RefreshSnapshot: %v", err)
	}

	stale := e.Snapshot()

	e.Append(sess.SessionID, []byte("y"))
	if err := e.RefreshSnapshot(); err != nil {
		t.Fatalf("RefreshSnapshot: %v", err)
	}

	view, _ := stale.Session(sess.SessionID)
	if len(view.Messages) != 1 {
		t.Fatalf("stale snapshot mutated: has %d messages, want 1", len(view.Messages))
	}

	fresh := e.Snapshot()
	freshView, _ := fresh.Session(sess.SessionID)
	if len(freshView.Messages) != 2 {
		t.Fatalf("fresh snapshot has %d messages, want 2", len(freshView.Messages))
	}
}

// TestSessionLifecycle is E1: create, append, close, then append-after-close
// is rejected without corrupting any prior state.
func TestSessionLifecycle(t *testing.T) {
	rec := &RecordingSink{}
	e := newTestEngine(t, rec)
	repoID := mustRepo(t, e)

	sess, err := e.CreateSession(repoID, "lifecycle")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := e.Append(sess.SessionID, []byte("one")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := e.CloseSession(sess.SessionID); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}

	if _, err := e.Append(sess.SessionID, []byte("two")); err != ErrSessionClosed {
		t.Fatalf("Append after close: got %v, want ErrSessionClosed", err)
	}

	// Closing again must stay silent (idempotent), with no extra effect.
	before := len(rec.Effects())
	if err := e.CloseSession(sess.SessionID); err != nil {
		t.Fatalf("second CloseSession: %v", err)
	}
	if len(rec.Effects()) != before {
		t.Fatalf("idempotent close emitted an extra effect")
	}

	msgs, err := e.Store().GetMessages(sess.SessionID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected exactly the pre-close message to survive, got %d", len(msgs))
	}

	if _, err := e.Append("nonexistent-session", []byte("x")); err != ErrSessionNotFound {
		t.Fatalf("Append to unknown session: got %v, want ErrSessionNotFound", err)
	}
}
