// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package agentproc

import (
	"context"
	"testing"
	"time"

	"github.com/wingedpig/unbound/internal/engine"
)

// TestManagerSendClaudeSpawnsOnFirstUse verifies SendClaude lazily starts
// the bridge and registers the session, and that a second send reuses the
// same bridge instead of spawning a duplicate child.
func TestManagerSendClaudeSpawnsOnFirstUse(t *testing.T) {
	eng, err := engine.InMemory(nil)
	if err != nil {
		t.Fatalf("InMemory: %v", err)
	}
	defer eng.Close()

	repo, err := eng.Store().CreateRepository("/tmp/repo", "repo", true)
	if err != nil {
		t.Fatalf("CreateRepository: %v", err)
	}
	sess, err := eng.CreateSession(repo.ID, "t")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	registry := NewRegistry()
	mgr := NewManager(eng, nil, registry, "cat", nil, "/bin/sh")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if registry.Status(sess.SessionID) {
		t.Fatal("session should not be registered before first send")
	}
	if err := mgr.SendClaude(ctx, sess.SessionID, "/tmp", []byte(`{"type":"assistant","content":"hi"}`)); err != nil {
		t.Fatalf("SendClaude: %v", err)
	}
	if !registry.Status(sess.SessionID) {
		t.Fatal("session should be registered after first send")
	}
	if !mgr.RunClaude(sess.SessionID) {
		t.Fatal("RunClaude should report true once spawned")
	}

	// A second send must reuse the existing bridge rather than erroring
	// on a duplicate Register.
	if err := mgr.SendClaude(ctx, sess.SessionID, "/tmp", []byte(`{"type":"assistant","content":"again"}`)); err != nil {
		t.Fatalf("second SendClaude: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		msgs, err := eng.Store().GetMessages(sess.SessionID)
		if err != nil {
			t.Fatalf("GetMessages: %v", err)
		}
		if len(msgs) >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for messages, have %d", len(msgs))
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := mgr.StopClaude(sess.SessionID); err != nil {
		t.Fatalf("StopClaude: %v", err)
	}

	deadline = time.Now().Add(2 * time.Second)
	for registry.Status(sess.SessionID) {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for registry to clean up after stop")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
