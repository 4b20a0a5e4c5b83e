// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"errors"
	"testing"

	"github.com/wingedpig/unbound/internal/store"
)

func setupSession(t *testing.T, worktreePath string) (*store.Store, string) {
	t.Helper()
	db, err := store.InMemory()
	if err != nil {
		t.Fatalf("store.InMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo, err := db.CreateRepository("/repo/path", "repo", true)
	if err != nil {
		t.Fatalf("CreateRepository: %v", err)
	}
	sess, err := db.CreateSession(repo.ID, "title")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if worktreePath != "" {
		if err := db.SetWorktreePath(sess.SessionID, worktreePath); err != nil {
			t.Fatalf("SetWorktreePath: %v", err)
		}
	}
	return db, sess.SessionID
}

// TestResolveLegacyWorktreeRejected is P12's first half.
func TestResolveLegacyWorktreeRejected(t *testing.T) {
	db, sid := setupSession(t, "/home/user/.unbound-worktrees/repo-1/feature")
	_, err := Resolve(db, sid)
	var legacy *ErrLegacyWorktreeUnsupported
	if !errors.As(err, &legacy) {
		t.Fatalf("expected ErrLegacyWorktreeUnsupported, got %v", err)
	}
}

// TestResolveNonLegacyPathPassesThrough is P12's second half — any other
// path resolves to itself, including one that merely contains the legacy
// marker as a substring rather than a full path component.
func TestResolveNonLegacyPathPassesThrough(t *testing.T) {
	db, sid := setupSession(t, "/home/user/.unbound-worktrees-archive/repo-1")
	res, err := Resolve(db, sid)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.WorkingDir != "/home/user/.unbound-worktrees-archive/repo-1" {
		t.Fatalf("unexpected working dir: %q", res.WorkingDir)
	}
	if !res.IsWorktree {
		t.Fatal("expected IsWorktree true")
	}
}

func TestResolveFallsBackToRepositoryPath(t *testing.T) {
	db, sid := setupSession(t, "")
	res, err := Resolve(db, sid)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.WorkingDir != "/repo/path" {
		t.Fatalf("unexpected working dir: %q", res.WorkingDir)
	}
	if res.IsWorktree {
		t.Fatal("expected IsWorktree false")
	}
}

func TestResolveSessionNotFound(t *testing.T) {
	db, err := store.InMemory()
	if err != nil {
		t.Fatalf("store.InMemory: %v", err)
	}
	defer db.Close()
	if _, err := Resolve(db, "missing"); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
