// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package workspace implements the workspace resolver (C13): mapping a
// session to the effective working directory a child agent or terminal
// should be spawned in. It rejects the legacy ".unbound-worktrees" layout
// outright rather than trying to support it, matching spec.md §4.13's
// explicit non-goal of legacy-layout compatibility.
package workspace

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wingedpig/unbound/internal/store"
)

// legacyComponent is the path component that marks a pre-migration worktree
// layout. Matching is done component-by-component, never by substring, so
// a sibling directory like ".unbound-worktrees-archive" is not mistaken for
// the legacy layout.
const legacyComponent = ".unbound-worktrees"

// ErrSessionNotFound mirrors the session lookup failure.
var ErrSessionNotFound = errors.New("workspace: session not found")

// ErrRepositoryNotFound mirrors the repository lookup failure.
var ErrRepositoryNotFound = errors.New("workspace: repository not found")

// ErrLegacyWorktreeUnsupported is returned when a session's recorded
// worktree path uses the pre-migration layout.
type ErrLegacyWorktreeUnsupported struct {
	RepositoryID string
	WorktreePath string
}

func (e *ErrLegacyWorktreeUnsupported) Error() string {
	return fmt.Sprintf(
		"workspace: legacy worktree layout unsupported for repository %s (path %q) — recreate it under ~/.unbound/%s/worktrees",
		e.RepositoryID, e.WorktreePath, e.RepositoryID)
}

// Resolution is the result of resolving a session to its working directory.
type Resolution struct {
	WorkingDir string
	Session    *store.Session
	Repository *store.Repository
	IsWorktree bool
}

// SessionRepoStore is the slice of the durable store Resolve needs.
type SessionRepoStore interface {
	GetSession(sessionID string) (*store.Session, error)
	GetRepository(id string) (*store.Repository, error)
}

// Resolve maps a session id to its effective working directory per
// spec.md §4.13.
func Resolve(db SessionRepoStore, sessionID string) (*Resolution, error) {
	sess, err := db.GetSession(sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	repo, err := db.GetRepository(sess.RepositoryID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRepositoryNotFound
		}
		return nil, err
	}

	if sess.WorktreePath != "" {
		if hasLegacyComponent(sess.WorktreePath) {
			return nil, &ErrLegacyWorktreeUnsupported{
				RepositoryID: repo.ID,
				WorktreePath: sess.WorktreePath,
			}
		}
		return &Resolution{
			WorkingDir: sess.WorktreePath,
			Session:    sess,
			Repository: repo,
			IsWorktree: true,
		}, nil
	}

	return &Resolution{
		WorkingDir: repo.Path,
		Session:    sess,
		Repository: repo,
		IsWorktree: false,
	}, nil
}

// hasLegacyComponent reports whether p contains legacyComponent as a full
// path component, not merely as a substring.
func hasLegacyComponent(p string) bool {
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == legacyComponent {
			return true
		}
	}
	return false
}
