// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import "context"

// GitClient provides access to repository-local git inspection and
// staging (git.* RPC methods).
type GitClient struct{ c *Client }

// Status returns `git status --porcelain=v1` output for a session's
// resolved working directory.
func (g *GitClient) Status(ctx context.Context, sessionID string) (string, error) {
	var out struct {
		Porcelain string `json:"porcelain"`
	}
	if err := g.c.call(ctx, "git.status", sessionIDParams(sessionID), &out); err != nil {
		return "", err
	}
	return out.Porcelain, nil
}

// DiffFile returns the unified diff of one workspace-relative path
// against the index.
func (g *GitClient) DiffFile(ctx context.Context, sessionID, path string) (string, error) {
	var out struct {
		Diff string `json:"diff"`
	}
	params := map[string]string{"session_id": sessionID, "path": path}
	if err := g.c.call(ctx, "git.diff_file", params, &out); err != nil {
		return "", err
	}
	return out.Diff, nil
}

// Log returns the last 50 commits, one-line each.
func (g *GitClient) Log(ctx context.Context, sessionID string) ([]string, error) {
	var out struct {
		Commits []string `json:"commits"`
	}
	if err := g.c.call(ctx, "git.log", sessionIDParams(sessionID), &out); err != nil {
		return nil, err
	}
	return out.Commits, nil
}

// Branches lists local branches.
func (g *GitClient) Branches(ctx context.Context, sessionID string) ([]string, error) {
	var out struct {
		Branches []string `json:"branches"`
	}
	if err := g.c.call(ctx, "git.branches", sessionIDParams(sessionID), &out); err != nil {
		return nil, err
	}
	return out.Branches, nil
}

// Stage runs `git add` on the given workspace-relative paths.
func (g *GitClient) Stage(ctx context.Context, sessionID string, paths []string) error {
	return g.c.call(ctx, "git.stage", gitPathsParams(sessionID, paths), nil)
}

// Unstage runs `git restore --staged` on the given paths.
func (g *GitClient) Unstage(ctx context.Context, sessionID string, paths []string) error {
	return g.c.call(ctx, "git.unstage", gitPathsParams(sessionID, paths), nil)
}

// Discard runs `git checkout --` on the given paths, discarding unstaged
// edits.
func (g *GitClient) Discard(ctx context.Context, sessionID string, paths []string) error {
	return g.c.call(ctx, "git.discard", gitPathsParams(sessionID, paths), nil)
}

func gitPathsParams(sessionID string, paths []string) map[string]any {
	return map[string]any{"session_id": sessionID, "paths": paths}
}
