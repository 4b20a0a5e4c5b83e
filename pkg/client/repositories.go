// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import "context"

// RepositoryClient provides access to repository registration and
// workspace-relative file I/O (repository.* RPC methods).
type RepositoryClient struct{ c *Client }

// Repository mirrors the daemon's durable repository record.
type Repository struct {
	ID              string `json:"id"`
	Path            string `json:"path"`
	Name            string `json:"name"`
	IsGitRepository bool   `json:"is_git_repository"`
	CreatedAt       string `json:"created_at"`
}

// Add registers path (and optional display name) as a repository.
func (r *RepositoryClient) Add(ctx context.Context, path, name string) (*Repository, error) {
	var out Repository
	params := map[string]string{"path": path, "name": name}
	if err := r.c.call(ctx, "repository.add", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns every registered repository, oldest first.
func (r *RepositoryClient) List(ctx context.Context) ([]Repository, error) {
	var out []Repository
	if err := r.c.call(ctx, "repository.list", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Remove deletes a repository and, transitively, its sessions, messages,
// state, secret, and outbox rows.
func (r *RepositoryClient) Remove(ctx context.Context, repositoryID string) error {
	params := map[string]string{"repository_id": repositoryID}
	return r.c.call(ctx, "repository.remove", params, nil)
}

// ListFiles lists every file under a session's resolved working
// directory, relative paths, skipping .git*.
func (r *RepositoryClient) ListFiles(ctx context.Context, sessionID string) ([]string, error) {
	var out []string
	if err := r.c.call(ctx, "repository.list_files", sessionIDParams(sessionID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadFile returns the full contents of a workspace-relative file path.
func (r *RepositoryClient) ReadFile(ctx context.Context, sessionID, path string) (string, error) {
	var out string
	params := map[string]string{"session_id": sessionID, "path": path}
	if err := r.c.call(ctx, "repository.read_file", params, &out); err != nil {
		return "", err
	}
	return out, nil
}

// ReadFileSlice returns the [startByte, endByte) byte range of a
// workspace-relative file path.
func (r *RepositoryClient) ReadFileSlice(ctx context.Context, sessionID, path string, startByte, endByte int64) (string, error) {
	var out string
	params := map[string]any{
		"session_id": sessionID,
		"path":       path,
		"start_byte": startByte,
		"end_byte":   endByte,
	}
	if err := r.c.call(ctx, "repository.read_file_slice", params, &out); err != nil {
		return "", err
	}
	return out, nil
}

// WriteFile overwrites a workspace-relative file path with content.
func (r *RepositoryClient) WriteFile(ctx context.Context, sessionID, path, content string) error {
	params := map[string]string{"session_id": sessionID, "path": path, "content": content}
	return r.c.call(ctx, "repository.write_file", params, nil)
}

// ReplaceFileRange replaces the [startByte, endByte) byte range of a
// workspace-relative file path with content.
func (r *RepositoryClient) ReplaceFileRange(ctx context.Context, sessionID, path string, startByte, endByte int64, content string) error {
	params := map[string]any{
		"session_id": sessionID,
		"path":       path,
		"start_byte": startByte,
		"end_byte":   endByte,
		"content":    content,
	}
	return r.c.call(ctx, "repository.replace_file_range", params, nil)
}
