// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import "context"

// SessionClient provides access to session lifecycle operations
// (session.* RPC methods).
type SessionClient struct{ c *Client }

// SessionSummary is the shape returned by List.
type SessionSummary struct {
	SessionID    string `json:"session_id"`
	Closed       bool   `json:"closed"`
	MessageCount int    `json:"message_count"`
}

// SessionView is the shape returned by Get: a session's committed
// snapshot, closed flag plus its messages.
type SessionView struct {
	Closed   bool      `json:"closed"`
	Messages []Message `json:"messages"`
}

// List returns a summary of every known session.
func (s *SessionClient) List(ctx context.Context) ([]SessionSummary, error) {
	var out []SessionSummary
	if err := s.c.call(ctx, "session.list", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create starts a new session under repositoryID with the given title.
func (s *SessionClient) Create(ctx context.Context, repositoryID, title string) (*Session, error) {
	var out Session
	params := map[string]string{"repository_id": repositoryID, "title": title}
	if err := s.c.call(ctx, "session.create", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches one session's current snapshot.
func (s *SessionClient) Get(ctx context.Context, sessionID string) (*SessionView, error) {
	var out SessionView
	if err := s.c.call(ctx, "session.get", sessionIDParams(sessionID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete hard-deletes a session and everything that cascades from it.
func (s *SessionClient) Delete(ctx context.Context, sessionID string) error {
	return s.c.call(ctx, "session.delete", sessionIDParams(sessionID), nil)
}

// Subscribe opens a live-push subscription for sessionID on this
// connection; subsequent server-initiated push frames for it arrive
// through the same socket (see Client.readLoop).
func (s *SessionClient) Subscribe(ctx context.Context, sessionID string) error {
	return s.c.call(ctx, "session.subscribe", sessionIDParams(sessionID), nil)
}

// Unsubscribe closes a subscription opened with Subscribe.
func (s *SessionClient) Unsubscribe(ctx context.Context, sessionID string) error {
	return s.c.call(ctx, "session.unsubscribe", sessionIDParams(sessionID), nil)
}

func sessionIDParams(sessionID string) map[string]string {
	return map[string]string{"session_id": sessionID}
}

// Session mirrors the daemon's durable session record.
type Session struct {
	SessionID       string `json:"session_id"`
	RepositoryID    string `json:"repository_id"`
	Title           string `json:"title"`
	Status          string `json:"status"`
	Closed          bool   `json:"closed"`
	IsWorktree      bool   `json:"is_worktree"`
	WorktreePath    string `json:"worktree_path,omitempty"`
	ClaudeSessionID string `json:"claude_session_id,omitempty"`
	CreatedAt       string `json:"created_at"`
	LastAccessedAt  string `json:"last_accessed_at"`
}

// Message mirrors the daemon's durable message record.
type Message struct {
	MessageID      int64  `json:"message_id"`
	SessionID      string `json:"session_id"`
	Content        []byte `json:"content"`
	SequenceNumber int64  `json:"sequence_number"`
	IsStreaming    bool   `json:"is_streaming"`
	CreatedAt      string `json:"created_at"`
}
