// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import "time"

// SessionStatus mirrors the Session.status enum of the data model.
type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionArchived SessionStatus = "archived"
	SessionDeleted  SessionStatus = "deleted"
)

// AgentStatus mirrors SessionState.agent_status.
type AgentStatus string

const (
	AgentIdle    AgentStatus = "idle"
	AgentRunning AgentStatus = "running"
	AgentWaiting AgentStatus = "waiting"
	AgentError   AgentStatus = "error"
)

// OutboxStatus mirrors OutboxEntry.status.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
	OutboxAcked   OutboxStatus = "acked"
	OutboxFailed  OutboxStatus = "failed"
)

// Repository is a durable repository record.
type Repository struct {
	ID              string    `json:"id"`
	Path            string    `json:"path"`
	Name            string    `json:"name"`
	IsGitRepository bool      `json:"is_git_repository"`
	CreatedAt       time.Time `json:"created_at"`
}

// Session is a durable session record.
type Session struct {
	SessionID       string        `json:"session_id"`
	RepositoryID    string        `json:"repository_id"`
	Title           string        `json:"title"`
	Status          SessionStatus `json:"status"`
	Closed          bool          `json:"closed"`
	IsWorktree      bool          `json:"is_worktree"`
	WorktreePath    string        `json:"worktree_path,omitempty"`
	ClaudeSessionID string        `json:"claude_session_id,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	LastAccessedAt  time.Time     `json:"last_accessed_at"`
	// InsertRank preserves monotonic insertion order independent of any
	// later mutation of the other fields.
	InsertRank int64 `json:"-"`
}

// Message is a durable message record. Content is opaque bytes — the store
// never interprets it; role, author, and kind are all encoded by the
// caller within the payload.
type Message struct {
	MessageID      int64     `json:"message_id"`
	SessionID      string    `json:"session_id"`
	Content        []byte    `json:"content"`
	SequenceNumber int64     `json:"sequence_number"`
	IsStreaming    bool      `json:"is_streaming"`
	CreatedAt      time.Time `json:"created_at"`
}

// SessionState is the durable singleton per session.
type SessionState struct {
	SessionID     string      `json:"session_id"`
	AgentStatus   AgentStatus `json:"agent_status"`
	QueuedCommand []byte      `json:"queued_command,omitempty"`
	DiffSummary   []byte      `json:"diff_summary,omitempty"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// SessionSecret is the durable 1:1 wrapped secret record.
type SessionSecret struct {
	SessionID       string `json:"session_id"`
	EncryptedSecret []byte `json:"encrypted_secret"`
	Nonce           []byte `json:"nonce"`
}

// OutboxEntry is a durable outbox row used by the batch sync worker.
type OutboxEntry struct {
	SessionID      string       `json:"session_id"`
	SequenceNumber int64        `json:"sequence_number"`
	MessageID      int64        `json:"message_id"`
	Status         OutboxStatus `json:"status"`
	RetryCount     int          `json:"retry_count"`
	LastError      string       `json:"last_error,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	SentAt         *time.Time   `json:"sent_at,omitempty"`
	AckedAt        *time.Time   `json:"acked_at,omitempty"`
}
