// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"database/sql"
	"fmt"
)

// migration is one versioned, idempotent schema step. Migrations are applied
// in order at Open, each inside its own transaction, and recorded in the
// "migrations" audit table; a recorded version whose name differs from this
// list is reported as ErrCorrupt rather than silently re-applied.
type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		name:    "initial_schema",
		sql: `
CREATE TABLE IF NOT EXISTS repositories (
	id TEXT PRIMARY KEY,
	path TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	is_git_repository INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	repository_id TEXT NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
	title TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	closed INTEGER NOT NULL DEFAULT 0,
	is_worktree INTEGER NOT NULL DEFAULT 0,
	worktree_path TEXT,
	claude_session_id TEXT,
	created_at INTEGER NOT NULL,
	last_accessed_at INTEGER NOT NULL,
	insert_rank INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_repository ON sessions(repository_id);
CREATE INDEX IF NOT EXISTS idx_sessions_insert_rank ON sessions(insert_rank);

CREATE TABLE IF NOT EXISTS messages (
	message_id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
	content BLOB NOT NULL,
	sequence_number INTEGER NOT NULL,
	is_streaming INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	UNIQUE(session_id, sequence_number)
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, message_id);

CREATE TABLE IF NOT EXISTS session_state (
	session_id TEXT PRIMARY KEY REFERENCES sessions(session_id) ON DELETE CASCADE,
	agent_status TEXT NOT NULL DEFAULT 'idle',
	queued_command BLOB,
	diff_summary BLOB,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS session_secrets (
	session_id TEXT PRIMARY KEY REFERENCES sessions(session_id) ON DELETE CASCADE,
	encrypted_secret BLOB NOT NULL,
	nonce BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
	session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
	sequence_number INTEGER NOT NULL,
	message_id INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	retry_count INTEGER NOT NULL DEFAULT 0,
	last_error TEXT,
	created_at INTEGER NOT NULL,
	sent_at INTEGER,
	acked_at INTEGER,
	PRIMARY KEY (session_id, sequence_number)
);
CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(session_id, status);
`,
	},
}

// applyMigrations runs every migration not yet recorded in the audit table,
// in version order, each inside its own transaction. Re-running it against an
// already-migrated database is a no-op.
func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	applied := map[int]string{}
	rows, err := db.Query(`SELECT version, name FROM migrations`)
	if err != nil {
		return fmt.Errorf("read migrations table: %w", err)
	}
	for rows.Next() {
		var v int
		var n string
		if err := rows.Scan(&v, &n); err != nil {
			rows.Close()
			return fmt.Errorf("scan migrations row: %w", err)
		}
		applied[v] = n
	}
	rows.Close()

	for _, m := range migrations {
		if name, ok := applied[m.version]; ok {
			if name != m.name {
				return fmt.Errorf("%w: migration %d recorded as %q, expected %q", ErrCorrupt, m.version, name, m.name)
			}
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(`INSERT INTO migrations (version, name, applied_at) VALUES (?, ?, ?)`,
			m.version, m.name, nowMillis()); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}

	return nil
}
