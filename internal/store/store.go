// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package store implements the append-only embedded relational durable
// store (C1): sessions, messages, repositories, session state, session
// secrets, and the backend-sync outbox. SQLite (via modernc.org/sqlite, a
// pure-Go driver requiring no cgo) is the only source of truth; everything
// the engine keeps in memory is rebuilt from it on recovery.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

func nowMillis() int64 { return time.Now().UnixMilli() }

// Store is the durable store handle. All write methods are safe for
// concurrent use, but the engine (C4) additionally serializes writes under
// its own mutex — Store itself only guarantees SQLite-level consistency,
// not the commit-derive-sink ordering invariant that lives one layer up.
type Store struct {
	db       *sql.DB
	mu       sync.Mutex // serializes rank assignment for InsertRank
	rankNext int64
}

// Open opens (creating if necessary) a durable store at path, applying
// migrations and restoring the insertion-rank counter.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	} else {
		dsn = "file::memory:?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.loadRankCursor(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// InMemory opens an in-process, non-persistent store for tests and the
// engine's InMemory constructor.
func InMemory() (*Store, error) { return Open(":memory:") }

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) loadRankCursor() error {
	row := s.db.QueryRow(`SELECT COALESCE(MAX(insert_rank), 0) FROM sessions`)
	var max int64
	if err := row.Scan(&max); err != nil {
		return translateErr(err)
	}
	s.mu.Lock()
	s.rankNext = max + 1
	s.mu.Unlock()
	return nil
}

func (s *Store) nextRank() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rankNext
	s.rankNext++
	return r
}

// translateErr maps a raw SQLite error into one of the store's typed error
// kinds (StoreCorrupt, Busy, ForeignKeyViolation); anything else propagates
// unchanged as a fatal error to the write path.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "busy") || strings.Contains(msg, "locked"):
		return fmt.Errorf("%w: %v", ErrBusy, err)
	case strings.Contains(msg, "foreign key"):
		return fmt.Errorf("%w: %v", ErrForeignKeyViolation, err)
	case strings.Contains(msg, "malformed") || strings.Contains(msg, "corrupt"):
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	default:
		return err
	}
}

// CreateRepository upserts a repository record, keyed by path.
func (s *Store) CreateRepository(path, name string, isGit bool) (*Repository, error) {
	id := uuid.New().String()
	now := nowMillis()
	_, err := s.db.Exec(`
		INSERT INTO repositories (id, path, name, is_git_repository, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET name = excluded.name, is_git_repository = excluded.is_git_repository`,
		id, path, name, boolToInt(isGit), now)
	if err != nil {
		return nil, translateErr(err)
	}
	return s.GetRepositoryByPath(path)
}

// GetRepositoryByPath looks up a repository by its unique path.
func (s *Store) GetRepositoryByPath(path string) (*Repository, error) {
	row := s.db.QueryRow(`SELECT id, path, name, is_git_repository, created_at FROM repositories WHERE path = ?`, path)
	return scanRepository(row)
}

// GetRepository looks up a repository by id.
func (s *Store) GetRepository(id string) (*Repository, error) {
	row := s.db.QueryRow(`SELECT id, path, name, is_git_repository, created_at FROM repositories WHERE id = ?`, id)
	return scanRepository(row)
}

// ListRepositories returns every registered repository, oldest first.
func (s *Store) ListRepositories() ([]*Repository, error) {
	rows, err := s.db.Query(`SELECT id, path, name, is_git_repository, created_at FROM repositories ORDER BY created_at ASC`)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var out []*Repository
	for rows.Next() {
		var r Repository
		var isGit int
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.Path, &r.Name, &isGit, &createdAt); err != nil {
			return nil, translateErr(err)
		}
		r.IsGitRepository = isGit != 0
		r.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, &r)
	}
	return out, translateErr(rows.Err())
}

// DeleteRepository hard-deletes a repository; cascades to its sessions and,
// transitively, their messages, state, secret, and outbox rows via foreign
// keys, the same cascade DeleteSession relies on one level down.
func (s *Store) DeleteRepository(repositoryID string) error {
	_, err := s.db.Exec(`DELETE FROM repositories WHERE id = ?`, repositoryID)
	return translateErr(err)
}

func scanRepository(row *sql.Row) (*Repository, error) {
	var r Repository
	var isGit int
	var createdAt int64
	if err := row.Scan(&r.ID, &r.Path, &r.Name, &isGit, &createdAt); err != nil {
		return nil, translateErr(err)
	}
	r.IsGitRepository = isGit != 0
	r.CreatedAt = time.UnixMilli(createdAt)
	return &r, nil
}

// CreateSession creates a new session row for the given repository.
func (s *Store) CreateSession(repositoryID, title string) (*Session, error) {
	id := uuid.New().String()
	now := nowMillis()
	rank := s.nextRank()
	_, err := s.db.Exec(`
		INSERT INTO sessions (session_id, repository_id, title, status, closed, is_worktree, worktree_path, claude_session_id, created_at, last_accessed_at, insert_rank)
		VALUES (?, ?, ?, 'active', 0, 0, NULL, NULL, ?, ?, ?)`,
		id, repositoryID, title, now, now, rank)
	if err != nil {
		return nil, translateErr(err)
	}
	if _, err := s.db.Exec(`
		INSERT INTO session_state (session_id, agent_status, updated_at) VALUES (?, 'idle', ?)`,
		id, now); err != nil {
		return nil, translateErr(err)
	}
	return s.GetSession(id)
}

// GetSession fetches a session by id.
func (s *Store) GetSession(sessionID string) (*Session, error) {
	row := s.db.QueryRow(`
		SELECT session_id, repository_id, title, status, closed, is_worktree,
		       worktree_path, claude_session_id, created_at, last_accessed_at, insert_rank
		FROM sessions WHERE session_id = ?`, sessionID)
	return scanSession(row)
}

func scanSession(row *sql.Row) (*Session, error) {
	var sess Session
	var status string
	var closed, isWorktree int
	var worktreePath, claudeSID sql.NullString
	var createdAt, lastAccessed int64
	err := row.Scan(&sess.SessionID, &sess.RepositoryID, &sess.Title, &status, &closed, &isWorktree,
		&worktreePath, &claudeSID, &createdAt, &lastAccessed, &sess.InsertRank)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, translateErr(err)
	}
	sess.Status = SessionStatus(status)
	sess.Closed = closed != 0
	sess.IsWorktree = isWorktree != 0
	sess.WorktreePath = worktreePath.String
	sess.ClaudeSessionID = claudeSID.String
	sess.CreatedAt = time.UnixMilli(createdAt)
	sess.LastAccessedAt = time.UnixMilli(lastAccessed)
	return &sess, nil
}

// ListSessions returns every session in insertion-rank order.
func (s *Store) ListSessions() ([]*Session, error) {
	rows, err := s.db.Query(`
		SELECT session_id, repository_id, title, status, closed, is_worktree,
		       worktree_path, claude_session_id, created_at, last_accessed_at, insert_rank
		FROM sessions ORDER BY insert_rank ASC`)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		var sess Session
		var status string
		var closed, isWorktree int
		var worktreePath, claudeSID sql.NullString
		var createdAt, lastAccessed int64
		if err := rows.Scan(&sess.SessionID, &sess.RepositoryID, &sess.Title, &status, &closed, &isWorktree,
			&worktreePath, &claudeSID, &createdAt, &lastAccessed, &sess.InsertRank); err != nil {
			return nil, translateErr(err)
		}
		sess.Status = SessionStatus(status)
		sess.Closed = closed != 0
		sess.IsWorktree = isWorktree != 0
		sess.WorktreePath = worktreePath.String
		sess.ClaudeSessionID = claudeSID.String
		sess.CreatedAt = time.UnixMilli(createdAt)
		sess.LastAccessedAt = time.UnixMilli(lastAccessed)
		out = append(out, &sess)
	}
	return out, translateErr(rows.Err())
}

// IsSessionOpen reports whether the session exists and is not closed.
func (s *Store) IsSessionOpen(sessionID string) (bool, error) {
	sess, err := s.GetSession(sessionID)
	if err != nil {
		return false, err
	}
	return !sess.Closed, nil
}

// CloseSession performs the one-shot closed transition. It returns true if
// this call performed the transition, false if the session was already
// closed (idempotent).
func (s *Store) CloseSession(sessionID string) (bool, error) {
	res, err := s.db.Exec(`UPDATE sessions SET closed = 1, last_accessed_at = ? WHERE session_id = ? AND closed = 0`,
		nowMillis(), sessionID)
	if err != nil {
		return false, translateErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, translateErr(err)
	}
	return n > 0, nil
}

// SetClaudeSessionID persists the agent's own session id for a session.
func (s *Store) SetClaudeSessionID(sessionID, claudeSessionID string) error {
	_, err := s.db.Exec(`UPDATE sessions SET claude_session_id = ? WHERE session_id = ?`, claudeSessionID, sessionID)
	return translateErr(err)
}

// SetWorktreePath records the effective worktree path for a session.
func (s *Store) SetWorktreePath(sessionID, path string) error {
	_, err := s.db.Exec(`UPDATE sessions SET is_worktree = 1, worktree_path = ? WHERE session_id = ?`, path, sessionID)
	return translateErr(err)
}

// DeleteSession hard-deletes a session; cascades to messages, state,
// secret, and outbox via foreign keys.
func (s *Store) DeleteSession(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE session_id = ?`, sessionID)
	return translateErr(err)
}

// InsertMessage appends a message to a session, assigning the next dense
// sequence number and returning the store-assigned message id.
func (s *Store) InsertMessage(sessionID string, content []byte) (int64, int64, error) {
	row := s.db.QueryRow(`SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM messages WHERE session_id = ?`, sessionID)
	var seq int64
	if err := row.Scan(&seq); err != nil {
		return 0, 0, translateErr(err)
	}
	now := nowMillis()
	res, err := s.db.Exec(`
		INSERT INTO messages (session_id, content, sequence_number, is_streaming, created_at)
		VALUES (?, ?, ?, 0, ?)`, sessionID, content, seq, now)
	if err != nil {
		return 0, 0, translateErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, 0, translateErr(err)
	}
	return id, seq, nil
}

// GetMessages returns all messages for a session in message-id order.
func (s *Store) GetMessages(sessionID string) ([]Message, error) {
	return s.queryMessages(`
		SELECT message_id, session_id, content, sequence_number, is_streaming, created_at
		FROM messages WHERE session_id = ? ORDER BY message_id ASC`, sessionID)
}

// GetMessage fetches a single message by id, used by the batch sync worker
// to load content for an outbox row without re-reading an entire session.
func (s *Store) GetMessage(messageID int64) (*Message, error) {
	row := s.db.QueryRow(`
		SELECT message_id, session_id, content, sequence_number, is_streaming, created_at
		FROM messages WHERE message_id = ?`, messageID)
	var m Message
	var streaming int
	var createdAt int64
	if err := row.Scan(&m.MessageID, &m.SessionID, &m.Content, &m.SequenceNumber, &streaming, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, translateErr(err)
	}
	m.IsStreaming = streaming != 0
	m.CreatedAt = time.UnixMilli(createdAt)
	return &m, nil
}

// GetMessagesAfter returns messages with message_id > cursor, in order.
func (s *Store) GetMessagesAfter(sessionID string, cursor int64) ([]Message, error) {
	return s.queryMessages(`
		SELECT message_id, session_id, content, sequence_number, is_streaming, created_at
		FROM messages WHERE session_id = ? AND message_id > ? ORDER BY message_id ASC`, sessionID, cursor)
}

func (s *Store) queryMessages(query string, args ...interface{}) ([]Message, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var streaming int
		var createdAt int64
		if err := rows.Scan(&m.MessageID, &m.SessionID, &m.Content, &m.SequenceNumber, &streaming, &createdAt); err != nil {
			return nil, translateErr(err)
		}
		m.IsStreaming = streaming != 0
		m.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, m)
	}
	return out, translateErr(rows.Err())
}

// GetLastMessageID returns the highest message_id committed for a session,
// or 0 if the session has no messages yet.
func (s *Store) GetLastMessageID(sessionID string) (int64, error) {
	row := s.db.QueryRow(`SELECT COALESCE(MAX(message_id), 0) FROM messages WHERE session_id = ?`, sessionID)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, translateErr(err)
	}
	return id, nil
}

// SetAgentStatus updates the per-session agent status singleton.
func (s *Store) SetAgentStatus(sessionID string, status AgentStatus) error {
	_, err := s.db.Exec(`
		INSERT INTO session_state (session_id, agent_status, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET agent_status = excluded.agent_status, updated_at = excluded.updated_at`,
		sessionID, string(status), nowMillis())
	return translateErr(err)
}

// SetDiffSummary updates the per-session diff-summary singleton, used to
// record the unified diff of the most recent repository write so clients
// can render a change preview without re-reading the working tree.
func (s *Store) SetDiffSummary(sessionID string, diffSummary []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO session_state (session_id, diff_summary, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET diff_summary = excluded.diff_summary, updated_at = excluded.updated_at`,
		sessionID, diffSummary, nowMillis())
	return translateErr(err)
}

// GetSessionState returns the session's state singleton.
func (s *Store) GetSessionState(sessionID string) (*SessionState, error) {
	row := s.db.QueryRow(`
		SELECT session_id, agent_status, queued_command, diff_summary, updated_at
		FROM session_state WHERE session_id = ?`, sessionID)
	var st SessionState
	var status string
	var queued, diff []byte
	var updatedAt int64
	if err := row.Scan(&st.SessionID, &status, &queued, &diff, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, translateErr(err)
	}
	st.AgentStatus = AgentStatus(status)
	st.QueuedCommand = queued
	st.DiffSummary = diff
	st.UpdatedAt = time.UnixMilli(updatedAt)
	return &st, nil
}

// SetSessionSecret stores the wrapped (encrypted) per-session symmetric key.
func (s *Store) SetSessionSecret(sessionID string, encryptedSecret, nonce []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO session_secrets (session_id, encrypted_secret, nonce) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET encrypted_secret = excluded.encrypted_secret, nonce = excluded.nonce`,
		sessionID, encryptedSecret, nonce)
	return translateErr(err)
}

// GetSessionSecret retrieves the wrapped secret for a session.
func (s *Store) GetSessionSecret(sessionID string) (*SessionSecret, error) {
	row := s.db.QueryRow(`SELECT session_id, encrypted_secret, nonce FROM session_secrets WHERE session_id = ?`, sessionID)
	var sec SessionSecret
	if err := row.Scan(&sec.SessionID, &sec.EncryptedSecret, &sec.Nonce); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, translateErr(err)
	}
	return &sec, nil
}

// NextOutboxSequence returns the next outbox sequence number for a session.
// This counter is independent from the message sequence_number counter —
// the two are never assumed to coincide, even after message deletion.
func (s *Store) NextOutboxSequence(sessionID string) (int64, error) {
	row := s.db.QueryRow(`SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM outbox WHERE session_id = ?`, sessionID)
	var seq int64
	if err := row.Scan(&seq); err != nil {
		return 0, translateErr(err)
	}
	return seq, nil
}

// InsertOutbox inserts a pending outbox row referencing a committed message.
func (s *Store) InsertOutbox(sessionID string, sequenceNumber, messageID int64) error {
	_, err := s.db.Exec(`
		INSERT INTO outbox (session_id, sequence_number, message_id, status, retry_count, created_at)
		VALUES (?, ?, ?, 'pending', 0, ?)`, sessionID, sequenceNumber, messageID, nowMillis())
	return translateErr(err)
}

// GetPendingOutbox returns up to limit pending outbox rows for a session,
// oldest first.
func (s *Store) GetPendingOutbox(sessionID string, limit int) ([]OutboxEntry, error) {
	rows, err := s.db.Query(`
		SELECT session_id, sequence_number, message_id, status, retry_count, last_error, created_at, sent_at, acked_at
		FROM outbox WHERE session_id = ? AND status = 'pending' ORDER BY sequence_number ASC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, translateErr(err)
	}
	return scanOutbox(rows)
}

// GetAllPendingOutbox returns up to limit pending outbox rows across all
// sessions, oldest first — used by the batch upsert worker (C11).
func (s *Store) GetAllPendingOutbox(limit int) ([]OutboxEntry, error) {
	rows, err := s.db.Query(`
		SELECT session_id, sequence_number, message_id, status, retry_count, last_error, created_at, sent_at, acked_at
		FROM outbox WHERE status = 'pending' ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, translateErr(err)
	}
	return scanOutbox(rows)
}

func scanOutbox(rows *sql.Rows) ([]OutboxEntry, error) {
	defer rows.Close()
	var out []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		var status string
		var lastError sql.NullString
		var createdAt int64
		var sentAt, ackedAt sql.NullInt64
		if err := rows.Scan(&e.SessionID, &e.SequenceNumber, &e.MessageID, &status, &e.RetryCount,
			&lastError, &createdAt, &sentAt, &ackedAt); err != nil {
			return nil, translateErr(err)
		}
		e.Status = OutboxStatus(status)
		e.LastError = lastError.String
		e.CreatedAt = time.UnixMilli(createdAt)
		if sentAt.Valid {
			t := time.UnixMilli(sentAt.Int64)
			e.SentAt = &t
		}
		if ackedAt.Valid {
			t := time.UnixMilli(ackedAt.Int64)
			e.AckedAt = &t
		}
		out = append(out, e)
	}
	return out, translateErr(rows.Err())
}

// MarkOutboxSent marks the given (session, sequence) rows as sent.
func (s *Store) MarkOutboxSent(sessionID string, sequenceNumbers []int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return translateErr(err)
	}
	now := nowMillis()
	for _, seq := range sequenceNumbers {
		if _, err := tx.Exec(`UPDATE outbox SET status = 'sent', sent_at = ? WHERE session_id = ? AND sequence_number = ?`,
			now, sessionID, seq); err != nil {
			tx.Rollback()
			return translateErr(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return translateErr(err)
	}
	return nil
}

// MarkOutboxAcked marks sent rows as acked.
func (s *Store) MarkOutboxAcked(sessionID string, sequenceNumbers []int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return translateErr(err)
	}
	now := nowMillis()
	for _, seq := range sequenceNumbers {
		if _, err := tx.Exec(`UPDATE outbox SET status = 'acked', acked_at = ? WHERE session_id = ? AND sequence_number = ?`,
			now, sessionID, seq); err != nil {
			tx.Rollback()
			return translateErr(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return translateErr(err)
	}
	return nil
}

// MarkOutboxFailed records a failed delivery attempt, bumping retry_count.
func (s *Store) MarkOutboxFailed(sessionID string, sequenceNumber int64, errMsg string) error {
	_, err := s.db.Exec(`
		UPDATE outbox SET status = 'failed', retry_count = retry_count + 1, last_error = ?
		WHERE session_id = ? AND sequence_number = ?`, errMsg, sessionID, sequenceNumber)
	return translateErr(err)
}

// ResetSentToPending resets any rows left in "sent" state back to "pending"
// for a session — used to recover from a crash mid-batch: the backend may
// or may not have received a batch whose ack never arrived, so the safe
// action is to resend.
func (s *Store) ResetSentToPending(sessionID string) (int, error) {
	res, err := s.db.Exec(`UPDATE outbox SET status = 'pending' WHERE session_id = ? AND status = 'sent'`, sessionID)
	if err != nil {
		return 0, translateErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, translateErr(err)
	}
	return int(n), nil
}

// ResetAllSentToPending resets every session's "sent" outbox rows back to
// "pending" — called once at daemon startup to recover from a crash mid-batch.
func (s *Store) ResetAllSentToPending() (int, error) {
	res, err := s.db.Exec(`UPDATE outbox SET status = 'pending' WHERE status = 'sent'`)
	if err != nil {
		return 0, translateErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, translateErr(err)
	}
	return int(n), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
