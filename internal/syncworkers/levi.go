// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package syncworkers implements the backend sync workers (C11): Levi, the
// batched message-upsert worker, and Distributor, the session/repo/secret
// fan-out worker that runs on SessionCreated. Levi drains work on a ticker
// shaped the way the teacher's events.MemoryEventBus runs its history
// pruner — a ticker plus a stop channel, no external scheduler. Distributor
// has no loop of its own: it runs synchronously inside its Emit call.
package syncworkers

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/wingedpig/unbound/internal/backend"
	"github.com/wingedpig/unbound/internal/devicecrypto"
	"github.com/wingedpig/unbound/internal/secretcache"
	"github.com/wingedpig/unbound/internal/store"
)

const (
	leviTick       = 500 * time.Millisecond
	leviBatchLimit = 50

	outboxBackoffBase = 2 * time.Second
	outboxBackoffCap  = 5 * time.Minute
)

// Levi drains pending outbox rows and upserts their encrypted message
// content to the backend in a single batched request per tick.
type Levi struct {
	db       *store.Store
	backend  *backend.Client
	secrets  *secretcache.Cache
	dbKey    [32]byte // device database key, for unwrapping session secrets
	interval time.Duration
	limit    int

	backoffBase time.Duration
	backoffCap  time.Duration

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewLevi builds the batch worker. dbKey is this device's derived database
// key, used to unwrap session secrets on a secretcache miss.
func NewLevi(db *store.Store, be *backend.Client, secrets *secretcache.Cache, dbKey [32]byte) *Levi {
	return &Levi{
		db:          db,
		backend:     be,
		secrets:     secrets,
		dbKey:       dbKey,
		interval:    leviTick,
		limit:       leviBatchLimit,
		backoffBase: outboxBackoffBase,
		backoffCap:  outboxBackoffCap,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start resets any rows a crash left stuck in "sent" (spec.md §8 E6) and
// launches the ticker loop. Call Stop to terminate it.
func (l *Levi) Start(ctx context.Context) {
	if n, err := l.db.ResetAllSentToPending(); err != nil {
		log.Printf("levi: reset sent-to-pending at startup: %v", err)
	} else if n > 0 {
		log.Printf("levi: reset %d stuck outbox rows to pending at startup", n)
	}

	go l.run(ctx)
}

// Tuning overrides Levi's batching knobs, loaded from the daemon's
// optional worker-tuning YAML file (see daemonconfig.LoadTuning) so an
// operator can adjust batch cadence without a binary rebuild.
type Tuning struct {
	TickMS           int64 `yaml:"tick_ms"`
	BatchLimit       int   `yaml:"batch_limit"`
	BackoffBaseMS    int64 `yaml:"backoff_base_ms"`
	BackoffCapMS     int64 `yaml:"backoff_cap_ms"`
}

// WithTuning applies a non-zero subset of t to l. Call before Start; it is
// not safe to change tuning on a running worker.
func (l *Levi) WithTuning(t Tuning) *Levi {
	if t.TickMS > 0 {
		l.interval = time.Duration(t.TickMS) * time.Millisecond
	}
	if t.BatchLimit > 0 {
		l.limit = t.BatchLimit
	}
	if t.BackoffBaseMS > 0 {
		l.backoffBase = time.Duration(t.BackoffBaseMS) * time.Millisecond
	}
	if t.BackoffCapMS > 0 {
		l.backoffCap = time.Duration(t.BackoffCapMS) * time.Millisecond
	}
	return l
}

// Stop terminates the ticker loop and waits for it to exit.
func (l *Levi) Stop() {
	l.once.Do(func() { close(l.stop) })
	<-l.done
}

func (l *Levi) run(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		case <-ticker.C:
			if err := l.drainOnce(ctx); err != nil {
				log.Printf("levi: drain: %v", err)
			}
		}
	}
}

// drainOnce performs one batch: gather up to limit pending rows whose
// backoff has elapsed, encrypt their content, and upsert in one request.
func (l *Levi) drainOnce(ctx context.Context) error {
	pending, err := l.db.GetAllPendingOutbox(l.limit)
	if err != nil {
		return err
	}

	now := time.Now()
	var due []store.OutboxEntry
	for _, e := range pending {
		if l.backoffElapsed(e, now) {
			due = append(due, e)
		}
	}
	if len(due) == 0 {
		return nil
	}

	rows := make([]backend.Row, 0, len(due))
	var sentSessions = map[string][]int64{}
	for _, e := range due {
		row, err := l.buildRow(e)
		if err != nil {
			if markErr := l.db.MarkOutboxFailed(e.SessionID, e.SequenceNumber, err.Error()); markErr != nil {
				log.Printf("levi: mark failed for %s/%d: %v", e.SessionID, e.SequenceNumber, markErr)
			}
			continue
		}
		rows = append(rows, row)
		sentSessions[e.SessionID] = append(sentSessions[e.SessionID], e.SequenceNumber)
	}
	if len(rows) == 0 {
		return nil
	}

	err = l.backend.Upsert(ctx, backend.UpsertOptions{
		Table:      "agent_coding_session_messages",
		OnConflict: "session_id,sequence_number",
		Rows:       rows,
	})
	if err != nil {
		permanent := !backend.IsTransient(err)
		for sid, seqs := range sentSessions {
			for _, seq := range seqs {
				if markErr := l.db.MarkOutboxFailed(sid, seq, err.Error()); markErr != nil {
					log.Printf("levi: mark failed for %s/%d: %v", sid, seq, markErr)
				}
			}
		}
		if permanent {
			log.Printf("levi: permanent upsert failure, not retrying this batch: %v", err)
		}
		return err
	}

	for sid, seqs := range sentSessions {
		if err := l.db.MarkOutboxSent(sid, seqs); err != nil {
			log.Printf("levi: mark sent for %s: %v", sid, err)
		}
	}
	return nil
}

func (l *Levi) buildRow(e store.OutboxEntry) (backend.Row, error) {
	msg, err := l.db.GetMessage(e.MessageID)
	if err != nil {
		return nil, err
	}
	key, err := l.secrets.Resolve(l.db, e.SessionID, l.dbKey)
	if err != nil {
		return nil, err
	}
	ciphertext, nonce, err := devicecrypto.WrapRecord(msg.Content, key)
	if err != nil {
		return nil, err
	}
	return backend.Row{
		"session_id":          e.SessionID,
		"sequence_number":     e.SequenceNumber,
		"role":                "assistant",
		"content_encrypted_b64": b64(ciphertext),
		"content_nonce_b64":   b64(nonce),
	}, nil
}

// backoffElapsed applies the exponential backoff of spec.md §4.11 (base 2s,
// cap 5 min by default, overridable via Tuning) keyed off the row's retry
// count and creation time.
func (l *Levi) backoffElapsed(e store.OutboxEntry, now time.Time) bool {
	if e.RetryCount == 0 {
		return true
	}
	delay := l.backoffBase
	for i := 1; i < e.RetryCount; i++ {
		delay *= 2
		if delay > l.backoffCap {
			delay = l.backoffCap
			break
		}
	}
	return now.Sub(e.CreatedAt) >= delay
}
