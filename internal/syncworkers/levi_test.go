// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package syncworkers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wingedpig/unbound/internal/backend"
	"github.com/wingedpig/unbound/internal/devicecrypto"
	"github.com/wingedpig/unbound/internal/secretcache"
	"github.com/wingedpig/unbound/internal/store"
)

// TestLeviDrainMarksSent is E6: outbox rows stuck in "sent" after a
// simulated crash are reset to pending, drained, upserted once, and marked
// sent again on a 200-class response.
func TestLeviDrainMarksSent(t *testing.T) {
	var gotRows []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Prefer") != "resolution=merge-duplicates" {
			t.Errorf("expected merge-duplicates Prefer header, got %q", r.Header.Get("Prefer"))
		}
		if err := json.NewDecoder(r.Body).Decode(&gotRows); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	db, err := store.InMemory()
	if err != nil {
		t.Fatalf("store.InMemory: %v", err)
	}
	defer db.Close()

	repo, err := db.CreateRepository("/repo", "repo", true)
	if err != nil {
		t.Fatalf("CreateRepository: %v", err)
	}
	sess, err := db.CreateSession(repo.ID, "title")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	var devicePriv [32]byte
	devicePriv[0] = 3
	dbKey, err := devicecrypto.DeriveDatabaseKey(devicePriv)
	if err != nil {
		t.Fatalf("DeriveDatabaseKey: %v", err)
	}
	secrets := secretcache.New()
	if _, err := secrets.GenerateAndStore(db, sess.SessionID, dbKey); err != nil {
		t.Fatalf("GenerateAndStore: %v", err)
	}

	for i := 1; i <= 10; i++ {
		mid, seq, err := db.InsertMessage(sess.SessionID, []byte("hello"))
		if err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
		if err := db.InsertOutbox(sess.SessionID, seq, mid); err != nil {
			t.Fatalf("InsertOutbox: %v", err)
		}
	}
	pending, err := db.GetPendingOutbox(sess.SessionID, 100)
	if err != nil {
		t.Fatalf("GetPendingOutbox: %v", err)
	}
	var seqs []int64
	for _, p := range pending {
		seqs = append(seqs, p.SequenceNumber)
	}
	if err := db.MarkOutboxSent(sess.SessionID, seqs); err != nil {
		t.Fatalf("MarkOutboxSent (simulate pre-crash send): %v", err)
	}

	be := backend.New(srv.URL, "anon-key", "token")
	levi := NewLevi(db, be, secrets, dbKey)

	if n, err := db.ResetAllSentToPending(); err != nil {
		t.Fatalf("ResetAllSentToPending: %v", err)
	} else if n != 10 {
		t.Fatalf("expected 10 rows reset, got %d", n)
	}

	if err := levi.drainOnce(context.Background()); err != nil {
		t.Fatalf("drainOnce: %v", err)
	}

	if len(gotRows) != 10 {
		t.Fatalf("expected 10 rows upserted, got %d", len(gotRows))
	}

	remaining, err := db.GetPendingOutbox(sess.SessionID, 100)
	if err != nil {
		t.Fatalf("GetPendingOutbox: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected no pending rows after drain, got %d", len(remaining))
	}
}

func TestBackoffElapsed(t *testing.T) {
	l := &Levi{backoffBase: outboxBackoffBase, backoffCap: outboxBackoffCap}
	now := time.Now()
	fresh := store.OutboxEntry{RetryCount: 0, CreatedAt: now}
	if !l.backoffElapsed(fresh, now) {
		t.Fatal("expected a never-retried row to be immediately due")
	}

	justFailed := store.OutboxEntry{RetryCount: 1, CreatedAt: now}
	if l.backoffElapsed(justFailed, now) {
		t.Fatal("expected a just-failed row to not be due yet")
	}
	later := now.Add(3 * time.Second)
	if !l.backoffElapsed(justFailed, later) {
		t.Fatal("expected row to be due after its backoff window")
	}
}

func TestWithTuningOverridesDefaults(t *testing.T) {
	l := NewLevi(nil, nil, nil, [32]byte{})
	l.WithTuning(Tuning{TickMS: 250, BatchLimit: 10, BackoffBaseMS: 1000, BackoffCapMS: 60000})
	if l.interval != 250*time.Millisecond {
		t.Fatalf("interval = %v, want 250ms", l.interval)
	}
	if l.limit != 10 {
		t.Fatalf("limit = %d, want 10", l.limit)
	}
	if l.backoffBase != time.Second || l.backoffCap != time.Minute {
		t.Fatalf("backoff base/cap = %v/%v, want 1s/1m", l.backoffBase, l.backoffCap)
	}
}
