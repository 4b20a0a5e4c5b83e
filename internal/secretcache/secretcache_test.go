// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package secretcache

import (
	"testing"

	"github.com/wingedpig/unbound/internal/devicecrypto"
	"github.com/wingedpig/unbound/internal/store"
)

// TestParseGenerateRoundTrip is P10: parse(generate()) == original bytes.
func TestParseGenerateRoundTrip(t *testing.T) {
	key, encoded, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	got, err := Parse(encoded)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != key {
		t.Fatalf("round trip mismatch: got %x want %x", got, key)
	}
}

func TestParseRejectsMissingPrefix(t *testing.T) {
	if _, err := Parse("not-a-session-secret"); err != ErrInvalidEncoding {
		t.Fatalf("expected ErrInvalidEncoding, got %v", err)
	}
}

func TestCacheInsertGetRemove(t *testing.T) {
	c := New()
	var key [32]byte
	key[0] = 0x42

	if c.Contains("s1") {
		t.Fatal("expected empty cache")
	}
	c.Insert("s1", key)
	got, ok := c.Get("s1")
	if !ok || got != key {
		t.Fatalf("Get after Insert: ok=%v got=%x", ok, got)
	}
	c.Remove("s1")
	if c.Contains("s1") {
		t.Fatal("expected removed")
	}
}

func TestResolveMissThenHit(t *testing.T) {
	db, err := store.InMemory()
	if err != nil {
		t.Fatalf("store.InMemory: %v", err)
	}
	defer db.Close()

	repo, err := db.CreateRepository("/tmp/repo", "repo", true)
	if err != nil {
		t.Fatalf("CreateRepository: %v", err)
	}
	sess, err := db.CreateSession(repo.ID, "title")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	var devicePriv [32]byte
	devicePriv[0] = 7
	dbKey, err := devicecrypto.DeriveDatabaseKey(devicePriv)
	if err != nil {
		t.Fatalf("DeriveDatabaseKey: %v", err)
	}

	c := New()
	key, err := c.GenerateAndStore(db, sess.SessionID, dbKey)
	if err != nil {
		t.Fatalf("GenerateAndStore: %v", err)
	}

	c2 := New() // simulate a cold cache reading the same durable record
	got, err := c2.Resolve(db, sess.SessionID, dbKey)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != key {
		t.Fatalf("Resolve returned different key: got %x want %x", got, key)
	}
	if !c2.Contains(sess.SessionID) {
		t.Fatal("expected Resolve to cache-fill")
	}
}
