// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package secretcache implements the per-session symmetric-key cache (C8):
// an in-process map from session id to 32-byte key, backed by the durable
// store's wrapped SessionSecret and the device-derived database key. The
// cache itself never touches disk — a process restart always re-derives
// from the durable, encrypted record.
package secretcache

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/wingedpig/unbound/internal/devicecrypto"
	"github.com/wingedpig/unbound/internal/store"
)

const sessionSecretPrefix = "sess_"

// ErrInvalidEncoding is returned when a stored secret string does not carry
// the canonical "sess_" prefix or does not base64url-decode to 32 bytes.
var ErrInvalidEncoding = errors.New("secretcache: invalid session secret encoding")

// Generate produces a fresh 32-byte symmetric key rendered in the canonical
// "sess_<base64url(32)>" encoding.
func Generate() (key [32]byte, encoded string, err error) {
	if _, err = io.ReadFull(rand.Reader, key[:]); err != nil {
		return key, "", fmt.Errorf("secretcache: generate key: %w", err)
	}
	encoded = Format(key)
	return key, encoded, nil
}

// Format renders a 32-byte key in the canonical encoding.
func Format(key [32]byte) string {
	return sessionSecretPrefix + base64.RawURLEncoding.EncodeToString(key[:])
}

// Parse reverses Format, rejecting anything without the "sess_" prefix or
// that does not decode to exactly 32 bytes.
func Parse(encoded string) ([32]byte, error) {
	var key [32]byte
	body, ok := strings.CutPrefix(encoded, sessionSecretPrefix)
	if !ok {
		return key, ErrInvalidEncoding
	}
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil || len(raw) != 32 {
		return key, ErrInvalidEncoding
	}
	copy(key[:], raw)
	return key, nil
}

// Cache is a thread-safe in-process map of session id to symmetric key.
// All operations are O(1) under a single mutex, per spec.md §5.
type Cache struct {
	mu   sync.Mutex
	keys map[string][32]byte
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{keys: make(map[string][32]byte)}
}

// Insert stores a key for a session, overwriting any existing entry.
func (c *Cache) Insert(sessionID string, key [32]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[sessionID] = key
}

// Get returns the cached key for a session, if present.
func (c *Cache) Get(sessionID string) ([32]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k, ok := c.keys[sessionID]
	return k, ok
}

// Remove evicts a session's cached key.
func (c *Cache) Remove(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, sessionID)
}

// Contains reports whether a session has a cached key.
func (c *Cache) Contains(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.keys[sessionID]
	return ok
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = make(map[string][32]byte)
}

// Resolve implements the miss-to-hit path of spec.md §4.8: cache, then
// durable store unwrapped with the device database key, then cache-fill.
func (c *Cache) Resolve(db *store.Store, sessionID string, dbKey [32]byte) ([32]byte, error) {
	if key, ok := c.Get(sessionID); ok {
		return key, nil
	}

	var zero [32]byte
	rec, err := db.GetSessionSecret(sessionID)
	if err != nil {
		return zero, err
	}
	plaintext, err := devicecrypto.UnwrapRecord(rec.EncryptedSecret, rec.Nonce, dbKey)
	if err != nil {
		return zero, err
	}
	key, err := Parse(string(plaintext))
	if err != nil {
		return zero, err
	}
	c.Insert(sessionID, key)
	return key, nil
}

// GenerateAndStore creates a new session secret, wraps it under dbKey, and
// persists it, caching the plaintext key for subsequent Get calls.
func (c *Cache) GenerateAndStore(db *store.Store, sessionID string, dbKey [32]byte) ([32]byte, error) {
	key, encoded, err := Generate()
	if err != nil {
		return key, err
	}
	ciphertext, nonce, err := devicecrypto.WrapRecord([]byte(encoded), dbKey)
	if err != nil {
		return key, err
	}
	if err := db.SetSessionSecret(sessionID, ciphertext, nonce); err != nil {
		return key, err
	}
	c.Insert(sessionID, key)
	return key, nil
}
