// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package devicecrypto

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// dbWrapInfo is the fixed HKDF info string for deriving the database
// wrap key from a device private key. Every at-rest blob the durable store
// encrypts (session secrets, and any other sensitive column) is wrapped
// under the same derived key.
var dbWrapInfo = []byte("unbound-database-encryption-v1")

// DeriveDatabaseKey expands a device's X25519 private key into the 32-byte
// symmetric key used to wrap durable-store payloads. The salt is
// deliberately empty: the key is per-device, not per-record.
func DeriveDatabaseKey(devicePrivateKey [32]byte) ([32]byte, error) {
	var key [32]byte
	r := hkdf.New(newSHA256, devicePrivateKey[:], nil, dbWrapInfo)
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return key, fmt.Errorf("devicecrypto: derive database key: %w", err)
	}
	return key, nil
}

// WrapRecord encrypts plaintext under key with a freshly generated 12-byte
// nonce, returning the ciphertext and nonce as separate blobs the way
// SessionSecret stores them (encrypted_secret, nonce).
func WrapRecord(plaintext []byte, key [32]byte) (ciphertext, nonce []byte, err error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, nil, fmt.Errorf("devicecrypto: init cipher: %w", err)
	}
	nonce = make([]byte, chacha20poly1305.NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("devicecrypto: generate nonce: %w", err)
	}
	ciphertext = aead.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// UnwrapRecord reverses WrapRecord. A tag mismatch returns ErrAuthMismatch,
// same as the device-to-device codec — wrong key and tampered data are not
// distinguished.
func UnwrapRecord(ciphertext, nonce []byte, key [32]byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("devicecrypto: init cipher: %w", err)
	}
	if len(nonce) != chacha20poly1305.NonceSize {
		return nil, ErrCiphertextTooShort
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthMismatch
	}
	return plaintext, nil
}
