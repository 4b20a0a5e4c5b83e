// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package devicecrypto implements device-to-device hybrid encryption for
// session secrets: an ephemeral X25519 key exchange, HKDF-SHA256 key
// derivation salted by the session id, and ChaCha20-Poly1305 authenticated
// encryption. The scheme and its exact HKDF parameters are fixed so they
// interoperate with the non-Go clients that share this daemon's protocol.
package devicecrypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// newSHA256 is the hash constructor HKDF uses throughout this package.
func newSHA256() hash.Hash { return sha256.New() }

// hkdfInfo is the fixed HKDF info string; changing it is a breaking wire
// change and must stay in lockstep with every client implementation.
var hkdfInfo = []byte("unbound-session-secret-v1")

const (
	keySize   = 32
	nonceSize = chacha20poly1305.NonceSize // 12
	tagSize   = 16
)

// ErrAuthMismatch is returned when decryption fails authentication — wrong
// key, wrong session id, or tampered ciphertext are all indistinguishable
// by design.
var ErrAuthMismatch = errors.New("devicecrypto: authentication failed")

// ErrCiphertextTooShort is returned when the combined nonce+ciphertext+tag
// blob cannot possibly be valid.
var ErrCiphertextTooShort = errors.New("devicecrypto: ciphertext shorter than nonce+tag")

// GenerateKeyPair creates a new X25519 device identity.
func GenerateKeyPair() (priv, pub [32]byte, err error) {
	if _, err = io.ReadFull(rand.Reader, priv[:]); err != nil {
		return priv, pub, fmt.Errorf("devicecrypto: generate private key: %w", err)
	}
	p, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return priv, pub, fmt.Errorf("devicecrypto: derive public key: %w", err)
	}
	copy(pub[:], p)
	return priv, pub, nil
}

// PublicKeyFromPrivate derives the X25519 public key for a private key.
func PublicKeyFromPrivate(priv [32]byte) ([32]byte, error) {
	var pub [32]byte
	p, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return pub, fmt.Errorf("devicecrypto: derive public key: %w", err)
	}
	copy(pub[:], p)
	return pub, nil
}

// EncryptForDevice encrypts plaintext for recipientPublicKey, binding the
// ciphertext to sessionID as the HKDF salt. Returns the ephemeral public
// key to send alongside the ciphertext, and the combined
// nonce||ciphertext||tag blob.
func EncryptForDevice(plaintext []byte, recipientPublicKey [32]byte, sessionID string) (ephemeral [32]byte, combined []byte, err error) {
	var ephPriv [32]byte
	if _, err = io.ReadFull(rand.Reader, ephPriv[:]); err != nil {
		return ephemeral, nil, fmt.Errorf("devicecrypto: generate ephemeral key: %w", err)
	}
	ephPub, err := curve25519.X25519(ephPriv[:], curve25519.Basepoint)
	if err != nil {
		return ephemeral, nil, fmt.Errorf("devicecrypto: derive ephemeral public key: %w", err)
	}
	copy(ephemeral[:], ephPub)

	shared, err := curve25519.X25519(ephPriv[:], recipientPublicKey[:])
	if err != nil {
		return ephemeral, nil, fmt.Errorf("devicecrypto: ecdh: %w", err)
	}

	symKey, err := deriveKey(shared, sessionID)
	if err != nil {
		return ephemeral, nil, err
	}

	aead, err := chacha20poly1305.New(symKey)
	if err != nil {
		return ephemeral, nil, fmt.Errorf("devicecrypto: init cipher: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return ephemeral, nil, fmt.Errorf("devicecrypto: generate nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)
	combined = make([]byte, 0, nonceSize+len(ciphertext))
	combined = append(combined, nonce...)
	combined = append(combined, ciphertext...)
	return ephemeral, combined, nil
}

// DecryptForDevice reverses EncryptForDevice using this device's private
// key. It fails with ErrAuthMismatch for a wrong key, wrong session id, or
// tampered ciphertext — these are never distinguished.
func DecryptForDevice(ephemeralPublicKey [32]byte, combined []byte, devicePrivateKey [32]byte, sessionID string) ([]byte, error) {
	if len(combined) < nonceSize+tagSize {
		return nil, ErrCiphertextTooShort
	}

	shared, err := curve25519.X25519(devicePrivateKey[:], ephemeralPublicKey[:])
	if err != nil {
		return nil, fmt.Errorf("devicecrypto: ecdh: %w", err)
	}

	symKey, err := deriveKey(shared, sessionID)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.New(symKey)
	if err != nil {
		return nil, fmt.Errorf("devicecrypto: init cipher: %w", err)
	}

	nonce, ciphertext := combined[:nonceSize], combined[nonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthMismatch
	}
	return plaintext, nil
}

// deriveKey expands an ECDH shared secret into a 32-byte symmetric key,
// salted with the session id for domain separation between sessions.
func deriveKey(shared []byte, sessionID string) ([]byte, error) {
	r := hkdf.New(newSHA256, shared, []byte(sessionID), hkdfInfo)
	key := make([]byte, keySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("devicecrypto: hkdf expand: %w", err)
	}
	return key, nil
}
