// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package devicecrypto

import (
	"fmt"

	"github.com/google/uuid"
)

// KeyStore is the collaborator interface for persistent per-user storage of
// device private keys (and, by the same mechanism, session tokens used
// elsewhere in the daemon). It is implemented outside core scope — the OS
// keychain on desktop, a permission-restricted file on headless hosts — and supplied
// to the engine's callers.
type KeyStore interface {
	Set(key string, value []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
}

// ErrIdentityNotFound is returned by LoadIdentity when the key store has no
// private key under the expected name.
var ErrIdentityNotFound = fmt.Errorf("devicecrypto: identity not found")

// keyName returns the user-scoped key-store name for a device private key.
func keyName(userID string) string {
	return "com.unbound.device.privateKey." + userID
}

// Identity is a device's X25519 key material plus its random device id.
type Identity struct {
	DeviceID   string
	PrivateKey [32]byte
	PublicKey  [32]byte
}

// GenerateIdentity creates a new device identity, persists the private key
// to the key store under the user-scoped name, and returns it. The device
// id is a fresh random UUID, stable only within this key-store write.
func GenerateIdentity(ks KeyStore, userID string) (*Identity, error) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	if err := ks.Set(keyName(userID), priv[:]); err != nil {
		return nil, fmt.Errorf("devicecrypto: persist private key: %w", err)
	}
	return &Identity{
		DeviceID:   uuid.New().String(),
		PrivateKey: priv,
		PublicKey:  pub,
	}, nil
}

// LoadIdentity reads an existing device private key from the key store and
// derives its public key. deviceID is supplied by the caller (it is not
// itself stored in the key store under spec.md's scheme; callers persist it
// alongside their own user-profile record).
func LoadIdentity(ks KeyStore, userID, deviceID string) (*Identity, error) {
	raw, err := ks.Get(keyName(userID))
	if err != nil {
		return nil, ErrIdentityNotFound
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("devicecrypto: stored private key has wrong length %d", len(raw))
	}
	var priv [32]byte
	copy(priv[:], raw)
	pub, err := PublicKeyFromPrivate(priv)
	if err != nil {
		return nil, err
	}
	return &Identity{DeviceID: deviceID, PrivateKey: priv, PublicKey: pub}, nil
}
