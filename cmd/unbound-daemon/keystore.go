// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// fileKeyStore is the headless-host implementation of devicecrypto.KeyStore
// (spec.md §4.9 calls this a collaborator interface implemented outside
// core scope — the OS keychain on desktop, a permission-restricted file
// here). Each key is one file under dir, named by its key name with every
// '.', '/' and '\\' replaced by '_' plus a ".key" suffix, matching the
// "one file per object, 0600, owner-only"
// idiom internal/tokenbroker uses for its socket.
type fileKeyStore struct {
	dir string
}

func newFileKeyStore(dir string) (*fileKeyStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("keystore: mkdir: %w", err)
	}
	return &fileKeyStore{dir: dir}, nil
}

func (k *fileKeyStore) path(key string) string {
	escaped := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c == '.' || c == '/' || c == '\\' {
			c = '_'
		}
		escaped = append(escaped, c)
	}
	return filepath.Join(k.dir, string(escaped)+".key")
}

func (k *fileKeyStore) Set(key string, value []byte) error {
	return os.WriteFile(k.path(key), value, 0o600)
}

func (k *fileKeyStore) Get(key string) ([]byte, error) {
	b, err := os.ReadFile(k.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.New("keystore: not found")
		}
		return nil, err
	}
	return b, nil
}

func (k *fileKeyStore) Delete(key string) error {
	err := os.Remove(k.path(key))
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
