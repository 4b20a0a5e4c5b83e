// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package syncworkers

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/wingedpig/unbound/internal/backend"
	"github.com/wingedpig/unbound/internal/devicecrypto"
	"github.com/wingedpig/unbound/internal/engine"
	"github.com/wingedpig/unbound/internal/secretcache"
	"github.com/wingedpig/unbound/internal/store"
)

// maxConcurrentEncrypts bounds how many devices' X25519/HKDF/ChaCha20-Poly1305
// encryptions run at once. A user with a large device fleet shouldn't spawn
// an unbounded goroutine per distribute call.
const maxConcurrentEncrypts = 8

// DeviceRecord is a row of the backend's devices table, as needed to
// encrypt a session secret for a peer.
type DeviceRecord struct {
	DeviceID  string `json:"device_id"`
	PublicKey string `json:"public_key_b64"`
}

// Distributor is the session/repo/secret fan-out worker: it implements
// engine.Sink and reacts to SessionCreated by upserting the owning
// repository and session, then encrypting the newly generated session
// secret for every one of the user's trusted devices (including itself).
type Distributor struct {
	db      *store.Store
	backend *backend.Client
	secrets *secretcache.Cache
	dbKey   [32]byte
	userID  string
	self    devicecrypto.Identity
}

// NewDistributor builds the distributor sink.
func NewDistributor(db *store.Store, be *backend.Client, secrets *secretcache.Cache, dbKey [32]byte, userID string, self devicecrypto.Identity) *Distributor {
	return &Distributor{db: db, backend: be, secrets: secrets, dbKey: dbKey, userID: userID, self: self}
}

// Emit implements engine.Sink. Only SessionCreated triggers distribution;
// other effects are ignored by this sink (the batch worker Levi handles
// MessageAppended via the outbox, wired separately in cmd/unbound-daemon).
func (d *Distributor) Emit(e engine.Effect) {
	if e.Kind != engine.EffectSessionCreated {
		return
	}
	ctx := context.Background()
	if err := d.distribute(ctx, e.SessionID); err != nil {
		log.Printf("distributor: distribute session %s: %v", e.SessionID, err)
	}
}

func (d *Distributor) distribute(ctx context.Context, sessionID string) error {
	sess, err := d.db.GetSession(sessionID)
	if err != nil {
		return fmt.Errorf("distributor: load session: %w", err)
	}
	repo, err := d.db.GetRepository(sess.RepositoryID)
	if err != nil {
		return fmt.Errorf("distributor: load repository: %w", err)
	}

	if err := d.backend.Upsert(ctx, backend.UpsertOptions{
		Table:      "repositories",
		OnConflict: "device_id,local_path",
		Rows: []backend.Row{{
			"id":        repo.ID,
			"path":      repo.Path,
			"name":      repo.Name,
			"device_id": d.self.DeviceID,
		}},
	}); err != nil {
		return fmt.Errorf("distributor: upsert repository: %w", err)
	}

	if err := d.backend.Upsert(ctx, backend.UpsertOptions{
		Table:      "agent_coding_sessions",
		OnConflict: "id",
		Rows: []backend.Row{{
			"id":            sess.SessionID,
			"repository_id": sess.RepositoryID,
			"title":         sess.Title,
			"status":        string(sess.Status),
		}},
	}); err != nil {
		return fmt.Errorf("distributor: upsert session: %w", err)
	}

	var devices []DeviceRecord
	query := fmt.Sprintf("user_id=eq.%s&select=device_id,public_key_b64", d.userID)
	if err := d.backend.Get(ctx, "devices", query, &devices); err != nil {
		return fmt.Errorf("distributor: fetch devices: %w", err)
	}
	devices = append(devices, DeviceRecord{
		DeviceID:  d.self.DeviceID,
		PublicKey: b64(d.self.PublicKey[:]),
	})

	key, err := d.secrets.GenerateAndStore(d.db, sessionID, d.dbKey)
	if err != nil {
		return fmt.Errorf("distributor: generate session secret: %w", err)
	}
	encoded := secretcache.Format(key)

	results := make([]backend.Row, len(devices))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentEncrypts)
	for i, dev := range devices {
		i, dev := i, dev
		g.Go(func() error {
			pub, err := decodePublicKey(dev.PublicKey)
			if err != nil {
				log.Printf("distributor: skip device %s with invalid public key: %v", dev.DeviceID, err)
				return nil
			}
			eph, ciphertext, err := devicecrypto.EncryptForDevice([]byte(encoded), pub, sessionID)
			if err != nil {
				log.Printf("distributor: encrypt for device %s: %v", dev.DeviceID, err)
				return nil
			}
			results[i] = backend.Row{
				"session_id":             sessionID,
				"device_id":              dev.DeviceID,
				"ephemeral_public_key_b64": b64(eph[:]),
				"encrypted_secret_b64":   b64(ciphertext),
			}
			return nil
		})
	}
	_ = g.Wait() // every goroutine above only returns nil

	rows := make([]backend.Row, 0, len(devices))
	for _, row := range results {
		if row != nil {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil
	}

	return d.backend.Upsert(ctx, backend.UpsertOptions{
		Table:      "agent_coding_session_secrets",
		OnConflict: "session_id,device_id",
		Rows:       rows,
	})
}
