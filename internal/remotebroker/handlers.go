// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package remotebroker

import (
	"context"
	"fmt"
	"time"

	"github.com/wingedpig/unbound/internal/devicecrypto"
	"github.com/wingedpig/unbound/internal/secretcache"
	"github.com/wingedpig/unbound/internal/store"
)

// CommandSessionSecretRequest is the command type a peer device sends to
// request a session's symmetric key be re-shared with it.
const CommandSessionSecretRequest = "session_secret_request"

// sessionSecretParams is the params shape for CommandSessionSecretRequest.
type sessionSecretParams struct {
	SessionID string `json:"session_id"`
}

// DevicePublicKeyLookup resolves a trusted device id to its X25519 public
// key, backed by the devices table in production.
type DevicePublicKeyLookup interface {
	DevicePublicKey(ctx context.Context, deviceID string) ([32]byte, error)
}

// NewSessionSecretHandler builds the Handler for CommandSessionSecretRequest.
// On success it also publishes a SessionSecretResponse on the broker's
// secret-response channel, carrying the hybrid-encrypted key for the
// requester — the normal CommandResponse is still published by Handle for
// the generic ack/error shape.
func NewSessionSecretHandler(b *Broker, db *store.Store, secrets *secretcache.Cache, dbKey [32]byte, devices DevicePublicKeyLookup, selfDeviceID string) Handler {
	return func(ctx context.Context, env CommandEnvelope) (any, error) {
		var params sessionSecretParams
		if err := decodeParams(env.Params, &params); err != nil {
			return nil, &HandlerError{Code: "invalid_params", Message: err.Error()}
		}

		key, err := secrets.Resolve(db, params.SessionID, dbKey)
		if err != nil {
			return nil, &HandlerError{Code: "secret_unavailable", Message: err.Error()}
		}

		pub, err := devices.DevicePublicKey(ctx, env.RequesterDeviceID)
		if err != nil {
			return nil, &HandlerError{Code: "unknown_device", Message: err.Error()}
		}

		encoded := secretcache.Format(key)
		eph, combined, err := devicecrypto.EncryptForDevice([]byte(encoded), pub, params.SessionID)
		if err != nil {
			return nil, &HandlerError{Code: "encrypt_failed", Message: err.Error()}
		}
		// combined is nonce(12) || ciphertext || tag(16); the wire format
		// carries the nonce separately from the ciphertext.
		nonce, ciphertext := combined[:12], combined[12:]

		resp := SessionSecretResponse{
			SchemaVersion:       SchemaVersion,
			RequestID:           env.RequestID,
			SessionID:           params.SessionID,
			SenderDeviceID:      selfDeviceID,
			ReceiverDeviceID:    env.RequesterDeviceID,
			Status:              SecretStatusOK,
			CiphertextB64:       b64(ciphertext),
			EncapsulationPubB64: b64(eph[:]),
			NonceB64:            b64(nonce),
			Algorithm:           SchemeTag,
			CreatedAtMs:         time.Now().UnixMilli(),
		}
		if pubErr := b.secrets.PublishSecretResponse(resp); pubErr != nil {
			return nil, &HandlerError{Code: "publish_failed", Message: pubErr.Error()}
		}
		return map[string]string{"session_id": params.SessionID}, nil
	}
}

func decodeParams(raw []byte, out any) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing params")
	}
	return decodeJSON(raw, out)
}
