// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log"

	"github.com/wingedpig/unbound/internal/backend"
	"github.com/wingedpig/unbound/internal/remotebroker"
)

// backendResponsePublisher implements remotebroker.ResponsePublisher and
// remotebroker.SecretResponsePublisher by upserting onto the backend's
// response tables, the same Prefer: resolution=merge-duplicates shape
// internal/syncworkers.Levi uses for outbox rows.
type backendResponsePublisher struct {
	be *backend.Client
}

func (p *backendResponsePublisher) PublishResponse(resp remotebroker.CommandResponse) error {
	ctx := context.Background()
	err := p.be.Upsert(ctx, backend.UpsertOptions{
		Table:      "remote_command_responses",
		OnConflict: "request_id",
		Rows: []backend.Row{{
			"request_id":    resp.RequestID,
			"status":        resp.Status,
			"result":        resp.Result,
			"error_code":    resp.ErrorCode,
			"error_message": resp.ErrorMessage,
		}},
	})
	if err != nil {
		log.Printf("remotebroker: publish response for %s: %v", resp.RequestID, err)
	}
	return err
}

func (p *backendResponsePublisher) PublishSecretResponse(resp remotebroker.SessionSecretResponse) error {
	ctx := context.Background()
	err := p.be.Upsert(ctx, backend.UpsertOptions{
		Table:      "agent_coding_session_secrets",
		OnConflict: "session_id,device_id",
		Rows: []backend.Row{{
			"session_id":            resp.SessionID,
			"device_id":             resp.ReceiverDeviceID,
			"sender_device_id":      resp.SenderDeviceID,
			"status":                resp.Status,
			"ciphertext_b64":        resp.CiphertextB64,
			"encapsulation_pub_b64": resp.EncapsulationPubB64,
			"nonce_b64":             resp.NonceB64,
			"algorithm":             resp.Algorithm,
			"created_at_ms":         resp.CreatedAtMs,
		}},
	})
	if err != nil {
		log.Printf("remotebroker: publish secret response for session %s: %v", resp.SessionID, err)
	}
	return err
}
