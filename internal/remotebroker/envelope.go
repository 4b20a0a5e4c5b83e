// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package remotebroker implements the remote-command broker (C12): it
// validates inbound command envelopes from trusted peer devices, dispatches
// them to a type-keyed handler registry, and always publishes a typed
// response — even for an invalid envelope — so a requester never hangs
// waiting for a reply that will never come.
package remotebroker

import "encoding/json"

// SchemaVersion is the only wire schema version this broker accepts.
const SchemaVersion = 1

// CommandEnvelope is the wire shape of an inbound remote command
// (spec.md §3, RemoteCommandEnvelope).
type CommandEnvelope struct {
	SchemaVersion     int             `json:"schema_version"`
	Type              string          `json:"type"`
	RequestID         string          `json:"request_id"`
	RequesterDeviceID string          `json:"requester_device_id"`
	TargetDeviceID    string          `json:"target_device_id"`
	RequestedAtMs     int64           `json:"requested_at_ms"`
	Params            json.RawMessage `json:"params"`
}

// ResponseStatus mirrors RemoteCommandResponse.status.
type ResponseStatus string

const (
	StatusOK    ResponseStatus = "ok"
	StatusError ResponseStatus = "error"
)

// CommandResponse is the wire shape the broker always publishes in reply to
// a CommandEnvelope.
type CommandResponse struct {
	RequestID    string         `json:"request_id"`
	Status       ResponseStatus `json:"status"`
	Result       any            `json:"result,omitempty"`
	ErrorCode    string         `json:"error_code,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// SecretResponseStatus mirrors SessionSecretResponse.status.
type SecretResponseStatus string

const (
	SecretStatusOK    SecretResponseStatus = "ok"
	SecretStatusError SecretResponseStatus = "error"
)

// SchemeTag is the wire constant naming the hybrid encryption scheme used
// for SessionSecretResponse.ciphertext_b64.
const SchemeTag = "x25519-hkdf-sha256-chacha20poly1305"

// SessionSecretResponse is published on a separate channel from
// CommandResponse for session-secret-request commands (spec.md §3/§4.12).
type SessionSecretResponse struct {
	SchemaVersion      int    `json:"schema_version"`
	RequestID          string `json:"request_id"`
	SessionID          string `json:"session_id"`
	SenderDeviceID     string `json:"sender_device_id"`
	ReceiverDeviceID   string `json:"receiver_device_id"`
	Status             SecretResponseStatus `json:"status"`
	CiphertextB64      string `json:"ciphertext_b64,omitempty"`
	EncapsulationPubB64 string `json:"encapsulation_pubkey_b64,omitempty"`
	NonceB64           string `json:"nonce_b64,omitempty"`
	Algorithm          string `json:"algorithm,omitempty"`
	CreatedAtMs        int64  `json:"created_at_ms"`
	ErrorCode          string `json:"error_code,omitempty"`
}
