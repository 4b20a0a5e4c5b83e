// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package remotebroker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
)

// Handler executes one command type and returns a JSON-serializable result.
// A returned *HandlerError is reported through the response's error_code /
// error_message fields; any other error is treated the same way with a
// generic "handler_failed" code.
type Handler func(ctx context.Context, env CommandEnvelope) (result any, err error)

// HandlerError lets a handler attach a stable error code to a failure.
type HandlerError struct {
	Code    string
	Message string
}

func (e *HandlerError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// TrustChecker verifies that a requester device belongs to this daemon's
// user and is trusted — backed by the devices table via internal/backend in
// production, and a fake in tests.
type TrustChecker interface {
	IsTrustedDevice(ctx context.Context, deviceID string) (bool, error)
}

// ResponsePublisher publishes a CommandResponse on the broker's normal
// response channel.
type ResponsePublisher interface {
	PublishResponse(resp CommandResponse) error
}

// SecretResponsePublisher publishes a SessionSecretResponse on the separate
// channel spec.md §4.12 describes for session-secret-request replies.
type SecretResponsePublisher interface {
	PublishSecretResponse(resp SessionSecretResponse) error
}

// Broker validates inbound envelopes, dispatches to a type-keyed handler
// registry, and always emits exactly one response.
type Broker struct {
	deviceID  string
	trust     TrustChecker
	responses ResponsePublisher
	secrets   SecretResponsePublisher
	handlers  map[string]Handler
}

// New builds a Broker bound to this daemon's own device id.
func New(deviceID string, trust TrustChecker, responses ResponsePublisher, secrets SecretResponsePublisher) *Broker {
	return &Broker{
		deviceID:  deviceID,
		trust:     trust,
		responses: responses,
		secrets:   secrets,
		handlers:  make(map[string]Handler),
	}
}

// Register binds a handler to a command type. Registering the same type
// twice replaces the previous handler.
func (b *Broker) Register(commandType string, h Handler) {
	b.handlers[commandType] = h
}

// errorCode/message pairs for envelope-level rejections, named by what they
// validate rather than by spec.md's internal enum names.
const (
	codeInvalidSchema    = "invalid_schema"
	codeWrongTarget      = "wrong_target"
	codeUnknownType      = "unknown_command_type"
	codeUntrustedRequester = "untrusted_requester"
	codeHandlerFailed    = "handler_failed"
	codeMalformedEnvelope = "malformed_envelope"
)

// HandleRaw parses and processes one inbound envelope, always publishing a
// response before returning (even for a malformed envelope, where no
// request_id can be echoed — the broker falls back to an empty one so the
// wire contract still holds an envelope shape).
func (b *Broker) HandleRaw(ctx context.Context, raw []byte) {
	var env CommandEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		b.reject("", codeMalformedEnvelope, err.Error())
		return
	}
	b.Handle(ctx, env)
}

// Handle validates and dispatches one envelope, publishing its response.
func (b *Broker) Handle(ctx context.Context, env CommandEnvelope) {
	if env.SchemaVersion != SchemaVersion {
		b.reject(env.RequestID, codeInvalidSchema, fmt.Sprintf("unsupported schema_version %d", env.SchemaVersion))
		return
	}
	if env.TargetDeviceID != b.deviceID {
		b.reject(env.RequestID, codeWrongTarget, "target_device_id does not match this daemon")
		return
	}

	trusted, err := b.trust.IsTrustedDevice(ctx, env.RequesterDeviceID)
	if err != nil {
		b.reject(env.RequestID, codeHandlerFailed, fmt.Sprintf("trust check failed: %v", err))
		return
	}
	if !trusted {
		b.reject(env.RequestID, codeUntrustedRequester, "requester is not a trusted device of this user")
		return
	}

	h, ok := b.handlers[env.Type]
	if !ok {
		b.reject(env.RequestID, codeUnknownType, fmt.Sprintf("no handler registered for %q", env.Type))
		return
	}

	result, err := h(ctx, env)
	if err != nil {
		var he *HandlerError
		if errors.As(err, &he) {
			b.reject(env.RequestID, he.Code, he.Message)
		} else {
			b.reject(env.RequestID, codeHandlerFailed, err.Error())
		}
		return
	}

	if err := b.responses.PublishResponse(CommandResponse{
		RequestID: env.RequestID,
		Status:    StatusOK,
		Result:    result,
	}); err != nil {
		log.Printf("remotebroker: publish response for %s: %v", env.RequestID, err)
	}
}

func (b *Broker) reject(requestID, code, message string) {
	if err := b.responses.PublishResponse(CommandResponse{
		RequestID:    requestID,
		Status:       StatusError,
		ErrorCode:    code,
		ErrorMessage: message,
	}); err != nil {
		log.Printf("remotebroker: publish rejection for %s: %v", requestID, err)
	}
}
