// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package agentproc manages the lifecycle of child agent processes (one per
// session) and bridges their stdout into the session engine. It is a
// generalization of a long-running-subprocess-plus-NDJSON-bridge pattern:
// each session owns at most one live child, and its output is routed,
// line by line, into the durable message log.
package agentproc

import "errors"

var (
	// ErrAlreadyRegistered is returned by Registry.Register for a session
	// that already has a live entry.
	ErrAlreadyRegistered = errors.New("agentproc: session already registered")
	// ErrNotRegistered is returned by Registry.Stop/Remove for a session
	// with no live entry.
	ErrNotRegistered = errors.New("agentproc: session not registered")
	// ErrAlreadyRunning is returned by Bridge.Start when a process is
	// already attached.
	ErrAlreadyRunning = errors.New("agentproc: process already running")
)

// RingWriter receives a raw copy of every bridged line, for the stream ring
// (C7). Implementations must not block the bridge for long; nil is a valid
// no-op writer.
type RingWriter interface {
	WriteLine(sessionID string, line []byte) error
}
