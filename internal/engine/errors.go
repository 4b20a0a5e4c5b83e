// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package engine

import "errors"

var (
	// ErrSessionNotFound is returned when an operation names a session the
	// engine has never created.
	ErrSessionNotFound = errors.New("engine: session not found")
	// ErrSessionClosed is returned by Append on a session that has already
	// transitioned through the one-shot close.
	ErrSessionClosed = errors.New("engine: session closed")
	// ErrDuplicateSession names the duplicate-session error kind. No engine
	// operation currently returns it: CreateSession takes no id and always
	// allocates a fresh one.
	ErrDuplicateSession = errors.New("engine: duplicate session")
)
