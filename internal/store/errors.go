// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import "errors"

// Error kinds surfaced by the durable store, per the engine write-path
// error taxonomy: StoreCorrupt is fatal, Busy is retriable, and
// ForeignKeyViolation indicates a logic bug in the caller.
var (
	ErrCorrupt            = errors.New("store: corrupt (migration mismatch)")
	ErrBusy               = errors.New("store: busy, retry")
	ErrForeignKeyViolation = errors.New("store: foreign key violation")

	ErrSessionNotFound = errors.New("store: session not found")
	ErrNotFound        = errors.New("store: record not found")
)
