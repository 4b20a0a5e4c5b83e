// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import "context"

// TerminalClient provides access to the PTY-backed terminal bridge
// (terminal.* RPC methods).
type TerminalClient struct{ c *Client }

// Run starts the daemon's configured shell for sessionID, spawning it on
// first use.
func (t *TerminalClient) Run(ctx context.Context, sessionID string) error {
	return t.c.call(ctx, "terminal.run", sessionIDParams(sessionID), nil)
}

// Status reports whether a terminal is currently registered for
// sessionID.
func (t *TerminalClient) Status(ctx context.Context, sessionID string) (bool, error) {
	var out struct {
		Running bool `json:"running"`
	}
	if err := t.c.call(ctx, "terminal.status", sessionIDParams(sessionID), &out); err != nil {
		return false, err
	}
	return out.Running, nil
}

// Stop signals the running terminal for sessionID to terminate.
func (t *TerminalClient) Stop(ctx context.Context, sessionID string) error {
	return t.c.call(ctx, "terminal.stop", sessionIDParams(sessionID), nil)
}
