// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import "context"

// AgentClient provides access to the coding-agent subprocess bridge
// (claude.* RPC methods).
type AgentClient struct{ c *Client }

// Send feeds content to the running agent for sessionID, spawning it on
// first use.
func (a *AgentClient) Send(ctx context.Context, sessionID, content string) error {
	params := map[string]string{"session_id": sessionID, "content": content}
	return a.c.call(ctx, "claude.send", params, nil)
}

// Status reports whether an agent process is currently registered for
// sessionID.
func (a *AgentClient) Status(ctx context.Context, sessionID string) (bool, error) {
	var out struct {
		Running bool `json:"running"`
	}
	if err := a.c.call(ctx, "claude.status", sessionIDParams(sessionID), &out); err != nil {
		return false, err
	}
	return out.Running, nil
}

// Stop signals the running agent for sessionID to terminate.
func (a *AgentClient) Stop(ctx context.Context, sessionID string) error {
	return a.c.call(ctx, "claude.stop", sessionIDParams(sessionID), nil)
}
