// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import "context"

// MessageClient provides access to session message history and sending
// (message.* RPC methods).
type MessageClient struct{ c *Client }

// List returns every committed message for a session, snapshot plus delta,
// in session order.
func (m *MessageClient) List(ctx context.Context, sessionID string) ([]Message, error) {
	var out []Message
	if err := m.c.call(ctx, "message.list", sessionIDParams(sessionID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Send appends content as a new message and returns it.
func (m *MessageClient) Send(ctx context.Context, sessionID, content string) (*Message, error) {
	var out Message
	params := map[string]string{"session_id": sessionID, "content": content}
	if err := m.c.call(ctx, "message.send", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
