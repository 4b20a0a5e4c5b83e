// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import "context"

// AuthClient provides access to device authentication (auth.* RPC
// methods, backed by the daemon's auth state machine).
type AuthClient struct{ c *Client }

// AuthStatus reports the current auth state machine state.
type AuthStatus struct {
	State         string `json:"state"`
	Authenticated bool   `json:"authenticated"`
}

// Status returns the daemon's current auth state.
func (a *AuthClient) Status(ctx context.Context) (*AuthStatus, error) {
	var out AuthStatus
	if err := a.c.call(ctx, "auth.status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login drives the auth state machine with the named input (one of the
// SessionDetected/LoginAttempt/.../LoginSuccess/LoginFailed family) and
// returns the resulting state.
func (a *AuthClient) Login(ctx context.Context, input string) (string, error) {
	var out struct {
		State string `json:"state"`
	}
	params := map[string]string{"input": input}
	if err := a.c.call(ctx, "auth.login", params, &out); err != nil {
		return "", err
	}
	return out.State, nil
}

// Logout drives the auth state machine to LogoutRequested and returns the
// resulting state.
func (a *AuthClient) Logout(ctx context.Context) (string, error) {
	var out struct {
		State string `json:"state"`
	}
	if err := a.c.call(ctx, "auth.logout", nil, &out); err != nil {
		return "", err
	}
	return out.State, nil
}
