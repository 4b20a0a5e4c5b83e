// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/wingedpig/unbound/internal/backend"
	"github.com/wingedpig/unbound/internal/tokenbroker"
)

// realtimeUpstream mints short-lived realtime tokens from the backend's
// token-minting RPC endpoint, reusing internal/backend.Client's HTTP
// conventions (headers, transient/permanent classification, redacted
// logging) rather than hand-rolling a second HTTP client.
type realtimeUpstream struct {
	be *backend.Client
}

type mintTokenResponse struct {
	Token     string `json:"token"`
	ClientID  string `json:"client_id"`
	ExpiresAt int64  `json:"expires_at_ms"`
}

func (u *realtimeUpstream) MintToken(ctx context.Context, aud tokenbroker.Audience, bearer string) (string, string, time.Time, error) {
	var resp []mintTokenResponse
	query := fmt.Sprintf("audience=eq.%s", aud)
	if err := u.be.Get(ctx, "rpc/mint_realtime_token", query, &resp); err != nil {
		return "", "", time.Time{}, fmt.Errorf("mint token: %w", err)
	}
	if len(resp) == 0 {
		return "", "", time.Time{}, fmt.Errorf("mint token: empty response")
	}
	r := resp[0]
	return r.Token, r.ClientID, time.UnixMilli(r.ExpiresAt), nil
}
