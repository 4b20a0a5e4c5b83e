// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/wingedpig/unbound/internal/backend"
)

// deviceLookup answers remotebroker.TrustChecker and
// remotebroker.DevicePublicKeyLookup, and tokenbroker.SessionLookup, all
// backed by the single devices table query the teacher's
// internal/claude.Manager uses as its "thin client over one backend
// endpoint" shape.
type deviceLookup struct {
	be     *backend.Client
	userID string
	bearer string
}

type deviceRow struct {
	DeviceID    string `json:"device_id"`
	UserID      string `json:"user_id"`
	PublicKeyB64 string `json:"public_key_b64"`
}

func (d *deviceLookup) fetch(ctx context.Context, deviceID string) (*deviceRow, error) {
	var rows []deviceRow
	query := fmt.Sprintf("device_id=eq.%s", deviceID)
	if err := d.be.Get(ctx, "devices", query, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("device %s not found", deviceID)
	}
	return &rows[0], nil
}

// IsTrustedDevice implements remotebroker.TrustChecker: a device is trusted
// if it belongs to the same user this daemon is authenticated as.
func (d *deviceLookup) IsTrustedDevice(ctx context.Context, deviceID string) (bool, error) {
	row, err := d.fetch(ctx, deviceID)
	if err != nil {
		return false, nil
	}
	return row.UserID == d.userID, nil
}

// DevicePublicKey implements remotebroker.DevicePublicKeyLookup.
func (d *deviceLookup) DevicePublicKey(ctx context.Context, deviceID string) ([32]byte, error) {
	var pub [32]byte
	row, err := d.fetch(ctx, deviceID)
	if err != nil {
		return pub, err
	}
	raw, err := base64.StdEncoding.DecodeString(row.PublicKeyB64)
	if err != nil || len(raw) != 32 {
		return pub, fmt.Errorf("malformed public key for device %s", deviceID)
	}
	copy(pub[:], raw)
	return pub, nil
}

// UserForDevice implements tokenbroker.SessionLookup. This daemon instance
// authenticates as exactly one user, so every locally-registered device id
// resolves to that same user and bearer token.
func (d *deviceLookup) UserForDevice(deviceID string) (userID, bearerToken string, ok bool) {
	if d.userID == "" {
		return "", "", false
	}
	return d.userID, d.bearer, true
}
