// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package tokenbroker implements the local token broker (C14): a
// unix-domain-socket service that issues short-lived third-party realtime
// tokens to local sidecars, gated by a per-audience nonce minted at daemon
// startup. Grounded on the teacher's stale-pipe-then-listen idiom in
// internal/app.cleanupStalePipes, applied here to a single socket file
// instead of a set of named pipes.
package tokenbroker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Audience names the upstream realtime service a token is minted for.
type Audience string

const (
	AudienceFalco  Audience = "falco"
	AudienceNagato Audience = "nagato"
)

var validAudiences = map[Audience]bool{AudienceFalco: true, AudienceNagato: true}

// freshnessWindow is the minimum remaining lifetime a cached token must
// have to be reused instead of re-minted.
const freshnessWindow = 2 * time.Minute

// Request is the wire shape a sidecar sends over the domain socket.
type Request struct {
	BrokerToken string   `json:"broker_token"`
	Audience    Audience `json:"audience"`
	DeviceID    string   `json:"device_id"`
}

// Response is the wire shape returned to the sidecar.
type Response struct {
	Token string `json:"token,omitempty"`
	Error string `json:"error,omitempty"`
}

// UpstreamClient mints a fresh realtime token from the upstream auth
// service for a user, given that user's bearer token.
type UpstreamClient interface {
	MintToken(ctx context.Context, audience Audience, userBearerToken string) (token, clientID string, expiresAt time.Time, err error)
}

// SessionLookup resolves an authenticated device to its user id and bearer
// token, used to validate the request and to mint a token upstream.
type SessionLookup interface {
	UserForDevice(deviceID string) (userID, bearerToken string, ok bool)
}

type cacheKey struct {
	audience Audience
	userID   string
	deviceID string
}

type cacheEntry struct {
	token     string
	expiresAt time.Time
}

// Broker is the domain-socket token-issuing service.
type Broker struct {
	nonces   map[Audience]string
	upstream UpstreamClient
	sessions SessionLookup

	mu    sync.Mutex
	cache map[cacheKey]cacheEntry

	listener net.Listener
}

// New mints one broker-token nonce per audience and returns an unstarted
// broker. Call Listen to bind the socket.
func New(upstream UpstreamClient, sessions SessionLookup) (*Broker, error) {
	nonces := make(map[Audience]string, len(validAudiences))
	for aud := range validAudiences {
		token, err := randomToken()
		if err != nil {
			return nil, err
		}
		nonces[aud] = token
	}
	return &Broker{
		nonces:   nonces,
		upstream: upstream,
		sessions: sessions,
		cache:    make(map[cacheKey]cacheEntry),
	}, nil
}

// BrokerToken returns the nonce minted for an audience, for the daemon to
// hand to its own sidecars at spawn time.
func (b *Broker) BrokerToken(aud Audience) (string, bool) {
	t, ok := b.nonces[aud]
	return t, ok
}

func randomToken() (string, error) {
	return uuid.New().String(), nil
}

// Listen removes any stale socket file at path and binds a new unix socket
// with owner-only permissions.
func (b *Broker) Listen(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("tokenbroker: remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("tokenbroker: listen: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("tokenbroker: chmod socket: %w", err)
	}
	b.listener = ln
	return nil
}

// Close shuts down the listener.
func (b *Broker) Close() error {
	if b.listener == nil {
		return nil
	}
	return b.listener.Close()
}

// Serve accepts connections until the listener is closed or ctx is done.
func (b *Broker) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		b.Close()
	}()
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go b.handleConn(conn)
	}
}

func (b *Broker) handleConn(conn net.Conn) {
	defer conn.Close()
	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		json.NewEncoder(conn).Encode(Response{Error: "malformed request"})
		return
	}
	resp := b.handle(context.Background(), req)
	json.NewEncoder(conn).Encode(resp)
}

func (b *Broker) handle(ctx context.Context, req Request) Response {
	expected, ok := b.nonces[req.Audience]
	if !ok || !validAudiences[req.Audience] {
		return Response{Error: "unknown audience"}
	}
	if req.BrokerToken != expected {
		return Response{Error: "invalid broker token"}
	}
	if _, err := uuid.Parse(req.DeviceID); err != nil {
		return Response{Error: "device_id is not a valid uuid"}
	}

	userID, bearer, ok := b.sessions.UserForDevice(req.DeviceID)
	if !ok {
		return Response{Error: "no active session for device"}
	}

	key := cacheKey{audience: req.Audience, userID: userID, deviceID: req.DeviceID}
	if token, ok := b.freshCached(key); ok {
		return Response{Token: token}
	}

	token, clientID, expiresAt, err := b.upstream.MintToken(ctx, req.Audience, bearer)
	if err != nil {
		return Response{Error: fmt.Sprintf("mint token failed: %v", err)}
	}
	if normalize(clientID) != normalize(userID) {
		return Response{Error: "upstream clientId does not match authenticated user"}
	}

	b.mu.Lock()
	b.cache[key] = cacheEntry{token: token, expiresAt: expiresAt}
	b.mu.Unlock()

	return Response{Token: token}
}

func (b *Broker) freshCached(key cacheKey) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.cache[key]
	if !ok {
		return "", false
	}
	if time.Until(entry.expiresAt) < freshnessWindow {
		return "", false
	}
	return entry.token, true
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
