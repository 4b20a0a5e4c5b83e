// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/wingedpig/unbound/internal/rpc"
)

// startTestServer brings up a real rpc.Server on a unix socket under a
// temp directory, mirroring how the daemon listens in production.
func startTestServer(t *testing.T) (sockPath string, srv *rpc.Server) {
	t.Helper()
	srv = rpc.New()
	sockPath = filepath.Join(t.TempDir(), "test.sock")
	if err := srv.Listen(sockPath); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return sockPath, srv
}

func TestDialAndHealthRoundTrip(t *testing.T) {
	sockPath, srv := startTestServer(t)
	srv.Register("health", func(ctx context.Context, conn *rpc.Conn, params json.RawMessage) (any, error) {
		return map[string]string{"status": "ok"}, nil
	})

	c, err := Dial(sockPath, WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	var out struct {
		Status string `json:"status"`
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.call(ctx, "health", nil, &out); err != nil {
		t.Fatalf("call health: %v", err)
	}
	if out.Status != "ok" {
		t.Fatalf("status = %q, want ok", out.Status)
	}
}

func TestAuthStatusRoundTrip(t *testing.T) {
	sockPath, srv := startTestServer(t)
	srv.Register("auth.status", func(ctx context.Context, conn *rpc.Conn, params json.RawMessage) (any, error) {
		return map[string]any{"state": "authenticated", "authenticated": true}, nil
	})

	c, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	status, err := c.Auth.Status(ctx)
	if err != nil {
		t.Fatalf("Auth.Status: %v", err)
	}
	if !status.Authenticated || status.State != "authenticated" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestCallSurfacesAPIError(t *testing.T) {
	sockPath, srv := startTestServer(t)
	srv.Register("session.get", func(ctx context.Context, conn *rpc.Conn, params json.RawMessage) (any, error) {
		return nil, rpc.NewError(rpc.CodeNotFound, "session not found")
	})

	c, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = c.Sessions.Get(ctx, "missing")
	if err == nil {
		t.Fatal("expected an error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Code != rpc.CodeNotFound {
		t.Fatalf("code = %d, want %d", apiErr.Code, rpc.CodeNotFound)
	}
}

func TestMultipleConcurrentCallsMultiplex(t *testing.T) {
	sockPath, srv := startTestServer(t)
	srv.Register("health", func(ctx context.Context, conn *rpc.Conn, params json.RawMessage) (any, error) {
		return map[string]string{"status": "ok"}, nil
	})

	c, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			var out struct {
				Status string `json:"status"`
			}
			errs <- c.call(ctx, "health", nil, &out)
		}()
	}
	for i := 0; i < 10; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("concurrent call: %v", err)
		}
	}
}
