// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package client provides a Go client library for the unbound-daemon RPC
// surface.
//
// unbound-daemon exposes a newline-delimited JSON-RPC protocol over a
// unix-domain socket (see internal/rpc). This client library dials that
// socket and provides typed access to its methods through resource-specific
// sub-clients, the same shape as the teacher's HTTP-backed pkg/client.
//
// # Getting Started
//
// Dial the daemon's RPC socket:
//
//	c, err := client.Dial("/home/user/.unbound/unbound.sock")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	sessions, err := c.Sessions.List(ctx)
//
// # Error Handling
//
// RPC errors are returned as *APIError values carrying the wire error code:
//
//	sess, err := c.Sessions.Get(ctx, "unknown-id")
//	if err != nil {
//		if apiErr, ok := err.(*client.APIError); ok {
//			fmt.Printf("rpc error %d: %s\n", apiErr.Code, apiErr.Message)
//		}
//	}
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Client is an unbound-daemon RPC client bound to one unix-socket
// connection. A Client is safe for concurrent use by multiple goroutines:
// calls are multiplexed over the single connection by request id.
type Client struct {
	conn    net.Conn
	timeout time.Duration

	w  *bufio.Writer
	wmu sync.Mutex

	nextID int64

	pendingMu sync.Mutex
	pending   map[string]chan rpcResponse

	closeOnce sync.Once
	closed    chan struct{}

	// Sessions provides access to session lifecycle operations.
	Sessions *SessionClient
	// Messages provides access to session message history and sending.
	Messages *MessageClient
	// Repositories provides access to repository registration and file I/O.
	Repositories *RepositoryClient
	// Agent provides access to the coding-agent subprocess bridge.
	Agent *AgentClient
	// Git provides access to repository-local git inspection and staging.
	Git *GitClient
	// Terminal provides access to the PTY-backed terminal bridge.
	Terminal *TerminalClient
	// Auth provides access to device authentication.
	Auth *AuthClient
}

// Option configures a [Client]. Options are passed to [Dial] to customize
// client behavior.
type Option func(*Client)

// WithTimeout sets the per-call timeout applied when ctx carries no
// deadline of its own. The default is 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// Dial connects to the daemon's RPC socket at path and starts the
// background frame reader. Call Close when done.
func Dial(path string, opts ...Option) (*Client, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", path, err)
	}
	c := &Client{
		conn:    conn,
		timeout: 30 * time.Second,
		w:       bufio.NewWriter(conn),
		pending: make(map[string]chan rpcResponse),
		closed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Sessions = &SessionClient{c: c}
	c.Messages = &MessageClient{c: c}
	c.Repositories = &RepositoryClient{c: c}
	c.Agent = &AgentClient{c: c}
	c.Git = &GitClient{c: c}
	c.Terminal = &TerminalClient{c: c}
	c.Auth = &AuthClient{c: c}

	go c.readLoop()
	return c, nil
}

// Close terminates the underlying connection and releases every pending
// call with an error.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
		c.pendingMu.Lock()
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.pendingMu.Unlock()
	})
	return err
}

type rpcRequest struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *APIError       `json:"error,omitempty"`
}

// APIError is the wire error object returned by a failed RPC call.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// call sends method(params) and blocks for its matching response, honoring
// ctx's deadline or the client's default timeout, whichever comes first.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	id := fmt.Sprintf("%d", atomic.AddInt64(&c.nextID, 1))

	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("client: marshal params: %w", err)
		}
		raw = data
	}

	ch := make(chan rpcResponse, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	frame, err := json.Marshal(rpcRequest{ID: id, Method: method, Params: raw})
	if err != nil {
		return fmt.Errorf("client: marshal request: %w", err)
	}
	frame = append(frame, '\n')

	c.wmu.Lock()
	_, werr := c.w.Write(frame)
	if werr == nil {
		werr = c.w.Flush()
	}
	c.wmu.Unlock()
	if werr != nil {
		return fmt.Errorf("client: write request: %w", werr)
	}

	deadline := c.timeout
	if d, ok := ctx.Deadline(); ok {
		if until := time.Until(d); until < deadline {
			deadline = until
		}
	}
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("client: call %s: timed out after %s", method, deadline)
	case <-c.closed:
		return fmt.Errorf("client: call %s: connection closed", method)
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("client: call %s: connection closed", method)
		}
		if resp.Error != nil {
			return resp.Error
		}
		if out == nil || len(resp.Result) == 0 {
			return nil
		}
		return json.Unmarshal(resp.Result, out)
	}
}

// readLoop dispatches incoming frames to their waiting caller by id. It
// exits, and closes the client, on the first read error (including a
// server-initiated disconnect).
func (c *Client) readLoop() {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var resp rpcResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			continue
		}
		c.pendingMu.Lock()
		ch, ok := c.pending[resp.ID]
		c.pendingMu.Unlock()
		if ok {
			ch <- resp
		}
	}
	c.Close()
}
