// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package push implements subscription push events (spec.md §6.2): each
// websocket client connection gets a goroutine draining an
// engine.LiveSubscription and forwarding it to the client, multiplexed
// using gorilla/websocket's write-goroutine pattern from the teacher's
// internal/api/handlers/events.go (single writer goroutine per
// connection, ticker-driven ping, SetWriteDeadline before every write).
// The RPC method surface itself (internal/rpc) stays on the raw
// NDJSON unix socket per spec.md §6's literal "local byte-stream socket"
// wording; this package serves the same events over HTTP/websocket for
// clients that prefer it (browser-based consoles, in particular).
package push

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/wingedpig/unbound/internal/engine"
)

// EventType names one of the subscription push event kinds of spec.md §6.2.
type EventType string

const (
	EventMessage          EventType = "Message"
	EventStreamingChunk    EventType = "StreamingChunk"
	EventStatusChange      EventType = "StatusChange"
	EventInitialState      EventType = "InitialState"
	EventPing              EventType = "Ping"
	EventTerminalOutput    EventType = "TerminalOutput"
	EventTerminalFinished  EventType = "TerminalFinished"
	EventClaudeEvent       EventType = "ClaudeEvent"
	EventAuthStateChanged  EventType = "AuthStateChanged"
	EventSessionCreated    EventType = "SessionCreated"
	EventSessionDeleted    EventType = "SessionDeleted"
)

// Event is the wire shape of one pushed event.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Data      any       `json:"data,omitempty"`
	Sequence  int64     `json:"sequence"`
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub serves the HTTP upgrade endpoint for live subscription events,
// draining an engine.LiveSubscription per connected client.
type Hub struct {
	eng *engine.Engine
}

// NewHub returns a Hub bound to the session engine.
func NewHub(eng *engine.Engine) *Hub {
	return &Hub{eng: eng}
}

// Router returns a gorilla/mux router exposing GET /sessions/{id}/events,
// meant to be mounted under the daemon's diagnostics/debug HTTP listener
// alongside internal/tokenbroker (both are local-only side channels, not
// the primary RPC transport).
func (h *Hub) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/sessions/{id}/events", h.serveSession).Methods("GET")
	return r
}

func (h *Hub) serveSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := h.eng.Subscribe(sessionID)
	defer h.eng.Unsubscribe(sessionID, sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	var seq int64
	for {
		select {
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			seq++
			ev := Event{Type: EventMessage, SessionID: sessionID, Data: msg, Sequence: seq}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// marshalEvent is a helper kept for callers that need the raw bytes (e.g.
// to also fan an event out to a streamring producer) rather than writing
// directly to a websocket connection.
func marshalEvent(ev Event) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		log.Printf("rpc/push: marshal event: %v", err)
		return nil, err
	}
	return b, nil
}
