// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package streamring

import "sync"

// Hub lazily creates one Producer per session and implements
// agentproc.RingWriter, so the agent/terminal bridges can mirror every
// bridged line into its session's stream ring without knowing about
// regions or slots.
type Hub struct {
	mu        sync.Mutex
	producers map[string]*Producer
	seq       map[string]int64
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{producers: make(map[string]*Producer), seq: make(map[string]int64)}
}

// WriteLine writes line as a ClaudeEvent for sessionID, creating the
// session's producer on first use.
func (h *Hub) WriteLine(sessionID string, line []byte) error {
	p, seq, err := h.producerFor(sessionID)
	if err != nil {
		return err
	}
	_, err = p.WriteEvent(ClaudeEvent, seq, line)
	return err
}

func (h *Hub) producerFor(sessionID string) (*Producer, int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.producers[sessionID]
	if !ok {
		var err error
		p, err = NewProducer(sessionID)
		if err != nil {
			return nil, 0, err
		}
		h.producers[sessionID] = p
	}
	h.seq[sessionID]++
	return p, h.seq[sessionID], nil
}

// CloseSession shuts down and releases a session's producer, if any.
func (h *Hub) CloseSession(sessionID string) error {
	h.mu.Lock()
	p, ok := h.producers[sessionID]
	if ok {
		delete(h.producers, sessionID)
		delete(h.seq, sessionID)
	}
	h.mu.Unlock()
	if !ok {
		return nil
	}
	return p.Close()
}

// CloseAll shuts down every producer the hub has created.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	producers := h.producers
	h.producers = make(map[string]*Producer)
	h.seq = make(map[string]int64)
	h.mu.Unlock()

	for _, p := range producers {
		p.Close()
	}
}
