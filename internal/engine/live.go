// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"sync"

	"github.com/wingedpig/unbound/internal/store"
)

// liveSubscriptionCapacity bounds each subscriber's queue. Once full,
// further messages are dropped for that subscriber only and DropCount is
// incremented — the subscriber is responsible for keeping up by falling
// back to a snapshot-plus-delta poll.
const liveSubscriptionCapacity = 256

// LiveSubscription is a bounded, per-subscriber queue of messages appended
// to a session after subscription time.
type LiveSubscription struct {
	ch     chan store.Message
	drops  int64
	mu     sync.Mutex
	closed bool
}

// C returns the channel of delivered messages. It is closed when the
// subscription is closed or the session closes.
func (s *LiveSubscription) C() <-chan store.Message { return s.ch }

// Drops returns how many messages have been dropped for this subscriber
// because its queue was full.
func (s *LiveSubscription) Drops() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drops
}

func (s *LiveSubscription) deliver(msg store.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- msg:
	default:
		s.drops++
	}
}

func (s *LiveSubscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// liveHub is the per-session broadcast fan-out (C2, second half): a
// non-blocking send per subscriber so one slow reader cannot stall notify
// for the others, or the write path.
type liveHub struct {
	mu   sync.Mutex
	subs map[string]map[*LiveSubscription]struct{}
}

func newLiveHub() *liveHub {
	return &liveHub{subs: make(map[string]map[*LiveSubscription]struct{})}
}

// subscribe registers a new subscription for a session.
func (h *liveHub) subscribe(sessionID string) *LiveSubscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub := &LiveSubscription{ch: make(chan store.Message, liveSubscriptionCapacity)}
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*LiveSubscription]struct{})
	}
	h.subs[sessionID][sub] = struct{}{}
	return sub
}

// unsubscribe removes and closes a single subscription.
func (h *liveHub) unsubscribe(sessionID string, sub *LiveSubscription) {
	h.mu.Lock()
	set := h.subs[sessionID]
	if set != nil {
		delete(set, sub)
	}
	h.mu.Unlock()
	sub.close()
}

// notify delivers msg to every subscriber of a session. Called synchronously
// on commit, under the engine write mutex.
func (h *liveHub) notify(sessionID string, msg store.Message) {
	h.mu.Lock()
	set := h.subs[sessionID]
	subs := make([]*LiveSubscription, 0, len(set))
	for s := range set {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.deliver(msg)
	}
}

// closeSession terminates every subscription for a session (session closed
// or engine shutdown).
func (h *liveHub) closeSession(sessionID string) {
	h.mu.Lock()
	set := h.subs[sessionID]
	delete(h.subs, sessionID)
	h.mu.Unlock()

	for s := range set {
		s.close()
	}
}

// closeAll terminates every live subscription across every session —
// called when the engine handle is dropped.
func (h *liveHub) closeAll() {
	h.mu.Lock()
	all := h.subs
	h.subs = make(map[string]map[*LiveSubscription]struct{})
	h.mu.Unlock()

	for _, set := range all {
		for s := range set {
			s.close()
		}
	}
}
