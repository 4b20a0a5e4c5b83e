// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package streamring

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestSession(t *testing.T) string {
	t.Helper()
	return uuid.New().String()
}

// TestProducerConsumerRoundTrip is E3: a consumer reads every event a
// producer writes, in order, and observes shutdown once drained.
func TestProducerConsumerRoundTrip(t *testing.T) {
	sid := newTestSession(t)
	p, err := NewProducer(sid)
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	defer p.Close()

	c, err := OpenConsumer(sid, DefaultSlotSize, DefaultSlotCount)
	if err != nil {
		t.Fatalf("OpenConsumer: %v", err)
	}
	defer c.Close()

	const n = 200
	for i := 0; i < n; i++ {
		if _, err := p.WriteEvent(ClaudeEvent, int64(i), []byte("d")); err != nil {
			t.Fatalf("WriteEvent %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := 0; i < n; i++ {
		ev, err := c.Read(ctx)
		if err != nil {
			t.Fatalf("Read %d: %v", i, err)
		}
		if ev.Sequence != int64(i) {
			t.Fatalf("event %d has sequence %d, want %d", i, ev.Sequence, i)
		}
		if string(ev.Payload) != "d" {
			t.Fatalf("event %d payload = %q, want %q", i, ev.Payload, "d")
		}
	}

	p.Shutdown()
	if !c.IsShutdown() {
		t.Fatalf("consumer should observe shutdown")
	}
	if _, ok, err := c.TryRead(); err != nil || ok {
		t.Fatalf("TryRead after drain+shutdown: ok=%v err=%v, want ok=false err=nil", ok, err)
	}
}

// TestBufferFullSetsOverflow is P7 (partial coverage): a full ring fails
// the write and flags OVERFLOW rather than corrupting a slot.
func TestBufferFullSetsOverflow(t *testing.T) {
	sid := newTestSession(t)
	p, err := NewProducerSize(sid, DefaultSlotSize, 4)
	if err != nil {
		t.Fatalf("NewProducerSize: %v", err)
	}
	defer p.Close()

	for i := 0; i < 4; i++ {
		if _, err := p.WriteEvent(ClaudeEvent, int64(i), []byte("x")); err != nil {
			t.Fatalf("WriteEvent %d: %v", i, err)
		}
	}

	if _, err := p.WriteEvent(ClaudeEvent, 4, []byte("x")); err != ErrBufferFull {
		t.Fatalf("WriteEvent on full ring: got %v, want ErrBufferFull", err)
	}
	if !p.header.hasOverflow() {
		t.Fatalf("OVERFLOW flag should be set after a failed write")
	}
}

// TestTruncation is part of P7: an oversized payload is marked TRUNCATED,
// never partially written without the flag.
func TestTruncation(t *testing.T) {
	sid := newTestSession(t)
	p, err := NewProducerSize(sid, 128, 4)
	if err != nil {
		t.Fatalf("NewProducerSize: %v", err)
	}
	defer p.Close()

	big := make([]byte, 1000)
	for i := range big {
		big[i] = 'a'
	}

	if _, err := p.WriteEvent(ClaudeEvent, 0, big); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}

	c, err := OpenConsumer(sid, 128, 4)
	if err != nil {
		t.Fatalf("OpenConsumer: %v", err)
	}
	defer c.Close()

	ev, ok, err := c.TryRead()
	if err != nil || !ok {
		t.Fatalf("TryRead: ok=%v err=%v", ok, err)
	}
	if !ev.Truncated {
		t.Fatalf("oversized payload should be marked truncated")
	}
	if len(ev.Payload) != maxPayloadSize(128) {
		t.Fatalf("truncated payload length = %d, want %d", len(ev.Payload), maxPayloadSize(128))
	}

	if _, err := p.WriteEventStrict(ClaudeEvent, 1, big); err != ErrPayloadTooLarge {
		t.Fatalf("WriteEventStrict: got %v, want ErrPayloadTooLarge", err)
	}
}

func TestInvalidSessionID(t *testing.T) {
	if _, err := NewProducer("not-a-uuid"); err != ErrInvalidSessionID {
		t.Fatalf("NewProducer with bad id: got %v, want ErrInvalidSessionID", err)
	}
}

func TestSkipToLatest(t *testing.T) {
	sid := newTestSession(t)
	p, err := NewProducerSize(sid, DefaultSlotSize, 8)
	if err != nil {
		t.Fatalf("NewProducerSize: %v", err)
	}
	defer p.Close()
	c, err := OpenConsumer(sid, DefaultSlotSize, 8)
	if err != nil {
		t.Fatalf("OpenConsumer: %v", err)
	}
	defer c.Close()

	for i := 0; i < 5; i++ {
		p.WriteEvent(ClaudeEvent, int64(i), []byte("x"))
	}

	c.SkipToLatest()
	if _, ok, _ := c.TryRead(); ok {
		t.Fatalf("TryRead after SkipToLatest should find nothing pending")
	}
}
