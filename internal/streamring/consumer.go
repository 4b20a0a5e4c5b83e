// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package streamring

import (
	"context"
	"time"
)

// publishEvery controls how often the consumer publishes its local read
// cursor back to the shared read_seq: every 8 reads, trading a slightly
// more generous producer overflow window for far less cache-line
// contention on the shared counter.
const publishEvery = 8

// Event is a value-typed copy of one slot, safe to use after the region
// that produced it has moved on.
type Event struct {
	Type       EventType
	Sequence   int64
	SessionID  string
	Payload    []byte
	Truncated  bool
}

// Consumer reads events from a producer's region. Only one goroutine may
// call the read methods at a time — SPSC.
type Consumer struct {
	sessionID string
	region    *region
	header    header

	localRead  uint64
	unpub      int
	lastFutex  uint32
}

// OpenConsumer attaches to an existing region for sessionID.
func OpenConsumer(sessionID string, slotSize, slotCount uint32) (*Consumer, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	size := HeaderSize + int(slotSize)*int(slotCount)
	r, err := openRegion(sessionID, size)
	if err != nil {
		return nil, err
	}
	h := newHeader(r.data)
	if !h.valid() {
		r.close()
		return nil, ErrBadMagic
	}
	return &Consumer{sessionID: sessionID, region: r, header: h}, nil
}

// IsShutdown reports whether the producer has requested shutdown.
func (c *Consumer) IsShutdown() bool { return c.header.isShutdown() }

// TryRead returns the next event without blocking. It returns (Event{},
// false, nil) if the ring is caught up — either empty, or shut down and
// empty.
func (c *Consumer) TryRead() (Event, bool, error) {
	writeSeq := c.header.writeSeq()
	if c.localRead == writeSeq {
		return Event{}, false, nil
	}

	offset := c.header.slotOffset(c.localRead)
	sh := newSlotHeader(c.region.data, offset)

	ev := Event{
		Type:      sh.eventType(),
		Sequence:  sh.sequence(),
		SessionID: sh.sessionID(),
		Truncated: sh.isTruncated(),
	}
	ev.Payload = append([]byte(nil), sh.payload(c.region.data, offset)...)

	c.localRead++
	c.unpub++
	if c.unpub >= publishEvery {
		c.header.storeReadSeq(c.localRead)
		c.unpub = 0
	}

	return ev, true, nil
}

// Read blocks until an event is available, the context is cancelled, or
// the producer shuts down with nothing left to read. Each futex wait is
// capped at 100ms so shutdown and cancellation are noticed promptly.
func (c *Consumer) Read(ctx context.Context) (Event, error) {
	const pollCap = 100 * time.Millisecond
	for {
		ev, ok, err := c.TryRead()
		if err != nil {
			return Event{}, err
		}
		if ok {
			return ev, nil
		}
		if c.header.isShutdown() {
			return Event{}, ErrShutdown
		}
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		default:
		}
		futexWait(c.header, c.lastFutex, pollCap)
		c.lastFutex = c.header.futexValue()
	}
}

// SkipToLatest discards any unread backlog, jumping the local cursor
// straight to the current write position.
func (c *Consumer) SkipToLatest() {
	c.localRead = c.header.writeSeq()
	c.header.storeReadSeq(c.localRead)
	c.unpub = 0
}

// Close flushes the local read cursor and unmaps the region. It does not
// unlink the backing object — that is the producer's responsibility.
func (c *Consumer) Close() error {
	c.header.storeReadSeq(c.localRead)
	return c.region.close()
}
