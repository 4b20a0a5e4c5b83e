// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package streamring

import "sync"

// Producer writes events into a shared-memory ring for exactly one
// session. Only one goroutine may call Write at a time — SPSC, matching
// the single-writer assumption of the underlying layout.
type Producer struct {
	sessionID string
	region    *region
	header    header
	slotSize  uint32
	slotCount uint32

	mu sync.Mutex
}

// NewProducer creates and initializes a new region with default sizing.
func NewProducer(sessionID string) (*Producer, error) {
	return NewProducerSize(sessionID, DefaultSlotSize, DefaultSlotCount)
}

// NewProducerSize creates a new region with explicit slot sizing.
func NewProducerSize(sessionID string, slotSize, slotCount uint32) (*Producer, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	if !isPowerOfTwo(slotCount) {
		return nil, ErrInvalidSlotCount
	}

	size := HeaderSize + int(slotSize)*int(slotCount)
	r, err := createRegion(sessionID, size)
	if err != nil {
		return nil, err
	}

	h := newHeader(r.data)
	h.init(slotSize, slotCount)

	return &Producer{sessionID: sessionID, region: r, header: h, slotSize: slotSize, slotCount: slotCount}, nil
}

// SessionID returns the session this producer writes events for.
func (p *Producer) SessionID() string { return p.sessionID }

// PendingEvents returns the number of events not yet consumed.
func (p *Producer) PendingEvents() uint64 { return p.header.availableReadSlots() }

// HasConsumer reports whether a consumer has published a read position past
// zero. A consumer publishes read_seq every publishEvery reads, on
// SkipToLatest and on Close, so fewer reads than that do not show here.
func (p *Producer) HasConsumer() bool { return p.header.readSeq() > 0 }

// WriteEvent claims the next slot and writes one event into it, returning
// the write position assigned. Oversized payloads are silently truncated
// and flagged rather than rejected, matching the producer's non-blocking
// contract; use WriteEventStrict to reject them instead.
func (p *Producer) WriteEvent(eventType EventType, sequence int64, payload []byte) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.header.isShutdown() {
		return 0, ErrShutdown
	}
	if p.header.availableWriteSlots() == 0 {
		p.header.setFlag(FlagOverflow)
		return 0, ErrBufferFull
	}

	max := maxPayloadSize(p.slotSize)
	truncated := len(payload) > max
	n := len(payload)
	if truncated {
		n = max
	}

	writeSeq := p.header.writeSeq()
	offset := p.header.slotOffset(writeSeq)

	sh := newSlotHeader(p.region.data, offset)
	sh.setLen(uint32(n))
	sh.setEventType(eventType)
	flags := SlotValid
	if truncated {
		flags |= SlotTruncated
	}
	sh.setFlags(flags)
	sh.setSequence(sequence)
	sh.setSessionID(p.sessionID)

	if n > 0 {
		copy(p.region.data[offset+SlotHeaderSize:offset+SlotHeaderSize+n], payload[:n])
	}

	p.header.incWriteSeq()
	wakeConsumer(p.header)

	return writeSeq, nil
}

// WriteEventStrict behaves like WriteEvent but rejects payloads that would
// not fit in a slot instead of truncating them.
func (p *Producer) WriteEventStrict(eventType EventType, sequence int64, payload []byte) (uint64, error) {
	if len(payload) > maxPayloadSize(p.slotSize) {
		return 0, ErrPayloadTooLarge
	}
	return p.WriteEvent(eventType, sequence, payload)
}

// Shutdown requests consumers disconnect; further writes fail.
func (p *Producer) Shutdown() {
	p.header.setFlag(FlagShutdown)
	wakeConsumer(p.header)
}

// Close shuts the region down, unmaps it, and unlinks its backing object.
func (p *Producer) Close() error {
	p.Shutdown()
	if err := p.region.close(); err != nil {
		return err
	}
	return unlinkRegion(p.sessionID)
}
