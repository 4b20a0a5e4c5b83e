// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"log"
)

// Sink is the pluggable side-effect observer (C5). Emit must not block the
// write path for longer than an enqueue — slow consumers are responsible
// for their own buffering.
type Sink interface {
	Emit(Effect)
}

// NopSink discards every effect. Useful as a default when no sink is wired.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(Effect) {}

// RecordingSink appends every effect it sees, for tests that assert on
// commit-then-derive ordering (P1) and silent-recovery (P2).
type RecordingSink struct {
	effects []Effect
}

// Emit implements Sink.
func (r *RecordingSink) Emit(e Effect) { r.effects = append(r.effects, e) }

// Effects returns a copy of everything recorded so far.
func (r *RecordingSink) Effects() []Effect {
	out := make([]Effect, len(r.effects))
	copy(out, r.effects)
	return out
}

// FanSink composes multiple sinks. Each sub-sink is called with panic
// recovery so one failing or misbehaving sink never takes down the write
// path or the others.
type FanSink struct {
	sinks []Sink
}

// NewFanSink builds a FanSink over the given sub-sinks.
func NewFanSink(sinks ...Sink) *FanSink {
	return &FanSink{sinks: sinks}
}

// Emit implements Sink, fanning the effect out to every sub-sink.
func (f *FanSink) Emit(e Effect) {
	for _, s := range f.sinks {
		func(s Sink) {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("engine: sink panic for effect %v: %v", e.Kind, r)
				}
			}()
			s.Emit(e)
		}(s)
	}
}
