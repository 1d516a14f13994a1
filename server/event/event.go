// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package event provides the streaming emitter that turns task lifecycle
// milestones into an ordered, bounded event channel for push transports.
package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-a2a/agentd/a2a"
)

// DefaultCapacity is the number of events buffered before the producer blocks.
const DefaultCapacity = 32

// ErrClosed is returned by [Emitter.Emit] once the stream has ended.
var ErrClosed = errors.New("event stream closed")

// Emitter is a single-producer, single-consumer ordered event channel.
//
// Emit blocks when the buffer is full instead of dropping events. The
// channel is closed right after the final status update is delivered, so no
// event can follow it. If the consumer's context ends, blocked and later
// Emit calls return the context error.
type Emitter struct {
	ch   chan a2a.Event
	done <-chan struct{}
	ctx  context.Context

	mu     sync.Mutex
	closed bool
	sent   int
}

// NewEmitter creates an emitter bound to the consumer's ctx.
// A capacity below one falls back to [DefaultCapacity].
func NewEmitter(ctx context.Context, capacity int) *Emitter {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Emitter{
		ch:   make(chan a2a.Event, capacity),
		done: ctx.Done(),
		ctx:  ctx,
	}
}

// Events returns the receive side of the stream.
func (e *Emitter) Events() <-chan a2a.Event {
	return e.ch
}

// Emit delivers ev, blocking while the buffer is full.
func (e *Emitter) Emit(ev a2a.Event) error {
	if ev == nil {
		return fmt.Errorf("event cannot be nil")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	select {
	case e.ch <- ev:
	case <-e.done:
		e.closeLocked()
		return e.ctx.Err()
	}
	e.sent++

	if a2a.IsFinal(ev) {
		e.closeLocked()
	}

	return nil
}

// Close ends the stream without a final event. It is safe to call more than once.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeLocked()
}

// Sent returns the number of events delivered so far.
func (e *Emitter) Sent() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sent
}

func (e *Emitter) closeLocked() {
	if e.closed {
		return
	}
	e.closed = true
	close(e.ch)
}
