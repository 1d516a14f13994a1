// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine defines the execution engine contract used by the task
// lifecycle manager, and a reference multi-round tool-calling [Loop].
package engine

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrCanceled is returned by [Engine.Run] when the cancellation handle was
// observed at a round boundary.
var ErrCanceled = errors.New("run canceled")

// Stop reasons reported in [Result.StopReason].
const (
	StopEndTurn       = "end_turn"
	StopMaxIterations = "max_iterations"
)

// CancellationHandle is a shared cooperative cancellation flag.
// Any holder may signal it; the engine observes it at safe points only.
// The zero value is ready to use and a nil handle is never canceled.
type CancellationHandle struct {
	flag atomic.Bool
}

// NewCancellationHandle returns a fresh, unsignaled handle.
func NewCancellationHandle() *CancellationHandle {
	return &CancellationHandle{}
}

// Cancel signals the handle.
func (h *CancellationHandle) Cancel() {
	h.flag.Store(true)
}

// Canceled reports whether the handle was signaled.
func (h *CancellationHandle) Canceled() bool {
	return h != nil && h.flag.Load()
}

// Request is the input of a single engine run.
type Request struct {
	SessionID string
	Text      string
	// Model overrides the engine's default model when non-empty.
	Model    string
	ReadOnly bool
	Cancel   *CancellationHandle
	// Callbacks override the engine's own callbacks field by field.
	Callbacks Callbacks
}

// Usage counts provider tokens.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Add returns the sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
	}
}

// Total returns input plus output tokens.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Result is the outcome of a successful run.
type Result struct {
	Content    string
	Usage      Usage
	Cost       float64
	StopReason string
	Model      string
}

// Engine turns user text into a response for a session.
type Engine interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// SessionCloser is implemented by engines that keep per-session state.
// CloseSession drops that state once no further run of the session follows.
type SessionCloser interface {
	CloseSession(sessionID string)
}

// Func adapts a function to [Engine].
type Func func(ctx context.Context, req Request) (*Result, error)

// Run implements [Engine].
func (f Func) Run(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}
