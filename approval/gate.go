// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package approval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/oklog/ulid/v2"

	"github.com/go-a2a/agentd/engine"
)

// DefaultMemoSize bounds the number of sessions remembered as "always approve".
const DefaultMemoSize = 1024

// Observer is notified of every prompt outcome.
type Observer func(channel string, o Outcome)

// Gate is the approval gate of one channel.
//
// Each gate owns its pending-approval map and its session memo, so an
// "always" decision given on one channel never affects another channel.
type Gate struct {
	channel     Channel
	timeout     time.Duration
	defaultDest string
	memoSize    int
	logger      *slog.Logger
	observer    Observer
	newID       func() string

	mu           sync.Mutex
	pending      map[string]chan reply
	destinations map[string]string

	memo *lru.Cache[string, time.Time]
}

var _ engine.ApprovalCallback = (*Gate)(nil)

type reply struct {
	approved bool
	always   bool
}

// Option configures a [Gate].
type Option func(*Gate)

// WithTimeout sets how long a prompt waits before it is denied.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithDefaultDestination sets the destination used for sessions without a binding.
func WithDefaultDestination(dest string) Option {
	return func(g *Gate) {
		g.defaultDest = dest
	}
}

// WithMemoSize bounds the "always approve" memo.
func WithMemoSize(n int) Option {
	return func(g *Gate) {
		if n > 0 {
			g.memoSize = n
		}
	}
}

// WithLogger sets the [*slog.Logger] for the [Gate].
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithObserver registers a function called with every outcome.
func WithObserver(o Observer) Option {
	return func(g *Gate) {
		g.observer = o
	}
}

// NewGate creates a gate presenting prompts through ch.
func NewGate(ch Channel, opts ...Option) *Gate {
	g := &Gate{
		channel:      ch,
		timeout:      DefaultTimeout,
		memoSize:     DefaultMemoSize,
		logger:       slog.Default(),
		newID:        func() string { return ulid.Make().String() },
		pending:      make(map[string]chan reply),
		destinations: make(map[string]string),
	}
	for _, opt := range opts {
		opt(g)
	}
	// lru.New only fails for a non-positive size.
	g.memo, _ = lru.New[string, time.Time](g.memoSize)

	return g
}

// Name returns the channel name.
func (g *Gate) Name() string {
	return g.channel.Name()
}

// BindSession routes prompts for sessionID to destination.
func (g *Gate) BindSession(sessionID, destination string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.destinations[sessionID] = destination
}

// ForgetSession drops the session's destination binding and "always" memo.
func (g *Gate) ForgetSession(sessionID string) {
	g.mu.Lock()
	delete(g.destinations, sessionID)
	g.mu.Unlock()
	g.memo.Remove(sessionID)
}

// Remembered reports whether sessionID has "always approve" memoized on this gate.
func (g *Gate) Remembered(sessionID string) bool {
	return g.memo.Contains(sessionID)
}

// Pending returns the ids of prompts awaiting a decision, sorted.
func (g *Gate) Pending() []string {
	g.mu.Lock()
	ids := make([]string, 0, len(g.pending))
	for id := range g.pending {
		ids = append(ids, id)
	}
	g.mu.Unlock()

	sort.Strings(ids)
	return ids
}

func (g *Gate) destination(sessionID string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if d, ok := g.destinations[sessionID]; ok && d != "" {
		return d
	}
	return g.defaultDest
}

// RequestApproval implements [engine.ApprovalCallback].
//
// It blocks until the prompt is resolved, the timeout elapses (deny) or ctx ends.
// Waits of different sessions are independent.
func (g *Gate) RequestApproval(ctx context.Context, req engine.ApprovalRequest) (bool, error) {
	if g.memo.Contains(req.SessionID) {
		g.observe(OutcomeRemembered)
		return true, nil
	}

	dest := g.destination(req.SessionID)
	if dest == "" {
		g.logger.WarnContext(ctx, "approval denied: no destination",
			"channel", g.Name(),
			"session_id", req.SessionID,
			"tool", req.ToolName,
		)
		g.observe(OutcomeNoDestination)
		return false, nil
	}

	id := g.newID()
	slot := make(chan reply, 1)
	g.mu.Lock()
	g.pending[id] = slot
	g.mu.Unlock()

	prompt := Prompt{
		ApprovalID: id,
		SessionID:  req.SessionID,
		ToolName:   req.ToolName,
		ToolInput:  Redact(req.ToolInput),
		Choices:    Decisions,
		ExpiresAt:  time.Now().Add(g.timeout),
	}
	ref, err := g.channel.SendPrompt(ctx, dest, prompt)
	if err != nil {
		g.take(id)
		g.logger.ErrorContext(ctx, "failed to send approval prompt",
			"channel", g.Name(),
			"approval_id", id,
			"session_id", req.SessionID,
			"error", err,
		)
		g.observe(OutcomeSendFailed)
		return false, fmt.Errorf("send approval prompt: %w", err)
	}
	g.logger.InfoContext(ctx, "approval requested",
		"channel", g.Name(),
		"approval_id", id,
		"session_id", req.SessionID,
		"tool", req.ToolName,
	)

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	var (
		r       reply
		outcome Outcome
		waitErr error
	)
	select {
	case r = <-slot:
	case <-timer.C:
		outcome = OutcomeTimedOut
	case <-ctx.Done():
		outcome = OutcomeCanceled
		waitErr = ctx.Err()
	}
	if outcome != "" && !g.take(id) {
		// Resolved concurrently with the timeout; the reply is already in the slot.
		r = <-slot
		outcome, waitErr = "", nil
	}

	if outcome == "" {
		switch {
		case r.approved && r.always:
			g.memo.Add(req.SessionID, time.Now())
			outcome = OutcomeApprovedAlways
		case r.approved:
			outcome = OutcomeApproved
		default:
			outcome = OutcomeDenied
		}
	}

	// The prompt is updated even when ctx is done.
	updateCtx := context.WithoutCancel(ctx)
	if err := g.channel.UpdateMessage(updateCtx, ref, outcome); err != nil {
		g.logger.WarnContext(ctx, "failed to update approval prompt",
			"channel", g.Name(),
			"approval_id", id,
			"error", err,
		)
	}
	g.logger.InfoContext(ctx, "approval resolved",
		"channel", g.Name(),
		"approval_id", id,
		"session_id", req.SessionID,
		"outcome", outcome,
	)
	g.observe(outcome)

	return outcome.Approved(), waitErr
}

// Resolve delivers a decision for approval id. It reports whether a pending
// prompt consumed it; resolving an unknown or already consumed id is a no-op.
// always is ignored unless approved is true.
func (g *Gate) Resolve(id string, approved, always bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	slot, ok := g.pending[id]
	if !ok {
		return false
	}
	delete(g.pending, id)
	slot <- reply{approved: approved, always: always && approved}

	return true
}

// ResolveDecision is [Gate.Resolve] for a parsed [Decision].
func (g *Gate) ResolveDecision(id string, d Decision) bool {
	approved, always := d.Resolution()
	return g.Resolve(id, approved, always)
}

// take removes id from the pending map and reports whether it was still there.
func (g *Gate) take(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.pending[id]
	delete(g.pending, id)
	return ok
}

func (g *Gate) observe(o Outcome) {
	if g.observer != nil {
		g.observer(g.Name(), o)
	}
}
