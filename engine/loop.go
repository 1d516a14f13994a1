// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Loop is the reference multi-round tool-calling [Engine].
//
// Every session owns its history and usage totals; runs in different sessions
// share nothing but the provider and tool registry. Runs in the same session
// are serialized.
type Loop struct {
	provider      Provider
	tools         ToolRegistry
	model         string
	maxIterations int
	callbacks     Callbacks
	logger        *slog.Logger

	mu       sync.Mutex
	sessions map[string]*sessionState
}

var _ Engine = (*Loop)(nil)

type sessionState struct {
	mu      sync.Mutex
	history []ChatMessage
	usage   Usage
	cost    float64
}

// LoopOption configures a [Loop].
type LoopOption func(*Loop)

// WithModel sets the default model.
func WithModel(model string) LoopOption {
	return func(l *Loop) {
		l.model = model
	}
}

// WithMaxIterations caps the number of provider rounds per run. Zero means unlimited.
func WithMaxIterations(n int) LoopOption {
	return func(l *Loop) {
		l.maxIterations = n
	}
}

// WithCallbacks sets the callbacks used when a request does not override them.
func WithCallbacks(cb Callbacks) LoopOption {
	return func(l *Loop) {
		l.callbacks = cb
	}
}

// WithLogger sets the [*slog.Logger] for the [Loop].
func WithLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		l.logger = logger
	}
}

// NewLoop creates a [Loop] over provider and tools. A nil tools registry offers no tools.
func NewLoop(provider Provider, tools ToolRegistry, opts ...LoopOption) *Loop {
	if tools == nil {
		tools = NewMapRegistry()
	}
	l := &Loop{
		provider: provider,
		tools:    tools,
		logger:   slog.Default(),
		sessions: make(map[string]*sessionState),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ SessionCloser = (*Loop)(nil)

// SessionUsage returns the accumulated usage and cost of a session.
func (l *Loop) SessionUsage(sessionID string) (Usage, float64) {
	st, ok := l.lookup(sessionID)
	if !ok {
		return Usage{}, 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.usage, st.cost
}

// History returns a copy of a session's conversation history.
func (l *Loop) History(sessionID string) []ChatMessage {
	st, ok := l.lookup(sessionID)
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]ChatMessage(nil), st.history...)
}

// CloseSession implements [SessionCloser]. A run of the session still in
// progress keeps its state until it returns.
func (l *Loop) CloseSession(sessionID string) {
	l.mu.Lock()
	delete(l.sessions, sessionID)
	l.mu.Unlock()
}

// Sessions returns the number of sessions holding state.
func (l *Loop) Sessions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

func (l *Loop) lookup(id string) (*sessionState, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.sessions[id]
	return st, ok
}

func (l *Loop) session(id string) *sessionState {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.sessions[id]
	if !ok {
		st = &sessionState{}
		l.sessions[id] = st
	}
	return st
}

// Run implements [Engine].
//
// The handle is checked before every provider round; a round already in
// flight, including its tool calls, always runs to the end.
func (l *Loop) Run(ctx context.Context, req Request) (*Result, error) {
	st := l.session(req.SessionID)
	st.mu.Lock()
	defer st.mu.Unlock()

	cb := l.callbacks.Override(req.Callbacks)
	model := req.Model
	if model == "" {
		model = l.model
	}
	specs := l.offeredTools(req.ReadOnly)

	st.history = append(st.history, ChatMessage{Role: ChatRoleUser, Content: req.Text})

	var (
		usage Usage
		cost  float64
		last  *Completion
	)
	for round := 1; ; round++ {
		if req.Cancel.Canceled() {
			l.logger.InfoContext(ctx, "run canceled", "session_id", req.SessionID, "round", round)
			return nil, ErrCanceled
		}
		if l.maxIterations > 0 && round > l.maxIterations {
			l.logger.WarnContext(ctx, "iteration cap reached", "session_id", req.SessionID, "max_iterations", l.maxIterations)
			return l.result(last, usage, cost, model, StopMaxIterations), nil
		}

		comp, err := l.provider.Complete(ctx, &CompletionRequest{
			Model:    model,
			Messages: append([]ChatMessage(nil), st.history...),
			Tools:    specs,
		})
		if err != nil {
			return nil, fmt.Errorf("provider completion failed: %w", err)
		}
		last = comp
		usage = usage.Add(comp.Usage)
		cost += comp.Cost
		st.usage = st.usage.Add(comp.Usage)
		st.cost += comp.Cost

		st.history = append(st.history, ChatMessage{
			Role:      ChatRoleAssistant,
			Content:   comp.Content,
			ToolCalls: comp.ToolCalls,
		})

		if cb.Progress != nil {
			names := make([]string, len(comp.ToolCalls))
			for i, call := range comp.ToolCalls {
				names[i] = call.Name
			}
			cb.Progress.OnProgress(ctx, ProgressEvent{
				SessionID: req.SessionID,
				Round:     round,
				ToolCalls: names,
				Usage:     usage,
			})
		}

		if len(comp.ToolCalls) == 0 {
			stop := comp.StopReason
			if stop == "" {
				stop = StopEndTurn
			}
			return l.result(comp, usage, cost, model, stop), nil
		}

		for _, call := range comp.ToolCalls {
			out := l.invoke(ctx, req, cb, call)
			st.history = append(st.history, ChatMessage{
				Role:       ChatRoleTool,
				Content:    out,
				ToolCallID: call.ID,
			})
		}

		if cb.Queue != nil {
			for _, text := range cb.Queue.PendingMessages(ctx, req.SessionID) {
				st.history = append(st.history, ChatMessage{Role: ChatRoleUser, Content: text})
			}
		}
	}
}

func (l *Loop) result(last *Completion, usage Usage, cost float64, model, stop string) *Result {
	res := &Result{
		Usage:      usage,
		Cost:       cost,
		StopReason: stop,
		Model:      model,
	}
	if last != nil {
		res.Content = last.Content
		if last.Model != "" {
			res.Model = last.Model
		}
	}
	return res
}

func (l *Loop) offeredTools(readOnly bool) []ToolSpec {
	all := l.tools.Specs()
	if !readOnly {
		return all
	}
	specs := make([]ToolSpec, 0, len(all))
	for _, s := range all {
		if s.ReadOnly {
			specs = append(specs, s)
		}
	}
	return specs
}

// invoke runs one tool call and returns the text fed back to the provider.
// Refusals and tool errors are reported to the provider, never returned.
func (l *Loop) invoke(ctx context.Context, req Request, cb Callbacks, call ToolCall) string {
	tool, ok := l.tools.Lookup(call.Name)
	if !ok {
		return fmt.Sprintf("error: unknown tool %q", call.Name)
	}
	spec := tool.Spec()

	if req.ReadOnly && !spec.ReadOnly {
		return fmt.Sprintf("error: tool %q is not available in read-only mode", call.Name)
	}

	if spec.Privileged {
		if cb.Privileged == nil {
			return fmt.Sprintf("error: tool %q requires privileged access", call.Name)
		}
		ok, err := cb.Privileged.AuthorizePrivileged(ctx, PrivilegedRequest{
			SessionID: req.SessionID,
			ToolName:  call.Name,
			ToolInput: call.Input,
		})
		if err != nil || !ok {
			return fmt.Sprintf("error: privileged access to %q denied%s", call.Name, reason(err))
		}
	}

	if spec.Sensitive {
		if cb.Approval == nil {
			return fmt.Sprintf("error: tool %q requires approval and no approver is configured", call.Name)
		}
		ok, err := cb.Approval.RequestApproval(ctx, ApprovalRequest{
			SessionID: req.SessionID,
			ToolName:  call.Name,
			ToolInput: call.Input,
		})
		if err != nil || !ok {
			l.logger.InfoContext(ctx, "tool call denied", "session_id", req.SessionID, "tool", call.Name, "error", err)
			return fmt.Sprintf("error: user denied %q%s", call.Name, reason(err))
		}
	}

	out, err := tool.Call(ctx, call.Input)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return out
}

func reason(err error) string {
	if err == nil {
		return ""
	}
	return ": " + err.Error()
}
