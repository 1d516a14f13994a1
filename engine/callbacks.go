// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
)

// ApprovalRequest describes a sensitive tool invocation awaiting a human decision.
type ApprovalRequest struct {
	SessionID string
	ToolName  string
	ToolInput map[string]any
}

// ApprovalCallback decides whether a sensitive tool call may run.
type ApprovalCallback interface {
	RequestApproval(ctx context.Context, req ApprovalRequest) (bool, error)
}

// ApprovalFunc adapts a function to [ApprovalCallback].
type ApprovalFunc func(ctx context.Context, req ApprovalRequest) (bool, error)

// RequestApproval implements [ApprovalCallback].
func (f ApprovalFunc) RequestApproval(ctx context.Context, req ApprovalRequest) (bool, error) {
	return f(ctx, req)
}

// ProgressEvent is reported after every provider round.
type ProgressEvent struct {
	SessionID string
	Round     int
	ToolCalls []string
	Usage     Usage
}

// ProgressCallback receives intermediate engine events.
type ProgressCallback interface {
	OnProgress(ctx context.Context, ev ProgressEvent)
}

// ProgressFunc adapts a function to [ProgressCallback].
type ProgressFunc func(ctx context.Context, ev ProgressEvent)

// OnProgress implements [ProgressCallback].
func (f ProgressFunc) OnProgress(ctx context.Context, ev ProgressEvent) {
	f(ctx, ev)
}

// MessageQueue is polled between tool iterations for user input queued while the run was busy.
type MessageQueue interface {
	PendingMessages(ctx context.Context, sessionID string) []string
}

// MessageQueueFunc adapts a function to [MessageQueue].
type MessageQueueFunc func(ctx context.Context, sessionID string) []string

// PendingMessages implements [MessageQueue].
func (f MessageQueueFunc) PendingMessages(ctx context.Context, sessionID string) []string {
	return f(ctx, sessionID)
}

// PrivilegedRequest describes a privileged tool invocation.
type PrivilegedRequest struct {
	SessionID string
	ToolName  string
	ToolInput map[string]any
}

// PrivilegedOp authorizes privileged tool invocations.
type PrivilegedOp interface {
	AuthorizePrivileged(ctx context.Context, req PrivilegedRequest) (bool, error)
}

// PrivilegedOpFunc adapts a function to [PrivilegedOp].
type PrivilegedOpFunc func(ctx context.Context, req PrivilegedRequest) (bool, error)

// AuthorizePrivileged implements [PrivilegedOp].
func (f PrivilegedOpFunc) AuthorizePrivileged(ctx context.Context, req PrivilegedRequest) (bool, error) {
	return f(ctx, req)
}

// Callbacks groups the optional extension points of a run.
type Callbacks struct {
	Approval   ApprovalCallback
	Progress   ProgressCallback
	Queue      MessageQueue
	Privileged PrivilegedOp
}

// Override returns c with every non-nil field of o taking precedence.
func (c Callbacks) Override(o Callbacks) Callbacks {
	if o.Approval != nil {
		c.Approval = o.Approval
	}
	if o.Progress != nil {
		c.Progress = o.Progress
	}
	if o.Queue != nil {
		c.Queue = o.Queue
	}
	if o.Privileged != nil {
		c.Privileged = o.Privileged
	}
	return c
}
