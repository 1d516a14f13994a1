// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"strings"
)

// ChatRole is the role of a [ChatMessage].
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleTool      ChatRole = "tool"
)

// ChatMessage is one entry of a session's conversation history.
type ChatMessage struct {
	Role       ChatRole
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a tool invocation requested by the provider.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]any
}

// CompletionRequest is sent to the provider once per round.
type CompletionRequest struct {
	Model    string
	Messages []ChatMessage
	Tools    []ToolSpec
}

// Completion is the provider's answer for a round. An empty ToolCalls means a final answer.
type Completion struct {
	Content    string
	ToolCalls  []ToolCall
	Usage      Usage
	Cost       float64
	Model      string
	StopReason string
}

// Provider is the LLM client consumed by [Loop].
type Provider interface {
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)
}

// ProviderFunc adapts a function to [Provider].
type ProviderFunc func(ctx context.Context, req *CompletionRequest) (*Completion, error)

// Complete implements [Provider].
func (f ProviderFunc) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	return f(ctx, req)
}

// EchoProvider answers every round with the latest user message and never calls tools.
// Token usage is approximated by word count.
type EchoProvider struct{}

var _ Provider = EchoProvider{}

// Complete implements [Provider].
func (EchoProvider) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var in int
	var last string
	for _, m := range req.Messages {
		in += len(strings.Fields(m.Content))
		if m.Role == ChatRoleUser {
			last = m.Content
		}
	}

	model := req.Model
	if model == "" {
		model = "echo"
	}
	return &Completion{
		Content:    last,
		Usage:      Usage{InputTokens: in, OutputTokens: len(strings.Fields(last))},
		Model:      model,
		StopReason: StopEndTurn,
	}, nil
}
