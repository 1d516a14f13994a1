// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

// A2A RPC method names
const (
	// MethodMessageSend is the method name for sending a message and receiving the accepted task.
	MethodMessageSend = "message/send"
	// MethodMessageStream is the method name for sending a message and subscribing to task events.
	MethodMessageStream = "message/stream"
	// MethodTasksGet is the method name for getting a task.
	MethodTasksGet = "tasks/get"
	// MethodTasksCancel is the method name for canceling a task.
	MethodTasksCancel = "tasks/cancel"
)

// MessageSendConfiguration carries optional per-request settings.
type MessageSendConfiguration struct {
	// Skill selects an agent skill. The read-only skill forces read-only tool execution.
	Skill               string   `json:"skill,omitzero"`
	AcceptedOutputModes []string `json:"acceptedOutputModes,omitzero"`
	// Blocking is accepted for compatibility only; message/send never waits for execution.
	Blocking bool `json:"blocking,omitzero"`
}

// MessageSendParams are the params of message/send and message/stream.
type MessageSendParams struct {
	Message       *Message                  `json:"message"`
	Configuration *MessageSendConfiguration `json:"configuration,omitzero"`
	Metadata      map[string]any            `json:"metadata,omitzero"`
}

// Skill returns the configured skill or "".
func (p *MessageSendParams) Skill() string {
	if p == nil || p.Configuration == nil {
		return ""
	}
	return p.Configuration.Skill
}

// TaskQueryParams are the params of tasks/get.
type TaskQueryParams struct {
	ID            string         `json:"id"`
	HistoryLength int            `json:"historyLength,omitzero"`
	Metadata      map[string]any `json:"metadata,omitzero"`
}

// TaskIDParams are the params of tasks/cancel.
type TaskIDParams struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata,omitzero"`
}
