// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package approval implements the human approval gate for sensitive tool calls.
//
// A [Gate] owns the pending-approval map, the timeout and the per-session
// "always approve" memo. Notification channels only render prompts and map
// their native events (button clicks, text replies) to a single
// [Gate.Resolve] call.
package approval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-json-experiment/json"
)

// DefaultTimeout is how long a prompt waits for a decision before it is denied.
const DefaultTimeout = 5 * time.Minute

// Decision is the three-way answer to a prompt.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionAlways  Decision = "always"
	DecisionDeny    Decision = "deny"
)

// Decisions lists the choices offered by every prompt, in display order.
var Decisions = []Decision{DecisionApprove, DecisionAlways, DecisionDeny}

// Resolution maps d to the arguments of [Gate.Resolve].
func (d Decision) Resolution() (approved, always bool) {
	switch d {
	case DecisionApprove:
		return true, false
	case DecisionAlways:
		return true, true
	default:
		return false, false
	}
}

// Label returns the button or menu label of d.
func (d Decision) Label() string {
	switch d {
	case DecisionApprove:
		return "Approve once"
	case DecisionAlways:
		return "Always approve this session"
	default:
		return "Deny"
	}
}

// ParseDecision parses a free-text decision such as "y", "always" or "no".
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "ok", "approve", "approved", "allow":
		return DecisionApprove, nil
	case "a", "always", "approve-always", "always-approve":
		return DecisionAlways, nil
	case "n", "no", "deny", "denied", "reject":
		return DecisionDeny, nil
	default:
		return "", fmt.Errorf("unknown decision %q", s)
	}
}

// Outcome is how a prompt ended.
type Outcome string

const (
	OutcomeApproved       Outcome = "approved"
	OutcomeApprovedAlways Outcome = "approved_always"
	OutcomeDenied         Outcome = "denied"
	OutcomeTimedOut       Outcome = "timed_out"
	OutcomeCanceled       Outcome = "canceled"
	OutcomeRemembered     Outcome = "remembered"
	OutcomeNoDestination  Outcome = "no_destination"
	OutcomeSendFailed     Outcome = "send_failed"
)

// Approved reports whether the tool call may run.
func (o Outcome) Approved() bool {
	return o == OutcomeApproved || o == OutcomeApprovedAlways || o == OutcomeRemembered
}

// Prompt is what a channel presents to the human.
type Prompt struct {
	ApprovalID string
	SessionID  string
	ToolName   string
	// ToolInput is already redacted.
	ToolInput map[string]any
	Choices   []Decision
	ExpiresAt time.Time
}

// Text renders p for text-only channels.
func (p Prompt) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Approval required [%s]\n", p.ApprovalID)
	fmt.Fprintf(&b, "Tool: %s\n", p.ToolName)
	if len(p.ToolInput) > 0 {
		input, err := json.Marshal(p.ToolInput, json.Deterministic(true))
		if err != nil {
			input = []byte(fmt.Sprint(p.ToolInput))
		}
		fmt.Fprintf(&b, "Input: %s\n", input)
	}
	choices := make([]string, len(p.Choices))
	for i, c := range p.Choices {
		choices[i] = string(c)
	}
	fmt.Fprintf(&b, "Reply: %s", strings.Join(choices, " / "))
	return b.String()
}

// MessageRef identifies a prompt message sent by a channel so it can be updated later.
type MessageRef struct {
	Destination string
	MessageID   string
}

// Channel is a notification surface able to show prompts.
type Channel interface {
	// Name identifies the channel in logs, metrics and routing.
	Name() string
	// SendPrompt shows p at destination with one native control per choice.
	SendPrompt(ctx context.Context, destination string, p Prompt) (MessageRef, error)
	// UpdateMessage replaces the prompt's controls with the final outcome.
	UpdateMessage(ctx context.Context, ref MessageRef, o Outcome) error
}
