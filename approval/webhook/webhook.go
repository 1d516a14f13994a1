// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package webhook implements a button-style approval channel. Prompts are
// posted to a webhook as JSON carrying one callback button per decision, and
// [Handler] turns a button click back into a gate resolution.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-json-experiment/json"

	"github.com/go-a2a/agentd/approval"
)

// DefaultName is the channel name used when none is configured.
const DefaultName = "webhook"

// Payload types.
const (
	TypePrompt = "approval.prompt"
	TypeUpdate = "approval.update"
)

// Button is one interactive control of a prompt.
type Button struct {
	Label    string `json:"label"`
	Decision string `json:"decision"`
	URL      string `json:"url,omitzero"`
}

// PromptPayload is posted to the webhook for every new prompt.
type PromptPayload struct {
	Type        string         `json:"type"`
	ApprovalID  string         `json:"approvalId"`
	Destination string         `json:"destination"`
	SessionID   string         `json:"sessionId"`
	Tool        string         `json:"tool"`
	Input       map[string]any `json:"input,omitzero"`
	Text        string         `json:"text"`
	Buttons     []Button       `json:"buttons"`
	ExpiresAt   time.Time      `json:"expiresAt"`
}

// UpdatePayload is posted when a prompt ends.
type UpdatePayload struct {
	Type        string `json:"type"`
	Destination string `json:"destination"`
	MessageID   string `json:"messageId"`
	Outcome     string `json:"outcome"`
	Text        string `json:"text"`
}

// promptReply is the optional body returned by the webhook for a prompt.
type promptReply struct {
	MessageID string `json:"messageId"`
}

// Channel posts approval prompts to a webhook.
type Channel struct {
	name        string
	endpoint    string
	callbackURL string
	client      *http.Client
	logger      *slog.Logger
	newBackOff  func() backoff.BackOff
}

var _ approval.Channel = (*Channel)(nil)

// Option configures a [Channel].
type Option func(*Channel)

// WithName sets the channel name.
func WithName(name string) Option {
	return func(c *Channel) {
		c.name = name
	}
}

// WithCallbackURL sets the public base URL of the resolve endpoint, for
// example "https://agent.example.com/approvals". Buttons link to <base>/<id>?decision=<d>.
func WithCallbackURL(base string) Option {
	return func(c *Channel) {
		c.callbackURL = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient sets the HTTP client used to call the webhook.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Channel) {
		c.client = client
	}
}

// WithLogger sets the [*slog.Logger] for the [Channel].
func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		c.logger = logger
	}
}

// WithBackOff sets the retry policy for webhook deliveries.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Channel) {
		c.newBackOff = fn
	}
}

// New creates a channel posting to endpoint.
func New(endpoint string, opts ...Option) *Channel {
	c := &Channel{
		name:     DefaultName,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   slog.Default(),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxElapsedTime = 5 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements [approval.Channel].
func (c *Channel) Name() string {
	return c.name
}

// SendPrompt implements [approval.Channel].
func (c *Channel) SendPrompt(ctx context.Context, destination string, p approval.Prompt) (approval.MessageRef, error) {
	payload := PromptPayload{
		Type:        TypePrompt,
		ApprovalID:  p.ApprovalID,
		Destination: destination,
		SessionID:   p.SessionID,
		Tool:        p.ToolName,
		Input:       p.ToolInput,
		Text:        p.Text(),
		Buttons:     make([]Button, len(p.Choices)),
		ExpiresAt:   p.ExpiresAt.UTC(),
	}
	for i, d := range p.Choices {
		payload.Buttons[i] = Button{
			Label:    d.Label(),
			Decision: string(d),
			URL:      c.buttonURL(p.ApprovalID, d),
		}
	}

	body, err := c.post(ctx, payload)
	if err != nil {
		return approval.MessageRef{}, err
	}

	ref := approval.MessageRef{Destination: destination, MessageID: p.ApprovalID}
	var reply promptReply
	if len(bytes.TrimSpace(body)) > 0 && json.Unmarshal(body, &reply) == nil && reply.MessageID != "" {
		ref.MessageID = reply.MessageID
	}
	return ref, nil
}

// UpdateMessage implements [approval.Channel].
func (c *Channel) UpdateMessage(ctx context.Context, ref approval.MessageRef, o approval.Outcome) error {
	_, err := c.post(ctx, UpdatePayload{
		Type:        TypeUpdate,
		Destination: ref.Destination,
		MessageID:   ref.MessageID,
		Outcome:     string(o),
		Text:        outcomeText(o),
	})
	return err
}

func (c *Channel) buttonURL(id string, d approval.Decision) string {
	if c.callbackURL == "" {
		return ""
	}
	return c.callbackURL + "/" + url.PathEscape(id) + "?decision=" + url.QueryEscape(string(d))
}

// post delivers v, retrying network errors and 5xx answers. 4xx answers are not retried.
func (c *Channel) post(ctx context.Context, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal webhook payload: %w", err)
	}

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("webhook answered %s", resp.Status)
		case resp.StatusCode >= 300:
			return backoff.Permanent(fmt.Errorf("webhook answered %s", resp.Status))
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.WarnContext(ctx, "webhook delivery failed, retrying", "channel", c.name, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(c.newBackOff(), ctx), notify); err != nil {
		return nil, fmt.Errorf("deliver to webhook: %w", err)
	}
	return body, nil
}

func outcomeText(o approval.Outcome) string {
	switch o {
	case approval.OutcomeApproved:
		return "Approved once"
	case approval.OutcomeApprovedAlways:
		return "Approved for the rest of this session"
	case approval.OutcomeTimedOut:
		return "Denied: no answer in time"
	case approval.OutcomeCanceled:
		return "Withdrawn: the task stopped waiting"
	default:
		return "Denied"
	}
}
