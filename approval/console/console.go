// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package console implements a terminal approval channel. Prompts are printed
// to a writer and decisions are typed back as "<decision> [approval-id]".
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/go-a2a/agentd/approval"
)

// DefaultName is the channel name used when none is configured.
const DefaultName = "console"

// ErrAmbiguous is returned by [ParseReply] when no id is given and more than
// one prompt is pending.
var ErrAmbiguous = errors.New("several approvals pending, give the approval id")

// Resolver is the gate surface used by [Run].
type Resolver interface {
	Pending() []string
	ResolveDecision(id string, d approval.Decision) bool
}

// Channel prints prompts to a terminal.
type Channel struct {
	name  string
	color bool

	mu  sync.Mutex
	out io.Writer
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

// WithColor enables or disables ANSI colors.
func WithColor(enabled bool) Option {
	return func(c *Channel) {
		c.color = enabled
	}
}

// New creates a console channel writing to out.
func New(out io.Writer, opts ...Option) *Channel {
	c := &Channel{
		name:  DefaultName,
		color: !color.NoColor,
		out:   out,
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
	if err := ctx.Err(); err != nil {
		return approval.MessageRef{}, err
	}

	separator := strings.Repeat("=", 60)
	var b strings.Builder
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, c.colorize(separator, color.FgCyan))
	fmt.Fprintln(&b, c.colorize(fmt.Sprintf("Approval required for %s", p.ToolName), color.FgYellow, color.Bold))
	fmt.Fprintln(&b, c.colorize(separator, color.FgCyan))
	fmt.Fprintln(&b, p.Text())
	fmt.Fprintf(&b, "Type %s, %s or %s followed by %s\n",
		c.colorize("y", color.FgGreen),
		c.colorize("always", color.FgGreen),
		c.colorize("n", color.FgRed),
		p.ApprovalID,
	)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := io.WriteString(c.out, b.String()); err != nil {
		return approval.MessageRef{}, fmt.Errorf("write prompt: %w", err)
	}
	return approval.MessageRef{Destination: destination, MessageID: p.ApprovalID}, nil
}

// UpdateMessage implements [approval.Channel].
func (c *Channel) UpdateMessage(_ context.Context, ref approval.MessageRef, o approval.Outcome) error {
	attr := color.FgRed
	if o.Approved() {
		attr = color.FgGreen
	}
	line := fmt.Sprintf("Approval %s: %s\n", ref.MessageID, o)

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.out, c.colorize(line, attr))
	return err
}

func (c *Channel) colorize(text string, attrs ...color.Attribute) string {
	if !c.color {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

// ParseReply parses a typed reply such as "y 01J..." or "always". Without an
// id the single pending approval is meant.
func ParseReply(line string, pending []string) (string, approval.Decision, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", "", errors.New("empty reply")
	}
	d, err := approval.ParseDecision(fields[0])
	if err != nil {
		return "", "", err
	}
	if len(fields) > 1 {
		return fields[1], d, nil
	}

	switch len(pending) {
	case 0:
		return "", "", errors.New("no approval pending")
	case 1:
		return pending[0], d, nil
	default:
		return "", "", ErrAmbiguous
	}
}

// Run reads replies from in and resolves them on r until in is exhausted or
// ctx ends. Unusable lines are reported on errOut.
func Run(ctx context.Context, in io.Reader, errOut io.Writer, r Resolver, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return ctx.Err()
				}
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			id, d, err := ParseReply(line, r.Pending())
			if err != nil {
				fmt.Fprintf(errOut, "%v\n", err)
				continue
			}
			if !r.ResolveDecision(id, d) {
				fmt.Fprintf(errOut, "approval %s not found or already resolved\n", id)
				continue
			}
			logger.InfoContext(ctx, "approval resolved via console", "approval_id", id, "decision", d)
		}
	}
}
