// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-a2a/agentd/engine"
)

// notepad is the shared scratch space behind the notes tools.
type notepad struct {
	mu    sync.Mutex
	notes []string
}

func (p *notepad) read(context.Context, map[string]any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.notes) == 0 {
		return "no notes", nil
	}
	return strings.Join(p.notes, "\n"), nil
}

func (p *notepad) write(_ context.Context, input map[string]any) (string, error) {
	text, _ := input["text"].(string)
	if strings.TrimSpace(text) == "" {
		return "", errors.New("text is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = append(p.notes, text)
	return fmt.Sprintf("saved note %d", len(p.notes)), nil
}

func newToolRegistry() *engine.MapRegistry {
	pad := &notepad{}
	return engine.NewMapRegistry(
		engine.NewTool(engine.ToolSpec{
			Name:        "clock",
			Description: "Returns the current UTC time.",
			ReadOnly:    true,
		}, func(context.Context, map[string]any) (string, error) {
			return time.Now().UTC().Format(time.RFC3339), nil
		}),
		engine.NewTool(engine.ToolSpec{
			Name:        "notes_read",
			Description: "Lists the saved notes.",
			ReadOnly:    true,
		}, pad.read),
		engine.NewTool(engine.ToolSpec{
			Name:        "notes_write",
			Description: "Saves a note. Input: {\"text\": string}.",
			Sensitive:   true,
		}, pad.write),
	)
}
