// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"sort"
)

// ToolSpec describes a tool to the provider and to the loop's gating rules.
type ToolSpec struct {
	Name        string
	Description string
	// Sensitive tools run only after the approval callback allows them.
	Sensitive bool
	// ReadOnly tools are the only ones offered to read-only runs.
	ReadOnly bool
	// Privileged tools run only after the privileged-operation callback allows them.
	Privileged bool
}

// Tool is an invocable tool.
type Tool interface {
	Spec() ToolSpec
	Call(ctx context.Context, input map[string]any) (string, error)
}

// ToolRegistry resolves tools by name.
type ToolRegistry interface {
	Specs() []ToolSpec
	Lookup(name string) (Tool, bool)
}

type funcTool struct {
	spec ToolSpec
	fn   func(ctx context.Context, input map[string]any) (string, error)
}

func (t funcTool) Spec() ToolSpec { return t.spec }

func (t funcTool) Call(ctx context.Context, input map[string]any) (string, error) {
	return t.fn(ctx, input)
}

// NewTool returns a [Tool] backed by fn.
func NewTool(spec ToolSpec, fn func(ctx context.Context, input map[string]any) (string, error)) Tool {
	return funcTool{spec: spec, fn: fn}
}

// MapRegistry is a static [ToolRegistry].
type MapRegistry struct {
	tools map[string]Tool
}

var _ ToolRegistry = (*MapRegistry)(nil)

// NewMapRegistry registers tools by their spec name. Later tools replace earlier ones.
func NewMapRegistry(tools ...Tool) *MapRegistry {
	r := &MapRegistry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Spec().Name] = t
	}
	return r
}

// Specs implements [ToolRegistry]. Specs are ordered by name.
func (r *MapRegistry) Specs() []ToolSpec {
	specs := make([]ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, t.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Lookup implements [ToolRegistry].
func (r *MapRegistry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}
