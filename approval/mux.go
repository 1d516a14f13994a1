// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package approval

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-a2a/agentd/engine"
)

// Message metadata keys read by [Mux.SessionOpened].
const (
	// MetadataChannel names the approval channel prompts of the session go to.
	MetadataChannel = "approvalChannel"
	// MetadataDestination names the destination within that channel.
	MetadataDestination = "approvalDestination"
)

// Mux fans approval requests to one of several gates, chosen per session.
// Sessions without a route use the first gate.
type Mux struct {
	gates  []*Gate
	byName map[string]*Gate

	mu     sync.RWMutex
	routes map[string]*Gate
}

var _ engine.ApprovalCallback = (*Mux)(nil)

// NewMux creates a mux over gates. Gate names must be unique.
func NewMux(gates ...*Gate) (*Mux, error) {
	m := &Mux{
		gates:  gates,
		byName: make(map[string]*Gate, len(gates)),
		routes: make(map[string]*Gate),
	}
	for _, g := range gates {
		if _, dup := m.byName[g.Name()]; dup {
			return nil, fmt.Errorf("duplicate approval channel %q", g.Name())
		}
		m.byName[g.Name()] = g
	}
	return m, nil
}

// Gate returns the gate of the named channel.
func (m *Mux) Gate(name string) (*Gate, bool) {
	g, ok := m.byName[name]
	return g, ok
}

// Route sends future requests of sessionID to the named channel.
func (m *Mux) Route(sessionID, channel string) error {
	g, ok := m.byName[channel]
	if !ok {
		return fmt.Errorf("unknown approval channel %q", channel)
	}
	m.mu.Lock()
	m.routes[sessionID] = g
	m.mu.Unlock()
	return nil
}

// SessionOpened routes sessionID from the message metadata: MetadataChannel
// selects the gate and MetadataDestination binds the session's destination
// on it. Missing keys keep the defaults; an unknown channel is an error.
func (m *Mux) SessionOpened(ctx context.Context, sessionID string, metadata map[string]any) error {
	if channel, _ := metadata[MetadataChannel].(string); channel != "" {
		if err := m.Route(sessionID, channel); err != nil {
			return err
		}
	}
	if dest, _ := metadata[MetadataDestination].(string); dest != "" {
		if g, ok := m.route(sessionID); ok {
			g.BindSession(sessionID, dest)
		}
	}
	return nil
}

// SessionClosed drops the route of sessionID and its bindings and memos on every gate.
func (m *Mux) SessionClosed(ctx context.Context, sessionID string) {
	m.mu.Lock()
	delete(m.routes, sessionID)
	m.mu.Unlock()

	for _, g := range m.gates {
		g.ForgetSession(sessionID)
	}
}

// route returns the gate requests of sessionID go to.
func (m *Mux) route(sessionID string) (*Gate, bool) {
	m.mu.RLock()
	g, ok := m.routes[sessionID]
	m.mu.RUnlock()
	if ok {
		return g, true
	}
	if len(m.gates) == 0 {
		return nil, false
	}
	return m.gates[0], true
}

// RequestApproval implements [engine.ApprovalCallback]. With no gates every request is denied.
func (m *Mux) RequestApproval(ctx context.Context, req engine.ApprovalRequest) (bool, error) {
	g, ok := m.route(req.SessionID)
	if !ok {
		return false, nil
	}
	return g.RequestApproval(ctx, req)
}
