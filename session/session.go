// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package session provides the conversation session service that background
// jobs open before running the engine.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Service creates conversation sessions.
type Service interface {
	Create(ctx context.Context, title string) (string, error)
}

// Closer is implemented by services that hold session records in memory.
// Close releases the record of a session that will not be used again.
type Closer interface {
	Close(ctx context.Context, id string) error
}

// Session is a conversation session record.
type Session struct {
	ID        string
	Title     string
	CreatedAt time.Time
}

// Memory is an in-memory [Service].
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

var (
	_ Service = (*Memory)(nil)
	_ Closer  = (*Memory)(nil)
)

// NewMemory creates a new [Memory] service.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]Session),
	}
}

// Create implements [Service].
func (m *Memory) Create(ctx context.Context, title string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	s := Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	return s.ID, nil
}

// Close implements [Closer]. Closing an unknown session is a no-op.
func (m *Memory) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

// Len returns the number of open sessions.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Get returns the session with the given id.
func (m *Memory) Get(id string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns every session ordered by creation time.
func (m *Memory) List() []Session {
	m.mu.RLock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Func adapts a function to [Service].
type Func func(ctx context.Context, title string) (string, error)

// Create implements [Service].
func (f Func) Create(ctx context.Context, title string) (string, error) {
	return f(ctx, title)
}
