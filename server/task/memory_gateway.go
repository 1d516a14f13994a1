// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/go-a2a/agentd/a2a"
)

// MemoryGateway is an in-memory implementation of [Gateway].
// Snapshots are lost when the process stops; it is meant for tests and
// for running without a database while still exercising the persistence path.
// All operations are thread-safe using sync.RWMutex.
type MemoryGateway struct {
	mu     sync.RWMutex
	tasks  map[string]*a2a.Task
	writes int
	err    error
}

var _ Gateway = (*MemoryGateway)(nil)

// NewMemoryGateway creates a new MemoryGateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		tasks: make(map[string]*a2a.Task),
	}
}

// FailWith makes every subsequent call return err. A nil err restores normal behavior.
func (g *MemoryGateway) FailWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

// Upsert implements [Gateway].
func (g *MemoryGateway) Upsert(ctx context.Context, t *a2a.Task) error {
	if t == nil {
		return fmt.Errorf("task cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.err != nil {
		return NewTaskStoreError("upsert", t.ID, g.err)
	}
	// Keep a deep copy to avoid sharing with the caller
	g.tasks[t.ID] = t.Clone()
	g.writes++

	return nil
}

// LoadActive implements [Gateway].
func (g *MemoryGateway) LoadActive(ctx context.Context) ([]*a2a.Task, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.err != nil {
		return nil, NewTaskStoreError("load_active", "", g.err)
	}

	var tasks []*a2a.Task
	for _, t := range g.tasks {
		if !t.Status.State.IsTerminal() {
			tasks = append(tasks, t.Clone())
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	return tasks, nil
}

// Snapshot returns the last persisted snapshot of id.
func (g *MemoryGateway) Snapshot(id string) (*a2a.Task, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	t, ok := g.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Writes returns the number of successful upserts.
func (g *MemoryGateway) Writes() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.writes
}

// Close implements [Gateway].
func (g *MemoryGateway) Close(ctx context.Context) error {
	return nil
}
