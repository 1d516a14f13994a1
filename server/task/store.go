// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/go-a2a/agentd/a2a"
)

// Store is the authoritative in-memory map of task id to [a2a.Task].
//
// Each task lives in its own entry guarded by its own mutex, so unrelated
// tasks never contend. Every mutation goes through [Store.Update], which writes
// the resulting snapshot to the [Gateway] after releasing the entry lock, so
// reads never wait on persistence. Snapshots carry a per-entry sequence number
// and at most one write per task is in flight: a newer snapshot handed over
// while a write is stalled is written by that writer once it returns, and an
// older one is dropped. Persistence is best effort: gateway failures are
// logged and never returned.
type Store struct {
	entries sync.Map // map[string]*entry
	size    atomic.Int64
	gateway Gateway
	logger  *slog.Logger
}

type entry struct {
	mu   sync.Mutex
	task *a2a.Task
	seq  uint64

	// pmu guards the persistence handoff below; it is never held during a write.
	pmu     sync.Mutex
	queued  uint64
	pending *a2a.Task
	writing bool
}

// NewStore creates a new [Store] persisting through gw. A nil gw disables persistence.
func NewStore(gw Gateway) *Store {
	if gw == nil {
		gw = NopGateway{}
	}
	return &Store{
		gateway: gw,
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger for the store.
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	s.logger = logger
	return s
}

// Create inserts t and persists it. t is copied; later changes by the caller are not observed.
func (s *Store) Create(ctx context.Context, t *a2a.Task) error {
	e := &entry{task: t.Clone(), seq: 1}
	snapshot := t.Clone()

	if _, loaded := s.entries.LoadOrStore(t.ID, e); loaded {
		return fmt.Errorf("%w: %s", ErrTaskExists, t.ID)
	}
	s.size.Add(1)
	s.persist(ctx, e, snapshot, 1)

	return nil
}

// Get returns a snapshot of the task with the given id.
func (s *Store) Get(id string) (*a2a.Task, error) {
	e, ok := s.load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.task.Clone(), nil
}

// Update applies fn to the live task under its entry lock, persists the result
// and returns a snapshot. When fn fails nothing is persisted and its error is returned.
func (s *Store) Update(ctx context.Context, id string, fn func(t *a2a.Task) error) (*a2a.Task, error) {
	e, ok := s.load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	e.mu.Lock()
	work := e.task.Clone()
	if err := fn(work); err != nil {
		current := e.task.Clone()
		e.mu.Unlock()
		return current, err
	}
	e.task = work
	e.seq++
	seq := e.seq
	snapshot, out := work.Clone(), work.Clone()
	e.mu.Unlock()

	s.persist(ctx, e, snapshot, seq)

	return out, nil
}

// Transition moves a non-terminal task to status, appending artifacts. A task
// already in a terminal state is left untouched and [TaskNotUpdatableError] is returned.
func (s *Store) Transition(ctx context.Context, id string, status a2a.TaskStatus, artifacts ...*a2a.Artifact) (*a2a.Task, error) {
	return s.Update(ctx, id, func(t *a2a.Task) error {
		if t.Status.State.IsTerminal() {
			return NewTaskNotUpdatableError(t.ID, t.Status.State)
		}
		t.Status = status
		for _, a := range artifacts {
			t.Artifacts = append(t.Artifacts, a.Clone())
		}
		return nil
	})
}

// List returns snapshots of every task, optionally restricted to one context, ordered by id.
func (s *Store) List(contextID string) []*a2a.Task {
	var tasks []*a2a.Task
	s.entries.Range(func(_, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		if contextID == "" || e.task.ContextID == contextID {
			tasks = append(tasks, e.task.Clone())
		}
		e.mu.Unlock()
		return true
	})
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	return tasks
}

// Len returns the number of tasks held.
func (s *Store) Len() int {
	return int(s.size.Load())
}

// Restore loads every non-terminal task from the gateway into the store.
// Tasks already present are kept. It returns the number of tasks loaded.
func (s *Store) Restore(ctx context.Context) (int, error) {
	tasks, err := s.gateway.LoadActive(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, t := range tasks {
		if _, loaded := s.entries.LoadOrStore(t.ID, &entry{task: t}); loaded {
			continue
		}
		s.size.Add(1)
		n++
	}
	s.logger.InfoContext(ctx, "restored tasks", "count", n)

	return n, nil
}

func (s *Store) load(id string) (*entry, bool) {
	v, ok := s.entries.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*entry), true
}

// persist hands snapshot over for writing. The caller writes it itself unless
// another write of the same task is in flight, in which case that writer picks
// up the newest pending snapshot when it returns.
func (s *Store) persist(ctx context.Context, e *entry, snapshot *a2a.Task, seq uint64) {
	e.pmu.Lock()
	if seq <= e.queued {
		e.pmu.Unlock()
		return
	}
	e.queued = seq
	e.pending = snapshot
	if e.writing {
		e.pmu.Unlock()
		return
	}
	e.writing = true

	// The writer may outlive the request that started it.
	ctx = context.WithoutCancel(ctx)
	for e.pending != nil {
		t := e.pending
		e.pending = nil
		e.pmu.Unlock()
		s.upsert(ctx, t)
		e.pmu.Lock()
	}
	e.writing = false
	e.pmu.Unlock()
}

func (s *Store) upsert(ctx context.Context, t *a2a.Task) {
	if err := s.gateway.Upsert(ctx, t); err != nil {
		s.logger.WarnContext(ctx, "failed to persist task",
			"task_id", t.ID,
			"state", t.Status.State,
			"error", err,
		)
	}
}
