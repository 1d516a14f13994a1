// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-a2a/agentd/a2a"
	"github.com/go-a2a/agentd/engine"
	"github.com/go-a2a/agentd/internal/jsonrpc2"
	"github.com/go-a2a/agentd/internal/metrics"
	"github.com/go-a2a/agentd/server/event"
	"github.com/go-a2a/agentd/server/task"
	"github.com/go-a2a/agentd/session"
)

const (
	// PreviewLength is the number of characters of the input shown in the
	// initial status message.
	PreviewLength = 100

	// SessionTitleLength is the number of characters of the input used as the
	// session title.
	SessionTitleLength = 50

	// DefaultReadOnlySkill is the skill hint that forces a read-only run.
	DefaultReadOnlySkill = "research"

	// ResponseArtifactName names the artifact holding the engine's answer.
	ResponseArtifactName = "response"

	completedText = "Task completed"
	canceledText  = "Task canceled"

	// stateUnknown labels a job whose outcome could not be recorded on a task
	// that no longer exists.
	stateUnknown a2a.TaskState = "unknown"
)

// SessionHook observes the sessions opened by background jobs.
//
// SessionOpened runs after the session is created and before the engine
// runs; it receives the metadata of the accepted message and an error fails
// the task. SessionClosed runs once the task reached its terminal state.
type SessionHook interface {
	SessionOpened(ctx context.Context, sessionID string, metadata map[string]any) error
	SessionClosed(ctx context.Context, sessionID string)
}

// Manager is the task lifecycle manager.
//
// Accepting a message creates a Working task and returns immediately; the
// work runs in a background job that owns every later mutation of the task
// except cancellation.
type Manager struct {
	store    *task.Store
	cancels  *task.CancelRegistry
	engine   engine.Engine
	sessions session.Service

	hooks []SessionHook

	readOnlySkill string
	logger        *slog.Logger
	tracer        trace.Tracer
	metrics       *metrics.Metrics

	jobs *conc.WaitGroup
}

// Option configures a [Manager].
type Option func(*Manager)

// WithLogger sets the [*slog.Logger] for the [Manager].
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithTracer sets the [trace.Tracer] for the [Manager].
func WithTracer(tracer trace.Tracer) Option {
	return func(m *Manager) {
		m.tracer = tracer
	}
}

// WithMetrics sets the collectors the [Manager] reports to.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithReadOnlySkill sets the skill hint that forces read-only runs.
func WithReadOnlySkill(skill string) Option {
	return func(m *Manager) {
		m.readOnlySkill = skill
	}
}

// WithSessionHooks adds hooks told about every job's session.
func WithSessionHooks(hooks ...SessionHook) Option {
	return func(m *Manager) {
		m.hooks = append(m.hooks, hooks...)
	}
}

// WithCancelRegistry sets the registry of running jobs' cancellation handles.
func WithCancelRegistry(r *task.CancelRegistry) Option {
	return func(m *Manager) {
		m.cancels = r
	}
}

// NewManager creates a new [Manager].
func NewManager(store *task.Store, eng engine.Engine, sessions session.Service, opts ...Option) *Manager {
	m := &Manager{
		store:         store,
		cancels:       task.NewCancelRegistry(),
		engine:        eng,
		sessions:      sessions,
		readOnlySkill: DefaultReadOnlySkill,
		logger:        slog.Default(),
		tracer:        otel.GetTracerProvider().Tracer("github.com/go-a2a/agentd/server"),
		jobs:          conc.NewWaitGroup(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SendMessage accepts a message and returns the new Working task without
// waiting for its execution.
func (m *Manager) SendMessage(ctx context.Context, params *a2a.MessageSendParams) (*a2a.Task, error) {
	ctx, span := m.tracer.Start(ctx, "agentd.manager.SendMessage")
	defer span.End()

	t, text, err := m.accept(ctx, params)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("a2a.task_id", t.ID))

	m.spawn(ctx, t, text, m.isReadOnly(params), nil)

	return t, nil
}

// StreamMessage accepts a message and returns an emitter carrying the task's
// events. The first event is the initial task snapshot and the last one is
// the final status update. The stream is bound to ctx: when ctx ends the job
// keeps running but stops emitting.
func (m *Manager) StreamMessage(ctx context.Context, params *a2a.MessageSendParams) (*event.Emitter, error) {
	ctx, span := m.tracer.Start(ctx, "agentd.manager.StreamMessage")
	defer span.End()

	t, text, err := m.accept(ctx, params)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("a2a.task_id", t.ID))

	em := event.NewEmitter(ctx, event.DefaultCapacity)
	m.emit(ctx, em, t)
	m.spawn(ctx, t, text, m.isReadOnly(params), em)

	return em, nil
}

// GetTask returns a snapshot of a task. A positive HistoryLength keeps only
// the most recent history entries.
func (m *Manager) GetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error) {
	_, span := m.tracer.Start(ctx, "agentd.manager.GetTask",
		trace.WithAttributes(attribute.String("a2a.task_id", params.ID)))
	defer span.End()

	t, err := m.store.Get(params.ID)
	if err != nil {
		return nil, m.protocolError(params.ID, err)
	}
	if n := params.HistoryLength; n > 0 && len(t.History) > n {
		t.History = t.History[len(t.History)-n:]
	}
	return t, nil
}

// CancelTask signals the task's running job, if any, and moves the task to
// Canceled. Canceling a task in a terminal state fails with
// [a2a.ErrUnsupportedOperation] and leaves it untouched.
//
// Cancellation is cooperative: the job may still finish its current round,
// and its result is then discarded because the task is already terminal.
func (m *Manager) CancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error) {
	ctx, span := m.tracer.Start(ctx, "agentd.manager.CancelTask",
		trace.WithAttributes(attribute.String("a2a.task_id", params.ID)))
	defer span.End()

	signaled := m.cancels.Signal(params.ID)

	current, err := m.store.Get(params.ID)
	if err != nil {
		return nil, m.protocolError(params.ID, err)
	}
	status := a2a.NewTaskStatus(a2a.TaskStateCanceled, canceledText, current.ID, current.ContextID)
	t, err := m.store.Transition(ctx, params.ID, status)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, m.protocolError(params.ID, err)
	}
	m.metrics.TaskFinished(string(a2a.TaskStateCanceled))

	m.logger.InfoContext(ctx, "task canceled",
		"task_id", t.ID,
		"context_id", t.ContextID,
		"signaled", signaled,
	)
	return t, nil
}

// Restore warm-starts the store from persistence. Restored tasks stay
// Working; their jobs are not resumed.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	return m.store.Restore(ctx)
}

// Running returns the number of background jobs holding a cancellation handle.
func (m *Manager) Running() int {
	return m.cancels.Len()
}

// Wait blocks until every background job has returned or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.jobs.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) isReadOnly(params *a2a.MessageSendParams) bool {
	return m.readOnlySkill != "" && params.Skill() == m.readOnlySkill
}

// accept validates params and stores the new task.
func (m *Manager) accept(ctx context.Context, params *a2a.MessageSendParams) (*a2a.Task, string, error) {
	if params == nil || params.Message == nil {
		return nil, "", fmt.Errorf("%w: message is required", jsonrpc2.ErrInvalidParams)
	}
	text := a2a.JoinText(params.Message.Parts)
	if strings.TrimSpace(text) == "" {
		return nil, "", fmt.Errorf("%w: message text is empty", jsonrpc2.ErrInvalidParams)
	}

	t := a2a.NewTask(params.Message, params.Message.ContextID, a2a.Preview(text, PreviewLength))
	if len(params.Metadata) > 0 {
		t.Metadata = params.Metadata
	}
	if err := m.store.Create(ctx, t); err != nil {
		return nil, "", fmt.Errorf("%w: %v", jsonrpc2.ErrInternal, err)
	}
	m.metrics.TaskCreated()

	m.logger.InfoContext(ctx, "task accepted",
		"task_id", t.ID,
		"context_id", t.ContextID,
	)
	return t.Clone(), text, nil
}

// spawn starts the background job of t. It never waits for the job.
func (m *Manager) spawn(ctx context.Context, t *a2a.Task, text string, readOnly bool, em *event.Emitter) {
	// The job outlives the request that created it.
	jobCtx := context.WithoutCancel(ctx)
	m.jobs.Go(func() {
		m.run(jobCtx, t, text, readOnly, em)
	})
}

// run is the background job of one task.
func (m *Manager) run(ctx context.Context, t *a2a.Task, text string, readOnly bool, em *event.Emitter) {
	ctx, span := m.tracer.Start(ctx, "agentd.manager.job",
		trace.WithAttributes(
			attribute.String("a2a.task_id", t.ID),
			attribute.Bool("agentd.read_only", readOnly),
		))
	defer span.End()

	if em != nil {
		defer em.Close()
	}

	start := time.Now()
	m.metrics.JobStarted()
	var final a2a.TaskState
	defer func() {
		m.metrics.JobDone(string(final), time.Since(start))
	}()

	sessionID, err := m.sessions.Create(ctx, a2a.Preview(text, SessionTitleLength))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		final = m.fail(ctx, t, fmt.Errorf("create session: %w", err), em)
		return
	}
	defer m.closeSession(ctx, sessionID)

	if err := m.openSession(ctx, sessionID, t.Metadata); err != nil {
		span.SetStatus(codes.Error, err.Error())
		final = m.fail(ctx, t, err, em)
		return
	}

	res, err := m.execute(ctx, t.ID, engine.Request{
		SessionID: sessionID,
		Text:      text,
		ReadOnly:  readOnly,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		final = m.fail(ctx, t, err, em)
		return
	}
	final = m.complete(ctx, t, res, em)
}

// execute runs the engine with a registered cancellation handle. The handle
// is removed when the engine returns, panics included.
func (m *Manager) execute(ctx context.Context, taskID string, req engine.Request) (res *engine.Result, err error) {
	h := engine.NewCancellationHandle()
	m.cancels.Register(taskID, h)
	defer m.cancels.Remove(taskID)

	// A cancel that landed before the handle was registered had nothing to signal.
	if cur, err := m.store.Get(taskID); err == nil && cur.Status.State.IsTerminal() {
		return nil, engine.ErrCanceled
	}

	req.Cancel = h
	var pc panics.Catcher
	pc.Try(func() {
		res, err = m.engine.Run(ctx, req)
	})
	if r := pc.Recovered(); r != nil {
		m.logger.ErrorContext(ctx, "engine panicked", "task_id", taskID, "panic", r.Value)
		return nil, fmt.Errorf("engine panicked: %v", r.Value)
	}
	if err == nil && res == nil {
		err = errors.New("engine returned no result")
	}
	return res, err
}

func (m *Manager) openSession(ctx context.Context, sessionID string, metadata map[string]any) error {
	for _, h := range m.hooks {
		if err := h.SessionOpened(ctx, sessionID, metadata); err != nil {
			return fmt.Errorf("open session: %w", err)
		}
	}
	return nil
}

// closeSession releases the state held for a finished job's session by the
// hooks, the engine and the session service.
func (m *Manager) closeSession(ctx context.Context, sessionID string) {
	for _, h := range m.hooks {
		h.SessionClosed(ctx, sessionID)
	}
	if c, ok := m.engine.(engine.SessionCloser); ok {
		c.CloseSession(sessionID)
	}
	if c, ok := m.sessions.(session.Closer); ok {
		if err := c.Close(ctx, sessionID); err != nil {
			m.logger.WarnContext(ctx, "failed to close session", "session_id", sessionID, "error", err)
		}
	}
}

// complete records a successful run. It returns the task's final state.
func (m *Manager) complete(ctx context.Context, t *a2a.Task, res *engine.Result, em *event.Emitter) a2a.TaskState {
	artifact := a2a.NewTextArtifact(ResponseArtifactName, res.Content, "")
	artifact.Metadata = map[string]any{
		"model":         res.Model,
		"stop_reason":   res.StopReason,
		"input_tokens":  res.Usage.InputTokens,
		"output_tokens": res.Usage.OutputTokens,
		"cost":          res.Cost,
	}

	status := a2a.NewTaskStatus(a2a.TaskStateCompleted, completedText, t.ID, t.ContextID)
	updated, err := m.store.Transition(ctx, t.ID, status, artifact)
	if err != nil {
		return m.refused(ctx, t.ID, updated, err, em)
	}
	m.metrics.TaskFinished(string(a2a.TaskStateCompleted))

	m.logger.InfoContext(ctx, "task completed",
		"task_id", t.ID,
		"context_id", t.ContextID,
		"stop_reason", res.StopReason,
		"tokens", res.Usage.Total(),
	)
	m.emit(ctx, em, a2a.NewArtifactUpdateEvent(updated, artifact))
	m.emit(ctx, em, a2a.NewStatusUpdateEvent(updated, true))

	return a2a.TaskStateCompleted
}

// fail records a failed run. It returns the task's final state.
func (m *Manager) fail(ctx context.Context, t *a2a.Task, cause error, em *event.Emitter) a2a.TaskState {
	status := a2a.NewTaskStatus(a2a.TaskStateFailed, cause.Error(), t.ID, t.ContextID)
	updated, err := m.store.Transition(ctx, t.ID, status)
	if err != nil {
		return m.refused(ctx, t.ID, updated, err, em)
	}
	m.metrics.TaskFinished(string(a2a.TaskStateFailed))

	m.logger.ErrorContext(ctx, "task failed",
		"task_id", t.ID,
		"context_id", t.ContextID,
		"error", cause,
	)
	m.emit(ctx, em, a2a.NewStatusUpdateEvent(updated, true))

	return a2a.TaskStateFailed
}

// refused handles a job outcome that could not be recorded, normally because
// the task was canceled meanwhile. The stream still ends with the task's
// current status.
func (m *Manager) refused(ctx context.Context, taskID string, current *a2a.Task, err error, em *event.Emitter) a2a.TaskState {
	var nu task.TaskNotUpdatableError
	if errors.As(err, &nu) {
		m.logger.InfoContext(ctx, "task already finished, discarding job outcome",
			"task_id", taskID,
			"state", nu.State,
		)
	} else {
		m.logger.ErrorContext(ctx, "failed to record job outcome", "task_id", taskID, "error", err)
	}
	if current == nil {
		return stateUnknown
	}
	m.emit(ctx, em, a2a.NewStatusUpdateEvent(current, true))
	return current.Status.State
}

func (m *Manager) emit(ctx context.Context, em *event.Emitter, ev a2a.Event) {
	if em == nil {
		return
	}
	if err := em.Emit(ev); err != nil {
		m.logger.DebugContext(ctx, "stream event dropped", "error", err)
	}
}

// protocolError maps store errors to protocol errors.
func (m *Manager) protocolError(taskID string, err error) error {
	var nu task.TaskNotUpdatableError
	switch {
	case errors.Is(err, task.ErrTaskNotFound):
		return fmt.Errorf("%w: %s", a2a.ErrTaskNotFound, taskID)
	case errors.As(err, &nu):
		return fmt.Errorf("%w: task %s is already %s", a2a.ErrUnsupportedOperation, taskID, nu.State)
	default:
		return fmt.Errorf("%w: %v", jsonrpc2.ErrInternal, err)
	}
}
