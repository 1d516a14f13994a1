// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-json-experiment/json/jsontext"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-a2a/agentd/a2a"
	"github.com/go-a2a/agentd/internal/jsonrpc2"
	"github.com/go-a2a/agentd/server/event"
)

// Result is the outcome of dispatching one request. Exactly one of Response
// and Stream is set; a stream's events are answered with ID.
type Result struct {
	ID       jsontext.Value
	Response *jsonrpc2.Response
	Stream   *event.Emitter
}

type methodFunc func(ctx context.Context, req *jsonrpc2.Request) (any, *event.Emitter, error)

// Dispatcher routes JSON-RPC requests to the [Manager] by method name.
type Dispatcher struct {
	manager *Manager
	methods map[string]methodFunc
	logger  *slog.Logger
	tracer  trace.Tracer
}

// DispatcherOption configures a [Dispatcher].
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the [*slog.Logger] for the [Dispatcher].
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithDispatcherTracer sets the [trace.Tracer] for the [Dispatcher].
func WithDispatcherTracer(tracer trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) {
		d.tracer = tracer
	}
}

// NewDispatcher creates a new [Dispatcher] serving m.
func NewDispatcher(m *Manager, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		manager: m,
		logger:  slog.Default(),
		tracer:  otel.GetTracerProvider().Tracer("github.com/go-a2a/agentd/server"),
	}
	d.methods = map[string]methodFunc{
		a2a.MethodMessageSend:   d.messageSend,
		a2a.MethodMessageStream: d.messageStream,
		a2a.MethodTasksGet:      d.tasksGet,
		a2a.MethodTasksCancel:   d.tasksCancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DispatchBytes decodes a raw request and dispatches it. Undecodable
// payloads are answered with a parse or invalid-request error.
func (d *Dispatcher) DispatchBytes(ctx context.Context, data []byte) *Result {
	req, err := jsonrpc2.DecodeRequest(data)
	if err != nil {
		d.logger.DebugContext(ctx, "rejected request", "error", err)
		return &Result{ID: req.ID, Response: jsonrpc2.NewResponse(req.ID, nil, err)}
	}
	return d.Dispatch(ctx, req)
}

// Dispatch routes req by method. Unknown methods yield MethodNotFound naming
// the method. The request id is echoed verbatim in every outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, req *jsonrpc2.Request) *Result {
	ctx, span := jsonrpc2.StartSpan(ctx, d.tracer, req)

	method, ok := d.methods[req.Method]
	if !ok {
		err := fmt.Errorf("%w: %s", jsonrpc2.ErrMethodNotFound, req.Method)
		jsonrpc2.EndSpan(span, err)
		return &Result{ID: req.ID, Response: jsonrpc2.NewResponse(req.ID, nil, err)}
	}

	result, stream, err := method(ctx, req)
	jsonrpc2.EndSpan(span, err)
	if err != nil {
		d.logger.InfoContext(ctx, "request failed", "method", req.Method, "error", err)
		return &Result{ID: req.ID, Response: jsonrpc2.NewResponse(req.ID, nil, err)}
	}
	if stream != nil {
		return &Result{ID: req.ID, Stream: stream}
	}
	return &Result{ID: req.ID, Response: jsonrpc2.NewResponse(req.ID, result, nil)}
}

func (d *Dispatcher) messageSend(ctx context.Context, req *jsonrpc2.Request) (any, *event.Emitter, error) {
	var params a2a.MessageSendParams
	if err := req.DecodeParams(&params); err != nil {
		return nil, nil, err
	}
	t, err := d.manager.SendMessage(ctx, &params)
	return t, nil, err
}

func (d *Dispatcher) messageStream(ctx context.Context, req *jsonrpc2.Request) (any, *event.Emitter, error) {
	var params a2a.MessageSendParams
	if err := req.DecodeParams(&params); err != nil {
		return nil, nil, err
	}
	em, err := d.manager.StreamMessage(ctx, &params)
	return nil, em, err
}

func (d *Dispatcher) tasksGet(ctx context.Context, req *jsonrpc2.Request) (any, *event.Emitter, error) {
	var params a2a.TaskQueryParams
	if err := req.DecodeParams(&params); err != nil {
		return nil, nil, err
	}
	if params.ID == "" {
		return nil, nil, fmt.Errorf("%w: id is required", jsonrpc2.ErrInvalidParams)
	}
	t, err := d.manager.GetTask(ctx, &params)
	return t, nil, err
}

func (d *Dispatcher) tasksCancel(ctx context.Context, req *jsonrpc2.Request) (any, *event.Emitter, error) {
	var params a2a.TaskIDParams
	if err := req.DecodeParams(&params); err != nil {
		return nil, nil, err
	}
	if params.ID == "" {
		return nil, nil, fmt.Errorf("%w: id is required", jsonrpc2.ErrInvalidParams)
	}
	t, err := d.manager.CancelTask(ctx, &params)
	return t, nil, err
}
