// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package jsonrpc2

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan starts a server span for req following the OpenTelemetry RPC conventions.
func StartSpan(ctx context.Context, tracer trace.Tracer, req *Request) (context.Context, trace.Span) {
	return tracer.Start(ctx, req.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("rpc.system", "jsonrpc"),
			attribute.String("rpc.method", req.Method),
			attribute.String("rpc.jsonrpc.version", Version),
			attribute.String("rpc.jsonrpc.request_id", string(normalizeID(req.ID))),
		),
	)
}

// EndSpan records the outcome of a call on span and ends it.
func EndSpan(span trace.Span, err error) {
	if we := ToWireError(err); we != nil {
		span.SetAttributes(
			attribute.Int64("rpc.jsonrpc.error_code", we.Code),
			attribute.String("rpc.jsonrpc.error_message", we.Message),
		)
		span.SetStatus(codes.Error, we.Message)
	}
	span.End()
}
