// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package jsonrpc2 implements the JSON-RPC 2.0 envelope used by the A2A transport.
package jsonrpc2

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Version is the only JSON-RPC version accepted.
const Version = "2.0"

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

var (
	// ErrParse is returned when the payload is not valid JSON.
	ErrParse = NewError(CodeParseError, "parse error")
	// ErrInvalidRequest is returned when the payload is not a valid request object.
	ErrInvalidRequest = NewError(CodeInvalidRequest, "invalid request")
	// ErrMethodNotFound is returned for unknown methods.
	ErrMethodNotFound = NewError(CodeMethodNotFound, "method not found")
	// ErrInvalidParams is returned when params cannot be decoded or fail validation.
	ErrInvalidParams = NewError(CodeInvalidParams, "invalid params")
	// ErrInternal is returned for unexpected server failures.
	ErrInternal = NewError(CodeInternalError, "internal error")
)

// nullID is the id used when the request id is unknown.
var nullID = jsontext.Value("null")

// WireError is the error object of a response.
type WireError struct {
	Code    int64          `json:"code"`
	Message string         `json:"message"`
	Data    jsontext.Value `json:"data,omitzero"`
}

// NewError returns an error that is sent on the wire with code and message.
func NewError(code int64, message string) error {
	return &WireError{Code: code, Message: message}
}

// Error implements error.
func (e *WireError) Error() string { return e.Message }

// Is matches wire errors by code so wrapped sentinels compare equal.
func (e *WireError) Is(target error) bool {
	var t *WireError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// ToWireError converts err into its wire form. The message keeps the full
// wrapped error text; errors that carry no code become internal errors.
func ToWireError(err error) *WireError {
	if err == nil {
		return nil
	}
	var we *WireError
	if errors.As(err, &we) {
		return &WireError{Code: we.Code, Message: err.Error(), Data: we.Data}
	}
	return &WireError{Code: CodeInternalError, Message: err.Error()}
}

// Request is an incoming call. ID is kept as raw JSON and echoed verbatim.
type Request struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      jsontext.Value `json:"id,omitzero"`
	Method  string         `json:"method"`
	Params  jsontext.Value `json:"params,omitzero"`
}

// DecodeRequest parses and validates a request envelope.
// On failure the returned request still carries the id when it could be read.
func DecodeRequest(data []byte) (*Request, error) {
	if !jsontext.Value(data).IsValid() {
		return &Request{}, fmt.Errorf("%w: malformed JSON", ErrParse)
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return &req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.JSONRPC != Version {
		return &req, fmt.Errorf("%w: jsonrpc must be %q", ErrInvalidRequest, Version)
	}
	if req.Method == "" {
		return &req, fmt.Errorf("%w: method is required", ErrInvalidRequest)
	}
	return &req, nil
}

// DecodeParams unmarshals the request params into v.
func (r *Request) DecodeParams(v any) error {
	if len(r.Params) == 0 || bytes.Equal(r.Params, nullID) {
		return fmt.Errorf("%w: params are required", ErrInvalidParams)
	}
	if err := json.Unmarshal(r.Params, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

// Response is the reply to a [Request]. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      jsontext.Value `json:"id"`
	Result  any            `json:"result,omitzero"`
	Error   *WireError     `json:"error,omitzero"`
}

// NewResponse builds a response echoing id. A non-nil err wins over result.
func NewResponse(id jsontext.Value, result any, err error) *Response {
	resp := &Response{
		JSONRPC: Version,
		ID:      normalizeID(id),
	}
	if err != nil {
		resp.Error = ToWireError(err)
		return resp
	}
	resp.Result = result
	return resp
}

func normalizeID(id jsontext.Value) jsontext.Value {
	if len(bytes.TrimSpace(id)) == 0 {
		return nullID
	}
	return id
}
