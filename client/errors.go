// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-a2a/agentd/internal/jsonrpc2"
)

// HTTPError is returned when the agent answers with a non-200 status.
type HTTPError struct {
	StatusCode int
}

// Error implements error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("http status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsUnauthorized reports whether err is an authentication failure.
func IsUnauthorized(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusUnauthorized
}

// Code returns the JSON-RPC error code carried by err, or 0.
func Code(err error) int64 {
	var we *jsonrpc2.WireError
	if errors.As(err, &we) {
		return we.Code
	}
	return 0
}
