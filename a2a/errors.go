// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"github.com/go-a2a/agentd/internal/jsonrpc2"
)

// A2A specific errors.
var (
	// ErrTaskNotFound is returned when no task has the requested id.
	ErrTaskNotFound = jsonrpc2.NewError(-32001, "task not found")

	// ErrTaskNotCancelable is returned when a task exists but cannot be canceled.
	ErrTaskNotCancelable = jsonrpc2.NewError(-32002, "task cannot be canceled")

	// ErrUnsupportedOperation is returned for operations the agent does not allow,
	// such as canceling a task that already finished.
	ErrUnsupportedOperation = jsonrpc2.NewError(-32004, "this operation is not supported")
)
