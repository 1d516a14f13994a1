// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"sync"
)

// Canceler is a cooperative cancellation handle.
type Canceler interface {
	Cancel()
}

// CancelRegistry maps a task id to the cancellation handle of the background
// job that currently owns the task. Entries live only while that job runs.
type CancelRegistry struct {
	handles sync.Map // map[string]Canceler
}

// NewCancelRegistry creates a new [CancelRegistry].
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{}
}

// Register stores h under taskID, replacing any previous handle.
func (r *CancelRegistry) Register(taskID string, h Canceler) {
	r.handles.Store(taskID, h)
}

// Remove deletes the handle registered under taskID. It is a no-op when none exists.
func (r *CancelRegistry) Remove(taskID string) {
	r.handles.Delete(taskID)
}

// Signal cancels the handle registered under taskID and reports whether one existed.
// A missing handle means the job already finished or never started.
func (r *CancelRegistry) Signal(taskID string) bool {
	v, ok := r.handles.Load(taskID)
	if !ok {
		return false
	}
	v.(Canceler).Cancel()
	return true
}

// Has reports whether a handle is registered under taskID.
func (r *CancelRegistry) Has(taskID string) bool {
	_, ok := r.handles.Load(taskID)
	return ok
}

// Len returns the number of registered handles.
func (r *CancelRegistry) Len() int {
	n := 0
	r.handles.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
