// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

// Event is a value pushed to streaming clients: a [*Task] snapshot,
// a [*TaskStatusUpdateEvent] or a [*TaskArtifactUpdateEvent].
type Event interface {
	isEvent()
}

// Event kinds.
const (
	KindStatusUpdate   = "status-update"
	KindArtifactUpdate = "artifact-update"
)

// TaskStatusUpdateEvent reports a status change. Final marks the last event of a stream.
type TaskStatusUpdateEvent struct {
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Kind      string         `json:"kind"`
	Status    TaskStatus     `json:"status"`
	Final     bool           `json:"final"`
	Metadata  map[string]any `json:"metadata,omitzero"`
}

func (*TaskStatusUpdateEvent) isEvent() {}

// NewStatusUpdateEvent returns a status update event for t's current status.
func NewStatusUpdateEvent(t *Task, final bool) *TaskStatusUpdateEvent {
	st := t.Status
	st.Message = t.Status.Message.Clone()
	return &TaskStatusUpdateEvent{
		TaskID:    t.ID,
		ContextID: t.ContextID,
		Kind:      KindStatusUpdate,
		Status:    st,
		Final:     final,
	}
}

// TaskArtifactUpdateEvent carries an artifact produced by a task.
type TaskArtifactUpdateEvent struct {
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Kind      string         `json:"kind"`
	Artifact  *Artifact      `json:"artifact"`
	Append    bool           `json:"append"`
	LastChunk bool           `json:"lastChunk"`
	Metadata  map[string]any `json:"metadata,omitzero"`
}

func (*TaskArtifactUpdateEvent) isEvent() {}

// NewArtifactUpdateEvent returns a whole-artifact update: append is false and lastChunk is true.
func NewArtifactUpdateEvent(t *Task, a *Artifact) *TaskArtifactUpdateEvent {
	return &TaskArtifactUpdateEvent{
		TaskID:    t.ID,
		ContextID: t.ContextID,
		Kind:      KindArtifactUpdate,
		Artifact:  a.Clone(),
		Append:    false,
		LastChunk: true,
	}
}

// IsFinal reports whether ev ends a stream.
func IsFinal(ev Event) bool {
	s, ok := ev.(*TaskStatusUpdateEvent)
	return ok && s.Final
}
