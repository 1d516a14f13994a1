// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"time"

	"github.com/google/uuid"
)

// TaskState represents the lifecycle state of a [Task].
type TaskState string

const (
	// TaskStateWorking means the task has been accepted and its background job is running.
	TaskStateWorking TaskState = "working"
	// TaskStateCompleted means the task finished successfully.
	TaskStateCompleted TaskState = "completed"
	// TaskStateFailed means the task finished with an error.
	TaskStateFailed TaskState = "failed"
	// TaskStateCanceled means the task was canceled by a client.
	TaskStateCanceled TaskState = "canceled"
)

// IsTerminal reports whether no further transition may originate from s.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled:
		return true
	default:
		return false
	}
}

// TerminalStates lists every terminal [TaskState].
var TerminalStates = []TaskState{TaskStateCompleted, TaskStateFailed, TaskStateCanceled}

// TaskStatus is the mutable status of a task.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitzero"`
	Timestamp string    `json:"timestamp,omitzero"`
}

// NewTaskStatus returns a status for state stamped with the current time.
// A non-empty text becomes an agent message bound to the given task.
func NewTaskStatus(state TaskState, text, taskID, contextID string) TaskStatus {
	st := TaskStatus{
		State:     state,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if text != "" {
		st.Message = NewAgentTextMessage(text, contextID, taskID)
	}
	return st
}

// Task is the unit of agent work tracked end to end.
type Task struct {
	ID        string         `json:"id"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	Artifacts []*Artifact    `json:"artifacts,omitzero"`
	History   []*Message     `json:"history,omitzero"`
	Metadata  map[string]any `json:"metadata,omitzero"`
	Kind      string         `json:"kind"`
}

// KindTask is the kind discriminator of a [Task].
const KindTask = "task"

func (*Task) isEvent() {}

// NewTask builds a Working task seeded with msg as its only history entry.
// An empty contextID is replaced with a generated one.
func NewTask(msg *Message, contextID, statusText string) *Task {
	if contextID == "" {
		contextID = uuid.NewString()
	}
	id := uuid.NewString()

	seed := msg.Clone()
	seed.TaskID = id
	seed.ContextID = contextID

	return &Task{
		ID:        id,
		ContextID: contextID,
		Status:    NewTaskStatus(TaskStateWorking, statusText, id, contextID),
		History:   []*Message{seed},
		Kind:      KindTask,
	}
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}

	c := &Task{
		ID:        t.ID,
		ContextID: t.ContextID,
		Status:    t.Status,
		Metadata:  cloneMap(t.Metadata),
		Kind:      t.Kind,
	}
	c.Status.Message = t.Status.Message.Clone()

	if t.Artifacts != nil {
		c.Artifacts = make([]*Artifact, len(t.Artifacts))
		for i, a := range t.Artifacts {
			c.Artifacts[i] = a.Clone()
		}
	}
	if t.History != nil {
		c.History = make([]*Message, len(t.History))
		for i, m := range t.History {
			c.History[i] = m.Clone()
		}
	}

	return c
}

// Artifact is the durable output of a completed task.
type Artifact struct {
	ArtifactID  string         `json:"artifactId"`
	Name        string         `json:"name,omitzero"`
	Description string         `json:"description,omitzero"`
	Parts       []Part         `json:"parts"`
	Metadata    map[string]any `json:"metadata,omitzero"`
}

// NewTextArtifact creates an artifact with a single text part.
func NewTextArtifact(name, text, description string) *Artifact {
	return &Artifact{
		ArtifactID:  uuid.NewString(),
		Name:        name,
		Description: description,
		Parts:       []Part{NewTextPart(text)},
	}
}

// Clone returns a deep copy of a.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	c := *a
	c.Parts = cloneParts(a.Parts)
	c.Metadata = cloneMap(a.Metadata)
	return &c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
