// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/go-a2a/agentd/a2a"
)

func kinds(events []a2a.Event) []string {
	var out []string
	for _, ev := range events {
		switch e := ev.(type) {
		case *a2a.Task:
			out = append(out, e.Kind)
		case *a2a.TaskArtifactUpdateEvent:
			out = append(out, e.Kind)
		case *a2a.TaskStatusUpdateEvent:
			out = append(out, e.Kind)
		}
	}
	return out
}

func TestEmitterOrderAndClose(t *testing.T) {
	ctx := context.Background()
	em := NewEmitter(ctx, DefaultCapacity)

	task := a2a.NewTask(a2a.NewUserTextMessage("hi"), "", "hi")
	done := task.Clone()
	done.Status = a2a.NewTaskStatus(a2a.TaskStateCompleted, "Task completed", task.ID, task.ContextID)

	evs := []a2a.Event{
		task,
		a2a.NewArtifactUpdateEvent(task, a2a.NewTextArtifact("response", "out", "")),
		a2a.NewStatusUpdateEvent(done, true),
	}
	for _, ev := range evs {
		if err := em.Emit(ev); err != nil {
			t.Fatalf("Emit() error: %v", err)
		}
	}

	if err := em.Emit(a2a.NewStatusUpdateEvent(done, true)); !errors.Is(err, ErrClosed) {
		t.Errorf("Emit() after final error = %v, want ErrClosed", err)
	}

	var got []a2a.Event
	for ev := range em.Events() {
		got = append(got, ev)
	}

	want := []string{a2a.KindTask, a2a.KindArtifactUpdate, a2a.KindStatusUpdate}
	if diff := cmp.Diff(want, kinds(got)); diff != "" {
		t.Errorf("event kinds mismatch (-want +got):\n%s", diff)
	}
	if em.Sent() != 3 {
		t.Errorf("Sent() = %d, want 3", em.Sent())
	}
}

func TestEmitterBackpressure(t *testing.T) {
	ctx := context.Background()
	em := NewEmitter(ctx, 2)
	task := a2a.NewTask(a2a.NewUserTextMessage("hi"), "", "hi")

	for i := 0; i < 2; i++ {
		if err := em.Emit(a2a.NewStatusUpdateEvent(task, false)); err != nil {
			t.Fatal(err)
		}
	}

	emitted := make(chan error, 1)
	go func() {
		emitted <- em.Emit(a2a.NewStatusUpdateEvent(task, false))
	}()

	select {
	case err := <-emitted:
		t.Fatalf("Emit() returned %v while the buffer was full", err)
	case <-time.After(50 * time.Millisecond):
	}

	<-em.Events()

	select {
	case err := <-emitted:
		if err != nil {
			t.Fatalf("Emit() error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Emit() still blocked after the consumer made room")
	}
	if got := len(em.Events()); got != 2 {
		t.Errorf("buffered events = %d, want 2 (nothing dropped)", got)
	}
}

func TestEmitterConsumerGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	em := NewEmitter(ctx, 1)
	task := a2a.NewTask(a2a.NewUserTextMessage("hi"), "", "hi")

	if err := em.Emit(task); err != nil {
		t.Fatal(err)
	}

	emitted := make(chan error, 1)
	go func() {
		emitted <- em.Emit(a2a.NewStatusUpdateEvent(task, false))
	}()
	cancel()

	select {
	case err := <-emitted:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Emit() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Emit() stayed blocked after the consumer went away")
	}

	if err := em.Emit(task); !errors.Is(err, ErrClosed) {
		t.Errorf("Emit() after abort error = %v, want ErrClosed", err)
	}
}

func TestNewEmitterDefaultCapacity(t *testing.T) {
	em := NewEmitter(context.Background(), 0)
	if got := cap(em.ch); got != DefaultCapacity {
		t.Errorf("capacity = %d, want %d", got, DefaultCapacity)
	}
}
