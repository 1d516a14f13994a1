// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/go-a2a/agentd/a2a"
)

func openTestGateway(t *testing.T) *DatabaseGateway {
	t.Helper()

	gw, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	t.Cleanup(func() {
		if err := gw.Close(context.Background()); err != nil {
			t.Errorf("Close() error: %v", err)
		}
	})
	return gw
}

func TestDatabaseGatewayUpsert(t *testing.T) {
	ctx := context.Background()
	gw := openTestGateway(t)

	clock := time.Unix(1_700_000_000, 0)
	gw.now = func() time.Time { return clock }

	task := newTestTask("persist me")
	if err := gw.Upsert(ctx, task); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	rec, err := gw.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	want := TaskRecord{
		ID:        task.ID,
		ContextID: task.ContextID,
		State:     "working",
		CreatedAt: clock.Unix(),
		UpdatedAt: clock.Unix(),
	}
	if diff := cmp.Diff(want, *rec, cmpIgnoreData); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}

	decoded, err := rec.ToTask()
	if err != nil {
		t.Fatalf("ToTask() error: %v", err)
	}
	if diff := cmp.Diff(task, decoded); diff != "" {
		t.Errorf("decoded task mismatch (-want +got):\n%s", diff)
	}

	// A second write updates state and updated_at but keeps created_at.
	clock = clock.Add(time.Minute)
	task.Status = a2a.NewTaskStatus(a2a.TaskStateCompleted, "Task completed", task.ID, task.ContextID)
	if err := gw.Upsert(ctx, task); err != nil {
		t.Fatalf("second Upsert() error: %v", err)
	}
	rec, err = gw.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	want.State = "completed"
	want.UpdatedAt = clock.Unix()
	if diff := cmp.Diff(want, *rec, cmpIgnoreData); diff != "" {
		t.Errorf("updated record mismatch (-want +got):\n%s", diff)
	}
}

func TestDatabaseGatewayLoadActive(t *testing.T) {
	ctx := context.Background()
	gw := openTestGateway(t)

	states := []a2a.TaskState{
		a2a.TaskStateWorking,
		a2a.TaskStateCompleted,
		a2a.TaskStateFailed,
		a2a.TaskStateCanceled,
		a2a.TaskStateWorking,
	}
	wantIDs := map[string]bool{}
	for _, s := range states {
		task := newTestTask(string(s))
		task.Status.State = s
		if err := gw.Upsert(ctx, task); err != nil {
			t.Fatalf("Upsert() error: %v", err)
		}
		if !s.IsTerminal() {
			wantIDs[task.ID] = true
		}
	}

	got, err := gw.LoadActive(ctx)
	if err != nil {
		t.Fatalf("LoadActive() error: %v", err)
	}
	gotIDs := map[string]bool{}
	for _, task := range got {
		gotIDs[task.ID] = true
	}
	if diff := cmp.Diff(wantIDs, gotIDs); diff != "" {
		t.Errorf("LoadActive() ids mismatch (-want +got):\n%s", diff)
	}
}

func TestDatabaseGatewayWarmStart(t *testing.T) {
	ctx := context.Background()
	gw := openTestGateway(t)

	first := NewStore(gw)
	task := newTestTask("survive restart")
	if err := first.Create(ctx, task); err != nil {
		t.Fatal(err)
	}

	second := NewStore(gw)
	n, err := second.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if n != 1 {
		t.Fatalf("Restore() = %d, want 1", n)
	}
	got, err := second.Get(task.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Status.State != a2a.TaskStateWorking {
		t.Errorf("restored state = %q, want working", got.Status.State)
	}
}

func TestDatabaseGatewayGetNotFound(t *testing.T) {
	gw := openTestGateway(t)
	if _, err := gw.Get(context.Background(), "missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Get() error = %v, want ErrTaskNotFound", err)
	}
}

func TestNewDatabaseGatewayNilDB(t *testing.T) {
	if _, err := NewDatabaseGateway(context.Background(), DatabaseGatewayConfig{}); err == nil {
		t.Errorf("NewDatabaseGateway() error = nil, want error")
	}
}

var cmpIgnoreData = cmpopts.IgnoreFields(TaskRecord{}, "Data")
