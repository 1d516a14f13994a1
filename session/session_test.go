// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMemoryCreate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	a, err := m.Create(ctx, "first")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	b, err := m.Create(ctx, "second")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if a == b {
		t.Fatalf("Create() returned duplicate id %q", a)
	}

	got, ok := m.Get(a)
	if !ok {
		t.Fatalf("Get(%q) not found", a)
	}
	if diff := cmp.Diff("first", got.Title); diff != "" {
		t.Errorf("Title mismatch (-want +got):\n%s", diff)
	}
	if n := len(m.List()); n != 2 {
		t.Errorf("len(List()) = %d, want 2", n)
	}
}

func TestMemoryCreateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewMemory().Create(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("Create() error = %v, want context.Canceled", err)
	}
}

func TestMemoryClose(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, err := m.Create(ctx, "short lived")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Close(ctx, id); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if _, ok := m.Get(id); ok {
		t.Errorf("Get(%q) found a closed session", id)
	}
	if err := m.Close(ctx, "unknown"); err != nil {
		t.Errorf("Close() of an unknown session error: %v", err)
	}
	if n := m.Len(); n != 0 {
		t.Errorf("Len() = %d, want 0", n)
	}
}
