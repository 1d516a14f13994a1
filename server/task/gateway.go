// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"

	"github.com/go-a2a/agentd/a2a"
)

// Gateway is the durable copy of task snapshots used for crash recovery.
//
// The in-memory [Store] stays authoritative while the process is alive;
// the gateway only needs to be eventually consistent with it.
type Gateway interface {
	// Upsert writes the snapshot of t, replacing any previous record for t.ID.
	Upsert(ctx context.Context, t *a2a.Task) error

	// LoadActive returns every persisted task whose state is not terminal.
	LoadActive(ctx context.Context) ([]*a2a.Task, error)

	// Close releases the resources held by the gateway.
	Close(ctx context.Context) error
}

// NopGateway discards every write and loads nothing.
type NopGateway struct{}

var _ Gateway = NopGateway{}

// Upsert implements [Gateway].
func (NopGateway) Upsert(context.Context, *a2a.Task) error { return nil }

// LoadActive implements [Gateway].
func (NopGateway) LoadActive(context.Context) ([]*a2a.Task, error) { return nil, nil }

// Close implements [Gateway].
func (NopGateway) Close(context.Context) error { return nil }
