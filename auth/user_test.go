// Copyright 2025 The Go A2A Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestUserInterface(t *testing.T) {
	var _ User = UnauthenticatedUser{}
	var _ User = AuthenticatedUser{}
}

func TestUser(t *testing.T) {
	tests := map[string]struct {
		user     User
		wantAuth bool
		wantName string
	}{
		"unauthenticated zero value": {
			user: UnauthenticatedUser{},
		},
		"authenticated": {
			user:     AuthenticatedUser{Name: "alice"},
			wantAuth: true,
			wantName: "alice",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if diff := cmp.Diff(tt.wantAuth, tt.user.IsAuthenticated()); diff != "" {
				t.Errorf("IsAuthenticated() mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantName, tt.user.UserName()); diff != "" {
				t.Errorf("UserName() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUserFromContext(t *testing.T) {
	tests := map[string]struct {
		ctx  context.Context
		want User
	}{
		"empty context": {
			ctx:  context.Background(),
			want: UnauthenticatedUser{},
		},
		"stored user": {
			ctx:  WithUser(context.Background(), AuthenticatedUser{Name: "bob"}),
			want: AuthenticatedUser{Name: "bob"},
		},
		"nil user": {
			ctx:  WithUser(context.Background(), nil),
			want: UnauthenticatedUser{},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, UserFromContext(tt.ctx)); diff != "" {
				t.Errorf("UserFromContext() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnauthenticatedUser_ThreadSafety(t *testing.T) {
	user := UnauthenticatedUser{}
	done := make(chan bool, 100)

	for range 100 {
		go func() {
			_ = user.IsAuthenticated()
			_ = user.UserName()
			done <- true
		}()
	}
	for range 100 {
		<-done
	}

	if got := user.IsAuthenticated(); got != false {
		t.Errorf("After concurrent access, IsAuthenticated() = %v, want false", got)
	}
}

// BenchmarkUserFromContext benchmarks the context lookup done on every request.
func BenchmarkUserFromContext(b *testing.B) {
	ctx := WithUser(context.Background(), AuthenticatedUser{Name: "alice"})

	for b.Loop() {
		_ = UserFromContext(ctx).UserName()
	}
}

// ExampleUserFromContext demonstrates reading the caller inside a handler.
func ExampleUserFromContext() {
	ctx := WithUser(context.Background(), AuthenticatedUser{Name: "alice"})

	user := UserFromContext(ctx)
	if user.IsAuthenticated() {
		_ = user.UserName()
	}

	// Output:
}
