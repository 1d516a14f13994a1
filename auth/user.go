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

// Package auth authenticates protocol callers. A caller is a [User]; the HTTP
// transport resolves it from a bearer JWT and stores it in the request context.
package auth

import "context"

// User is the caller of a protocol request.
type User interface {
	// IsAuthenticated reports whether the caller presented valid credentials.
	IsAuthenticated() bool

	// UserName returns the caller's name, empty for unauthenticated callers.
	UserName() string
}

// UnauthenticatedUser is the caller when auth is disabled or no credentials
// were checked. The zero value is ready to use.
type UnauthenticatedUser struct{}

// IsAuthenticated always returns false.
func (UnauthenticatedUser) IsAuthenticated() bool {
	return false
}

// UserName always returns an empty string.
func (UnauthenticatedUser) UserName() string {
	return ""
}

// AuthenticatedUser is a caller whose token was verified.
type AuthenticatedUser struct {
	Name string
}

// IsAuthenticated always returns true.
func (AuthenticatedUser) IsAuthenticated() bool {
	return true
}

// UserName returns the token subject.
func (u AuthenticatedUser) UserName() string {
	return u.Name
}

type userKey struct{}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the caller stored in ctx, or [UnauthenticatedUser].
func UserFromContext(ctx context.Context) User {
	if u, ok := ctx.Value(userKey{}).(User); ok && u != nil {
		return u
	}
	return UnauthenticatedUser{}
}
