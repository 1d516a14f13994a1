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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

// ErrMissingToken is returned when a request carries no bearer token.
var ErrMissingToken = errors.New("missing bearer token")

// Verifier checks HS256 bearer tokens.
type Verifier struct {
	key    []byte
	issuer string
	skew   time.Duration
}

// VerifierOption configures a [Verifier].
type VerifierOption func(*Verifier)

// WithIssuer requires the "iss" claim to equal iss.
func WithIssuer(iss string) VerifierOption {
	return func(v *Verifier) {
		v.issuer = iss
	}
}

// WithAcceptableSkew tolerates clock differences when checking exp and nbf.
func WithAcceptableSkew(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.skew = d
	}
}

// NewVerifier creates a verifier for tokens signed with secret.
func NewVerifier(secret []byte, opts ...VerifierOption) *Verifier {
	v := &Verifier{key: secret}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify parses and validates token and returns the caller named by its subject.
func (v *Verifier) Verify(token string) (User, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256(), v.key),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(v.skew),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	tok, err := jwt.Parse([]byte(token), opts...)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}

	sub, ok := tok.Subject()
	if !ok || sub == "" {
		return nil, errors.New("verify token: subject claim is required")
	}
	return AuthenticatedUser{Name: sub}, nil
}

// Issue signs a token for subject valid for ttl. A zero ttl issues a token
// without expiry.
func (v *Verifier) Issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	b := jwt.NewBuilder().Subject(subject).IssuedAt(now)
	if v.issuer != "" {
		b = b.Issuer(v.issuer)
	}
	if ttl != 0 {
		b = b.Expiration(now.Add(ttl))
	}
	tok, err := b.Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), v.key))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Middleware rejects requests without a valid bearer token with 401 and
// stores the verified [User] in the request context.
func Middleware(v *Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := v.Verify(BearerToken(r))
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized request", "path", r.URL.Path, "error", err)
				w.Header().Set("WWW-Authenticate", `Bearer realm="agentd"`)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.MarshalWrite(w, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}
