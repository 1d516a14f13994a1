// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package approval

import (
	"strings"
)

// Placeholder replaces redacted values.
const Placeholder = "[REDACTED]"

var (
	// usage counters that contain "token" but are not secrets
	nonSensitiveKeys = map[string]struct{}{
		"tokens":            {},
		"token_count":       {},
		"max_tokens":        {},
		"input_tokens":      {},
		"output_tokens":     {},
		"total_tokens":      {},
		"prompt_tokens":     {},
		"completion_tokens": {},
	}

	sensitiveKeyFragments    = []string{"secret", "password", "passwd", "authorization", "cookie", "credential", "private_key", "api_key", "apikey"}
	sensitiveValueIndicators = []string{"bearer ", "-----begin", "access_token", "refresh_token"}
	secretTokenPrefixes      = []string{"ghp_", "github_pat_", "sk-", "xoxb-", "xoxp-", "AKIA"}
)

// IsSensitiveKey reports whether key likely names secret material.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return false
	}
	if _, ok := nonSensitiveKeys[k]; ok {
		return false
	}
	if k == "token" || strings.HasPrefix(k, "token_") || strings.HasSuffix(k, "_token") ||
		k == "key" || strings.HasSuffix(k, "_key") {
		return true
	}
	for _, f := range sensitiveKeyFragments {
		if strings.Contains(k, f) {
			return true
		}
	}
	return false
}

// LooksLikeSecret reports whether value appears to contain secret material.
func LooksLikeSecret(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return false
	}
	lower := strings.ToLower(v)
	for _, ind := range sensitiveValueIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	for _, field := range strings.Fields(v) {
		field = strings.Trim(field, `"'=:`)
		for _, p := range secretTokenPrefixes {
			if strings.HasPrefix(field, p) {
				return true
			}
		}
	}
	return len(v) >= 40 && !strings.ContainsAny(v, " \n\t/.")
}

// Redact returns a deep copy of input with sensitive keys and secret-looking
// string values replaced by [Placeholder]. Nested maps and slices are walked.
func Redact(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}
	out := make(map[string]any, len(input))
	for k, v := range input {
		if IsSensitiveKey(k) {
			out[k] = Placeholder
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch vv := v.(type) {
	case string:
		if LooksLikeSecret(vv) {
			return Placeholder
		}
		return vv
	case map[string]any:
		return Redact(vv)
	case []any:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = redactValue(e)
		}
		return out
	case []string:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = redactValue(e)
		}
		return out
	default:
		return v
	}
}
