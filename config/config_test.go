// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadEnvDefaults(t *testing.T) {
	env, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv() error: %v", err)
	}

	want := &Env{
		BaseEnv:     BaseEnv{HTTPPort: "41241", LogLevel: "info", LogFormat: "text"},
		ApprovalEnv: ApprovalEnv{ApprovalTimeout: 5 * time.Minute, ApprovalDefaultDestination: "owner"},
		EngineEnv:   EngineEnv{Model: "echo", ReadOnlySkill: "research"},
		AgentEnv:    AgentEnv{AgentName: "agentd"},
	}
	if diff := cmp.Diff(want, env); diff != "" {
		t.Errorf("LoadEnv() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AGENTD_HTTP_PORT", "9000")
	t.Setenv("AGENTD_DB_PATH", "/var/lib/agentd/tasks.db")
	t.Setenv("AGENTD_APPROVAL_TIMEOUT", "30s")
	t.Setenv("AGENTD_APPROVAL_CONSOLE", "true")
	t.Setenv("AGENTD_MAX_ITERATIONS", "12")

	env, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv() error: %v", err)
	}
	if env.Addr() != ":9000" {
		t.Errorf("Addr() = %q, want :9000", env.Addr())
	}
	if env.DBPath != "/var/lib/agentd/tasks.db" || env.ApprovalTimeout != 30*time.Second ||
		!env.ApprovalConsole || env.MaxIterations != 12 {
		t.Errorf("LoadEnv() = %+v", env)
	}
}

func TestLoadEnvInvalid(t *testing.T) {
	tests := map[string]struct {
		key, value string
	}{
		"log format":     {"AGENTD_LOG_FORMAT", "xml"},
		"max iterations": {"AGENTD_MAX_ITERATIONS", "-1"},
		"timeout":        {"AGENTD_APPROVAL_TIMEOUT", "0s"},
		"not a duration": {"AGENTD_APPROVAL_TIMEOUT", "soon"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := LoadEnv(); err == nil {
				t.Errorf("LoadEnv() with %s=%s error = nil", tt.key, tt.value)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
	}

	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			e := &BaseEnv{LogLevel: in}
			if got := e.SlogLevel(); got != want {
				t.Errorf("SlogLevel() = %v, want %v", got, want)
			}
		})
	}
}

func TestNewLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	(&BaseEnv{LogLevel: "info", LogFormat: "json"}).NewLogger(&buf).Info("hello", "task_id", "t1")
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"task_id":"t1"`) {
		t.Errorf("json logger output = %q", buf.String())
	}
}

func TestPublicURL(t *testing.T) {
	tests := map[string]struct {
		env  Env
		want string
	}{
		"configured": {
			env:  Env{AgentEnv: AgentEnv{AgentURL: "https://agent.example.com/"}},
			want: "https://agent.example.com",
		},
		"derived": {
			env:  Env{BaseEnv: BaseEnv{HTTPPort: "41241"}},
			want: "http://localhost:41241",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := tt.env.PublicURL(); got != tt.want {
				t.Errorf("PublicURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
