// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the server configuration from AGENTD_* environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const namespace = "AGENTD"

type BaseEnv struct {
	HTTPHost  string `envconfig:"HTTP_HOST" default:""`
	HTTPPort  string `envconfig:"HTTP_PORT" default:"41241"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

type StorageEnv struct {
	// DBPath is the SQLite file tasks are persisted to. Empty disables persistence.
	DBPath string `envconfig:"DB_PATH"`
}

type AuthEnv struct {
	// AuthSecret is the HS256 secret for bearer tokens. Empty disables auth.
	AuthSecret string `envconfig:"AUTH_SECRET"`
	AuthIssuer string `envconfig:"AUTH_ISSUER"`
}

type ApprovalEnv struct {
	ApprovalTimeout            time.Duration `envconfig:"APPROVAL_TIMEOUT" default:"5m"`
	ApprovalWebhookURL         string        `envconfig:"APPROVAL_WEBHOOK_URL"`
	ApprovalCallbackURL        string        `envconfig:"APPROVAL_CALLBACK_URL"`
	ApprovalDefaultDestination string        `envconfig:"APPROVAL_DEFAULT_DESTINATION" default:"owner"`
	ApprovalConsole            bool          `envconfig:"APPROVAL_CONSOLE" default:"false"`
}

type EngineEnv struct {
	// MaxIterations caps engine rounds per run. Zero means unlimited.
	MaxIterations int    `envconfig:"MAX_ITERATIONS" default:"0"`
	Model         string `envconfig:"MODEL" default:"echo"`
	ReadOnlySkill string `envconfig:"READ_ONLY_SKILL" default:"research"`
}

type AgentEnv struct {
	AgentName string `envconfig:"AGENT_NAME" default:"agentd"`
	AgentURL  string `envconfig:"AGENT_URL"`
}

type Env struct {
	BaseEnv
	StorageEnv
	AuthEnv
	ApprovalEnv
	EngineEnv
	AgentEnv
}

// LoadEnv reads the configuration from the environment.
func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// Validate reports settings that cannot work together.
func (e *Env) Validate() error {
	switch strings.ToLower(e.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q: want text or json", e.LogFormat)
	}
	if e.MaxIterations < 0 {
		return fmt.Errorf("invalid MAX_ITERATIONS %d: must not be negative", e.MaxIterations)
	}
	if e.ApprovalTimeout <= 0 {
		return fmt.Errorf("invalid APPROVAL_TIMEOUT %s: must be positive", e.ApprovalTimeout)
	}
	return nil
}

// Addr returns the listen address.
func (e *BaseEnv) Addr() string {
	return net.JoinHostPort(e.HTTPHost, e.HTTPPort)
}

// SlogLevel parses LogLevel, falling back to info.
func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelInfo
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger builds the process logger writing to w.
func (e *BaseEnv) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: e.SlogLevel()}
	if strings.EqualFold(e.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// PublicURL returns the public URL of the agent, derived from the listen
// address when not configured.
func (e *Env) PublicURL() string {
	if e.AgentURL != "" {
		return strings.TrimRight(e.AgentURL, "/")
	}
	host := e.HTTPHost
	if host == "" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, e.HTTPPort)
}
