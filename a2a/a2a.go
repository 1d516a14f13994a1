// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package a2a defines the Agent-to-Agent protocol data model served by agentd:
// tasks, messages, artifacts, streaming events, method names and protocol errors.
package a2a

// ProtocolVersion is the A2A protocol version advertised in the agent card.
const ProtocolVersion = "0.2.5"
