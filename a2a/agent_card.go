// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"errors"
	"fmt"
)

// AgentCapabilities lists optional protocol features the agent supports.
type AgentCapabilities struct {
	Streaming              bool `json:"streaming"`
	PushNotifications      bool `json:"pushNotifications"`
	StateTransitionHistory bool `json:"stateTransitionHistory"`
}

// AgentSkill describes a unit of capability an agent can perform.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitzero"`
	Examples    []string `json:"examples,omitzero"`
}

// Validate ensures the AgentSkill is valid.
func (s AgentSkill) Validate() error {
	if s.ID == "" {
		return errors.New("agent skill ID cannot be empty")
	}
	if s.Name == "" {
		return errors.New("agent skill name cannot be empty")
	}
	return nil
}

// AgentCard is the self-description served at /.well-known/agent.json.
type AgentCard struct {
	Name               string            `json:"name"`
	Description        string            `json:"description,omitzero"`
	URL                string            `json:"url"`
	Version            string            `json:"version"`
	ProtocolVersion    string            `json:"protocolVersion"`
	Capabilities       AgentCapabilities `json:"capabilities"`
	DefaultInputModes  []string          `json:"defaultInputModes"`
	DefaultOutputModes []string          `json:"defaultOutputModes"`
	Skills             []AgentSkill      `json:"skills"`
}

// Validate ensures the AgentCard is valid.
func (c *AgentCard) Validate() error {
	if c.Name == "" {
		return errors.New("agent name cannot be empty")
	}
	if c.URL == "" {
		return errors.New("agent URL cannot be empty")
	}
	for i, s := range c.Skills {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("skill %d: %w", i, err)
		}
	}
	return nil
}
