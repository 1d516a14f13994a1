// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"github.com/go-a2a/agentd/a2a"
)

// NewAgentCard describes an agent served by this package. It advertises
// streaming and, when readOnlySkill is set, a skill that runs without
// write access.
func NewAgentCard(name, url, version, readOnlySkill string) *a2a.AgentCard {
	card := &a2a.AgentCard{
		Name:            name,
		Description:     "Runs natural-language tasks through a tool-calling agent with human approval of sensitive tools.",
		URL:             url,
		Version:         version,
		ProtocolVersion: a2a.ProtocolVersion,
		Capabilities: a2a.AgentCapabilities{
			Streaming: true,
		},
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
		Skills: []a2a.AgentSkill{
			{
				ID:          "general",
				Name:        "General",
				Description: "Works on the task with every available tool.",
				Tags:        []string{"agent"},
			},
		},
	}
	if readOnlySkill != "" {
		card.Skills = append(card.Skills, a2a.AgentSkill{
			ID:          readOnlySkill,
			Name:        "Research",
			Description: "Investigates and answers without modifying anything.",
			Tags:        []string{"read-only"},
			Examples:    []string{"Summarize this repo"},
		})
	}
	return card
}
