// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Role identifies the sender of a [Message].
type Role string

const (
	// RoleUser is a message sent by the client.
	RoleUser Role = "user"
	// RoleAgent is a message sent by the agent.
	RoleAgent Role = "agent"
)

// KindMessage is the kind discriminator of a [Message].
const KindMessage = "message"

// Part kinds.
const (
	PartKindText = "text"
	PartKindData = "data"
	PartKindFile = "file"
)

// FileContent is a file carried inline or by reference.
type FileContent struct {
	Name     string `json:"name,omitzero"`
	MimeType string `json:"mimeType,omitzero"`
	Bytes    string `json:"bytes,omitzero"`
	URI      string `json:"uri,omitzero"`
}

// Part is one piece of message or artifact content.
//
// Only text parts are interpreted by agentd; other modalities pass through untouched.
type Part struct {
	Kind     string         `json:"kind"`
	Text     string         `json:"text,omitzero"`
	Data     map[string]any `json:"data,omitzero"`
	File     *FileContent   `json:"file,omitzero"`
	Metadata map[string]any `json:"metadata,omitzero"`
}

// IsText reports whether p is a text part. Clients may omit the kind of a
// plain text part.
func (p Part) IsText() bool {
	return p.Kind == PartKindText || (p.Kind == "" && p.Text != "")
}

// NewTextPart returns a text [Part].
func NewTextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

// Message is a single exchange between a client and the agent.
type Message struct {
	MessageID string         `json:"messageId"`
	ContextID string         `json:"contextId,omitzero"`
	TaskID    string         `json:"taskId,omitzero"`
	Role      Role           `json:"role"`
	Parts     []Part         `json:"parts"`
	Metadata  map[string]any `json:"metadata,omitzero"`
	Kind      string         `json:"kind"`
}

// NewAgentTextMessage creates an agent message holding text.
func NewAgentTextMessage(text, contextID, taskID string) *Message {
	return &Message{
		MessageID: uuid.NewString(),
		ContextID: contextID,
		TaskID:    taskID,
		Role:      RoleAgent,
		Parts:     []Part{NewTextPart(text)},
		Kind:      KindMessage,
	}
}

// NewUserTextMessage creates a user message holding text.
func NewUserTextMessage(text string) *Message {
	return &Message{
		MessageID: uuid.NewString(),
		Role:      RoleUser,
		Parts:     []Part{NewTextPart(text)},
		Kind:      KindMessage,
	}
}

// Text concatenates every text part of m with newline separators.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	return JoinText(m.Parts)
}

// Clone returns a deep copy of m.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	c.Parts = cloneParts(m.Parts)
	c.Metadata = cloneMap(m.Metadata)
	return &c
}

// JoinText concatenates the text parts with newline separators, skipping other kinds.
// A part without a kind counts as text when it carries text.
func JoinText(parts []Part) string {
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.IsText() {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// Ellipsis marks truncated previews.
const Ellipsis = "…"

// Preview returns text cut to at most n characters, never splitting a
// multi-byte character. Ellipsis is appended when anything was cut.
func Preview(text string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= n {
		return text
	}

	i, count := 0, 0
	for i = range text {
		if count == n {
			break
		}
		count++
	}
	return text[:i] + Ellipsis
}

func cloneParts(parts []Part) []Part {
	if parts == nil {
		return nil
	}
	c := make([]Part, len(parts))
	for i, p := range parts {
		c[i] = p
		c[i].Data = cloneMap(p.Data)
		c[i].Metadata = cloneMap(p.Metadata)
		if p.File != nil {
			f := *p.File
			c[i].File = &f
		}
	}
	return c
}
