// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package agent runs the per-request conversation cycle: route the
// question through the keyword matcher or the model, dispatch any tool
// invocations against the store, and format the final answer.
package agent

import "github.com/mercadolabs/storebot/services/llm"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Conversation is the append-only message history of one request.
// History is never replaced or reordered, only appended to, and the
// system instructions are always the first entry.
//
// Thread Safety: NOT safe for concurrent use. Each request owns its own
// Conversation; tool dispatch collects results before appending.
type Conversation struct {
	messages  []llm.ChatMessage
	hasSystem bool
}

// NewConversation returns an empty history.
func NewConversation() *Conversation {
	return &Conversation{}
}

// EnsureSystem prepends the system instructions exactly once. Calls after
// the first are no-ops.
func (c *Conversation) EnsureSystem(prompt string) {
	if c.hasSystem {
		return
	}
	c.messages = append([]llm.ChatMessage{{Role: RoleSystem, Content: prompt}}, c.messages...)
	c.hasSystem = true
}

// Append adds a message to the end of the history.
func (c *Conversation) Append(msg llm.ChatMessage) {
	c.messages = append(c.messages, msg)
}

// Messages returns the history in order. The slice is shared; callers
// must not modify it.
func (c *Conversation) Messages() []llm.ChatMessage {
	return c.messages
}

// Len reports the number of messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// LatestUserUtterance returns the content of the most recent user
// message, or "" when none exists.
func (c *Conversation) LatestUserUtterance() string {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == RoleUser {
			return c.messages[i].Content
		}
	}
	return ""
}

// HasRecentToolResult scans the last window entries for a tool-result
// message. The bounded window trades exhaustive correctness for cost: it
// finds same-turn results without walking unbounded history.
func (c *Conversation) HasRecentToolResult(window int) bool {
	start := len(c.messages) - window
	if start < 0 {
		start = 0
	}
	for i := len(c.messages) - 1; i >= start; i-- {
		if c.messages[i].Role == RoleTool {
			return true
		}
	}
	return false
}

// LatestToolResult returns the most recent tool-result message, or nil.
func (c *Conversation) LatestToolResult() *llm.ChatMessage {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == RoleTool {
			return &c.messages[i]
		}
	}
	return nil
}

// LastMessage returns the final history entry, or nil when empty.
func (c *Conversation) LastMessage() *llm.ChatMessage {
	if len(c.messages) == 0 {
		return nil
	}
	return &c.messages[len(c.messages)-1]
}
