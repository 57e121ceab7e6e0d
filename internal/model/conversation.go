// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/ollama-relay/internal/ollama"
)

// MaxMessages is the default bound on conversation length.
// When exceeded, the oldest messages are dropped first.
const MaxMessages = 20

// DefaultHistoryWindow is how many prior messages accompany a new one.
const DefaultHistoryWindow = 10

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is an ordered, bounded sequence of messages.
//
// Conversation is not safe for concurrent use; callers that share one across
// goroutines must guard it.
type Conversation struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	messages []*Message
	limit    int
}

// NewConversation creates an empty conversation bounded to MaxMessages.
func NewConversation() *Conversation {
	return NewConversationWithLimit(MaxMessages)
}

// NewConversationWithLimit creates an empty conversation bounded to limit
// messages. A limit below 1 falls back to MaxMessages.
func NewConversationWithLimit(limit int) *Conversation {
	if limit < 1 {
		limit = MaxMessages
	}
	now := time.Now()
	return &Conversation{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		messages:  make([]*Message, 0, limit),
		limit:     limit,
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage appends a message and evicts from the front until the bound holds.
func (c *Conversation) AddMessage(msg *Message) {
	c.messages = append(c.messages, msg)
	c.UpdatedAt = time.Now()
	c.pruneOldMessages()
}

// AddUserMessage creates and adds a user message.
func (c *Conversation) AddUserMessage(content string) *Message {
	msg := NewUserMessage(content)
	c.AddMessage(msg)
	return msg
}

// AddAssistantMessage creates and adds an empty assistant placeholder.
func (c *Conversation) AddAssistantMessage() *Message {
	msg := NewAssistantMessage()
	c.AddMessage(msg)
	return msg
}

// AddSystemMessage creates and adds a system message.
func (c *Conversation) AddSystemMessage(content string) *Message {
	msg := NewSystemMessage(content)
	c.AddMessage(msg)
	return msg
}

// AppendToLast concatenates a fragment onto the trailing message.
// Does nothing on an empty conversation.
func (c *Conversation) AppendToLast(fragment string) {
	if len(c.messages) == 0 {
		return
	}
	c.messages[len(c.messages)-1].Content += fragment
	c.UpdatedAt = time.Now()
}

// Last returns the trailing message, or nil.
func (c *Conversation) Last() *Message {
	if len(c.messages) == 0 {
		return nil
	}
	return c.messages[len(c.messages)-1]
}

// Messages returns a copy of the messages in order.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = *m
	}
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Limit returns the bound on conversation length.
func (c *Conversation) Limit() int {
	return c.limit
}

// IsEmpty returns true if the conversation has no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.messages) == 0
}

// Clear removes every message.
func (c *Conversation) Clear() {
	c.messages = c.messages[:0]
	c.UpdatedAt = time.Now()
}

// Replace swaps in a persisted message list, keeping only the newest
// messages that fit the bound.
func (c *Conversation) Replace(msgs []Message) {
	c.messages = c.messages[:0]
	for i := range msgs {
		m := msgs[i]
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		c.messages = append(c.messages, &m)
	}
	c.pruneOldMessages()
	c.UpdatedAt = time.Now()
}

// =============================================================================
// HISTORY
// =============================================================================

// History returns up to window of the most recent messages with non-empty
// content, oldest first, in wire form. A window below 1 returns nothing.
func (c *Conversation) History(window int) []ollama.Message {
	if window < 1 {
		return nil
	}

	out := make([]ollama.Message, 0, window)
	for i := len(c.messages) - 1; i >= 0 && len(out) < window; i-- {
		msg := c.messages[i]
		if msg.Content == "" {
			continue
		}
		out = append(out, msg.ToOllama())
	}

	// Collected newest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// pruneOldMessages drops the oldest messages until the bound holds.
func (c *Conversation) pruneOldMessages() {
	excess := len(c.messages) - c.limit
	if excess <= 0 {
		return
	}
	for i := 0; i < excess; i++ {
		c.messages[i] = nil
	}
	c.messages = append(c.messages[:0], c.messages[excess:]...)
}
