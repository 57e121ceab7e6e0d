// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"testing"

	"github.com/jeranaias/ollama-relay/internal/ollama"
)

// =============================================================================
// ROLE TESTS
// =============================================================================

func TestRole_DisplayName(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleUser, "You"},
		{RoleAssistant, "Assistant"},
		{RoleSystem, "System"},
		{Role("tool"), "tool"},
	}

	for _, tc := range tests {
		if got := tc.role.DisplayName(); got != tc.want {
			t.Errorf("%s.DisplayName() = %q, want %q", tc.role, got, tc.want)
		}
	}
}

func TestRole_Valid(t *testing.T) {
	if !RoleSystem.Valid() {
		t.Error("RoleSystem.Valid() = false")
	}
	if Role("tool").Valid() {
		t.Error("Role(tool).Valid() = true")
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestConversation_AppendToLast(t *testing.T) {
	conv := NewConversation()
	conv.AppendToLast("ignored") // no-op on empty

	conv.AddUserMessage("Hello")
	placeholder := conv.AddAssistantMessage()
	if placeholder.Content != "" {
		t.Fatalf("placeholder Content = %q, want empty", placeholder.Content)
	}

	for _, f := range []string{"Hi", " ", "there"} {
		conv.AppendToLast(f)
	}

	last := conv.Last()
	if last.Role != RoleAssistant || last.Content != "Hi there" {
		t.Errorf("Last() = {%s %q}, want {assistant \"Hi there\"}", last.Role, last.Content)
	}
	if conv.Len() != 2 {
		t.Errorf("Len() = %d, want 2", conv.Len())
	}
}

func TestConversation_Bounded(t *testing.T) {
	conv := NewConversation()
	for i := 0; i < MaxMessages; i++ {
		conv.AddUserMessage(fmt.Sprintf("m%d", i))
	}
	if conv.Len() != MaxMessages {
		t.Fatalf("Len() = %d, want %d", conv.Len(), MaxMessages)
	}

	// One more exchange evicts the two oldest.
	conv.AddUserMessage("new question")
	conv.AddAssistantMessage()

	msgs := conv.Messages()
	if len(msgs) != MaxMessages {
		t.Fatalf("len = %d, want %d", len(msgs), MaxMessages)
	}
	if msgs[0].Content != "m2" {
		t.Errorf("oldest = %q, want m2", msgs[0].Content)
	}
	if msgs[len(msgs)-2].Content != "new question" {
		t.Errorf("second to last = %q, want new question", msgs[len(msgs)-2].Content)
	}
}

func TestConversation_CustomLimit(t *testing.T) {
	conv := NewConversationWithLimit(3)
	for i := 0; i < 5; i++ {
		conv.AddUserMessage(fmt.Sprintf("m%d", i))
	}
	msgs := conv.Messages()
	if len(msgs) != 3 || msgs[0].Content != "m2" {
		t.Errorf("Messages() = %v, want m2..m4", msgs)
	}

	if NewConversationWithLimit(0).Limit() != MaxMessages {
		t.Error("limit 0 should fall back to MaxMessages")
	}
}

func TestConversation_History(t *testing.T) {
	conv := NewConversation()
	conv.AddUserMessage("q1")
	conv.AddMessage(NewMessage(RoleAssistant, "")) // abandoned placeholder
	conv.AddSystemMessage("Error: boom")
	conv.AddUserMessage("q2")
	conv.AddMessage(NewMessage(RoleAssistant, "a2"))

	tests := []struct {
		name   string
		window int
		want   []ollama.Message
	}{
		{"zero window", 0, nil},
		{"last two", 2, []ollama.Message{
			{Role: "user", Content: "q2"},
			{Role: "assistant", Content: "a2"},
		}},
		{"everything non-empty", 10, []ollama.Message{
			{Role: "user", Content: "q1"},
			{Role: "system", Content: "Error: boom"},
			{Role: "user", Content: "q2"},
			{Role: "assistant", Content: "a2"},
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := conv.History(tc.window)
			if len(got) != len(tc.want) {
				t.Fatalf("History(%d) = %v, want %v", tc.window, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("History(%d)[%d] = %v, want %v", tc.window, i, got[i], tc.want[i])
				}
			}
			if len(got) > tc.window {
				t.Errorf("History(%d) returned %d entries", tc.window, len(got))
			}
		})
	}
}

func TestConversation_ReplaceAndClear(t *testing.T) {
	conv := NewConversationWithLimit(2)
	conv.Replace([]Message{
		{Role: RoleUser, Content: "a"},
		{Role: RoleAssistant, Content: "b"},
		{Role: RoleUser, Content: "c"},
	})

	msgs := conv.Messages()
	if len(msgs) != 2 || msgs[0].Content != "b" || msgs[1].Content != "c" {
		t.Fatalf("Replace kept %v, want [b c]", msgs)
	}
	if msgs[0].ID == "" {
		t.Error("Replace should assign missing IDs")
	}

	conv.Clear()
	if !conv.IsEmpty() || conv.Last() != nil {
		t.Errorf("after Clear Len() = %d, want 0", conv.Len())
	}
}

func TestConversation_MessagesIsCopy(t *testing.T) {
	conv := NewConversation()
	conv.AddUserMessage("original")

	msgs := conv.Messages()
	msgs[0].Content = "changed"

	if conv.Last().Content != "original" {
		t.Error("Messages() must not alias internal state")
	}
}
