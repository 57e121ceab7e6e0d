// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// A Conversation is a sliding window: it never holds more than its limit
// (MaxMessages by default) and evicts the oldest messages first. During a turn
// the trailing assistant message is the only one that changes, growing by
// AppendToLast as fragments arrive.
//
// # Key Types
//
//   - Conversation: Bounded, ordered message list
//   - Message: Single message with role, content and timestamp
//   - Role: Message role enumeration (user, assistant, system)
//
// # Usage
//
//	conv := model.NewConversation()
//	history := conv.History(model.DefaultHistoryWindow)
//	conv.AddUserMessage("Hello!")
//	conv.AddAssistantMessage()
//	conv.AppendToLast("Hi")
//	conv.AppendToLast(" there")
package model
