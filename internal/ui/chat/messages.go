// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

// =============================================================================
// RELAY MESSAGES
// =============================================================================

// HealthMsg reports the result of the relay health check.
type HealthMsg struct {
	// Backend model the relay forwards to, empty if unknown
	Model string
	Err   error
}

// FragmentMsg signals that the conversation changed during a turn.
// The model re-reads the session instead of carrying the text.
type FragmentMsg struct{}

// TurnDoneMsg signals the end of a turn.
type TurnDoneMsg struct {
	Err error
}

// ClearedMsg reports the result of clearing the conversation.
type ClearedMsg struct {
	Err error
}
