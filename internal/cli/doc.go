// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli holds terminal detection and the line-based chat used when the
// full-screen interface is not available.
//
// # Key Types
//
//   - REPL: liner-based chat loop with /history, /clear and /quit
//
// # Terminal Detection
//
// IsTTY, GetTerminalWidth and ColorsEnabled decide how output is drawn.
// NO_COLOR disables colors and FORCE_COLOR enables them on non-terminals.
package cli
