// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across ollama-relay.
//
// # Key Functions
//
//   - TruncateRunes, TruncateWidth: UTF-8 and display-width safe truncation
//   - WrapWidth: Width-aware word wrapping for terminal output
//   - NormalizeInput: NFC normalization and trimming of typed input
//   - AtomicWriteFile: Crash-safe file writing with fsync
package util
