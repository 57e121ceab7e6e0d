// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling for the chat client.
//
// All colors use Lip Gloss AdaptiveColor so they read on light and dark
// terminals. Status colors are always paired with an ASCII indicator
// ([OK], [X], [ ]) so state does not depend on color alone.
package styles
