// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package markdown renders the small markdown subset chat replies use:
// fenced code blocks, bullet lists, bold, italic and inline code.
//
// Format is a pure function from text to spans and never fails; anything it
// does not recognize stays plain text. Renderer draws spans for the terminal
// with lipgloss, highlighting code blocks with chroma.
package markdown
