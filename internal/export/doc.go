// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export turns a stored conversation into a transcript.
//
// MarkdownExporter and JSONExporter write files; Render shows the Markdown
// transcript in the terminal through glamour.
//
//	out, err := export.Render(msgs, cli.GetTerminalWidth())
package export
