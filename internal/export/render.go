// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/ollama-relay/internal/model"
)

// Render renders the Markdown transcript for the terminal, wrapped at width.
// The style follows the terminal background; on a pipe it is plain text.
func Render(msgs []model.Message, width int) (string, error) {
	return render(msgs, width, glamour.WithAutoStyle())
}

// RenderPlain renders the transcript without ANSI styling.
func RenderPlain(msgs []model.Message, width int) (string, error) {
	return render(msgs, width, glamour.WithStandardStyle("notty"))
}

func render(msgs []model.Message, width int, style glamour.TermRendererOption) (string, error) {
	md, err := NewMarkdownExporter(nil).Export(msgs)
	if err != nil {
		return "", err
	}
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("create markdown renderer: %w", err)
	}
	out, err := r.Render(string(md))
	if err != nil {
		return "", fmt.Errorf("render transcript: %w", err)
	}
	return out, nil
}
