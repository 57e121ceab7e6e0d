// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ollama-relay/internal/model"
)

func sample() []model.Message {
	at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	return []model.Message{
		{ID: "1", Role: model.RoleUser, Content: "Hello", Timestamp: at},
		{ID: "2", Role: model.RoleAssistant, Content: "Hi **there**\n\n```go\nfmt.Println(1)\n```", Timestamp: at},
		{ID: "3", Role: model.RoleSystem, Content: "Error: request cancelled", Timestamp: at},
	}
}

func TestToMarkdown(t *testing.T) {
	want := "# Conversation\n\n" +
		"### You\n\nHello\n" +
		"\n---\n\n" +
		"### Assistant\n\nHi **there**\n\n```go\nfmt.Println(1)\n```\n" +
		"\n---\n\n" +
		"### System\n\nError: request cancelled\n"

	assert.Equal(t, want, ToMarkdown(sample()))
	assert.Empty(t, ToMarkdown(nil))
}

func TestMarkdownExporter_Timestamps(t *testing.T) {
	out, err := NewMarkdownExporter(&Options{IncludeTimestamps: true}).Export(sample()[:1])
	require.NoError(t, err)
	assert.Contains(t, string(out), "### You <sub>2025-03-01 09:30</sub>")
}

func TestMarkdownExporter_EmptyContent(t *testing.T) {
	msgs := []model.Message{{Role: model.RoleAssistant}}
	out, err := NewMarkdownExporter(nil).Export(msgs)
	require.NoError(t, err)
	assert.Contains(t, string(out), "_(no content)_")
}

func TestJSONExporter(t *testing.T) {
	out, err := NewJSONExporter().Export(sample())
	require.NoError(t, err)

	var got []model.Message
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, sample(), got)

	_, err = NewJSONExporter().Export(nil)
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantExt string
		wantErr bool
	}{
		{"markdown", ".md", false},
		{"MD", ".md", false},
		{"json", ".json", false},
		{"html", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			e, err := ForFormat(tt.format, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantExt, e.FileExtension())
		})
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteFile(sample(), NewMarkdownExporter(nil), filepath.Join(dir, "chat"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "chat.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ToMarkdown(sample()), string(data))

	path, err = WriteFile(sample(), NewJSONExporter(), filepath.Join(dir, "chat.txt"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "chat.txt"), path)

	_, err = WriteFile(nil, NewJSONExporter(), filepath.Join(dir, "empty"))
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestRenderPlain(t *testing.T) {
	out, err := RenderPlain(sample(), 60)
	require.NoError(t, err)

	for _, want := range []string{"You", "Hello", "Assistant", "there", "fmt.Println(1)", "request cancelled"} {
		assert.Contains(t, out, want)
	}

	_, err = RenderPlain(nil, 60)
	assert.ErrorIs(t, err, ErrNoMessages)
}
