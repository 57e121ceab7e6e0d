// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_Basic(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "subdir", "test.txt")
	data := []byte("hello, world!")

	if err := AtomicWriteFile(path, data, 0644); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != string(data) {
		t.Errorf("Content mismatch: got %q, want %q", string(content), string(data))
	}
}

func TestAtomicWriteFile_OverwritesWithoutTempLeftovers(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "test.txt")

	for _, s := range []string{"first", "second"} {
		if err := AtomicWriteFile(path, []byte(s), 0600); err != nil {
			t.Fatalf("AtomicWriteFile(%q) failed: %v", s, err)
		}
	}

	content, _ := os.ReadFile(path)
	if string(content) != "second" {
		t.Errorf("Content = %q, want second", content)
	}

	entries, _ := os.ReadDir(tempDir)
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1 (temp file leaked)", len(entries))
	}
}

// =============================================================================
// STRING TESTS
// =============================================================================

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		input string
		max   int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"hello", 2, "he"},
		{"hello", 0, ""},
		{"こんにちは世界", 6, "こんに..."},
	}

	for _, tc := range tests {
		if got := TruncateRunes(tc.input, tc.max); got != tc.want {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tc.input, tc.max, got, tc.want)
		}
	}
}

func TestTruncateWidth(t *testing.T) {
	tests := []struct {
		input string
		max   int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"日本語テキスト", 7, "日本..."},
		{"abc", 0, ""},
	}

	for _, tc := range tests {
		got := TruncateWidth(tc.input, tc.max)
		if got != tc.want {
			t.Errorf("TruncateWidth(%q, %d) = %q, want %q", tc.input, tc.max, got, tc.want)
		}
		if StringWidth(got) > tc.max {
			t.Errorf("TruncateWidth(%q, %d) width = %d", tc.input, tc.max, StringWidth(got))
		}
	}
}

func TestWrapWidth(t *testing.T) {
	got := WrapWidth("the quick brown fox jumps", 10)
	for _, line := range strings.Split(got, "\n") {
		if StringWidth(line) > 10 {
			t.Errorf("line %q exceeds width 10", line)
		}
	}
	if strings.ReplaceAll(got, "\n", " ") != "the quick brown fox jumps" {
		t.Errorf("WrapWidth lost words: %q", got)
	}

	long := WrapWidth("abcdefghijklmnop", 5)
	if long != "abcde\nfghij\nklmno\np" {
		t.Errorf("WrapWidth long word = %q", long)
	}

	if WrapWidth("keep\nlines", 80) != "keep\nlines" {
		t.Error("WrapWidth should keep existing newlines")
	}

	// A double-width rune wider than the line must not loop forever.
	if WrapWidth("日本", 1) == "" {
		t.Error("WrapWidth returned empty output")
	}
}

func TestNormalizeInput(t *testing.T) {
	decomposed := "cafe\u0301"
	composed := "caf\u00e9"

	if got := NormalizeInput("  " + decomposed + "\n"); got != composed {
		t.Errorf("NormalizeInput = %q, want %q", got, composed)
	}
	if NormalizeInput("   ") != "" {
		t.Error("whitespace-only input should normalize to empty")
	}
}
