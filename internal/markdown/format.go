// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"regexp"
	"strings"
)

// SpanKind identifies how a span of text is displayed.
type SpanKind int

const (
	Plain SpanKind = iota
	Bold
	Italic
	InlineCode
	CodeBlock
	ListItem
)

// String returns the kind's name.
func (k SpanKind) String() string {
	switch k {
	case Plain:
		return "plain"
	case Bold:
		return "bold"
	case Italic:
		return "italic"
	case InlineCode:
		return "code"
	case CodeBlock:
		return "codeblock"
	case ListItem:
		return "listitem"
	default:
		return "unknown"
	}
}

// Span is one formatted piece of a message.
type Span struct {
	Kind SpanKind
	Text string

	// Lang is the fence language of a CodeBlock, possibly empty.
	Lang string
}

var (
	fenceRe  = regexp.MustCompile("```[a-z]*\\n[\\s\\S]*?\\n```")
	listRe   = regexp.MustCompile(`^[*\-•]\s`)
	inlineRe = regexp.MustCompile("\\*\\*.*?\\*\\*|\\*.*?\\*|__.*?__|_.*?_|`.*?`")
)

// Format splits message text into display spans.
//
// Fenced code blocks are recognized first. The remaining text is read line
// by line: lines starting with "*", "-" or "•" plus a space become list
// items, blank lines are dropped, and other lines are scanned for bold,
// italic and inline code. Lines are separated by Plain "\n" spans.
// List items carry no separator: consecutive ListItem spans are one list
// block, and ListBlocks groups them for renderers.
// Nested or overlapping markup is not interpreted.
func Format(text string) []Span {
	var spans []Span
	last := 0
	for _, loc := range fenceRe.FindAllStringIndex(text, -1) {
		spans = formatProse(spans, text[last:loc[0]])
		spans = append(spans, codeBlock(text[loc[0]:loc[1]]))
		last = loc[1]
	}
	return formatProse(spans, text[last:])
}

// ListBlocks returns the [start, end) index ranges of each run of
// consecutive ListItem spans.
func ListBlocks(spans []Span) [][2]int {
	var blocks [][2]int
	for i := 0; i < len(spans); i++ {
		if spans[i].Kind != ListItem {
			continue
		}
		start := i
		for i+1 < len(spans) && spans[i+1].Kind == ListItem {
			i++
		}
		blocks = append(blocks, [2]int{start, i + 1})
	}
	return blocks
}

// codeBlock turns a matched fence into a span. The language is whatever
// follows the opening backticks; the closing fence line is discarded.
func codeBlock(fence string) Span {
	lines := strings.Split(fence, "\n")
	return Span{
		Kind: CodeBlock,
		Lang: strings.TrimPrefix(lines[0], "```"),
		Text: strings.Join(lines[1:len(lines)-1], "\n"),
	}
}

func formatProse(spans []Span, part string) []Span {
	if part == "" {
		return spans
	}
	lines := strings.Split(part, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if loc := listRe.FindStringIndex(trimmed); loc != nil {
			spans = append(spans, Span{Kind: ListItem, Text: trimmed[loc[1]:]})
			continue
		}
		if trimmed == "" {
			continue
		}
		spans = formatInline(spans, line)
		if i < len(lines)-1 {
			spans = appendPlain(spans, "\n")
		}
	}
	return spans
}

func formatInline(spans []Span, line string) []Span {
	last := 0
	for _, loc := range inlineRe.FindAllStringIndex(line, -1) {
		spans = appendPlain(spans, line[last:loc[0]])
		tok := line[loc[0]:loc[1]]
		if s, ok := classify(tok); ok {
			spans = append(spans, s)
		} else {
			spans = appendPlain(spans, tok)
		}
		last = loc[1]
	}
	return appendPlain(spans, line[last:])
}

// classify maps one inline match to its span. Empty markup such as "**"
// yields no span and stays literal text.
func classify(tok string) (Span, bool) {
	var s Span
	switch {
	case strings.HasPrefix(tok, "**") && strings.HasSuffix(tok, "**") && len(tok) >= 4:
		s = Span{Kind: Bold, Text: tok[2 : len(tok)-2]}
	case strings.HasPrefix(tok, "__") && strings.HasSuffix(tok, "__") && len(tok) >= 4:
		s = Span{Kind: Bold, Text: tok[2 : len(tok)-2]}
	case strings.HasPrefix(tok, "`"):
		s = Span{Kind: InlineCode, Text: tok[1 : len(tok)-1]}
	default:
		// "*x*" or "_x_"
		s = Span{Kind: Italic, Text: tok[1 : len(tok)-1]}
	}
	return s, s.Text != ""
}

// appendPlain adds text, merging it into a trailing Plain span.
func appendPlain(spans []Span, text string) []Span {
	if text == "" {
		return spans
	}
	if n := len(spans); n > 0 && spans[n-1].Kind == Plain {
		spans[n-1].Text += text
		return spans
	}
	return append(spans, Span{Kind: Plain, Text: text})
}
