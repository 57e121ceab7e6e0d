// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/jeranaias/ollama-relay/internal/ui/styles"
	"github.com/jeranaias/ollama-relay/internal/util"
)

// DefaultWidth is used when no terminal width is known.
const DefaultWidth = 80

const bullet = "• "

// =============================================================================
// RENDERER
// =============================================================================

// Renderer turns spans into terminal text.
type Renderer struct {
	width int

	// chroma style for code blocks; empty disables highlighting
	codeTheme string

	bold      lipgloss.Style
	italic    lipgloss.Style
	code      lipgloss.Style
	bullet    lipgloss.Style
	langBadge lipgloss.Style
	block     lipgloss.Style
}

// NewRenderer creates a renderer that wraps at width columns.
func NewRenderer(width int) *Renderer {
	r := &Renderer{
		codeTheme: "monokai",
		bold:      lipgloss.NewStyle().Bold(true),
		italic:    lipgloss.NewStyle().Italic(true),
		code: lipgloss.NewStyle().
			Background(styles.SurfaceDim).
			Foreground(styles.Cyan),
		bullet: lipgloss.NewStyle().Foreground(styles.Purple),
		langBadge: lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Background(styles.OverlayDim).
			Padding(0, 1).
			Bold(true),
		block: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(styles.Overlay).
			Padding(0, 1),
	}
	r.SetWidth(width)
	return r
}

// SetWidth changes the wrap width.
func (r *Renderer) SetWidth(width int) {
	if width < 20 {
		width = DefaultWidth
	}
	r.width = width
}

// Width returns the wrap width.
func (r *Renderer) Width() int {
	return r.width
}

// DisableHighlighting renders code blocks without syntax colors.
func (r *Renderer) DisableHighlighting() {
	r.codeTheme = ""
}

// Render formats and renders message text.
func (r *Renderer) Render(text string) string {
	return r.RenderSpans(Format(text))
}

// RenderSpans renders spans. Inline spans are gathered into paragraphs and
// wrapped; each list block and code block stands on its own lines.
func (r *Renderer) RenderSpans(spans []Span) string {
	var blocks []string
	var para strings.Builder

	flush := func() {
		text := strings.TrimRight(para.String(), "\n")
		if text != "" {
			blocks = append(blocks, ansi.Wrap(text, r.width, ""))
		}
		para.Reset()
	}

	lists := make(map[int]int)
	for _, lb := range ListBlocks(spans) {
		lists[lb[0]] = lb[1]
	}

	for i := 0; i < len(spans); i++ {
		s := spans[i]
		if end, ok := lists[i]; ok {
			flush()
			items := make([]string, 0, end-i)
			for _, item := range spans[i:end] {
				items = append(items, r.listItem(item.Text))
			}
			blocks = append(blocks, strings.Join(items, "\n"))
			i = end - 1
			continue
		}
		switch s.Kind {
		case Plain:
			para.WriteString(s.Text)
		case Bold:
			para.WriteString(r.bold.Render(s.Text))
		case Italic:
			para.WriteString(r.italic.Render(s.Text))
		case InlineCode:
			para.WriteString(r.code.Render(s.Text))
		case CodeBlock:
			flush()
			blocks = append(blocks, r.codeBlock(s))
		}
	}
	flush()

	return strings.Join(blocks, "\n")
}

// listItem renders a bulleted item with a hanging indent.
func (r *Renderer) listItem(text string) string {
	indent := util.StringWidth(bullet)
	lines := strings.Split(util.WrapWidth(text, r.width-indent), "\n")
	for i := range lines {
		if i == 0 {
			lines[i] = r.bullet.Render(bullet) + lines[i]
		} else {
			lines[i] = strings.Repeat(" ", indent) + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

// codeBlock renders a framed, highlighted block with its language badge.
// Long lines are cut rather than wrapped so code keeps its shape.
func (r *Renderer) codeBlock(s Span) string {
	code := s.Text
	if r.codeTheme != "" {
		code = highlight(code, s.Lang, r.codeTheme)
	}

	inner := r.width - 4
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		lines[i] = ansi.Truncate(line, inner, "…")
	}

	body := strings.Join(lines, "\n")
	if s.Lang != "" {
		body = r.langBadge.Render(s.Lang) + "\n" + body
	}
	return r.block.Render(body)
}

// =============================================================================
// PLAIN RENDERING
// =============================================================================

// RenderPlain renders spans without any escape sequences, for terminals
// without color and for logs.
func RenderPlain(spans []Span) string {
	var b strings.Builder
	for i, s := range spans {
		switch s.Kind {
		case ListItem:
			if i > 0 && !strings.HasSuffix(b.String(), "\n") {
				b.WriteString("\n")
			}
			b.WriteString(bullet + s.Text + "\n")
		case CodeBlock:
			if i > 0 && !strings.HasSuffix(b.String(), "\n") {
				b.WriteString("\n")
			}
			if s.Lang != "" {
				b.WriteString("[" + s.Lang + "]\n")
			}
			for _, line := range strings.Split(s.Text, "\n") {
				b.WriteString("    " + line + "\n")
			}
		default:
			b.WriteString(s.Text)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// =============================================================================
// SYNTAX HIGHLIGHTING
// =============================================================================

// highlight colors code with chroma's terminal256 formatter. It returns code
// unchanged when highlighting fails.
func highlight(code, language, theme string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get(theme)
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(buf.String(), "\n")
}
