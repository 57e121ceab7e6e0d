// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/peterh/liner"

	"github.com/jeranaias/ollama-relay/internal/markdown"
	"github.com/jeranaias/ollama-relay/internal/model"
	"github.com/jeranaias/ollama-relay/internal/relay"
	"github.com/jeranaias/ollama-relay/internal/ui/styles"
)

// =============================================================================
// STYLES
// =============================================================================

type replStyles struct {
	prompt    lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	system    lipgloss.Style
	info      lipgloss.Style
	command   lipgloss.Style
}

func newReplStyles(out io.Writer, color bool) replStyles {
	r := lipgloss.NewRenderer(out)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}
	return replStyles{
		prompt:    r.NewStyle().Foreground(styles.Cyan).Bold(true),
		user:      r.NewStyle().Foreground(styles.Cyan).Bold(true),
		assistant: r.NewStyle().Foreground(styles.Purple).Bold(true),
		system:    r.NewStyle().Foreground(styles.Amber),
		info:      r.NewStyle().Foreground(styles.TextSecondary),
		command:   r.NewStyle().Foreground(styles.Emerald),
	}
}

// =============================================================================
// REPL
// =============================================================================

// REPLConfig configures the line-based chat.
type REPLConfig struct {
	Out   io.Writer
	Color bool
	Width int

	// File for line-editor input history; empty keeps it in memory
	HistoryFile string
}

// REPL is a line-based chat for pipes, dumb terminals and --plain. Replies
// are printed as their fragments arrive.
type REPL struct {
	session     *relay.Session
	out         io.Writer
	color       bool
	renderer    *markdown.Renderer
	styles      replStyles
	historyFile string
}

// NewREPL creates a REPL over a loaded session.
func NewREPL(session *relay.Session, cfg REPLConfig) *REPL {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultTerminalWidth
	}
	return &REPL{
		session:     session,
		out:         cfg.Out,
		color:       cfg.Color,
		renderer:    markdown.NewRenderer(cfg.Width),
		styles:      newReplStyles(cfg.Out, cfg.Color),
		historyFile: cfg.HistoryFile,
	}
}

// Run reads lines until /quit, Ctrl+C at the prompt, or EOF. Ctrl+C while a
// reply streams stops that reply only.
func (r *REPL) Run(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	r.loadInputHistory(line)
	defer r.saveInputHistory(line)

	r.printBanner()

	for {
		input, err := line.Prompt("you> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		keep := r.Handle(turnCtx, input)
		stop()

		if !keep || ctx.Err() != nil {
			return nil
		}
	}
}

// Handle processes one line of input and reports whether to keep reading.
func (r *REPL) Handle(ctx context.Context, input string) bool {
	text := strings.TrimSpace(input)
	if strings.HasPrefix(text, "/") {
		return r.command(ctx, text)
	}
	r.turn(ctx, text)
	return true
}

func (r *REPL) turn(ctx context.Context, text string) {
	printed := 0
	started := false

	err := r.session.Submit(ctx, text, func() {
		msgs := r.session.Messages()
		if len(msgs) == 0 {
			return
		}
		last := msgs[len(msgs)-1]
		if last.Role != model.RoleAssistant {
			return
		}
		if !started {
			fmt.Fprint(r.out, r.styles.assistant.Render("assistant>")+" ")
			started = true
		}
		if len(last.Content) > printed {
			fmt.Fprint(r.out, last.Content[printed:])
			printed = len(last.Content)
		}
	})
	if started {
		fmt.Fprintln(r.out)
	}
	if err == nil || errors.Is(err, relay.ErrEmptyInput) {
		return
	}

	msgs := r.session.Messages()
	if n := len(msgs); n > 0 && msgs[n-1].Role == model.RoleSystem {
		fmt.Fprintln(r.out, r.styles.system.Render(msgs[n-1].Content))
		return
	}
	fmt.Fprintln(r.out, r.styles.system.Render("Error: "+err.Error()))
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func (r *REPL) command(ctx context.Context, cmd string) bool {
	parts := strings.Fields(cmd)
	switch strings.ToLower(parts[0]) {
	case "/help", "/h", "/?", "/":
		r.printHelp()

	case "/clear", "/c":
		if err := r.session.Clear(ctx); err != nil {
			fmt.Fprintln(r.out, r.styles.system.Render("Error: "+err.Error()))
			return true
		}
		fmt.Fprintln(r.out, r.styles.command.Render("[Conversation cleared]"))

	case "/history":
		r.printHistory()

	case "/quit", "/q", "/exit":
		return false

	default:
		fmt.Fprintln(r.out, r.styles.system.Render(
			fmt.Sprintf("Unknown command: %s (type /help for commands)", parts[0])))
	}
	return true
}

func (r *REPL) printBanner() {
	fmt.Fprintln(r.out, r.styles.assistant.Render("Ollama Chat"))
	fmt.Fprintln(r.out, r.styles.info.Render("Relay: "+r.session.Client().BaseURL()+"  (/help for commands)"))
	if n := len(r.session.Messages()); n > 0 {
		fmt.Fprintln(r.out, r.styles.info.Render(fmt.Sprintf("Restored %d messages. /history to show them.", n)))
	}
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.out, r.styles.info.Render("Commands:"))
	fmt.Fprintln(r.out, "  /history   show the conversation")
	fmt.Fprintln(r.out, "  /clear     clear the conversation")
	fmt.Fprintln(r.out, "  /quit      exit")
	fmt.Fprintln(r.out, r.styles.info.Render("Ctrl+C stops a reply; at the prompt it exits."))
}

func (r *REPL) printHistory() {
	msgs := r.session.Messages()
	if len(msgs) == 0 {
		fmt.Fprintln(r.out, r.styles.info.Render("[No messages]"))
		return
	}
	for _, msg := range msgs {
		label := msg.Role.DisplayName()
		switch msg.Role {
		case model.RoleUser:
			label = r.styles.user.Render(label)
		case model.RoleAssistant:
			label = r.styles.assistant.Render(label)
		default:
			label = r.styles.system.Render(label)
		}
		fmt.Fprintf(r.out, "%s %s\n", label, r.styles.info.Render(msg.Timestamp.Format("15:04")))
		fmt.Fprintln(r.out, r.renderBody(msg))
		fmt.Fprintln(r.out)
	}
}

func (r *REPL) renderBody(msg model.Message) string {
	if msg.Role != model.RoleAssistant {
		return msg.Content
	}
	if r.color {
		return r.renderer.Render(msg.Content)
	}
	return markdown.RenderPlain(markdown.Format(msg.Content))
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

func (r *REPL) loadInputHistory(line *liner.State) {
	if r.historyFile == "" {
		return
	}
	if f, err := os.Open(r.historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
}

func (r *REPL) saveInputHistory(line *liner.State) {
	if r.historyFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	line.WriteHistory(f)
}
