// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jeranaias/ollama-relay/internal/cli"
	"github.com/jeranaias/ollama-relay/internal/config"
	"github.com/jeranaias/ollama-relay/internal/relay"
	"github.com/jeranaias/ollama-relay/internal/storage"
	"github.com/jeranaias/ollama-relay/internal/ui/chat"
	"github.com/jeranaias/ollama-relay/internal/ui/styles"
)

var (
	chatServerFlag string
	chatPlainFlag  bool
	chatDBFlag     string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat through the relay in the terminal",
	Long: `Open the terminal chat. The conversation is saved after every change and
restored on the next start. Without a terminal, or with --plain, a
line-based chat is used instead.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatServerFlag, "server", "", "Relay URL (default http://localhost:3001)")
	chatCmd.Flags().BoolVar(&chatPlainFlag, "plain", false, "Use the line-based chat")
	chatCmd.Flags().StringVar(&chatDBFlag, "db", "", "History database (default ~/.ollama-relay/history.db)")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if chatServerFlag != "" {
		cfg.Client.ServerURL = chatServerFlag
	}
	if chatDBFlag != "" {
		cfg.Client.DBPath = chatDBFlag
	}

	// Logs would corrupt the screen.
	restoreLog, err := redirectLog(cfg.Client.LogPath)
	if err != nil {
		return err
	}
	defer restoreLog()

	store, err := storage.Open(cfg.Client.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	ctx := commandContext(cmd)
	sess := newSession(cfg, store)
	if err := sess.Load(ctx); err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if chatPlainFlag || !cli.IsInteractive() {
		repl := cli.NewREPL(sess, cli.REPLConfig{
			Out:         cmd.OutOrStdout(),
			Color:       cli.ColorsEnabled(),
			Width:       cli.GetTerminalWidth(),
			HistoryFile: filepath.Join(filepath.Dir(cfg.Client.DBPath), "input_history"),
		})
		return repl.Run(ctx)
	}

	lipgloss.SetColorProfile(cli.GetColorProfile())
	m := chat.New(sess, styles.NewTheme())
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	m.Attach(p)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	return nil
}

func newSession(cfg *config.Config, store *storage.Store) *relay.Session {
	return relay.NewSession(relay.NewClient(cfg.Client.ServerURL), store, relay.SessionConfig{
		HistoryWindow: cfg.Client.HistoryWindow,
		MaxMessages:   cfg.Client.MaxMessages,
	})
}

// redirectLog sends the standard logger to path and returns a function that
// restores stderr.
func redirectLog(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		f.Close()
	}, nil
}
