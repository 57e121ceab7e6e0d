// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ollama-relay/internal/cli"
	"github.com/jeranaias/ollama-relay/internal/export"
	"github.com/jeranaias/ollama-relay/internal/storage"
)

var (
	historyDBFlag       string
	historyShowFormat   string
	historyExportFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage the saved conversation",
	Long:  `View, export or clear the conversation the chat client keeps locally.`,
}

var historyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the conversation",
	Args:  cobra.NoArgs,
	RunE:  runHistoryShow,
}

var historyExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write the conversation to a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryExport,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the conversation",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClear,
}

func init() {
	historyCmd.PersistentFlags().StringVar(&historyDBFlag, "db", "", "History database (default ~/.ollama-relay/history.db)")
	historyShowCmd.Flags().StringVar(&historyShowFormat, "format", "text", "Output format: text, markdown or json")
	historyExportCmd.Flags().StringVar(&historyExportFormat, "format", "markdown", "File format: markdown or json")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyClearCmd)
}

func openHistory() (*storage.Store, error) {
	path := historyDBFlag
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Client.DBPath
	}
	store, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	msgs, err := store.Load(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(msgs) == 0 {
		fmt.Fprintln(out, "No conversation history.")
		return nil
	}

	if historyShowFormat == "text" {
		width := cli.GetTerminalWidth()
		render := export.RenderPlain
		if cli.ColorsEnabled() {
			render = export.Render
		}
		text, err := render(msgs, width)
		if err != nil {
			return err
		}
		fmt.Fprint(out, text)
		return nil
	}

	exporter, err := export.ForFormat(historyShowFormat, nil)
	if err != nil {
		return err
	}
	data, err := exporter.Export(msgs)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	exporter, err := export.ForFormat(historyExportFormat, nil)
	if err != nil {
		return err
	}

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	msgs, err := store.Load(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	path, err := export.WriteFile(msgs, exporter, args[0])
	if errors.Is(err, export.ErrNoMessages) {
		return errors.New("no conversation history to export")
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d messages to %s\n", len(msgs), path)
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(commandContext(cmd)); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Conversation history cleared.")
	return nil
}
