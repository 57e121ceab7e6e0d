// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ollama-relay/internal/config"
)

var (
	// Global flags
	configFlag  string
	envFileFlag string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ollama-relay",
	Short: "Streaming chat relay and client for Ollama",
	Long: `ollama-relay forwards chat requests to a local Ollama server and streams
the reply back as server-sent events. It also ships a terminal chat client
that talks to the relay.

Examples:
  ollama-relay serve                    Start the relay on port 3001
  ollama-relay serve --probe            Start and check the backend once
  ollama-relay chat                     Open the terminal chat
  ollama-relay chat --plain             Line-based chat for pipes
  ollama-relay probe                    Check that Ollama answers
  ollama-relay history show             Print the saved conversation
  ollama-relay config init              Write a default config file`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv(envFileFlag)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default ~/.ollama-relay/config.toml)")
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", ".env", "Environment file loaded before the config")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads the config from --config or the default location.
func loadConfig() (*config.Config, error) {
	return config.Load(configFlag)
}

// commandContext returns the command's context, or Background when the
// command is run outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
