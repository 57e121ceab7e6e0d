// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ollama-relay/internal/ollama"
	"github.com/jeranaias/ollama-relay/internal/server"
	"github.com/jeranaias/ollama-relay/internal/ui/styles"
	"github.com/jeranaias/ollama-relay/internal/util"
)

var (
	probeBackendFlag string
	probeModelFlag   string
	probeTimeoutFlag time.Duration
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that the backend answers a chat",
	Long: `Connect to the Ollama backend and send one short, non-streaming chat.
Exits non-zero if the backend is down or the model does not answer.`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().StringVar(&probeBackendFlag, "backend", "", "Ollama URL (default from config)")
	probeCmd.Flags().StringVar(&probeModelFlag, "model", "", "Model to test (default from config)")
	probeCmd.Flags().DurationVar(&probeTimeoutFlag, "timeout", 0, "Give up after this long (default from config)")
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if probeBackendFlag != "" {
		cfg.Backend.URL = probeBackendFlag
	}
	if probeModelFlag != "" {
		cfg.Backend.Model = probeModelFlag
	}
	if probeTimeoutFlag > 0 {
		cfg.Backend.ProbeTimeout = probeTimeoutFlag
	}

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.Backend.URL,
		Timeout:      cfg.Backend.ProbeTimeout,
		DefaultModel: cfg.Backend.Model,
	})

	ctx, cancel := context.WithTimeout(commandContext(cmd), cfg.Backend.ProbeTimeout)
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, styles.RenderPending(fmt.Sprintf("Probing %s with %s", cfg.Backend.URL, cfg.Backend.Model)))

	res := server.Probe(ctx, client, cfg.Backend.Model)
	if !res.OK {
		fmt.Fprintln(out, styles.RenderError(fmt.Sprintf("%s: %s failed: %v", cfg.Backend.URL, res.Stage, res.Err)))
		if hint := probeHint(res.Err, cfg.Backend.Model); hint != "" {
			fmt.Fprintln(out, "    "+hint)
		}
		return fmt.Errorf("backend probe failed at %s", res.Stage)
	}

	fmt.Fprintln(out, styles.RenderSuccess(fmt.Sprintf("%s answered in %s (generation %s): %s",
		res.Model, res.Latency.Round(time.Millisecond), res.Generation.Round(time.Millisecond),
		util.TruncateRunes(res.Reply, 60))))
	return nil
}

func probeHint(err error, model string) string {
	switch {
	case ollama.IsNotRunning(err):
		return "Is Ollama running? Start it with: ollama serve"
	case ollama.IsModelNotFound(err):
		return "Model not installed. Pull it with: ollama pull " + model
	case ollama.IsTimeout(err):
		return "The model did not answer in time. Try a longer --timeout."
	}
	return ""
}
