// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ollama-relay/internal/config"
	"github.com/jeranaias/ollama-relay/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay server",
	Long: `Run the relay server. POST /api/chat streams the backend reply as
server-sent events, GET /api/test reports liveness and GET /healthz adds
counters. The config file is watched and backend settings are applied
without a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "Port to listen on (default 3001)")
	serveCmd.Flags().String("host", "", "Address to bind (default 127.0.0.1)")
	serveCmd.Flags().String("backend", "", "Ollama URL (default http://localhost:11434)")
	serveCmd.Flags().String("model", "", "Model to chat with (default llama3.2)")
	serveCmd.Flags().Bool("probe", false, "Probe the backend once the listener is up")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyServeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	srv := server.New(cfg)

	if path := watchedConfigPath(); path != "" {
		w, err := config.NewWatcher(path, cfg, 0)
		if err != nil {
			log.Printf("CONFIG_WATCH_FAILED | path=%s error=%v", path, err)
		} else {
			defer w.Close()
			w.Subscribe(func(next *config.Config) {
				applyServeFlags(cmd, next)
				srv.ApplyConfig(next)
			})
		}
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, srv, cfg.Addr())
}

// serve runs srv on addr until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *server.Server, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)

	// Serve may not have registered its http.Server yet.
	ln.Close()
	<-errCh

	log.Printf("SERVER_STOPPED | addr=%s", addr)
	return shutdownErr
}

// applyServeFlags overrides cfg with the flags given on the command line.
// It runs again on every reload so flags keep winning over the file.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("backend") {
		cfg.Backend.URL, _ = flags.GetString("backend")
	}
	if flags.Changed("model") {
		cfg.Backend.Model, _ = flags.GetString("model")
	}
	if flags.Changed("probe") {
		cfg.Server.ProbeOnStart, _ = flags.GetBool("probe")
	}
}

// watchedConfigPath returns the config file to watch, or "" when there is
// none on disk.
func watchedConfigPath() string {
	path := configFlag
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return ""
		}
		path = p
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
