// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jeranaias/ollama-relay/internal/config"
	"github.com/jeranaias/ollama-relay/internal/ollama"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxRequestBodySize caps the POST /api/chat body (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// BackendFailure is the error text returned when the backend cannot be
	// reached or rejects the chat request.
	BackendFailure = "Failed to communicate with Ollama"

	// TestStatus is the body of GET /api/test.
	TestStatus = "Backend server is running"
)

// Version is the relay version, overridden at build time with -ldflags.
var Version = "0.1.0"

// ============================================================================
// REQUEST / RESPONSE TYPES
// ============================================================================

// HistoryEntry is one prior turn sent by the client.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string         `json:"message"`
	History []HistoryEntry `json:"history,omitempty"`
}

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// StatusResponse is the body of GET /api/test.
type StatusResponse struct {
	Status string `json:"status"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Version string        `json:"version"`
	Uptime  string        `json:"uptime"`
	Model   string        `json:"model"`
	Backend string        `json:"backend"`
	Stats   StatsSnapshot `json:"stats"`
}

// BuildMessages turns a chat request into the backend message list: prior
// turns with empty content are skipped and the new user message goes last.
func BuildMessages(req ChatRequest) []ollama.Message {
	msgs := make([]ollama.Message, 0, len(req.History)+1)
	for _, h := range req.History {
		if h.Content == "" {
			continue
		}
		msgs = append(msgs, ollama.Message{Role: h.Role, Content: h.Content})
	}
	return append(msgs, ollama.NewUserMessage(req.Message))
}

// ============================================================================
// SERVER STATS
// ============================================================================

// ServerStats counts relay activity. All fields are safe for concurrent use.
type ServerStats struct {
	Requests      atomic.Int64
	Streams       atomic.Int64
	Fragments     atomic.Int64
	Dropped       atomic.Int64
	BackendErrors atomic.Int64
	StartTime     time.Time
}

// StatsSnapshot is a point-in-time copy of ServerStats.
type StatsSnapshot struct {
	Requests      int64 `json:"requests"`
	Streams       int64 `json:"streams"`
	Fragments     int64 `json:"fragments"`
	Dropped       int64 `json:"dropped"`
	BackendErrors int64 `json:"backend_errors"`
}

// NewServerStats creates a new stats tracker.
func NewServerStats() *ServerStats {
	return &ServerStats{StartTime: time.Now()}
}

// Snapshot returns the current counter values.
func (s *ServerStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Requests:      s.Requests.Load(),
		Streams:       s.Streams.Load(),
		Fragments:     s.Fragments.Load(),
		Dropped:       s.Dropped.Load(),
		BackendErrors: s.BackendErrors.Load(),
	}
}

// Uptime returns how long the server has been running.
func (s *ServerStats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// ============================================================================
// SERVER
// ============================================================================

// Server relays chat requests to Ollama and streams the reply back as
// server-sent events.
type Server struct {
	addr         string
	probeOnStart bool
	probeTimeout time.Duration

	// backend and model change on config reload
	mu      sync.RWMutex
	backend *ollama.Client
	model   string

	stats   *ServerStats
	router  chi.Router
	handler http.Handler
	logger  *log.Logger

	srvMu      sync.Mutex
	httpServer *http.Server
}

// New creates a relay server from cfg.
func New(cfg *config.Config) *Server {
	s := &Server{
		addr:         cfg.Addr(),
		probeOnStart: cfg.Server.ProbeOnStart,
		probeTimeout: cfg.Backend.ProbeTimeout,
		backend:      newBackend(cfg.Backend),
		model:        cfg.Backend.Model,
		stats:        NewServerStats(),
		logger:       log.Default(),
	}

	s.setupRoutes()

	var limiter *RateLimiter
	if cfg.Server.RateLimitPerMinute > 0 {
		limiter = NewRateLimiter(cfg.Server.RateLimitPerMinute)
	}
	cors := DefaultCORSConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		cors.AllowedOrigins = cfg.Server.CORSOrigins
	}

	s.handler = Chain(
		RecoveryMiddleware(),
		RequestIDMiddleware(),
		LoggingMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		CORSMiddleware(cors),
		RateLimitMiddleware(limiter, NewClientIPResolver(cfg.Server.TrustedProxies)),
	)(s.router)

	return s
}

func newBackend(cfg config.BackendConfig) *ollama.Client {
	return ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.URL,
		Timeout:      cfg.ProbeTimeout,
		DefaultModel: cfg.Model,
	})
}

// setupRoutes configures HTTP routes.
func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Post("/api/chat", s.handleChat)
	r.Get("/api/test", s.handleTest)
	r.Get("/healthz", s.handleHealth)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Not Found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "Method Not Allowed"})
	})

	s.router = r
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Stats returns the server's counters.
func (s *Server) Stats() *ServerStats {
	return s.stats
}

// Backend returns the current backend client and model.
func (s *Server) Backend() (*ollama.Client, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend, s.model
}

// ApplyConfig swaps in backend settings from a reloaded config. Streams
// already in flight keep the client they started with.
func (s *Server) ApplyConfig(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.Backend.URL != s.backend.BaseURL() || cfg.Backend.Model != s.model {
		s.backend = newBackend(cfg.Backend)
	}
	s.model = cfg.Backend.Model
	s.probeTimeout = cfg.Backend.ProbeTimeout
	log.Printf("CONFIG_APPLIED | model=%s backend=%s", s.model, s.backend.BaseURL())
}

// ============================================================================
// CHAT HANDLER
// ============================================================================

// handleChat handles POST /api/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.stats.Requests.Add(1)
	rid := RequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: "message is required"})
		return
	}

	events, err := NewEventWriter(w)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Streaming not supported"})
		return
	}

	backend, model := s.Backend()
	messages := BuildMessages(req)

	ctx := r.Context()
	stream, err := backend.OpenChatStream(ctx, model, messages)
	if err != nil {
		s.stats.BackendErrors.Add(1)
		log.Printf("BACKEND_ERROR | rid=%s model=%s error=%v", rid, model, err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: BackendFailure, Details: err.Error()})
		return
	}
	defer stream.Close()

	s.stats.Streams.Add(1)
	log.Printf("CHAT_STREAM_START | rid=%s model=%s messages=%d", rid, model, len(messages))

	events.Start()

	var fragments int64
	err = stream.Process(ctx, func(chunk ollama.StreamChunk) error {
		if chunk.Error != nil {
			log.Printf("BACKEND_ERROR | rid=%s in_stream=true error=%v", rid, chunk.Error)
			return nil
		}
		if chunk.Content == "" {
			return nil
		}
		fragments++
		return events.Send(ContentEvent{Content: chunk.Content})
	})

	stats := stream.Stats()
	s.stats.Fragments.Add(fragments)
	s.stats.Dropped.Add(int64(stats.Dropped))

	reason := "eof"
	switch {
	case errors.Is(err, context.Canceled):
		reason = "client_gone"
	case err != nil:
		reason = "error"
		log.Printf("BACKEND_ERROR | rid=%s stage=stream error=%v", rid, err)
	}
	log.Printf("CHAT_STREAM_END | rid=%s reason=%s fragments=%d records=%d dropped=%d duration=%.3fs",
		rid, reason, fragments, stats.Records, stats.Dropped, stats.Duration.Seconds())
}

// ============================================================================
// STATUS HANDLERS
// ============================================================================

// handleTest handles GET /api/test.
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: TestStatus})
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	backend, model := s.Backend()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
		Uptime:  s.stats.Uptime().Round(time.Second).String(),
		Model:   model,
		Backend: backend.BaseURL(),
		Stats:   s.stats.Snapshot(),
	})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start binds the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on an already bound listener. When probe-on-start is set the
// backend probe runs in the background once the listener is up.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.srvMu.Lock()
	s.httpServer = srv
	s.srvMu.Unlock()

	_, model := s.Backend()
	log.Printf("SERVER_START | addr=%s model=%s version=%s", ln.Addr(), model, Version)

	if s.probeOnStart {
		go s.runProbe()
	}

	return srv.Serve(ln)
}

func (s *Server) runProbe() {
	backend, model := s.Backend()
	s.mu.RLock()
	timeout := s.probeTimeout
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	Probe(ctx, backend, model)
}

// Shutdown gracefully shuts down the server. Open streams end when ctx does.
func (s *Server) Shutdown(ctx context.Context) error {
	s.srvMu.Lock()
	srv := s.httpServer
	s.srvMu.Unlock()

	if srv == nil {
		return nil
	}

	log.Printf("SERVER_SHUTDOWN | starting graceful shutdown")
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
