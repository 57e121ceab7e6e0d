// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the chat relay HTTP server.
//
// The relay accepts a message plus prior turns, forwards them to Ollama as a
// streaming chat, and re-emits each generated fragment to the caller as a
// server-sent event the moment it is decoded.
//
// # Endpoints
//
//   - POST /api/chat - Stream a reply as "data: {"content":...}" frames
//   - GET  /api/test - Liveness check
//   - GET  /healthz  - Version, active model and relay counters
//
// Backend failures before streaming starts are answered with HTTP 500 and
// {"error":"Failed to communicate with Ollama","details":...}. There is no
// end-of-stream sentinel; the response simply ends when the backend does.
//
// # Middleware
//
//   - Panic recovery
//   - Request IDs (X-Request-ID)
//   - Access logging that keeps http.Flusher working
//   - Security headers
//   - CORS (gorilla/handlers)
//   - Per-IP token bucket rate limiting
//
// # Usage
//
//	cfg, _ := config.Load("")
//	srv := server.New(cfg)
//	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
//		log.Fatal(err)
//	}
package server
