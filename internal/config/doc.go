// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ollama-relay.
//
// # Configuration File
//
// The default location is ~/.ollama-relay/config.toml:
//
//	[server]
//	host = "127.0.0.1"
//	port = 3001
//	cors_origins = ["*"]
//	rate_limit_per_minute = 120
//	probe_on_start = false
//
//	[backend]
//	url = "http://localhost:11434"
//	model = "llama3.2"
//	probe_timeout = "30s"
//
//	[client]
//	server_url = "http://localhost:3001"
//	history_window = 10
//	max_messages = 20
//
// # Environment
//
// A .env file is loaded first (without overriding the real environment), then
// RELAY_* variables override file values. See ApplyEnvOverrides.
//
// # Hot Reload
//
// Watcher follows the file with fsnotify and republishes valid changes.
package config
