// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the ollama-relay command line.
//
//	ollama-relay serve   [--port --host --backend --model --probe]
//	ollama-relay chat    [--server --plain --db]
//	ollama-relay probe   [--backend --model --timeout]
//	ollama-relay history show|export|clear [--db]
//	ollama-relay version
//
// Every command loads the .env file named by --env-file, then the TOML config
// named by --config, then RELAY_* environment overrides. Flags win over all
// three.
package commands
