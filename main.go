// ollama-relay - streaming chat relay and terminal client for Ollama.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import "github.com/jeranaias/ollama-relay/internal/commands"

func main() {
	commands.Execute()
}
