// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides client-local persistence for the chat history.
//
// The conversation is stored as one JSON array under a fixed key in a local
// SQLite database (~/.ollama-relay/history.db by default). The chat client
// overwrites it on every change and removes it on clear.
//
// # Usage
//
//	store, err := storage.Open(path)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//	msgs, err := store.Load(ctx)
package storage
