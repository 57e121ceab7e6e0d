// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
//
// The relay only needs /api/chat, in both its streaming and one-shot forms.
// Streaming responses are newline-delimited JSON; the RecordDecoder buffers
// partial lines so records survive arbitrary chunking by the transport.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - ChatStream: An open streaming response, pumped with Process
//   - RecordDecoder: Splits raw chunks into complete JSON records
//   - ClientError: Typed error with sentinels for errors.Is
//
// # Usage
//
//	client := ollama.NewClient()
//	stream, err := client.OpenChatStream(ctx, "llama3.2", []ollama.Message{
//	    ollama.NewUserMessage("Hello"),
//	})
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	err = stream.Process(ctx, func(chunk ollama.StreamChunk) error {
//	    fmt.Print(chunk.Content)
//	    return nil
//	})
package ollama
