// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package relay is the chat client side of the relay: an HTTP client for the
// relay server's event stream and a Session that turns each exchange into
// conversation updates.
//
// # Key Types
//
//   - Client: Health check and streaming chat against the relay
//   - EventDecoder: Extracts content fragments from "data: " lines
//   - Session: Bounded, persisted conversation with one turn in flight
//   - RelayError: The relay's {error, details} reply as a Go error
//
// # Usage
//
//	sess := relay.NewSession(relay.NewClient(url), store, relay.DefaultSessionConfig())
//	if err := sess.Load(ctx); err != nil {
//	    return err
//	}
//	err := sess.Submit(ctx, "Hello", func() { redraw(sess.Messages()) })
package relay
