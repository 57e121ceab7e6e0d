// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the terminal chat screen for the relay client.

The screen is a Bubble Tea model around a relay.Session: a header with the
relay connection status and backend model, a scrolling viewport of rendered
messages, and a single-line input.

# Lifecycle

Init checks the relay health. While the check runs a "Connecting" screen is
shown; if it fails, a guidance screen lists what must be running and r
retries. Once connected, Enter submits the input. The turn runs as a Bubble
Tea command; each streamed fragment reaches the model as a FragmentMsg sent
through the attached program, and TurnDoneMsg ends the turn and refocuses
the input.

# Keys

  - Enter: send (ignored while a reply streams)
  - Esc / Ctrl+C: stop the reply in flight
  - Ctrl+C: quit when idle
  - Ctrl+L: clear the conversation
  - PgUp / PgDn: scroll
  - Ctrl+Q: quit at any time

# Usage

	m := chat.New(session, styles.NewTheme())
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.Attach(p)
	_, err := p.Run()
*/
package chat
