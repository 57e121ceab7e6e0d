// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jeranaias/ollama-relay/internal/config"
	"github.com/jeranaias/ollama-relay/internal/relay"
	"github.com/jeranaias/ollama-relay/internal/server"
)

// =============================================================================
// COLOR DETECTION TESTS
// =============================================================================

func TestColorsEnabled(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		tty  bool
		want bool
	}{
		{"tty", nil, true, true},
		{"pipe", nil, false, false},
		{"no color wins on tty", map[string]string{"NO_COLOR": "1"}, true, false},
		{"force color on pipe", map[string]string{"FORCE_COLOR": "1"}, false, true},
		{"no color beats force", map[string]string{"NO_COLOR": "1", "FORCE_COLOR": "1"}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(k string) string { return tt.env[k] }
			if got := colorsEnabled(getenv, tt.tty); got != tt.want {
				t.Errorf("colorsEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetTerminalWidth_NotATerminal(t *testing.T) {
	// Test binaries run with stdout redirected.
	if IsStdoutTTY() {
		t.Skip("stdout is a terminal")
	}
	if got := GetTerminalWidth(); got != DefaultTerminalWidth {
		t.Errorf("GetTerminalWidth() = %d, want %d", got, DefaultTerminalWidth)
	}
}

// =============================================================================
// REPL TESTS
// =============================================================================

// relayURL runs a relay in front of a backend that streams fragments.
// With backendDown the relay points at a closed port.
func relayURL(t *testing.T, fragments []string, backendDown bool) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cfg := config.Default()
	cfg.Server.RateLimitPerMinute = 0
	cfg.Backend.URL = "http://127.0.0.1:1"

	if !backendDown {
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, f := range fragments {
				b, _ := json.Marshal(map[string]interface{}{
					"message": map[string]string{"role": "assistant", "content": f},
					"done":    false,
				})
				fmt.Fprintf(w, "%s\n", b)
				w.(http.Flusher).Flush()
			}
		}))
		t.Cleanup(backend.Close)
		cfg.Backend.URL = backend.URL
	}

	srv := httptest.NewServer(server.New(cfg).Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func newTestREPL(t *testing.T, url string) (*REPL, *relay.Session, *bytes.Buffer) {
	t.Helper()
	sess := relay.NewSession(relay.NewClient(url), nil, relay.DefaultSessionConfig())
	var out bytes.Buffer
	return NewREPL(sess, REPLConfig{Out: &out}), sess, &out
}

func TestREPL_StreamsReply(t *testing.T) {
	r, sess, out := newTestREPL(t, relayURL(t, []string{"Hi", " there"}, false))

	if !r.Handle(context.Background(), "Hello") {
		t.Fatal("Handle() = false, want true")
	}

	if got := out.String(); got != "assistant> Hi there\n" {
		t.Errorf("output = %q, want %q", got, "assistant> Hi there\n")
	}
	msgs := sess.Messages()
	if len(msgs) != 2 || msgs[1].Content != "Hi there" {
		t.Errorf("messages = %+v, want user and assistant \"Hi there\"", msgs)
	}
}

func TestREPL_BackendDownPrintsError(t *testing.T) {
	r, sess, out := newTestREPL(t, relayURL(t, nil, true))

	r.Handle(context.Background(), "Hello")

	if !strings.Contains(out.String(), "Error: Failed to communicate with Ollama") {
		t.Errorf("output = %q, want the relay error", out.String())
	}
	if n := len(sess.Messages()); n != 3 {
		t.Errorf("len(messages) = %d, want 3", n)
	}
}

func TestREPL_BlankInputIgnored(t *testing.T) {
	r, sess, out := newTestREPL(t, "http://127.0.0.1:1")

	r.Handle(context.Background(), "   ")

	if out.Len() != 0 {
		t.Errorf("output = %q, want nothing", out.String())
	}
	if n := len(sess.Messages()); n != 0 {
		t.Errorf("len(messages) = %d, want 0", n)
	}
}

func TestREPL_Commands(t *testing.T) {
	r, sess, out := newTestREPL(t, relayURL(t, []string{"Hi"}, false))
	ctx := context.Background()

	r.Handle(ctx, "Hello")
	out.Reset()

	r.Handle(ctx, "/history")
	hist := out.String()
	for _, want := range []string{"You", "Hello", "Assistant", "Hi"} {
		if !strings.Contains(hist, want) {
			t.Errorf("/history output missing %q:\n%s", want, hist)
		}
	}

	out.Reset()
	r.Handle(ctx, "/clear")
	if !strings.Contains(out.String(), "[Conversation cleared]") {
		t.Errorf("/clear output = %q", out.String())
	}
	if n := len(sess.Messages()); n != 0 {
		t.Errorf("len(messages) after /clear = %d, want 0", n)
	}

	out.Reset()
	r.Handle(ctx, "/history")
	if !strings.Contains(out.String(), "[No messages]") {
		t.Errorf("/history on empty = %q", out.String())
	}

	out.Reset()
	if !r.Handle(ctx, "/bogus") {
		t.Error("unknown command should keep the loop running")
	}
	if !strings.Contains(out.String(), "Unknown command: /bogus") {
		t.Errorf("unknown command output = %q", out.String())
	}

	for _, quit := range []string{"/quit", "/q", "/exit"} {
		if r.Handle(ctx, quit) {
			t.Errorf("Handle(%q) = true, want false", quit)
		}
	}
}
