// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("Hello")
	if msg.Role != "user" || msg.Content != "Hello" {
		t.Errorf("NewUserMessage() = %+v", msg)
	}
}

func TestChatResponse_TotalTime(t *testing.T) {
	r := &ChatResponse{TotalDuration: int64(1500 * time.Millisecond)}
	if got := r.TotalTime(); got != 1500*time.Millisecond {
		t.Errorf("TotalTime() = %v, want 1.5s", got)
	}
}

// =============================================================================
// RECORD DECODER TESTS
// =============================================================================

// collect returns an emit func that appends chunks to out.
func collect(out *[]StreamChunk) func(StreamChunk) error {
	return func(c StreamChunk) error {
		*out = append(*out, c)
		return nil
	}
}

func contents(chunks []StreamChunk) []string {
	var out []string
	for _, c := range chunks {
		out = append(out, c.Content)
	}
	return out
}

func TestRecordDecoder_OneRecordPerChunk(t *testing.T) {
	d := NewRecordDecoder()
	var got []StreamChunk

	for _, s := range []string{"Hi", " there", "!"} {
		rec := fmt.Sprintf(`{"message":{"role":"assistant","content":%q},"done":false}`+"\n", s)
		require.NoError(t, d.Feed([]byte(rec), collect(&got)))
	}

	assert.Equal(t, []string{"Hi", " there", "!"}, contents(got))
	assert.Equal(t, 3, d.Records())
	assert.Equal(t, 0, d.Dropped())
}

func TestRecordDecoder_SplitAcrossChunks(t *testing.T) {
	stream := `{"message":{"content":"Hel"}}` + "\n" + `{"message":{"content":"lo"}}` + "\n"

	// Every possible split point must yield the same two records.
	for i := 1; i < len(stream); i++ {
		d := NewRecordDecoder()
		var got []StreamChunk

		require.NoError(t, d.Feed([]byte(stream[:i]), collect(&got)))
		require.NoError(t, d.Feed([]byte(stream[i:]), collect(&got)))
		require.NoError(t, d.Flush(collect(&got)))

		assert.Equal(t, []string{"Hel", "lo"}, contents(got), "split at %d", i)
		assert.Equal(t, 0, d.Dropped(), "split at %d", i)
	}
}

func TestRecordDecoder_ManyRecordsInOneChunk(t *testing.T) {
	d := NewRecordDecoder()
	var got []StreamChunk

	chunk := `{"message":{"content":"a"}}` + "\n" +
		`{"message":{"content":"b"}}` + "\n" +
		`{"message":{"content":"c"}}` + "\n" +
		`{"message":{"con`

	require.NoError(t, d.Feed([]byte(chunk), collect(&got)))
	assert.Equal(t, []string{"a", "b", "c"}, contents(got))
	assert.Greater(t, d.Pending(), 0)

	require.NoError(t, d.Feed([]byte(`tent":"d"}}`+"\n"), collect(&got)))
	assert.Equal(t, []string{"a", "b", "c", "d"}, contents(got))
	assert.Equal(t, 0, d.Pending())
}

func TestRecordDecoder_MalformedDropped(t *testing.T) {
	d := NewRecordDecoder()
	var got []StreamChunk

	input := `{"message":{"content":"one"}}` + "\n" +
		`{"message":{"content":` + "\n" + // truncated record
		`not json at all` + "\n" +
		`42` + "\n" + // valid JSON, not a record
		`{"message":{"content":"two"}}` + "\n"

	require.NoError(t, d.Feed([]byte(input), collect(&got)))

	assert.Equal(t, []string{"one", "two"}, contents(got))
	assert.Equal(t, 3, d.Dropped())
}

func TestRecordDecoder_BlankLinesAndCRLF(t *testing.T) {
	d := NewRecordDecoder()
	var got []StreamChunk

	input := "\n\r\n" + `{"message":{"content":"x"}}` + "\r\n\n"
	require.NoError(t, d.Feed([]byte(input), collect(&got)))

	assert.Equal(t, []string{"x"}, contents(got))
	assert.Equal(t, 0, d.Dropped())
}

func TestRecordDecoder_FlushWithoutTrailingNewline(t *testing.T) {
	d := NewRecordDecoder()
	var got []StreamChunk

	require.NoError(t, d.Feed([]byte(`{"message":{"content":"last"},"done":true,"done_reason":"stop"}`), collect(&got)))
	assert.Empty(t, got)

	require.NoError(t, d.Flush(collect(&got)))
	require.Len(t, got, 1)
	assert.Equal(t, "last", got[0].Content)
	assert.True(t, got[0].Done)
	assert.Equal(t, "stop", got[0].DoneReason)
}

func TestRecordDecoder_ErrorField(t *testing.T) {
	d := NewRecordDecoder()
	var got []StreamChunk

	require.NoError(t, d.Feed([]byte(`{"error":"model crashed"}`+"\n"), collect(&got)))
	require.Len(t, got, 1)
	require.Error(t, got[0].Error)
	assert.Contains(t, got[0].Error.Error(), "model crashed")
}

func TestRecordDecoder_EmitErrorStops(t *testing.T) {
	d := NewRecordDecoder()
	stop := errors.New("stop")
	calls := 0

	err := d.Feed([]byte(`{"message":{"content":"a"}}`+"\n"+`{"message":{"content":"b"}}`+"\n"), func(StreamChunk) error {
		calls++
		return stop
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

// ndjsonBackend returns a fake /api/chat that streams the given fragments,
// flushing after each record.
func ndjsonBackend(t *testing.T, fragments []string, seen *ChatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if seen != nil {
			json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher := w.(http.Flusher)
		for _, f := range fragments {
			fmt.Fprintf(w, `{"model":"llama3.2","message":{"role":"assistant","content":%q},"done":false}`+"\n", f)
			flusher.Flush()
		}
		fmt.Fprint(w, `{"model":"llama3.2","message":{"role":"assistant","content":""},"done":true}`+"\n")
	}))
}

func TestClient_Defaults(t *testing.T) {
	c := NewClientWithConfig(&ClientConfig{BaseURL: "http://example.test:11434/"})

	if c.BaseURL() != "http://example.test:11434" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", c.BaseURL())
	}
	if c.DefaultModel() != DefaultModel {
		t.Errorf("DefaultModel = %q, want %q", c.DefaultModel(), DefaultModel)
	}
}

func TestClient_OpenChatStream(t *testing.T) {
	var seen ChatRequest
	srv := ndjsonBackend(t, []string{"Hi", " there"}, &seen)
	defer srv.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	msgs := []Message{NewUserMessage("Hello")}

	stream, err := client.OpenChatStream(context.Background(), "", msgs)
	require.NoError(t, err)
	defer stream.Close()

	var got []string
	err = stream.Process(context.Background(), func(c StreamChunk) error {
		if c.Content != "" {
			got = append(got, c.Content)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hi", " there"}, got)
	assert.Equal(t, "llama3.2", seen.Model)
	assert.True(t, seen.Stream)
	assert.Equal(t, msgs, seen.Messages)
	assert.Equal(t, 3, stream.Stats().Records)
}

func TestClient_OpenChatStream_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantMsg  string
		notFound bool
	}{
		{"backend error text", http.StatusInternalServerError, `{"error":"out of memory"}`, "out of memory", false},
		{"no error body", http.StatusBadGateway, ``, "chat request failed: 502 Bad Gateway", false},
		{"model missing", http.StatusNotFound, `{"error":"model 'nope' not found"}`, "model 'nope' not found", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			client := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
			stream, err := client.OpenChatStream(context.Background(), "llama3.2", nil)

			require.Error(t, err)
			assert.Nil(t, stream)
			assert.Equal(t, tc.wantMsg, err.Error())
			assert.Equal(t, tc.notFound, IsModelNotFound(err))
		})
	}
}

func TestClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: url})
	_, err := client.OpenChatStream(context.Background(), "", []Message{NewUserMessage("hi")})

	require.Error(t, err)
	assert.True(t, IsNotRunning(err), "err = %v", err)

	var ce *ClientError
	require.ErrorAs(t, err, &ce)
	assert.NotNil(t, ce.Cause)
}

func TestChatStream_CancelClosesBackend(t *testing.T) {
	release := make(chan struct{})
	backendDone := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(backendDone)
		fmt.Fprint(w, `{"message":{"content":"first"}}`+"\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := client.OpenChatStream(ctx, "", nil)
	require.NoError(t, err)

	err = stream.Process(ctx, func(c StreamChunk) error {
		if c.Content == "first" {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	select {
	case <-backendDone:
	case <-time.After(5 * time.Second):
		t.Fatal("backend request was not torn down after cancel")
	}
}

func TestClient_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Stream {
			t.Errorf("Stream = true, want false for Chat")
		}
		io.WriteString(w, `{"model":"llama3.2","message":{"role":"assistant","content":"ok"},"done":true}`)
	}))
	defer srv.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	resp, err := client.Chat(context.Background(), "", []Message{NewUserMessage("test")})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Message.Content)
}

func TestClient_CheckRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "Ollama is running")
	}))
	defer srv.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
	if err := client.CheckRunning(context.Background()); err != nil {
		t.Errorf("CheckRunning() = %v, want nil", err)
	}

	srv.Close()
	if err := client.CheckRunning(context.Background()); !IsNotRunning(err) {
		t.Errorf("CheckRunning() after close = %v, want not running", err)
	}
}

func TestClientError_Is(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &ClientError{Type: ErrTypeTimeout, Message: "slow", Cause: context.DeadlineExceeded})

	if !IsTimeout(err) {
		t.Error("IsTimeout() = false, want true")
	}
	if IsNotRunning(err) {
		t.Error("IsNotRunning() = true, want false")
	}
	if !strings.Contains(err.Error(), "slow: context deadline exceeded") {
		t.Errorf("Error() = %q", err.Error())
	}
}
