// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/jeranaias/ollama-relay/internal/ollama"
)

// DefaultServerURL is where the relay listens by default.
const DefaultServerURL = "http://localhost:3001"

const readBufferSize = 32 * 1024

// =============================================================================
// ERRORS
// =============================================================================

// RelayError is a failed exchange with the relay server.
type RelayError struct {
	// HTTP status, or 0 when no response arrived
	Status int

	// Error is the relay's short error text
	Message string

	// Details carries the underlying cause as reported by the relay
	Details string

	Cause error
}

func (e *RelayError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

func (e *RelayError) Unwrap() error {
	return e.Cause
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the relay server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the relay at baseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultServerURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Streams run as long as the backend generates; the caller's
		// context bounds them.
		http: &http.Client{},
	}
}

// BaseURL returns the relay URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health checks GET /api/test. Any 2xx with a JSON body means the relay is up.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/test", nil)
	if err != nil {
		return &RelayError{Message: "failed to create request", Cause: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &RelayError{Message: "relay server unreachable", Details: err.Error(), Cause: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RelayError{Status: resp.StatusCode, Message: "relay returned " + resp.Status}
	}
	if !gjson.ValidBytes(body) {
		return &RelayError{Status: resp.StatusCode, Message: "relay returned a non-JSON body"}
	}
	return nil
}

// Model asks the relay which backend model it forwards to, via GET /healthz.
func (c *Client) Model(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return "", &RelayError{Message: "failed to create request", Cause: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &RelayError{Message: "relay server unreachable", Details: err.Error(), Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &RelayError{Status: resp.StatusCode, Message: "relay returned " + resp.Status}
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	return gjson.GetBytes(body, "model").String(), nil
}

type chatRequest struct {
	Message string           `json:"message"`
	History []ollama.Message `json:"history"`
}

// Stream posts one message with its history and calls onFragment for each
// content fragment in arrival order. It returns nil when the relay ends the
// stream, ctx.Err() if ctx is cancelled, and a *RelayError otherwise.
func (c *Client) Stream(ctx context.Context, message string, history []ollama.Message, onFragment func(string)) error {
	if history == nil {
		history = []ollama.Message{}
	}
	body, err := json.Marshal(chatRequest{Message: message, History: history})
	if err != nil {
		return &RelayError{Message: "failed to encode request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return &RelayError{Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &RelayError{Message: "relay server unreachable", Details: err.Error(), Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeErrorResponse(resp)
	}

	stop := context.AfterFunc(ctx, func() { resp.Body.Close() })
	defer stop()

	dec := NewEventDecoder()
	buf := make([]byte, readBufferSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n], onFragment)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				dec.Flush(onFragment)
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &RelayError{Status: resp.StatusCode, Message: "stream interrupted", Details: err.Error(), Cause: err}
		}
	}
}

// decodeErrorResponse turns a non-2xx reply into a RelayError, using the
// relay's {error, details} body when present.
func decodeErrorResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	rerr := &RelayError{Status: resp.StatusCode}
	if gjson.ValidBytes(raw) {
		parsed := gjson.ParseBytes(raw)
		rerr.Message = parsed.Get("error").String()
		rerr.Details = parsed.Get("details").String()
	}
	if rerr.Message == "" {
		rerr.Message = "relay returned " + resp.Status
	}
	return rerr
}
