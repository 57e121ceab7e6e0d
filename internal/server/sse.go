// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
)

// ContentEvent is the payload of every forwarded fragment.
type ContentEvent struct {
	Content string `json:"content"`
}

// ErrNoFlush is returned when the response writer cannot flush.
var ErrNoFlush = errors.New("response writer does not support flushing")

// EventWriter writes server-sent event frames, flushing after each one.
type EventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	buf     bytes.Buffer
}

// NewEventWriter wraps w. Nothing is written until Start.
func NewEventWriter(w http.ResponseWriter) (*EventWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrNoFlush
	}
	return &EventWriter{w: w, flusher: flusher}, nil
}

// Start sends the event-stream headers and a 200 status.
func (e *EventWriter) Start() {
	h := e.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	e.w.WriteHeader(http.StatusOK)
	e.flusher.Flush()
}

// Send writes one "data: <json>\n\n" frame and flushes it.
func (e *EventWriter) Send(v interface{}) error {
	e.buf.Reset()
	e.buf.WriteString("data: ")

	enc := json.NewEncoder(&e.buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encode already ended the payload with one newline.
	e.buf.WriteByte('\n')

	if _, err := e.w.Write(e.buf.Bytes()); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}
