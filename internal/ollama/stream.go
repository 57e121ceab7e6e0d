// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// readBufferSize is the size of each raw read from the backend body.
const readBufferSize = 32 * 1024

// StreamCallback is called for each record decoded during streaming.
// Returning an error stops the stream and is returned from Process.
type StreamCallback func(chunk StreamChunk) error

// =============================================================================
// CHAT STREAM
// =============================================================================

// ChatStream is an open streaming response from /api/chat.
// It owns the response body until Close is called.
type ChatStream struct {
	body      io.ReadCloser
	decoder   *RecordDecoder
	model     string
	startTime time.Time

	closeOnce sync.Once
}

// NewChatStream wraps a streaming body. Exposed for tests and callers that
// already hold an NDJSON reader.
func NewChatStream(body io.ReadCloser, model string) *ChatStream {
	return &ChatStream{
		body:      body,
		decoder:   NewRecordDecoder(),
		model:     model,
		startTime: time.Now(),
	}
}

// Process pumps the body through the record decoder and calls the callback
// for each record as soon as it is complete. Nothing is buffered beyond the
// current partial record.
//
// Returns nil when the backend closes the stream, ctx.Err() when the context
// is cancelled, and the callback's error if it returns one.
func (s *ChatStream) Process(ctx context.Context, callback StreamCallback) error {
	// Closing the body unblocks a Read stuck waiting on the backend.
	stop := context.AfterFunc(ctx, s.Close)
	defer stop()

	buf := make([]byte, readBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := s.body.Read(buf)
		if n > 0 {
			if cbErr := s.decoder.Feed(buf[:n], callback); cbErr != nil {
				return cbErr
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return s.decoder.Flush(callback)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &ClientError{Type: ErrTypeConnection, Message: "stream read failed", Cause: err}
		}
	}
}

// Close releases the response body. Safe to call more than once.
func (s *ChatStream) Close() {
	s.closeOnce.Do(func() {
		s.body.Close()
	})
}

// Model returns the model the stream was requested for.
func (s *ChatStream) Model() string {
	return s.model
}

// Stats returns decoding statistics collected so far.
func (s *ChatStream) Stats() StreamStats {
	return StreamStats{
		Records:  s.decoder.Records(),
		Dropped:  s.decoder.Dropped(),
		Duration: time.Since(s.startTime),
	}
}

// =============================================================================
// STREAM STATISTICS
// =============================================================================

// StreamStats holds counters collected while streaming.
type StreamStats struct {
	Records  int
	Dropped  int
	Duration time.Duration
}
