// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"log"

	"github.com/tidwall/gjson"
)

// =============================================================================
// RECORD DECODER
// =============================================================================

// RecordDecoder turns raw body chunks into newline-delimited JSON records.
//
// Chunk boundaries carry no meaning: a record may be split across several
// chunks and one chunk may hold several records. Bytes after the last newline
// stay pending until the next Feed or the final Flush.
type RecordDecoder struct {
	pending []byte
	records int
	dropped int
}

// NewRecordDecoder creates an empty decoder.
func NewRecordDecoder() *RecordDecoder {
	return &RecordDecoder{}
}

// Feed appends a chunk and emits every complete record it closes, in order.
// Emission stops early if emit returns an error.
func (d *RecordDecoder) Feed(chunk []byte, emit func(StreamChunk) error) error {
	d.pending = append(d.pending, chunk...)

	for {
		idx := bytes.IndexByte(d.pending, '\n')
		if idx < 0 {
			break
		}
		line := d.pending[:idx]
		rest := d.pending[idx+1:]

		if err := d.decodeLine(line, emit); err != nil {
			d.pending = append(d.pending[:0], rest...)
			return err
		}
		d.pending = rest
	}

	// Compact so a long stream doesn't pin the whole history of the buffer.
	if len(d.pending) == 0 {
		d.pending = d.pending[:0:0]
	} else {
		d.pending = append([]byte(nil), d.pending...)
	}
	return nil
}

// Flush decodes whatever is left once the body has ended. A backend that
// omits the final newline still gets its last record delivered.
func (d *RecordDecoder) Flush(emit func(StreamChunk) error) error {
	line := d.pending
	d.pending = nil
	return d.decodeLine(line, emit)
}

// Pending returns the number of buffered bytes not yet forming a record.
func (d *RecordDecoder) Pending() int {
	return len(d.pending)
}

// Records returns the number of records decoded successfully.
func (d *RecordDecoder) Records() int {
	return d.records
}

// Dropped returns the number of malformed records skipped.
func (d *RecordDecoder) Dropped() int {
	return d.dropped
}

func (d *RecordDecoder) decodeLine(line []byte, emit func(StreamChunk) error) error {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}

	if !gjson.ValidBytes(line) {
		d.dropped++
		log.Printf("STREAM_DROP | reason=invalid_json bytes=%d", len(line))
		return nil
	}

	record := gjson.ParseBytes(line)
	if !record.IsObject() {
		d.dropped++
		log.Printf("STREAM_DROP | reason=not_an_object bytes=%d", len(line))
		return nil
	}

	d.records++
	chunk := StreamChunk{
		Content:    record.Get("message.content").String(),
		Done:       record.Get("done").Bool(),
		DoneReason: record.Get("done_reason").String(),
		Model:      record.Get("model").String(),
	}
	if e := record.Get("error"); e.Exists() {
		chunk.Error = &ClientError{Type: ErrTypeInvalidResponse, Message: e.String()}
	}

	return emit(chunk)
}
