// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"bytes"
	"log"

	"github.com/tidwall/gjson"
)

var dataPrefix = []byte("data: ")

// EventDecoder splits a server-sent event body into lines and extracts the
// content of each "data: " line. A line split across reads is held until
// its newline arrives.
type EventDecoder struct {
	pending []byte
	events  int
	skipped int
}

// NewEventDecoder creates an empty decoder.
func NewEventDecoder() *EventDecoder {
	return &EventDecoder{}
}

// Feed consumes one chunk and calls emit for every complete data line.
func (d *EventDecoder) Feed(chunk []byte, emit func(string)) {
	d.pending = append(d.pending, chunk...)
	for {
		i := bytes.IndexByte(d.pending, '\n')
		if i < 0 {
			return
		}
		d.decodeLine(d.pending[:i], emit)
		d.pending = d.pending[i+1:]
	}
}

// Flush decodes a final unterminated line, if any.
func (d *EventDecoder) Flush(emit func(string)) {
	if len(d.pending) > 0 {
		d.decodeLine(d.pending, emit)
		d.pending = nil
	}
}

// Events returns how many fragments were emitted.
func (d *EventDecoder) Events() int {
	return d.events
}

// Skipped returns how many data lines could not be parsed.
func (d *EventDecoder) Skipped() int {
	return d.skipped
}

func (d *EventDecoder) decodeLine(line []byte, emit func(string)) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if !bytes.HasPrefix(line, dataPrefix) {
		return
	}
	payload := line[len(dataPrefix):]

	if !gjson.ValidBytes(payload) {
		d.skipped++
		log.Printf("SSE_SKIP | reason=invalid_json bytes=%d", len(payload))
		return
	}
	content := gjson.GetBytes(payload, "content")
	if content.Type != gjson.String {
		d.skipped++
		log.Printf("SSE_SKIP | reason=no_content bytes=%d", len(payload))
		return
	}

	d.events++
	emit(content.String())
}
