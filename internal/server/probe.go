// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"log"
	"time"

	"github.com/jeranaias/ollama-relay/internal/ollama"
)

// Probe stages.
const (
	StageConnect = "connect"
	StageChat    = "chat"
)

// ProbeMessage is the prompt sent by the connectivity probe.
const ProbeMessage = "test"

// ProbeResult reports the outcome of a backend probe.
type ProbeResult struct {
	OK      bool
	Stage   string
	Model   string
	Reply   string
	Latency time.Duration

	// Generation time reported by the backend
	Generation time.Duration
	Err        error
}

// Probe checks that the backend is up and that model answers a one-message
// chat. It only logs; callers decide what a failure means.
func Probe(ctx context.Context, client *ollama.Client, model string) ProbeResult {
	if model == "" {
		model = client.DefaultModel()
	}
	start := time.Now()
	res := ProbeResult{Model: model, Stage: StageConnect}

	if err := client.CheckRunning(ctx); err != nil {
		res.Err = err
		res.Latency = time.Since(start)
		log.Printf("PROBE_FAIL | stage=%s backend=%s error=%v", res.Stage, client.BaseURL(), err)
		return res
	}

	res.Stage = StageChat
	resp, err := client.Chat(ctx, model, []ollama.Message{ollama.NewUserMessage(ProbeMessage)})
	res.Latency = time.Since(start)
	if err != nil {
		res.Err = err
		log.Printf("PROBE_FAIL | stage=%s model=%s error=%v", res.Stage, model, err)
		return res
	}

	res.OK = true
	res.Reply = resp.Message.Content
	res.Generation = resp.TotalTime()
	log.Printf("PROBE_OK | model=%s latency=%s generation=%s", model,
		res.Latency.Round(time.Millisecond), res.Generation.Round(time.Millisecond))
	return res
}
