// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"github.com/jeranaias/ollama-relay/internal/model"
	"github.com/jeranaias/ollama-relay/internal/storage"
	"github.com/jeranaias/ollama-relay/internal/util"
)

var (
	// ErrTurnInFlight is returned when input arrives while a reply is streaming.
	ErrTurnInFlight = errors.New("a reply is still streaming")

	// ErrEmptyInput is returned for blank input.
	ErrEmptyInput = errors.New("message is empty")
)

// SessionConfig bounds a session's conversation.
type SessionConfig struct {
	// Prior messages sent with each new one
	HistoryWindow int

	// Conversation length bound
	MaxMessages int
}

// DefaultSessionConfig returns the standard bounds.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		HistoryWindow: model.DefaultHistoryWindow,
		MaxMessages:   model.MaxMessages,
	}
}

// =============================================================================
// SESSION
// =============================================================================

// Session is one chat: the conversation, where it is persisted, and the relay
// it talks to. One turn runs at a time. Every mutation is written to the
// store so a restart resumes where the user left off.
type Session struct {
	client *Client
	store  *storage.Store
	window int

	mu   sync.Mutex
	conv *model.Conversation

	busy atomic.Bool
}

// NewSession creates a session. store may be nil to keep history in memory only.
func NewSession(client *Client, store *storage.Store, cfg SessionConfig) *Session {
	if cfg.HistoryWindow < 0 {
		cfg.HistoryWindow = 0
	}
	return &Session{
		client: client,
		store:  store,
		window: cfg.HistoryWindow,
		conv:   model.NewConversationWithLimit(cfg.MaxMessages),
	}
}

// Client returns the relay client.
func (s *Session) Client() *Client {
	return s.client
}

// Load rehydrates the conversation from the store. A corrupt stored value is
// logged and the session starts empty.
func (s *Session) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	msgs, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrCorrupt) {
			log.Printf("HISTORY_CORRUPT | error=%v", err)
			return nil
		}
		return err
	}

	s.mu.Lock()
	s.conv.Replace(msgs)
	s.mu.Unlock()
	return nil
}

// Busy reports whether a turn is in flight.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// Messages returns a copy of the conversation.
func (s *Session) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.Messages()
}

// Submit runs one turn: it records the user message and an empty assistant
// placeholder, streams the reply into the placeholder, and calls onUpdate
// after every change. On failure a system message describing the error is
// appended and the error is returned. onUpdate may be nil.
func (s *Session) Submit(ctx context.Context, input string, onUpdate func()) error {
	text := util.NormalizeInput(input)
	if text == "" {
		return ErrEmptyInput
	}
	if !s.busy.CompareAndSwap(false, true) {
		return ErrTurnInFlight
	}
	defer s.busy.Store(false)

	notify := func() {
		if onUpdate != nil {
			onUpdate()
		}
	}
	// Persist even after the turn is cancelled.
	saveCtx := context.WithoutCancel(ctx)

	s.mu.Lock()
	history := s.conv.History(s.window)
	s.conv.AddUserMessage(text)
	s.persistLocked(saveCtx)
	s.conv.AddAssistantMessage()
	s.persistLocked(saveCtx)
	s.mu.Unlock()
	notify()

	err := s.client.Stream(ctx, text, history, func(fragment string) {
		s.mu.Lock()
		s.conv.AppendToLast(fragment)
		s.persistLocked(saveCtx)
		s.mu.Unlock()
		notify()
	})
	if err == nil {
		return nil
	}

	s.mu.Lock()
	s.conv.AddSystemMessage("Error: " + describe(err))
	s.persistLocked(saveCtx)
	s.mu.Unlock()
	notify()
	return err
}

// Clear empties the conversation and removes the persisted copy.
func (s *Session) Clear(ctx context.Context) error {
	if s.busy.Load() {
		return ErrTurnInFlight
	}

	s.mu.Lock()
	s.conv.Clear()
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	return s.store.Delete(ctx)
}

func (s *Session) persistLocked(ctx context.Context) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, s.conv.Messages()); err != nil {
		log.Printf("HISTORY_SAVE_FAILED | error=%v", err)
	}
}

func describe(err error) string {
	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}
	return err.Error()
}
