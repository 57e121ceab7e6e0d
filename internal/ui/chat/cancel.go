// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
)

// turnCanceller holds the cancel function of the turn in flight. The turn
// goroutine and the Update loop both touch it, so it is shared by pointer and
// never copied with the Model.
type turnCanceller struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func newTurnCanceller() *turnCanceller {
	return &turnCanceller{}
}

// set stores fn, cancelling any previous turn that was never cleared.
func (tc *turnCanceller) set(fn context.CancelFunc) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.cancel != nil {
		tc.cancel()
	}
	tc.cancel = fn
}

// fire cancels the stored turn and reports whether one was stored.
func (tc *turnCanceller) fire() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.cancel == nil {
		return false
	}
	tc.cancel()
	tc.cancel = nil
	return true
}
