// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"testing"
	"time"

	"github.com/openclaw-foundation/clawbridge/hub"
)

func TestObserveSignalMonotonic(t *testing.T) {
	state := NewSessionState(1)

	state.ObserveSignal(hub.Signal{ID: 10, Sender: hub.SenderAgent})
	if state.LastSignalID != 10 || state.LastNonAgentSignalID != 0 {
		t.Errorf("cursors = %d/%d, want 10/0", state.LastSignalID, state.LastNonAgentSignalID)
	}

	state.ObserveSignal(hub.Signal{ID: 9, Sender: hub.SenderSystem})
	if state.LastSignalID != 10 {
		t.Errorf("LastSignalID = %d, must not regress", state.LastSignalID)
	}
	if state.LastNonAgentSignalID != 9 {
		t.Errorf("LastNonAgentSignalID = %d, want 9", state.LastNonAgentSignalID)
	}

	// Re-delivery changes nothing.
	state.ObserveSignal(hub.Signal{ID: 9, Sender: hub.SenderSystem})
	state.ObserveSignal(hub.Signal{ID: 10, Sender: hub.SenderAgent})
	if state.LastSignalID != 10 || state.LastNonAgentSignalID != 9 {
		t.Errorf("cursors = %d/%d after re-delivery, want 10/9",
			state.LastSignalID, state.LastNonAgentSignalID)
	}
	if state.LastNonAgentSignalID > state.LastSignalID {
		t.Error("invariant violated: non-agent cursor above signal cursor")
	}
}

func TestMarkProcessedDedup(t *testing.T) {
	state := NewSessionState(1)
	now := time.Unix(1_700_000_000, 0)

	if !state.MarkProcessed("4:notification.created", now, time.Hour) {
		t.Error("first mark should succeed")
	}
	if state.MarkProcessed("4:notification.created", now, time.Hour) {
		t.Error("second mark of same key should report seen")
	}
	if !state.MarkProcessed("5:notification.created", now, time.Hour) {
		t.Error("different key should succeed")
	}
}

func TestMarkProcessedEviction(t *testing.T) {
	state := NewSessionState(1)
	start := time.Unix(1_700_000_000, 0)

	state.MarkProcessed("old", start, time.Hour)
	later := start.Add(2 * time.Hour)
	// Inserting after the window prunes the stale key, so it can be
	// acted on again.
	if !state.MarkProcessed("old", later, time.Hour) {
		t.Error("evicted key should be markable again")
	}
	if state.ProcessedCount() != 1 {
		t.Errorf("ProcessedCount = %d, want 1 after eviction", state.ProcessedCount())
	}
}

func TestClose(t *testing.T) {
	state := NewSessionState(1)
	state.Close("test shutdown")

	if !state.Closed || state.CloseReason != "test shutdown" {
		t.Errorf("state = %+v", state)
	}
	// Idempotent; the first reason sticks.
	state.Close("second reason")
	if state.CloseReason != "test shutdown" {
		t.Errorf("CloseReason = %q", state.CloseReason)
	}
}
