// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"sync"
	"time"

	"github.com/openclaw-foundation/clawbridge/hub"
)

// Signal sources, recorded for logging and the journal.
const (
	SourcePush = "push"
	SourcePoll = "poll"
)

// SessionState tracks one bridged session for its lifetime. It owns
// the session's subscription handle and dedup map exclusively; both
// are released when the session closes.
//
// LastSignalID and LastNonAgentSignalID are non-decreasing, and
// LastNonAgentSignalID <= LastSignalID always: every observation
// updates LastSignalID, while only non-agent senders advance
// LastNonAgentSignalID.
type SessionState struct {
	SessionID int64

	Closed      bool
	CloseReason string

	// LastSignalID is the highest signal id observed from any sender.
	LastSignalID int64
	// LastNonAgentSignalID is the highest signal id observed from a
	// sender other than the agent. The poll cursor derives from this
	// field, never from LastSignalID: polling exists to backfill
	// non-agent signals the push path may not have delivered, and an
	// agent-originated signal must not raise the backfill floor.
	LastNonAgentSignalID int64

	ConnectionState   hub.ConnectionState
	SawConnectedState bool

	// Poll scheduling. LastRateLimitLogAt throttles log output on
	// repeated 429s; it is not a retry or backoff mechanism.
	LastSignalPollAt   time.Time
	NextSignalPollAt   time.Time
	LastRateLimitLogAt time.Time

	// mu guards the cursors and the dedup map: the event loop writes
	// them while the checkpoint saver snapshots them from its own
	// goroutine.
	mu sync.Mutex

	// processedInboundKeys maps notification dedup keys to the time
	// they were first acted on.
	processedInboundKeys map[string]time.Time

	subscription *hub.Subscription
}

// NewSessionState creates the state for one bridged session.
func NewSessionState(sessionID int64) *SessionState {
	return &SessionState{
		SessionID:            sessionID,
		ConnectionState:      hub.StateUnknown,
		processedInboundKeys: make(map[string]time.Time),
	}
}

// ObserveSignal folds one signal into the ordering cursors. Idempotent
// under re-delivery: both updates are monotonic maxima.
func (s *SessionState) ObserveSignal(signal hub.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if signal.ID > s.LastSignalID {
		s.LastSignalID = signal.ID
	}
	if signal.Sender != hub.SenderAgent && signal.ID > s.LastNonAgentSignalID {
		s.LastNonAgentSignalID = signal.ID
	}
}

// MarkProcessed records a dedup key, returning false if the key was
// already present. Keys older than window are pruned on the way in so
// the map cannot grow without bound.
func (s *SessionState) MarkProcessed(key string, now time.Time, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneProcessedLocked(now, window)
	if _, seen := s.processedInboundKeys[key]; seen {
		return false
	}
	s.processedInboundKeys[key] = now
	return true
}

func (s *SessionState) pruneProcessedLocked(now time.Time, window time.Duration) {
	if window <= 0 {
		return
	}
	cutoff := now.Add(-window)
	for key, processedAt := range s.processedInboundKeys {
		if processedAt.Before(cutoff) {
			delete(s.processedInboundKeys, key)
		}
	}
}

// ProcessedCount reports the current dedup map size.
func (s *SessionState) ProcessedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processedInboundKeys)
}

// Close marks the session closed and releases its subscription.
func (s *SessionState) Close(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Closed {
		return
	}
	s.Closed = true
	s.CloseReason = reason
	if s.subscription != nil {
		s.subscription.Close()
		s.subscription = nil
	}
	s.processedInboundKeys = nil
}
