// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/openclaw-foundation/clawbridge/lib/codec"
)

// Checkpoint is the persisted cursor and dedup state for sessions.
// Restoring it after a restart preserves the at-most-one-run guarantee
// for notifications that were handled before the process died.
type Checkpoint struct {
	SavedAt  int64                       `cbor:"saved_at"`
	Sessions map[int64]SessionCheckpoint `cbor:"sessions"`
}

// SessionCheckpoint is one session's slice of a Checkpoint.
type SessionCheckpoint struct {
	LastSignalID         int64            `cbor:"last_signal_id"`
	LastNonAgentSignalID int64            `cbor:"last_non_agent_signal_id"`
	ProcessedKeys        map[string]int64 `cbor:"processed_keys"`
}

// SaveCheckpoint writes the states' cursors and dedup maps to path.
// Dedup keys outside the window are dropped on the way out. The write
// is atomic (temp file plus rename) so a crash mid-save leaves the
// previous checkpoint intact.
func SaveCheckpoint(path string, states []*SessionState, now time.Time, window time.Duration) error {
	checkpoint := Checkpoint{
		SavedAt:  now.Unix(),
		Sessions: make(map[int64]SessionCheckpoint, len(states)),
	}
	cutoff := now.Add(-window)

	for _, state := range states {
		checkpoint.Sessions[state.SessionID] = state.checkpointEntry(cutoff, window)
	}

	encoded, err := codec.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("bridge: encoding checkpoint: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("bridge: creating checkpoint directory: %w", err)
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, encoded, 0o644); err != nil {
		return fmt.Errorf("bridge: writing checkpoint: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("bridge: replacing checkpoint: %w", err)
	}
	return nil
}

// checkpointEntry snapshots the state's cursors and dedup keys under
// the state lock. The checkpoint saver calls this from its own
// goroutine while the event loop keeps handling signals.
func (s *SessionState) checkpointEntry(cutoff time.Time, window time.Duration) SessionCheckpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := SessionCheckpoint{
		LastSignalID:         s.LastSignalID,
		LastNonAgentSignalID: s.LastNonAgentSignalID,
		ProcessedKeys:        make(map[string]int64, len(s.processedInboundKeys)),
	}
	for key, processedAt := range s.processedInboundKeys {
		if window > 0 && processedAt.Before(cutoff) {
			continue
		}
		entry.ProcessedKeys[key] = processedAt.Unix()
	}
	return entry
}

// LoadCheckpoint reads a checkpoint from path. A missing file is not
// an error; it returns an empty checkpoint.
func LoadCheckpoint(path string) (Checkpoint, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Checkpoint{Sessions: map[int64]SessionCheckpoint{}}, nil
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("bridge: reading checkpoint: %w", err)
	}

	var checkpoint Checkpoint
	if err := codec.Unmarshal(data, &checkpoint); err != nil {
		return Checkpoint{}, fmt.Errorf("bridge: decoding checkpoint: %w", err)
	}
	if checkpoint.Sessions == nil {
		checkpoint.Sessions = map[int64]SessionCheckpoint{}
	}
	return checkpoint, nil
}

// Restore folds a session checkpoint into the state. Cursor fields
// merge monotonically, so restoring an older checkpoint over fresher
// in-memory state cannot move anything backward.
func (s *SessionState) Restore(entry SessionCheckpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.LastSignalID > s.LastSignalID {
		s.LastSignalID = entry.LastSignalID
	}
	if entry.LastNonAgentSignalID > s.LastNonAgentSignalID {
		s.LastNonAgentSignalID = entry.LastNonAgentSignalID
	}
	for key, unixSeconds := range entry.ProcessedKeys {
		if _, seen := s.processedInboundKeys[key]; !seen {
			s.processedInboundKeys[key] = time.Unix(unixSeconds, 0)
		}
	}
}
