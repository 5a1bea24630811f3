// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package transcript reads persisted agent session transcripts and
// extracts the most recent visible assistant reply.
//
// The session index is a JSON object keyed by composite session key
// (see [SessionKey]). Each entry carries either an inline ordered
// message list or a path to a newline-delimited JSON transcript file.
// Extraction scans backward from the newest record; malformed records
// are skipped, never fatal, because a partially written trailing line
// is normal for a live transcript.
package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SessionKey builds the composite key under which a bridged session's
// transcript is stored in the index.
func SessionKey(agentKey, provider string, sessionID int64) string {
	return fmt.Sprintf("agent:%s:%s:%d", agentKey, provider, sessionID)
}

// Store reads session transcripts from a persisted session index file.
type Store struct {
	indexPath string
}

// NewStore returns a Store reading from the given session index path.
func NewStore(indexPath string) *Store {
	return &Store{indexPath: indexPath}
}

// indexEntry is one session's record in the index. Exactly one of
// Messages or SessionFile is expected to be populated.
type indexEntry struct {
	Messages    []json.RawMessage `json:"messages"`
	SessionFile string            `json:"sessionFile"`
}

// transcriptMessage is one role/content record. Content is either a
// plain string or a list of typed blocks; it stays raw until
// visibleText inspects it.
type transcriptMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// transcriptLine is one record of a file-backed transcript.
type transcriptLine struct {
	Message transcriptMessage `json:"message"`
}

// contentBlock is one element of a typed content list.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// LatestAssistantText returns the newest visible assistant reply for
// the session, with a single leading reply marker stripped. The second
// return value is false when the session has no visible assistant text
// at all; the caller decides what to fall back to.
//
// An unreadable or unparsable index also reports false rather than an
// error: the extractor is a fallback source and absence is an answer.
func (s *Store) LatestAssistantText(sessionKey string) (string, bool) {
	data, err := os.ReadFile(s.indexPath)
	if err != nil {
		return "", false
	}

	var index map[string]indexEntry
	if err := json.Unmarshal(data, &index); err != nil {
		return "", false
	}

	entry, ok := index[sessionKey]
	if !ok {
		return "", false
	}

	if len(entry.Messages) > 0 {
		return latestFromInline(entry.Messages)
	}
	if entry.SessionFile != "" {
		path := entry.SessionFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(s.indexPath), path)
		}
		return latestFromFile(path)
	}
	return "", false
}

// latestFromInline scans an inline message list backward for the
// newest visible assistant text.
func latestFromInline(messages []json.RawMessage) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		var message transcriptMessage
		if err := json.Unmarshal(messages[i], &message); err != nil {
			continue
		}
		if text, ok := assistantText(message); ok {
			return text, true
		}
	}
	return "", false
}

// latestFromFile scans a newline-delimited JSON transcript backward.
// Malformed lines are skipped and the next older line is tried.
func latestFromFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}

	lines := strings.Split(string(data), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		var record transcriptLine
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			continue
		}
		if text, ok := assistantText(record.Message); ok {
			return text, true
		}
	}
	return "", false
}

// assistantText returns the message's visible text when the message is
// an assistant message with visible content.
func assistantText(message transcriptMessage) (string, bool) {
	if message.Role != "assistant" {
		return "", false
	}
	text, ok := visibleText(message.Content)
	if !ok {
		return "", false
	}
	return StripReplyMarker(text), true
}

// visibleText extracts displayable text from a content value. A plain
// string is used directly. A list of typed blocks is scanned in order,
// skipping non-visible block types (thinking traces and the like), and
// the first text block wins.
func visibleText(content json.RawMessage) (string, bool) {
	if len(content) == 0 {
		return "", false
	}

	var plain string
	if err := json.Unmarshal(content, &plain); err == nil {
		return plain, true
	}

	var blocks []contentBlock
	if err := json.Unmarshal(content, &blocks); err != nil {
		return "", false
	}
	for _, block := range blocks {
		if block.Type == "text" {
			return block.Text, true
		}
	}
	return "", false
}
