// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal keeps an append-only record of every signal the
// bridge handles, for audit and replay. The active chunk is plain
// JSONL so it stays greppable while live; rotated chunks are
// zstd-compressed, which suits the highly repetitive JSON well.
package journal

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const activeChunkName = "journal.jsonl"

// Journal is an append-only, size-rotated JSONL journal. Safe for
// concurrent use.
type Journal struct {
	dir           string
	maxChunkBytes int64
	logger        *slog.Logger

	mu     sync.Mutex
	file   *os.File
	size   int64
	closed bool
}

// Open opens (or creates) the journal in dir. An existing active chunk
// is appended to, not truncated.
func Open(dir string, maxChunkBytes int64, logger *slog.Logger) (*Journal, error) {
	if maxChunkBytes <= 0 {
		return nil, fmt.Errorf("journal: maxChunkBytes must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: creating directory: %w", err)
	}

	journal := &Journal{dir: dir, maxChunkBytes: maxChunkBytes, logger: logger}
	if err := journal.openActive(); err != nil {
		return nil, err
	}
	return journal, nil
}

func (j *Journal) openActive() error {
	path := filepath.Join(j.dir, activeChunkName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("journal: opening active chunk: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("journal: stat active chunk: %w", err)
	}
	j.file = file
	j.size = info.Size()
	return nil
}

// Append writes one record as a JSON line and rotates the chunk when
// it has grown past the size threshold.
func (j *Journal) Append(record any) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("journal: encoding record: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return fmt.Errorf("journal: closed")
	}

	if _, err := j.file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("journal: writing record: %w", err)
	}
	j.size += int64(len(encoded)) + 1

	if j.size >= j.maxChunkBytes {
		return j.rotateLocked()
	}
	return nil
}

// rotateLocked closes the active chunk, compresses it into a
// timestamped .zst file, and starts a fresh active chunk.
func (j *Journal) rotateLocked() error {
	if err := j.file.Close(); err != nil {
		return fmt.Errorf("journal: closing chunk for rotation: %w", err)
	}

	activePath := filepath.Join(j.dir, activeChunkName)
	rotatedBase := fmt.Sprintf("journal-%d", time.Now().UnixNano())
	rawPath := filepath.Join(j.dir, rotatedBase+".jsonl")
	if err := os.Rename(activePath, rawPath); err != nil {
		return fmt.Errorf("journal: renaming chunk: %w", err)
	}

	if err := compressChunk(rawPath, rawPath+".zst"); err != nil {
		// The raw chunk stays behind uncompressed. Nothing is lost,
		// it just takes more disk until the next successful rotation.
		j.logger.Warn("chunk compression failed", "chunk", rawPath, "error", err)
	} else if err := os.Remove(rawPath); err != nil {
		j.logger.Warn("removing raw chunk failed", "chunk", rawPath, "error", err)
	}

	return j.openActive()
}

// compressChunk writes a zstd-compressed copy of src to dst.
func compressChunk(src, dst string) error {
	input, err := os.Open(src)
	if err != nil {
		return err
	}
	defer input.Close()

	output, err := os.Create(dst)
	if err != nil {
		return err
	}

	encoder, err := zstd.NewWriter(output)
	if err != nil {
		output.Close()
		return err
	}
	if _, err := io.Copy(encoder, input); err != nil {
		encoder.Close()
		output.Close()
		return err
	}
	if err := encoder.Close(); err != nil {
		output.Close()
		return err
	}
	return output.Close()
}

// Close flushes and closes the active chunk.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.file.Close()
}
