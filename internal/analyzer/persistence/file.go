// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package persistence

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"
)

// FileSink appends timing summaries to a JSONL log for audit/replay.
// It is safe for concurrent use and optimized for append-only
// workloads. Duplicate RunIDs are skipped so retried publishes stay
// idempotent within one process.
type FileSink struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	path string

	seen      map[string]bool
	lastFlush time.Time
}

// NewFileSink opens (or creates) the file at path in append mode with
// a buffered writer. Call Close() when done.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileSink{
		f:         f,
		w:         bufio.NewWriterSize(f, 1<<20 /*1MiB*/),
		path:      path,
		seen:      make(map[string]bool),
		lastFlush: time.Now(),
	}, nil
}

// Publish writes the summary as one JSON line.
func (s *FileSink) Publish(ctx context.Context, sum Summary) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	marker := sum.Design + ":" + sum.RunID
	if s.seen[marker] {
		return nil
	}
	enc := json.NewEncoder(s.w)
	if err := enc.Encode(&sum); err != nil {
		// best effort: on error, try to flush and retry once
		_ = s.w.Flush()
		if err := enc.Encode(&sum); err != nil {
			return err
		}
	}
	s.seen[marker] = true
	// Flush periodically to bound data loss on crash.
	if time.Since(s.lastFlush) > 100*time.Millisecond {
		_ = s.w.Flush()
		s.lastFlush = time.Now()
	}
	return nil
}

// Flush forces buffered data to be written to disk.
func (s *FileSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFlush = time.Now()
	return s.w.Flush()
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.w.Flush()
	return s.f.Close()
}

// ReadAllSummaries reads an entire summary log as a slice. Intended
// for replay and tests.
func ReadAllSummaries(path string) ([]Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []Summary
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 1<<20)
	scanner.Buffer(buf, 1<<26)
	for scanner.Scan() {
		var s Summary
		if err := json.Unmarshal(scanner.Bytes(), &s); err == nil {
			out = append(out, s)
		}
	}
	return out, scanner.Err()
}
