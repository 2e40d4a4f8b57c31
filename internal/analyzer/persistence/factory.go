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
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Options holds the knobs for building sinks.
type Options struct {
	RedisAddr      string
	RedisMarkerTTL time.Duration
	FilePath       string
}

// BuildSink constructs a Sink from a string selector:
//   - "mock" (or ""): in-process logger, the default
//   - "file": append-only JSONL log of summaries
//   - "redis": idempotent Redis sink; uses a logging client when no
//     address is configured, so the demo runs without infrastructure
func BuildSink(adapter string, opts Options) (Sink, error) {
	switch adapter {
	case "", "mock":
		return MockSink{}, nil
	case "file":
		path := opts.FilePath
		if path == "" {
			path = "timing_summaries.jsonl"
		}
		return NewFileSink(path)
	case "redis":
		ttl := opts.RedisMarkerTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		var evaler RedisEvaler
		if opts.RedisAddr != "" {
			evaler = NewGoRedisEvaler(opts.RedisAddr)
		} else {
			evaler = LoggingRedisEvaler{}
		}
		return NewRedisSink(evaler, ttl), nil
	default:
		return nil, fmt.Errorf("unknown persistence adapter: %s", adapter)
	}
}

// MockSink logs summaries to stdout. Used by default so runs work with
// no external stores.
type MockSink struct{}

func (MockSink) Publish(ctx context.Context, s Summary) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	fmt.Printf("[timing] design=%s run=%s cpd=%.3f ns least_slack=%.3f ns fmax=%.2f MHz\n",
		s.Design, s.RunID, s.CriticalPathNs, s.LeastSlackNs, s.FmaxMHz)
	return nil
}

// NewRunID returns a random idempotency key. Callers retrying a publish
// should reuse the original id rather than generating a fresh one.
func NewRunID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
