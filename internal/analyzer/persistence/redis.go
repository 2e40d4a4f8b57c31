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
	"errors"
	"fmt"
	"time"
)

// RedisEvaler abstracts the minimal surface we need from a Redis
// client. Implementations may wrap github.com/redis/go-redis/v9
// (Cmdable.Eval) or any equivalent.
type RedisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
}

// RedisSink stores summaries idempotently using a Lua script:
//  1. SETNX run:<design>:<run_id> 1
//  2. If set -> HSET timing:<design> with the summary fields
//  3. EXPIRE the marker (TTL) for leak protection
//
// If SETNX fails (already published), returns OK and makes no changes.
type RedisSink struct {
	client    RedisEvaler
	markerTTL time.Duration
}

// NewRedisSink returns a sink with the given client and marker TTL.
// markerTTL guards against unbounded growth of run markers; choose a
// duration comfortably larger than your maximum retry window.
func NewRedisSink(client RedisEvaler, markerTTL time.Duration) *RedisSink {
	if markerTTL <= 0 {
		markerTTL = 24 * time.Hour
	}
	return &RedisSink{client: client, markerTTL: markerTTL}
}

// redisLuaScript performs the idempotent update. It returns 1 if
// applied, 0 if already applied.
const redisLuaScript = `
local summaryKey = KEYS[1]
local markerKey = KEYS[2]
local ttlSeconds = tonumber(ARGV[4])
-- try to set the idempotency marker
local set = redis.call('SETNX', markerKey, 1)
if set == 1 then
  redis.call('HSET', summaryKey,
    'critical_path_ns', ARGV[1],
    'least_slack_ns', ARGV[2],
    'fmax_mhz', ARGV[3],
    'run_id', ARGV[5])
  if ttlSeconds and ttlSeconds > 0 then
    redis.call('EXPIRE', markerKey, ttlSeconds)
  end
  return 1
else
  -- already applied; no-op
  return 0
end
`

// Keys layout helpers (public for interoperability with other components)
func RedisSummaryKey(design string) string { return fmt.Sprintf("timing:%s", design) }
func RedisRunMarkerKey(design, runID string) string {
	return fmt.Sprintf("run:%s:%s", design, runID)
}

// Publish applies the summary with a single EVAL.
func (r *RedisSink) Publish(ctx context.Context, s Summary) error {
	if s.RunID == "" {
		return errors.New("Summary.RunID must be set")
	}
	keys := []string{RedisSummaryKey(s.Design), RedisRunMarkerKey(s.Design, s.RunID)}
	args := []interface{}{s.CriticalPathNs, s.LeastSlackNs, s.FmaxMHz, int(r.markerTTL.Seconds()), s.RunID}
	if _, err := r.client.Eval(ctx, redisLuaScript, keys, args...); err != nil {
		return fmt.Errorf("redis eval design=%s run=%s: %w", s.Design, s.RunID, err)
	}
	return nil
}
