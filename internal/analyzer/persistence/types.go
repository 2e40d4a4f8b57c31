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

// Package persistence publishes timing analysis summaries to external
// stores so CI dashboards can track a design's timing over time. The
// Redis and file sinks apply a summary idempotently: re-publishing the
// same run (crash, retry, duplicate delivery) is a no-op. MockSink keeps
// no state and logs every publish.
package persistence

import "context"

// Summary is the per-run record a sink stores.
//
// Fields:
//   - Design: the circuit name, the logical key results are grouped by.
//   - RunID: globally unique idempotency key for this analysis run.
//     Re-using the same id for a retried publish makes it a no-op.
//   - CriticalPathNs / LeastSlackNs: headline numbers in ns.
//   - FmaxMHz: 1/cpd; only meaningful for single-clock designs (0 otherwise).
type Summary struct {
	Design         string
	RunID          string
	CriticalPathNs float64
	LeastSlackNs   float64
	FmaxMHz        float64
}

// Sink is the minimal API supported by all adapters. Implementations
// must apply each summary atomically with respect to its idempotency
// key and must be safe to retry: a duplicate RunID for the same Design
// becomes a no-op.
type Sink interface {
	Publish(ctx context.Context, s Summary) error
}
