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

package engine

// Per-context diagnostic counters used for the end-of-run summary.
// Atomic so telemetry exporters can read them while an analysis is in
// flight without coordination.

import "sync/atomic"

// Counters tallies notable events over the lifetime of one analyzer
// context.
type Counters struct {
	Analyses     atomic.Int64 // completed Analyze calls
	LoopsBroken  atomic.Int64 // edges cut to break combinational cycles
	DanglingPins atomic.Int64 // sink nodes that are not real path endpoints
	Warnings     atomic.Int64 // all warnings emitted
}

// CountersSnapshot is a point-in-time copy of the counters.
type CountersSnapshot struct {
	Analyses     int64
	LoopsBroken  int64
	DanglingPins int64
	Warnings     int64
}

func (c *Counters) snapshot() CountersSnapshot {
	return CountersSnapshot{
		Analyses:     c.Analyses.Load(),
		LoopsBroken:  c.LoopsBroken.Load(),
		DanglingPins: c.DanglingPins.Load(),
		Warnings:     c.Warnings.Load(),
	}
}
