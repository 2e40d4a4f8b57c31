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

// Package engine runs the static timing analysis proper: for every
// active pair of source and sink clock domains it performs one forward
// and one backward topological traversal over the levelized timing
// graph, then folds the results into per-net-sink slacks and
// criticalities. The analyzer context owns the graph, the constraint
// store and all scratch state; one context must not be used from more
// than one goroutine.
package engine

import (
	"fmt"
	"log"
	"math"

	"sta"
	"sta/internal/analyzer/build"
	"sta/internal/analyzer/netlist"
	"sta/internal/analyzer/sdc"
)

// Slack definitions select how negative slacks are normalized for the
// optimizers. The final analysis always reports true slacks.
const (
	SlackReqRelaxed    = "R" // clamp required times up to the max arrival, per constraint
	SlackShiftImproved = "I" // shift all slacks up by the most negative design slack
	SlackShifted       = "S" // like I, with one global criticality denominator
	SlackGlobalRelaxed = "G" // like R, with one global criticality denominator
	SlackClipped       = "C" // clip negative slacks to zero
	SlackNone          = "N" // no normalization
)

// Options configures one analyzer context.
type Options struct {
	// SlackDefinition is one of R, I, S, G, C, N. Empty means R.
	SlackDefinition string

	// RebalanceLUTs permutes logically equivalent LUT inputs during the
	// forward traversal so the most critical signal takes the fastest
	// physical input.
	RebalanceLUTs bool

	// PathCounting allocates Slacks.PathCriticality and zeroes it at the
	// start of every analysis; no analysis pass writes any other value
	// into it. The pre-packing normalized costs (normalized slack,
	// arrival and total critical paths per node) are maintained when
	// New's prepack argument is true, independently of this field.
	PathCounting bool

	// Warnf receives non-fatal diagnostics. Defaults to log.Printf.
	Warnf func(format string, args ...interface{})
}

// Slacks is the analysis output bundle, indexed [net][sink pin] with
// sink pins numbered from 1 (index 0 is the net driver and unused).
// Unanalyzed sinks keep +Inf slack and zero criticality.
type Slacks struct {
	Slack             [][]float64
	TimingCriticality [][]float64
	PathCriticality   [][]float64 // allocated only when path counting is on
}

// Analyzer is one analysis context.
type Analyzer struct {
	res     *build.Result
	g       *sta.Graph
	nl      *netlist.Netlist
	cons    *sdc.Constraints
	opts    Options
	prepack bool

	slacks *Slacks

	// Per-constraint statistics, [src][snk] over clock domains.
	cpd        [][]float64 // critical path delay, excluding sink clock skew
	leastSlack [][]float64

	// Pre-packing scratch, indexed by node.
	critInputPaths  []float64
	critOutputPaths []float64
	normSlack       []float64
	normTArr        []float64
	normTotalPaths  []float64

	counters Counters
}

// New builds an analyzer context: breaks combinational loops, levelizes
// the graph, propagates clock domains and skew, prunes constraints that
// no path activates, and allocates the slack bundle. The constraint
// store is converted to seconds as a side effect.
func New(res *build.Result, nl *netlist.Netlist, cons *sdc.Constraints, prepack bool, opts Options) (*Analyzer, error) {
	if opts.SlackDefinition == "" {
		opts.SlackDefinition = SlackReqRelaxed
	}
	switch opts.SlackDefinition {
	case SlackReqRelaxed, SlackShiftImproved, SlackShifted, SlackGlobalRelaxed, SlackClipped, SlackNone:
	default:
		return nil, fmt.Errorf("engine: unknown slack definition %q", opts.SlackDefinition)
	}
	if opts.Warnf == nil {
		opts.Warnf = log.Printf
	}

	a := &Analyzer{
		res:     res,
		g:       res.Graph,
		nl:      nl,
		cons:    cons,
		opts:    opts,
		prepack: prepack,
	}

	broken, err := a.g.BreakCombinationalLoops()
	if err != nil {
		return nil, err
	}
	for _, b := range broken {
		a.counters.LoopsBroken.Add(1)
		a.warnf("disconnecting timing graph edge from node %d to node %d to break combinational cycle", b.From, b.To)
	}

	if _, err := a.g.Levelize(); err != nil {
		return nil, err
	}
	if err := a.g.CheckLevels(); err != nil {
		return nil, err
	}

	if err := a.loadClockDomains(); err != nil {
		return nil, err
	}
	a.pruneConstraints()
	cons.ConvertToSeconds()

	a.allocSlacks()
	a.allocStats()
	if prepack {
		n := a.g.NumNodes()
		a.critInputPaths = make([]float64, n)
		a.critOutputPaths = make([]float64, n)
		a.normSlack = make([]float64, n)
		a.normTArr = make([]float64, n)
		a.normTotalPaths = make([]float64, n)
	}
	return a, nil
}

func (a *Analyzer) warnf(format string, args ...interface{}) {
	a.counters.Warnings.Add(1)
	a.opts.Warnf(format, args...)
}

// Graph exposes the levelized timing graph for reporting.
func (a *Analyzer) Graph() *sta.Graph { return a.g }

// Constraints exposes the resolved constraint store.
func (a *Analyzer) Constraints() *sdc.Constraints { return a.cons }

// Build exposes the builder result (net mapping tables).
func (a *Analyzer) Build() *build.Result { return a.res }

// Netlist exposes the primitive netlist backing this context.
func (a *Analyzer) Netlist() *netlist.Netlist { return a.nl }

// Slacks returns the output bundle of the most recent Analyze call.
func (a *Analyzer) Slacks() *Slacks { return a.slacks }

// CountersSnapshot returns the context's diagnostic counters.
func (a *Analyzer) CountersSnapshot() CountersSnapshot { return a.counters.snapshot() }

func (a *Analyzer) allocSlacks() {
	nets := len(a.res.NetDriver)
	a.slacks = &Slacks{
		Slack:             make([][]float64, nets),
		TimingCriticality: make([][]float64, nets),
	}
	if a.opts.PathCounting {
		a.slacks.PathCriticality = make([][]float64, nets)
	}
	for i := 0; i < nets; i++ {
		a.slacks.Slack[i] = make([]float64, a.res.NetSinks[i]+1)
		a.slacks.TimingCriticality[i] = make([]float64, a.res.NetSinks[i]+1)
		if a.opts.PathCounting {
			a.slacks.PathCriticality[i] = make([]float64, a.res.NetSinks[i]+1)
		}
	}
	a.resetSlacks()
}

func (a *Analyzer) resetSlacks() {
	posInf := math.Inf(1)
	for i := range a.slacks.Slack {
		for j := 1; j < len(a.slacks.Slack[i]); j++ {
			a.slacks.Slack[i][j] = posInf
			a.slacks.TimingCriticality[i][j] = 0
			if a.slacks.PathCriticality != nil {
				a.slacks.PathCriticality[i][j] = 0
			}
		}
	}
}

func (a *Analyzer) allocStats() {
	n := a.cons.NumClocks()
	a.cpd = make([][]float64, n)
	a.leastSlack = make([][]float64, n)
	for i := 0; i < n; i++ {
		a.cpd[i] = make([]float64, n)
		a.leastSlack[i] = make([]float64, n)
	}
	a.resetStats()
}

func (a *Analyzer) resetStats() {
	for i := range a.cpd {
		for j := range a.cpd[i] {
			a.cpd[i][j] = math.Inf(-1)
			a.leastSlack[i][j] = math.Inf(1)
		}
	}
}

// CPD returns the critical path delay matrix in seconds; entries are
// -Inf for pairs never analyzed.
func (a *Analyzer) CPD() [][]float64 { return a.cpd }

// LeastSlack returns the per-pair least slack matrix in seconds;
// entries are +Inf for pairs never analyzed.
func (a *Analyzer) LeastSlack() [][]float64 { return a.leastSlack }

// CriticalPathDelay returns the critical path delay of the pair with
// the least slack in the design, in seconds. NaN if nothing was
// analyzed.
func (a *Analyzer) CriticalPathDelay() float64 {
	least := math.Inf(1)
	cpd := math.NaN()
	for i := range a.leastSlack {
		for j := range a.leastSlack[i] {
			if a.leastSlack[i][j] < least {
				least = a.leastSlack[i][j]
				cpd = a.cpd[i][j]
			}
		}
	}
	return cpd
}

// LeastSlackInDesign returns the smallest least-slack across all
// analyzed pairs, in seconds. +Inf if nothing was analyzed.
func (a *Analyzer) LeastSlackInDesign() float64 {
	least := math.Inf(1)
	for i := range a.leastSlack {
		for j := range a.leastSlack[i] {
			if a.leastSlack[i][j] < least {
				least = a.leastSlack[i][j]
			}
		}
	}
	return least
}

// NormalizedCosts returns the pre-packing cost arrays (normalized
// slack, arrival time, total critical paths per node). Nil when the
// context was not built for pre-packing.
func (a *Analyzer) NormalizedCosts() (slack, tArr, totalPaths []float64) {
	return a.normSlack, a.normTArr, a.normTotalPaths
}
