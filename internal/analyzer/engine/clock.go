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

import (
	"fmt"

	"sta"
	"sta/internal/analyzer/sdc"
)

// Clock domain and skew loading. Each constrained clock's domain index
// is pushed from its source node (input pad or on-chip generator)
// through the clock network to every flip-flop clock pin, accumulating
// edge delays as clock skew along the way. I/O delays from the SDC are
// written onto the pad edges here, normalized to seconds.

func (a *Analyzer) loadClockDomains() error {
	for i := range a.cons.Clocks {
		a.cons.Clocks[i].Fanout = 0
	}

	// Sources: every InpadSource and ClockSource sits at level 0.
	if a.g.NumLevels() > 0 {
		for _, n := range a.g.Levels[0] {
			node := a.g.Node(n)
			if node.Kind != sta.InpadSource && node.Kind != sta.ClockSource {
				continue
			}
			netName := a.res.SourceNetName[n]
			if idx := a.cons.ClockIndex(netName); idx >= 0 {
				// A clock source. Push domain and skew through the clock
				// net, then retire the source itself so the clock net is
				// not analyzed as a data path.
				node.ClockDelay = 0
				node.Domain = int32(idx)
				if err := a.propagateClock(n); err != nil {
					return err
				}
				node.Domain = sta.NoDomain
				continue
			}
			if node.Kind == sta.InpadSource {
				if in := a.cons.FindInput(a.res.PadName[n]); in != nil {
					idx := a.cons.ClockIndex(in.ClockName)
					node.Domain = int32(idx)
					a.cons.Clocks[idx].Fanout++
					out := a.g.Out(n)
					if len(out) > 0 {
						out[0].Tdel = in.Delay * 1e-9
					}
					continue
				}
			}
			node.Domain = sta.NoDomain
		}
	}

	// Pad sinks: constrained outputs get their domain and the output
	// delay goes on the edge owned by the paired OutpadIpin.
	for n := sta.NodeIndex(0); int(n) < a.g.NumNodes(); n++ {
		node := a.g.Node(n)
		if node.Kind != sta.OutpadSink {
			continue
		}
		out := a.cons.FindOutput(a.res.PadName[n])
		if out == nil {
			node.Domain = sta.NoDomain
			continue
		}
		idx := a.cons.ClockIndex(out.ClockName)
		node.Domain = int32(idx)
		a.cons.Clocks[idx].Fanout++
		ipin, ok := a.res.PadIpin[n]
		if !ok {
			return &sta.GraphError{Node: n, Msg: "output pad sink has no paired input pin node"}
		}
		edges := a.g.Out(ipin)
		if len(edges) > 0 {
			edges[0].Tdel = out.Delay * 1e-9
		}
	}

	// Flip-flop sources and sinks copy domain and skew from the clock
	// pin of their block.
	for n := sta.NodeIndex(0); int(n) < a.g.NumNodes(); n++ {
		node := a.g.Node(n)
		if node.Kind != sta.FFSource && node.Kind != sta.FFSink {
			continue
		}
		clkNode, ok := a.res.FFClock[node.Block]
		if !ok {
			return &sta.GraphError{Node: n, Msg: "sequential element has no clock pin node"}
		}
		clk := a.g.Node(clkNode)
		node.Domain = clk.Domain
		node.ClockDelay = clk.ClockDelay
	}
	return nil
}

// propagateClock walks the clock net from a source, copying the domain
// and accumulating edge delay into each reached node's clock delay. The
// walk is iterative with an explicit stack. A leaf must be a flip-flop
// clock pin (or an output pad, for clocks routed off chip); anything
// else takes the clock as a data input and is only warned about. A node
// reached with two different domains means two clock nets are muxed
// onto one clock pin, which the analyzer rejects.
func (a *Analyzer) propagateClock(src sta.NodeIndex) error {
	stack := []sta.NodeIndex{src}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := a.g.Node(n)
		out := a.g.Out(n)

		if len(out) == 0 {
			if node.Kind != sta.FFClock && node.Kind != sta.OutpadSink {
				a.warnf("node %d (%s) appears to take a clock as a data input", n, node.Kind)
				continue
			}
			if node.Domain == sta.NoDomain {
				return &sta.GraphError{Node: n, Msg: "clock net leaf has no domain"}
			}
			a.cons.Clocks[node.Domain].Fanout++
			continue
		}

		for i := range out {
			e := &out[i]
			if !e.Live() {
				continue
			}
			to := a.g.Node(e.To)
			if to.Domain != sta.NoDomain && to.Domain != node.Domain {
				return &sta.GraphError{Node: e.To,
					Msg: fmt.Sprintf("two clock nets drive this node (domains %d and %d)", to.Domain, node.Domain)}
			}
			to.ClockDelay = node.ClockDelay + e.Tdel
			to.Domain = node.Domain
			stack = append(stack, e.To)
		}
	}
	return nil
}

// pruneConstraints cuts every domain pair no path actually activates,
// so the criticality denominator never inflates from unused
// constraints. One forward reachability sweep per source domain.
func (a *Analyzer) pruneConstraints() {
	n := a.cons.NumClocks()
	used := make([]bool, n)

	for src := 0; src < n; src++ {
		a.g.ResetTimes()
		for i := range used {
			used[i] = false
		}

		if a.g.NumLevels() > 0 {
			for _, ni := range a.g.Levels[0] {
				if int(a.g.Node(ni).Domain) == src {
					a.g.Node(ni).TArr = 0
				}
			}
		}

		for _, level := range a.g.Levels {
			for _, ni := range level {
				node := a.g.Node(ni)
				if !node.HasArr() {
					continue
				}
				out := a.g.Out(ni)
				if len(out) == 0 {
					if node.Domain != sta.NoDomain {
						used[node.Domain] = true
					}
					continue
				}
				for i := range out {
					if out[i].Live() {
						a.g.Node(out[i].To).TArr = 0
					}
				}
			}
		}

		for snk := 0; snk < n; snk++ {
			if used[snk] {
				continue
			}
			if sdc.Analysed(a.cons.DomainConstraint[src][snk]) {
				a.warnf("timing constraint from clock %d to %d of value %g will be disabled since no path in the timing graph activates it",
					src, snk, a.cons.DomainConstraint[src][snk])
			}
			a.cons.DomainConstraint[src][snk] = sdc.DoNotAnalyse
		}
	}
}
