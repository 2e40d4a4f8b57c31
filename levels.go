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

package sta

import "fmt"

// This file levelizes the timing graph: a breadth-first fan-in-exhaustion
// pass that buckets nodes by topological level so traversals can run
// level by level instead of recursively.

// faninCounts allocates and fills the live in-edge count of every node,
// validating edge targets along the way. Also counts sinks (nodes with
// no out-edges at all).
func (g *Graph) faninCounts() (fanin []int32, numSinks int, err error) {
	fanin = make([]int32, len(g.nodes))
	n := NodeIndex(len(g.nodes))
	for i := range g.nodes {
		out := g.Out(NodeIndex(i))
		if len(out) == 0 {
			numSinks++
			continue
		}
		for j := range out {
			e := &out[j]
			if !e.Live() {
				continue
			}
			if e.To < 0 || e.To >= n {
				return nil, 0, &GraphError{Node: NodeIndex(i), Msg: "edge targets out-of-range node"}
			}
			fanin[e.To]++
		}
	}
	return fanin, numSinks, nil
}

// Levelize buckets every node into g.Levels by breadth-first search from
// the zero-fan-in nodes. It returns the number of sink nodes. If the
// visited total falls short of the node count, the residue forms one or
// more combinational cycles and ErrCombinationalCycle is returned; the
// caller is expected to break the loops and levelize again.
func (g *Graph) Levelize() (numSinks int, err error) {
	fanin, numSinks, err := g.faninCounts()
	if err != nil {
		return 0, err
	}

	var frontier []NodeIndex
	for i := range g.nodes {
		if fanin[i] == 0 {
			frontier = append(frontier, NodeIndex(i))
		}
	}

	g.Levels = g.Levels[:0]
	visited := 0
	for len(frontier) > 0 {
		g.Levels = append(g.Levels, frontier)
		visited += len(frontier)

		var next []NodeIndex
		for _, n := range frontier {
			out := g.Out(n)
			for j := range out {
				e := &out[j]
				if !e.Live() {
					continue
				}
				fanin[e.To]--
				if fanin[e.To] == 0 {
					next = append(next, e.To)
				}
			}
		}
		frontier = next
	}

	if visited != len(g.nodes) {
		return numSinks, ErrCombinationalCycle
	}
	return numSinks, nil
}

// CheckLevels verifies that every node landed in exactly one level. Run
// after Levelize succeeds as a cheap invariant check before analysis.
func (g *Graph) CheckLevels() error {
	total := 0
	for _, lvl := range g.Levels {
		total += len(lvl)
	}
	if total != len(g.nodes) {
		return &GraphError{Node: InvalidNode,
			Msg: fmt.Sprintf("level structure holds %d nodes, graph has %d", total, len(g.nodes))}
	}
	return nil
}

// NumLevels returns the number of topological levels.
func (g *Graph) NumLevels() int { return len(g.Levels) }
