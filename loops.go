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

import "errors"

// Combinational-loop handling. Cycles in the timing graph are found as
// strongly connected components of size >= 2 (Tarjan, O(V+E)) and broken
// by suppressing one in-component edge per SCC. Cutting an edge can
// expose smaller sub-SCCs, so detection and breaking repeat until the
// graph is acyclic.

// ErrCombinationalCycle is returned by Levelize when some nodes could
// not be placed in a level because they sit on a cycle.
var ErrCombinationalCycle = errors.New("sta: timing graph contains a combinational cycle")

// BrokenEdge records one edge suppressed while breaking loops, for
// caller-side warnings.
type BrokenEdge struct {
	From, To NodeIndex
}

// BreakCombinationalLoops repeatedly detects SCCs and cuts one edge per
// component until the graph is loop-free. The target node of each cut
// edge is marked as a loop breakpoint. Returns every edge that was cut,
// in the order the cuts happened.
func (g *Graph) BreakCombinationalLoops() ([]BrokenEdge, error) {
	var broken []BrokenEdge
	for {
		sccs := g.stronglyConnectedComponents(2)
		if len(sccs) == 0 {
			return broken, nil
		}
		for _, scc := range sccs {
			cut, err := g.breakLoop(scc)
			if err != nil {
				return broken, err
			}
			broken = append(broken, cut)
		}
	}
}

// breakLoop cuts the first out-edge of the first component node that
// stays inside the component. Which edge is cut is arbitrary; any single
// in-component edge opens the cycle.
func (g *Graph) breakLoop(scc []NodeIndex) (BrokenEdge, error) {
	member := make(map[NodeIndex]bool, len(scc))
	for _, n := range scc {
		member[n] = true
	}
	first := scc[0]
	out := g.Out(first)
	for i := range out {
		e := &out[i]
		if !e.Live() || !member[e.To] {
			continue
		}
		g.nodes[e.To].LoopBreakpoint = true
		e.State = EdgeBrokenByLoop
		return BrokenEdge{From: first, To: e.To}, nil
	}
	return BrokenEdge{}, &GraphError{Node: first, Msg: "no edge found to break combinational loop"}
}

// stronglyConnectedComponents runs Tarjan's algorithm over the live
// edges and returns every SCC with at least minSize members. The DFS is
// iterative with an explicit work stack so deep graphs cannot exhaust
// the goroutine stack.
func (g *Graph) stronglyConnectedComponents(minSize int) [][]NodeIndex {
	n := len(g.nodes)
	const unvisited = int32(-1)

	index := make([]int32, n)
	lowlink := make([]int32, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = unvisited
	}

	var (
		sccs    [][]NodeIndex
		stack   []NodeIndex // Tarjan's component stack
		counter int32
	)

	// One DFS frame per node being expanded: which out-edge to look at
	// next when the frame resumes.
	type frame struct {
		node NodeIndex
		edge int
	}
	var work []frame

	for start := 0; start < n; start++ {
		if index[start] != unvisited {
			continue
		}

		work = append(work[:0], frame{node: NodeIndex(start)})
		index[start] = counter
		lowlink[start] = counter
		counter++
		stack = append(stack, NodeIndex(start))
		onStack[start] = true

		for len(work) > 0 {
			f := &work[len(work)-1]
			out := g.Out(f.node)

			advanced := false
			for f.edge < len(out) {
				e := &out[f.edge]
				f.edge++
				if !e.Live() {
					continue
				}
				to := e.To
				if index[to] == unvisited {
					// Descend into the unvisited successor.
					index[to] = counter
					lowlink[to] = counter
					counter++
					stack = append(stack, to)
					onStack[to] = true
					work = append(work, frame{node: to})
					advanced = true
					break
				}
				if onStack[to] {
					if index[to] < lowlink[f.node] {
						lowlink[f.node] = index[to]
					}
				}
			}
			if advanced {
				continue
			}

			// Frame exhausted: pop it and fold its lowlink into the parent.
			done := f.node
			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := work[len(work)-1].node
				if lowlink[done] < lowlink[parent] {
					lowlink[parent] = lowlink[done]
				}
			}

			if lowlink[done] == index[done] {
				// done roots an SCC; pop the component off the stack.
				var scc []NodeIndex
				for {
					m := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[m] = false
					scc = append(scc, m)
					if m == done {
						break
					}
				}
				if len(scc) >= minSize {
					sccs = append(sccs, scc)
				}
			}
		}
	}
	return sccs
}
