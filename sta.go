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

// Package sta provides the timing graph at the heart of the static timing
// analyzer: a levelized DAG of timing nodes connected by delay-weighted
// edges. Nodes represent used pins of the mapped netlist (plus paired
// source/sink nodes for pads and sequential elements); edges carry the
// max delay between pins. The graph is built once per analysis context,
// levelized for topological traversal, and repaired when combinational
// cycles are found.
package sta

import (
	"fmt"
	"math"
)

// NodeKind identifies the role a timing node plays in the graph.
type NodeKind uint8

const (
	InpadSource NodeKind = iota // off-chip input, no fan-in
	InpadOpin                   // on-chip side of an input pad
	OutpadIpin                  // on-chip side of an output pad
	OutpadSink                  // off-chip output, no fan-out
	ClusterIpin                 // input pin of a clustered block
	ClusterOpin                 // output pin of a clustered block
	Intermediate                // internal routing hop inside a cluster
	PrimitiveIpin               // input pin of a combinational primitive
	PrimitiveOpin               // output pin of a combinational primitive
	FFIpin                      // D input pin of a sequential primitive
	FFOpin                      // Q output pin of a sequential primitive
	FFSink                      // internal sink behind a D pin (edge in carries tsu)
	FFSource                    // internal source before a Q pin (edge out carries tco)
	FFClock                     // clock pin of a sequential primitive, no fan-out
	ClockSource                 // on-chip clock generator output (e.g. PLL)
	ClockOpin                   // pin driven by a clock generator
	ConstGenSource              // output of a constant generator, no fan-in
)

var nodeKindNames = [...]string{
	"INPAD_SOURCE", "INPAD_OPIN", "OUTPAD_IPIN", "OUTPAD_SINK",
	"CB_IPIN", "CB_OPIN", "INTERMEDIATE", "PRIMITIVE_IPIN", "PRIMITIVE_OPIN",
	"FF_IPIN", "FF_OPIN", "FF_SINK", "FF_SOURCE", "FF_CLOCK",
	"CLOCK_SOURCE", "CLOCK_OPIN", "CONSTANT_GEN_SOURCE",
}

func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return fmt.Sprintf("NodeKind(%d)", uint8(k))
}

// IsSource reports whether nodes of this kind may legitimately appear at
// level 0 of the levelized graph.
func (k NodeKind) IsSource() bool {
	switch k {
	case InpadSource, FFSource, ConstGenSource, ClockSource:
		return true
	}
	return false
}

// IsSink reports whether nodes of this kind terminate data paths.
func (k NodeKind) IsSink() bool {
	return k == OutpadSink || k == FFSink
}

// NodeIndex addresses a node within its Graph.
type NodeIndex int32

// InvalidNode is the null node index.
const InvalidNode NodeIndex = -1

// NoDomain marks a node that belongs to no constrained clock domain and
// must not be analyzed.
const NoDomain int32 = -1

// EdgeState records whether an edge participates in traversals, and if
// not, why it was suppressed.
type EdgeState uint8

const (
	EdgeLive EdgeState = iota
	EdgeBrokenByLoop      // cut to break a combinational cycle
	EdgeBrokenByConstant  // target was a constant generator source
)

// Edge is a directed, delay-weighted connection between two timing nodes.
// Suppressed edges keep their original target for diagnostics; every
// traversal must skip edges whose State is not EdgeLive.
type Edge struct {
	To    NodeIndex
	Tdel  float64
	State EdgeState
}

// Live reports whether the edge participates in analysis.
func (e *Edge) Live() bool { return e.State == EdgeLive }

// Node is a single timing node. Arrival and required times are scratch
// state owned by the currently-running traversal pair; everything else is
// topology fixed at build time (except LoopBreakpoint, set when an
// incoming edge is cut to break a cycle).
type Node struct {
	Kind  NodeKind
	Block int32 // owning netlist block, -1 if none

	// Pin identifies the pin this node models within its block
	// (port name and bit). Source/sink halves of a pad or flip-flop
	// pair share the pin of their visible half.
	Pin PinRef

	TArr float64 // arrival time; -Inf until set on a traversal
	TReq float64 // required time; +Inf until set on a traversal

	Domain     int32   // constrained clock domain index, or NoDomain
	ClockDelay float64 // accumulated delay along the clock net to this node

	// LoopBreakpoint marks a node whose incoming edge was disconnected
	// to break a combinational cycle, so levelization sanity checks do
	// not flag it as a spurious source.
	LoopBreakpoint bool

	eoff, ecnt int32 // out-edge slice within the graph arena
}

// PinRef names a pin on a block.
type PinRef struct {
	Port string
	Bit  int
}

func (p PinRef) String() string {
	if p.Port == "" {
		return "-"
	}
	return fmt.Sprintf("%s[%d]", p.Port, p.Bit)
}

// HasArr reports whether the node received an arrival time on the
// current traversal.
func (n *Node) HasArr() bool { return !math.IsInf(n.TArr, -1) }

// HasReq reports whether the node received a required time on the
// current traversal.
func (n *Node) HasReq() bool { return !math.IsInf(n.TReq, 1) }

// Graph is an arena-allocated timing graph. Nodes are addressed by index
// and out-edges for all nodes live in one contiguous buffer so traversals
// walk memory predictably. A Graph is owned by a single analyzer context;
// it is not safe for concurrent use.
type Graph struct {
	nodes []Node
	edges []Edge

	// Levels holds node indexes by topological level after Levelize.
	// Level 0 contains every node with no live fan-in.
	Levels [][]NodeIndex
}

// NewGraph returns an empty graph with capacity hints for nodes and edges.
func NewGraph(nodeCap, edgeCap int) *Graph {
	return &Graph{
		nodes: make([]Node, 0, nodeCap),
		edges: make([]Edge, 0, edgeCap),
	}
}

// AddNode appends a node of the given kind owned by block and returns its
// index. The node starts with no out-edges and unset times.
func (g *Graph) AddNode(kind NodeKind, block int32, pin PinRef) NodeIndex {
	g.nodes = append(g.nodes, Node{
		Kind:   kind,
		Block:  block,
		Pin:    pin,
		TArr:   math.Inf(-1),
		TReq:   math.Inf(1),
		Domain: NoDomain,
	})
	return NodeIndex(len(g.nodes) - 1)
}

// SetOutEdges installs the complete out-edge list of a node. It may be
// called once per node; the edge order is preserved, which callers rely
// on to map driver edges back to net sink pins by index.
func (g *Graph) SetOutEdges(n NodeIndex, edges []Edge) {
	node := &g.nodes[n]
	if node.ecnt != 0 {
		panic(fmt.Sprintf("sta: out-edges of node %d set twice", n))
	}
	node.eoff = int32(len(g.edges))
	node.ecnt = int32(len(edges))
	g.edges = append(g.edges, edges...)
}

// Node returns the node at index n. The pointer stays valid until the
// next AddNode call.
func (g *Graph) Node(n NodeIndex) *Node { return &g.nodes[n] }

// Out returns the out-edge slice of node n. The slice aliases the arena:
// mutating an element (delay annotation, loop breaking) is the intended
// way to update the graph.
func (g *Graph) Out(n NodeIndex) []Edge {
	node := &g.nodes[n]
	return g.edges[node.eoff : node.eoff+node.ecnt]
}

// NumNodes returns the node count.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NumEdges returns the total edge count, suppressed edges included.
func (g *Graph) NumEdges() int { return len(g.edges) }

// ResetTimes restores every node's arrival and required time to the
// unset sentinels. Called once per traversal pair.
func (g *Graph) ResetTimes() {
	negInf, posInf := math.Inf(-1), math.Inf(1)
	for i := range g.nodes {
		g.nodes[i].TArr = negInf
		g.nodes[i].TReq = posInf
	}
}

// IsolateConstantGenerators suppresses every live edge that terminates at
// a ConstGenSource node. Constant generators never receive real data
// inputs; an edge that would feed one is a netlist artifact. Returns the
// number of edges rewritten.
func (g *Graph) IsolateConstantGenerators() int {
	rewritten := 0
	for i := range g.edges {
		e := &g.edges[i]
		if e.State != EdgeLive {
			continue
		}
		if g.nodes[e.To].Kind == ConstGenSource {
			e.State = EdgeBrokenByConstant
			rewritten++
		}
	}
	return rewritten
}

// GraphError reports an inconsistency discovered while building or
// checking the timing graph. These are fatal: the analyzer never
// produces timing numbers derived from a broken invariant.
type GraphError struct {
	Node NodeIndex
	Msg  string
}

func (e *GraphError) Error() string {
	if e.Node >= 0 {
		return fmt.Sprintf("timing graph: node %d: %s", e.Node, e.Msg)
	}
	return "timing graph: " + e.Msg
}
