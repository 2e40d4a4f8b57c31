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

// Package build translates a netlist plus its architecture delay
// annotations into the timing graph. Two input shapes are supported:
// the primitive (atom) netlist used before packing and the clustered
// netlist with intra-cluster routes used after. Both produce the same
// Result so the analyzer does not care which flow it is in.
package build

import (
	"fmt"
	"math"

	"sta"
	"sta/internal/analyzer/netlist"
)

// LUTInfo describes a LUT output node for input rebalancing: the input
// pin nodes feeding it (each with exactly one out-edge, into the output
// node) and the physical delay of each LUT input position.
type LUTInfo struct {
	Inputs     []sta.NodeIndex
	PhysDelays []float64
}

// Result is the built timing graph plus the side tables the analyzer
// needs to relate graph nodes back to the netlist.
type Result struct {
	Graph *sta.Graph

	// NetDriver[net] is the node whose out-edges mirror the net's sink
	// pins index for index; NetSinks[net] is the sink count. In atom
	// mode nets are the primitive netlist's; in clustered mode they are
	// the inter-cluster nets.
	NetDriver []sta.NodeIndex
	NetSinks  []int
	NetName   []string

	// FFClock maps a sequential block index to its clock pin node.
	FFClock map[int32]sta.NodeIndex

	// SourceNetName names the net driven by each InpadSource and
	// ClockSource node, for matching against constrained clock names.
	SourceNetName map[sta.NodeIndex]string

	// PadIpin maps each OutpadSink node to its paired OutpadIpin, whose
	// single out-edge carries the output delay.
	PadIpin map[sta.NodeIndex]sta.NodeIndex

	// PadName names the port each OutpadSink or InpadSource models.
	PadName map[sta.NodeIndex]string

	// LUT maps LUT output nodes to their rebalancing info.
	LUT map[sta.NodeIndex]*LUTInfo

	// FFName names the sequential block behind each FFSink/FFSource
	// node, for flip-flop-level override constraints.
	FFName map[sta.NodeIndex]string
}

// builder accumulates nodes and per-node edge lists before freezing
// them into the arena. Edge lists are installed in node order once the
// topology is complete, so the arena stays contiguous.
type builder struct {
	nl    *netlist.Netlist
	g     *sta.Graph
	edges map[sta.NodeIndex][]sta.Edge

	// sinkNode and driveNode map netlist pins to the graph nodes that
	// receive and emit net edges respectively.
	sinkNode  map[netlist.Pin]sta.NodeIndex
	driveNode map[netlist.Pin]sta.NodeIndex

	res *Result
}

func newBuilder(nl *netlist.Netlist) *builder {
	g := sta.NewGraph(4*len(nl.Blocks), 8*len(nl.Blocks))
	return &builder{
		nl:        nl,
		g:         g,
		edges:     make(map[sta.NodeIndex][]sta.Edge),
		sinkNode:  make(map[netlist.Pin]sta.NodeIndex),
		driveNode: make(map[netlist.Pin]sta.NodeIndex),
		res: &Result{
			Graph:         g,
			FFClock:       make(map[int32]sta.NodeIndex),
			SourceNetName: make(map[sta.NodeIndex]string),
			PadIpin:       make(map[sta.NodeIndex]sta.NodeIndex),
			PadName:       make(map[sta.NodeIndex]string),
			LUT:           make(map[sta.NodeIndex]*LUTInfo),
			FFName:        make(map[sta.NodeIndex]string),
		},
	}
}

func (b *builder) addEdge(from sta.NodeIndex, e sta.Edge) {
	b.edges[from] = append(b.edges[from], e)
}

// freeze installs all accumulated edge lists and runs the constant
// generator sweep.
func (b *builder) freeze() *Result {
	for n := sta.NodeIndex(0); int(n) < b.g.NumNodes(); n++ {
		b.g.SetOutEdges(n, b.edges[n])
	}
	b.g.IsolateConstantGenerators()
	return b.res
}

// Atom builds the timing graph of a primitive netlist. Nets between
// primitives get interNetDelay on every driver-to-sink edge (a uniform
// placeholder until placement produces real net delays).
func Atom(nl *netlist.Netlist, interNetDelay float64) (*Result, error) {
	if err := nl.Check(); err != nil {
		return nil, err
	}
	b := newBuilder(nl)

	for bi := range nl.Blocks {
		if err := b.blockNodes(bi); err != nil {
			return nil, err
		}
	}

	// Net edges: driver node to each sink node, in the net's sink
	// order. The index correspondence is relied on by delay annotation
	// and slack-to-net mapping.
	b.res.NetDriver = make([]sta.NodeIndex, len(nl.Nets))
	b.res.NetSinks = make([]int, len(nl.Nets))
	b.res.NetName = make([]string, len(nl.Nets))
	for ni := range nl.Nets {
		net := &nl.Nets[ni]
		drv, ok := b.driveNode[net.Driver]
		if !ok {
			return nil, &sta.GraphError{Node: sta.InvalidNode,
				Msg: fmt.Sprintf("net %s: driver pin %v has no timing node", net.Name, net.Driver)}
		}
		b.res.NetDriver[ni] = drv
		b.res.NetSinks[ni] = len(net.Sinks)
		b.res.NetName[ni] = net.Name
		delay := interNetDelay
		if b.g.Node(drv).Kind == sta.ConstGenSource {
			delay = math.Inf(-1)
		}
		for _, s := range net.Sinks {
			to, ok := b.sinkNode[s]
			if !ok {
				return nil, &sta.GraphError{Node: sta.InvalidNode,
					Msg: fmt.Sprintf("net %s: sink pin %v has no timing node", net.Name, s)}
			}
			b.addEdge(drv, sta.Edge{To: to, Tdel: delay})
		}
	}

	return b.freeze(), nil
}

// blockNodes creates the timing nodes of one block plus its internal
// edges, registering its pins in the sink/drive maps.
func (b *builder) blockNodes(bi int) error {
	blk := &b.nl.Blocks[bi]
	block := int32(bi)
	switch blk.Kind {
	case netlist.Inpad:
		src := b.g.AddNode(sta.InpadSource, block, sta.PinRef{Port: "inpad"})
		opin := b.g.AddNode(sta.InpadOpin, block, sta.PinRef{Port: "inpad"})
		b.addEdge(src, sta.Edge{To: opin})
		b.driveNode[netlist.Pin{Block: bi, Port: "inpad"}] = opin
		if blk.PadNet != netlist.NoNet {
			b.res.SourceNetName[src] = b.nl.Nets[blk.PadNet].Name
		}
		b.res.PadName[src] = blk.Name
		return nil

	case netlist.Outpad:
		ipin := b.g.AddNode(sta.OutpadIpin, block, sta.PinRef{Port: "outpad"})
		snk := b.g.AddNode(sta.OutpadSink, block, sta.PinRef{Port: "outpad"})
		b.addEdge(ipin, sta.Edge{To: snk})
		b.sinkNode[netlist.Pin{Block: bi, Port: "outpad"}] = ipin
		b.res.PadIpin[snk] = ipin
		b.res.PadName[snk] = blk.Name
		return nil
	}

	m, err := b.nl.ModelOf(blk)
	if err != nil {
		return err
	}
	sequential := m.ClockPort != ""

	// Input pins.
	type inPin struct {
		pin  netlist.Pin
		node sta.NodeIndex // the node internal edges start from
	}
	var inputs []inPin
	for _, port := range m.Inputs {
		nets := blk.InputNets[port.Name]
		for bit, net := range nets {
			if net == netlist.NoNet {
				continue
			}
			pin := netlist.Pin{Block: bi, Port: port.Name, Bit: bit}
			ref := sta.PinRef{Port: port.Name, Bit: bit}
			if sequential {
				ipin := b.g.AddNode(sta.FFIpin, block, ref)
				snk := b.g.AddNode(sta.FFSink, block, ref)
				b.addEdge(ipin, sta.Edge{To: snk, Tdel: m.Tsu})
				b.sinkNode[pin] = ipin
				b.res.FFName[snk] = blk.Name
			} else {
				ipin := b.g.AddNode(sta.PrimitiveIpin, block, ref)
				b.sinkNode[pin] = ipin
				inputs = append(inputs, inPin{pin: pin, node: ipin})
			}
		}
	}

	// Clock pin.
	if blk.ClockNet != netlist.NoNet {
		clk := b.g.AddNode(sta.FFClock, block, sta.PinRef{Port: m.ClockPort})
		b.sinkNode[netlist.Pin{Block: bi, Port: m.ClockPort}] = clk
		b.res.FFClock[block] = clk
	} else if sequential {
		return &sta.GraphError{Node: sta.InvalidNode,
			Msg: fmt.Sprintf("sequential block %s has no clock connection", blk.Name)}
	}

	// Output pins, plus internal edges from inputs.
	for _, port := range m.Outputs {
		nets := blk.OutputNets[port.Name]
		for bit, net := range nets {
			if net == netlist.NoNet {
				continue
			}
			pin := netlist.Pin{Block: bi, Port: port.Name, Bit: bit}
			ref := sta.PinRef{Port: port.Name, Bit: bit}
			switch {
			case b.nl.Nets[net].Const:
				// Constant-driven output: a source whose out-edges all
				// carry -Inf so downstream arrivals are never limited
				// by it. Internal edges from the block's inputs are
				// still created here and suppressed by the constant
				// generator sweep, which keeps the node fan-in-free.
				cg := b.g.AddNode(sta.ConstGenSource, block, ref)
				b.driveNode[pin] = cg
				for _, in := range inputs {
					delay, ok := m.CombDelay[in.pin.Port][port.Name]
					if !ok {
						continue
					}
					b.addEdge(in.node, sta.Edge{To: cg, Tdel: delay})
				}

			case m.ClockGen:
				src := b.g.AddNode(sta.ClockSource, block, ref)
				opin := b.g.AddNode(sta.ClockOpin, block, ref)
				b.addEdge(src, sta.Edge{To: opin, Tdel: m.TcoMax})
				b.driveNode[pin] = opin
				b.res.SourceNetName[src] = b.nl.Nets[net].Name

			case sequential:
				src := b.g.AddNode(sta.FFSource, block, ref)
				opin := b.g.AddNode(sta.FFOpin, block, ref)
				b.addEdge(src, sta.Edge{To: opin, Tdel: m.TcoMax})
				b.driveNode[pin] = opin
				b.res.FFName[src] = blk.Name

			default:
				opin := b.g.AddNode(sta.PrimitiveOpin, block, ref)
				b.driveNode[pin] = opin
				for _, in := range inputs {
					delay, ok := m.CombDelay[in.pin.Port][port.Name]
					if !ok {
						continue
					}
					b.addEdge(in.node, sta.Edge{To: opin, Tdel: delay})
				}
				if m.IsLUT {
					info := &LUTInfo{PhysDelays: m.InputDelays}
					for _, in := range inputs {
						info.Inputs = append(info.Inputs, in.node)
					}
					b.res.LUT[opin] = info
				}
			}
		}
	}
	return nil
}

// Clustered builds the timing graph of a packed netlist: member
// primitives keep their internal node structure, cluster boundary pins
// become ClusterIpin/ClusterOpin nodes, intra-cluster routes become
// edges (with Intermediate hop nodes), and inter-cluster nets root at
// cluster output pins with sink-order edges.
func Clustered(nl *netlist.Netlist, cl *netlist.Clustering) (*Result, error) {
	if err := nl.Check(); err != nil {
		return nil, err
	}
	if err := cl.Check(nl); err != nil {
		return nil, err
	}
	b := newBuilder(nl)

	pins := make([]boundary, len(cl.Clusters))

	for ci := range cl.Clusters {
		c := &cl.Clusters[ci]

		for _, mi := range c.Members {
			if err := b.blockNodes(mi); err != nil {
				return nil, err
			}
		}

		cp := &pins[ci]
		cp.in = make([]sta.NodeIndex, c.NumIn)
		cp.out = make([]sta.NodeIndex, c.NumOut)
		for i := 0; i < c.NumIn; i++ {
			cp.in[i] = sta.InvalidNode
			if c.InNet[i] != netlist.NoNet {
				cp.in[i] = b.g.AddNode(sta.ClusterIpin, -1, sta.PinRef{Port: "in", Bit: i})
			}
		}
		for i := 0; i < c.NumOut; i++ {
			cp.out[i] = sta.InvalidNode
			if c.OutNet[i] != netlist.NoNet {
				cp.out[i] = b.g.AddNode(sta.ClusterOpin, -1, sta.PinRef{Port: "out", Bit: i})
			}
		}

		for ri := range c.Routes {
			r := &c.Routes[ri]
			from, err := b.routeEndpoint(c, cp, &r.From, true)
			if err != nil {
				return nil, err
			}
			to, err := b.routeEndpoint(c, cp, &r.To, false)
			if err != nil {
				return nil, err
			}
			b.routeEdges(from, to, r.Delay, r.Hops)
		}
	}

	b.res.NetDriver = make([]sta.NodeIndex, len(cl.Nets))
	b.res.NetSinks = make([]int, len(cl.Nets))
	b.res.NetName = make([]string, len(cl.Nets))
	for ni := range cl.Nets {
		net := &cl.Nets[ni]
		drv := pins[net.Driver.Cluster].out[net.Driver.Pin]
		if drv == sta.InvalidNode {
			return nil, &sta.GraphError{Node: sta.InvalidNode,
				Msg: fmt.Sprintf("cluster net %s: driver pin is open", net.Name)}
		}
		b.res.NetDriver[ni] = drv
		b.res.NetSinks[ni] = len(net.Sinks)
		b.res.NetName[ni] = net.Name
		for _, s := range net.Sinks {
			to := pins[s.Cluster].in[s.Pin]
			if to == sta.InvalidNode {
				return nil, &sta.GraphError{Node: sta.InvalidNode,
					Msg: fmt.Sprintf("cluster net %s: sink pin is open", net.Name)}
			}
			b.addEdge(drv, sta.Edge{To: to})
		}
	}

	return b.freeze(), nil
}

// boundary holds one cluster's boundary pin nodes.
type boundary struct {
	in  []sta.NodeIndex
	out []sta.NodeIndex
}

// routeEndpoint resolves a route endpoint to its graph node: the
// emitting node when fromSide, the receiving node otherwise.
func (b *builder) routeEndpoint(c *netlist.Cluster, cp *boundary, ep *netlist.Endpoint, fromSide bool) (sta.NodeIndex, error) {
	switch ep.Kind {
	case netlist.ClusterIn:
		n := cp.in[ep.Pin]
		if n == sta.InvalidNode {
			return 0, &sta.GraphError{Node: sta.InvalidNode,
				Msg: fmt.Sprintf("cluster %s: route uses open input pin %d", c.Name, ep.Pin)}
		}
		return n, nil
	case netlist.ClusterOut:
		n := cp.out[ep.Pin]
		if n == sta.InvalidNode {
			return 0, &sta.GraphError{Node: sta.InvalidNode,
				Msg: fmt.Sprintf("cluster %s: route uses open output pin %d", c.Name, ep.Pin)}
		}
		return n, nil
	default:
		pin := netlist.Pin{Block: ep.Member, Port: ep.Port, Bit: ep.Bit}
		table := b.sinkNode
		if fromSide {
			table = b.driveNode
		}
		n, ok := table[pin]
		if !ok {
			return 0, &sta.GraphError{Node: sta.InvalidNode,
				Msg: fmt.Sprintf("cluster %s: route endpoint %s.%s[%d] has no timing node",
					c.Name, b.nl.Blocks[ep.Member].Name, ep.Port, ep.Bit)}
		}
		return n, nil
	}
}

// routeEdges connects from to to through hops intermediate nodes, the
// total delay split evenly across the segments.
func (b *builder) routeEdges(from, to sta.NodeIndex, delay float64, hops int) {
	if b.g.Node(from).Kind == sta.ConstGenSource {
		delay = math.Inf(-1)
		hops = 0
	}
	if hops <= 0 {
		b.addEdge(from, sta.Edge{To: to, Tdel: delay})
		return
	}
	seg := delay / float64(hops+1)
	prev := from
	for i := 0; i < hops; i++ {
		mid := b.g.AddNode(sta.Intermediate, -1, sta.PinRef{})
		b.addEdge(prev, sta.Edge{To: mid, Tdel: seg})
		prev = mid
	}
	b.addEdge(prev, sta.Edge{To: to, Tdel: seg})
}

// AnnotateNetDelays copies a [net][sink] delay table onto the driver
// out-edges, matching sinks by index. Suppressed edges keep their
// state; only the delay is written.
func (r *Result) AnnotateNetDelays(delays [][]float64) error {
	if len(delays) != len(r.NetDriver) {
		return fmt.Errorf("net delay table has %d nets, graph has %d", len(delays), len(r.NetDriver))
	}
	for ni, drv := range r.NetDriver {
		out := r.Graph.Out(drv)
		if len(delays[ni]) != len(out) {
			return fmt.Errorf("net %d: delay table has %d sinks, driver has %d edges", ni, len(delays[ni]), len(out))
		}
		if r.Graph.Node(drv).Kind == sta.ConstGenSource {
			continue // constant generator edges stay at -Inf
		}
		for i := range out {
			out[i].Tdel = delays[ni][i]
		}
	}
	return nil
}
