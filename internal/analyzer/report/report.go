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

// Package report renders analysis results: the critical path walk,
// slack and criticality histograms, per-constraint statistics, and the
// echo dumps consumed by golden-file tests. All writers emit records in
// a fixed order so repeated runs are byte-stable.
package report

import (
	"fmt"
	"io"
	"math"

	"sta"
	"sta/internal/analyzer/engine"
	"sta/internal/analyzer/sdc"
)

// numBuckets is the histogram resolution: five linear ranges plus the
// "not analysed" bucket appended by the writers.
const numBuckets = 5

// CriticalPathNode is one step of the extracted critical path.
type CriticalPathNode struct {
	Node  sta.NodeIndex
	Kind  sta.NodeKind
	Block int32
	TArr  float64
	TReq  float64
	Tdel  float64 // delay to the next node on the path; 0 at the sink
}

// CriticalPath extracts the worst path in the design. The (src, snk)
// domain pair with the smallest true least-slack is re-traversed to put
// its times back on the graph, then the path is walked from the level-0
// node with minimum slack by always following the minimum-slack fanout.
func CriticalPath(a *engine.Analyzer) ([]CriticalPathNode, error) {
	g := a.Graph()
	cons := a.Constraints()

	if cons.NumClocks() > 1 {
		// The graph currently holds times for whichever pair was
		// analyzed last; find the constraint with the least true slack
		// and restore its times.
		minSlack := math.Inf(1)
		srcSel, snkSel := -1, -1
		for i := range cons.DomainConstraint {
			for j := range cons.DomainConstraint[i] {
				if !sdc.Analysed(cons.DomainConstraint[i][j]) {
					continue
				}
				slack := cons.DomainConstraint[i][j] - a.CPD()[i][j]
				if slack < minSlack {
					minSlack = slack
					srcSel, snkSel = i, j
				}
			}
		}
		if srcSel >= 0 {
			if err := a.TraversePairForReport(srcSel, snkSel); err != nil {
				return nil, err
			}
		}
	}

	// Head: the level-0 node with the least slack.
	head := sta.InvalidNode
	minSlack := math.Inf(1)
	if g.NumLevels() > 0 {
		for _, n := range g.Levels[0] {
			node := g.Node(n)
			if !node.HasArr() || !node.HasReq() {
				continue
			}
			if s := node.TReq - node.TArr; s < minSlack {
				minSlack = s
				head = n
			}
		}
	}
	if head == sta.InvalidNode {
		return nil, fmt.Errorf("report: no analyzed source node to start the critical path from")
	}

	var path []CriticalPathNode
	cur := head
	for {
		node := g.Node(cur)
		entry := CriticalPathNode{
			Node:  cur,
			Kind:  node.Kind,
			Block: node.Block,
			TArr:  node.TArr,
			TReq:  node.TReq,
		}
		next := sta.InvalidNode
		minSlack = math.Inf(1)
		for _, e := range g.Out(cur) {
			if !e.Live() {
				continue
			}
			to := g.Node(e.To)
			if !to.HasArr() || !to.HasReq() {
				continue
			}
			if s := to.TReq - to.TArr; s < minSlack {
				minSlack = s
				next = e.To
			}
		}
		if next != sta.InvalidNode {
			entry.Tdel = g.Node(next).TArr - node.TArr
		}
		path = append(path, entry)
		if next == sta.InvalidNode {
			return path, nil
		}
		cur = next
	}
}

// WriteCriticalPath renders the critical path with per-node times and
// a logic/net delay breakdown.
func WriteCriticalPath(w io.Writer, a *engine.Analyzer) error {
	path, err := CriticalPath(a)
	if err != nil {
		return err
	}

	isNetDriver := make(map[sta.NodeIndex]bool, len(a.Build().NetDriver))
	for _, n := range a.Build().NetDriver {
		isNetDriver[n] = true
	}

	fmt.Fprintf(w, "Critical path in the timing graph (%d nodes):\n\n", len(path))
	totalLogic, totalNet := 0.0, 0.0
	for i := range path {
		p := &path[i]
		name := "-"
		if p.Block >= 0 {
			name = a.Netlist().Blocks[p.Block].Name
		}
		fmt.Fprintf(w, "Node: %d  %s Block (%s)\n", p.Node, p.Kind, name)
		fmt.Fprintf(w, "T_arr: %g  T_req: %g", p.TArr, p.TReq)
		if i < len(path)-1 {
			fmt.Fprintf(w, "  Tdel: %g", p.Tdel)
			if isNetDriver[p.Node] {
				totalNet += p.Tdel
			} else {
				totalLogic += p.Tdel
			}
		}
		fmt.Fprintf(w, "\n\n")
	}
	fmt.Fprintf(w, "Total logic delay: %g s  Total net delay: %g s\n", totalLogic, totalNet)
	return nil
}

// WriteSlackHistogram renders the slack distribution: five linear
// buckets between the smallest and largest analyzed slack, plus an
// unanalysed count for sentinel-valued sinks.
func WriteSlackHistogram(w io.Writer, slack [][]float64) {
	writeHistogram(w, "slack", slack, func(v float64) bool { return !math.IsInf(v, 1) })
}

// WriteCriticalityHistogram renders the criticality distribution. A
// zero criticality means "never analysed" and lands in the unanalysed
// bucket.
func WriteCriticalityHistogram(w io.Writer, crit [][]float64) {
	writeHistogram(w, "criticality", crit, func(v float64) bool { return v != 0 })
}

func writeHistogram(w io.Writer, label string, values [][]float64, analysed func(float64) bool) {
	minV, maxV := math.Inf(1), math.Inf(-1)
	total, negTotal := 0.0, 0.0
	unused := 0
	for _, row := range values {
		for i := 1; i < len(row); i++ {
			v := row[i]
			if !analysed(v) {
				unused++
				continue
			}
			minV = math.Min(minV, v)
			maxV = math.Max(maxV, v)
			total += v
			if v < 0 {
				negTotal -= v
			}
		}
	}

	if math.IsInf(maxV, -1) {
		fmt.Fprintf(w, "Largest %s in design: --\n", label)
		fmt.Fprintf(w, "Smallest %s in design: --\n", label)
	} else {
		fmt.Fprintf(w, "Largest %s in design: %g\n", label, maxV)
		fmt.Fprintf(w, "Smallest %s in design: %g\n", label, minV)
	}
	fmt.Fprintf(w, "Total %s in design: %g\n", label, total)
	if label == "slack" {
		fmt.Fprintf(w, "Total negative slack: %g\n", negTotal)
	}

	if maxV-minV < 1e-30 {
		fmt.Fprintf(w, "Unanalysed: %d\n", unused)
		return
	}

	var buckets [numBuckets]int
	size := (maxV - minV) / numBuckets
	for _, row := range values {
		for i := 1; i < len(row); i++ {
			if !analysed(row[i]) {
				continue
			}
			b := int((row[i] - minV) / size)
			if b >= numBuckets {
				b = numBuckets - 1
			}
			buckets[b]++
		}
	}

	fmt.Fprintf(w, "\nRange\t")
	lo := minV
	for b := 0; b < numBuckets; b++ {
		fmt.Fprintf(w, "%.1e to %.1e\t", lo, lo+size)
		lo += size
	}
	fmt.Fprintf(w, "Not analysed\n")
	fmt.Fprintf(w, "Count\t")
	for b := 0; b < numBuckets; b++ {
		fmt.Fprintf(w, "%d\t", buckets[b])
	}
	fmt.Fprintf(w, "%d\n", unused)
}

// WriteTimingStats renders critical path delay, fmax (single-clock
// designs only), least slack, and for multi-clock designs the
// per-constraint tables plus geometric-mean intra-domain periods.
func WriteTimingStats(w io.Writer, a *engine.Analyzer) {
	cons := a.Constraints()
	cpd := a.CPD()
	least := a.LeastSlack()

	criticalPath := a.CriticalPathDelay()
	fmt.Fprintf(w, "Final critical path: %g ns", criticalPath*1e9)
	if cons.NumClocks() <= 1 {
		fmt.Fprintf(w, ", f_max: %g MHz", 1e-6/criticalPath)
	}
	fmt.Fprintf(w, "\n\n")
	fmt.Fprintf(w, "Least slack in design: %g ns\n\n", a.LeastSlackInDesign()*1e9)

	if cons.NumClocks() <= 1 {
		return
	}

	fmt.Fprintf(w, "Minimum possible clock period to meet each constraint (including skew effects):\n")
	for src := range cons.Clocks {
		for snk := range cons.Clocks {
			indent := ""
			if snk != src {
				indent = "\t"
			}
			if sdc.Analysed(cons.DomainConstraint[src][snk]) && !math.IsInf(cpd[src][snk], -1) {
				fmt.Fprintf(w, "%s%s to %s: %g ns (%g MHz)\n", indent,
					cons.Clocks[src].Name, cons.Clocks[snk].Name,
					1e9*cpd[src][snk], 1e-6/cpd[src][snk])
			} else {
				fmt.Fprintf(w, "%s%s to %s: --\n", indent,
					cons.Clocks[src].Name, cons.Clocks[snk].Name)
			}
		}
	}

	fmt.Fprintf(w, "\nLeast slack per constraint:\n")
	for src := range cons.Clocks {
		for snk := range cons.Clocks {
			indent := ""
			if snk != src {
				indent = "\t"
			}
			if !math.IsInf(least[src][snk], 1) {
				fmt.Fprintf(w, "%s%s to %s: %g ns\n", indent,
					cons.Clocks[src].Name, cons.Clocks[snk].Name, 1e9*least[src][snk])
			} else {
				fmt.Fprintf(w, "%s%s to %s: --\n", indent,
					cons.Clocks[src].Name, cons.Clocks[snk].Name)
			}
		}
	}

	// Geometric means over intra-domain periods of netlist clocks with
	// intra-domain paths, plain and fanout-weighted.
	geomean := 1.0
	weighted := 0.0
	totalFanout := 0
	count := 0
	for d := range cons.Clocks {
		if !sdc.Analysed(cons.DomainConstraint[d][d]) || !cons.Clocks[d].IsNetlist {
			continue
		}
		if math.IsInf(cpd[d][d], -1) || cpd[d][d] <= 0 {
			continue
		}
		geomean *= cpd[d][d]
		weighted += math.Log(cpd[d][d]) * float64(cons.Clocks[d].Fanout)
		totalFanout += cons.Clocks[d].Fanout
		count++
	}
	if count > 0 {
		geomean = math.Pow(geomean, 1/float64(count))
		fmt.Fprintf(w, "\nGeometric mean intra-domain period: %g ns (%g MHz)\n",
			1e9*geomean, 1e-6/geomean)
		if totalFanout > 0 {
			weightedPeriod := math.Exp(weighted / float64(totalFanout))
			fmt.Fprintf(w, "Fanout-weighted geomean intra-domain period: %g ns (%g MHz)\n",
				1e9*weightedPeriod, 1e-6/weightedPeriod)
		}
	}
}

// WriteNetDelays echoes the per-net sink delays currently annotated on
// the graph.
func WriteNetDelays(w io.Writer, a *engine.Analyzer) {
	res := a.Build()
	fmt.Fprintf(w, "Net #\tSink\tDelay (s)\n\n")
	for net, drv := range res.NetDriver {
		out := res.Graph.Out(drv)
		for i := range out {
			fmt.Fprintf(w, "%d (%s)\t%d\t%g\n", net, res.NetName[net], i+1, out[i].Tdel)
		}
	}
}

// WriteTimingGraph echoes the graph node table and the level lists.
func WriteTimingGraph(w io.Writer, a *engine.Analyzer) {
	g := a.Graph()
	fmt.Fprintf(w, "Node\tKind\tBlock\tDomain\tClockDelay\tFanout\n\n")
	for n := sta.NodeIndex(0); int(n) < g.NumNodes(); n++ {
		node := g.Node(n)
		live := 0
		for _, e := range g.Out(n) {
			if e.Live() {
				live++
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%g\t%d\n",
			n, node.Kind, node.Block, node.Domain, node.ClockDelay, live)
	}
	fmt.Fprintf(w, "\nLevels: %d\n", g.NumLevels())
	for l, nodes := range g.Levels {
		fmt.Fprintf(w, "Level %d (%d nodes):", l, len(nodes))
		for _, n := range nodes {
			fmt.Fprintf(w, " %d", n)
		}
		fmt.Fprintln(w)
	}
}

// WriteSlacks echoes every net sink's slack, organized by net.
func WriteSlacks(w io.Writer, a *engine.Analyzer) {
	res := a.Build()
	slacks := a.Slacks()
	fmt.Fprintf(w, "Net #\tDriver node\tSink\tSlack\n\n")
	for net := range slacks.Slack {
		for i := 1; i < len(slacks.Slack[net]); i++ {
			if math.IsInf(slacks.Slack[net][i], 1) {
				fmt.Fprintf(w, "%d\t%d\t%d\t--\n", net, res.NetDriver[net], i)
			} else {
				fmt.Fprintf(w, "%d\t%d\t%d\t%g\n", net, res.NetDriver[net], i, slacks.Slack[net][i])
			}
		}
	}
}
