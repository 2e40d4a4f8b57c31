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
	"math"

	"sta"
	"sta/internal/analyzer/build"
	"sta/internal/analyzer/sdc"
)

const timeEpsilon = 1e-15

// Analyze performs a full timing analysis: one forward/backward
// traversal pair per active domain constraint, folding the results into
// the slack bundle (min slack, max criticality across pairs). When
// final is true all relaxation and shifting is disabled so the reported
// slacks are true values.
func (a *Analyzer) Analyze(final bool) error {
	a.resetSlacks()
	a.resetStats()
	a.counters.Analyses.Add(1)

	def := a.opts.SlackDefinition
	if a.prepack {
		posInf, negInf := math.Inf(1), math.Inf(-1)
		for i := range a.normSlack {
			a.normSlack[i] = posInf
			a.normTArr[i] = negInf
			a.normTotalPaths[i] = negInf
		}
	}

	smallestSlack := 0.0
	if def == SlackShiftImproved {
		// The most negative slack in the design shifts everything up.
		smallestSlack = a.findLeastSlackInDesign(final)
		if smallestSlack > 0 {
			smallestSlack = 0
		}
		a.resetStats()
	}

	denomGlobal := math.Inf(-1)
	n := a.cons.NumClocks()
	for src := 0; src < n; src++ {
		for snk := 0; snk < n; snk++ {
			if !sdc.Analysed(a.cons.DomainConstraint[src][snk]) {
				continue
			}
			denom, err := a.traversePair(src, snk, final)
			if err != nil {
				return err
			}
			if def == SlackShiftImproved {
				denom -= smallestSlack // smallestSlack <= 0, so this grows the denominator
			}
			a.updateSlacks(denom, final, smallestSlack)
			if a.prepack {
				a.updateNormalizedCosts(denom)
			}
			if def == SlackShifted || def == SlackGlobalRelaxed {
				denomGlobal = math.Max(denomGlobal, denom)
			}
		}
	}

	if (def == SlackShifted || def == SlackGlobalRelaxed) && !final {
		a.finishGlobalCriticality(def, denomGlobal)
	}
	return nil
}

// findLeastSlackInDesign runs every active pair once and returns the
// smallest per-pair least slack seen.
func (a *Analyzer) findLeastSlackInDesign(final bool) float64 {
	n := a.cons.NumClocks()
	for src := 0; src < n; src++ {
		for snk := 0; snk < n; snk++ {
			if !sdc.Analysed(a.cons.DomainConstraint[src][snk]) {
				continue
			}
			// Errors here resurface on the real traversal below.
			_, _ = a.traversePair(src, snk, final)
		}
	}
	least := math.Inf(1)
	for i := range a.leastSlack {
		for j := range a.leastSlack[i] {
			least = math.Min(least, a.leastSlack[i][j])
		}
	}
	if math.IsInf(least, 1) {
		return 0
	}
	return least
}

// traversePair performs the forward and backward traversal for one
// domain pair and returns the criticality denominator for it.
func (a *Analyzer) traversePair(src, snk int, final bool) (float64, error) {
	def := a.opts.SlackDefinition
	relaxed := def == SlackReqRelaxed || def == SlackGlobalRelaxed
	// The unnormalized definition also needs the max arrival, as an
	// explicit term in its criticality denominator.
	trackArr := relaxed || def == SlackNone

	maxTArr := math.Inf(-1)
	maxTReq := math.Inf(-1)

	a.g.ResetTimes()
	if a.prepack {
		for i := range a.critOutputPaths {
			a.critOutputPaths[i] = 0
			a.critInputPaths[i] = 0
		}
	}

	// Seed arrival times at the top-level nodes of the source domain.
	// A flip-flop source launches at its clock skew; a pad's input
	// delay already sits on its out-edge, so the pad launches at 0.
	if a.g.NumLevels() > 0 {
		for _, n := range a.g.Levels[0] {
			node := a.g.Node(n)
			if int(node.Domain) != src {
				continue
			}
			switch node.Kind {
			case sta.FFSource:
				node.TArr = node.ClockDelay
			case sta.InpadSource:
				node.TArr = 0
			}
		}
	}

	// Forward traversal.
	for level := 0; level < a.g.NumLevels(); level++ {
		for _, n := range a.g.Levels[level] {
			node := a.g.Node(n)
			if !node.HasArr() {
				continue // not in the fan-out of this source domain
			}
			out := a.g.Out(n)

			if a.prepack {
				if level == 0 {
					a.critInputPaths[n] = 1
				}
				a.countCriticalInputPaths(n, out)
			}

			for i := range out {
				e := &out[i]
				if !e.Live() {
					continue
				}
				a.setArrival(e.To, n, e.Tdel)
				if trackArr {
					to := a.g.Node(e.To)
					if len(a.g.Out(e.To)) == 0 && int(to.Domain) == snk {
						maxTArr = math.Max(maxTArr, to.TArr)
					}
				}
			}
		}
	}

	// Backward traversal, assigning required times at sinks on the way.
	numDangling := 0
	for level := a.g.NumLevels() - 1; level >= 0; level-- {
		for _, n := range a.g.Levels[level] {
			node := a.g.Node(n)
			out := a.g.Out(n)

			// Sanity: sources appear only at level 0 and level 0 holds
			// only sources (or loop breakpoints).
			if level == 0 {
				if !node.Kind.IsSource() && !node.LoopBreakpoint {
					return 0, &sta.GraphError{Node: n,
						Msg: "traversal started on unexpected node kind " + node.Kind.String()}
				}
			} else if node.Kind == sta.InpadSource || node.Kind == sta.FFSource || node.Kind == sta.ConstGenSource {
				return 0, &sta.GraphError{Node: n,
					Msg: "source node " + node.Kind.String() + " found above level 0"}
			}

			if len(out) == 0 { // sink
				if node.Kind == sta.FFClock || !node.HasArr() {
					continue // clock net leaves and unreached nodes
				}
				if !node.Kind.IsSink() {
					a.counters.DanglingPins.Add(1)
					numDangling++
					// Dangling pins still traverse so the algorithm
					// proceeds; their times never affect real paths.
				}
				if int(node.Domain) != snk {
					continue
				}

				constraint := a.cons.DomainConstraint[src][snk]
				if len(a.cons.CF) > 0 {
					srcName := a.cons.Clocks[src].Name
					if o := a.cons.FindCF(srcName, a.sinkName(n)); o != nil {
						if !sdc.Analysed(o.Constraint) {
							continue // this particular sink is cut
						}
						constraint = o.Constraint
					}
				}

				if relaxed && !final {
					// Relax the required time up to the max arrival so
					// tight constraints cannot produce negative slack.
					node.TReq = math.Max(constraint+node.ClockDelay, maxTArr)
				} else {
					node.TReq = constraint + node.ClockDelay
				}
				maxTReq = math.Max(maxTReq, node.TReq)

				// Critical path delay excludes the sink's clock skew:
				// it is how fast the source clock could run.
				a.cpd[src][snk] = math.Max(a.cpd[src][snk], node.TArr-node.ClockDelay)

				if a.prepack {
					a.critOutputPaths[n] = 1
				}
				continue
			}

			// Internal node: only nodes on a source-to-sink path get a
			// required time. No arrival means no path from the source
			// domain; no finite required time anywhere in the fan-out
			// means no path to the sink domain.
			if !node.HasArr() {
				continue
			}
			reachesSink := false
			for i := range out {
				if out[i].Live() && a.g.Node(out[i].To).HasReq() {
					reachesSink = true
					break
				}
			}
			if !reachesSink {
				continue
			}

			for i := range out {
				e := &out[i]
				if !e.Live() {
					continue
				}
				to := a.g.Node(e.To)
				node.TReq = math.Min(node.TReq, to.TReq-e.Tdel)

				// Least slack per pair is read off edges adjacent to
				// sinks on the sink domain; every path crosses one.
				if len(a.g.Out(e.To)) == 0 && int(to.Domain) == snk && to.HasReq() {
					a.leastSlack[src][snk] = math.Min(a.leastSlack[src][snk],
						to.TReq-e.Tdel-node.TArr)
				}
			}

			if a.prepack {
				a.countCriticalOutputPaths(n, out)
			}
		}
	}

	if numDangling > 0 && (final || a.prepack) {
		a.warnf("%d unused pins", numDangling)
	}

	// The criticality denominator is the max required time; for the
	// unnormalized definition the max arrival is added explicitly.
	if def == SlackNone {
		return maxTReq + maxTArr, nil
	}
	return maxTReq, nil
}

// setArrival folds one edge into the target's arrival time, with
// optional LUT input rebalancing when the target is a LUT output.
func (a *Analyzer) setArrival(to, from sta.NodeIndex, tdel float64) {
	target := a.g.Node(to)
	target.TArr = math.Max(target.TArr, a.g.Node(from).TArr+tdel)

	if !a.opts.RebalanceLUTs {
		return
	}
	info := a.res.LUT[to]
	if info == nil || len(info.PhysDelays) == 0 {
		return
	}
	a.rebalanceLUT(to, info)
}

// rebalanceLUT greedily assigns the fastest free physical LUT input to
// the most critical user signal, rewriting the input pin edge delays
// and the output arrival accordingly. Runs only once all input pins
// have arrival times.
func (a *Analyzer) rebalanceLUT(out sta.NodeIndex, info *build.LUTInfo) {
	for _, in := range info.Inputs {
		if !a.g.Node(in).HasArr() {
			return
		}
	}

	physUsed := make([]bool, len(info.PhysDelays))
	userAssigned := make([]bool, len(info.Inputs))
	balanced := math.Inf(-1)

	for range info.Inputs {
		// Fastest unassigned physical input.
		fastest := -1
		for p := range info.PhysDelays {
			if physUsed[p] {
				continue
			}
			if fastest < 0 || info.PhysDelays[p] < info.PhysDelays[fastest] {
				fastest = p
			}
		}
		if fastest < 0 {
			break
		}
		// Most critical unassigned user input.
		crit := -1
		for u := range info.Inputs {
			if userAssigned[u] {
				continue
			}
			if crit < 0 || a.g.Node(info.Inputs[u]).TArr > a.g.Node(info.Inputs[crit]).TArr {
				crit = u
			}
		}
		if crit < 0 {
			break
		}
		physUsed[fastest] = true
		userAssigned[crit] = true
		edges := a.g.Out(info.Inputs[crit])
		if len(edges) == 1 {
			edges[0].Tdel = info.PhysDelays[fastest]
		}
		balanced = math.Max(balanced, a.g.Node(info.Inputs[crit]).TArr+info.PhysDelays[fastest])
	}
	if !math.IsInf(balanced, -1) {
		a.g.Node(out).TArr = balanced
	}
}

// countCriticalInputPaths maintains the pre-packing count of locally
// critical input paths through each node during the forward traversal.
func (a *Analyzer) countCriticalInputPaths(n sta.NodeIndex, out []sta.Edge) {
	node := a.g.Node(n)
	for i := range out {
		e := &out[i]
		if !e.Live() {
			continue
		}
		to := a.g.Node(e.To)
		through := node.TArr + e.Tdel
		switch {
		case math.Abs(to.TArr-through) < timeEpsilon:
			// Locally as critical as any other path into the target.
			a.critInputPaths[e.To] += a.critInputPaths[n]
		case to.TArr < through:
			a.critInputPaths[e.To] = a.critInputPaths[n]
		}
	}
}

// countCriticalOutputPaths is the backward-traversal counterpart.
func (a *Analyzer) countCriticalOutputPaths(n sta.NodeIndex, out []sta.Edge) {
	node := a.g.Node(n)
	for i := range out {
		e := &out[i]
		if !e.Live() {
			continue
		}
		to := a.g.Node(e.To)
		if math.Abs(to.TReq-(node.TReq+e.Tdel)) < timeEpsilon {
			a.critOutputPaths[n] += a.critOutputPaths[e.To]
		}
	}
}

// sinkName resolves the name used for flip-flop-level override lookup
// at a sink node: the register name for FF sinks, the port name for
// output pads.
func (a *Analyzer) sinkName(n sta.NodeIndex) string {
	if name, ok := a.res.FFName[n]; ok {
		return name
	}
	if name, ok := a.res.PadName[n]; ok {
		return name
	}
	return ""
}

// updateSlacks folds the traversal just finished into the per-net-sink
// slack and criticality arrays. Slack takes the minimum across pairs,
// criticality the maximum.
func (a *Analyzer) updateSlacks(denom float64, final bool, smallestSlack float64) {
	def := a.opts.SlackDefinition
	globalDef := def == SlackShifted || def == SlackGlobalRelaxed

	for net, drv := range a.res.NetDriver {
		driver := a.g.Node(drv)
		if !driver.HasArr() || !driver.HasReq() {
			continue // net not on any analyzed path this traversal
		}
		out := a.g.Out(drv)
		for i := range out {
			e := &out[i]
			if !e.Live() {
				continue
			}
			to := a.g.Node(e.To)
			if !to.HasArr() || !to.HasReq() {
				continue
			}
			slack := to.TReq - driver.TArr - e.Tdel
			if !final {
				switch def {
				case SlackShiftImproved:
					slack -= smallestSlack // smallestSlack <= 0: shift up
				case SlackClipped:
					if slack < 0 {
						slack = 0
					}
				}
			}
			a.slacks.Slack[net][i+1] = math.Min(slack, a.slacks.Slack[net][i+1])

			if globalDef || final {
				continue // criticality comes later (or not at all)
			}
			var crit float64
			if def == SlackClipped && denom == 0 {
				// All slacks were clipped to zero anyway.
				crit = 1
			} else {
				crit = 1 - slack/denom
			}
			a.slacks.TimingCriticality[net][i+1] = math.Max(crit, a.slacks.TimingCriticality[net][i+1])
		}
	}
}

// finishGlobalCriticality computes criticalities once, after all
// traversals, against a single design-wide denominator. For the
// shifted definition the slacks are first raised by the most negative
// least slack.
func (a *Analyzer) finishGlobalCriticality(def string, denom float64) {
	if def == SlackShifted {
		smallest := math.Inf(1)
		for i := range a.leastSlack {
			for j := range a.leastSlack[i] {
				smallest = math.Min(smallest, a.leastSlack[i][j])
			}
		}
		if smallest < 0 {
			for net := range a.slacks.Slack {
				for i := 1; i < len(a.slacks.Slack[net]); i++ {
					a.slacks.Slack[net][i] -= smallest
				}
			}
			denom -= smallest
		}
	}
	for net := range a.slacks.Slack {
		for i := 1; i < len(a.slacks.Slack[net]); i++ {
			if !math.IsInf(a.slacks.Slack[net][i], 1) {
				a.slacks.TimingCriticality[net][i] = 1 - a.slacks.Slack[net][i]/denom
			}
		}
	}
}

// updateNormalizedCosts refreshes the pre-packing per-node costs after
// one traversal pair.
func (a *Analyzer) updateNormalizedCosts(denom float64) {
	maxIn, maxOut := 0.0, 0.0
	for i := range a.critInputPaths {
		maxIn = math.Max(maxIn, a.critInputPaths[i])
		maxOut = math.Max(maxOut, a.critOutputPaths[i])
	}
	if maxIn+maxOut == 0 || denom == 0 {
		return
	}
	for n := 0; n < a.g.NumNodes(); n++ {
		node := a.g.Node(sta.NodeIndex(n))
		if !node.HasArr() || !node.HasReq() {
			continue
		}
		a.normSlack[n] = math.Min(a.normSlack[n], (node.TReq-node.TArr)/denom)
		a.normTArr[n] = math.Max(a.normTArr[n], node.TArr/denom)
		a.normTotalPaths[n] = math.Max(a.normTotalPaths[n],
			(a.critInputPaths[n]+a.critOutputPaths[n])/(maxIn+maxOut))
	}
}

// TraversePairForReport re-runs one pair's traversal so its arrival and
// required times sit on the graph for critical path extraction. Always
// uses true (unrelaxed) times.
func (a *Analyzer) TraversePairForReport(src, snk int) error {
	_, err := a.traversePair(src, snk, true)
	return err
}
