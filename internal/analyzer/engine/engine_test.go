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
	"strings"
	"testing"

	"sta"
	"sta/internal/analyzer/build"
	"sta/internal/analyzer/netlist"
	"sta/internal/analyzer/sdc"
)

func dffModel() *netlist.Model {
	return &netlist.Model{
		Name:      "dff",
		Inputs:    []netlist.Port{{Name: "D", Width: 1}},
		Outputs:   []netlist.Port{{Name: "Q", Width: 1}},
		ClockPort: "clk",
		Tsu:       1e-10,
		TcoMax:    2e-10,
	}
}

// ffChain is a single-clock two-register pipeline:
// clk_pad -> f1/f2 clocks; a -> f1.D; f1.Q -> f2.D; f2.Q -> o1.
func ffChain(t *testing.T) *netlist.Netlist {
	t.Helper()
	nl := &netlist.Netlist{
		Models: map[string]*netlist.Model{"dff": dffModel()},
		Nets: []netlist.Net{
			{Name: "clk"}, {Name: "na"}, {Name: "n1"}, {Name: "n2"},
		},
		Blocks: []netlist.Block{
			{Name: "clk_pad", Kind: netlist.Inpad, PadNet: 0, ClockNet: netlist.NoNet},
			{Name: "a", Kind: netlist.Inpad, PadNet: 1, ClockNet: netlist.NoNet},
			{Name: "f1", Kind: netlist.Primitive, Model: "dff",
				InputNets:  map[string][]int{"D": {1}},
				OutputNets: map[string][]int{"Q": {2}},
				ClockNet:   0, PadNet: netlist.NoNet},
			{Name: "f2", Kind: netlist.Primitive, Model: "dff",
				InputNets:  map[string][]int{"D": {2}},
				OutputNets: map[string][]int{"Q": {3}},
				ClockNet:   0, PadNet: netlist.NoNet},
			{Name: "o1", Kind: netlist.Outpad, PadNet: 3, ClockNet: netlist.NoNet},
		},
	}
	if err := nl.DerivePins(); err != nil {
		t.Fatal(err)
	}
	return nl
}

func view(nl *netlist.Netlist) sdc.Netlist {
	return sdc.Netlist{
		Clocks:  nl.ClockNets(),
		Inputs:  nl.InputNames(),
		Outputs: nl.OutputNames(),
	}
}

func newAnalyzer(t *testing.T, nl *netlist.Netlist, cons *sdc.Constraints, opts Options) *Analyzer {
	t.Helper()
	res, err := build.Atom(nl, 1e-9)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Warnf == nil {
		opts.Warnf = t.Logf
	}
	a, err := New(res, nl, cons, false, opts)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

// With no SDC the design gets one clock with period 0, so the least
// slack equals the negated critical path delay exactly.
func TestAnalyze_SingleClockDefaults(t *testing.T) {
	nl := ffChain(t)
	cons := sdc.Defaults(view(nl))
	a := newAnalyzer(t, nl, cons, Options{})

	if err := a.Analyze(true); err != nil {
		t.Fatal(err)
	}

	if n := cons.NumClocks(); n != 1 {
		t.Fatalf("clocks = %d, want 1", n)
	}
	cpd := a.CPD()[0][0]
	least := a.LeastSlack()[0][0]

	// The clock net itself carries the 1e-9 placeholder delay, so f2
	// launches with 1 ns of skew. The dominant path is f2 -> output
	// pad: launch skew (1e-9) + tco (2e-10) + net (1e-9), with no
	// capture skew to subtract at the pad.
	want := 1e-9 + 2e-10 + 1e-9
	if math.Abs(cpd-want) > 1e-15 {
		t.Errorf("cpd = %g, want %g", cpd, want)
	}
	if math.Abs(least+cpd) > 1e-15 {
		t.Errorf("least slack = %g, want -cpd = %g", least, -cpd)
	}
	if math.Abs(a.CriticalPathDelay()-want) > 1e-15 {
		t.Errorf("CriticalPathDelay = %g, want %g", a.CriticalPathDelay(), want)
	}
}

// The optimizer-facing pass with the default (required-time-relaxed)
// definition never produces negative slacks, and criticalities stay in
// [0, 1].
func TestAnalyze_RelaxedSlacksNonNegative(t *testing.T) {
	nl := ffChain(t)
	cons := sdc.Defaults(view(nl))
	a := newAnalyzer(t, nl, cons, Options{SlackDefinition: SlackReqRelaxed})

	if err := a.Analyze(false); err != nil {
		t.Fatal(err)
	}
	s := a.Slacks()
	for net := range s.Slack {
		for i := 1; i < len(s.Slack[net]); i++ {
			if v := s.Slack[net][i]; !math.IsInf(v, 1) && v < -1e-15 {
				t.Errorf("net %d sink %d: relaxed slack %g is negative", net, i, v)
			}
			if c := s.TimingCriticality[net][i]; c < -0.01 || c > 1.01 {
				t.Errorf("net %d sink %d: criticality %g outside [0,1]", net, i, c)
			}
		}
	}
}

// The final analysis reports true slacks: under the period-0 default
// constraint every analyzed sink slack is negative.
func TestAnalyze_FinalSlacksAreTrue(t *testing.T) {
	nl := ffChain(t)
	cons := sdc.Defaults(view(nl))
	a := newAnalyzer(t, nl, cons, Options{})

	if err := a.Analyze(true); err != nil {
		t.Fatal(err)
	}
	// Period-0 constraint: every analyzed sink slack is negative.
	s := a.Slacks()
	analyzed := 0
	for net := range s.Slack {
		for i := 1; i < len(s.Slack[net]); i++ {
			if !math.IsInf(s.Slack[net][i], 1) {
				analyzed++
				if s.Slack[net][i] > 0 {
					t.Errorf("net %d sink %d: final slack %g should be negative under a 0 ns constraint",
						net, i, s.Slack[net][i])
				}
			}
		}
	}
	if analyzed == 0 {
		t.Fatal("no sink was analyzed")
	}
}

// Scenario: three combinational primitives wired in a ring. The loop
// breaker must cut an edge, warn, and analysis completes.
func TestAnalyze_CombinationalLoop(t *testing.T) {
	and2 := &netlist.Model{
		Name:    "and2",
		Inputs:  []netlist.Port{{Name: "a", Width: 1}, {Name: "b", Width: 1}},
		Outputs: []netlist.Port{{Name: "y", Width: 1}},
		CombDelay: map[string]map[string]float64{
			"a": {"y": 1e-10},
			"b": {"y": 1e-10},
		},
	}
	// Ring y1->g2.a, y2->g3.a, y3->g1.a; pads feed each .b; y3 also
	// drives the output pad.
	nl := &netlist.Netlist{
		Models: map[string]*netlist.Model{"and2": and2},
		Nets: []netlist.Net{
			{Name: "p1"}, {Name: "p2"}, {Name: "p3"},
			{Name: "y1"}, {Name: "y2"}, {Name: "y3"},
		},
		Blocks: []netlist.Block{
			{Name: "i1", Kind: netlist.Inpad, PadNet: 0, ClockNet: netlist.NoNet},
			{Name: "i2", Kind: netlist.Inpad, PadNet: 1, ClockNet: netlist.NoNet},
			{Name: "i3", Kind: netlist.Inpad, PadNet: 2, ClockNet: netlist.NoNet},
			{Name: "g1", Kind: netlist.Primitive, Model: "and2",
				InputNets:  map[string][]int{"a": {5}, "b": {0}},
				OutputNets: map[string][]int{"y": {3}},
				ClockNet:   netlist.NoNet, PadNet: netlist.NoNet},
			{Name: "g2", Kind: netlist.Primitive, Model: "and2",
				InputNets:  map[string][]int{"a": {3}, "b": {1}},
				OutputNets: map[string][]int{"y": {4}},
				ClockNet:   netlist.NoNet, PadNet: netlist.NoNet},
			{Name: "g3", Kind: netlist.Primitive, Model: "and2",
				InputNets:  map[string][]int{"a": {4}, "b": {2}},
				OutputNets: map[string][]int{"y": {5}},
				ClockNet:   netlist.NoNet, PadNet: netlist.NoNet},
			{Name: "o", Kind: netlist.Outpad, PadNet: 5, ClockNet: netlist.NoNet},
		},
	}
	if err := nl.DerivePins(); err != nil {
		t.Fatal(err)
	}

	cons := sdc.Defaults(view(nl))
	var warnings []string
	a := newAnalyzer(t, nl, cons, Options{
		Warnf: func(format string, args ...interface{}) {
			warnings = append(warnings, format)
		},
	})

	if got := a.CountersSnapshot().LoopsBroken; got < 1 {
		t.Fatalf("loops broken = %d, want >= 1", got)
	}
	foundWarn := false
	for _, w := range warnings {
		if strings.Contains(w, "combinational cycle") {
			foundWarn = true
		}
	}
	if !foundWarn {
		t.Error("no combinational-cycle warning emitted")
	}

	if err := a.Analyze(true); err != nil {
		t.Fatal(err)
	}
	if math.IsInf(a.LeastSlackInDesign(), 1) {
		t.Error("analysis produced no slacks after loop breaking")
	}
}

// Scenario: a constant generator feeding a gate. Downstream arrivals
// are bounded only by the non-constant fan-in.
func TestAnalyze_ConstantGenerator(t *testing.T) {
	and2 := &netlist.Model{
		Name:    "and2",
		Inputs:  []netlist.Port{{Name: "a", Width: 1}, {Name: "b", Width: 1}},
		Outputs: []netlist.Port{{Name: "y", Width: 1}},
		CombDelay: map[string]map[string]float64{
			"a": {"y": 1e-10},
			"b": {"y": 5e-10},
		},
	}
	tie := &netlist.Model{Name: "tie0", Outputs: []netlist.Port{{Name: "out", Width: 1}}}
	nl := &netlist.Netlist{
		Models: map[string]*netlist.Model{"and2": and2, "tie0": tie},
		Nets:   []netlist.Net{{Name: "nin"}, {Name: "nc", Const: true}, {Name: "ny"}},
		Blocks: []netlist.Block{
			{Name: "a", Kind: netlist.Inpad, PadNet: 0, ClockNet: netlist.NoNet},
			{Name: "c0", Kind: netlist.Primitive, Model: "tie0",
				OutputNets: map[string][]int{"out": {1}},
				ClockNet:   netlist.NoNet, PadNet: netlist.NoNet},
			{Name: "g", Kind: netlist.Primitive, Model: "and2",
				InputNets:  map[string][]int{"a": {0}, "b": {1}},
				OutputNets: map[string][]int{"y": {2}},
				ClockNet:   netlist.NoNet, PadNet: netlist.NoNet},
			{Name: "o", Kind: netlist.Outpad, PadNet: 2, ClockNet: netlist.NoNet},
		},
	}
	if err := nl.DerivePins(); err != nil {
		t.Fatal(err)
	}
	cons := sdc.Defaults(view(nl))
	a := newAnalyzer(t, nl, cons, Options{})
	if err := a.Analyze(true); err != nil {
		t.Fatal(err)
	}

	// Path: inpad a (0) -> net 1e-9 -> g.a ipin -> y (1e-10) -> net
	// 1e-9 -> outpad -> sink. The constant input's 5e-10 arc must not
	// appear.
	want := 1e-9 + 1e-10 + 1e-9
	if got := a.CriticalPathDelay(); math.Abs(got-want) > 1e-15 {
		t.Errorf("cpd = %g, want %g (constant fan-in excluded)", got, want)
	}
}

// Two clocks with exclusive groups: only the intra-domain pairs (and
// virtual I/O pairs, if any) are analyzed.
func TestAnalyze_TwoClockExclusive(t *testing.T) {
	nl := twoClockNetlist(t)
	cons, err := sdc.Read(strings.NewReader(`
create_clock -period 10 {clka}
create_clock -period 4 {clkb}
set_clock_groups -exclusive -group {clka} -group {clkb}
set_input_delay -clock clka -max 0 [get_ports {a}]
set_output_delay -clock clkb -max 0 [get_ports {o1}]
`), "test.sdc", view(nl))
	if err != nil {
		t.Fatal(err)
	}
	a := newAnalyzer(t, nl, cons, Options{})
	if err := a.Analyze(true); err != nil {
		t.Fatal(err)
	}

	ai, bi := cons.ClockIndex("clka"), cons.ClockIndex("clkb")
	if sdc.Analysed(cons.DomainConstraint[ai][bi]) || sdc.Analysed(cons.DomainConstraint[bi][ai]) {
		t.Error("exclusive groups did not stay cut")
	}
	// The intra-domain pairs still have paths (pad->f1 on clka,
	// f2->pad on clkb) and stay analyzed; the f1->f2 crossing is cut,
	// so both remaining slacks are comfortably positive.
	if math.IsInf(a.LeastSlack()[ai][ai], 1) || math.IsInf(a.LeastSlack()[bi][bi], 1) {
		t.Error("intra-domain pairs should have been analyzed")
	}
	if a.LeastSlackInDesign() < 0 {
		t.Errorf("least slack = %g; cutting the only domain crossing should leave positive slacks",
			a.LeastSlackInDesign())
	}
}

// twoClockNetlist: a -> f1 (clka) -> f2 (clkb) -> o1.
func twoClockNetlist(t *testing.T) *netlist.Netlist {
	t.Helper()
	nl := &netlist.Netlist{
		Models: map[string]*netlist.Model{"dff": dffModel()},
		Nets: []netlist.Net{
			{Name: "clka"}, {Name: "clkb"}, {Name: "na"}, {Name: "n1"}, {Name: "n2"},
		},
		Blocks: []netlist.Block{
			{Name: "clka_pad", Kind: netlist.Inpad, PadNet: 0, ClockNet: netlist.NoNet},
			{Name: "clkb_pad", Kind: netlist.Inpad, PadNet: 1, ClockNet: netlist.NoNet},
			{Name: "a", Kind: netlist.Inpad, PadNet: 2, ClockNet: netlist.NoNet},
			{Name: "f1", Kind: netlist.Primitive, Model: "dff",
				InputNets:  map[string][]int{"D": {2}},
				OutputNets: map[string][]int{"Q": {3}},
				ClockNet:   0, PadNet: netlist.NoNet},
			{Name: "f2", Kind: netlist.Primitive, Model: "dff",
				InputNets:  map[string][]int{"D": {3}},
				OutputNets: map[string][]int{"Q": {4}},
				ClockNet:   1, PadNet: netlist.NoNet},
			{Name: "o1", Kind: netlist.Outpad, PadNet: 4, ClockNet: netlist.NoNet},
		},
	}
	if err := nl.DerivePins(); err != nil {
		t.Fatal(err)
	}
	return nl
}

// Cross-domain analysis: f1 on clka feeds f2 on clkb; the edge-counted
// constraint governs the pair.
func TestAnalyze_CrossDomain(t *testing.T) {
	nl := twoClockNetlist(t)
	cons, err := sdc.Read(strings.NewReader(`
create_clock -period 10 {clka}
create_clock -period 4 {clkb}
set_input_delay -clock clka -max 0 [get_ports {a}]
set_output_delay -clock clkb -max 0 [get_ports {o1}]
`), "test.sdc", view(nl))
	if err != nil {
		t.Fatal(err)
	}
	a := newAnalyzer(t, nl, cons, Options{})
	if err := a.Analyze(true); err != nil {
		t.Fatal(err)
	}

	ai, bi := cons.ClockIndex("clka"), cons.ClockIndex("clkb")
	// Edge counting gives 2 ns for periods 10 and 4; in seconds after
	// conversion.
	if got := cons.DomainConstraint[ai][bi]; math.Abs(got-2e-9) > 1e-18 {
		t.Fatalf("cross constraint = %g, want 2e-9", got)
	}
	// Path delay f1->f2: tco + net + tsu = 1.3 ns; slack = 2 - 1.3.
	gotSlack := a.LeastSlack()[ai][bi]
	if math.Abs(gotSlack-0.7e-9) > 1e-15 {
		t.Errorf("cross-domain least slack = %g, want 0.7e-9", gotSlack)
	}
}

// Clock skew shifts launch and capture: delay on the clock net shows
// up in FF source arrival times and sink required times.
func TestAnalyze_ClockSkew(t *testing.T) {
	nl := ffChain(t)
	res, err := build.Atom(nl, 1e-9)
	if err != nil {
		t.Fatal(err)
	}
	// Give f2's clock branch extra delay: the clk net edge order
	// follows net sink order (f1 then f2).
	clkDrv := res.NetDriver[0]
	out := res.Graph.Out(clkDrv)
	if len(out) != 2 {
		t.Fatalf("clk net has %d edges, want 2", len(out))
	}
	out[1].Tdel = 1.5e-9 // f2's clock pin

	cons := sdc.Defaults(view(nl))
	a, err := New(res, nl, cons, false, Options{Warnf: t.Logf})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Analyze(true); err != nil {
		t.Fatal(err)
	}

	// f1 -> f2 path: launch at skew(f1)=1e-9, arrive sink at
	// 1e-9 + 1.3e-9; capture required = 0 + skew(f2) = 1.5e-9.
	// cpd excludes destination skew: max T_arr - clock_delay.
	// For the f2 sink: 2.3e-9 - 1.5e-9 = 0.8e-9... the o1 sink path
	// from f2 (launch 1.5e-9, arrive 1.5+1.2=2.7e-9, skew 0) gives
	// 2.7e-9 and dominates.
	want := 1.5e-9 + 2e-10 + 1e-9
	if got := a.CPD()[0][0]; math.Abs(got-want) > 1e-15 {
		t.Errorf("cpd with skew = %g, want %g", got, want)
	}
}

// LUT input rebalancing: the most critical signal is moved onto the
// fastest physical input.
func TestAnalyze_LUTRebalancing(t *testing.T) {
	lut2 := &netlist.Model{
		Name:    "lut2",
		Inputs:  []netlist.Port{{Name: "in", Width: 2}},
		Outputs: []netlist.Port{{Name: "out", Width: 1}},
		CombDelay: map[string]map[string]float64{
			"in": {"out": 2e-10},
		},
		IsLUT:       true,
		InputDelays: []float64{1e-10, 3e-10},
	}
	nl := &netlist.Netlist{
		Models: map[string]*netlist.Model{"lut2": lut2},
		Nets:   []netlist.Net{{Name: "nx"}, {Name: "ny"}, {Name: "no"}},
		Blocks: []netlist.Block{
			{Name: "x", Kind: netlist.Inpad, PadNet: 0, ClockNet: netlist.NoNet},
			{Name: "y", Kind: netlist.Inpad, PadNet: 1, ClockNet: netlist.NoNet},
			{Name: "l", Kind: netlist.Primitive, Model: "lut2",
				InputNets:  map[string][]int{"in": {0, 1}},
				OutputNets: map[string][]int{"out": {2}},
				ClockNet:   netlist.NoNet, PadNet: netlist.NoNet},
			{Name: "o", Kind: netlist.Outpad, PadNet: 2, ClockNet: netlist.NoNet},
		},
	}
	if err := nl.DerivePins(); err != nil {
		t.Fatal(err)
	}

	// y arrives 1 ns later than x.
	cons, err := sdc.Read(strings.NewReader(`
create_clock -period 10 -name virt
set_input_delay -clock virt -max 0 [get_ports {x}]
set_input_delay -clock virt -max 1 [get_ports {y}]
set_output_delay -clock virt -max 0 [get_ports {o}]
`), "test.sdc", view(nl))
	if err != nil {
		t.Fatal(err)
	}

	res, err := build.Atom(nl, 0)
	if err != nil {
		t.Fatal(err)
	}
	a, err := New(res, nl, cons, false, Options{RebalanceLUTs: true, Warnf: t.Logf})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Analyze(true); err != nil {
		t.Fatal(err)
	}

	// Balanced: y (arr 1e-9) takes the 1e-10 input, x (arr 0) the
	// 3e-10 one -> LUT output at 1.1e-9. Without rebalancing it would
	// be 1.2e-9 through the 2e-10 logical arc.
	var lutOut sta.NodeIndex = sta.InvalidNode
	for n := range a.Build().LUT {
		lutOut = n
	}
	if lutOut == sta.InvalidNode {
		t.Fatal("no LUT output registered")
	}
	if got := a.Graph().Node(lutOut).TArr; math.Abs(got-1.1e-9) > 1e-15 {
		t.Errorf("balanced LUT output arrival = %g, want 1.1e-9", got)
	}
}

// Unreached domain pairs are pruned so they never contribute to
// criticality denominators.
func TestNew_PrunesUnreachedPairs(t *testing.T) {
	nl := twoClockNetlist(t)
	cons, err := sdc.Read(strings.NewReader(`
create_clock -period 10 {clka}
create_clock -period 4 {clkb}
set_input_delay -clock clka -max 0 [get_ports {a}]
set_output_delay -clock clkb -max 0 [get_ports {o1}]
`), "test.sdc", view(nl))
	if err != nil {
		t.Fatal(err)
	}
	a := newAnalyzer(t, nl, cons, Options{})
	_ = a

	ai, bi := cons.ClockIndex("clka"), cons.ClockIndex("clkb")
	// Nothing clkb-sourced reaches a clka sink (f1's sink is fed only by
	// the input pad on clka, so [clka][clka] survives).
	if sdc.Analysed(cons.DomainConstraint[bi][ai]) {
		t.Error("pair clkb->clka survived pruning despite having no path")
	}
	if !sdc.Analysed(cons.DomainConstraint[ai][bi]) {
		t.Error("pair clka->clkb was pruned despite having a path")
	}
}

// Muxing two clock nets onto one flip-flop clock pin is rejected.
func TestNew_TwoClocksOneClockPin(t *testing.T) {
	// Build a graph where both clock pads reach the same FFClock by
	// wiring both clock nets into a combinational join feeding the
	// clock pin. Simplest structural encoding: one net with two
	// drivers is illegal, so mux through a primitive.
	mux := &netlist.Model{
		Name:    "mux2",
		Inputs:  []netlist.Port{{Name: "a", Width: 1}, {Name: "b", Width: 1}},
		Outputs: []netlist.Port{{Name: "y", Width: 1}},
		CombDelay: map[string]map[string]float64{
			"a": {"y": 1e-10},
			"b": {"y": 1e-10},
		},
	}
	nl := &netlist.Netlist{
		Models: map[string]*netlist.Model{"dff": dffModel(), "mux2": mux},
		Nets: []netlist.Net{
			{Name: "clka"}, {Name: "clkb"}, {Name: "muxed"}, {Name: "nd"}, {Name: "nq"},
		},
		Blocks: []netlist.Block{
			{Name: "clka_pad", Kind: netlist.Inpad, PadNet: 0, ClockNet: netlist.NoNet},
			{Name: "clkb_pad", Kind: netlist.Inpad, PadNet: 1, ClockNet: netlist.NoNet},
			{Name: "m", Kind: netlist.Primitive, Model: "mux2",
				InputNets:  map[string][]int{"a": {0}, "b": {1}},
				OutputNets: map[string][]int{"y": {2}},
				ClockNet:   netlist.NoNet, PadNet: netlist.NoNet},
			{Name: "a_in", Kind: netlist.Inpad, PadNet: 3, ClockNet: netlist.NoNet},
			{Name: "f", Kind: netlist.Primitive, Model: "dff",
				InputNets:  map[string][]int{"D": {3}},
				OutputNets: map[string][]int{"Q": {4}},
				ClockNet:   2, PadNet: netlist.NoNet},
			{Name: "o", Kind: netlist.Outpad, PadNet: 4, ClockNet: netlist.NoNet},
		},
	}
	if err := nl.DerivePins(); err != nil {
		t.Fatal(err)
	}
	res, err := build.Atom(nl, 0)
	if err != nil {
		t.Fatal(err)
	}
	cons, err := sdc.Read(strings.NewReader(`
create_clock -period 10 {clka}
create_clock -period 4 {clkb}
`), "test.sdc", sdc.Netlist{
		Clocks:  []string{"clka", "clkb"},
		Inputs:  nl.InputNames(),
		Outputs: nl.OutputNames(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(res, nl, cons, false, Options{Warnf: t.Logf}); err == nil {
		t.Fatal("expected an error for two clock nets muxed onto one clock pin")
	}
}

// Counters reflect analysis activity.
func TestCounters(t *testing.T) {
	nl := ffChain(t)
	cons := sdc.Defaults(view(nl))
	a := newAnalyzer(t, nl, cons, Options{})
	if err := a.Analyze(false); err != nil {
		t.Fatal(err)
	}
	if err := a.Analyze(true); err != nil {
		t.Fatal(err)
	}
	snap := a.CountersSnapshot()
	if snap.Analyses != 2 {
		t.Errorf("analyses = %d, want 2", snap.Analyses)
	}
	if snap.LoopsBroken != 0 {
		t.Errorf("loops broken = %d, want 0", snap.LoopsBroken)
	}
}

// Slack definitions C and N behave as documented: clipped slacks are
// never negative; N leaves them alone.
func TestAnalyze_SlackDefinitions(t *testing.T) {
	t.Run("Clipped", func(t *testing.T) {
		nl := ffChain(t)
		cons := sdc.Defaults(view(nl))
		a := newAnalyzer(t, nl, cons, Options{SlackDefinition: SlackClipped})
		if err := a.Analyze(false); err != nil {
			t.Fatal(err)
		}
		s := a.Slacks()
		for net := range s.Slack {
			for i := 1; i < len(s.Slack[net]); i++ {
				if v := s.Slack[net][i]; !math.IsInf(v, 1) && v < 0 {
					t.Errorf("clipped slack %g is negative", v)
				}
			}
		}
	})

	t.Run("Shifted", func(t *testing.T) {
		nl := ffChain(t)
		cons := sdc.Defaults(view(nl))
		a := newAnalyzer(t, nl, cons, Options{SlackDefinition: SlackShiftImproved})
		if err := a.Analyze(false); err != nil {
			t.Fatal(err)
		}
		s := a.Slacks()
		for net := range s.Slack {
			for i := 1; i < len(s.Slack[net]); i++ {
				if v := s.Slack[net][i]; !math.IsInf(v, 1) && v < -1e-15 {
					t.Errorf("shifted slack %g is negative", v)
				}
			}
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		nl := ffChain(t)
		cons := sdc.Defaults(view(nl))
		res, err := build.Atom(nl, 0)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := New(res, nl, cons, false, Options{SlackDefinition: "Z"}); err == nil {
			t.Error("unknown slack definition accepted")
		}
	})
}

// End to end: netlist from its YAML description, constraints from SDC
// text, full analysis.
func TestAnalyze_EndToEndYAML(t *testing.T) {
	nl, err := netlist.LoadYAML(strings.NewReader(`
models:
  - name: lut2
    inputs: [{name: in, width: 2}]
    outputs: [{name: out}]
    lut: true
    inputDelays: [1.0e-10, 3.0e-10]
    combDelays:
      - {from: in, to: out, delay: 2.0e-10}
  - name: dff
    inputs: [{name: D}]
    outputs: [{name: Q}]
    clockPort: clk
    tsu: 1.0e-10
    tcoMax: 2.0e-10
blocks:
  - {name: clk_pad, kind: inpad, net: clk}
  - {name: a, kind: inpad, net: na}
  - {name: b, kind: inpad, net: nb}
  - {name: l1, model: lut2, inputs: {in: [na, nb]}, outputs: {out: [n1]}}
  - {name: f1, model: dff, inputs: {D: [n1]}, outputs: {Q: [n2]}, clock: clk}
  - {name: o1, kind: outpad, net: n2}
`))
	if err != nil {
		t.Fatal(err)
	}

	cons, err := sdc.Read(strings.NewReader(`
create_clock -period 5 {clk}
set_input_delay -clock clk -max 0.5 [get_ports {a b}]
set_output_delay -clock clk -max 0 [get_ports {o1}]
`), "e2e.sdc", view(nl))
	if err != nil {
		t.Fatal(err)
	}

	res, err := build.Atom(nl, 1e-9)
	if err != nil {
		t.Fatal(err)
	}
	a, err := New(res, nl, cons, false, Options{RebalanceLUTs: true, Warnf: t.Logf})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Analyze(false); err != nil {
		t.Fatal(err)
	}
	if err := a.Analyze(true); err != nil {
		t.Fatal(err)
	}

	if cpd := a.CriticalPathDelay(); cpd <= 0 || math.IsNaN(cpd) {
		t.Errorf("cpd = %g, want a positive delay", cpd)
	}
	// Period 5 ns comfortably covers the short pipeline.
	if least := a.LeastSlackInDesign(); least < 0 {
		t.Errorf("least slack = %g, want positive under a 5 ns period", least)
	}
}

// Pre-packing mode maintains normalized costs.
func TestAnalyze_PrepackNormalizedCosts(t *testing.T) {
	nl := ffChain(t)
	cons := sdc.Defaults(view(nl))
	res, err := build.Atom(nl, 1e-9)
	if err != nil {
		t.Fatal(err)
	}
	a, err := New(res, nl, cons, true, Options{PathCounting: true, Warnf: t.Logf})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Analyze(false); err != nil {
		t.Fatal(err)
	}
	slack, tArr, total := a.NormalizedCosts()
	touched := false
	for i := range slack {
		if !math.IsInf(slack[i], 1) || !math.IsInf(tArr[i], -1) || !math.IsInf(total[i], -1) {
			touched = true
		}
	}
	if !touched {
		t.Error("pre-pack normalized costs never updated")
	}
}
