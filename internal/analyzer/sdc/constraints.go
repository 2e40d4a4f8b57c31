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

package sdc

import (
	"fmt"
	"io"
	"math"
)

// DoNotAnalyse disables a domain pair (or an override) in the constraint
// matrix. Any strictly negative entry means the pair is cut.
const DoNotAnalyse = -1.0

// epsilon for float comparisons on constraint values (values are in ns
// until ConvertToSeconds).
const epsilon = 1e-15

// Analysed reports whether a constraint matrix entry enables analysis.
func Analysed(c float64) bool { return c > -epsilon }

// Clock is one constrained clock domain. Virtual clocks have no netlist
// source; their names exist only in the SDC file.
type Clock struct {
	Name          string
	IsNetlist     bool
	Fanout        int // filled during clock propagation
	Period        float64
	RisingEdge    float64
	FallingEdge   float64
}

// IO is one constrained input or output port.
type IO struct {
	Name      string
	ClockName string
	Delay     float64 // ns
	Line      int
}

// Override is a user constraint that supplants the default edge-counted
// value between source and sink lists. The lists hold clock-domain names
// or flip-flop names depending on which of the four override tables the
// entry lives in.
type Override struct {
	Sources        []string
	Sinks          []string
	Constraint     float64 // ns; DoNotAnalyse cuts the paths
	NumMulticycles int
	Line           int
}

// Constraints is the resolved constraint store for one analysis context.
type Constraints struct {
	Clocks []Clock

	// DomainConstraint[src][snk] is the allowed propagation time between
	// two clock domains, in ns until ConvertToSeconds flips the store to
	// seconds. DoNotAnalyse disables the pair.
	DomainConstraint [][]float64

	// Override tables: clock-to-clock, clock-to-flipflop, flipflop-to-
	// clock and flipflop-to-flipflop.
	CC, CF, FC, FF []Override

	Inputs  []IO
	Outputs []IO

	inSeconds bool
}

// UndefinedClockError reports a reference to a clock that was never
// created by create_clock.
type UndefinedClockError struct {
	File  string
	Line  int
	Ref   string // referencing object (I/O or override token)
	Clock string
}

func (e *UndefinedClockError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("%s:%d: %s is associated with an unconstrained clock %s", e.File, e.Line, e.Ref, e.Clock)
	}
	return fmt.Sprintf("%s:%d: %s is not a constrained clock", e.File, e.Line, e.Clock)
}

// UndefinedIOError reports an I/O pattern that matched no netlist port.
type UndefinedIOError struct {
	File    string
	Line    int
	Pattern string
}

func (e *UndefinedIOError) Error() string {
	return fmt.Sprintf("%s:%d: port pattern %q matches no netlist input or output", e.File, e.Line, e.Pattern)
}

// ClockIndex returns the domain index of a clock name, or -1.
func (c *Constraints) ClockIndex(name string) int {
	for i := range c.Clocks {
		if c.Clocks[i].Name == name {
			return i
		}
	}
	return -1
}

// NumClocks returns the number of constrained clock domains.
func (c *Constraints) NumClocks() int { return len(c.Clocks) }

// FindInput returns the constrained input with the given name, or nil.
func (c *Constraints) FindInput(name string) *IO {
	for i := range c.Inputs {
		if c.Inputs[i].Name == name {
			return &c.Inputs[i]
		}
	}
	return nil
}

// FindOutput returns the constrained output with the given name, or nil.
func (c *Constraints) FindOutput(name string) *IO {
	for i := range c.Outputs {
		if c.Outputs[i].Name == name {
			return &c.Outputs[i]
		}
	}
	return nil
}

// FindCC returns the clock-to-clock override covering the named source
// and sink domains, or nil.
func (c *Constraints) FindCC(src, snk string) *Override {
	return findOverride(c.CC, src, snk)
}

// FindCF returns the clock-to-flipflop override covering the named
// source domain and sink register, or nil.
func (c *Constraints) FindCF(srcClock, sinkFF string) *Override {
	return findOverride(c.CF, srcClock, sinkFF)
}

func findOverride(table []Override, src, snk string) *Override {
	for i := range table {
		o := &table[i]
		if containsName(o.Sources, src) && containsName(o.Sinks, snk) {
			return o
		}
	}
	return nil
}

func containsName(list []string, name string) bool {
	for _, s := range list {
		if s == name {
			return true
		}
	}
	return false
}

func (c *Constraints) addClock(clk Clock) int {
	if i := c.ClockIndex(clk.Name); i >= 0 {
		return i
	}
	c.Clocks = append(c.Clocks, clk)
	return len(c.Clocks) - 1
}

// calculateConstraint determines the implied setup constraint between
// two clocks by edge counting: the smallest strictly positive gap from a
// source rising edge to a sink rising edge over one LCM period. Periods
// and edges are scaled by 1000 and truncated so the enumeration runs on
// integers.
func calculateConstraint(src, snk *Clock) float64 {
	if math.Abs(src.Period-snk.Period) < epsilon &&
		math.Abs(src.RisingEdge-snk.RisingEdge) < epsilon &&
		math.Abs(src.FallingEdge-snk.FallingEdge) < epsilon {
		return src.Period
	}
	if src.Period < epsilon || snk.Period < epsilon {
		return 0
	}

	srcPeriod := int64(src.Period * 1000)
	snkPeriod := int64(snk.Period * 1000)
	srcRise := int64(src.RisingEdge * 1000)
	snkRise := int64(snk.RisingEdge * 1000)

	l := lcm(srcPeriod, snkPeriod)

	best := int64(math.MaxInt64)
	for s := srcRise; s <= srcRise+l; s += srcPeriod {
		for k := snkRise; k <= snkRise+l; k += snkPeriod {
			if k > s && k-s < best {
				best = k - s
			}
		}
	}
	return float64(best) / 1000
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int64) int64 { return a / gcd(a, b) * b }

// ConstraintError reports a domain pair whose resolved constraint is
// negative or non-finite and cannot be normalized.
type ConstraintError struct {
	Source, Sink string
	Value        float64
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint from %s to %s resolves to unusable value %g ns", e.Source, e.Sink, e.Value)
}

// resolveMatrix fills DomainConstraint from the clock table and the
// clock-to-clock overrides. A multicycle override takes the edge-counted
// default plus (N-1) sink periods; other overrides replace the default
// outright.
func (c *Constraints) resolveMatrix() error {
	n := len(c.Clocks)
	c.DomainConstraint = make([][]float64, n)
	for i := range c.DomainConstraint {
		c.DomainConstraint[i] = make([]float64, n)
	}
	for src := 0; src < n; src++ {
		for snk := 0; snk < n; snk++ {
			var v float64
			if o := c.FindCC(c.Clocks[src].Name, c.Clocks[snk].Name); o != nil {
				if o.NumMulticycles == 0 {
					c.DomainConstraint[src][snk] = o.Constraint
					continue // overrides may legitimately be negative (cut)
				}
				v = calculateConstraint(&c.Clocks[src], &c.Clocks[snk]) +
					float64(o.NumMulticycles-1)*c.Clocks[snk].Period
			} else {
				v = calculateConstraint(&c.Clocks[src], &c.Clocks[snk])
			}
			if v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
				return &ConstraintError{Source: c.Clocks[src].Name, Sink: c.Clocks[snk].Name, Value: v}
			}
			c.DomainConstraint[src][snk] = v
		}
	}
	return nil
}

// ConvertToSeconds rescales the domain matrix and the flip-flop-level
// override tables from nanoseconds to seconds. Cut entries stay cut.
// I/O delays are not touched here: they are normalized when written
// onto the timing graph edges.
func (c *Constraints) ConvertToSeconds() {
	if c.inSeconds {
		return
	}
	c.inSeconds = true
	for i := range c.DomainConstraint {
		for j := range c.DomainConstraint[i] {
			if Analysed(c.DomainConstraint[i][j]) {
				c.DomainConstraint[i][j] *= 1e-9
			}
		}
	}
	for _, table := range [][]Override{c.CF, c.FC, c.FF} {
		for i := range table {
			if Analysed(table[i].Constraint) {
				table[i].Constraint *= 1e-9
			}
		}
	}
}

// Netlist is the view of the circuit the SDC reader needs: which nets
// are clocks and which ports are primary inputs and outputs.
type Netlist struct {
	Clocks  []string
	Inputs  []string
	Outputs []string
}

// Read parses SDC text and resolves it against the netlist view. A nil
// or empty reader (or one containing only comments) falls back to
// Defaults.
func Read(r io.Reader, file string, nl Netlist) (*Constraints, error) {
	if r == nil {
		return Defaults(nl), nil
	}
	cmds, err := parse(r, file)
	if err != nil {
		return nil, err
	}
	if len(cmds) == 0 {
		return Defaults(nl), nil
	}

	c := &Constraints{}
	for i := range cmds {
		if err := c.apply(&cmds[i], file, nl); err != nil {
			return nil, err
		}
	}

	// Every virtual clock referenced by an I/O constraint must itself
	// have been constrained.
	for i := range c.Inputs {
		in := &c.Inputs[i]
		if c.ClockIndex(in.ClockName) < 0 {
			return nil, &UndefinedClockError{File: file, Line: in.Line,
				Ref: "input " + in.Name, Clock: in.ClockName}
		}
	}
	for i := range c.Outputs {
		out := &c.Outputs[i]
		if c.ClockIndex(out.ClockName) < 0 {
			return nil, &UndefinedClockError{File: file, Line: out.Line,
				Ref: "output " + out.Name, Clock: out.ClockName}
		}
	}
	// Same for every clock named in a clock-to-clock override.
	for i := range c.CC {
		o := &c.CC[i]
		for _, name := range append(append([]string{}, o.Sources...), o.Sinks...) {
			if c.ClockIndex(name) < 0 {
				return nil, &UndefinedClockError{File: file, Line: o.Line, Clock: name}
			}
		}
	}

	if err := c.resolveMatrix(); err != nil {
		return nil, err
	}
	return c, nil
}

// Defaults builds the constraint store used when no SDC file is given:
// a single-clock (or clockless) design gets one combined clock with
// period 0 and all I/Os constrained on it; a multi-clock design gets a
// virtual I/O clock, intra-domain constraints of 0, and every
// cross-netlist-clock pair cut.
func Defaults(nl Netlist) *Constraints {
	c := &Constraints{}
	for _, name := range nl.Clocks {
		c.addClock(Clock{Name: name, IsNetlist: true})
	}

	if len(c.Clocks) <= 1 {
		if len(c.Clocks) == 0 {
			c.addClock(Clock{Name: VirtualIOClock})
		}
		c.DomainConstraint = [][]float64{{0}}
		c.constrainAllIOs(nl, c.Clocks[0].Name)
		return c
	}

	virt := c.addClock(Clock{Name: VirtualIOClock})
	c.constrainAllIOs(nl, VirtualIOClock)

	n := len(c.Clocks)
	c.DomainConstraint = make([][]float64, n)
	for i := range c.DomainConstraint {
		c.DomainConstraint[i] = make([]float64, n)
		for j := range c.DomainConstraint[i] {
			if i == j || i == virt || j == virt {
				c.DomainConstraint[i][j] = 0
			} else {
				c.DomainConstraint[i][j] = DoNotAnalyse
			}
		}
	}
	return c
}

// VirtualIOClock names the clock invented to constrain I/Os when the
// SDC file does not supply one.
const VirtualIOClock = "virtual_io_clock"

func (c *Constraints) constrainAllIOs(nl Netlist, clockName string) {
	for _, in := range nl.Inputs {
		if c.FindInput(in) == nil {
			c.Inputs = append(c.Inputs, IO{Name: in, ClockName: clockName})
		}
	}
	for _, out := range nl.Outputs {
		if c.FindOutput(out) == nil {
			c.Outputs = append(c.Outputs, IO{Name: out, ClockName: clockName})
		}
	}
}

func (c *Constraints) apply(cmd *command, file string, nl Netlist) error {
	switch {
	case cmd.createClock != nil:
		return c.applyCreateClock(cmd.createClock, cmd.line, file, nl)
	case cmd.clockGroups != nil:
		return c.applyClockGroups(cmd.clockGroups, cmd.line)
	case cmd.falsePath != nil:
		c.addOverride(cmd.falsePath.from, cmd.falsePath.to, DoNotAnalyse, 0, cmd.line)
		return nil
	case cmd.maxDelay != nil:
		c.addOverride(cmd.maxDelay.from, cmd.maxDelay.to, cmd.maxDelay.delay, 0, cmd.line)
		return nil
	case cmd.multicycle != nil:
		mc := cmd.multicycle
		if !mc.from.domainLevel || !mc.to.domainLevel {
			return &SyntaxError{File: file, Line: cmd.line,
				Msg: "set_multicycle_path endpoints must be clock domains ([get_clocks ...])"}
		}
		c.addOverride(mc.from, mc.to, 0, mc.cycles, cmd.line)
		return nil
	case cmd.ioDelay != nil:
		return c.applyIoDelay(cmd.ioDelay, cmd.line, file, nl)
	}
	return &SyntaxError{File: file, Line: cmd.line, Msg: "empty command"}
}

func (c *Constraints) applyCreateClock(cc *createClock, line int, file string, nl Netlist) error {
	if cc.name != "" {
		c.addClock(Clock{
			Name:        cc.name,
			Period:      cc.period,
			RisingEdge:  cc.rising,
			FallingEdge: cc.falling,
		})
		return nil
	}
	matchedAny := false
	for _, target := range cc.targets {
		matched := false
		for _, clk := range nl.Clocks {
			ok, err := MatchName(clk, target)
			if err != nil {
				return &SyntaxError{File: file, Line: line, Near: target, Msg: err.Error()}
			}
			if !ok {
				continue
			}
			matched = true
			c.addClock(Clock{
				Name:        clk,
				IsNetlist:   true,
				Period:      cc.period,
				RisingEdge:  cc.rising,
				FallingEdge: cc.falling,
			})
		}
		matchedAny = matchedAny || matched
	}
	if !matchedAny {
		return &SyntaxError{File: file, Line: line,
			Msg: "create_clock target matches no netlist clock"}
	}
	return nil
}

func (c *Constraints) applyClockGroups(cg *clockGroups, line int) error {
	// Every ordered pair of distinct groups cuts paths both ways.
	for i, gi := range cg.groups {
		for j, gj := range cg.groups {
			if i == j {
				continue
			}
			c.CC = append(c.CC, Override{
				Sources:    gi,
				Sinks:      gj,
				Constraint: DoNotAnalyse,
				Line:       line,
			})
		}
	}
	return nil
}

func (c *Constraints) addOverride(from, to endpointList, constraint float64, multicycles, line int) {
	o := Override{
		Sources:        from.names,
		Sinks:          to.names,
		Constraint:     constraint,
		NumMulticycles: multicycles,
		Line:           line,
	}
	switch {
	case from.domainLevel && to.domainLevel:
		c.CC = append(c.CC, o)
	case from.domainLevel:
		c.CF = append(c.CF, o)
	case to.domainLevel:
		c.FC = append(c.FC, o)
	default:
		c.FF = append(c.FF, o)
	}
}

func (c *Constraints) applyIoDelay(io *ioDelay, line int, file string, nl Netlist) error {
	clockName := io.clock
	if clockName == "*" {
		// A wildcard clock is only unambiguous when the netlist has
		// exactly one clock.
		if len(nl.Clocks) != 1 {
			return &SyntaxError{File: file, Line: line, Near: "*",
				Msg: fmt.Sprintf("wildcard -clock needs exactly one netlist clock, have %d", len(nl.Clocks))}
		}
		clockName = nl.Clocks[0]
	}

	ports := nl.Outputs
	if io.input {
		ports = nl.Inputs
	}
	for _, pat := range io.ports {
		matched := false
		for _, port := range ports {
			ok, err := MatchName(port, pat)
			if err != nil {
				return &SyntaxError{File: file, Line: line, Near: pat, Msg: err.Error()}
			}
			if !ok {
				continue
			}
			matched = true
			entry := IO{Name: port, ClockName: clockName, Delay: io.delay, Line: line}
			if io.input {
				if c.FindInput(port) == nil {
					c.Inputs = append(c.Inputs, entry)
				}
			} else {
				if c.FindOutput(port) == nil {
					c.Outputs = append(c.Outputs, entry)
				}
			}
		}
		if !matched {
			return &UndefinedIOError{File: file, Line: line, Pattern: pat}
		}
	}
	return nil
}
