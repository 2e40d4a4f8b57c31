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
	"strings"
)

// WriteInfo dumps the constraint store in a human-readable table form.
// Values are in ns; call before ConvertToSeconds for stable output.
func (c *Constraints) WriteInfo(w io.Writer) {
	fmt.Fprintf(w, "Timing constraints in ns (source clock domains down left side, sink along top).\n")
	fmt.Fprintf(w, "A value of %.2f means the pair of source and sink domains will not be analysed.\n\n", DoNotAnalyse)

	width := 0
	for i := range c.Clocks {
		if n := len(c.Clocks[i].Name); n > width {
			width = n
		}
	}

	fmt.Fprintf(w, "%*s", width+4, "")
	for i := range c.Clocks {
		fmt.Fprintf(w, "%*s", width+4, c.Clocks[i].Name)
	}
	fmt.Fprintln(w)
	for src := range c.Clocks {
		fmt.Fprintf(w, "%-*s", width+4, c.Clocks[src].Name)
		for snk := range c.Clocks {
			fmt.Fprintf(w, "%*.2f", width+4, c.DomainConstraint[src][snk])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\n%d constrained clocks, %d constrained inputs, %d constrained outputs\n",
		len(c.Clocks), len(c.Inputs), len(c.Outputs))
	for i := range c.Inputs {
		in := &c.Inputs[i]
		fmt.Fprintf(w, "Input %s on clock %s with delay %.3f ns\n", in.Name, in.ClockName, in.Delay)
	}
	for i := range c.Outputs {
		out := &c.Outputs[i]
		fmt.Fprintf(w, "Output %s on clock %s with delay %.3f ns\n", out.Name, out.ClockName, out.Delay)
	}

	writeOverrides(w, "Clock-to-clock", c.CC)
	writeOverrides(w, "Clock-to-flipflop", c.CF)
	writeOverrides(w, "Flipflop-to-clock", c.FC)
	writeOverrides(w, "Flipflop-to-flipflop", c.FF)
}

func writeOverrides(w io.Writer, label string, table []Override) {
	if len(table) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s override constraints:\n", label)
	for i := range table {
		o := &table[i]
		switch {
		case o.NumMulticycles > 0:
			fmt.Fprintf(w, "  {%s} -> {%s}: multicycle %d\n",
				strings.Join(o.Sources, " "), strings.Join(o.Sinks, " "), o.NumMulticycles)
		case !Analysed(o.Constraint):
			fmt.Fprintf(w, "  {%s} -> {%s}: cut\n",
				strings.Join(o.Sources, " "), strings.Join(o.Sinks, " "))
		default:
			fmt.Fprintf(w, "  {%s} -> {%s}: %.3f ns\n",
				strings.Join(o.Sources, " "), strings.Join(o.Sinks, " "), o.Constraint)
		}
	}
}

// WriteCommands re-emits the constraint store as SDC commands. Parsing
// the output against the same netlist view reproduces the same domain
// constraint matrix, which is how the round-trip tests exercise the
// reader. Values are in ns; call before ConvertToSeconds.
func (c *Constraints) WriteCommands(w io.Writer) {
	for i := range c.Clocks {
		clk := &c.Clocks[i]
		if clk.IsNetlist {
			fmt.Fprintf(w, "create_clock -period %g -waveform {%g %g} {%s}\n",
				clk.Period, clk.RisingEdge, clk.FallingEdge, clk.Name)
		} else {
			fmt.Fprintf(w, "create_clock -period %g -waveform {%g %g} -name %s\n",
				clk.Period, clk.RisingEdge, clk.FallingEdge, clk.Name)
		}
	}
	for _, table := range []struct {
		rows     []Override
		fromQry  bool
		toQry    bool
	}{
		{c.CC, true, true},
		{c.CF, true, false},
		{c.FC, false, true},
		{c.FF, false, false},
	} {
		for i := range table.rows {
			o := &table.rows[i]
			from := endpointText(o.Sources, table.fromQry)
			to := endpointText(o.Sinks, table.toQry)
			switch {
			case o.NumMulticycles > 0:
				fmt.Fprintf(w, "set_multicycle_path -setup -from %s -to %s %d\n", from, to, o.NumMulticycles)
			case !Analysed(o.Constraint):
				fmt.Fprintf(w, "set_false_path -from %s -to %s\n", from, to)
			default:
				fmt.Fprintf(w, "set_max_delay %g -from %s -to %s\n", o.Constraint, from, to)
			}
		}
	}
	for i := range c.Inputs {
		in := &c.Inputs[i]
		fmt.Fprintf(w, "set_input_delay -clock %s -max %g [get_ports {%s}]\n", in.ClockName, in.Delay, in.Name)
	}
	for i := range c.Outputs {
		out := &c.Outputs[i]
		fmt.Fprintf(w, "set_output_delay -clock %s -max %g [get_ports {%s}]\n", out.ClockName, out.Delay, out.Name)
	}
}

func endpointText(names []string, domainLevel bool) string {
	if domainLevel {
		return "[get_clocks {" + strings.Join(names, " ") + "}]"
	}
	return "{" + strings.Join(names, " ") + "}"
}
