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

// Package netlist holds the structural circuit model the timing graph is
// built from: primitive blocks bound to architecture models, the nets
// connecting their pins, and (post-packing) a clustering overlay with
// intra-cluster routes. Circuit front-ends are out of scope; the model
// is populated programmatically or from the YAML description format.
package netlist

import "fmt"

// Model describes a primitive type from the architecture: its ports and
// the timing annotations the graph builder needs. All delays are in
// seconds.
type Model struct {
	Name string

	Inputs  []Port
	Outputs []Port

	// ClockPort names the clock input for sequential models; empty for
	// combinational ones.
	ClockPort string

	// Sequential timing.
	Tsu    float64 // setup time at data inputs
	TcoMax float64 // max clock-to-Q at data outputs

	// CombDelay[in][out] is the max combinational delay from an input
	// port to an output port. Missing entries mean no path.
	CombDelay map[string]map[string]float64

	// LUT models additionally carry the physical delay of each input
	// pin, enabling input rebalancing.
	IsLUT       bool
	InputDelays []float64

	// ClockGen marks models whose outputs generate a clock (e.g. PLL).
	ClockGen bool
}

// Port is a named bus on a model.
type Port struct {
	Name  string
	Width int
}

// FindPort looks a port up by name in either direction. The second
// result reports whether the port is an output.
func (m *Model) FindPort(name string) (*Port, bool, error) {
	for i := range m.Inputs {
		if m.Inputs[i].Name == name {
			return &m.Inputs[i], false, nil
		}
	}
	for i := range m.Outputs {
		if m.Outputs[i].Name == name {
			return &m.Outputs[i], true, nil
		}
	}
	if name == m.ClockPort && name != "" {
		return nil, false, nil
	}
	return nil, false, &PortNotFoundError{Model: m.Name, Port: name}
}

// PortNotFoundError reports a pin bound to a port its model does not
// declare.
type PortNotFoundError struct {
	Model string
	Port  string
}

func (e *PortNotFoundError) Error() string {
	return fmt.Sprintf("model %s has no port named %s", e.Model, e.Port)
}

// BlockKind distinguishes the three structural block classes.
type BlockKind uint8

const (
	Inpad BlockKind = iota
	Outpad
	Primitive
)

func (k BlockKind) String() string {
	switch k {
	case Inpad:
		return "inpad"
	case Outpad:
		return "outpad"
	default:
		return "primitive"
	}
}

// NoNet marks an unconnected pin.
const NoNet = -1

// Block is one netlist block. Pads use the sole connection slots; for
// primitives every used pin maps a (port, bit) to a net index.
type Block struct {
	Name  string
	Kind  BlockKind
	Model string // primitive model name; empty for pads

	// InputNets[port][bit] and OutputNets[port][bit] connect primitive
	// pins to nets. NoNet entries are open pins and produce no timing
	// node.
	InputNets  map[string][]int
	OutputNets map[string][]int

	// ClockNet connects the clock pin of a sequential primitive.
	ClockNet int

	// PadNet is the single net of an inpad or outpad.
	PadNet int
}

// Pin addresses one pin of a block.
type Pin struct {
	Block int
	Port  string
	Bit   int
}

// Net is a signal: one driver pin and an ordered sink list. The sink
// order is load-bearing — the timing graph's driver out-edges mirror it
// index for index, which is what lets net delay annotation and
// slack-to-net mapping work by position.
type Net struct {
	Name   string
	Driver Pin
	Sinks  []Pin

	// Const marks a net driven by a constant generator.
	Const bool
}

// Netlist is the primitive (atom) circuit.
type Netlist struct {
	Blocks []Block
	Nets   []Net
	Models map[string]*Model
}

// ModelOf returns the model of a primitive block.
func (nl *Netlist) ModelOf(b *Block) (*Model, error) {
	m := nl.Models[b.Model]
	if m == nil {
		return nil, fmt.Errorf("block %s references unknown model %q", b.Name, b.Model)
	}
	return m, nil
}

// ClockNets returns the names of all nets that drive at least one
// sequential clock pin, plus nets driven by clock-generator outputs.
func (nl *Netlist) ClockNets() []string {
	isClock := make(map[int]bool)
	for i := range nl.Blocks {
		b := &nl.Blocks[i]
		if b.Kind != Primitive {
			continue
		}
		if b.ClockNet != NoNet {
			isClock[b.ClockNet] = true
		}
		if m := nl.Models[b.Model]; m != nil && m.ClockGen {
			for _, nets := range b.OutputNets {
				for _, n := range nets {
					if n != NoNet {
						isClock[n] = true
					}
				}
			}
		}
	}
	var names []string
	for i := range nl.Nets {
		if isClock[i] {
			names = append(names, nl.Nets[i].Name)
		}
	}
	return names
}

// InputNames returns the names of all input pads.
func (nl *Netlist) InputNames() []string {
	var names []string
	for i := range nl.Blocks {
		if nl.Blocks[i].Kind == Inpad {
			names = append(names, nl.Blocks[i].Name)
		}
	}
	return names
}

// OutputNames returns the names of all output pads.
func (nl *Netlist) OutputNames() []string {
	var names []string
	for i := range nl.Blocks {
		if nl.Blocks[i].Kind == Outpad {
			names = append(names, nl.Blocks[i].Name)
		}
	}
	return names
}

// Check validates structural consistency: every pin's net index is in
// range, every net's driver and sinks point back at real blocks, and
// every primitive references a known model with the ports it uses.
func (nl *Netlist) Check() error {
	for bi := range nl.Blocks {
		b := &nl.Blocks[bi]
		switch b.Kind {
		case Inpad, Outpad:
			if b.PadNet != NoNet && (b.PadNet < 0 || b.PadNet >= len(nl.Nets)) {
				return fmt.Errorf("pad %s: net index %d out of range", b.Name, b.PadNet)
			}
		case Primitive:
			m, err := nl.ModelOf(b)
			if err != nil {
				return err
			}
			for port, nets := range b.InputNets {
				if _, isOut, err := m.FindPort(port); err != nil {
					return err
				} else if isOut {
					return fmt.Errorf("block %s: input pin bound to output port %s", b.Name, port)
				}
				for _, n := range nets {
					if n != NoNet && (n < 0 || n >= len(nl.Nets)) {
						return fmt.Errorf("block %s port %s: net index %d out of range", b.Name, port, n)
					}
				}
			}
			for port, nets := range b.OutputNets {
				if _, isOut, err := m.FindPort(port); err != nil {
					return err
				} else if !isOut {
					return fmt.Errorf("block %s: output pin bound to input port %s", b.Name, port)
				}
				for _, n := range nets {
					if n != NoNet && (n < 0 || n >= len(nl.Nets)) {
						return fmt.Errorf("block %s port %s: net index %d out of range", b.Name, port, n)
					}
				}
			}
			if b.ClockNet != NoNet {
				if m.ClockPort == "" {
					return fmt.Errorf("block %s: clock pin on combinational model %s", b.Name, m.Name)
				}
				if b.ClockNet < 0 || b.ClockNet >= len(nl.Nets) {
					return fmt.Errorf("block %s: clock net index %d out of range", b.Name, b.ClockNet)
				}
			}
		}
	}
	for ni := range nl.Nets {
		n := &nl.Nets[ni]
		if n.Driver.Block < 0 || n.Driver.Block >= len(nl.Blocks) {
			return fmt.Errorf("net %s: driver block %d out of range", n.Name, n.Driver.Block)
		}
		for _, s := range n.Sinks {
			if s.Block < 0 || s.Block >= len(nl.Blocks) {
				return fmt.Errorf("net %s: sink block %d out of range", n.Name, s.Block)
			}
		}
	}
	return nil
}
