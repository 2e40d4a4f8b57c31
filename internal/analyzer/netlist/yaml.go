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

package netlist

import (
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

// YAML description format for primitive netlists. Nets are referenced
// by name; the loader assigns indexes and derives each net's driver and
// sink list from the block connections. Sink order is normalized to
// (block index, port name, bit) so repeated loads produce identical
// graphs.

type yamlDoc struct {
	Models []yamlModel `yaml:"models"`
	Blocks []yamlBlock `yaml:"blocks"`
	// ConstNets lists nets driven by constant generators.
	ConstNets []string `yaml:"constNets,omitempty"`
}

type yamlModel struct {
	Name        string          `yaml:"name"`
	Inputs      []yamlPort      `yaml:"inputs,omitempty"`
	Outputs     []yamlPort      `yaml:"outputs,omitempty"`
	ClockPort   string          `yaml:"clockPort,omitempty"`
	Tsu         float64         `yaml:"tsu,omitempty"`
	TcoMax      float64         `yaml:"tcoMax,omitempty"`
	CombDelays  []yamlCombDelay `yaml:"combDelays,omitempty"`
	Lut         bool            `yaml:"lut,omitempty"`
	InputDelays []float64       `yaml:"inputDelays,omitempty"`
	ClockGen    bool            `yaml:"clockGen,omitempty"`
}

type yamlPort struct {
	Name  string `yaml:"name"`
	Width int    `yaml:"width,omitempty"`
}

type yamlCombDelay struct {
	From  string  `yaml:"from"`
	To    string  `yaml:"to"`
	Delay float64 `yaml:"delay"`
}

type yamlBlock struct {
	Name    string              `yaml:"name"`
	Kind    string              `yaml:"kind,omitempty"` // inpad | outpad | primitive (default)
	Model   string              `yaml:"model,omitempty"`
	Net     string              `yaml:"net,omitempty"` // pad net
	Inputs  map[string][]string `yaml:"inputs,omitempty"`
	Outputs map[string][]string `yaml:"outputs,omitempty"`
	Clock   string              `yaml:"clock,omitempty"`
}

// LoadYAML reads a primitive netlist description.
func LoadYAML(r io.Reader) (*Netlist, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("netlist description: %w", err)
	}
	return doc.build()
}

func (doc *yamlDoc) build() (*Netlist, error) {
	nl := &Netlist{Models: make(map[string]*Model)}

	for i := range doc.Models {
		ym := &doc.Models[i]
		m := &Model{
			Name:        ym.Name,
			ClockPort:   ym.ClockPort,
			Tsu:         ym.Tsu,
			TcoMax:      ym.TcoMax,
			IsLUT:       ym.Lut,
			InputDelays: ym.InputDelays,
			ClockGen:    ym.ClockGen,
		}
		for _, p := range ym.Inputs {
			m.Inputs = append(m.Inputs, Port{Name: p.Name, Width: widthOrOne(p.Width)})
		}
		for _, p := range ym.Outputs {
			m.Outputs = append(m.Outputs, Port{Name: p.Name, Width: widthOrOne(p.Width)})
		}
		if len(ym.CombDelays) > 0 {
			m.CombDelay = make(map[string]map[string]float64)
			for _, cd := range ym.CombDelays {
				if m.CombDelay[cd.From] == nil {
					m.CombDelay[cd.From] = make(map[string]float64)
				}
				m.CombDelay[cd.From][cd.To] = cd.Delay
			}
		}
		if _, dup := nl.Models[m.Name]; dup {
			return nil, fmt.Errorf("duplicate model %q", m.Name)
		}
		nl.Models[m.Name] = m
	}

	netIdx := make(map[string]int)
	netFor := func(name string) int {
		if name == "" {
			return NoNet
		}
		if i, ok := netIdx[name]; ok {
			return i
		}
		netIdx[name] = len(nl.Nets)
		nl.Nets = append(nl.Nets, Net{Name: name, Driver: Pin{Block: -1}})
		return netIdx[name]
	}

	for bi := range doc.Blocks {
		yb := &doc.Blocks[bi]
		b := Block{Name: yb.Name, ClockNet: NoNet, PadNet: NoNet}
		switch yb.Kind {
		case "inpad":
			b.Kind = Inpad
			b.PadNet = netFor(yb.Net)
		case "outpad":
			b.Kind = Outpad
			b.PadNet = netFor(yb.Net)
		case "", "primitive":
			b.Kind = Primitive
			b.Model = yb.Model
			if nl.Models[b.Model] == nil {
				return nil, fmt.Errorf("block %s: unknown model %q", yb.Name, yb.Model)
			}
			b.InputNets = netMap(yb.Inputs, netFor)
			b.OutputNets = netMap(yb.Outputs, netFor)
			b.ClockNet = netFor(yb.Clock)
		default:
			return nil, fmt.Errorf("block %s: unknown kind %q", yb.Name, yb.Kind)
		}
		nl.Blocks = append(nl.Blocks, b)
	}

	if err := nl.DerivePins(); err != nil {
		return nil, err
	}

	for _, name := range doc.ConstNets {
		i, ok := netIdx[name]
		if !ok {
			return nil, fmt.Errorf("constNets names unknown net %q", name)
		}
		nl.Nets[i].Const = true
	}

	if err := nl.Check(); err != nil {
		return nil, err
	}
	return nl, nil
}

func widthOrOne(w int) int {
	if w <= 0 {
		return 1
	}
	return w
}

func netMap(src map[string][]string, netFor func(string) int) map[string][]int {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string][]int, len(src))
	for port, nets := range src {
		idxs := make([]int, len(nets))
		for i, n := range nets {
			idxs[i] = netFor(n)
		}
		out[port] = idxs
	}
	return out
}

// DerivePins fills each net's driver and sink list from the block
// connections, in normalized order. Callers assembling a netlist
// programmatically run it once all blocks are in place.
func (nl *Netlist) DerivePins() error {
	type conn struct {
		pin    Pin
		output bool
	}
	conns := make([][]conn, len(nl.Nets))
	add := func(net int, p Pin, output bool) {
		if net != NoNet {
			conns[net] = append(conns[net], conn{pin: p, output: output})
		}
	}

	for bi := range nl.Blocks {
		b := &nl.Blocks[bi]
		switch b.Kind {
		case Inpad:
			add(b.PadNet, Pin{Block: bi, Port: "inpad"}, true)
		case Outpad:
			add(b.PadNet, Pin{Block: bi, Port: "outpad"}, false)
		case Primitive:
			for port, nets := range b.InputNets {
				for bit, n := range nets {
					add(n, Pin{Block: bi, Port: port, Bit: bit}, false)
				}
			}
			for port, nets := range b.OutputNets {
				for bit, n := range nets {
					add(n, Pin{Block: bi, Port: port, Bit: bit}, true)
				}
			}
			// Clock pins are sinks of their clock net.
			if b.ClockNet != NoNet {
				m := nl.Models[b.Model]
				port := "clk"
				if m != nil && m.ClockPort != "" {
					port = m.ClockPort
				}
				add(b.ClockNet, Pin{Block: bi, Port: port}, false)
			}
		}
	}

	for ni := range nl.Nets {
		var driver *Pin
		var sinks []Pin
		for i := range conns[ni] {
			c := &conns[ni][i]
			if c.output {
				if driver != nil {
					return fmt.Errorf("net %s has two drivers (%s and %s)",
						nl.Nets[ni].Name, nl.Blocks[driver.Block].Name, nl.Blocks[c.pin.Block].Name)
				}
				p := c.pin
				driver = &p
			} else {
				sinks = append(sinks, c.pin)
			}
		}
		if driver == nil {
			return fmt.Errorf("net %s has no driver", nl.Nets[ni].Name)
		}
		sort.Slice(sinks, func(a, b int) bool {
			if sinks[a].Block != sinks[b].Block {
				return sinks[a].Block < sinks[b].Block
			}
			if sinks[a].Port != sinks[b].Port {
				return sinks[a].Port < sinks[b].Port
			}
			return sinks[a].Bit < sinks[b].Bit
		})
		nl.Nets[ni].Driver = *driver
		nl.Nets[ni].Sinks = sinks
	}
	return nil
}
