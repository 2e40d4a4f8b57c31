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
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// SyntaxError reports a malformed SDC command.
type SyntaxError struct {
	File string
	Line int
	Near string
	Msg  string
}

func (e *SyntaxError) Error() string {
	if e.Near != "" {
		return fmt.Sprintf("%s:%d: near %q: %s", e.File, e.Line, e.Near, e.Msg)
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// endpointList is a -from/-to argument: a list of names that are either
// clock domains (written [get_clocks {...}]) or flip-flop instance
// names (a bare brace group or single name).
type endpointList struct {
	names       []string
	domainLevel bool
}

// command is one parsed SDC statement.
type command struct {
	line int
	// exactly one of the following is set
	createClock  *createClock
	clockGroups  *clockGroups
	falsePath    *falsePath
	maxDelay     *maxDelay
	multicycle   *multicyclePath
	ioDelay      *ioDelay
}

type createClock struct {
	period      float64
	waveformSet bool
	rising      float64
	falling     float64
	name        string // virtual clock name if set
	targets     []string
}

type clockGroups struct {
	exclusive bool
	groups    [][]string
}

type falsePath struct {
	from, to endpointList
}

type maxDelay struct {
	delay    float64
	from, to endpointList
}

type multicyclePath struct {
	setup    bool
	cycles   int
	from, to endpointList
}

type ioDelay struct {
	input bool // set_input_delay vs set_output_delay
	clock string
	delay float64
	ports []string
}

// token is one lexical element of a command: a bare word, a brace group
// or a bracketed query like [get_clocks {...}].
type token struct {
	word  string
	group []string // {...} contents
	query string   // get_clocks / get_ports / get_nets / get_pins
	isGrp bool
	isQry bool
}

// parse consumes the whole SDC text and returns the command list.
// Braces and whitespace inside groups are irrelevant; '#' starts a
// comment; a trailing backslash continues the command on the next line.
func parse(r io.Reader, file string) ([]command, error) {
	var cmds []command
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineno := 0
	for sc.Scan() {
		lineno++
		startLine := lineno
		line := stripComment(sc.Text())
		for strings.HasSuffix(strings.TrimRight(line, " \t"), "\\") && sc.Scan() {
			lineno++
			line = strings.TrimRight(strings.TrimRight(line, " \t"), "\\") + " " + stripComment(sc.Text())
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		toks, err := tokenize(line, file, startLine)
		if err != nil {
			return nil, err
		}
		cmd, err := parseCommand(toks, file, startLine)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, *cmd)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return cmds, nil
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}

func tokenize(line, file string, lineno int) ([]token, error) {
	var toks []token
	i := 0
	for i < len(line) {
		switch c := line[i]; {
		case c == ' ' || c == '\t':
			i++
		case c == '{':
			end := strings.IndexByte(line[i:], '}')
			if end < 0 {
				return nil, &SyntaxError{File: file, Line: lineno, Near: line[i:], Msg: "unterminated brace group"}
			}
			toks = append(toks, token{group: strings.Fields(line[i+1 : i+end]), isGrp: true})
			i += end + 1
		case c == '[':
			end := strings.IndexByte(line[i:], ']')
			if end < 0 {
				return nil, &SyntaxError{File: file, Line: lineno, Near: line[i:], Msg: "unterminated bracket expression"}
			}
			inner := line[i+1 : i+end]
			inner = strings.NewReplacer("{", " ", "}", " ").Replace(inner)
			fields := strings.Fields(inner)
			if len(fields) == 0 {
				return nil, &SyntaxError{File: file, Line: lineno, Near: line[i : i+end+1], Msg: "empty bracket expression"}
			}
			switch fields[0] {
			case "get_clocks", "get_ports", "get_nets", "get_pins":
				toks = append(toks, token{query: fields[0], group: fields[1:], isQry: true})
			default:
				return nil, &SyntaxError{File: file, Line: lineno, Near: fields[0], Msg: "unsupported query command"}
			}
			i += end + 1
		default:
			j := i
			for j < len(line) && !strings.ContainsRune(" \t{[", rune(line[j])) {
				j++
			}
			toks = append(toks, token{word: line[i:j]})
			i = j
		}
	}
	return toks, nil
}

// names returns the token's name list regardless of whether it was a
// bare word, a brace group or a query.
func (t *token) names() []string {
	if t.isGrp || t.isQry {
		return t.group
	}
	return []string{t.word}
}

func parseCommand(toks []token, file string, line int) (*command, error) {
	if len(toks) == 0 || toks[0].isGrp || toks[0].isQry {
		return nil, &SyntaxError{File: file, Line: line, Msg: "expected a command word"}
	}
	p := &cmdParser{toks: toks[1:], file: file, line: line}
	switch head := toks[0].word; head {
	case "create_clock":
		return p.createClock()
	case "set_clock_groups":
		return p.clockGroups()
	case "set_false_path":
		return p.falsePath()
	case "set_max_delay":
		return p.maxDelay()
	case "set_multicycle_path":
		return p.multicyclePath()
	case "set_input_delay":
		return p.ioDelay(true)
	case "set_output_delay":
		return p.ioDelay(false)
	default:
		return nil, &SyntaxError{File: file, Line: line, Near: head, Msg: "unrecognized command"}
	}
}

type cmdParser struct {
	toks []token
	file string
	line int
}

func (p *cmdParser) errf(near, format string, args ...interface{}) error {
	return &SyntaxError{File: p.file, Line: p.line, Near: near, Msg: fmt.Sprintf(format, args...)}
}

func (p *cmdParser) next() (token, bool) {
	if len(p.toks) == 0 {
		return token{}, false
	}
	t := p.toks[0]
	p.toks = p.toks[1:]
	return t, true
}

func (p *cmdParser) nextFloat(flag string) (float64, error) {
	t, ok := p.next()
	if !ok || t.isGrp || t.isQry {
		return 0, p.errf(flag, "expected a number after %s", flag)
	}
	v, err := strconv.ParseFloat(t.word, 64)
	if err != nil {
		return 0, p.errf(t.word, "expected a number after %s", flag)
	}
	return v, nil
}

func (p *cmdParser) createClock() (*command, error) {
	cc := &createClock{}
	havePeriod := false
	for {
		t, ok := p.next()
		if !ok {
			break
		}
		switch {
		case t.word == "-period":
			v, err := p.nextFloat("-period")
			if err != nil {
				return nil, err
			}
			cc.period = v
			havePeriod = true
		case t.word == "-waveform":
			w, ok := p.next()
			if !ok || !w.isGrp || len(w.group) != 2 {
				return nil, p.errf("-waveform", "expected {rising falling} after -waveform")
			}
			r, err1 := strconv.ParseFloat(w.group[0], 64)
			f, err2 := strconv.ParseFloat(w.group[1], 64)
			if err1 != nil || err2 != nil {
				return nil, p.errf("-waveform", "waveform edges must be numbers")
			}
			cc.waveformSet = true
			cc.rising, cc.falling = r, f
		case t.word == "-name":
			n, ok := p.next()
			if !ok || n.isGrp || n.isQry {
				return nil, p.errf("-name", "expected a clock name after -name")
			}
			cc.name = n.word
		case t.isQry || t.isGrp:
			cc.targets = append(cc.targets, t.group...)
		default:
			cc.targets = append(cc.targets, t.word)
		}
	}
	if !havePeriod {
		return nil, p.errf("create_clock", "missing -period")
	}
	if cc.name != "" && len(cc.targets) > 0 {
		return nil, p.errf("create_clock", "-name (virtual clock) and netlist targets are mutually exclusive")
	}
	if cc.name == "" && len(cc.targets) == 0 {
		return nil, p.errf("create_clock", "need either -name or a target list")
	}
	if !cc.waveformSet {
		cc.rising, cc.falling = 0, cc.period/2
	}
	return &command{line: p.line, createClock: cc}, nil
}

func (p *cmdParser) clockGroups() (*command, error) {
	cg := &clockGroups{}
	for {
		t, ok := p.next()
		if !ok {
			break
		}
		switch t.word {
		case "-exclusive":
			cg.exclusive = true
		case "-group":
			g, ok := p.next()
			if !ok {
				return nil, p.errf("-group", "expected a clock list after -group")
			}
			cg.groups = append(cg.groups, g.names())
		default:
			return nil, p.errf(t.word, "unexpected argument to set_clock_groups")
		}
	}
	if !cg.exclusive {
		return nil, p.errf("set_clock_groups", "only -exclusive groups are supported")
	}
	if len(cg.groups) < 2 {
		return nil, p.errf("set_clock_groups", "need at least two -group lists")
	}
	return &command{line: p.line, clockGroups: cg}, nil
}

// fromTo parses the -from and -to arguments shared by path overrides.
func (p *cmdParser) fromTo(t token, from, to *endpointList) (bool, error) {
	var dst *endpointList
	switch t.word {
	case "-from":
		dst = from
	case "-to":
		dst = to
	default:
		return false, nil
	}
	arg, ok := p.next()
	if !ok {
		return false, p.errf(t.word, "expected a list after %s", t.word)
	}
	dst.names = arg.names()
	dst.domainLevel = arg.isQry && arg.query == "get_clocks"
	return true, nil
}

func (p *cmdParser) falsePath() (*command, error) {
	fp := &falsePath{}
	for {
		t, ok := p.next()
		if !ok {
			break
		}
		handled, err := p.fromTo(t, &fp.from, &fp.to)
		if err != nil {
			return nil, err
		}
		if !handled {
			return nil, p.errf(t.word, "unexpected argument to set_false_path")
		}
	}
	if len(fp.from.names) == 0 || len(fp.to.names) == 0 {
		return nil, p.errf("set_false_path", "need both -from and -to")
	}
	return &command{line: p.line, falsePath: fp}, nil
}

func (p *cmdParser) maxDelay() (*command, error) {
	md := &maxDelay{}
	haveDelay := false
	for {
		t, ok := p.next()
		if !ok {
			break
		}
		handled, err := p.fromTo(t, &md.from, &md.to)
		if err != nil {
			return nil, err
		}
		if handled {
			continue
		}
		if haveDelay || t.isGrp || t.isQry {
			return nil, p.errf(t.word, "unexpected argument to set_max_delay")
		}
		v, err := strconv.ParseFloat(t.word, 64)
		if err != nil {
			return nil, p.errf(t.word, "expected the max delay value")
		}
		md.delay = v
		haveDelay = true
	}
	if !haveDelay {
		return nil, p.errf("set_max_delay", "missing delay value")
	}
	if len(md.from.names) == 0 || len(md.to.names) == 0 {
		return nil, p.errf("set_max_delay", "need both -from and -to")
	}
	return &command{line: p.line, maxDelay: md}, nil
}

func (p *cmdParser) multicyclePath() (*command, error) {
	mc := &multicyclePath{}
	haveCycles := false
	for {
		t, ok := p.next()
		if !ok {
			break
		}
		switch t.word {
		case "-setup":
			mc.setup = true
			continue
		case "-hold":
			// Hold multicycles are not implemented; fail loudly rather
			// than silently analyzing the wrong thing.
			return nil, p.errf("-hold", "set_multicycle_path supports only -setup")
		}
		handled, err := p.fromTo(t, &mc.from, &mc.to)
		if err != nil {
			return nil, err
		}
		if handled {
			continue
		}
		if haveCycles || t.isGrp || t.isQry {
			return nil, p.errf(t.word, "unexpected argument to set_multicycle_path")
		}
		n, err := strconv.Atoi(t.word)
		if err != nil || n < 1 {
			return nil, p.errf(t.word, "expected a positive multicycle count")
		}
		mc.cycles = n
		haveCycles = true
	}
	if !mc.setup {
		return nil, p.errf("set_multicycle_path", "missing -setup")
	}
	if !haveCycles {
		return nil, p.errf("set_multicycle_path", "missing multicycle count")
	}
	if len(mc.from.names) == 0 || len(mc.to.names) == 0 {
		return nil, p.errf("set_multicycle_path", "need both -from and -to")
	}
	return &command{line: p.line, multicycle: mc}, nil
}

func (p *cmdParser) ioDelay(input bool) (*command, error) {
	io := &ioDelay{input: input}
	cmd := "set_output_delay"
	if input {
		cmd = "set_input_delay"
	}
	haveDelay := false
	for {
		t, ok := p.next()
		if !ok {
			break
		}
		switch {
		case t.word == "-clock":
			c, ok := p.next()
			if !ok || c.isGrp || c.isQry {
				return nil, p.errf("-clock", "expected a clock name after -clock")
			}
			io.clock = c.word
		case t.word == "-max":
			v, err := p.nextFloat("-max")
			if err != nil {
				return nil, err
			}
			io.delay = v
			haveDelay = true
		case t.isQry && t.query == "get_ports":
			io.ports = append(io.ports, t.group...)
		case t.isGrp:
			io.ports = append(io.ports, t.group...)
		default:
			return nil, p.errf(t.word, "unexpected argument to %s", cmd)
		}
	}
	if io.clock == "" {
		return nil, p.errf(cmd, "missing -clock")
	}
	if !haveDelay {
		return nil, p.errf(cmd, "missing -max delay")
	}
	if len(io.ports) == 0 {
		return nil, p.errf(cmd, "missing [get_ports {...}] target list")
	}
	return &command{line: p.line, ioDelay: io}, nil
}
