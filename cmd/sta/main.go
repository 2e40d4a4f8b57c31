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

// Package main is the static timing analyzer CLI. It loads a netlist
// description and an optional SDC file, builds and levelizes the
// timing graph, runs the per-clock-domain-pair analysis, and reports
// the critical path, slack statistics and per-constraint numbers.
//
// This binary wires the whole stack together:
//  1. Netlist + constraints in (YAML description, SDC text).
//  2. Graph build, loop breaking, levelization, clock propagation.
//  3. Analysis passes: one optimizer-facing pass with the configured
//     slack definition, then a final pass reporting true slacks.
//  4. Reports to stdout, optional echo files, optional Prometheus
//     telemetry, optional timing-summary publication (mock or Redis).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"sta/internal/analyzer/build"
	"sta/internal/analyzer/config"
	"sta/internal/analyzer/engine"
	"sta/internal/analyzer/netlist"
	"sta/internal/analyzer/persistence"
	"sta/internal/analyzer/report"
	"sta/internal/analyzer/sdc"
	"sta/internal/analyzer/telemetry"
)

func main() {
	configFile := flag.String("config", "", "YAML run configuration (flags override file values)")
	netlistFile := flag.String("netlist", "", "YAML netlist description to analyze")
	sdcFile := flag.String("sdc", "", "SDC constraints file; empty uses default constraints")
	design := flag.String("design", "", "Design name, used as the persistence key")
	slackDef := flag.String("slack_definition", "", "Slack normalization: R, I, S, G, C or N (default R)")
	rebalance := flag.Bool("rebalance_luts", false, "Permute equivalent LUT inputs so critical signals take the fastest pins")
	pathCounting := flag.Bool("path_counting", false, "Maintain pre-packing path-count costs")
	interNetDelay := flag.Float64("inter_net_delay", 0, "Placeholder net delay in seconds before annotation")
	echoDir := flag.String("echo_dir", "", "Directory for echo dumps; empty disables them")
	metricsAddr := flag.String("metrics_addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	persistAdapter := flag.String("persist", "", "Timing summary sink: mock or redis")
	redisAddr := flag.String("redis_addr", "", "Redis address for -persist=redis; empty logs instead")
	flag.Parse()

	cfg := &config.Config{}
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		cfg = loaded
	}
	// Flags override the file.
	if *netlistFile != "" {
		cfg.NetlistFile = *netlistFile
	}
	if *sdcFile != "" {
		cfg.SDCFile = *sdcFile
	}
	if *design != "" {
		cfg.Design = *design
	}
	if *slackDef != "" {
		cfg.SlackDefinition = *slackDef
	}
	if *rebalance {
		cfg.RebalanceLUTs = true
	}
	if *pathCounting {
		cfg.PathCounting = true
	}
	if *interNetDelay > 0 {
		cfg.InterNetDelay = *interNetDelay
	}
	if *echoDir != "" {
		cfg.Echo = config.Echo{Dir: *echoDir, Constraints: true, TimingGraph: true, NetDelays: true, Slacks: true}
	}
	if *metricsAddr != "" {
		cfg.Telemetry = config.Telemetry{Enabled: true, MetricsAddr: *metricsAddr}
	}
	if *persistAdapter != "" {
		cfg.Persist.Adapter = *persistAdapter
	}
	if *redisAddr != "" {
		cfg.Persist.RedisAddr = *redisAddr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	if cfg.Telemetry.Enabled {
		telemetry.Enable(telemetry.Config{
			Enabled:     true,
			MetricsAddr: cfg.Telemetry.MetricsAddr,
			LogInterval: cfg.Telemetry.LogInterval,
		})
		defer telemetry.StopExporter()
	}

	if err := run(cfg); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(cfg *config.Config) error {
	f, err := os.Open(cfg.NetlistFile)
	if err != nil {
		return err
	}
	nl, err := netlist.LoadYAML(f)
	f.Close()
	if err != nil {
		return err
	}
	fmt.Printf("Loaded netlist %s: %d blocks, %d nets\n", cfg.NetlistFile, len(nl.Blocks), len(nl.Nets))

	view := sdc.Netlist{
		Clocks:  nl.ClockNets(),
		Inputs:  nl.InputNames(),
		Outputs: nl.OutputNames(),
	}
	var cons *sdc.Constraints
	if cfg.SDCFile == "" {
		fmt.Println("No SDC file; using default timing constraints.")
		cons = sdc.Defaults(view)
	} else {
		sf, err := os.Open(cfg.SDCFile)
		if err != nil {
			return err
		}
		cons, err = sdc.Read(sf, cfg.SDCFile, view)
		sf.Close()
		if err != nil {
			return err
		}
		fmt.Printf("SDC file '%s' parsed successfully.\n", cfg.SDCFile)
	}
	fmt.Printf("%d clocks (including virtual clocks), %d inputs and %d outputs were constrained.\n",
		cons.NumClocks(), len(cons.Inputs), len(cons.Outputs))

	res, err := build.Atom(nl, cfg.InterNetDelay)
	if err != nil {
		return err
	}

	if cfg.Echo.Constraints {
		if err := echoFile(cfg, "constraints.echo", func(w *os.File) error {
			cons.WriteInfo(w)
			return nil
		}); err != nil {
			return err
		}
	}

	a, err := engine.New(res, nl, cons, cfg.PathCounting, engine.Options{
		SlackDefinition: cfg.SlackDefinition,
		RebalanceLUTs:   cfg.RebalanceLUTs,
		PathCounting:    cfg.PathCounting,
	})
	if err != nil {
		return err
	}
	telemetry.ObserveGraph(a.Graph().NumNodes(), a.Graph().NumLevels())

	// One optimizer-facing pass with the configured slack definition,
	// then the final pass with true slacks for reporting.
	start := time.Now()
	if err := a.Analyze(false); err != nil {
		return err
	}
	if err := a.Analyze(true); err != nil {
		return err
	}
	pairs := 0
	for i := range cons.DomainConstraint {
		for j := range cons.DomainConstraint[i] {
			if sdc.Analysed(cons.DomainConstraint[i][j]) {
				pairs++
			}
		}
	}
	telemetry.ObserveAnalysis(time.Since(start), 2*pairs, a.CriticalPathDelay())
	counters := a.CountersSnapshot()
	telemetry.ObserveLoopsBroken(int(counters.LoopsBroken))
	telemetry.ObserveDanglingPins(counters.DanglingPins)
	if telemetry.Enabled() {
		for _, row := range a.Slacks().Slack {
			for i := 1; i < len(row); i++ {
				if !math.IsInf(row[i], 1) {
					telemetry.ObserveSinkSlack(row[i])
				}
			}
		}
	}

	report.WriteTimingStats(os.Stdout, a)
	fmt.Println()
	if err := report.WriteCriticalPath(os.Stdout, a); err != nil {
		return err
	}
	fmt.Println()
	report.WriteSlackHistogram(os.Stdout, a.Slacks().Slack)

	if cfg.Echo.TimingGraph {
		if err := echoFile(cfg, "timing_graph.echo", func(w *os.File) error {
			report.WriteTimingGraph(w, a)
			return nil
		}); err != nil {
			return err
		}
	}
	if cfg.Echo.NetDelays {
		if err := echoFile(cfg, "net_delays.echo", func(w *os.File) error {
			report.WriteNetDelays(w, a)
			return nil
		}); err != nil {
			return err
		}
	}
	if cfg.Echo.Slacks {
		if err := echoFile(cfg, "slacks.echo", func(w *os.File) error {
			report.WriteSlacks(w, a)
			return nil
		}); err != nil {
			return err
		}
	}

	sink, err := persistence.BuildSink(cfg.Persist.Adapter, persistence.Options{
		RedisAddr: cfg.Persist.RedisAddr,
	})
	if err != nil {
		return err
	}
	cpd := a.CriticalPathDelay()
	summary := persistence.Summary{
		Design:         cfg.Design,
		RunID:          persistence.NewRunID(),
		CriticalPathNs: cpd * 1e9,
		LeastSlackNs:   a.LeastSlackInDesign() * 1e9,
	}
	if cons.NumClocks() <= 1 && cpd > 0 {
		summary.FmaxMHz = 1e-6 / cpd
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sink.Publish(ctx, summary)
}

func echoFile(cfg *config.Config, name string, write func(*os.File) error) error {
	path := filepath.Join(cfg.Echo.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return write(f)
}
