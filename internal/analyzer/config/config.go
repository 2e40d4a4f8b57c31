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

// Package config loads the analyzer run configuration from a YAML
// file. Everything has a workable default so the CLI runs with no
// config at all; flags override file values.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root run configuration.
type Config struct {
	// Design names the circuit; used as the persistence key.
	Design string `yaml:"design"`

	// NetlistFile is the YAML netlist description to analyze.
	NetlistFile string `yaml:"netlistFile"`

	// SDCFile holds the timing constraints. Empty means default
	// constraints (single combined clock, all I/Os constrained on it).
	SDCFile string `yaml:"sdcFile,omitempty"`

	// SlackDefinition selects slack normalization: R, I, S, G, C or N.
	// Empty means R.
	SlackDefinition string `yaml:"slackDefinition,omitempty"`

	// RebalanceLUTs enables LUT input rebalancing during traversal.
	RebalanceLUTs bool `yaml:"rebalanceLuts,omitempty"`

	// PathCounting maintains pre-packing path-count costs.
	PathCounting bool `yaml:"pathCounting,omitempty"`

	// InterNetDelay is the placeholder delay (seconds) put on every
	// net edge before real net delays are annotated.
	InterNetDelay float64 `yaml:"interNetDelay,omitempty"`

	Echo      Echo      `yaml:"echo,omitempty"`
	Telemetry Telemetry `yaml:"telemetry,omitempty"`
	Persist   Persist   `yaml:"persist,omitempty"`
}

// Echo selects which diagnostic dumps to write and where.
type Echo struct {
	Dir         string `yaml:"dir,omitempty"` // default "."
	Constraints bool   `yaml:"constraints,omitempty"`
	TimingGraph bool   `yaml:"timingGraph,omitempty"`
	NetDelays   bool   `yaml:"netDelays,omitempty"`
	Slacks      bool   `yaml:"slacks,omitempty"`
}

// Telemetry configures the Prometheus instrumentation.
type Telemetry struct {
	Enabled     bool          `yaml:"enabled,omitempty"`
	MetricsAddr string        `yaml:"metricsAddr,omitempty"`
	LogInterval time.Duration `yaml:"logInterval,omitempty"`
}

// Persist configures the timing-result sink.
type Persist struct {
	Adapter   string `yaml:"adapter,omitempty"` // mock | redis
	RedisAddr string `yaml:"redisAddr,omitempty"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks field values and fills defaults.
func (c *Config) Validate() error {
	if c.NetlistFile == "" {
		return fmt.Errorf("netlistFile is required")
	}
	if c.Design == "" {
		c.Design = "unnamed"
	}
	switch c.SlackDefinition {
	case "", "R", "I", "S", "G", "C", "N":
	default:
		return fmt.Errorf("slackDefinition must be one of R I S G C N, got %q", c.SlackDefinition)
	}
	if c.InterNetDelay < 0 {
		return fmt.Errorf("interNetDelay must be non-negative")
	}
	switch c.Persist.Adapter {
	case "", "mock", "redis":
	default:
		return fmt.Errorf("persist.adapter must be mock or redis, got %q", c.Persist.Adapter)
	}
	if c.Echo.Dir == "" {
		c.Echo.Dir = "."
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf("design %q: netlist %s, sdc %q, slack definition %q",
		c.Design, c.NetlistFile, c.SDCFile, c.SlackDefinition)
}
