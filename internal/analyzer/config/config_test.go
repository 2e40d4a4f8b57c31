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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sta.yaml")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeTemp(t, `
design: counter8
netlistFile: counter8.yaml
sdcFile: counter8.sdc
slackDefinition: I
rebalanceLuts: true
echo:
  dir: out
  constraints: true
telemetry:
  enabled: true
  metricsAddr: ":9090"
persist:
  adapter: redis
  redisAddr: "127.0.0.1:6379"
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Design != "counter8" || cfg.SlackDefinition != "I" || !cfg.RebalanceLUTs {
		t.Errorf("config fields wrong: %+v", cfg)
	}
	if cfg.Echo.Dir != "out" || !cfg.Echo.Constraints {
		t.Errorf("echo config wrong: %+v", cfg.Echo)
	}
	if cfg.Persist.Adapter != "redis" {
		t.Errorf("persist config wrong: %+v", cfg.Persist)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"Minimal", Config{NetlistFile: "x.yaml"}, false},
		{"MissingNetlist", Config{}, true},
		{"BadSlackDef", Config{NetlistFile: "x", SlackDefinition: "Q"}, true},
		{"NegativeDelay", Config{NetlistFile: "x", InterNetDelay: -1}, true},
		{"BadAdapter", Config{NetlistFile: "x", Persist: Persist{Adapter: "kafka"}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidate_Defaults(t *testing.T) {
	cfg := Config{NetlistFile: "x.yaml"}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Design != "unnamed" {
		t.Errorf("default design = %q", cfg.Design)
	}
	if cfg.Echo.Dir != "." {
		t.Errorf("default echo dir = %q", cfg.Echo.Dir)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	if _, err := Load(writeTemp(t, "netlistFile: [unclosed")); err == nil {
		t.Error("malformed YAML accepted")
	}
}
