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

import "testing"

func TestMatchName(t *testing.T) {
	cases := []struct {
		name    string
		pattern string
		want    bool
	}{
		// Whole-string semantics: substrings never match.
		{"clock", "clock", true},
		{"clock2", "clock", false},
		{"myclock", "clock", false},

		// The lone-star escape matches everything.
		{"anything_at_all", "*", true},
		{"", "*", true},

		// Metacharacters.
		{"clk1", "clk\\d", true},
		{"clkA", "clk\\d", false},
		{"clk10", "clk\\d", false}, // \d is a single digit
		{"clk10", "clk\\d+", true},
		{"clk", "clk\\d*", true},
		{"clkX", "clk.", true},
		{"clk", "clk.", false},

		// Classes.
		{"clk_a", "clk_[abc]", true},
		{"clk_d", "clk_[abc]", false},
		{"clk_d", "clk_[^abc]", true},
		{"clk_7", "clk_[0-9]", true},

		// Optional and lazy quantifiers.
		{"io", "io_?", true},
		{"io_", "io_?", true},
		{"io__", "io_?", false},
		{"aab", "a+?b", true},

		// Whitespace escapes.
		{"a b", "a\\sb", true},
		{"ab", "a\\Sb", false}, // \S needs one non-space byte

		// Hex escape.
		{"a!", "a\\x21", true},
	}
	for _, tc := range cases {
		t.Run(tc.name+"~"+tc.pattern, func(t *testing.T) {
			got, err := MatchName(tc.name, tc.pattern)
			if err != nil {
				t.Fatalf("MatchName(%q, %q): %v", tc.name, tc.pattern, err)
			}
			if got != tc.want {
				t.Errorf("MatchName(%q, %q) = %v, want %v", tc.name, tc.pattern, got, tc.want)
			}
		})
	}
}

func TestMatchName_InvalidPatterns(t *testing.T) {
	for _, pattern := range []string{"abc\\", "a[bc", "a\\xZ9"} {
		if _, err := MatchName("abc", pattern); err == nil {
			t.Errorf("MatchName with pattern %q: expected error", pattern)
		}
	}
}
