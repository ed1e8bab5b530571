/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package repoconfig

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParse_EmptyFileKeepsDefaults(t *testing.T) {
	t.Parallel()
	got, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	if diff := cmp.Diff(Default(), got); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_OverridesOnlySetFields(t *testing.T) {
	t.Parallel()
	got, err := Parse([]byte(`
trigger_phrases:
  - "@helper"
max_execution_time: 5m
base_branch: develop
`))
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	want := Default()
	want.TriggerPhrases = []string{"@helper"}
	want.MaxExecutionTime = 5 * time.Minute
	want.BaseBranch = "develop"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_FullFile(t *testing.T) {
	t.Parallel()
	got, err := Parse([]byte(`
trigger_phrases: ["@bot"]
trigger_labels: ["needs-agent"]
allowed_tools: ["Read", "Edit"]
denied_tools: ["Bash"]
max_execution_time: 30m
base_branch: main
`))
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	want := Config{
		TriggerPhrases:   []string{"@bot"},
		TriggerLabels:    []string{"needs-agent"},
		AllowedTools:     []string{"Read", "Edit"},
		DeniedTools:      []string{"Bash"},
		MaxExecutionTime: 30 * time.Minute,
		BaseBranch:       "main",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
	}{
		{name: "bad yaml", in: "trigger_phrases: [unclosed"},
		{name: "bad duration", in: "max_execution_time: soon"},
		{name: "negative duration", in: "max_execution_time: -5m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Parse([]byte(tt.in)); err == nil {
				t.Error("Parse() = nil error")
			}
		})
	}
}

func TestMatches(t *testing.T) {
	t.Parallel()
	cfg := Default()
	tests := []struct {
		text string
		want bool
	}{
		{"@claude please fix this", true},
		{"hey @Claude, can you help", true},
		{"/CLAUDE do the thing", true},
		{"prefix@claude", true}, // substring, not word-boundary
		{"please fix this", false},
		{"claude without the sigil", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := cfg.Matches(tt.text); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestMatchesLabel(t *testing.T) {
	t.Parallel()
	cfg := Config{TriggerLabels: []string{"agent-fix", "AI-Help"}}
	tests := []struct {
		label string
		want  bool
	}{
		{"agent-fix", true},
		{"Agent-Fix", true},
		{"ai-help", true},
		{"bug", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := cfg.MatchesLabel(tt.label); got != tt.want {
			t.Errorf("MatchesLabel(%q) = %v, want %v", tt.label, got, tt.want)
		}
	}
}
