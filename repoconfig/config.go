/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package repoconfig

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is where the per-repository settings file lives.
const ConfigPath = ".github/issuepilot.yml"

// Config holds the per-repository agent settings.
type Config struct {
	// TriggerPhrases are mention strings that summon the agent from issue
	// bodies and comments. Matching is a case-insensitive substring check.
	TriggerPhrases []string `yaml:"trigger_phrases"`

	// TriggerLabels summon the agent when added to an issue.
	TriggerLabels []string `yaml:"trigger_labels"`

	// AllowedTools and DeniedTools constrain what the agent may do inside
	// the sandbox. Denials win on overlap.
	AllowedTools []string `yaml:"allowed_tools"`
	DeniedTools  []string `yaml:"denied_tools"`

	// MaxExecutionTime bounds a single run. Runs exceeding it are swept
	// and reported as timed out.
	MaxExecutionTime time.Duration `yaml:"max_execution_time"`

	// BaseBranch is the branch the agent works from. Empty means the
	// repository default branch.
	BaseBranch string `yaml:"base_branch"`
}

// Default returns the settings used when a repository has no config file.
func Default() Config {
	return Config{
		TriggerPhrases:   []string{"@claude", "/claude"},
		TriggerLabels:    []string{"agent-fix"},
		MaxExecutionTime: 10 * time.Minute,
	}
}

// Parse decodes a config file, layering it over the defaults. Unset fields
// keep their default values.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", ConfigPath, err)
	}
	if cfg.MaxExecutionTime <= 0 {
		return Config{}, fmt.Errorf("%s: max_execution_time must be positive", ConfigPath)
	}
	return cfg, nil
}

// UnmarshalYAML layers the file's fields over whatever the receiver already
// holds, so absent keys keep their defaults. max_execution_time is a Go
// duration string ("10m", "1h30m").
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		TriggerPhrases   []string `yaml:"trigger_phrases"`
		TriggerLabels    []string `yaml:"trigger_labels"`
		AllowedTools     []string `yaml:"allowed_tools"`
		DeniedTools      []string `yaml:"denied_tools"`
		MaxExecutionTime string   `yaml:"max_execution_time"`
		BaseBranch       string   `yaml:"base_branch"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.TriggerPhrases != nil {
		c.TriggerPhrases = raw.TriggerPhrases
	}
	if raw.TriggerLabels != nil {
		c.TriggerLabels = raw.TriggerLabels
	}
	if raw.AllowedTools != nil {
		c.AllowedTools = raw.AllowedTools
	}
	if raw.DeniedTools != nil {
		c.DeniedTools = raw.DeniedTools
	}
	if raw.MaxExecutionTime != "" {
		d, err := time.ParseDuration(raw.MaxExecutionTime)
		if err != nil {
			return fmt.Errorf("max_execution_time: %w", err)
		}
		c.MaxExecutionTime = d
	}
	if raw.BaseBranch != "" {
		c.BaseBranch = raw.BaseBranch
	}
	return nil
}

// Matches reports whether text contains any trigger phrase. The check is a
// case-insensitive substring match, so "hey @Claude, can you help" triggers.
func (c Config) Matches(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range c.TriggerPhrases {
		if p == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// MatchesLabel reports whether label is a trigger label.
func (c Config) MatchesLabel(label string) bool {
	for _, l := range c.TriggerLabels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}
