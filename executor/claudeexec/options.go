/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package claudeexec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/issuepilot-dev/issuepilot/executor"
	"github.com/issuepilot-dev/issuepilot/executor/retry"
)

// Option configures a Runner.
type Option func(*Runner) error

// WithModel overrides the Claude model.
func WithModel(model string) Option {
	return func(r *Runner) error {
		if !strings.HasPrefix(model, "claude-") {
			return fmt.Errorf("model %q does not appear to be a Claude model", model)
		}
		r.model = model
		return nil
	}
}

// WithMaxTokens sets the per-response token ceiling.
func WithMaxTokens(tokens int64) Option {
	return func(r *Runner) error {
		if tokens <= 0 {
			return fmt.Errorf("max tokens must be positive, got %d", tokens)
		}
		r.maxTokens = tokens
		return nil
	}
}

// WithMaxTurns caps the conversation length before the run is abandoned.
func WithMaxTurns(turns int) Option {
	return func(r *Runner) error {
		if turns <= 0 {
			return fmt.Errorf("max turns must be positive, got %d", turns)
		}
		r.maxTurns = turns
		return nil
	}
}

// WithRetryConfig sets the retry policy for transient Claude API errors.
func WithRetryConfig(cfg retry.Config) Option {
	return func(r *Runner) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		r.retryCfg = cfg
		return nil
	}
}

// WithReporterFactory overrides how per-task reporters are built, for tests.
func WithReporterFactory(f func(cb executor.Callback) executor.Reporter) Option {
	return func(r *Runner) error {
		if f == nil {
			return errors.New("reporter factory cannot be nil")
		}
		r.newReporter = f
		return nil
	}
}

// WithRemoteURL overrides how a repository full name maps to a git remote,
// for tests against local repositories.
func WithRemoteURL(f func(fullName string) string) Option {
	return func(r *Runner) error {
		if f == nil {
			return errors.New("remote URL resolver cannot be nil")
		}
		r.remoteURL = f
		return nil
	}
}
