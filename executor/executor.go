/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package executor

import (
	"context"
	"time"
)

// Stage identifies where an execution currently is in its lifecycle.
type Stage string

const (
	StageQueued       Stage = "queued"
	StageAnalyzing    Stage = "analyzing"
	StagePlanning     Stage = "planning"
	StageImplementing Stage = "implementing"
	StageTesting      Stage = "testing"
	StageFinalizing   Stage = "finalizing"
	StageCompleted    Stage = "completed"
	StageFailed       Stage = "failed"
)

// Terminal reports whether the stage accepts no further transitions.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	switch s {
	case StageQueued, StageAnalyzing, StagePlanning, StageImplementing,
		StageTesting, StageFinalizing, StageCompleted, StageFailed:
		return true
	}
	return false
}

// Callback tells an execution unit where to report back.
type Callback struct {
	ProgressURL   string `json:"progress_url"`
	CompletionURL string `json:"completion_url"`

	// Token is the per-context bearer token the coordinator expects on
	// callback requests. It must never be logged.
	Token string `json:"token"`
}

// Task is the complete description of one unit of agent work. It carries
// everything an isolated execution unit needs: the entity to work on,
// credentials, the tool policy, and where to report back.
type Task struct {
	ContextID string `json:"context_id"`

	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	FullName string `json:"full_name"`

	Number        int  `json:"number"`
	IsPullRequest bool `json:"is_pull_request"`

	Title string `json:"title"`
	Body  string `json:"body"`

	// InstallationToken grants repository access scoped to the installation.
	// Never logged.
	InstallationToken string `json:"installation_token"`
	// AnthropicAPIKey is the model credential configured for the
	// installation. Never logged.
	AnthropicAPIKey string `json:"anthropic_api_key"`

	AllowedTools []string `json:"allowed_tools,omitempty"`
	DeniedTools  []string `json:"denied_tools,omitempty"`

	BaseBranch  string        `json:"base_branch"`
	MaxDuration time.Duration `json:"max_duration"`

	Callback Callback `json:"callback"`
}

// ProgressEvent is one incremental status report from an execution unit.
// The coordinator stamps Timestamp on receipt; reporters leave it zero.
type ProgressEvent struct {
	Stage    Stage             `json:"stage"`
	Message  string            `json:"message"`
	Percent  int               `json:"percent"`
	Metadata map[string]string `json:"metadata,omitempty"`

	Timestamp time.Time `json:"timestamp,omitzero"`
}

// CompletionNotification is the terminal report ending a task.
type CompletionNotification struct {
	Success        bool     `json:"success"`
	Summary        string   `json:"summary"`
	PullRequestURL string   `json:"pull_request_url,omitempty"`
	FilesModified  []string `json:"files_modified,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Executor launches tasks. Launch must return promptly: the task runs
// asynchronously and reports back through its callback configuration. A
// Launch error means the hand-off itself failed; once Launch returns nil the
// only signals are progress/completion callbacks or the coordinator timeout.
type Executor interface {
	Launch(ctx context.Context, task *Task) error
}

// Reporter is the channel an execution unit uses to send status back to the
// coordinator. Implementations must tolerate the coordinator having already
// evicted the context: reports for unknown contexts are accepted and dropped
// on the far side, never surfaced as errors to the agent loop.
type Reporter interface {
	Progress(ctx context.Context, ev ProgressEvent) error
	Complete(ctx context.Context, cn CompletionNotification) error
}
