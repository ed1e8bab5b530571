/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package claudeexec

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"

	"github.com/issuepilot-dev/issuepilot/executor"
	"github.com/issuepilot-dev/issuepilot/executor/retry"
	"github.com/issuepilot-dev/issuepilot/githubauth"
)

// Runner executes tasks in-process against the Anthropic API.
type Runner struct {
	model     string
	maxTokens int64
	maxTurns  int
	retryCfg  retry.Config
	genai     *genAI

	newReporter func(cb executor.Callback) executor.Reporter
	remoteURL   func(fullName string) string
	newGitHub   func(ctx context.Context, token string) *github.Client
}

// New constructs a Runner.
func New(opts ...Option) (*Runner, error) {
	r := &Runner{
		model:     "claude-sonnet-4-5",
		maxTokens: 8192,
		maxTurns:  40,
		retryCfg:  retry.Default(),
		genai:     newGenAI(),
		newReporter: func(cb executor.Callback) executor.Reporter {
			return executor.NewHTTPReporter(cb)
		},
		remoteURL: func(fullName string) string {
			return "https://github.com/" + fullName
		},
		newGitHub: githubauth.NewTokenClient,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Launch validates the task and runs it asynchronously. The returned error
// covers the hand-off only; outcomes travel through the callbacks.
func (r *Runner) Launch(ctx context.Context, task *executor.Task) error {
	switch {
	case task == nil:
		return errors.New("task cannot be nil")
	case task.ContextID == "":
		return errors.New("task missing context id")
	case task.FullName == "":
		return errors.New("task missing repository")
	case task.AnthropicAPIKey == "":
		return errors.New("task missing API key")
	}
	go r.run(ctx, task)
	return nil
}

func (r *Runner) run(ctx context.Context, task *executor.Task) {
	log := clog.FromContext(ctx).With("context_id", task.ContextID).With("repo", task.FullName)
	ctx = clog.WithLogger(ctx, log)

	if task.MaxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, task.MaxDuration)
		defer cancel()
	}

	reporter := r.newReporter(task.Callback)
	// Completion must land even when the run deadline has fired.
	completeCtx := context.WithoutCancel(ctx)
	fail := func(summary string, err error) {
		log.With("error", err).Error("Run failed")
		if cErr := reporter.Complete(completeCtx, executor.CompletionNotification{
			Success: false,
			Summary: summary,
			Error:   err.Error(),
		}); cErr != nil {
			log.With("error", cErr).Error("Failure report failed")
		}
	}

	r.progress(ctx, reporter, executor.StageAnalyzing, "Reading the issue and cloning the repository.", 5, nil)

	ws, err := cloneWorkspace(ctx, r.remoteURL(task.FullName), task.BaseBranch, task.InstallationToken)
	if err != nil {
		fail("The repository could not be cloned.", err)
		return
	}
	defer ws.cleanup()

	branch := "issuepilot/" + task.ContextID
	if err := ws.checkoutBranch(branch); err != nil {
		fail("A working branch could not be created.", err)
		return
	}

	r.progress(ctx, reporter, executor.StagePlanning, "Working out an approach.", 15, nil)

	summary, err := r.converse(ctx, task, ws, reporter)
	if err != nil {
		fail("The agent conversation failed.", err)
		return
	}

	modified := ws.modifiedFiles()
	if len(modified) == 0 {
		log.Info("Run finished with no file changes")
		if err := reporter.Complete(completeCtx, executor.CompletionNotification{
			Success: true,
			Summary: summary,
		}); err != nil {
			log.With("error", err).Error("Completion report failed")
		}
		return
	}

	r.progress(ctx, reporter, executor.StageTesting, "Reviewing the changes.", 80, map[string]string{
		"files_processed": strconv.Itoa(len(modified)),
		"total_files":     strconv.Itoa(len(modified)),
	})

	r.progress(ctx, reporter, executor.StageFinalizing, "Committing, pushing, and opening a pull request.", 90, nil)

	commitMsg := fmt.Sprintf("Address %s#%d\n\n%s", task.FullName, task.Number, summary)
	if err := ws.commitAll(commitMsg); err != nil {
		fail("The changes could not be committed.", err)
		return
	}
	if err := ws.push(ctx, branch, task.InstallationToken); err != nil {
		fail("The branch could not be pushed.", err)
		return
	}

	prURL, err := r.openPullRequest(ctx, task, branch, summary)
	if err != nil {
		fail("The pull request could not be opened.", err)
		return
	}

	if err := reporter.Complete(completeCtx, executor.CompletionNotification{
		Success:        true,
		Summary:        summary,
		PullRequestURL: prURL,
		FilesModified:  modified,
	}); err != nil {
		log.With("error", err).Error("Completion report failed")
	}
}

// progress sends one report; delivery failures are logged and the run
// continues, since the next report carries full state anyway.
func (r *Runner) progress(ctx context.Context, reporter executor.Reporter, stage executor.Stage, message string, percent int, metadata map[string]string) {
	if err := reporter.Progress(ctx, executor.ProgressEvent{
		Stage:    stage,
		Message:  message,
		Percent:  percent,
		Metadata: metadata,
	}); err != nil {
		clog.FromContext(ctx).With("stage", string(stage)).With("error", err).
			Warn("Progress report failed")
	}
}

func (r *Runner) openPullRequest(ctx context.Context, task *executor.Task, branch, summary string) (string, error) {
	client := r.newGitHub(ctx, task.InstallationToken)

	base := task.BaseBranch
	if base == "" {
		repo, _, err := client.Repositories.Get(ctx, task.Owner, task.Repo)
		if err != nil {
			return "", fmt.Errorf("resolving default branch: %w", err)
		}
		base = repo.GetDefaultBranch()
	}

	body := fmt.Sprintf("%s\n\nFixes #%d", summary, task.Number)
	pr, _, err := client.PullRequests.Create(ctx, task.Owner, task.Repo, &github.NewPullRequest{
		Title: github.Ptr(fmt.Sprintf("Issuepilot: %s", task.Title)),
		Head:  github.Ptr(branch),
		Base:  github.Ptr(base),
		Body:  github.Ptr(body),
	})
	if err != nil {
		return "", fmt.Errorf("creating pull request: %w", err)
	}
	return pr.GetHTMLURL(), nil
}
