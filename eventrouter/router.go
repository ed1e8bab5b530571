/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package eventrouter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"

	"github.com/issuepilot-dev/issuepilot/commentmanager"
	"github.com/issuepilot-dev/issuepilot/coordinator"
	"github.com/issuepilot-dev/issuepilot/credstore"
	"github.com/issuepilot-dev/issuepilot/executor"
	"github.com/issuepilot-dev/issuepilot/repoconfig"
	"github.com/issuepilot-dev/issuepilot/webhook"
)

// TokenMinter mints installation access tokens. githubauth.App satisfies it.
type TokenMinter interface {
	Token(ctx context.Context, installationID int64) (string, error)
}

// FetchConfig loads a repository's settings through an installation-scoped
// client.
type FetchConfig func(ctx context.Context, installationID int64, owner, repo string) (repoconfig.Config, error)

// Router implements webhook.Dispatcher: it decides, acknowledges, and
// launches.
type Router struct {
	tokens      TokenMinter
	creds       credstore.Store
	coord       *coordinator.Coordinator
	exec        executor.Executor
	fetchConfig FetchConfig
	gatewayFor  coordinator.GatewayFor

	callbackBaseURL string
	newToken        func() string
	clock           func() time.Time
}

// Config carries the Router's collaborators. All fields are required except
// Clock and NewToken, which default to time.Now and random UUIDs.
type Config struct {
	Tokens          TokenMinter
	Creds           credstore.Store
	Coordinator     *coordinator.Coordinator
	Executor        executor.Executor
	FetchConfig     FetchConfig
	GatewayFor      coordinator.GatewayFor
	CallbackBaseURL string

	NewToken func() string
	Clock    func() time.Time
}

// New constructs a Router.
func New(cfg Config) (*Router, error) {
	switch {
	case cfg.Tokens == nil:
		return nil, errors.New("token minter cannot be nil")
	case cfg.Creds == nil:
		return nil, errors.New("credential store cannot be nil")
	case cfg.Coordinator == nil:
		return nil, errors.New("coordinator cannot be nil")
	case cfg.Executor == nil:
		return nil, errors.New("executor cannot be nil")
	case cfg.FetchConfig == nil:
		return nil, errors.New("config fetcher cannot be nil")
	case cfg.GatewayFor == nil:
		return nil, errors.New("gateway resolver cannot be nil")
	case cfg.CallbackBaseURL == "":
		return nil, errors.New("callback base URL cannot be empty")
	}
	r := &Router{
		tokens:          cfg.Tokens,
		creds:           cfg.Creds,
		coord:           cfg.Coordinator,
		exec:            cfg.Executor,
		fetchConfig:     cfg.FetchConfig,
		gatewayFor:      cfg.GatewayFor,
		callbackBaseURL: strings.TrimRight(cfg.CallbackBaseURL, "/"),
		newToken:        cfg.NewToken,
		clock:           cfg.Clock,
	}
	if r.newToken == nil {
		r.newToken = uuid.NewString
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	return r, nil
}

// Dispatch routes one classified event. The returned outcome string becomes
// the webhook response body; an error becomes a 500.
func (r *Router) Dispatch(ctx context.Context, ev webhook.Event) (string, error) {
	log := clog.FromContext(ctx)

	switch ev := ev.(type) {
	case webhook.InstallationEvent:
		log.With("action", ev.Action).With("installation_id", ev.InstallationID).
			Infof("Installation %s by %s", ev.Action, ev.Sender)
		decisions.WithLabelValues("acknowledged").Inc()
		return "acknowledged", nil
	case webhook.InstallationRepositoriesEvent:
		log.With("installation_id", ev.InstallationID).
			Infof("Installation repositories changed: +%d -%d", len(ev.Added), len(ev.Removed))
		decisions.WithLabelValues("acknowledged").Inc()
		return "acknowledged", nil
	}

	entity, ok := entityOf(ev)
	if !ok {
		decisions.WithLabelValues("skipped").Inc()
		return "skipped: not routable", nil
	}

	cfg, err := r.fetchConfig(ctx, entity.InstallationID, entity.Owner, entity.Repo)
	if err != nil {
		// A broken or unreachable config file must not silence the default
		// trigger phrases.
		log.With("error", err).With("repo", entity.FullName).
			Warn("Repository config unavailable, using defaults")
		cfg = repoconfig.Default()
	}

	d := Decide(ev, cfg)
	if d.Kind == KindSkip {
		log.With("repo", entity.FullName).Infof("Skipping event: %s", d.Reason)
		decisions.WithLabelValues("skipped").Inc()
		return "skipped: " + d.Reason, nil
	}
	return r.trigger(ctx, d, cfg)
}

func (r *Router) trigger(ctx context.Context, d Decision, cfg repoconfig.Config) (string, error) {
	log := clog.FromContext(ctx).With("repo", d.Entity.FullName).With("number", d.Entity.Number)
	e := d.Entity

	apiKey, err := r.creds.Get(ctx, credstore.InstallationScope(e.InstallationID), credstore.KeyAnthropicAPIKey)
	if errors.Is(err, credstore.ErrNotFound) {
		log.Warn("No Anthropic API key configured for installation")
		r.postAdvisory(ctx, e,
			"⚠️ Issuepilot is installed, but no Claude API key is configured for this installation, so the agent cannot run. Ask your administrator to add one.")
		decisions.WithLabelValues("skipped").Inc()
		return "skipped: no api key configured", nil
	} else if err != nil {
		decisions.WithLabelValues("error").Inc()
		return "", fmt.Errorf("loading API key: %w", err)
	}

	installationToken, err := r.tokens.Token(ctx, e.InstallationID)
	if err != nil {
		decisions.WithLabelValues("error").Inc()
		return "", fmt.Errorf("minting installation token: %w", err)
	}

	now := r.clock()
	contextID := coordinator.NewContextID(e.FullName, e.Number, now)
	callbackToken := r.newToken()

	ec := coordinator.Context{
		ID:             contextID,
		Key:            coordinator.Key{Owner: e.Owner, Repo: e.Repo, Number: e.Number},
		FullName:       e.FullName,
		IsPullRequest:  e.IsPullRequest,
		InstallationID: e.InstallationID,
		CallbackToken:  callbackToken,
		Stage:          executor.StageQueued,
		StartedAt:      now,
		LastUpdatedAt:  now,
	}
	if err := r.coord.Admit(ctx, ec); err != nil {
		if errors.Is(err, coordinator.ErrAlreadyActive) {
			log.Info("Rejecting trigger: entity already has an active run")
			decisions.WithLabelValues("rejected").Inc()
			return "rejected: already processing", nil
		}
		decisions.WithLabelValues("error").Inc()
		return "", fmt.Errorf("admitting context: %w", err)
	}

	// The acknowledgment comment must land before the hand-off: the user
	// sees immediate feedback, and its id is where progress renders.
	gw, err := r.gatewayFor(ctx, e.InstallationID)
	if err == nil {
		var ref commentmanager.CommentRef
		body := commentmanager.Render(executor.StageQueued,
			fmt.Sprintf("On it — starting a run for this %s (%s).", entityNoun(e.IsPullRequest), d.Reason),
			commentmanager.Details{UpdatedAt: now})
		ref, err = gw.CreateComment(ctx, e.Owner, e.Repo, e.Number, body)
		if err == nil {
			err = r.coord.SetCommentID(ctx, contextID, ref.ID)
		}
	}
	if err != nil {
		if relErr := r.coord.Release(ctx, contextID); relErr != nil {
			log.With("error", relErr).Error("Releasing failed trigger context failed")
		}
		decisions.WithLabelValues("error").Inc()
		return "", fmt.Errorf("posting acknowledgment comment: %w", err)
	}

	task := &executor.Task{
		ContextID:         contextID,
		Owner:             e.Owner,
		Repo:              e.Repo,
		FullName:          e.FullName,
		Number:            e.Number,
		IsPullRequest:     e.IsPullRequest,
		Title:             e.Title,
		Body:              e.Body,
		InstallationToken: installationToken,
		AnthropicAPIKey:   apiKey,
		AllowedTools:      cfg.AllowedTools,
		DeniedTools:       cfg.DeniedTools,
		BaseBranch:        cfg.BaseBranch,
		MaxDuration:       cfg.MaxExecutionTime,
		Callback: executor.Callback{
			ProgressURL:   r.callbackBaseURL + "/internal/progress/" + contextID,
			CompletionURL: r.callbackBaseURL + "/internal/completion/" + contextID,
			Token:         callbackToken,
		},
	}

	// Hand off without blocking the webhook response. The launch outlives
	// the request; a failed launch is reported as a completion so the
	// context does not idle until the timeout sweep.
	launchCtx := context.WithoutCancel(ctx)
	go func() {
		if err := r.exec.Launch(launchCtx, task); err != nil {
			clog.FromContext(launchCtx).With("context_id", contextID).With("error", err).
				Error("Executor launch failed")
			if cErr := r.coord.OnCompletion(launchCtx, contextID, executor.CompletionNotification{
				Success: false,
				Summary: "The run could not be started.",
				Error:   err.Error(),
			}); cErr != nil {
				clog.FromContext(launchCtx).With("context_id", contextID).With("error", cErr).
					Error("Reporting failed launch failed")
			}
		}
	}()

	log.With("context_id", contextID).Infof("Triggered: %s", d.Reason)
	decisions.WithLabelValues("triggered").Inc()
	return "triggered", nil
}

// postAdvisory writes a best-effort explanatory comment. Failures are
// logged, never propagated: the advisory is a courtesy, not a step.
func (r *Router) postAdvisory(ctx context.Context, e Entity, message string) {
	gw, err := r.gatewayFor(ctx, e.InstallationID)
	if err == nil {
		_, err = gw.CreateComment(ctx, e.Owner, e.Repo, e.Number, message)
	}
	if err != nil {
		clog.FromContext(ctx).With("repo", e.FullName).With("error", err).
			Warn("Advisory comment failed")
	}
}

func entityOf(ev webhook.Event) (Entity, bool) {
	switch ev := ev.(type) {
	case webhook.IssuesEvent:
		return Entity{
			Owner: ev.Repo.Owner, Repo: ev.Repo.Name, FullName: ev.Repo.FullName,
			Number: ev.Number, Title: ev.Title, Body: ev.Body,
			InstallationID: ev.InstallationID,
		}, true
	case webhook.IssueCommentEvent:
		return Entity{
			Owner: ev.Repo.Owner, Repo: ev.Repo.Name, FullName: ev.Repo.FullName,
			Number: ev.Number, IsPullRequest: ev.IsPullRequest, Title: ev.Title,
			InstallationID: ev.InstallationID,
		}, true
	case webhook.PullRequestEvent:
		return Entity{
			Owner: ev.Repo.Owner, Repo: ev.Repo.Name, FullName: ev.Repo.FullName,
			Number: ev.Number, IsPullRequest: true, Title: ev.Title, Body: ev.Body,
			InstallationID: ev.InstallationID,
		}, true
	case webhook.ReviewEvent:
		return Entity{
			Owner: ev.Repo.Owner, Repo: ev.Repo.Name, FullName: ev.Repo.FullName,
			Number: ev.Number, IsPullRequest: true, Title: ev.Title,
			InstallationID: ev.InstallationID,
		}, true
	case webhook.ReviewCommentEvent:
		return Entity{
			Owner: ev.Repo.Owner, Repo: ev.Repo.Name, FullName: ev.Repo.FullName,
			Number: ev.Number, IsPullRequest: true, Title: ev.Title,
			InstallationID: ev.InstallationID,
		}, true
	}
	return Entity{}, false
}

func entityNoun(isPR bool) string {
	if isPR {
		return "pull request"
	}
	return "issue"
}
