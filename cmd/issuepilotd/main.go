/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package main runs the Issuepilot daemon: the GitHub webhook endpoint, the
// internal progress callback endpoint, and the metrics endpoint, over a
// shared coordinator that reflects agent progress onto GitHub comments.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sethvargo/go-envconfig"
	"golang.org/x/sync/errgroup"

	"github.com/issuepilot-dev/issuepilot/commentmanager"
	"github.com/issuepilot-dev/issuepilot/coordinator"
	"github.com/issuepilot-dev/issuepilot/credstore"
	"github.com/issuepilot-dev/issuepilot/eventrouter"
	"github.com/issuepilot-dev/issuepilot/executor"
	"github.com/issuepilot-dev/issuepilot/executor/claudeexec"
	"github.com/issuepilot-dev/issuepilot/executor/sandboxexec"
	"github.com/issuepilot-dev/issuepilot/githubauth"
	"github.com/issuepilot-dev/issuepilot/repoconfig"
	"github.com/issuepilot-dev/issuepilot/webhook"
)

type config struct {
	Port         int `env:"PORT,default=8080"`
	InternalPort int `env:"INTERNAL_PORT,default=8081"`
	MetricsPort  int `env:"METRICS_PORT,default=2112"`

	GitHubAppID      int64  `env:"GITHUB_APP_ID,required"`
	GitHubAppKeyPath string `env:"GITHUB_APP_PRIVATE_KEY_PATH,required"`

	CredStorePath   string `env:"CRED_STORE_PATH,required"`
	AgeIdentityPath string `env:"AGE_IDENTITY_PATH,required"`

	// CallbackBaseURL is how execution units reach the internal endpoint,
	// e.g. http://issuepilotd.internal:8081.
	CallbackBaseURL string `env:"CALLBACK_BASE_URL,required"`

	ExecutionTimeout time.Duration `env:"EXECUTION_TIMEOUT,default=10m"`

	// SandboxURL, when set, hands tasks to an external sandbox service
	// instead of running the agent in-process.
	SandboxURL     string `env:"SANDBOX_URL"`
	AnthropicModel string `env:"ANTHROPIC_MODEL"`
}

// secretSource resolves webhook secrets from the credential store. An
// installation-scoped secret wins; the app-level secret is the fallback and
// serves deliveries that carry no installation (ping).
type secretSource struct {
	creds credstore.Store
}

func (s *secretSource) WebhookSecret(ctx context.Context, installationID int64) (string, error) {
	if installationID != 0 {
		secret, err := s.creds.Get(ctx, credstore.InstallationScope(installationID), credstore.KeyWebhookSecret)
		if err == nil {
			return secret, nil
		}
		if !errors.Is(err, credstore.ErrNotFound) {
			return "", err
		}
	}
	secret, err := s.creds.Get(ctx, credstore.AppScope, credstore.KeyWebhookSecret)
	if errors.Is(err, credstore.ErrNotFound) {
		return "", webhook.ErrNoConfiguration
	}
	return secret, err
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	app, err := githubauth.NewApp(cfg.GitHubAppID, cfg.GitHubAppKeyPath)
	if err != nil {
		clog.FatalContextf(ctx, "loading GitHub App credentials: %v", err)
	}

	creds, err := credstore.NewFileStore(cfg.CredStorePath, cfg.AgeIdentityPath)
	if err != nil {
		clog.FatalContextf(ctx, "opening credential store: %v", err)
	}

	store, err := coordinator.NewMemoryStore()
	if err != nil {
		clog.FatalContextf(ctx, "creating context store: %v", err)
	}

	gatewayFor := func(_ context.Context, installationID int64) (commentmanager.Gateway, error) {
		return commentmanager.NewGitHubGateway(app.InstallationClient(installationID)), nil
	}

	coord, err := coordinator.New(store, gatewayFor,
		coordinator.WithTimeout(cfg.ExecutionTimeout))
	if err != nil {
		clog.FatalContextf(ctx, "creating coordinator: %v", err)
	}

	exec, err := newExecutor(&cfg)
	if err != nil {
		clog.FatalContextf(ctx, "creating executor: %v", err)
	}

	router, err := eventrouter.New(eventrouter.Config{
		Tokens:      app,
		Creds:       creds,
		Coordinator: coord,
		Executor:    exec,
		FetchConfig: func(ctx context.Context, installationID int64, owner, repo string) (repoconfig.Config, error) {
			return repoconfig.NewFetcher(app.InstallationClient(installationID)).Fetch(ctx, owner, repo)
		},
		GatewayFor:      gatewayFor,
		CallbackBaseURL: cfg.CallbackBaseURL,
	})
	if err != nil {
		clog.FatalContextf(ctx, "creating event router: %v", err)
	}

	hooks, err := webhook.NewHandler(&secretSource{creds: creds}, router)
	if err != nil {
		clog.FatalContextf(ctx, "creating webhook handler: %v", err)
	}

	public := http.NewServeMux()
	public.Handle("POST /webhooks/github", hooks)
	public.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	servers := []*http.Server{
		{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: public, ReadHeaderTimeout: 10 * time.Second},
		{Addr: fmt.Sprintf(":%d", cfg.InternalPort), Handler: coord.Handler(), ReadHeaderTimeout: 10 * time.Second},
		{Addr: fmt.Sprintf(":%d", cfg.MetricsPort), Handler: promhttp.Handler(), ReadHeaderTimeout: 10 * time.Second},
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		eg.Go(func() error {
			clog.InfoContextf(ctx, "Listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	eg.Go(func() error {
		return coord.Run(ctx)
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				clog.ErrorContextf(shutdownCtx, "shutting down %s: %v", srv.Addr, err)
			}
		}
		return nil
	})

	clog.InfoContextf(ctx, "Issuepilot running: webhooks :%d, callbacks :%d, metrics :%d",
		cfg.Port, cfg.InternalPort, cfg.MetricsPort)
	if err := eg.Wait(); err != nil {
		clog.FatalContextf(ctx, "server failed: %v", err)
	}
}

// newExecutor picks the execution backend: an external sandbox service when
// one is configured, the in-process Claude agent otherwise.
func newExecutor(cfg *config) (executor.Executor, error) {
	if cfg.SandboxURL != "" {
		return sandboxexec.New(cfg.SandboxURL)
	}
	var opts []claudeexec.Option
	if cfg.AnthropicModel != "" {
		opts = append(opts, claudeexec.WithModel(cfg.AnthropicModel))
	}
	return claudeexec.New(opts...)
}
