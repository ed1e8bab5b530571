/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package githubauth

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
)

// App authenticates as a GitHub App and derives per-installation transports.
// Transports cache and refresh installation tokens themselves, so one App
// serves the whole process lifetime.
type App struct {
	apps *ghinstallation.AppsTransport

	mu         sync.Mutex
	transports map[int64]*ghinstallation.Transport
}

// NewApp loads the App's private key from a PEM file.
func NewApp(appID int64, privateKeyPath string) (*App, error) {
	apps, err := ghinstallation.NewAppsTransportKeyFromFile(http.DefaultTransport, appID, privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("loading app key: %w", err)
	}
	return &App{
		apps:       apps,
		transports: map[int64]*ghinstallation.Transport{},
	}, nil
}

// NewAppFromKey constructs an App from in-memory PEM bytes.
func NewAppFromKey(appID int64, privateKey []byte) (*App, error) {
	apps, err := ghinstallation.NewAppsTransport(http.DefaultTransport, appID, privateKey)
	if err != nil {
		return nil, fmt.Errorf("loading app key: %w", err)
	}
	return &App{
		apps:       apps,
		transports: map[int64]*ghinstallation.Transport{},
	}, nil
}

func (a *App) transport(installationID int64) *ghinstallation.Transport {
	a.mu.Lock()
	defer a.mu.Unlock()
	tr, ok := a.transports[installationID]
	if !ok {
		tr = ghinstallation.NewFromAppsTransport(a.apps, installationID)
		a.transports[installationID] = tr
	}
	return tr
}

// InstallationClient returns a GitHub client whose requests authenticate as
// the installation.
func (a *App) InstallationClient(installationID int64) *github.Client {
	return github.NewClient(&http.Client{Transport: a.transport(installationID)})
}

// Token mints (or reuses) an installation access token, for collaborators
// that need a raw token rather than an http.Client, such as git clones.
func (a *App) Token(ctx context.Context, installationID int64) (string, error) {
	token, err := a.transport(installationID).Token(ctx)
	if err != nil {
		return "", fmt.Errorf("minting installation token: %w", err)
	}
	return token, nil
}

// AppClient returns a client authenticated as the App itself, for app-level
// endpoints like listing installations.
func (a *App) AppClient() *github.Client {
	return github.NewClient(&http.Client{Transport: a.apps})
}

// NewTokenClient wraps a static token, such as one minted by Token, in a
// GitHub client.
func NewTokenClient(ctx context.Context, token string) *github.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts))
}
