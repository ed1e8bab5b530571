/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package repoconfig

import (
	"context"
	"fmt"
	"net/http"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
)

// Fetcher loads repository configs through the GitHub contents API.
type Fetcher struct {
	client *github.Client
}

// NewFetcher wraps an installation-scoped client.
func NewFetcher(client *github.Client) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch reads .github/issuepilot.yml from the repository's default branch.
// A missing file returns the defaults; a present-but-invalid file is an
// error so a typo never silently reverts a repository to defaults.
func (f *Fetcher) Fetch(ctx context.Context, owner, repo string) (Config, error) {
	log := clog.FromContext(ctx)

	file, _, resp, err := f.client.Repositories.GetContents(ctx, owner, repo, ConfigPath, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			log.Debugf("No %s in %s/%s, using defaults", ConfigPath, owner, repo)
			return Default(), nil
		}
		return Config{}, fmt.Errorf("fetching %s from %s/%s: %w", ConfigPath, owner, repo, err)
	}
	if file == nil {
		// The path resolved to a directory.
		return Config{}, fmt.Errorf("fetching %s from %s/%s: not a file", ConfigPath, owner, repo)
	}

	content, err := file.GetContent()
	if err != nil {
		return Config{}, fmt.Errorf("decoding %s from %s/%s: %w", ConfigPath, owner, repo, err)
	}
	return Parse([]byte(content))
}
