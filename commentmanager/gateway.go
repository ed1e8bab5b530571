/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package commentmanager

import (
	"context"
	"fmt"

	"github.com/google/go-github/v75/github"
)

// CommentRef identifies a created comment.
type CommentRef struct {
	ID  int64
	URL string
}

// Gateway is the comment write surface. Issue and pull request comments go
// through the same issues API, so one interface covers both.
type Gateway interface {
	CreateComment(ctx context.Context, owner, repo string, number int, body string) (CommentRef, error)
	UpdateComment(ctx context.Context, owner, repo string, commentID int64, body string) error
}

// GitHubGateway writes comments with an installation-scoped client.
type GitHubGateway struct {
	client *github.Client
}

// NewGitHubGateway wraps client.
func NewGitHubGateway(client *github.Client) *GitHubGateway {
	return &GitHubGateway{client: client}
}

func (g *GitHubGateway) CreateComment(ctx context.Context, owner, repo string, number int, body string) (CommentRef, error) {
	c, _, err := g.client.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{
		Body: github.Ptr(body),
	})
	if err != nil {
		return CommentRef{}, fmt.Errorf("creating comment on %s/%s#%d: %w", owner, repo, number, err)
	}
	return CommentRef{ID: c.GetID(), URL: c.GetHTMLURL()}, nil
}

func (g *GitHubGateway) UpdateComment(ctx context.Context, owner, repo string, commentID int64, body string) error {
	if _, _, err := g.client.Issues.EditComment(ctx, owner, repo, commentID, &github.IssueComment{
		Body: github.Ptr(body),
	}); err != nil {
		return fmt.Errorf("updating comment %d on %s/%s: %w", commentID, owner, repo, err)
	}
	return nil
}
