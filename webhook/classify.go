/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package webhook

import (
	"fmt"

	"github.com/google/go-github/v75/github"
)

// Repository identifies the repository a delivery concerns.
type Repository struct {
	Owner    string
	Name     string
	FullName string
}

// Event is the tagged union of normalized webhook events. Downstream code
// switches over the concrete variants instead of probing loosely typed
// payload maps.
type Event interface {
	isEvent()
}

// PingEvent is GitHub's webhook liveness check. It carries no repository
// context and bypasses all routing.
type PingEvent struct {
	Zen    string
	HookID int64
}

// IssuesEvent is a normalized "issues" delivery.
type IssuesEvent struct {
	Action         string
	Repo           Repository
	Sender         string
	InstallationID int64
	Number         int
	Title          string
	Body           string
	Labels         []string
	// Label is the label added or removed, set for labeled/unlabeled actions.
	Label string
	// Assignee is set for assigned/unassigned actions.
	Assignee string
}

// IssueCommentEvent is a normalized "issue_comment" delivery. GitHub sends
// comments on pull requests through the same event; IsPullRequest
// distinguishes them.
type IssueCommentEvent struct {
	Action         string
	Repo           Repository
	Sender         string
	InstallationID int64
	Number         int
	Title          string
	IsPullRequest  bool
	CommentBody    string
}

// PullRequestEvent is a normalized "pull_request" delivery.
type PullRequestEvent struct {
	Action         string
	Repo           Repository
	Sender         string
	InstallationID int64
	Number         int
	Title          string
	Body           string
}

// ReviewEvent is a normalized "pull_request_review" delivery.
type ReviewEvent struct {
	Action         string
	Repo           Repository
	Sender         string
	InstallationID int64
	Number         int
	Title          string
	ReviewBody     string
}

// ReviewCommentEvent is a normalized "pull_request_review_comment" delivery.
type ReviewCommentEvent struct {
	Action         string
	Repo           Repository
	Sender         string
	InstallationID int64
	Number         int
	Title          string
	CommentBody    string
}

// InstallationEvent is a normalized "installation" delivery.
type InstallationEvent struct {
	Action         string
	Sender         string
	InstallationID int64
	Repos          []string
}

// InstallationRepositoriesEvent is a normalized "installation_repositories"
// delivery.
type InstallationRepositoriesEvent struct {
	Action         string
	Sender         string
	InstallationID int64
	Added          []string
	Removed        []string
}

// IgnoredEvent represents a recognized-but-unprocessed delivery. GitHub
// sends many event types the daemon intentionally ignores; they are
// acknowledged, never treated as errors.
type IgnoredEvent struct {
	EventType string
}

func (PingEvent) isEvent()                     {}
func (IssuesEvent) isEvent()                   {}
func (IssueCommentEvent) isEvent()             {}
func (PullRequestEvent) isEvent()              {}
func (ReviewEvent) isEvent()                   {}
func (ReviewCommentEvent) isEvent()            {}
func (InstallationEvent) isEvent()             {}
func (InstallationRepositoriesEvent) isEvent() {}
func (IgnoredEvent) isEvent()                  {}

// ClassificationError reports a recognized event type whose payload is
// missing a required field. The field name is for internal logs; it is never
// echoed back to the webhook sender.
type ClassificationError struct {
	EventType string
	Field     string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("%s payload missing required field %q", e.EventType, e.Field)
}

// Classify parses a raw delivery into a normalized Event. Unrecognized event
// types return IgnoredEvent, not an error; malformed payloads or payloads
// missing required fields return an error (bad JSON or *ClassificationError).
func Classify(eventType string, payload []byte) (Event, error) {
	raw, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		// ParseWebHook errors on unknown event types as well as bad JSON;
		// only JSON failures are real errors here.
		if _, known := recognizedEvents[eventType]; !known {
			return IgnoredEvent{EventType: eventType}, nil
		}
		return nil, fmt.Errorf("parsing %s payload: %w", eventType, err)
	}

	switch ev := raw.(type) {
	case *github.PingEvent:
		return PingEvent{Zen: ev.GetZen(), HookID: ev.GetHookID()}, nil

	case *github.IssuesEvent:
		repo, err := normalizeRepo(eventType, ev.GetRepo())
		if err != nil {
			return nil, err
		}
		sender, err := normalizeSender(eventType, ev.GetSender())
		if err != nil {
			return nil, err
		}
		if ev.GetIssue() == nil || ev.GetIssue().Number == nil {
			return nil, &ClassificationError{EventType: eventType, Field: "issue.number"}
		}
		out := IssuesEvent{
			Action:         ev.GetAction(),
			Repo:           repo,
			Sender:         sender,
			InstallationID: ev.GetInstallation().GetID(),
			Number:         ev.GetIssue().GetNumber(),
			Title:          ev.GetIssue().GetTitle(),
			Body:           ev.GetIssue().GetBody(),
			Label:          ev.GetLabel().GetName(),
			Assignee:       ev.GetAssignee().GetLogin(),
		}
		for _, l := range ev.GetIssue().Labels {
			out.Labels = append(out.Labels, l.GetName())
		}
		return out, nil

	case *github.IssueCommentEvent:
		repo, err := normalizeRepo(eventType, ev.GetRepo())
		if err != nil {
			return nil, err
		}
		sender, err := normalizeSender(eventType, ev.GetSender())
		if err != nil {
			return nil, err
		}
		if ev.GetIssue() == nil || ev.GetIssue().Number == nil {
			return nil, &ClassificationError{EventType: eventType, Field: "issue.number"}
		}
		if ev.GetComment() == nil {
			return nil, &ClassificationError{EventType: eventType, Field: "comment"}
		}
		return IssueCommentEvent{
			Action:         ev.GetAction(),
			Repo:           repo,
			Sender:         sender,
			InstallationID: ev.GetInstallation().GetID(),
			Number:         ev.GetIssue().GetNumber(),
			Title:          ev.GetIssue().GetTitle(),
			IsPullRequest:  ev.GetIssue().IsPullRequest(),
			CommentBody:    ev.GetComment().GetBody(),
		}, nil

	case *github.PullRequestEvent:
		repo, err := normalizeRepo(eventType, ev.GetRepo())
		if err != nil {
			return nil, err
		}
		sender, err := normalizeSender(eventType, ev.GetSender())
		if err != nil {
			return nil, err
		}
		if ev.GetPullRequest() == nil || ev.GetPullRequest().Number == nil {
			return nil, &ClassificationError{EventType: eventType, Field: "pull_request.number"}
		}
		return PullRequestEvent{
			Action:         ev.GetAction(),
			Repo:           repo,
			Sender:         sender,
			InstallationID: ev.GetInstallation().GetID(),
			Number:         ev.GetPullRequest().GetNumber(),
			Title:          ev.GetPullRequest().GetTitle(),
			Body:           ev.GetPullRequest().GetBody(),
		}, nil

	case *github.PullRequestReviewEvent:
		repo, err := normalizeRepo(eventType, ev.GetRepo())
		if err != nil {
			return nil, err
		}
		sender, err := normalizeSender(eventType, ev.GetSender())
		if err != nil {
			return nil, err
		}
		if ev.GetPullRequest() == nil || ev.GetPullRequest().Number == nil {
			return nil, &ClassificationError{EventType: eventType, Field: "pull_request.number"}
		}
		return ReviewEvent{
			Action:         ev.GetAction(),
			Repo:           repo,
			Sender:         sender,
			InstallationID: ev.GetInstallation().GetID(),
			Number:         ev.GetPullRequest().GetNumber(),
			Title:          ev.GetPullRequest().GetTitle(),
			ReviewBody:     ev.GetReview().GetBody(),
		}, nil

	case *github.PullRequestReviewCommentEvent:
		repo, err := normalizeRepo(eventType, ev.GetRepo())
		if err != nil {
			return nil, err
		}
		sender, err := normalizeSender(eventType, ev.GetSender())
		if err != nil {
			return nil, err
		}
		if ev.GetPullRequest() == nil || ev.GetPullRequest().Number == nil {
			return nil, &ClassificationError{EventType: eventType, Field: "pull_request.number"}
		}
		if ev.GetComment() == nil {
			return nil, &ClassificationError{EventType: eventType, Field: "comment"}
		}
		return ReviewCommentEvent{
			Action:         ev.GetAction(),
			Repo:           repo,
			Sender:         sender,
			InstallationID: ev.GetInstallation().GetID(),
			Number:         ev.GetPullRequest().GetNumber(),
			Title:          ev.GetPullRequest().GetTitle(),
			CommentBody:    ev.GetComment().GetBody(),
		}, nil

	case *github.InstallationEvent:
		if ev.GetInstallation() == nil || ev.GetInstallation().ID == nil {
			return nil, &ClassificationError{EventType: eventType, Field: "installation.id"}
		}
		sender, err := normalizeSender(eventType, ev.GetSender())
		if err != nil {
			return nil, err
		}
		out := InstallationEvent{
			Action:         ev.GetAction(),
			Sender:         sender,
			InstallationID: ev.GetInstallation().GetID(),
		}
		for _, r := range ev.Repositories {
			out.Repos = append(out.Repos, r.GetFullName())
		}
		return out, nil

	case *github.InstallationRepositoriesEvent:
		if ev.GetInstallation() == nil || ev.GetInstallation().ID == nil {
			return nil, &ClassificationError{EventType: eventType, Field: "installation.id"}
		}
		sender, err := normalizeSender(eventType, ev.GetSender())
		if err != nil {
			return nil, err
		}
		out := InstallationRepositoriesEvent{
			Action:         ev.GetAction(),
			Sender:         sender,
			InstallationID: ev.GetInstallation().GetID(),
		}
		for _, r := range ev.RepositoriesAdded {
			out.Added = append(out.Added, r.GetFullName())
		}
		for _, r := range ev.RepositoriesRemoved {
			out.Removed = append(out.Removed, r.GetFullName())
		}
		return out, nil

	default:
		return IgnoredEvent{EventType: eventType}, nil
	}
}

// recognizedEvents are the delivery types the daemon acts on. Everything
// else is acknowledged and dropped.
var recognizedEvents = map[string]struct{}{
	"ping":                        {},
	"issues":                      {},
	"issue_comment":               {},
	"pull_request":                {},
	"pull_request_review":         {},
	"pull_request_review_comment": {},
	"installation":                {},
	"installation_repositories":   {},
}

func normalizeRepo(eventType string, repo *github.Repository) (Repository, error) {
	if repo == nil || repo.FullName == nil {
		return Repository{}, &ClassificationError{EventType: eventType, Field: "repository.full_name"}
	}
	if repo.Name == nil {
		return Repository{}, &ClassificationError{EventType: eventType, Field: "repository.name"}
	}
	return Repository{
		Owner:    repo.GetOwner().GetLogin(),
		Name:     repo.GetName(),
		FullName: repo.GetFullName(),
	}, nil
}

func normalizeSender(eventType string, sender *github.User) (string, error) {
	if sender == nil || sender.Login == nil {
		return "", &ClassificationError{EventType: eventType, Field: "sender.login"}
	}
	return sender.GetLogin(), nil
}
