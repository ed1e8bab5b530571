/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package eventrouter

import (
	"fmt"
	"strings"

	"github.com/issuepilot-dev/issuepilot/repoconfig"
	"github.com/issuepilot-dev/issuepilot/webhook"
)

// Kind is the disposition of a routing decision.
type Kind string

const (
	// KindTrigger starts an agent run.
	KindTrigger Kind = "trigger"
	// KindSkip acknowledges the event without acting on it.
	KindSkip Kind = "skip"
)

// Entity identifies the issue or pull request a trigger acts on.
type Entity struct {
	Owner          string
	Repo           string
	FullName       string
	Number         int
	IsPullRequest  bool
	Title          string
	Body           string
	InstallationID int64
}

// Decision is the outcome of routing one event. Reason is human-readable
// and safe for logs and response bodies.
type Decision struct {
	Kind   Kind
	Reason string
	Entity Entity
}

func skip(format string, args ...any) Decision {
	return Decision{Kind: KindSkip, Reason: fmt.Sprintf(format, args...)}
}

func trigger(reason string, e Entity) Decision {
	return Decision{Kind: KindTrigger, Reason: reason, Entity: e}
}

// Decide maps an event and the repository's settings to a routing decision.
// Pure: no I/O, no clock.
func Decide(ev webhook.Event, cfg repoconfig.Config) Decision {
	switch ev := ev.(type) {
	case webhook.IssuesEvent:
		return decideIssues(ev, cfg)

	case webhook.IssueCommentEvent:
		if ev.Action != "created" {
			return skip("comment %s", ev.Action)
		}
		return decideComment(ev.Sender, ev.CommentBody, cfg, Entity{
			Owner:          ev.Repo.Owner,
			Repo:           ev.Repo.Name,
			FullName:       ev.Repo.FullName,
			Number:         ev.Number,
			IsPullRequest:  ev.IsPullRequest,
			Title:          ev.Title,
			Body:           ev.CommentBody,
			InstallationID: ev.InstallationID,
		})

	case webhook.ReviewEvent:
		if ev.Action != "submitted" {
			return skip("review %s", ev.Action)
		}
		return decideComment(ev.Sender, ev.ReviewBody, cfg, Entity{
			Owner:          ev.Repo.Owner,
			Repo:           ev.Repo.Name,
			FullName:       ev.Repo.FullName,
			Number:         ev.Number,
			IsPullRequest:  true,
			Title:          ev.Title,
			Body:           ev.ReviewBody,
			InstallationID: ev.InstallationID,
		})

	case webhook.ReviewCommentEvent:
		if ev.Action != "created" {
			return skip("review comment %s", ev.Action)
		}
		return decideComment(ev.Sender, ev.CommentBody, cfg, Entity{
			Owner:          ev.Repo.Owner,
			Repo:           ev.Repo.Name,
			FullName:       ev.Repo.FullName,
			Number:         ev.Number,
			IsPullRequest:  true,
			Title:          ev.Title,
			Body:           ev.CommentBody,
			InstallationID: ev.InstallationID,
		})

	case webhook.PullRequestEvent:
		return skip("pull_request %s is not a trigger", ev.Action)

	default:
		return skip("%T is not routable", ev)
	}
}

func decideIssues(ev webhook.IssuesEvent, cfg repoconfig.Config) Decision {
	entity := Entity{
		Owner:          ev.Repo.Owner,
		Repo:           ev.Repo.Name,
		FullName:       ev.Repo.FullName,
		Number:         ev.Number,
		Title:          ev.Title,
		Body:           ev.Body,
		InstallationID: ev.InstallationID,
	}
	switch ev.Action {
	case "opened":
		// Every new issue gets the agent's attention.
		return trigger("issue opened", entity)
	case "labeled":
		if cfg.MatchesLabel(ev.Label) {
			return trigger(fmt.Sprintf("label %q", ev.Label), entity)
		}
		return skip("label %q is not a trigger", ev.Label)
	case "assigned":
		if cfg.Matches("@" + ev.Assignee) {
			return trigger(fmt.Sprintf("assigned to %s", ev.Assignee), entity)
		}
		return skip("assignee %q is not a trigger", ev.Assignee)
	default:
		return skip("issues %s is not a trigger", ev.Action)
	}
}

func decideComment(sender, body string, cfg repoconfig.Config, entity Entity) Decision {
	// Bot-authored comments never trigger, or our own progress comments
	// would re-summon the agent forever.
	if strings.HasSuffix(sender, "[bot]") {
		return skip("comment by bot %s", sender)
	}
	if !cfg.Matches(body) {
		return skip("no trigger phrase")
	}
	return trigger("trigger phrase", entity)
}
