/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package webhook

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassify_Issues(t *testing.T) {
	t.Parallel()
	payload := []byte(`{
		"action": "opened",
		"issue": {
			"number": 42,
			"title": "Fix the widget",
			"body": "It is broken.",
			"labels": [{"name": "bug"}, {"name": "agent-fix"}]
		},
		"repository": {
			"name": "widgets",
			"full_name": "acme/widgets",
			"owner": {"login": "acme"}
		},
		"sender": {"login": "octocat"},
		"installation": {"id": 12345}
	}`)

	got, err := Classify("issues", payload)
	if err != nil {
		t.Fatalf("Classify() = %v", err)
	}
	want := IssuesEvent{
		Action:         "opened",
		Repo:           Repository{Owner: "acme", Name: "widgets", FullName: "acme/widgets"},
		Sender:         "octocat",
		InstallationID: 12345,
		Number:         42,
		Title:          "Fix the widget",
		Body:           "It is broken.",
		Labels:         []string{"bug", "agent-fix"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
	}
}

func TestClassify_IssueCommentOnPullRequest(t *testing.T) {
	t.Parallel()
	payload := []byte(`{
		"action": "created",
		"issue": {
			"number": 7,
			"title": "Add caching",
			"pull_request": {"url": "https://api.github.com/repos/acme/widgets/pulls/7"}
		},
		"comment": {"body": "@claude please take a look"},
		"repository": {
			"name": "widgets",
			"full_name": "acme/widgets",
			"owner": {"login": "acme"}
		},
		"sender": {"login": "octocat"},
		"installation": {"id": 12345}
	}`)

	got, err := Classify("issue_comment", payload)
	if err != nil {
		t.Fatalf("Classify() = %v", err)
	}
	ev, ok := got.(IssueCommentEvent)
	if !ok {
		t.Fatalf("Classify() = %T, want IssueCommentEvent", got)
	}
	if !ev.IsPullRequest {
		t.Error("IsPullRequest = false, want true")
	}
	if ev.CommentBody != "@claude please take a look" {
		t.Errorf("CommentBody = %q", ev.CommentBody)
	}
	if ev.Number != 7 {
		t.Errorf("Number = %d, want 7", ev.Number)
	}
}

func TestClassify_Ping(t *testing.T) {
	t.Parallel()
	got, err := Classify("ping", []byte(`{"zen": "Keep it logically awesome.", "hook_id": 99}`))
	if err != nil {
		t.Fatalf("Classify() = %v", err)
	}
	want := PingEvent{Zen: "Keep it logically awesome.", HookID: 99}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
	}
}

func TestClassify_UnrecognizedTypeIgnored(t *testing.T) {
	t.Parallel()
	for _, typ := range []string{"star", "fork", "watch", "workflow_run"} {
		got, err := Classify(typ, []byte(`{"action": "created"}`))
		if err != nil {
			t.Fatalf("Classify(%q) = %v", typ, err)
		}
		if diff := cmp.Diff(IgnoredEvent{EventType: typ}, got); diff != "" {
			t.Errorf("Classify(%q) mismatch (-want +got):\n%s", typ, diff)
		}
	}
}

func TestClassify_InstallationRepositories(t *testing.T) {
	t.Parallel()
	payload := []byte(`{
		"action": "added",
		"installation": {"id": 12345},
		"sender": {"login": "octocat"},
		"repositories_added": [{"full_name": "acme/widgets"}, {"full_name": "acme/gadgets"}],
		"repositories_removed": []
	}`)
	got, err := Classify("installation_repositories", payload)
	if err != nil {
		t.Fatalf("Classify() = %v", err)
	}
	want := InstallationRepositoriesEvent{
		Action:         "added",
		Sender:         "octocat",
		InstallationID: 12345,
		Added:          []string{"acme/widgets", "acme/gadgets"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
	}
}

func TestClassify_MissingFields(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		eventType string
		payload   string
		wantField string
	}{{
		name:      "issues without repository",
		eventType: "issues",
		payload:   `{"action": "opened", "issue": {"number": 1}, "sender": {"login": "u"}}`,
		wantField: "repository.full_name",
	}, {
		name:      "issues without sender",
		eventType: "issues",
		payload:   `{"action": "opened", "issue": {"number": 1}, "repository": {"name": "r", "full_name": "o/r"}}`,
		wantField: "sender.login",
	}, {
		name:      "issues without number",
		eventType: "issues",
		payload:   `{"action": "opened", "issue": {"title": "t"}, "repository": {"name": "r", "full_name": "o/r"}, "sender": {"login": "u"}}`,
		wantField: "issue.number",
	}, {
		name:      "issue_comment without comment",
		eventType: "issue_comment",
		payload:   `{"action": "created", "issue": {"number": 1}, "repository": {"name": "r", "full_name": "o/r"}, "sender": {"login": "u"}}`,
		wantField: "comment",
	}, {
		name:      "pull_request without number",
		eventType: "pull_request",
		payload:   `{"action": "opened", "pull_request": {"title": "t"}, "repository": {"name": "r", "full_name": "o/r"}, "sender": {"login": "u"}}`,
		wantField: "pull_request.number",
	}, {
		name:      "installation without id",
		eventType: "installation",
		payload:   `{"action": "created", "sender": {"login": "u"}}`,
		wantField: "installation.id",
	}, {
		name:      "installation without sender",
		eventType: "installation",
		payload:   `{"action": "created", "installation": {"id": 12345}}`,
		wantField: "sender.login",
	}, {
		name:      "installation_repositories without sender",
		eventType: "installation_repositories",
		payload:   `{"action": "added", "installation": {"id": 12345}, "repositories_added": [{"full_name": "o/r"}]}`,
		wantField: "sender.login",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Classify(tt.eventType, []byte(tt.payload))
			var cerr *ClassificationError
			if !errors.As(err, &cerr) {
				t.Fatalf("Classify() = %v, want *ClassificationError", err)
			}
			if cerr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", cerr.Field, tt.wantField)
			}
			if cerr.EventType != tt.eventType {
				t.Errorf("EventType = %q, want %q", cerr.EventType, tt.eventType)
			}
		})
	}
}

func TestClassify_MalformedJSON(t *testing.T) {
	t.Parallel()
	if _, err := Classify("issues", []byte(`{"action": "opened"`)); err == nil {
		t.Error("Classify() = nil error for truncated JSON")
	}
}
