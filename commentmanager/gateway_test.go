/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package commentmanager

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v75/github"
)

func gatewayClient(t *testing.T, handler http.HandlerFunc) *github.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := github.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	client.BaseURL = base
	return client
}

func TestCreateComment(t *testing.T) {
	t.Parallel()
	client := gatewayClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		wantPath := "/repos/acme/widgets/issues/42/comments"
		if r.URL.Path != wantPath {
			t.Errorf("path = %q, want %q", r.URL.Path, wantPath)
		}
		var body struct {
			Body string `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.Body != "hello" {
			t.Errorf("body = %q", body.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": 777, "html_url": "https://github.com/acme/widgets/issues/42#issuecomment-777"}`)
	})

	ref, err := NewGitHubGateway(client).CreateComment(context.Background(), "acme", "widgets", 42, "hello")
	if err != nil {
		t.Fatalf("CreateComment() = %v", err)
	}
	if ref.ID != 777 {
		t.Errorf("ID = %d, want 777", ref.ID)
	}
	if ref.URL != "https://github.com/acme/widgets/issues/42#issuecomment-777" {
		t.Errorf("URL = %q", ref.URL)
	}
}

func TestUpdateComment(t *testing.T) {
	t.Parallel()
	client := gatewayClient(t, func(w http.ResponseWriter, r *http.Request) {
		wantPath := "/repos/acme/widgets/issues/comments/777"
		if r.URL.Path != wantPath {
			t.Errorf("path = %q, want %q", r.URL.Path, wantPath)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": 777}`)
	})

	if err := NewGitHubGateway(client).UpdateComment(context.Background(), "acme", "widgets", 777, "updated"); err != nil {
		t.Fatalf("UpdateComment() = %v", err)
	}
}

func TestCreateComment_ErrorWrapsContext(t *testing.T) {
	t.Parallel()
	client := gatewayClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	_, err := NewGitHubGateway(client).CreateComment(context.Background(), "acme", "widgets", 42, "hello")
	if err == nil {
		t.Fatal("CreateComment() = nil error")
	}
}
