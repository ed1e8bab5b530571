/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package sandboxexec

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/issuepilot-dev/issuepilot/executor"
)

func TestLaunch_PostsTask(t *testing.T) {
	t.Parallel()
	var got executor.Task
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	l, err := New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	task := &executor.Task{
		ContextID:       "ctx-0123456789abcdef",
		FullName:        "acme/widgets",
		Number:          42,
		AnthropicAPIKey: "sk-ant-test",
		Callback: executor.Callback{
			ProgressURL: "http://coordinator/internal/progress/ctx-0123456789abcdef",
			Token:       "tok",
		},
	}
	if err := l.Launch(context.Background(), task); err != nil {
		t.Fatalf("Launch() = %v", err)
	}
	if got.ContextID != task.ContextID || got.Callback.ProgressURL != task.Callback.ProgressURL {
		t.Errorf("sandbox received %+v", got)
	}
	if got.AnthropicAPIKey != "sk-ant-test" {
		t.Error("credentials did not reach the sandbox")
	}
}

func TestLaunch_SandboxRejection(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	l, err := New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Launch(context.Background(), &executor.Task{ContextID: "ctx-0123456789abcdef"}); err == nil {
		t.Error("Launch() = nil error for 503")
	}
}

func TestNew_RequiresURL(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Error("New(\"\") = nil error")
	}
}
