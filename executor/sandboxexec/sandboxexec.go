/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package sandboxexec launches tasks in an external sandbox service: the
// whole task payload is POSTed to the sandbox, which runs the agent and
// reports back through the task's callback URLs.
package sandboxexec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/issuepilot-dev/issuepilot/executor"
)

// Launcher hands tasks to a sandbox over HTTP.
type Launcher struct {
	url    string
	client *http.Client
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithHTTPClient overrides the HTTP client used for the hand-off.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Launcher) {
		l.client = client
	}
}

// New constructs a Launcher targeting the sandbox's launch endpoint.
func New(url string, opts ...Option) (*Launcher, error) {
	if url == "" {
		return nil, errors.New("sandbox URL cannot be empty")
	}
	l := &Launcher{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Launch POSTs the task to the sandbox. A 2xx means the sandbox accepted
// the work; everything after that arrives through callbacks.
func (l *Launcher) Launch(ctx context.Context, task *executor.Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encoding task: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building launch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("launching task %s: %w", task.ContextID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("launching task %s: sandbox returned %d", task.ContextID, resp.StatusCode)
	}
	clog.FromContext(ctx).With("context_id", task.ContextID).Info("Task handed to sandbox")
	return nil
}
