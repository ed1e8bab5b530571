/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/issuepilot-dev/issuepilot/executor/retry"
)

// HTTPReporter reports progress and completion to the coordinator callback
// endpoints. Transient failures (5xx, network errors) are retried with
// backoff; a report that fails permanently is surfaced to the caller, who
// decides whether to continue (progress reports are recoverable, the next
// one carries full current state).
type HTTPReporter struct {
	client   *http.Client
	callback Callback
	retry    retry.Config
}

// ReporterOption configures an HTTPReporter.
type ReporterOption func(*HTTPReporter)

// WithHTTPClient overrides the HTTP client used for callback requests.
func WithHTTPClient(c *http.Client) ReporterOption {
	return func(r *HTTPReporter) {
		r.client = c
	}
}

// WithRetryConfig overrides the retry policy for callback requests.
func WithRetryConfig(cfg retry.Config) ReporterOption {
	return func(r *HTTPReporter) {
		r.retry = cfg
	}
}

// NewHTTPReporter builds a reporter for the given callback configuration.
func NewHTTPReporter(cb Callback, opts ...ReporterOption) *HTTPReporter {
	r := &HTTPReporter{
		client:   &http.Client{Timeout: 30 * time.Second},
		callback: cb,
		retry: retry.Config{
			MaxAttempts: 3,
			BaseBackoff: 500 * time.Millisecond,
			MaxBackoff:  10 * time.Second,
			MaxJitter:   250 * time.Millisecond,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Progress posts a progress event to the coordinator.
func (r *HTTPReporter) Progress(ctx context.Context, ev ProgressEvent) error {
	return r.post(ctx, "progress", r.callback.ProgressURL, ev)
}

// Complete posts the terminal completion notification to the coordinator.
func (r *HTTPReporter) Complete(ctx context.Context, cn CompletionNotification) error {
	return r.post(ctx, "completion", r.callback.CompletionURL, cn)
}

func (r *HTTPReporter) post(ctx context.Context, operation, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", operation, err)
	}

	_, err = retry.Do(ctx, r.retry, operation+"_callback", isRetryableStatus, func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return struct{}{}, fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+r.callback.Token)

		resp, err := r.client.Do(req)
		if err != nil {
			return struct{}{}, &transientError{err: err}
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		if resp.StatusCode >= 500 {
			return struct{}{}, &transientError{err: fmt.Errorf("callback returned %d", resp.StatusCode)}
		}
		if resp.StatusCode >= 400 {
			return struct{}{}, fmt.Errorf("callback returned %d", resp.StatusCode)
		}
		return struct{}{}, nil
	})
	return err
}

// transientError marks failures worth retrying.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isRetryableStatus(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
