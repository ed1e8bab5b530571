/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package coordinator

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/issuepilot-dev/issuepilot/executor"
)

// Handler serves the internal callback endpoints executors report to:
//
//	POST /internal/progress/{contextID}
//	POST /internal/completion/{contextID}
//
// Well-formed requests get 200 even when the context is gone, so a zombie
// executor whose context timed out never sees an error it might retry
// against. Only malformed ids or bodies get 400.
func (c *Coordinator) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /internal/progress/{contextID}", c.handleProgress)
	mux.HandleFunc("POST /internal/completion/{contextID}", c.handleCompletion)
	return mux
}

func (c *Coordinator) handleProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("contextID")
	if !ValidContextID(id) {
		http.Error(w, "invalid context id", http.StatusBadRequest)
		return
	}

	var ev executor.ProgressEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	// The server stamps receipt time; reporters' clocks are not trusted.
	ev.Timestamp = c.clock()

	if !c.authorized(r, id) {
		// Accepted and dropped: a 401 would tell a token-guessing caller
		// it found a live context id.
		clog.FromContext(ctx).With("context_id", id).Warn("Dropping progress report with bad token")
		callbacks.WithLabelValues("progress", "bad_token").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := c.OnProgress(ctx, id, ev); err != nil {
		clog.FromContext(ctx).With("context_id", id).With("error", err).Error("Progress handling failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (c *Coordinator) handleCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("contextID")
	if !ValidContextID(id) {
		http.Error(w, "invalid context id", http.StatusBadRequest)
		return
	}

	var cn executor.CompletionNotification
	if err := json.NewDecoder(r.Body).Decode(&cn); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if !c.authorized(r, id) {
		clog.FromContext(ctx).With("context_id", id).Warn("Dropping completion report with bad token")
		callbacks.WithLabelValues("completion", "bad_token").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := c.OnCompletion(ctx, id, cn); err != nil {
		clog.FromContext(ctx).With("context_id", id).With("error", err).Error("Completion handling failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// authorized checks the request's bearer token against the context's
// callback token. Unknown contexts pass: OnProgress/OnCompletion classify
// and drop those themselves.
func (c *Coordinator) authorized(r *http.Request, id string) bool {
	ec, err := c.store.Lookup(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		return true
	} else if err != nil {
		return false
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(ec.CallbackToken)) == 1
}
