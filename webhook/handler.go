/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/chainguard-dev/clog"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrNoConfiguration is returned by a SecretSource when no webhook secret is
// configured for the installation. The handler maps it to 404; every other
// lookup failure is treated as a verification failure (fail closed, 401).
var ErrNoConfiguration = errors.New("no configuration for installation")

// SecretSource resolves the webhook secret for an installation. Installation
// id 0 requests the app-level default secret (ping deliveries may omit the
// installation).
type SecretSource interface {
	WebhookSecret(ctx context.Context, installationID int64) (string, error)
}

// Dispatcher routes a classified event. The returned outcome is a short
// human-readable disposition ("triggered", "skipped: ...") used for logging
// and the response body; it never carries sensitive detail.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event) (outcome string, err error)
}

const (
	defaultMaxBodyBytes = 4 << 20 // GitHub caps webhook payloads at 25 MB; we accept far less.
	dedupCacheSize      = 4096
)

// Handler is the inbound webhook endpoint for POST /webhooks/github.
type Handler struct {
	secrets    SecretSource
	dispatcher Dispatcher
	maxBody    int64

	// seen remembers verified delivery ids so redeliveries are acknowledged
	// without reprocessing. Only verified deliveries are recorded, so an
	// unauthenticated sender cannot poison the cache. Deliveries whose
	// dispatch fails are forgotten again so redeliveries can retry them.
	seen *lru.Cache[string, struct{}]
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithMaxBodyBytes overrides the request body size limit.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handler) {
		h.maxBody = n
	}
}

// NewHandler constructs the webhook handler.
func NewHandler(secrets SecretSource, dispatcher Dispatcher, opts ...HandlerOption) (*Handler, error) {
	if secrets == nil {
		return nil, errors.New("secret source cannot be nil")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher cannot be nil")
	}
	seen, err := lru.New[string, struct{}](dedupCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating dedup cache: %w", err)
	}
	h := &Handler{
		secrets:    secrets,
		dispatcher: dispatcher,
		maxBody:    defaultMaxBodyBytes,
		seen:       seen,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Envelope is one raw delivery as received: the routing headers plus the
// unparsed body. Per-request only, never persisted.
type Envelope struct {
	EventType  string
	DeliveryID string
	Signature  string
	Body       []byte
}

// installationProbe extracts just enough of the payload to select the
// webhook secret. Verification still runs over the raw bytes.
type installationProbe struct {
	Installation struct {
		ID int64 `json:"id"`
	} `json:"installation"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	env := Envelope{
		EventType:  r.Header.Get("X-GitHub-Event"),
		DeliveryID: r.Header.Get("X-GitHub-Delivery"),
		Signature:  r.Header.Get("X-Hub-Signature-256"),
	}
	if env.EventType == "" || env.DeliveryID == "" || env.Signature == "" {
		deliveries.WithLabelValues("bad_request").Inc()
		respond(w, http.StatusBadRequest, map[string]string{"error": "missing required headers"})
		return
	}

	log := clog.FromContext(ctx).With("delivery_id", env.DeliveryID).With("event_type", env.EventType)
	ctx = clog.WithLogger(ctx, log)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		deliveries.WithLabelValues("bad_request").Inc()
		respond(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	env.Body = body

	var probe installationProbe
	if err := json.Unmarshal(env.Body, &probe); err != nil {
		deliveries.WithLabelValues("bad_request").Inc()
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	secret, err := h.secrets.WebhookSecret(ctx, probe.Installation.ID)
	switch {
	case errors.Is(err, ErrNoConfiguration):
		deliveries.WithLabelValues("no_configuration").Inc()
		respond(w, http.StatusNotFound, map[string]string{"error": "no configuration for installation"})
		return
	case err != nil:
		// Lookup/decryption failures are verification failures, not 500s.
		log.With("installation_id", probe.Installation.ID).Warn("Secret lookup failed, rejecting delivery")
		deliveries.WithLabelValues("unauthorized").Inc()
		respond(w, http.StatusUnauthorized, map[string]string{"error": "signature verification failed"})
		return
	}

	if !VerifySignature(env.Body, env.Signature, secret) {
		log.Warn("Signature verification failed")
		deliveries.WithLabelValues("unauthorized").Inc()
		respond(w, http.StatusUnauthorized, map[string]string{"error": "signature verification failed"})
		return
	}

	if _, dup := h.seen.Get(env.DeliveryID); dup {
		log.Info("Duplicate delivery, acknowledging without reprocessing")
		deliveries.WithLabelValues("duplicate").Inc()
		respond(w, http.StatusOK, map[string]string{"status": "duplicate delivery"})
		return
	}
	h.seen.Add(env.DeliveryID, struct{}{})

	ev, err := Classify(env.EventType, env.Body)
	if err != nil {
		var ce *ClassificationError
		if errors.As(err, &ce) {
			log.With("missing_field", ce.Field).Warn("Payload missing required field")
		} else {
			log.With("error", err).Warn("Payload failed to parse")
		}
		deliveries.WithLabelValues("bad_request").Inc()
		respond(w, http.StatusBadRequest, map[string]string{"error": "malformed payload"})
		return
	}

	switch ev := ev.(type) {
	case PingEvent:
		deliveries.WithLabelValues("ping").Inc()
		respond(w, http.StatusOK, map[string]string{"status": "pong", "zen": ev.Zen})
		return
	case IgnoredEvent:
		deliveries.WithLabelValues("ignored").Inc()
		respond(w, http.StatusOK, map[string]string{"status": "acknowledged"})
		return
	}

	outcome, err := h.dispatcher.Dispatch(ctx, ev)
	if err != nil {
		// A failed dispatch must stay retryable: forget the delivery id so a
		// redelivery with the same id reaches the dispatcher again.
		h.seen.Remove(env.DeliveryID)
		log.With("error", err).Error("Dispatch failed")
		deliveries.WithLabelValues("error").Inc()
		respond(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	log.With("outcome", outcome).Info("Delivery processed")
	deliveries.WithLabelValues("processed").Inc()
	respond(w, http.StatusOK, map[string]string{"status": outcome})
}

func respond(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
