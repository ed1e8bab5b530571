/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/issuepilot-dev/issuepilot/commentmanager"
	"github.com/issuepilot-dev/issuepilot/executor"
)

// GatewayFor returns a comment gateway scoped to an installation. The
// coordinator resolves it per call so installation tokens stay fresh.
type GatewayFor func(ctx context.Context, installationID int64) (commentmanager.Gateway, error)

// Coordinator folds executor reports into context state and reflects them
// onto GitHub comments.
type Coordinator struct {
	store      Store
	gatewayFor GatewayFor

	timeout       time.Duration
	sweepInterval time.Duration
	clock         func() time.Time

	// locks serializes report handling per context id so comment updates
	// are applied in the order received.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs a Coordinator.
func New(store Store, gatewayFor GatewayFor, opts ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if gatewayFor == nil {
		return nil, errors.New("gateway resolver cannot be nil")
	}
	c := &Coordinator{
		store:         store,
		gatewayFor:    gatewayFor,
		timeout:       10 * time.Minute,
		sweepInterval: 30 * time.Second,
		clock:         time.Now,
		locks:         map[string]*sync.Mutex{},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Store exposes the context store for the routing layer.
func (c *Coordinator) Store() Store {
	return c.store
}

// Admit registers a new context, enforcing one active context per entity.
// Returns ErrAlreadyActive (wrapped) when the entity is busy.
func (c *Coordinator) Admit(ctx context.Context, ec Context) error {
	if err := c.store.Create(ctx, ec); err != nil {
		return err
	}
	activeContexts.Inc()
	return nil
}

// Release discards a context that never got off the ground, such as when
// the initial comment could not be posted. No comment is written.
func (c *Coordinator) Release(ctx context.Context, id string) error {
	if err := c.store.Evict(ctx, id); err != nil {
		return err
	}
	c.dropLock(id)
	activeContexts.Dec()
	return nil
}

// SetCommentID records the progress comment a freshly admitted context owns.
func (c *Coordinator) SetCommentID(ctx context.Context, id string, commentID int64) error {
	l := c.lockFor(id)
	l.Lock()
	defer l.Unlock()

	ec, err := c.store.Lookup(ctx, id)
	if err != nil {
		return err
	}
	ec.CommentID = commentID
	return c.store.Update(ctx, ec)
}

func (c *Coordinator) lockFor(id string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[id]
	if !ok {
		l = &sync.Mutex{}
		c.locks[id] = l
	}
	return l
}

func (c *Coordinator) dropLock(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, id)
}

// OnProgress folds one progress report into the context and updates its
// comment. Reports for unknown or finished contexts are dropped without
// error; a failed comment update is logged and swallowed.
func (c *Coordinator) OnProgress(ctx context.Context, id string, ev executor.ProgressEvent) error {
	log := clog.FromContext(ctx).With("context_id", id)

	l := c.lockFor(id)
	l.Lock()
	defer l.Unlock()

	ec, err := c.store.Lookup(ctx, id)
	if errors.Is(err, ErrNotFound) {
		if c.store.WasEvicted(ctx, id) {
			log.Info("Dropping late progress report for evicted context")
			callbacks.WithLabelValues("progress", "late").Inc()
		} else {
			log.Warn("Dropping progress report for unknown context")
			callbacks.WithLabelValues("progress", "unknown").Inc()
		}
		return nil
	} else if err != nil {
		return fmt.Errorf("looking up context: %w", err)
	}

	if !ev.Stage.Valid() || ev.Stage.Terminal() {
		// Terminal transitions only happen through completion reports.
		log.With("stage", string(ev.Stage)).Warn("Dropping progress report with invalid stage")
		callbacks.WithLabelValues("progress", "invalid").Inc()
		return nil
	}

	now := ev.Timestamp
	if now.IsZero() {
		now = c.clock()
	}

	ec.Stage = ev.Stage
	ec.Message = ev.Message
	// Percent is monotonic non-decreasing within a context.
	if ev.Percent > ec.Percent {
		ec.Percent = min(ev.Percent, 100)
	}
	ec.LastUpdatedAt = now
	if err := c.store.Update(ctx, ec); err != nil {
		return fmt.Errorf("updating context: %w", err)
	}

	body := commentmanager.Render(ec.Stage, ec.Message,
		commentmanager.ParseDetails(ec.Percent, ev.Metadata, now))
	if err := c.updateComment(ctx, ec, body); err != nil {
		// A missed update is recoverable: the next one carries full state.
		log.With("error", err).Warn("Progress comment update failed")
		callbacks.WithLabelValues("progress", "comment_failed").Inc()
		return nil
	}
	callbacks.WithLabelValues("progress", "applied").Inc()
	return nil
}

// OnCompletion ends the context: it posts a new final comment (not an edit
// of the progress comment) and evicts the context so the entity can be
// triggered again. Duplicate completions are no-ops.
func (c *Coordinator) OnCompletion(ctx context.Context, id string, cn executor.CompletionNotification) error {
	log := clog.FromContext(ctx).With("context_id", id)

	l := c.lockFor(id)
	l.Lock()
	defer l.Unlock()

	ec, err := c.store.Lookup(ctx, id)
	if errors.Is(err, ErrNotFound) {
		if c.store.WasEvicted(ctx, id) {
			log.Info("Dropping duplicate or late completion report")
			callbacks.WithLabelValues("completion", "late").Inc()
		} else {
			log.Warn("Dropping completion report for unknown context")
			callbacks.WithLabelValues("completion", "unknown").Inc()
		}
		return nil
	} else if err != nil {
		return fmt.Errorf("looking up context: %w", err)
	}

	stage := executor.StageCompleted
	if !cn.Success {
		stage = executor.StageFailed
	}
	ec.Stage = stage
	ec.LastUpdatedAt = c.clock()

	body := commentmanager.RenderFinal(commentmanager.Outcome{
		Success:        cn.Success,
		Summary:        cn.Summary,
		PullRequestURL: cn.PullRequestURL,
		FilesModified:  cn.FilesModified,
		Error:          cn.Error,
		Elapsed:        ec.LastUpdatedAt.Sub(ec.StartedAt),
	})
	if err := c.postFinalComment(ctx, ec, body); err != nil {
		// The context is still released; a stuck entity is worse than a
		// missing comment.
		log.With("error", err).Warn("Final comment failed")
		callbacks.WithLabelValues("completion", "comment_failed").Inc()
	}

	if err := c.store.Evict(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("evicting context: %w", err)
	}
	c.dropLock(id)
	activeContexts.Dec()

	log.With("entity", ec.Key.String()).With("success", cn.Success).Info("Execution finished")
	callbacks.WithLabelValues("completion", "applied").Inc()
	return nil
}

// Run sweeps for stalled contexts until ctx is cancelled. A context that
// has not reported within the timeout is failed, commented, and evicted so
// a crashed executor cannot strand its entity.
func (c *Coordinator) Run(ctx context.Context) error {
	log := clog.FromContext(ctx)
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	log.With("timeout", c.timeout).Infof("Timeout sweeper running every %s", c.sweepInterval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *Coordinator) sweep(ctx context.Context) {
	log := clog.FromContext(ctx)
	contexts, err := c.store.List(ctx)
	if err != nil {
		log.With("error", err).Error("Listing contexts for sweep failed")
		return
	}

	now := c.clock()
	for _, ec := range contexts {
		deadline := ec.LastUpdatedAt.Add(c.timeout)
		if now.Before(deadline) {
			continue
		}
		log.With("context_id", ec.ID).With("entity", ec.Key.String()).
			Warnf("No report in %s, timing out", now.Sub(ec.LastUpdatedAt).Round(time.Second))
		timeouts.Inc()
		if err := c.OnCompletion(ctx, ec.ID, executor.CompletionNotification{
			Success: false,
			Summary: "The run was stopped because it reported no progress for too long.",
			Error:   fmt.Sprintf("timed out after %s without a progress report", c.timeout),
		}); err != nil {
			log.With("context_id", ec.ID).With("error", err).Error("Timing out context failed")
		}
	}
}

func (c *Coordinator) updateComment(ctx context.Context, ec Context, body string) error {
	gw, err := c.gatewayFor(ctx, ec.InstallationID)
	if err != nil {
		return fmt.Errorf("resolving gateway: %w", err)
	}
	return gw.UpdateComment(ctx, ec.Key.Owner, ec.Key.Repo, ec.CommentID, body)
}

func (c *Coordinator) postFinalComment(ctx context.Context, ec Context, body string) error {
	gw, err := c.gatewayFor(ctx, ec.InstallationID)
	if err != nil {
		return fmt.Errorf("resolving gateway: %w", err)
	}
	_, err = gw.CreateComment(ctx, ec.Key.Owner, ec.Key.Repo, ec.Key.Number, body)
	return err
}
