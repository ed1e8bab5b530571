/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package eventrouter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/issuepilot-dev/issuepilot/commentmanager"
	"github.com/issuepilot-dev/issuepilot/coordinator"
	"github.com/issuepilot-dev/issuepilot/credstore"
	"github.com/issuepilot-dev/issuepilot/executor"
	"github.com/issuepilot-dev/issuepilot/repoconfig"
	"github.com/issuepilot-dev/issuepilot/webhook"
)

type fakeGateway struct {
	mu         sync.Mutex
	created    []string
	updated    []string
	nextID     int64
	createFail bool
}

func (g *fakeGateway) CreateComment(_ context.Context, _, _ string, _ int, body string) (commentmanager.CommentRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createFail {
		return commentmanager.CommentRef{}, errors.New("gateway down")
	}
	g.created = append(g.created, body)
	g.nextID++
	return commentmanager.CommentRef{ID: g.nextID, URL: "https://example.com/comment"}, nil
}

func (g *fakeGateway) UpdateComment(_ context.Context, _, _ string, _ int64, body string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updated = append(g.updated, body)
	return nil
}

func (g *fakeGateway) lastCreated(t *testing.T) string {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.created) == 0 {
		t.Fatal("no comment created")
	}
	return g.created[len(g.created)-1]
}

type fakeExecutor struct {
	launched chan *executor.Task
	err      error
}

func (e *fakeExecutor) Launch(_ context.Context, task *executor.Task) error {
	e.launched <- task
	return e.err
}

func (e *fakeExecutor) wait(t *testing.T) *executor.Task {
	t.Helper()
	select {
	case task := <-e.launched:
		return task
	case <-time.After(5 * time.Second):
		t.Fatal("executor never launched")
		return nil
	}
}

type staticTokens string

func (s staticTokens) Token(context.Context, int64) (string, error) {
	return string(s), nil
}

type routerFixture struct {
	router *Router
	coord  *coordinator.Coordinator
	gw     *fakeGateway
	exec   *fakeExecutor
	creds  *credstore.Mem
}

func newFixture(t *testing.T) *routerFixture {
	t.Helper()
	store, err := coordinator.NewMemoryStore()
	if err != nil {
		t.Fatal(err)
	}
	gw := &fakeGateway{}
	gatewayFor := func(context.Context, int64) (commentmanager.Gateway, error) {
		return gw, nil
	}
	coord, err := coordinator.New(store, gatewayFor)
	if err != nil {
		t.Fatal(err)
	}
	creds := credstore.NewMem()
	if err := creds.Put(context.Background(), credstore.InstallationScope(12345), credstore.KeyAnthropicAPIKey, "sk-ant-test"); err != nil {
		t.Fatal(err)
	}
	exec := &fakeExecutor{launched: make(chan *executor.Task, 4)}
	router, err := New(Config{
		Tokens:      staticTokens("ghs_installation_token"),
		Creds:       creds,
		Coordinator: coord,
		Executor:    exec,
		FetchConfig: func(context.Context, int64, string, string) (repoconfig.Config, error) {
			return repoconfig.Default(), nil
		},
		GatewayFor:      gatewayFor,
		CallbackBaseURL: "http://coordinator.internal:8081/",
	})
	if err != nil {
		t.Fatal(err)
	}
	return &routerFixture{router: router, coord: coord, gw: gw, exec: exec, creds: creds}
}

func issuesOpened() webhook.IssuesEvent {
	return webhook.IssuesEvent{
		Action:         "opened",
		Repo:           testRepo,
		Sender:         "octocat",
		InstallationID: 12345,
		Number:         42,
		Title:          "Fix the widget",
		Body:           "It crashes on empty input.",
	}
}

func TestDispatch_TriggerEndToEnd(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	outcome, err := f.router.Dispatch(context.Background(), issuesOpened())
	if err != nil {
		t.Fatalf("Dispatch() = %v", err)
	}
	if outcome != "triggered" {
		t.Fatalf("outcome = %q", outcome)
	}

	// The acknowledgment comment landed before the hand-off.
	ack := f.gw.lastCreated(t)
	if !strings.Contains(ack, "⏳ Queued") {
		t.Errorf("acknowledgment comment:\n%s", ack)
	}

	task := f.exec.wait(t)
	if !coordinator.ValidContextID(task.ContextID) {
		t.Errorf("ContextID = %q", task.ContextID)
	}
	if task.FullName != "acme/widgets" || task.Number != 42 {
		t.Errorf("task entity = %s#%d", task.FullName, task.Number)
	}
	if task.AnthropicAPIKey != "sk-ant-test" || task.InstallationToken != "ghs_installation_token" {
		t.Error("task credentials not populated")
	}
	if task.MaxDuration != 10*time.Minute {
		t.Errorf("MaxDuration = %s", task.MaxDuration)
	}
	wantProgress := "http://coordinator.internal:8081/internal/progress/" + task.ContextID
	if task.Callback.ProgressURL != wantProgress {
		t.Errorf("ProgressURL = %q, want %q", task.Callback.ProgressURL, wantProgress)
	}
	if task.Callback.Token == "" {
		t.Error("callback token empty")
	}

	// The admitted context owns the acknowledgment comment.
	ec, err := f.coord.Store().Lookup(context.Background(), task.ContextID)
	if err != nil {
		t.Fatal(err)
	}
	if ec.CommentID == 0 {
		t.Error("comment id not recorded on context")
	}
	if ec.CallbackToken != task.Callback.Token {
		t.Error("context and task disagree on callback token")
	}
}

func TestDispatch_RejectsWhileActive(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	if _, err := f.router.Dispatch(context.Background(), issuesOpened()); err != nil {
		t.Fatal(err)
	}
	f.exec.wait(t)

	outcome, err := f.router.Dispatch(context.Background(), issuesOpened())
	if err != nil {
		t.Fatalf("Dispatch() = %v", err)
	}
	if outcome != "rejected: already processing" {
		t.Errorf("outcome = %q", outcome)
	}

	// A different issue in the same repository is unaffected.
	other := issuesOpened()
	other.Number = 43
	if outcome, err := f.router.Dispatch(context.Background(), other); err != nil || outcome != "triggered" {
		t.Errorf("Dispatch(other) = %q, %v", outcome, err)
	}
}

func TestDispatch_MissingAPIKeyAdvises(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ev := issuesOpened()
	ev.InstallationID = 999 // no key stored for this installation

	outcome, err := f.router.Dispatch(context.Background(), ev)
	if err != nil {
		t.Fatalf("Dispatch() = %v", err)
	}
	if outcome != "skipped: no api key configured" {
		t.Fatalf("outcome = %q", outcome)
	}
	if !strings.Contains(f.gw.lastCreated(t), "no Claude API key") {
		t.Errorf("advisory comment:\n%s", f.gw.lastCreated(t))
	}
	// Nothing was admitted: the same issue can trigger once a key exists.
	contexts, err := f.coord.Store().List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(contexts) != 0 {
		t.Errorf("%d contexts admitted, want 0", len(contexts))
	}
}

func TestDispatch_InitialCommentFailureAborts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.gw.createFail = true

	if _, err := f.router.Dispatch(context.Background(), issuesOpened()); err == nil {
		t.Fatal("Dispatch() = nil error with gateway down")
	}
	select {
	case <-f.exec.launched:
		t.Fatal("executor launched despite failed acknowledgment")
	default:
	}

	// The context was released: the trigger works once the gateway is back.
	f.gw.createFail = false
	outcome, err := f.router.Dispatch(context.Background(), issuesOpened())
	if err != nil || outcome != "triggered" {
		t.Fatalf("retry Dispatch() = %q, %v", outcome, err)
	}
}

func TestDispatch_LaunchFailureReportsCompletion(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.exec.err = errors.New("sandbox unreachable")

	if _, err := f.router.Dispatch(context.Background(), issuesOpened()); err != nil {
		t.Fatal(err)
	}
	task := f.exec.wait(t)

	// The failed launch is folded into a completion, freeing the entity.
	deadline := time.After(5 * time.Second)
	for {
		if _, err := f.coord.Store().Lookup(context.Background(), task.ContextID); errors.Is(err, coordinator.ErrNotFound) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("context never evicted after launch failure")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if !strings.Contains(f.gw.lastCreated(t), "could not be started") {
		t.Errorf("failure comment:\n%s", f.gw.lastCreated(t))
	}
}

func TestDispatch_ConfigFetchFailureFallsBack(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.router.fetchConfig = func(context.Context, int64, string, string) (repoconfig.Config, error) {
		return repoconfig.Config{}, errors.New("contents api down")
	}

	// Default trigger phrases still work.
	outcome, err := f.router.Dispatch(context.Background(), webhook.IssueCommentEvent{
		Action:         "created",
		Repo:           testRepo,
		Sender:         "octocat",
		InstallationID: 12345,
		Number:         7,
		CommentBody:    "@claude take a look",
	})
	if err != nil {
		t.Fatalf("Dispatch() = %v", err)
	}
	if outcome != "triggered" {
		t.Errorf("outcome = %q", outcome)
	}
	f.exec.wait(t)
}

func TestDispatch_InstallationEventsAcknowledged(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	for _, ev := range []webhook.Event{
		webhook.InstallationEvent{Action: "created", Sender: "octocat", InstallationID: 12345},
		webhook.InstallationRepositoriesEvent{Action: "added", InstallationID: 12345},
	} {
		outcome, err := f.router.Dispatch(context.Background(), ev)
		if err != nil {
			t.Fatalf("Dispatch(%T) = %v", ev, err)
		}
		if outcome != "acknowledged" {
			t.Errorf("Dispatch(%T) = %q", ev, outcome)
		}
	}
}
