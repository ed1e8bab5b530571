/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package claudeexec

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

const commitAuthor = "issuepilot[bot]"
const commitEmail = "issuepilot[bot]@users.noreply.github.com"

// workspace is one task's working tree. All agent file operations are
// confined to it; paths that resolve outside the tree are rejected.
type workspace struct {
	dir  string
	repo *git.Repository

	modified map[string]struct{}
}

func tokenAuth(token string) transport.AuthMethod {
	return &githttp.BasicAuth{
		Username: "x-access-token",
		Password: token,
	}
}

// cloneWorkspace clones remote (optionally a specific branch) into a fresh
// temp directory.
func cloneWorkspace(ctx context.Context, remote, branch, token string) (*workspace, error) {
	dir, err := os.MkdirTemp("", "issuepilot-ws-")
	if err != nil {
		return nil, fmt.Errorf("creating workspace dir: %w", err)
	}

	opts := &git.CloneOptions{
		URL: remote,
	}
	if token != "" {
		opts.Auth = tokenAuth(token)
	}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
		opts.SingleBranch = true
	}
	repo, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("cloning %s: %w", remote, err)
	}

	return &workspace{dir: dir, repo: repo, modified: map[string]struct{}{}}, nil
}

func (w *workspace) cleanup() {
	os.RemoveAll(w.dir)
}

// resolve maps a repository-relative path onto the tree, rejecting escapes.
func (w *workspace) resolve(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	abs := filepath.Join(w.dir, filepath.FromSlash(rel))
	if abs != w.dir && !strings.HasPrefix(abs, w.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the repository", rel)
	}
	return abs, nil
}

func (w *workspace) readFile(rel string) (string, error) {
	abs, err := w.resolve(rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (w *workspace) writeFile(rel, content string) error {
	abs, err := w.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return err
	}
	w.modified[filepath.ToSlash(rel)] = struct{}{}
	return nil
}

// listFiles returns the tree's file paths, sorted, .git excluded.
func (w *workspace) listFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(w.dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking workspace: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// modifiedFiles returns the paths the agent wrote, sorted.
func (w *workspace) modifiedFiles() []string {
	out := make([]string, 0, len(w.modified))
	for f := range w.modified {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// checkoutBranch creates and switches to a new branch at the current HEAD.
func (w *workspace) checkoutBranch(name string) error {
	wt, err := w.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
	}); err != nil {
		return fmt.Errorf("creating branch %s: %w", name, err)
	}
	return nil
}

// commitAll stages the agent's writes and commits them.
func (w *workspace) commitAll(message string) error {
	if len(w.modified) == 0 {
		return fmt.Errorf("nothing to commit")
	}
	wt, err := w.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	for f := range w.modified {
		if _, err := wt.Add(f); err != nil {
			return fmt.Errorf("staging %s: %w", f, err)
		}
	}
	sig := &object.Signature{Name: commitAuthor, Email: commitEmail, When: time.Now()}
	if _, err := wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig}); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// push publishes branch to origin.
func (w *workspace) push(ctx context.Context, branch, token string) error {
	ref := plumbing.NewBranchReferenceName(branch)
	opts := &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(ref + ":" + ref)},
	}
	if token != "" {
		opts.Auth = tokenAuth(token)
	}
	if err := w.repo.PushContext(ctx, opts); err != nil {
		return fmt.Errorf("pushing %s: %w", branch, err)
	}
	return nil
}
