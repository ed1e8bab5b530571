/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package claudeexec

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/go-cmp/cmp"
)

// initTestRepo creates a local repository with one commit on main.
func initTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}

	for path, content := range map[string]string{
		"README.md":   "# test repo\n",
		"pkg/util.go": "package pkg\n",
	} {
		abs := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		if _, err := wt.Add(path); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	if _, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test",
			Email: "test@example.com",
			When:  time.Now(),
		},
	}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("master"))); err != nil {
		t.Fatalf("SetReference: %v", err)
	}

	return dir
}

func cloneTestWorkspace(t *testing.T) *workspace {
	t.Helper()

	repoDir := initTestRepo(t)
	ws, err := cloneWorkspace(context.Background(), repoDir, "", "")
	if err != nil {
		t.Fatalf("cloneWorkspace: %v", err)
	}
	t.Cleanup(ws.cleanup)
	return ws
}

func TestWorkspaceListFiles(t *testing.T) {
	ws := cloneTestWorkspace(t)

	files, err := ws.listFiles()
	if err != nil {
		t.Fatalf("listFiles: %v", err)
	}

	want := []string{"README.md", "pkg/util.go"}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Errorf("listFiles mismatch (-want +got):\n%s", diff)
	}
}

func TestWorkspaceReadWrite(t *testing.T) {
	ws := cloneTestWorkspace(t)

	got, err := ws.readFile("README.md")
	if err != nil {
		t.Fatalf("readFile: %v", err)
	}
	if got != "# test repo\n" {
		t.Errorf("readFile = %q, want %q", got, "# test repo\n")
	}

	if err := ws.writeFile("pkg/new.go", "package pkg\n\nvar X = 1\n"); err != nil {
		t.Fatalf("writeFile: %v", err)
	}
	if err := ws.writeFile("README.md", "# updated\n"); err != nil {
		t.Fatalf("writeFile overwrite: %v", err)
	}

	got, err = ws.readFile("pkg/new.go")
	if err != nil {
		t.Fatalf("readFile after write: %v", err)
	}
	if got != "package pkg\n\nvar X = 1\n" {
		t.Errorf("readFile after write = %q", got)
	}

	want := []string{"README.md", "pkg/new.go"}
	if diff := cmp.Diff(want, ws.modifiedFiles()); diff != "" {
		t.Errorf("modifiedFiles mismatch (-want +got):\n%s", diff)
	}
}

func TestWorkspacePathEscape(t *testing.T) {
	ws := cloneTestWorkspace(t)

	for _, path := range []string{
		"",
		"../outside.txt",
		"../../etc/passwd",
		"pkg/../../escape.go",
	} {
		if _, err := ws.readFile(path); err == nil {
			t.Errorf("readFile(%q) succeeded, want error", path)
		}
		if err := ws.writeFile(path, "x"); err == nil {
			t.Errorf("writeFile(%q) succeeded, want error", path)
		}
	}

	// Dotted segments that stay inside the tree are fine.
	if _, err := ws.readFile("pkg/../README.md"); err != nil {
		t.Errorf("readFile(pkg/../README.md): %v", err)
	}
}

func TestWorkspaceCommitAndPush(t *testing.T) {
	ctx := context.Background()
	repoDir := initTestRepo(t)

	ws, err := cloneWorkspace(ctx, repoDir, "", "")
	if err != nil {
		t.Fatalf("cloneWorkspace: %v", err)
	}
	t.Cleanup(ws.cleanup)

	if err := ws.checkoutBranch("issuepilot/ctx-0123456789abcdef"); err != nil {
		t.Fatalf("checkoutBranch: %v", err)
	}

	if err := ws.commitAll("no changes"); err == nil {
		t.Fatal("commitAll with no writes succeeded, want error")
	}

	if err := ws.writeFile("fix.txt", "fixed\n"); err != nil {
		t.Fatalf("writeFile: %v", err)
	}
	if err := ws.commitAll("Address example/repo#7\n\nApplied the fix."); err != nil {
		t.Fatalf("commitAll: %v", err)
	}

	if err := ws.push(ctx, "issuepilot/ctx-0123456789abcdef", ""); err != nil {
		t.Fatalf("push: %v", err)
	}

	// The branch must now exist in the origin repository.
	origin, err := git.PlainOpen(repoDir)
	if err != nil {
		t.Fatalf("PlainOpen origin: %v", err)
	}
	ref, err := origin.Reference(plumbing.NewBranchReferenceName("issuepilot/ctx-0123456789abcdef"), true)
	if err != nil {
		t.Fatalf("origin branch lookup: %v", err)
	}

	commit, err := origin.CommitObject(ref.Hash())
	if err != nil {
		t.Fatalf("CommitObject: %v", err)
	}
	if commit.Author.Name != commitAuthor {
		t.Errorf("commit author = %q, want %q", commit.Author.Name, commitAuthor)
	}
}
