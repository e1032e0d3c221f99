package helpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// TestRepo is a throwaway work tree built with go-git, so tests need no git binary.
type TestRepo struct {
	t    *testing.T
	Repo *git.Repository
	Tree *git.Worktree
	Dir  string
}

// SetupTestGitRepo initializes a temporary git repository for testing.
func SetupTestGitRepo(t *testing.T) *TestRepo {
	t.Helper()

	tempDir := t.TempDir()
	// Resolve symlinked temp roots (macOS /var -> /private/var) so paths compare equal
	// to what git reports.
	if resolved, err := filepath.EvalSymlinks(tempDir); err == nil {
		tempDir = resolved
	}

	repo, err := git.PlainInit(tempDir, false)
	if err != nil {
		t.Fatalf("failed to initialize git repo: %v", err)
	}

	w, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}

	return &TestRepo{t: t, Repo: repo, Tree: w, Dir: tempDir}
}

// WriteFile writes content to a repository-relative path and stages it.
func (r *TestRepo) WriteFile(rel, content string) {
	r.t.Helper()
	full := filepath.Join(r.Dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		r.t.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
		r.t.Fatalf("write %s: %v", rel, err)
	}
	if _, err := r.Tree.Add(rel); err != nil {
		r.t.Fatalf("stage %s: %v", rel, err)
	}
}

// RemoveFile deletes a repository-relative path and stages the removal.
func (r *TestRepo) RemoveFile(rel string) {
	r.t.Helper()
	if _, err := r.Tree.Remove(rel); err != nil {
		r.t.Fatalf("remove %s: %v", rel, err)
	}
}

// Commit records the staged changes and returns the new commit hash.
func (r *TestRepo) Commit(message string) string {
	r.t.Helper()
	hash, err := r.Tree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test Author",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		r.t.Fatalf("commit %q: %v", message, err)
	}
	return hash.String()
}
