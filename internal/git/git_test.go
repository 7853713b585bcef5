package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// initTestRepo creates a temporary git repo with one commit and returns
// its path. It configures local user.name and user.email so commits work.
func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	cmds := [][]string{
		{"git", "init"},
		{"git", "config", "user.email", "test@test.com"},
		{"git", "config", "user.name", "Test"},
		{"git", "checkout", "-b", "main"},
	}
	for _, args := range cmds {
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("%v failed: %s (%v)", args, out, err)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# test\n"), 0644); err != nil {
		t.Fatal(err)
	}
	for _, args := range [][]string{
		{"git", "add", "."},
		{"git", "commit", "-m", "initial commit"},
	} {
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("%v failed: %s (%v)", args, out, err)
		}
	}

	return dir
}

func TestIsRepo(t *testing.T) {
	dir := initTestRepo(t)
	if !NewRunner(dir).IsRepo() {
		t.Error("expected IsRepo true inside a repo")
	}

	plain := t.TempDir()
	if NewRunner(plain).IsRepo() {
		t.Error("expected IsRepo false outside a repo")
	}
}

func TestCurrentBranch(t *testing.T) {
	dir := initTestRepo(t)
	r := NewRunner(dir)

	branch, err := r.CurrentBranch()
	if err != nil {
		t.Fatal(err)
	}
	if branch != "main" {
		t.Errorf("got %q, want %q", branch, "main")
	}
}

func TestHasUncommittedChanges(t *testing.T) {
	dir := initTestRepo(t)
	r := NewRunner(dir)

	t.Run("clean repo", func(t *testing.T) {
		has, err := r.HasUncommittedChanges()
		if err != nil {
			t.Fatal(err)
		}
		if has {
			t.Error("expected no uncommitted changes")
		}
	})

	t.Run("dirty repo", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("dirty"), 0644); err != nil {
			t.Fatal(err)
		}
		has, err := r.HasUncommittedChanges()
		if err != nil {
			t.Fatal(err)
		}
		if !has {
			t.Error("expected uncommitted changes")
		}
	})
}

func TestCreateBranch(t *testing.T) {
	dir := initTestRepo(t)
	r := NewRunner(dir)

	if err := r.CreateBranch("agent/feature-x"); err != nil {
		t.Fatal(err)
	}
	branch, err := r.CurrentBranch()
	if err != nil {
		t.Fatal(err)
	}
	if branch != "agent/feature-x" {
		t.Errorf("got %q, want agent/feature-x", branch)
	}

	// Creating it again just switches to it.
	if err := r.CreateBranch("agent/feature-x"); err != nil {
		t.Errorf("re-creating existing branch: %v", err)
	}
}

func TestCommitAll(t *testing.T) {
	dir := initTestRepo(t)
	r := NewRunner(dir)

	t.Run("clean tree is a no-op", func(t *testing.T) {
		if err := r.CommitAll("nothing to do"); err != nil {
			t.Fatal(err)
		}
		last, err := r.LastCommit()
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(last, "initial commit") {
			t.Errorf("no-op commit changed history: %q", last)
		}
	})

	t.Run("commits new and modified files", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "work.txt"), []byte("done"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := r.CommitAll("agent work: implement phase"); err != nil {
			t.Fatal(err)
		}

		last, err := r.LastCommit()
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(last, "agent work: implement phase") {
			t.Errorf("got %q, want commit message", last)
		}

		dirty, err := r.HasUncommittedChanges()
		if err != nil {
			t.Fatal(err)
		}
		if dirty {
			t.Error("tree should be clean after CommitAll")
		}
	})
}

func TestLastCommit(t *testing.T) {
	dir := initTestRepo(t)
	r := NewRunner(dir)

	last, err := r.LastCommit()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(last, "initial commit") {
		t.Errorf("expected commit message in output, got %q", last)
	}
}
