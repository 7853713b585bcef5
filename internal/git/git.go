// Package git provides the git operations the workflow performs between
// agent phases: committing the agent's work, creating work branches, and
// pushing results.
package git

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes git commands in a working directory.
type Runner struct {
	Dir string // working directory for git commands
}

// NewRunner creates a Runner for the given directory.
func NewRunner(dir string) *Runner {
	return &Runner{Dir: dir}
}

// IsRepo reports whether Dir is inside a git working tree.
func (r *Runner) IsRepo() bool {
	out, err := r.run("rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// CurrentBranch returns the name of the current git branch.
func (r *Runner) CurrentBranch() (string, error) {
	out, err := r.run("branch", "--show-current")
	if err != nil {
		return "", fmt.Errorf("git current branch: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// HasUncommittedChanges returns true if the working tree or index has changes.
func (r *Runner) HasUncommittedChanges() (bool, error) {
	out, err := r.run("status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("git status: %w", err)
	}
	return strings.TrimSpace(out) != "", nil
}

// CreateBranch creates the named branch and switches to it. If the branch
// already exists it just switches.
func (r *Runner) CreateBranch(name string) error {
	if _, err := r.run("checkout", "-b", name); err == nil {
		return nil
	}
	if _, err := r.run("checkout", name); err != nil {
		return fmt.Errorf("git create branch %s: %w", name, err)
	}
	return nil
}

// CommitAll stages everything and commits with the given message. It is a
// no-op when there is nothing to commit.
func (r *Runner) CommitAll(message string) error {
	dirty, err := r.HasUncommittedChanges()
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}

	if _, err := r.run("add", "-A"); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	if _, err := r.run("commit", "-m", message); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	return nil
}

// Push pushes the branch to origin. If the branch has no upstream, it sets one.
func (r *Runner) Push(branch string) error {
	_, err := r.run("push", "origin", branch)
	if err == nil {
		return nil
	}
	// Try setting upstream
	if _, upErr := r.run("push", "-u", "origin", branch); upErr != nil {
		return fmt.Errorf("git push %s: %w", branch, upErr)
	}
	return nil
}

// LastCommit returns the short SHA and message of the most recent commit.
func (r *Runner) LastCommit() (string, error) {
	out, err := r.run("log", "-1", "--format=%h %s")
	if err != nil {
		return "", fmt.Errorf("git last commit: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// CreatePR opens a pull request for the current branch using the gh CLI.
// Returns the PR URL.
func (r *Runner) CreatePR(title, body string) (string, error) {
	cmd := exec.Command("gh", "pr", "create", "--title", title, "--body", body)
	cmd.Dir = r.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = err.Error()
		}
		return "", fmt.Errorf("gh pr create: %s", errMsg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// run executes a git command and returns its stdout.
func (r *Runner) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = strings.TrimSpace(stdout.String())
		}
		return "", fmt.Errorf("%s: %w", errMsg, err)
	}
	return stdout.String(), nil
}
