package workflow

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Metroxe/agent-os/internal/config"
	"github.com/Metroxe/agent-os/internal/runner"
	"github.com/Metroxe/agent-os/internal/store"
	"github.com/Metroxe/agent-os/internal/telemetry"
)

// mockInvoker is a test double for Invoker. Results are returned in order;
// the last one repeats.
type mockInvoker struct {
	results []runner.Result
	prompts []string
	opts    []runner.Options
	calls   int
}

func (m *mockInvoker) RunPrompt(_ context.Context, _ runner.Backend, prompt string, opts runner.Options) runner.Result {
	m.prompts = append(m.prompts, prompt)
	m.opts = append(m.opts, opts)
	i := m.calls
	if i >= len(m.results) {
		i = len(m.results) - 1
	}
	m.calls++
	return m.results[i]
}

// mockGit is a test double for GitOps.
type mockGit struct {
	isRepo     bool
	branch     string
	lastCommit string

	createBranchCalls []string
	commitCalls       []string
	pushCalls         []string
	prTitles          []string
}

func (m *mockGit) IsRepo() bool                   { return m.isRepo }
func (m *mockGit) CurrentBranch() (string, error) { return m.branch, nil }
func (m *mockGit) CommitAll(msg string) error     { m.commitCalls = append(m.commitCalls, msg); return nil }
func (m *mockGit) Push(branch string) error       { m.pushCalls = append(m.pushCalls, branch); return nil }
func (m *mockGit) LastCommit() (string, error)    { return m.lastCommit, nil }

func (m *mockGit) CreateBranch(name string) error {
	m.createBranchCalls = append(m.createBranchCalls, name)
	m.branch = name
	return nil
}

func (m *mockGit) CreatePR(title, body string) (string, error) {
	m.prTitles = append(m.prTitles, title)
	return "https://example.com/pr/1", nil
}

// mockNotifier records notifications.
type mockNotifier struct {
	completes []string
	errors    []string
}

func (m *mockNotifier) Complete(msg string) { m.completes = append(m.completes, msg) }
func (m *mockNotifier) Error(msg string)    { m.errors = append(m.errors, msg) }

// mockStore records appended run records.
type mockStore struct {
	records []store.Record
}

func (m *mockStore) Append(rec store.Record) error { m.records = append(m.records, rec); return nil }
func (m *mockStore) Close() error                  { return nil }

func succeeded() runner.Result {
	return runner.Result{Status: runner.StatusSucceeded, Success: true, Duration: time.Second, CostUSD: 0.25, Steps: 3}
}

func failed() runner.Result {
	return runner.Result{Status: runner.StatusFailed, ExitCode: 1, Duration: time.Second}
}

func setupWorkflow(t *testing.T, agent Invoker, git GitOps) (*Workflow, *mockNotifier, *mockStore) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Project.Name = "testproj"
	cfg.Workflow.RetryBackoffSeconds = 0

	for _, name := range []string{cfg.Workflow.PlanPromptFile, cfg.Workflow.ImplementPromptFile} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("do the "+name+" work"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	n := &mockNotifier{}
	st := &mockStore{}
	return &Workflow{
		Agent:     agent,
		Backend:   runner.Claude(),
		Git:       git,
		Config:    &cfg,
		Store:     st,
		Notify:    n,
		Log:       zerolog.Nop(),
		Telemetry: &telemetry.Session{},
		Dir:       dir,
		sleep:     func(context.Context, time.Duration) error { return nil },
	}, n, st
}

func TestRunBothPhases(t *testing.T) {
	agent := &mockInvoker{results: []runner.Result{succeeded()}}
	git := &mockGit{isRepo: true, branch: "main", lastCommit: "abc123 agent work"}
	w, n, st := setupWorkflow(t, agent, git)

	err := w.Run(context.Background(), []Phase{PhasePlan, PhaseImplement}, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if agent.calls != 2 {
		t.Errorf("agent called %d times, want 2", agent.calls)
	}
	if !strings.Contains(agent.prompts[0], "PROMPT_plan.md") {
		t.Errorf("first prompt should be the plan prompt, got %q", agent.prompts[0])
	}
	if len(git.commitCalls) != 2 {
		t.Fatalf("got %d commits, want 2: %v", len(git.commitCalls), git.commitCalls)
	}
	if git.commitCalls[0] != "agent: plan phase" {
		t.Errorf("commit message = %q", git.commitCalls[0])
	}
	if len(n.completes) != 1 || len(n.errors) != 0 {
		t.Errorf("notifications: %v / %v", n.completes, n.errors)
	}
	if len(st.records) != 2 {
		t.Errorf("got %d store records, want 2", len(st.records))
	}
	if st.records[0].Phase != "plan" || st.records[0].Status != "succeeded" {
		t.Errorf("record = %+v", st.records[0])
	}
	if st.records[0].Steps != 3 {
		t.Errorf("record Steps = %d, want 3", st.records[0].Steps)
	}
}

func TestRunThreadsAgentOptions(t *testing.T) {
	agent := &mockInvoker{results: []runner.Result{succeeded()}}
	w, _, _ := setupWorkflow(t, agent, &mockGit{})
	w.Config.Agent.Model = "qwen3"
	w.Config.Agent.OllamaHost = "127.0.0.1:11434"

	if err := w.Run(context.Background(), []Phase{PhasePlan}, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	opts := agent.opts[0]
	if !opts.Automated {
		t.Error("workflow invocations must be automated")
	}
	if opts.Model != "qwen3" {
		t.Errorf("Model = %q, want qwen3", opts.Model)
	}
	if opts.OllamaHost != "127.0.0.1:11434" {
		t.Errorf("OllamaHost = %q, want the configured host", opts.OllamaHost)
	}
}

func TestRunRetriesUntilSuccess(t *testing.T) {
	agent := &mockInvoker{results: []runner.Result{failed(), failed(), succeeded()}}
	w, n, st := setupWorkflow(t, agent, &mockGit{})

	err := w.Run(context.Background(), []Phase{PhaseImplement}, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if agent.calls != 3 {
		t.Errorf("agent called %d times, want 3", agent.calls)
	}
	if len(st.records) != 3 {
		t.Errorf("every attempt should be recorded, got %d", len(st.records))
	}
	if len(n.errors) != 0 {
		t.Errorf("eventual success should not notify errors: %v", n.errors)
	}
}

func TestRunFailsAfterMaxRetries(t *testing.T) {
	agent := &mockInvoker{results: []runner.Result{failed()}}
	w, n, _ := setupWorkflow(t, agent, &mockGit{})
	w.Config.Workflow.MaxRetries = 2

	err := w.Run(context.Background(), []Phase{PhaseImplement}, "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("error = %v", err)
	}
	if agent.calls != 3 {
		t.Errorf("agent called %d times, want 3 (1 + 2 retries)", agent.calls)
	}
	if len(n.errors) != 1 {
		t.Errorf("expected one error notification, got %v", n.errors)
	}
}

func TestRunCreatesBranch(t *testing.T) {
	agent := &mockInvoker{results: []runner.Result{succeeded()}}
	git := &mockGit{isRepo: true, branch: "main"}
	w, _, _ := setupWorkflow(t, agent, git)
	w.Config.Git.AutoPush = true

	if err := w.Run(context.Background(), []Phase{PhasePlan}, "user-auth"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(git.createBranchCalls) != 1 || git.createBranchCalls[0] != "agent/user-auth" {
		t.Errorf("branch calls = %v, want [agent/user-auth]", git.createBranchCalls)
	}
	if len(git.pushCalls) != 1 || git.pushCalls[0] != "agent/user-auth" {
		t.Errorf("push calls = %v", git.pushCalls)
	}
}

func TestRunOpensPR(t *testing.T) {
	agent := &mockInvoker{results: []runner.Result{succeeded()}}
	git := &mockGit{isRepo: true, branch: "main"}
	w, _, _ := setupWorkflow(t, agent, git)
	w.Config.Git.CreatePR = true

	if err := w.Run(context.Background(), []Phase{PhasePlan}, "user-auth"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(git.prTitles) != 1 {
		t.Fatalf("pr titles = %v, want 1", git.prTitles)
	}
	if git.prTitles[0] != "testproj: user-auth" {
		t.Errorf("pr title = %q", git.prTitles[0])
	}

	t.Run("no branch means no pr", func(t *testing.T) {
		git2 := &mockGit{isRepo: true, branch: "main"}
		w2, _, _ := setupWorkflow(t, agent, git2)
		w2.Config.Git.CreatePR = true
		if err := w2.Run(context.Background(), []Phase{PhasePlan}, ""); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(git2.prTitles) != 0 {
			t.Errorf("pr should require a work branch, got %v", git2.prTitles)
		}
	})
}

func TestRunNoGitRepo(t *testing.T) {
	agent := &mockInvoker{results: []runner.Result{succeeded()}}
	git := &mockGit{isRepo: false}
	w, _, _ := setupWorkflow(t, agent, git)

	if err := w.Run(context.Background(), []Phase{PhasePlan}, "feature"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(git.createBranchCalls) != 0 || len(git.commitCalls) != 0 {
		t.Error("no git operations expected outside a repo")
	}
}

func TestRunCancelledContext(t *testing.T) {
	agent := &mockInvoker{results: []runner.Result{succeeded()}}
	w, _, _ := setupWorkflow(t, agent, &mockGit{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.Run(ctx, []Phase{PhasePlan}, ""); err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if agent.calls != 0 {
		t.Errorf("agent should not run after cancellation, called %d times", agent.calls)
	}
}

func TestRunPersistsState(t *testing.T) {
	agent := &mockInvoker{results: []runner.Result{succeeded()}}
	git := &mockGit{isRepo: true, branch: "main", lastCommit: "def456 work"}
	w, _, _ := setupWorkflow(t, agent, git)

	if err := w.Run(context.Background(), []Phase{PhasePlan}, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	state, err := LoadState(w.Dir)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if !state.Completed {
		t.Error("state should be completed")
	}
	if state.Branch != "main" {
		t.Errorf("Branch = %q", state.Branch)
	}
	if state.LastCommit != "def456 work" {
		t.Errorf("LastCommit = %q", state.LastCommit)
	}
	if state.TotalCostUSD != 0.25 {
		t.Errorf("TotalCostUSD = %v", state.TotalCostUSD)
	}
}

func TestLoadStateMissingFile(t *testing.T) {
	state, err := LoadState(t.TempDir())
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if state != (State{}) {
		t.Errorf("expected zero state, got %+v", state)
	}
}

func TestTimedOutAttemptIsRetried(t *testing.T) {
	timedOut := runner.Result{Status: runner.StatusTimedOut, ExitCode: -1, Duration: time.Minute}
	agent := &mockInvoker{results: []runner.Result{timedOut, succeeded()}}
	w, _, st := setupWorkflow(t, agent, &mockGit{})

	if err := w.Run(context.Background(), []Phase{PhaseImplement}, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if agent.calls != 2 {
		t.Errorf("agent called %d times, want 2", agent.calls)
	}
	if st.records[0].Status != "timed_out" {
		t.Errorf("first record status = %q, want timed_out", st.records[0].Status)
	}
}
