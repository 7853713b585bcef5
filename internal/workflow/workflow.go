// Package workflow orchestrates the plan/implement cycle: read a phase
// prompt, drive the agent through it, commit the result, and retry with
// backoff when the agent fails.
package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Metroxe/agent-os/internal/config"
	"github.com/Metroxe/agent-os/internal/runner"
	"github.com/Metroxe/agent-os/internal/store"
	"github.com/Metroxe/agent-os/internal/telemetry"
)

// Phase identifies one workflow phase.
type Phase string

const (
	PhasePlan      Phase = "plan"
	PhaseImplement Phase = "implement"
)

// Invoker runs one agent invocation. *runner.Runner satisfies this.
type Invoker interface {
	RunPrompt(ctx context.Context, b runner.Backend, prompt string, opts runner.Options) runner.Result
}

// GitOps defines the git operations the workflow needs.
// *git.Runner satisfies this interface.
type GitOps interface {
	IsRepo() bool
	CurrentBranch() (string, error)
	CreateBranch(name string) error
	CommitAll(message string) error
	Push(branch string) error
	LastCommit() (string, error)
	CreatePR(title, body string) (string, error)
}

// Notifier receives workflow outcome notifications.
// *notify.Notifier satisfies this interface.
type Notifier interface {
	Complete(message string)
	Error(message string)
}

// Workflow drives the agent through the plan and implement phases.
type Workflow struct {
	Agent     Invoker
	Backend   runner.Backend
	Git       GitOps
	Config    *config.Config
	Store     store.Writer // nil disables run-history recording
	Notify    Notifier     // nil disables notifications
	Log       zerolog.Logger
	Telemetry *telemetry.Session
	Dir       string // project root

	// sleep is swapped in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// Run executes the phases in order. Branch creation happens once up front
// when a branch name is given; each phase commits its own work.
func (w *Workflow) Run(ctx context.Context, phases []Phase, branchName string) error {
	if w.Telemetry == nil {
		w.Telemetry = &telemetry.Session{}
	}

	state := State{StartedAt: time.Now()}

	if w.Git != nil && w.Git.IsRepo() {
		if branchName != "" {
			full := w.Config.Git.BranchPrefix + branchName
			if err := w.Git.CreateBranch(full); err != nil {
				return fmt.Errorf("workflow: create branch: %w", err)
			}
		}
		if branch, err := w.Git.CurrentBranch(); err == nil {
			state.Branch = branch
		}
	}

	for _, phase := range phases {
		state.Phase = string(phase)
		if err := w.runPhase(ctx, phase, &state); err != nil {
			state.FinishedAt = time.Now()
			w.saveState(state)
			w.notifyError(fmt.Sprintf("%s: %s phase failed: %v", w.Config.Project.Name, phase, err))
			return err
		}
	}

	state.Completed = true
	state.FinishedAt = time.Now()
	w.saveState(state)
	w.openPR(branchName)
	w.notifyComplete(fmt.Sprintf("%s: workflow complete (%s)", w.Config.Project.Name, w.Telemetry.Summary()))
	return nil
}

// openPR opens a pull request for a completed workflow when configured. A
// failure here is logged, not fatal: the work is already committed.
func (w *Workflow) openPR(branchName string) {
	if !w.Config.Git.CreatePR || branchName == "" || w.Git == nil || !w.Git.IsRepo() {
		return
	}
	title := fmt.Sprintf("%s: %s", w.Config.Project.Name, branchName)
	body := fmt.Sprintf("Automated agent workflow.\n\n%s", w.Telemetry.Summary())
	url, err := w.Git.CreatePR(title, body)
	if err != nil {
		w.Log.Warn().Err(err).Msg("pr creation failed")
		return
	}
	w.Log.Info().Str("url", url).Msg("pr created")
}

// runPhase runs one phase with retries. Every attempt is recorded to the
// store; state is persisted after each attempt so a kill leaves an accurate
// trail.
func (w *Workflow) runPhase(ctx context.Context, phase Phase, state *State) error {
	prompt, err := w.phasePrompt(phase)
	if err != nil {
		return err
	}

	maxAttempts := w.Config.Workflow.MaxRetries + 1
	backoff := time.Duration(w.Config.Workflow.RetryBackoffSeconds) * time.Second

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		state.Attempt = attempt
		w.Log.Info().Str("phase", string(phase)).Int("attempt", attempt).Msg("phase starting")

		result := w.invoke(ctx, prompt)
		state.TotalCostUSD += result.CostUSD

		w.record(phase, prompt, result)

		if result.Success {
			if commitErr := w.commitPhase(phase, state); commitErr != nil {
				w.Log.Warn().Err(commitErr).Msg("post-phase git failed")
			}
			w.saveState(*state)
			w.Log.Info().Str("phase", string(phase)).
				Dur("duration", result.Duration).
				Float64("cost_usd", result.CostUSD).
				Msg("phase complete")
			return nil
		}

		w.saveState(*state)
		w.Log.Warn().Str("phase", string(phase)).
			Str("status", string(result.Status)).
			Int("exit_code", result.ExitCode).
			Msg("phase attempt failed")

		// A timeout means the agent hung, not that the task is impossible;
		// both are retried the same way.
		if attempt < maxAttempts && backoff > 0 {
			if sleepErr := w.sleepFn()(ctx, backoff); sleepErr != nil {
				return sleepErr
			}
		}
	}

	return fmt.Errorf("workflow: %s phase failed after %d attempts", phase, maxAttempts)
}

// invoke runs one agent invocation with the configured runner options.
func (w *Workflow) invoke(ctx context.Context, prompt string) runner.Result {
	opts := runner.Options{
		Dir:             w.Dir,
		Stream:          w.Config.Run.Stream,
		Automated:       true,
		Verbose:         w.Config.Run.Verbose,
		Model:           w.Config.Agent.Model,
		MaxPreviewLines: w.Config.Run.MaxPreviewLines,
		Color:           w.Config.Run.Color,
		OllamaHost:      w.Config.Agent.OllamaHost,
		Telemetry:       w.Telemetry,
	}
	if w.Config.Agent.TimeoutMinutes > 0 {
		opts.Timeout = time.Duration(w.Config.Agent.TimeoutMinutes) * time.Minute
	}
	return w.Agent.RunPrompt(ctx, w.Backend, prompt, opts)
}

// commitPhase commits the phase's work and pushes when configured.
func (w *Workflow) commitPhase(phase Phase, state *State) error {
	if w.Git == nil || !w.Git.IsRepo() || !w.Config.Git.AutoCommit {
		return nil
	}

	msg := fmt.Sprintf("agent: %s phase", phase)
	if err := w.Git.CommitAll(msg); err != nil {
		return err
	}
	if commit, err := w.Git.LastCommit(); err == nil {
		state.LastCommit = commit
	}

	if w.Config.Git.AutoPush && state.Branch != "" {
		if err := w.Git.Push(state.Branch); err != nil {
			return err
		}
	}
	return nil
}

// record appends one run record to the store, if one is configured.
func (w *Workflow) record(phase Phase, prompt string, result runner.Result) {
	if w.Store == nil {
		return
	}

	rec := store.Record{
		Phase:      string(phase),
		Backend:    w.Backend.Name,
		Model:      w.Config.Agent.Model,
		Prompt:     firstLine(prompt),
		Status:     string(result.Status),
		ExitCode:   result.ExitCode,
		Duration:   result.Duration.Seconds(),
		CostUSD:    result.CostUSD,
		Steps:      result.Steps,
		StartedAt:  time.Now().Add(-result.Duration),
		FinishedAt: time.Now(),
	}
	if result.Usage != nil {
		rec.InputTokens = result.Usage.InputTokens
		rec.OutputTokens = result.Usage.OutputTokens
	}
	if w.Git != nil && w.Git.IsRepo() {
		rec.Commit, _ = w.Git.LastCommit()
	}

	if err := w.Store.Append(rec); err != nil {
		w.Log.Warn().Err(err).Msg("record append failed")
	}
}

// phasePrompt reads the phase's prompt file from the project root.
func (w *Workflow) phasePrompt(phase Phase) (string, error) {
	name := w.Config.Workflow.ImplementPromptFile
	if phase == PhasePlan {
		name = w.Config.Workflow.PlanPromptFile
	}

	data, err := os.ReadFile(filepath.Join(w.Dir, name))
	if err != nil {
		return "", fmt.Errorf("workflow: read prompt %s: %w", name, err)
	}
	return string(data), nil
}

func (w *Workflow) saveState(s State) {
	if err := SaveState(w.Dir, s); err != nil {
		w.Log.Warn().Err(err).Msg("state save failed")
	}
}

func (w *Workflow) notifyComplete(msg string) {
	if w.Notify != nil {
		w.Notify.Complete(msg)
	}
}

func (w *Workflow) notifyError(msg string) {
	if w.Notify != nil {
		w.Notify.Error(msg)
	}
}

func (w *Workflow) sleepFn() func(ctx context.Context, d time.Duration) error {
	if w.sleep != nil {
		return w.sleep
	}
	return sleepCtx
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// firstLine returns the first non-empty line of s, for compact run records.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
