package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/Metroxe/agent-os/internal/config"
	"github.com/Metroxe/agent-os/internal/git"
	"github.com/Metroxe/agent-os/internal/notify"
	"github.com/Metroxe/agent-os/internal/runner"
	"github.com/Metroxe/agent-os/internal/store"
	"github.com/Metroxe/agent-os/internal/telemetry"
	"github.com/Metroxe/agent-os/internal/workflow"
)

// maxSessionFiles caps how many session logs are kept in .agentos/sessions.
const maxSessionFiles = 20

// executePrompt runs one prompt through the configured backend and prints
// the telemetry summary when done.
func executePrompt(prompt, backendOverride, modelOverride string, interactive, noStream bool) error {
	cfg := loadOrDefault()

	backendName := cfg.Agent.Backend
	if backendOverride != "" {
		backendName = backendOverride
	}
	b, err := runner.ByName(backendName)
	if err != nil {
		return err
	}
	if cfg.Agent.Executable != "" {
		b.Executable = cfg.Agent.Executable
	}

	model := cfg.Agent.Model
	if modelOverride != "" {
		model = modelOverride
	}

	ctx, cancel := signalContext()
	defer cancel()

	session := &telemetry.Session{}
	opts := runner.Options{
		Stream:          !noStream,
		Automated:       !interactive,
		Verbose:         cfg.Run.Verbose,
		Model:           model,
		MaxPreviewLines: cfg.Run.MaxPreviewLines,
		Color:           cfg.Run.Color,
		OllamaHost:      cfg.Agent.OllamaHost,
		Telemetry:       session,
	}
	if cfg.Agent.TimeoutMinutes > 0 {
		opts.Timeout = time.Duration(cfg.Agent.TimeoutMinutes) * time.Minute
	}

	r := runner.New()
	r.Log = newLogger(cfg.Run.Verbose)

	result := r.RunPrompt(ctx, b, prompt, opts)

	if opts.Automated {
		fmt.Println(session.Summary())
	}
	if !result.Success {
		return fmt.Errorf("agent %s (exit code %d)", result.Status, result.ExitCode)
	}
	return nil
}

// executeWorkflow wires up and runs the phase workflow in the current
// project directory.
func executeWorkflow(phases []workflow.Phase, branch string) error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	b, err := runner.ByName(cfg.Agent.Backend)
	if err != nil {
		return err
	}
	if cfg.Agent.Executable != "" {
		b.Executable = cfg.Agent.Executable
	}

	sessionsDir := filepath.Join(workflow.StateDir(dir), "sessions")
	if err := store.EnforceRetention(sessionsDir, maxSessionFiles); err != nil {
		return err
	}
	st, err := store.NewJSONL(sessionsDir)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx, cancel := signalContext()
	defer cancel()

	log := newLogger(cfg.Run.Verbose)
	r := runner.New()
	r.Log = log

	session := &telemetry.Session{}
	w := &workflow.Workflow{
		Agent:     r,
		Backend:   b,
		Git:       git.NewRunner(dir),
		Config:    cfg,
		Store:     st,
		Notify:    notify.New(cfg.Notifications.URL, cfg.Project.Name, cfg.Notifications.OnComplete, cfg.Notifications.OnError),
		Log:       log,
		Telemetry: session,
		Dir:       dir,
	}

	runErr := w.Run(ctx, phases, branch)
	fmt.Println(session.Summary())
	return runErr
}

// showStatus prints the last workflow state and the latest session's totals.
func showStatus() error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	state, err := workflow.LoadState(dir)
	if err != nil {
		return err
	}
	if state.StartedAt.IsZero() {
		fmt.Println("No workflow state found. Run 'agentos work' first.")
		return nil
	}

	fmt.Println("Workflow Status")
	fmt.Println("───────────────")
	if state.Branch != "" {
		fmt.Printf("  %-20s %s\n", "Branch:", state.Branch)
	}
	fmt.Printf("  %-20s %s\n", "Phase:", state.Phase)
	if state.LastCommit != "" {
		fmt.Printf("  %-20s %s\n", "Last commit:", state.LastCommit)
	}
	fmt.Printf("  %-20s $%.2f\n", "Total cost:", state.TotalCostUSD)

	running := !state.StartedAt.IsZero() && state.FinishedAt.IsZero()
	switch {
	case running:
		fmt.Printf("  %-20s %s (running)\n", "Duration:", time.Since(state.StartedAt).Round(time.Second))
	default:
		fmt.Printf("  %-20s %s\n", "Duration:", state.FinishedAt.Sub(state.StartedAt).Round(time.Second))
	}

	switch {
	case running:
		fmt.Printf("  %-20s running\n", "Result:")
	case state.Completed:
		fmt.Printf("  %-20s complete\n", "Result:")
	default:
		fmt.Printf("  %-20s failed (attempt %d)\n", "Result:", state.Attempt)
	}

	printLatestSession(dir)
	return nil
}

// printLatestSession appends the latest session's run list, if one exists.
func printLatestSession(dir string) {
	sessionsDir := filepath.Join(workflow.StateDir(dir), "sessions")
	path, err := store.LatestSession(sessionsDir)
	if err != nil || path == "" {
		return
	}
	records, err := store.ReadSession(path)
	if err != nil || len(records) == 0 {
		return
	}

	fmt.Println()
	fmt.Println("Latest Session")
	fmt.Println("──────────────")
	for _, rec := range records {
		fmt.Printf("  %-10s %-10s %6.1fs  $%.4f  %s\n",
			rec.Phase, rec.Status, rec.Duration, rec.CostUSD, rec.Prompt)
	}
}

// loadOrDefault loads agentos.toml when present and falls back to defaults,
// so 'agentos run' works outside scaffolded projects.
func loadOrDefault() *config.Config {
	cfg, err := config.Load("")
	if err != nil {
		defaults := config.Defaults()
		return &defaults
	}
	return cfg
}

// newLogger returns a console logger on stderr. Verbose enables debug level.
func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(level).
		With().Timestamp().Logger()
}
