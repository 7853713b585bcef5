// Package runner spawns an agent CLI subprocess, feeds its stream-JSON
// output through the protocol decoder and renderer, and returns a
// structured result. Nothing in this package returns an error for the
// common failure cases: a missing executable or a non-zero exit resolves
// to a failed Result so callers never need exception-style handling around
// a multi-minute agent run.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Metroxe/agent-os/internal/protocol"
	"github.com/Metroxe/agent-os/internal/render"
	"github.com/Metroxe/agent-os/internal/telemetry"
)

// Status is the terminal state of one invocation.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

// Options configures a single invocation.
type Options struct {
	// Dir is the child's working directory. Empty means inherit.
	Dir string

	// Stream renders decoded output live; false captures silently.
	Stream bool

	// Automated selects the structured stream-JSON protocol. When false the
	// child inherits the terminal directly and no telemetry is collected.
	Automated bool

	// Verbose enables diagnostic logging on the runner's logger.
	Verbose bool

	// Model is passed through to the backend's --model flag.
	Model string

	// Timeout kills the child when exceeded. 0 disables the timeout.
	Timeout time.Duration

	// MaxPreviewLines caps tool-result previews. 0 uses the renderer default.
	MaxPreviewLines int

	// Color enables styled terminal output when streaming.
	Color bool

	// OllamaHost, when set, is exported to the child as OLLAMA_HOST so a
	// backend serving local models knows where to connect.
	OllamaHost string

	// Telemetry, when set, receives every result event and the measured
	// duration. It outlives this invocation; the caller owns it.
	Telemetry *telemetry.Session
}

// Result is the immutable outcome of one invocation.
type Result struct {
	Status   Status
	Success  bool
	ExitCode int
	Output   string
	Duration time.Duration
	Usage    *protocol.Usage
	CostUSD  float64
	Steps    int
}

// Runner executes agent CLI invocations.
type Runner struct {
	// Log receives diagnostics. The zero value discards them.
	Log zerolog.Logger

	// Stdout and Stderr are the live-render destinations. Defaults are the
	// process's own streams.
	Stdout io.Writer
	Stderr io.Writer
}

// New creates a Runner with a disabled logger.
func New() *Runner {
	return &Runner{Log: zerolog.Nop()}
}

// RunPrompt runs one prompt through a backend, building the argument list
// from the backend's dialect.
func (r *Runner) RunPrompt(ctx context.Context, b Backend, prompt string, opts Options) Result {
	return r.Run(ctx, b.Executable, b.BuildArgs(prompt, opts), opts)
}

// Run spawns command with args and drives it to completion. The state
// machine is NotStarted -> Running -> {Succeeded, Failed, TimedOut}; no
// retries happen at this layer.
func (r *Runner) Run(ctx context.Context, command string, args []string, opts Options) Result {
	start := time.Now()

	runCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	result := r.run(runCtx, command, args, opts)
	result.Duration = time.Since(start)

	if opts.Telemetry != nil {
		opts.Telemetry.AddDuration(result.Duration)
	}

	evt := r.Log.Debug()
	if opts.Verbose {
		evt = r.Log.Info()
	}
	evt.Str("command", command).
		Str("status", string(result.Status)).
		Int("exit_code", result.ExitCode).
		Dur("duration", result.Duration).
		Msg("invocation finished")

	return result
}

func (r *Runner) run(ctx context.Context, command string, args []string, opts Options) Result {
	if !opts.Automated {
		return r.runInteractive(ctx, command, args, opts)
	}

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = opts.Dir
	cmd.Env = childEnv(opts)
	cmd.Stdin = os.Stdin // the agent may still prompt the human through its own UI
	gracefulStop(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return spawnFailure(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return spawnFailure(err)
	}

	if err := cmd.Start(); err != nil {
		return spawnFailure(err)
	}

	var out output
	term := r.terminal(opts)

	// stderr is read concurrently with stdout; chunks interleave into the
	// same accumulation on a best-effort basis only.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.drainStderr(stderr, &out, opts)
	}()

	totals := r.consumeStdout(stdout, &out, term, opts)
	wg.Wait()

	exitCode := 0
	if waitErr := cmd.Wait(); waitErr != nil {
		exitCode = 1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
	}

	return r.finalize(ctx, exitCode, out.String(), totals)
}

// childEnv builds the child's environment. The parent env passes through
// unchanged unless an override needs injecting; a nil return means inherit.
func childEnv(opts Options) []string {
	if opts.OllamaHost == "" {
		return nil
	}
	return append(os.Environ(), "OLLAMA_HOST="+opts.OllamaHost)
}

// termGrace is how long a cancelled child gets between the termination
// signal and the hard kill, so it can flush buffered output.
const termGrace = 5 * time.Second

// gracefulStop replaces the default on-cancel kill with a termination
// signal followed by a delayed kill. The child's remaining output keeps
// draining through the pipes during the grace window.
func gracefulStop(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = termGrace
}

// streamTotals accumulates what the stdout event loop learned about the
// run: token usage, cost, the step count, and whether a result event was
// flagged as an error.
type streamTotals struct {
	usage   *protocol.Usage
	cost    float64
	steps   int
	isError bool
}

// consumeStdout is the single-threaded event loop: every stdout line is
// decoded, folded through the block tracker, rendered, and accumulated.
// Line order within stdout is preserved by the pipe and the line reader,
// which is what makes the tracker's append-in-order assumption hold.
func (r *Runner) consumeStdout(stdout io.Reader, out *output, term *render.Terminal, opts Options) streamTotals {
	tracker := protocol.NewTracker()
	renderer := &render.Renderer{MaxLines: opts.MaxPreviewLines}

	var totals streamTotals

	scanner := bufio.NewScanner(stdout)
	// Allow up to 1MB lines (agents can produce large tool outputs)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		ev := protocol.Decode(line)

		var closed *protocol.Block
		switch ev.Type {
		case protocol.EventBlockStart:
			tracker.Open(ev.Index, ev.BlockKind, ev.ToolName)
		case protocol.EventBlockDelta:
			fragment := ev.Text
			if ev.DeltaKind == protocol.DeltaInputJSON {
				fragment = ev.PartialJSON
			}
			tracker.Append(ev.Index, ev.DeltaKind, fragment)
		case protocol.EventBlockStop:
			closed, _ = tracker.Close(ev.Index)
		case protocol.EventResult:
			totals.steps++
			if ev.IsError {
				totals.isError = true
			}
			if ev.Usage != nil {
				if totals.usage == nil {
					totals.usage = &protocol.Usage{}
				}
				totals.usage.InputTokens += ev.Usage.InputTokens
				totals.usage.OutputTokens += ev.Usage.OutputTokens
				totals.usage.CacheReadInputTokens += ev.Usage.CacheReadInputTokens
				totals.usage.CacheCreationInputTokens += ev.Usage.CacheCreationInputTokens
			}
			totals.cost += ev.CostUSD
			if opts.Telemetry != nil {
				opts.Telemetry.Fold(ev)
			}
		}

		frags := renderer.Render(ev, closed)
		for _, f := range frags {
			out.append(f.Text)
		}
		if opts.Stream && term != nil {
			term.Write(frags)
		}
	}
	if err := scanner.Err(); err != nil {
		r.Log.Debug().Err(err).Msg("stdout read ended")
	}

	return totals
}

// drainStderr captures all stderr bytes into the shared accumulation,
// echoing them when live rendering is on.
func (r *Runner) drainStderr(stderr io.Reader, out *output, opts Options) {
	buf := make([]byte, 32*1024)
	for {
		n, err := stderr.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			out.append(chunk)
			if opts.Stream {
				dst := r.Stderr
				if dst == nil {
					dst = os.Stderr
				}
				_, _ = io.WriteString(dst, chunk)
			}
		}
		if err != nil {
			return
		}
	}
}

// runInteractive hands the terminal to the backend: stdio is inherited and
// no structured output or telemetry is available.
func (r *Runner) runInteractive(ctx context.Context, command string, args []string, opts Options) Result {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = opts.Dir
	cmd.Env = childEnv(opts)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	gracefulStop(cmd)

	if err := cmd.Start(); err != nil {
		return spawnFailure(err)
	}

	exitCode := 0
	if waitErr := cmd.Wait(); waitErr != nil {
		exitCode = 1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
	}

	return r.finalize(ctx, exitCode, "", streamTotals{})
}

// finalize packages the terminal state. A result event flagged as an error
// fails the run even on a zero exit code. A failure that produced no output
// at all gets a synthesized message so silent failures are still diagnosable
// from the captured output.
func (r *Runner) finalize(ctx context.Context, exitCode int, captured string, totals streamTotals) Result {
	status := StatusSucceeded
	if exitCode != 0 || totals.isError {
		status = StatusFailed
	}
	if ctx.Err() == context.DeadlineExceeded {
		status = StatusTimedOut
	}

	if status != StatusSucceeded && strings.TrimSpace(captured) == "" {
		captured = fmt.Sprintf("command exited with code %d and produced no output\n", exitCode)
	}

	return Result{
		Status:   status,
		Success:  status == StatusSucceeded,
		ExitCode: exitCode,
		Output:   captured,
		Usage:    totals.usage,
		CostUSD:  totals.cost,
		Steps:    totals.steps,
	}
}

func (r *Runner) terminal(opts Options) *render.Terminal {
	if !opts.Stream {
		return nil
	}
	dst := r.Stdout
	if dst == nil {
		dst = os.Stdout
	}
	return render.NewTerminal(dst, opts.Color)
}

// spawnFailure resolves an un-startable command as a failed result rather
// than an error, so "CLI not installed" needs no special handling upstream.
func spawnFailure(err error) Result {
	return Result{
		Status:   StatusFailed,
		Success:  false,
		ExitCode: 1,
		Output:   err.Error(),
	}
}

// output is the shared text accumulation. stdout and stderr are appended
// from different goroutines, so writes are locked; within stdout, order is
// the order the child wrote.
type output struct {
	mu sync.Mutex
	b  strings.Builder
}

func (o *output) append(s string) {
	o.mu.Lock()
	o.b.WriteString(s)
	o.mu.Unlock()
}

func (o *output) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.b.String()
}
