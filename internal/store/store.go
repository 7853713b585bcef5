// Package store persists agent run records to a JSONL session log under
// .agentos/sessions/ and provides read-back for the status command. One
// store instance is created per agentos invocation; retry attempts within
// a workflow append to the same session file.
package store

import (
	"time"
)

// Record captures the outcome of one agent invocation.
type Record struct {
	ID           string    `json:"id"`
	Phase        string    `json:"phase"` // "run", "plan", "implement"
	Backend      string    `json:"backend"`
	Model        string    `json:"model,omitempty"`
	Prompt       string    `json:"prompt,omitempty"` // first line of the prompt
	Status       string    `json:"status"`           // "succeeded", "failed", "timed_out"
	ExitCode     int       `json:"exit_code"`
	Duration     float64   `json:"duration_seconds"`
	CostUSD      float64   `json:"cost_usd"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	Steps        int       `json:"steps"`
	Commit       string    `json:"commit,omitempty"` // last commit after the run
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Writer persists run records to durable storage.
type Writer interface {
	Append(rec Record) error
	Close() error
}

// Reader retrieves records from the current session.
type Reader interface {
	Runs() ([]Record, error)
	Summary() (SessionSummary, error)
}

// Store combines Writer and Reader into a single session-scoped handle.
type Store interface {
	Writer
	Reader
}

// SessionSummary summarises one session.
type SessionSummary struct {
	SessionID   string
	StartedAt   time.Time
	Runs        int
	Succeeded   int
	TotalCost   float64
	TotalTokens int
}
