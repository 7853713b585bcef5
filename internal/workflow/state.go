package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State tracks workflow progress, persisted to .agentos/state.json so an
// interrupted workflow can be inspected and resumed.
type State struct {
	Phase        string    `json:"phase"` // "plan" or "implement"
	Attempt      int       `json:"attempt"`
	TotalCostUSD float64   `json:"total_cost_usd"`
	LastCommit   string    `json:"last_commit"`
	Branch       string    `json:"branch"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Completed    bool      `json:"completed"`
}

const stateFileName = "state.json"

// stateDirName is the directory that holds workflow state and session logs.
const stateDirName = ".agentos"

// StateDir returns the state directory path for a project directory.
func StateDir(dir string) string {
	return filepath.Join(dir, stateDirName)
}

// LoadState reads the workflow state from .agentos/state.json in dir.
// Returns a zero State (not an error) if the file does not exist.
func LoadState(dir string) (State, error) {
	path := filepath.Join(dir, stateDirName, stateFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("workflow: read state: %w", err)
	}

	var s State
	if jsonErr := json.Unmarshal(data, &s); jsonErr != nil {
		return State{}, fmt.Errorf("workflow: parse state: %w", jsonErr)
	}
	return s, nil
}

// SaveState writes the workflow state to .agentos/state.json in dir,
// creating the .agentos directory if needed. Uses a write-then-rename
// pattern so concurrent readers never observe a partially-written file.
func SaveState(dir string, s State) error {
	stateDir := filepath.Join(dir, stateDirName)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("workflow: create state dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("workflow: marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(stateDir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("workflow: create temp state: %w", err)
	}
	if _, writeErr := tmp.Write(data); writeErr != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("workflow: write state: %w", writeErr)
	}
	if closeErr := tmp.Close(); closeErr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("workflow: close state: %w", closeErr)
	}
	path := filepath.Join(stateDir, stateFileName)
	if renameErr := os.Rename(tmp.Name(), path); renameErr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("workflow: finalize state: %w", renameErr)
	}
	return nil
}
