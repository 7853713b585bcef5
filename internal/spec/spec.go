// Package spec manages the feature spec files the agent works from:
// discovery, progress detection, and scaffolding of new specs.
package spec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Status represents the progress state of a spec file.
type Status string

const (
	StatusDone       Status = "done"
	StatusInProgress Status = "in_progress"
	StatusNotStarted Status = "not_started"
)

// Symbol returns the display indicator for this status.
func (s Status) Symbol() string {
	switch s {
	case StatusDone:
		return "✅"
	case StatusInProgress:
		return "🔄"
	default:
		return "⬜"
	}
}

// String returns a human-readable label.
func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusInProgress:
		return "in progress"
	default:
		return "not started"
	}
}

// File represents a discovered spec with its status.
type File struct {
	Name   string // feature name, e.g. "user-auth"
	Path   string // relative path from project root, e.g. "specs/user-auth.md"
	Status Status
}

// List discovers spec files in the project's specs/ directory. Status is
// detected against IMPLEMENTATION_PLAN.md, the plan the agent maintains
// across runs. A missing specs/ directory yields no specs and no error.
func List(dir string) ([]File, error) {
	specsDir := filepath.Join(dir, "specs")
	entries, err := os.ReadDir(specsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read specs directory: %w", err)
	}

	planContent, _ := os.ReadFile(filepath.Join(dir, "IMPLEMENTATION_PLAN.md"))
	plan := string(planContent)

	var specs []File
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".md")
		specs = append(specs, File{
			Name:   name,
			Path:   filepath.Join("specs", entry.Name()),
			Status: detectStatus(entry.Name(), plan),
		})
	}

	return specs, nil
}

// detectStatus determines the spec's progress by looking at where its filename
// appears in the implementation plan content.
//
// Heuristic:
//   - filename appears in a "Remaining Work" section: in_progress
//   - filename appears only in a "Completed Work" section: done
//   - filename does not appear at all: not_started
func detectStatus(filename, plan string) Status {
	if plan == "" {
		return StatusNotStarted
	}

	completedIdx := strings.Index(plan, "## Completed Work")
	remainingIdx := strings.Index(plan, "## Remaining Work")

	inCompleted := false
	inRemaining := false

	if completedIdx >= 0 {
		completedSection := sectionAfter(plan, completedIdx, remainingIdx)
		inCompleted = strings.Contains(completedSection, filename)
	}

	if remainingIdx >= 0 {
		inRemaining = strings.Contains(plan[remainingIdx:], filename)
	}

	switch {
	case inRemaining:
		return StatusInProgress
	case inCompleted:
		return StatusDone
	default:
		// A mention outside the recognized sections still means the agent
		// has touched it, so treat it as in-progress.
		if strings.Contains(plan, filename) {
			return StatusInProgress
		}
		return StatusNotStarted
	}
}

// sectionAfter extracts text starting at fromIdx up to (but not including)
// the next section at nextIdx. If nextIdx <= fromIdx, returns text from
// fromIdx to end.
func sectionAfter(text string, fromIdx, nextIdx int) string {
	if nextIdx > fromIdx {
		return text[fromIdx:nextIdx]
	}
	return text[fromIdx:]
}
