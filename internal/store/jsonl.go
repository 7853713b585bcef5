package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JSONL is a Store backed by an append-only JSONL file. Each line is a
// JSON-serialized Record. The file is synced after every Append so records
// survive a killed process.
//
// Session identity: "<unix-timestamp>-<uuid-prefix>.jsonl". The timestamp
// prefix keeps file names sorting chronologically for retention.
type JSONL struct {
	file      *os.File
	mu        sync.Mutex
	sessionID string
	startedAt time.Time
	runs      []Record
}

// NewJSONL creates the session JSONL log in dir. dir is created with
// os.MkdirAll if it does not exist.
func NewJSONL(dir string) (*JSONL, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("store: mkdir %q: %w", dir, err)
	}
	now := time.Now()
	sessionID := fmt.Sprintf("%d-%s", now.Unix(), uuid.NewString()[:8])
	path := filepath.Join(dir, sessionID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	return &JSONL{
		file:      f,
		sessionID: sessionID,
		startedAt: now,
	}, nil
}

// Append serializes rec as a JSON line, writes it to the file, and syncs.
// A missing ID is filled in. Safe to call from multiple goroutines.
func (j *JSONL) Append(rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Write(data); err != nil {
		return fmt.Errorf("store: write: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("store: sync: %w", err)
	}
	j.runs = append(j.runs, rec)
	return nil
}

// Close closes the underlying file.
func (j *JSONL) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// Runs returns all records appended in this session. The returned slice is
// a copy and safe to mutate.
func (j *JSONL) Runs() ([]Record, error) {
	j.mu.Lock()
	result := make([]Record, len(j.runs))
	copy(result, j.runs)
	j.mu.Unlock()
	return result, nil
}

// Summary returns aggregate metadata for the current session.
func (j *JSONL) Summary() (SessionSummary, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	s := SessionSummary{
		SessionID: j.sessionID,
		StartedAt: j.startedAt,
		Runs:      len(j.runs),
	}
	for _, r := range j.runs {
		if r.Status == "succeeded" {
			s.Succeeded++
		}
		s.TotalCost += r.CostUSD
		s.TotalTokens += r.InputTokens + r.OutputTokens
	}
	return s, nil
}

// ReadSession parses the records of a session file at path. Malformed lines
// are skipped so a partially written trailing line never hides the rest of
// the session.
func ReadSession(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			continue
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("store: read %q: %w", path, err)
	}
	return records, nil
}

// LatestSession returns the path of the most recent session file in dir, or
// an empty string if none exist.
func LatestSession(dir string) (string, error) {
	files, err := sessionFiles(dir)
	if err != nil || len(files) == 0 {
		return "", err
	}
	return filepath.Join(dir, files[len(files)-1]), nil
}

// EnforceRetention removes the oldest session log files in dir, keeping at
// most maxKeep files. If maxKeep is 0, no files are removed. Returns nil if
// dir does not exist or is empty.
func EnforceRetention(dir string, maxKeep int) error {
	if maxKeep <= 0 {
		return nil
	}
	files, err := sessionFiles(dir)
	if err != nil {
		return err
	}

	toDelete := len(files) - maxKeep
	for i := 0; i < toDelete; i++ {
		path := filepath.Join(dir, files[i])
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("store: remove %q: %w", path, err)
		}
	}
	return nil
}

// sessionFiles lists .jsonl files in dir sorted chronologically.
func sessionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read dir %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files) // timestamp-prefixed names sort chronologically
	return files, nil
}
