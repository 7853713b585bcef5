// Package config parses agentos.toml project configuration, with
// environment-variable overrides for the settings that vary per machine.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Config is the top-level agentos.toml configuration.
type Config struct {
	Project       ProjectConfig       `toml:"project"`
	Agent         AgentConfig         `toml:"agent"`
	Run           RunConfig           `toml:"run"`
	Workflow      WorkflowConfig      `toml:"workflow"`
	Git           GitConfig           `toml:"git"`
	Notifications NotificationsConfig `toml:"notifications"`
}

// ProjectConfig identifies the project.
type ProjectConfig struct {
	Name string `toml:"name"`
}

// AgentConfig selects and configures the backend CLI.
type AgentConfig struct {
	Backend        string `toml:"backend" env:"AGENTOS_BACKEND"`
	Model          string `toml:"model" env:"AGENTOS_MODEL"`
	Executable     string `toml:"executable"` // override the backend's default binary
	TimeoutMinutes int    `toml:"timeout_minutes"`
	OllamaHost     string `toml:"ollama_host" env:"OLLAMA_HOST"` // opencode backend only
}

// RunConfig controls output rendering for automated runs.
type RunConfig struct {
	Stream          bool `toml:"stream"`
	Color           bool `toml:"color"`
	MaxPreviewLines int  `toml:"max_preview_lines"`
	Verbose         bool `toml:"verbose"`
}

// WorkflowConfig controls the plan/implement phases.
type WorkflowConfig struct {
	PlanPromptFile      string `toml:"plan_prompt_file"`
	ImplementPromptFile string `toml:"implement_prompt_file"`
	MaxRetries          int    `toml:"max_retries"`
	RetryBackoffSeconds int    `toml:"retry_backoff_seconds"`
}

// GitConfig controls git operations between phases.
type GitConfig struct {
	AutoCommit   bool   `toml:"auto_commit"`
	AutoPush     bool   `toml:"auto_push"`
	CreatePR     bool   `toml:"create_pr"` // open a PR via gh after a completed workflow
	BranchPrefix string `toml:"branch_prefix"`
}

// NotificationsConfig controls webhook/ntfy.sh notifications.
type NotificationsConfig struct {
	URL        string `toml:"url"`
	OnComplete bool   `toml:"on_complete"`
	OnError    bool   `toml:"on_error"`
}

// knownBackends are the accepted agent.backend values.
var knownBackends = map[string]bool{"": true, "claude": true, "cursor": true, "opencode": true}

// Validate checks the configuration for issues that would cause confusing
// runtime failures. It returns all found issues joined together.
func (c *Config) Validate() error {
	var errs []error

	if !knownBackends[c.Agent.Backend] {
		errs = append(errs, fmt.Errorf("agent.backend must be claude, cursor or opencode"))
	}
	if c.Agent.TimeoutMinutes < 0 {
		errs = append(errs, fmt.Errorf("agent.timeout_minutes must be >= 0 (0 = no timeout)"))
	}
	if c.Run.MaxPreviewLines < 0 {
		errs = append(errs, fmt.Errorf("run.max_preview_lines must be >= 0 (0 = default)"))
	}
	if c.Workflow.PlanPromptFile == "" {
		errs = append(errs, fmt.Errorf("workflow.plan_prompt_file must not be empty"))
	}
	if c.Workflow.ImplementPromptFile == "" {
		errs = append(errs, fmt.Errorf("workflow.implement_prompt_file must not be empty"))
	}
	if c.Workflow.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("workflow.max_retries must be >= 0"))
	}
	if c.Workflow.RetryBackoffSeconds < 0 {
		errs = append(errs, fmt.Errorf("workflow.retry_backoff_seconds must be >= 0"))
	}
	if c.Notifications.URL != "" {
		u, parseErr := url.ParseRequestURI(c.Notifications.URL)
		if parseErr != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("notifications.url must be a valid http or https URL"))
		}
	}

	return errors.Join(errs...)
}

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	return Config{
		Agent: AgentConfig{
			Backend: "claude",
		},
		Run: RunConfig{
			Stream:          true,
			Color:           true,
			MaxPreviewLines: 5,
		},
		Workflow: WorkflowConfig{
			PlanPromptFile:      "PROMPT_plan.md",
			ImplementPromptFile: "PROMPT_implement.md",
			MaxRetries:          3,
			RetryBackoffSeconds: 30,
		},
		Git: GitConfig{
			AutoCommit:   true,
			AutoPush:     false,
			BranchPrefix: "agent/",
		},
		Notifications: NotificationsConfig{
			OnComplete: true,
			OnError:    true,
		},
	}
}

// Load reads agentos.toml from the given path. If path is empty, it walks up
// from the current working directory looking for agentos.toml. Environment
// overrides (AGENTOS_BACKEND, AGENTOS_MODEL, OLLAMA_HOST) are applied after
// the file. Returns an error if the file contains unknown keys (likely typos).
func Load(path string) (*Config, error) {
	if path == "" {
		found, err := findConfig()
		if err != nil {
			return nil, err
		}
		path = found
	}

	cfg := Defaults()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config: unknown keys in %s: %s (possible typos?)", path, strings.Join(keys, ", "))
	}

	if err := env.Parse(&cfg.Agent); err != nil {
		return nil, fmt.Errorf("config: environment overrides: %w", err)
	}

	if cfg.Project.Name == "" {
		cfg.Project.Name = DetectProjectName(filepath.Dir(path))
	}

	return &cfg, nil
}

// findConfig walks up from the current directory looking for agentos.toml.
func findConfig() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("config: get working directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, "agentos.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("config: agentos.toml not found (searched up from %s)", dir)
		}
		dir = parent
	}
}

// InitFile writes a default agentos.toml template to the given directory.
func InitFile(dir string) (string, error) {
	path := filepath.Join(dir, "agentos.toml")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config: agentos.toml already exists at %s", path)
	}

	content := `# agentos.toml: agent-os project configuration
# Place this file in the root of your project.

[project]
name = ""

[agent]
backend = "claude"   # claude | cursor | opencode
model = ""           # backend default when empty
executable = ""      # override the backend binary (empty = PATH lookup)
timeout_minutes = 0  # kill a hung agent after this long; 0 = no timeout

[run]
stream = true          # render agent output live
color = true
max_preview_lines = 5  # tool-result preview length
verbose = false

[workflow]
plan_prompt_file = "PROMPT_plan.md"
implement_prompt_file = "PROMPT_implement.md"
max_retries = 3
retry_backoff_seconds = 30

[git]
auto_commit = true
auto_push = false
create_pr = false      # open a PR with gh when the workflow completes
branch_prefix = "agent/"

[notifications]
url = ""           # ntfy.sh topic URL or any HTTP webhook (empty = disabled)
on_complete = true
on_error = true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("config: write %s: %w", path, err)
	}
	return path, nil
}
