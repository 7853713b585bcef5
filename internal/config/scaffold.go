package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ScaffoldProject creates the full agentos project structure in the given
// directory: agentos.toml, the phase prompt files, and the specs/
// directory. Files that already exist are left untouched. Returns the list
// of created paths.
func ScaffoldProject(dir string) ([]string, error) {
	var created []string

	tomlPath := filepath.Join(dir, "agentos.toml")
	if _, err := os.Stat(tomlPath); os.IsNotExist(err) {
		if _, initErr := InitFile(dir); initErr != nil {
			return created, initErr
		}
		created = append(created, tomlPath)
	}

	for _, prompt := range []struct {
		name, content string
	}{
		{"PROMPT_plan.md", planPromptTemplate},
		{"PROMPT_implement.md", implementPromptTemplate},
	} {
		path := filepath.Join(dir, prompt.name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if writeErr := os.WriteFile(path, []byte(prompt.content), 0644); writeErr != nil {
				return created, fmt.Errorf("scaffold: write %s: %w", path, writeErr)
			}
			created = append(created, path)
		}
	}

	specsDir := filepath.Join(dir, "specs")
	if _, err := os.Stat(specsDir); os.IsNotExist(err) {
		if mkErr := os.MkdirAll(specsDir, 0755); mkErr != nil {
			return created, fmt.Errorf("scaffold: create %s: %w", specsDir, mkErr)
		}
		created = append(created, specsDir)
	}

	// .agentos holds run state and session logs; keep it out of version control.
	const gitignoreEntry = ".agentos/"
	gitignorePath := filepath.Join(dir, ".gitignore")
	existing, err := os.ReadFile(gitignorePath)
	if os.IsNotExist(err) {
		if writeErr := os.WriteFile(gitignorePath, []byte(gitignoreEntry+"\n"), 0644); writeErr != nil {
			return created, fmt.Errorf("scaffold: write %s: %w", gitignorePath, writeErr)
		}
		created = append(created, gitignorePath)
	} else if err != nil {
		return created, fmt.Errorf("scaffold: read %s: %w", gitignorePath, err)
	} else if !strings.Contains(string(existing), gitignoreEntry) {
		content := string(existing)
		if len(content) > 0 && content[len(content)-1] != '\n' {
			content += "\n"
		}
		content += gitignoreEntry + "\n"
		if writeErr := os.WriteFile(gitignorePath, []byte(content), 0644); writeErr != nil {
			return created, fmt.Errorf("scaffold: write %s: %w", gitignorePath, writeErr)
		}
		created = append(created, gitignorePath)
	}

	return created, nil
}

const planPromptTemplate = `Read the specs in ` + "`specs/`" + ` and study the codebase.
Create or update ` + "`IMPLEMENTATION_PLAN.md`" + ` with:

- A summary of current state (what exists, test coverage)
- Remaining work organized by priority (highest-impact items first)
- Key learnings and architectural decisions

Do NOT write application code; this is a planning phase only.
`

const implementPromptTemplate = `Read the specs in ` + "`specs/`" + ` and the implementation plan.
Pick the highest-priority incomplete item from ` + "`IMPLEMENTATION_PLAN.md`" + `.

1. Study the codebase to understand what already exists.
2. Implement the feature fully, with no placeholders or stubs.
3. Run tests and ensure they pass.
4. Update ` + "`IMPLEMENTATION_PLAN.md`" + ` to reflect progress.
`
