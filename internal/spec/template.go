package spec

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

//go:embed spec-template.md
var defaultTemplate string

// New creates a new spec file at specs/<name>.md in the given project
// directory and returns the created path. Returns an error if the file
// already exists.
func New(dir, name string) (string, error) {
	specsDir := filepath.Join(dir, "specs")
	if err := os.MkdirAll(specsDir, 0o755); err != nil {
		return "", fmt.Errorf("create specs directory: %w", err)
	}

	path := filepath.Join(specsDir, name+".md")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("spec already exists: %s", path)
	}

	content := renderTemplate(defaultTemplate, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write spec file: %w", err)
	}

	return path, nil
}

// renderTemplate replaces placeholders in the spec template with actual values.
func renderTemplate(tmpl, name string) string {
	result := strings.ReplaceAll(tmpl, "[FEATURE NAME]", toTitle(name))
	result = strings.ReplaceAll(result, "[DATE]", time.Now().Format("2006-01-02"))
	return result
}

// toTitle converts a kebab-case name to Title Case,
// e.g. "user-auth" to "User Auth".
func toTitle(name string) string {
	parts := strings.Split(name, "-")
	for i, p := range parts {
		if len(p) > 0 {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
