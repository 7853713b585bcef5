package runner

import "fmt"

// Backend describes one of the agent CLIs this tool can drive. All three
// speak newline-delimited JSON in automated mode; the decoder normalizes
// their dialects.
type Backend struct {
	// Name is the canonical backend name: "claude", "cursor" or "opencode".
	Name string

	// Executable is the binary to spawn. Defaults per backend; override to
	// point at a wrapper or a pinned install.
	Executable string
}

// Backends constructs the known backends with their default executables.
func Claude() Backend   { return Backend{Name: "claude", Executable: "claude"} }
func Cursor() Backend   { return Backend{Name: "cursor", Executable: "agent"} }
func OpenCode() Backend { return Backend{Name: "opencode", Executable: "opencode"} }

// ByName resolves a backend from its config name.
func ByName(name string) (Backend, error) {
	switch name {
	case "claude", "":
		return Claude(), nil
	case "cursor":
		return Cursor(), nil
	case "opencode":
		return OpenCode(), nil
	}
	return Backend{}, fmt.Errorf("runner: unknown backend %q (want claude, cursor or opencode)", name)
}

// BuildArgs constructs the CLI arguments for one prompt. Automated mode
// selects the stream-JSON output format; interactive mode passes only the
// prompt and leaves the backend in control of the terminal. The prompt is
// always the final positional argument.
func (b Backend) BuildArgs(prompt string, opts Options) []string {
	var args []string
	switch b.Name {
	case "cursor":
		if opts.Automated {
			args = append(args, "--print", "--output-format", "stream-json")
		}
	case "opencode":
		args = append(args, "run")
		if opts.Automated {
			args = append(args, "--print-logs")
		}
	default: // claude
		if opts.Automated {
			args = append(args, "-p", "--output-format", "stream-json", "--verbose")
		}
	}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	return append(args, prompt)
}
