package render

import (
	"fmt"
	"strings"
)

// toolResult renders the meaningful payload of a completed tool call,
// dispatching by tool so the human-readable preview never shows the raw
// envelope object.
func (r *Renderer) toolResult(tool string, result map[string]any) []Fragment {
	result = unwrapEnvelope(result)
	if len(result) == 0 {
		return nil
	}
	switch normalizeTool(tool) {
	case "read":
		if content := stringField(result, "content", "text"); content != "" {
			return r.preview(content, KindToolResult)
		}
	case "ls", "listdir", "list":
		if lines := flattenTree(result); len(lines) > 0 {
			return r.previewLines(lines, KindToolResult)
		}
	case "grep", "search":
		if lines := grepMatches(result); len(lines) > 0 {
			return r.previewLines(lines, KindToolResult)
		}
	case "bash", "shell":
		return r.shellResult(result)
	case "edit", "strreplace":
		if frags := r.diff(result); len(frags) > 0 {
			return frags
		}
	case "glob", "globsearch":
		if files := stringList(result, "files", "matches", "paths"); len(files) > 0 {
			return r.previewLines(files, KindToolResult)
		}
	case "write":
		return r.writeResult(result)
	}
	if s := firstString(result); s != "" {
		return r.preview(s, KindToolResult)
	}
	return nil
}

// unwrapEnvelope strips the success/failure wrapper some backends place
// around tool results so envelope keys never leak into the preview.
func unwrapEnvelope(result map[string]any) map[string]any {
	if inner, ok := result["success"].(map[string]any); ok {
		return inner
	}
	if inner, ok := result["failure"].(map[string]any); ok {
		return inner
	}
	return result
}

// shellResult shows stdout verbatim and mentions the exit code only when
// it is non-zero.
func (r *Renderer) shellResult(result map[string]any) []Fragment {
	var frags []Fragment
	if out := stringField(result, "stdout", "output"); out != "" {
		frags = append(frags, r.preview(out, KindToolResult)...)
	}
	if code := intField(result, "exitCode", "exit_code"); code != 0 {
		frags = append(frags, Fragment{Kind: KindError, Text: fmt.Sprintf("exit code %d\n", code)})
	}
	return frags
}

// writeResult confirms a file write with a line/byte summary when available.
func (r *Renderer) writeResult(result map[string]any) []Fragment {
	path := stringField(result, "path", "file_path")
	lines := intField(result, "linesCreated", "lines_written")
	bytes := intField(result, "fileSize", "bytes_written")

	var parts []string
	if lines > 0 {
		parts = append(parts, fmt.Sprintf("%d lines", lines))
	}
	if bytes > 0 {
		parts = append(parts, fmt.Sprintf("%d bytes", bytes))
	}
	text := "Wrote " + path
	if path == "" {
		text = "Wrote file"
	}
	if len(parts) > 0 {
		text += " (" + strings.Join(parts, ", ") + ")"
	}
	return []Fragment{{Kind: KindToolResult, Text: text + "\n"}}
}

// diff renders unified diff hunks with added and removed lines categorized
// for the terminal writer to color.
func (r *Renderer) diff(result map[string]any) []Fragment {
	diffText := stringField(result, "diff", "patch")
	if diffText == "" {
		return nil
	}
	max := r.maxLines()
	var frags []Fragment
	lines := strings.Split(strings.TrimRight(diffText, "\n"), "\n")
	shown := lines
	if len(lines) > max {
		shown = lines[:max]
	}
	for _, line := range shown {
		kind := KindToolResult
		switch {
		case strings.HasPrefix(line, "+"):
			kind = KindDiffAdd
		case strings.HasPrefix(line, "-"):
			kind = KindDiffDel
		}
		frags = append(frags, Fragment{Kind: kind, Text: line + "\n"})
	}
	if n := len(lines) - max; n > 0 {
		frags = append(frags, Fragment{Kind: KindMeta, Text: truncationMarker(n)})
	}
	return frags
}

// grepMatches formats match objects as "file:line: content" tuples.
func grepMatches(result map[string]any) []string {
	raw, ok := result["matches"].([]any)
	if !ok {
		return nil
	}
	var lines []string
	for _, m := range raw {
		match, ok := m.(map[string]any)
		if !ok {
			continue
		}
		file := stringField(match, "file", "path")
		content := stringField(match, "content", "text", "line_text")
		line := intField(match, "line", "lineNumber", "line_number")
		lines = append(lines, fmt.Sprintf("%s:%d: %s", file, line, content))
	}
	return lines
}

// flattenTree turns a nested directory-tree result into a simple indented
// listing. Directories get a trailing slash.
func flattenTree(result map[string]any) []string {
	if files := stringList(result, "files", "entries"); len(files) > 0 {
		return files
	}
	root, ok := result["tree"].(map[string]any)
	if !ok {
		return nil
	}
	var lines []string
	var walk func(node map[string]any, depth int)
	walk = func(node map[string]any, depth int) {
		name := stringField(node, "name", "path")
		if name != "" {
			isDir, _ := node["isDirectory"].(bool)
			if isDir {
				name += "/"
			}
			lines = append(lines, strings.Repeat("  ", depth)+name)
		}
		children, _ := node["children"].([]any)
		for _, c := range children {
			if child, ok := c.(map[string]any); ok {
				walk(child, depth+1)
			}
		}
	}
	walk(root, 0)
	return lines
}

// preview splits text into lines and renders at most MaxLines of them.
func (r *Renderer) preview(text string, kind FragmentKind) []Fragment {
	return r.previewLines(strings.Split(strings.TrimRight(text, "\n"), "\n"), kind)
}

// previewLines renders at most MaxLines lines plus a truncation marker.
func (r *Renderer) previewLines(lines []string, kind FragmentKind) []Fragment {
	max := r.maxLines()
	shown := lines
	if len(lines) > max {
		shown = lines[:max]
	}
	frags := []Fragment{{Kind: kind, Text: strings.Join(shown, "\n") + "\n"}}
	if n := len(lines) - max; n > 0 {
		frags = append(frags, Fragment{Kind: KindMeta, Text: truncationMarker(n)})
	}
	return frags
}

func (r *Renderer) maxLines() int {
	if r.MaxLines > 0 {
		return r.MaxLines
	}
	return DefaultMaxLines
}

func truncationMarker(n int) string {
	if n == 1 {
		return "... (1 more line)\n"
	}
	return fmt.Sprintf("... (%d more lines)\n", n)
}

// intField returns the first numeric value among the named keys. JSON
// numbers decode as float64.
func intField(input map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := input[k].(type) {
		case float64:
			return int(v)
		case int:
			return v
		}
	}
	return 0
}

// stringList extracts a list of strings from the first matching key.
func stringList(input map[string]any, keys ...string) []string {
	for _, k := range keys {
		raw, ok := input[k].([]any)
		if !ok {
			continue
		}
		var out []string
		for _, v := range raw {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}
