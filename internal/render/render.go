// Package render maps decoded protocol events to categorized terminal
// output fragments. It owns the display policy (tool-call announcements,
// tool-result previews, thinking labels, truncation) and leaves color to
// the terminal writer so the fragment stream stays testable as plain text.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Metroxe/agent-os/internal/protocol"
)

// FragmentKind categorizes a rendered fragment. The terminal writer maps
// each kind to a lipgloss style.
type FragmentKind string

const (
	KindPlain      FragmentKind = "plain"
	KindMeta       FragmentKind = "meta"
	KindToolCall   FragmentKind = "tool_call"
	KindToolResult FragmentKind = "tool_result"
	KindThinking   FragmentKind = "thinking"
	KindError      FragmentKind = "error"
	KindDiffAdd    FragmentKind = "diff_add"
	KindDiffDel    FragmentKind = "diff_del"
)

// Fragment is one renderable piece of output. Stream marks text that should
// be flushed unbuffered so incremental deltas feel live.
type Fragment struct {
	Kind   FragmentKind
	Text   string
	Stream bool
}

// DefaultMaxLines is the tool-result preview limit when Renderer.MaxLines
// is unset.
const DefaultMaxLines = 5

// Renderer turns decoded events into fragments. One Renderer serves one
// invocation; it carries the per-thinking-run label state.
type Renderer struct {
	// MaxLines caps tool-result previews. 0 means DefaultMaxLines.
	MaxLines int

	thinkingOpen bool
}

// New creates a Renderer with default settings.
func New() *Renderer {
	return &Renderer{MaxLines: DefaultMaxLines}
}

// Render maps one event (plus the just-closed block for content_block_stop
// events, nil otherwise) to zero or more fragments. A panic while rendering
// a single event is isolated: the event degrades to its raw text so one
// malformed payload never interrupts the stream.
func (r *Renderer) Render(ev protocol.Event, closed *protocol.Block) (frags []Fragment) {
	defer func() {
		if recover() != nil {
			frags = []Fragment{{Kind: KindPlain, Text: ev.Raw + "\n"}}
		}
	}()
	return r.render(ev, closed)
}

func (r *Renderer) render(ev protocol.Event, closed *protocol.Block) []Fragment {
	switch ev.Type {
	case protocol.EventSystemInit:
		id := ev.SessionID
		if len(id) > 8 {
			id = id[:8]
		}
		return []Fragment{{Kind: KindMeta, Text: fmt.Sprintf("Session %s\n", id)}}

	case protocol.EventBlockDelta:
		switch ev.DeltaKind {
		case protocol.DeltaText:
			return []Fragment{{Kind: KindPlain, Text: ev.Text, Stream: true}}
		case protocol.DeltaThinking:
			return r.thinkingDelta(ev.Text)
		}
		// input_json_delta accumulates silently in the tracker.
		return nil

	case protocol.EventBlockStop:
		return r.blockStop(closed)

	case protocol.EventThinking:
		switch ev.Subtype {
		case protocol.SubtypeCompleted:
			return r.thinkingDone()
		default:
			return r.thinkingDelta(ev.Text)
		}

	case protocol.EventToolCall:
		if ev.Subtype != protocol.SubtypeCompleted {
			return nil
		}
		frags := []Fragment{r.announce(ev.ToolName, ev.ToolArgs)}
		frags = append(frags, r.toolResult(ev.ToolName, ev.ToolResult)...)
		return frags

	case protocol.EventAssistant, protocol.EventUser:
		return r.message(ev.Blocks)

	case protocol.EventError:
		return []Fragment{{Kind: KindError, Text: "Error: " + ev.Message + "\n"}}

	case protocol.EventResult:
		// Telemetry owns result events; nothing to display here.
		return nil

	case protocol.EventUnrecognized:
		return []Fragment{{Kind: KindPlain, Text: ev.Raw + "\n"}}
	}
	return nil
}

// blockStop renders the closed block: tool invocations become visible here,
// text and thinking runs get terminated with a newline.
func (r *Renderer) blockStop(closed *protocol.Block) []Fragment {
	if closed == nil {
		return nil
	}
	switch closed.Kind {
	case protocol.BlockToolUse:
		return []Fragment{r.announce(closed.ToolName, closed.Input())}
	case protocol.BlockThinking:
		return r.thinkingDone()
	case protocol.BlockText:
		if closed.Text != "" {
			return []Fragment{{Kind: KindPlain, Text: "\n"}}
		}
	}
	return nil
}

// message renders a full assistant/user message, the batch path for
// backends that do not stream incrementally.
func (r *Renderer) message(blocks []protocol.ContentBlock) []Fragment {
	var frags []Fragment
	for _, b := range blocks {
		switch b.Kind {
		case protocol.BlockText:
			if b.Text != "" {
				frags = append(frags, Fragment{Kind: KindPlain, Text: b.Text + "\n"})
			}
		case protocol.BlockThinking:
			if b.Text != "" {
				frags = append(frags, Fragment{Kind: KindThinking, Text: "[Thinking] " + b.Text + "\n"})
			}
		case protocol.BlockToolUse:
			frags = append(frags, r.announce(b.ToolName, b.Input))
		case protocol.BlockToolResult:
			if b.Content != "" {
				frags = append(frags, r.preview(b.Content, KindToolResult)...)
			}
		}
	}
	return frags
}

// thinkingDelta emits the one-time "[Thinking]" label at the start of each
// thinking run, then streams the text.
func (r *Renderer) thinkingDelta(text string) []Fragment {
	var frags []Fragment
	if !r.thinkingOpen {
		r.thinkingOpen = true
		frags = append(frags, Fragment{Kind: KindThinking, Text: "[Thinking] "})
	}
	frags = append(frags, Fragment{Kind: KindThinking, Text: text, Stream: true})
	return frags
}

// thinkingDone terminates the visual thinking block and resets the label
// flag so the next thinking run gets its own label.
func (r *Renderer) thinkingDone() []Fragment {
	if !r.thinkingOpen {
		return nil
	}
	r.thinkingOpen = false
	return []Fragment{{Kind: KindThinking, Text: "\n"}}
}

// announce renders the one-line tool-call announcement.
func (r *Renderer) announce(tool string, input map[string]any) Fragment {
	preview := argsPreview(tool, input)
	if preview == "" {
		return Fragment{Kind: KindToolCall, Text: fmt.Sprintf("➤ %s\n", tool)}
	}
	return Fragment{Kind: KindToolCall, Text: fmt.Sprintf("➤ %s: %s\n", tool, preview)}
}

// argsPreview summarizes a tool's input for the announcement line.
func argsPreview(tool string, input map[string]any) string {
	switch normalizeTool(tool) {
	case "read", "write", "edit", "strreplace":
		if p := stringField(input, "file_path", "path"); p != "" {
			return p
		}
	case "grep", "search", "codebasesearch":
		pattern := stringField(input, "pattern", "query")
		if pattern == "" {
			break
		}
		pattern = truncate(pattern, 40)
		if dir := stringField(input, "path", "directory"); dir != "" {
			return pattern + " in " + dir
		}
		return pattern
	case "bash", "shell":
		if cmd := stringField(input, "command"); cmd != "" {
			return "Running: " + truncate(cmd, 50)
		}
	}
	return truncate(firstString(input), 40)
}

// normalizeTool folds a display name like "Str Replace" into a lookup key.
func normalizeTool(tool string) string {
	return strings.ToLower(strings.ReplaceAll(tool, " ", ""))
}

// stringField returns the first non-empty string value among the named keys.
func stringField(input map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := input[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// firstString returns a string value from input. JSON objects decode to
// unordered maps, so keys are visited in sorted order to keep the choice
// deterministic.
func firstString(input map[string]any) string {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := input[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// truncate shortens s to at most n runes, appending "..." when cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
