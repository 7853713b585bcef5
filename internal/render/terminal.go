package render

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Fragment kind styles. Plain text stays unstyled.
var (
	metaStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	toolCallStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B9BD5")).Bold(true)
	resultStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	thinkingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	diffAddStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6BCB77"))
	diffDelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
)

// Terminal writes fragments to an output stream, applying lipgloss styles
// per fragment kind when Color is enabled. Writes go straight through with
// no buffering of its own, so streamed deltas appear as they arrive.
type Terminal struct {
	Out   io.Writer
	Color bool
}

// NewTerminal creates a Terminal writing to out.
func NewTerminal(out io.Writer, color bool) *Terminal {
	return &Terminal{Out: out, Color: color}
}

// Write renders each fragment to the output stream. Write errors are
// discarded: losing display output must not interrupt the agent run.
func (t *Terminal) Write(frags []Fragment) {
	for _, f := range frags {
		_, _ = io.WriteString(t.Out, t.styled(f))
	}
}

// styled applies the style for the fragment's kind. Styling is applied per
// line so multi-line fragments don't bleed color across newlines.
func (t *Terminal) styled(f Fragment) string {
	if !t.Color || f.Kind == KindPlain {
		return f.Text
	}
	style, ok := styleFor(f.Kind)
	if !ok {
		return f.Text
	}
	// Streamed fragments are mid-line; style them as-is without touching
	// the trailing newline handling below.
	if f.Stream {
		return style.Render(f.Text)
	}
	text, hadNewline := strings.CutSuffix(f.Text, "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = style.Render(line)
	}
	out := strings.Join(lines, "\n")
	if hadNewline {
		out += "\n"
	}
	return out
}

func styleFor(kind FragmentKind) (lipgloss.Style, bool) {
	switch kind {
	case KindMeta:
		return metaStyle, true
	case KindToolCall:
		return toolCallStyle, true
	case KindToolResult:
		return resultStyle, true
	case KindThinking:
		return thinkingStyle, true
	case KindError:
		return errorStyle, true
	case KindDiffAdd:
		return diffAddStyle, true
	case KindDiffDel:
		return diffDelStyle, true
	}
	return lipgloss.Style{}, false
}
