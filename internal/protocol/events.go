// Package protocol decodes the newline-delimited JSON event streams emitted
// by agent CLI backends (Claude Code, Cursor agent, OpenCode) into a single
// normalized event union, and tracks in-flight content blocks across delta
// events.
package protocol

// EventType identifies the kind of a decoded stream event.
type EventType string

const (
	EventSystemInit   EventType = "system_init"
	EventBlockStart   EventType = "content_block_start"
	EventBlockDelta   EventType = "content_block_delta"
	EventBlockStop    EventType = "content_block_stop"
	EventThinking     EventType = "thinking"
	EventToolCall     EventType = "tool_call"
	EventAssistant    EventType = "assistant"
	EventUser         EventType = "user"
	EventResult       EventType = "result"
	EventError        EventType = "error"
	EventUnrecognized EventType = "unrecognized"
)

// BlockKind identifies the kind of a content block.
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockThinking   BlockKind = "thinking"
	BlockToolUse    BlockKind = "tool_use"
	BlockToolResult BlockKind = "tool_result"
)

// DeltaKind identifies the payload variant of a content_block_delta event.
type DeltaKind string

const (
	DeltaText      DeltaKind = "text_delta"
	DeltaThinking  DeltaKind = "thinking_delta"
	DeltaInputJSON DeltaKind = "input_json_delta"
)

// Subtypes shared by thinking and tool_call events in the Cursor dialect.
const (
	SubtypeDelta     = "delta"
	SubtypeCompleted = "completed"
	SubtypeStarted   = "started"
)

// Usage holds token counts reported by a backend's result event.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
}

// ContentBlock is one block of a full assistant or user message.
type ContentBlock struct {
	Kind     BlockKind
	Text     string
	ToolName string
	Input    map[string]any
	Content  string // tool_result payload text
}

// Event is a decoded stream event. Type discriminates which fields are
// populated; absent wire fields stay at their zero values.
type Event struct {
	Type EventType

	// Raw is the original line, kept verbatim for Unrecognized pass-through
	// and best-effort display of events that fail to render.
	Raw string

	SessionID string
	Subtype   string

	// Block events
	Index     int
	BlockKind BlockKind
	ToolName  string

	// Delta payload
	DeltaKind   DeltaKind
	Text        string
	PartialJSON string

	// Tool call (Cursor dialect, normalized)
	ToolArgs   map[string]any
	ToolResult map[string]any

	// Full-message events
	Blocks []ContentBlock

	// Result fields
	DurationMS int64
	CostUSD    float64
	Usage      *Usage
	IsError    bool

	// Error fields
	Message string
}
