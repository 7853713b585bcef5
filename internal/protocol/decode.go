package protocol

import (
	"encoding/json"
	"strings"
	"unicode"
)

// wireEvent covers the union of fields across both backend dialects. Only
// the fields relevant to the discriminated type are read; everything else
// stays at its zero value.
type wireEvent struct {
	Type      string                  `json:"type"`
	Subtype   string                  `json:"subtype"`
	SessionID string                  `json:"session_id"`
	Index     int                     `json:"index"`
	Block     *wireBlock              `json:"content_block"`
	Delta     *wireDelta              `json:"delta"`
	Message   json.RawMessage         `json:"message"` // object (assistant/user) or string (error)
	Text      string                  `json:"text"`
	ToolCall  map[string]wireToolCall `json:"tool_call"`

	DurationMS   int64   `json:"duration_ms"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	Usage        *Usage  `json:"usage"`
	IsError      bool    `json:"is_error"`
	Error        string  `json:"error"`
}

type wireBlock struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Name    string          `json:"name"`
	Input   map[string]any  `json:"input"`
	Content json.RawMessage `json:"content"`
}

type wireDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	Thinking    string `json:"thinking"`
	PartialJSON string `json:"partial_json"`
}

type wireToolCall struct {
	Args   map[string]any `json:"args"`
	Result map[string]any `json:"result"`
}

type wireMessage struct {
	Content []struct {
		Type      string         `json:"type"`
		Text      string         `json:"text"`
		Thinking  string         `json:"thinking"`
		Name      string         `json:"name"`
		Input     map[string]any `json:"input"`
		Content   any            `json:"content"`
		ToolUseID string         `json:"tool_use_id"`
	} `json:"content"`
}

// Decode turns one raw line of backend output into exactly one Event.
// Lines that are not JSON, or JSON with an unknown discriminant, come back
// as EventUnrecognized carrying the raw text; that is the expected path
// for startup banners and schema drift, not an error. Decode never fails.
func Decode(line string) Event {
	var w wireEvent
	if err := json.Unmarshal([]byte(line), &w); err != nil {
		return Event{Type: EventUnrecognized, Raw: line}
	}

	switch w.Type {
	case "system":
		switch w.Subtype {
		case "init":
			return Event{Type: EventSystemInit, Raw: line, SessionID: w.SessionID, Subtype: w.Subtype}
		case "error":
			return Event{Type: EventError, Raw: line, Message: w.Error}
		}
		return Event{Type: EventUnrecognized, Raw: line}

	case "content_block_start":
		ev := Event{Type: EventBlockStart, Raw: line, Index: w.Index}
		if w.Block != nil {
			ev.BlockKind = BlockKind(w.Block.Type)
			ev.ToolName = w.Block.Name
		}
		return ev

	case "content_block_delta":
		ev := Event{Type: EventBlockDelta, Raw: line, Index: w.Index}
		if w.Delta != nil {
			ev.DeltaKind = DeltaKind(w.Delta.Type)
			switch ev.DeltaKind {
			case DeltaText:
				ev.Text = w.Delta.Text
			case DeltaThinking:
				ev.Text = w.Delta.Thinking
			case DeltaInputJSON:
				ev.PartialJSON = w.Delta.PartialJSON
			}
		}
		return ev

	case "content_block_stop":
		return Event{Type: EventBlockStop, Raw: line, Index: w.Index}

	case "thinking":
		return Event{Type: EventThinking, Raw: line, Subtype: w.Subtype, Text: w.Text}

	case "tool_call":
		ev := Event{Type: EventToolCall, Raw: line, Subtype: w.Subtype}
		for key, call := range w.ToolCall {
			ev.ToolName = toolDisplayName(key)
			ev.ToolArgs = call.Args
			ev.ToolResult = call.Result
			break
		}
		return ev

	case "assistant", "user":
		typ := EventAssistant
		if w.Type == "user" {
			typ = EventUser
		}
		return Event{Type: typ, Raw: line, SessionID: w.SessionID, Blocks: decodeMessageBlocks(w.Message)}

	case "result":
		return Event{
			Type:       EventResult,
			Raw:        line,
			Subtype:    w.Subtype,
			SessionID:  w.SessionID,
			DurationMS: w.DurationMS,
			CostUSD:    w.TotalCostUSD,
			Usage:      w.Usage,
			IsError:    w.IsError,
		}

	case "error":
		msg := w.Error
		if msg == "" {
			// Some backends put the text in a string-valued "message" field.
			var s string
			if json.Unmarshal(w.Message, &s) == nil {
				msg = s
			}
		}
		return Event{Type: EventError, Raw: line, Message: msg}
	}

	return Event{Type: EventUnrecognized, Raw: line}
}

// decodeMessageBlocks extracts the ordered content blocks of a full
// assistant/user message. A malformed or absent message yields nil.
func decodeMessageBlocks(raw json.RawMessage) []ContentBlock {
	if len(raw) == 0 {
		return nil
	}
	var msg wireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil
	}
	var blocks []ContentBlock
	for _, c := range msg.Content {
		b := ContentBlock{Kind: BlockKind(c.Type), Text: c.Text, ToolName: c.Name, Input: c.Input}
		if c.Type == "thinking" {
			b.Text = c.Thinking
		}
		if s, ok := c.Content.(string); ok {
			b.Content = s
		}
		blocks = append(blocks, b)
	}
	return blocks
}

// toolDisplayName normalizes a dynamically keyed Cursor tool_call property
// such as "readToolCall" or "strReplaceToolCall" into a display name
// ("Read", "Str Replace"): the known suffix is stripped and the remaining
// camelCase is split into title-cased words.
func toolDisplayName(key string) string {
	name := strings.TrimSuffix(key, "ToolCall")
	if name == "" {
		return key
	}
	var words []string
	start := 0
	for i, r := range name {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, name[start:i])
			start = i
		}
	}
	words = append(words, name[start:])
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
