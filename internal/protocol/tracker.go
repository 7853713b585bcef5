package protocol

import "encoding/json"

// Block is the accumulated state of one in-flight content block. Text holds
// concatenated text or thinking deltas; InputJSON holds concatenated
// input_json_delta fragments, which form a parseable JSON document only
// once the block has been closed.
type Block struct {
	Kind      BlockKind
	ToolName  string
	Text      string
	InputJSON string
}

// Input parses the accumulated InputJSON into a map. It returns nil when
// the accumulated fragments do not form a complete JSON object, which is
// the case for any block that has not been closed yet.
func (b *Block) Input() map[string]any {
	if b.InputJSON == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(b.InputJSON), &m); err != nil {
		return nil
	}
	return m
}

// Tracker maintains per-index state for content blocks that are currently
// open. Indices are only unique among concurrently open blocks (a closed
// index may be reused by a later block), so entries are removed on Close.
// A Tracker is owned by a single runner invocation and needs no locking:
// all mutation happens on the one goroutine reading the stdout stream.
type Tracker struct {
	blocks map[int]*Block
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{blocks: make(map[int]*Block)}
}

// Open creates a fresh block at index, overwriting any stale entry there.
func (t *Tracker) Open(index int, kind BlockKind, toolName string) {
	t.blocks[index] = &Block{Kind: kind, ToolName: toolName}
}

// Append concatenates a delta fragment onto the block at index, routing by
// delta kind. Appending to an index that was never opened is a no-op: a
// truncated or reordered upstream stream degrades gracefully instead of
// crashing a multi-minute run.
func (t *Tracker) Append(index int, kind DeltaKind, fragment string) {
	b, ok := t.blocks[index]
	if !ok {
		return
	}
	switch kind {
	case DeltaInputJSON:
		b.InputJSON += fragment
	default:
		b.Text += fragment
	}
}

// Close removes and returns the block at index. The second return is false
// when no block is open there, including on a second Close of the same
// index, since consumption is one-shot.
func (t *Tracker) Close(index int) (*Block, bool) {
	b, ok := t.blocks[index]
	if !ok {
		return nil, false
	}
	delete(t.blocks, index)
	return b, true
}

// OpenCount reports how many blocks are currently open.
func (t *Tracker) OpenCount() int {
	return len(t.blocks)
}
