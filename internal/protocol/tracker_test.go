package protocol

import "testing"

func TestTrackerAccumulatesInOrder(t *testing.T) {
	tr := NewTracker()
	tr.Open(0, BlockToolUse, "Read")
	tr.Append(0, DeltaInputJSON, "a")
	tr.Append(0, DeltaInputJSON, "b")
	tr.Append(0, DeltaInputJSON, "c")

	b, ok := tr.Close(0)
	if !ok {
		t.Fatal("Close returned no block")
	}
	if b.InputJSON != "abc" {
		t.Errorf("InputJSON = %q, want %q", b.InputJSON, "abc")
	}
	if b.Kind != BlockToolUse || b.ToolName != "Read" {
		t.Errorf("block = %+v, want tool_use Read", b)
	}
}

func TestTrackerTextDeltas(t *testing.T) {
	tr := NewTracker()
	tr.Open(1, BlockText, "")
	tr.Append(1, DeltaText, "hello ")
	tr.Append(1, DeltaText, "world")

	b, ok := tr.Close(1)
	if !ok {
		t.Fatal("Close returned no block")
	}
	if b.Text != "hello world" {
		t.Errorf("Text = %q, want %q", b.Text, "hello world")
	}
}

func TestTrackerAppendUnknownIndexIsNoop(t *testing.T) {
	tr := NewTracker()
	tr.Append(7, DeltaText, "orphan") // must not panic
	if tr.OpenCount() != 0 {
		t.Errorf("OpenCount = %d, want 0", tr.OpenCount())
	}
}

func TestTrackerCloseIsOneShot(t *testing.T) {
	tr := NewTracker()
	tr.Open(0, BlockText, "")

	if _, ok := tr.Close(0); !ok {
		t.Fatal("first Close should return the block")
	}
	if _, ok := tr.Close(0); ok {
		t.Fatal("second Close should return nothing")
	}
}

func TestTrackerIndexReuse(t *testing.T) {
	tr := NewTracker()
	tr.Open(0, BlockText, "")
	tr.Append(0, DeltaText, "first")
	tr.Close(0)

	tr.Open(0, BlockToolUse, "Bash")
	tr.Append(0, DeltaInputJSON, `{"command":"ls"}`)
	b, ok := tr.Close(0)
	if !ok {
		t.Fatal("Close returned no block")
	}
	if b.Text != "" || b.Kind != BlockToolUse {
		t.Errorf("reused index leaked state from previous block: %+v", b)
	}
}

func TestTrackerOpenOverwritesStaleEntry(t *testing.T) {
	tr := NewTracker()
	tr.Open(0, BlockText, "")
	tr.Append(0, DeltaText, "stale")
	tr.Open(0, BlockText, "")

	b, _ := tr.Close(0)
	if b.Text != "" {
		t.Errorf("Text = %q, want empty after re-open", b.Text)
	}
}

func TestBlockInput(t *testing.T) {
	tr := NewTracker()
	tr.Open(0, BlockToolUse, "Read")
	tr.Append(0, DeltaInputJSON, `{"path"`)
	tr.Append(0, DeltaInputJSON, `:"/a.ts"}`)

	b, _ := tr.Close(0)
	input := b.Input()
	if input["path"] != "/a.ts" {
		t.Errorf("Input() = %v, want path /a.ts", input)
	}
}

func TestBlockInputIncomplete(t *testing.T) {
	b := &Block{InputJSON: `{"path"`}
	if got := b.Input(); got != nil {
		t.Errorf("Input() = %v, want nil for incomplete JSON", got)
	}
	empty := &Block{}
	if got := empty.Input(); got != nil {
		t.Errorf("Input() = %v, want nil for empty accumulation", got)
	}
}
