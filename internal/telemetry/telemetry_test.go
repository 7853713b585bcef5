package telemetry

import (
	"testing"
	"time"

	"github.com/Metroxe/agent-os/internal/protocol"
)

func resultEvent() protocol.Event {
	return protocol.Event{
		Type:    protocol.EventResult,
		CostUSD: 0.02,
		Usage:   &protocol.Usage{InputTokens: 100, OutputTokens: 50},
	}
}

func TestFold(t *testing.T) {
	var s Session
	s.Fold(resultEvent())

	if s.InputTokens != 100 || s.OutputTokens != 50 {
		t.Errorf("tokens = %d/%d, want 100/50", s.InputTokens, s.OutputTokens)
	}
	if s.CostUSD != 0.02 {
		t.Errorf("CostUSD = %f, want 0.02", s.CostUSD)
	}
	if s.Steps != 1 {
		t.Errorf("Steps = %d, want 1", s.Steps)
	}

	s.Fold(resultEvent())

	if s.InputTokens != 200 || s.OutputTokens != 100 {
		t.Errorf("tokens = %d/%d, want 200/100", s.InputTokens, s.OutputTokens)
	}
	if s.CostUSD != 0.04 {
		t.Errorf("CostUSD = %f, want 0.04", s.CostUSD)
	}
	if s.Steps != 2 {
		t.Errorf("Steps = %d, want 2", s.Steps)
	}
}

func TestFoldWithoutUsageStillCountsStep(t *testing.T) {
	var s Session
	s.Fold(protocol.Event{Type: protocol.EventResult})

	if s.Steps != 1 {
		t.Errorf("Steps = %d, want 1", s.Steps)
	}
	if s.TotalTokens() != 0 {
		t.Errorf("TotalTokens = %d, want 0", s.TotalTokens())
	}
	if s.CostUSD != 0 {
		t.Errorf("CostUSD = %f, want 0", s.CostUSD)
	}
}

func TestFoldIgnoresNonResultEvents(t *testing.T) {
	var s Session
	s.Fold(protocol.Event{Type: protocol.EventAssistant})
	s.Fold(protocol.Event{Type: protocol.EventError, Message: "x"})

	if s.Steps != 0 {
		t.Errorf("Steps = %d, want 0", s.Steps)
	}
}

func TestFoldCacheTokens(t *testing.T) {
	var s Session
	s.Fold(protocol.Event{
		Type:  protocol.EventResult,
		Usage: &protocol.Usage{CacheReadInputTokens: 30, CacheCreationInputTokens: 12},
	})

	if s.CacheReadInputTokens != 30 || s.CacheCreationInputTokens != 12 {
		t.Errorf("cache tokens = %d/%d, want 30/12",
			s.CacheReadInputTokens, s.CacheCreationInputTokens)
	}
	if s.TotalTokens() != 42 {
		t.Errorf("TotalTokens = %d, want 42", s.TotalTokens())
	}
}

func TestAddDuration(t *testing.T) {
	var s Session
	s.AddDuration(2 * time.Second)
	s.AddDuration(3 * time.Second)

	if s.Duration != 5*time.Second {
		t.Errorf("Duration = %s, want 5s", s.Duration)
	}
}
