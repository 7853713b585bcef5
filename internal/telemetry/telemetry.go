// Package telemetry accumulates token, cost, and duration figures across
// sequential agent invocations. One Session is owned by the workflow layer
// and threaded through every runner call of an orchestration run.
package telemetry

import (
	"fmt"
	"time"

	"github.com/Metroxe/agent-os/internal/protocol"
)

// Session is the running total for one orchestration run. Totals only ever
// grow; a fresh accounting scope is a fresh Session.
type Session struct {
	InputTokens              int
	OutputTokens             int
	CacheReadInputTokens     int
	CacheCreationInputTokens int
	CostUSD                  float64
	Duration                 time.Duration
	Steps                    int
}

// Fold adds one result event's usage and cost into the totals. The step
// counter increments on every call: a step that reported no token data
// still counts as a step, keeping per-step averages meaningful. Non-result
// events are ignored.
func (s *Session) Fold(ev protocol.Event) {
	if ev.Type != protocol.EventResult {
		return
	}
	s.Steps++
	if ev.Usage != nil {
		s.InputTokens += ev.Usage.InputTokens
		s.OutputTokens += ev.Usage.OutputTokens
		s.CacheReadInputTokens += ev.Usage.CacheReadInputTokens
		s.CacheCreationInputTokens += ev.Usage.CacheCreationInputTokens
	}
	s.CostUSD += ev.CostUSD
}

// AddDuration sums measured wall-clock time. The runner's own timer is
// authoritative; backend-reported duration_ms is not used because not all
// backends report it reliably.
func (s *Session) AddDuration(d time.Duration) {
	s.Duration += d
}

// TotalTokens returns the sum of all four token counters.
func (s *Session) TotalTokens() int {
	return s.InputTokens + s.OutputTokens + s.CacheReadInputTokens + s.CacheCreationInputTokens
}

// Summary formats a one-line human-readable total.
func (s *Session) Summary() string {
	return fmt.Sprintf("%d steps · %d in / %d out tokens · $%.4f · %s",
		s.Steps, s.InputTokens, s.OutputTokens, s.CostUSD, s.Duration.Round(time.Second))
}
