// Package eventbus is an ordered, in-memory, append-only event log plus a
// phase heartbeat (spec.md L7). Grounded on the teacher's CXDBSink
// (internal/attractor/engine/cxdb_sink.go), which serializes appends under
// a mutex to "maintain a linear head" — the same ordering guarantee
// spec.md §5 requires ("the Event Log retains insertion order and is the
// sole source of trace output").
package eventbus

import (
	"sync"

	"github.com/odavlstudio/verax/internal/clock"
)

// Kind is the closed set of event kinds the bus carries (spec.md §9:
// "Replace duck-typed event objects with a tagged variant over a closed
// event kind set").
type Kind string

const (
	KindPhaseStarted   Kind = "phase_started"
	KindPhaseCompleted Kind = "phase_completed"
	KindPhaseTimedOut  Kind = "phase_timed_out"
	KindHeartbeat      Kind = "heartbeat"
	KindWarning        Kind = "warning"
	KindExpectation    Kind = "expectation_recorded"
	KindObservation    Kind = "observation_recorded"
	KindFinding        Kind = "finding_recorded"
)

// Event is one immutable, ordered entry. Timestamps derive from the Time
// Provider and are excluded from the determinism digest (spec.md §5).
type Event struct {
	Seq     int            `json:"seq"`
	Kind    Kind           `json:"kind"`
	Phase   string         `json:"phase,omitempty"`
	Message string         `json:"message,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
	AtUnixMS int64         `json:"atUnixMs"`
}

// Bus is an append-only ordered event log. The zero value is an empty
// log ready for use; New returns the same. Safe for concurrent append.
type Bus struct {
	mu     sync.Mutex
	events []Event
}

// New constructs an empty event bus.
func New() *Bus {
	return &Bus{}
}

// Emit appends an event, assigning it the next sequence number. Sequence
// order is the sole ordering guarantee traces.jsonl relies on.
func (b *Bus) Emit(kind Kind, phase, message string, fields map[string]any) Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ev := Event{
		Seq:      len(b.events) + 1,
		Kind:     kind,
		Phase:    phase,
		Message:  message,
		Fields:   fields,
		AtUnixMS: clock.Now().UnixMilli(),
	}
	b.events = append(b.events, ev)
	return ev
}

// Heartbeat emits a KindHeartbeat event for a running phase. Heartbeat
// ticks are elapsed-time derived and are excluded from digests (spec.md
// §5).
func (b *Bus) Heartbeat(phase string) Event {
	return b.Emit(KindHeartbeat, phase, "", nil)
}

// Events returns a snapshot copy of the log in insertion order.
func (b *Bus) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Len reports the number of events recorded so far.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
