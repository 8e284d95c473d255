// Package observe defines the Observation Engine contract (spec.md
// §4.4, SPEC_FULL.md §4.5): an external collaborator — the real
// headless-browser driver is out of scope — described here purely as
// the Go interface callers (the Orchestrator) and test doubles
// (internal/observe/fakeengine) must satisfy.
package observe

import (
	"context"

	"github.com/odavlstudio/verax/internal/model"
)

// AuthConfig carries the optional authentication material a run was
// invoked with (spec.md §6: --auth-storage|--auth-cookie|--auth-header
// |--auth-mode). A non-empty Mode forces the run's truth state toward
// the experimental post-auth incomplete reason (SPEC_FULL.md §4.7).
type AuthConfig struct {
	Mode        string
	StoragePath string
	Cookie      string
	Header      string
}

// ProgressFunc receives a heartbeat-style progress notification; the
// Orchestrator wires this to the Event Bus (internal/eventbus).
type ProgressFunc func(expectationID string, done, total int)

// Request is the full input to one observation run.
type Request struct {
	Expectations  []model.Expectation
	TargetURL     string
	EvidenceDir   string
	Auth          AuthConfig
	OnProgress    ProgressFunc
}

// Result is the full output of one observation run: exactly one
// observation per input expectation (spec.md §4.4), in input order.
type Result struct {
	Observations   []model.Observation `json:"observations"`
	Ready          bool                `json:"ready"`
	NotReadyReason string              `json:"notReadyReason,omitempty"`
}

// Engine is the Observation Engine contract. Implementations are
// read-only: mutating HTTP methods must be blocked by design (spec.md
// §4.4). A real implementation drives an actual browser; fakeengine
// drives a fixture table for tests.
type Engine interface {
	// Probe performs the runtime readiness check that must succeed
	// before any expectation is exercised (spec.md §4.4: "before any
	// expectation is exercised, a runtime readiness probe is invoked").
	Probe(ctx context.Context, targetURL string) (ready bool, reason string, err error)

	// Observe exercises every expectation in req and returns exactly one
	// Observation per expectation, in input order, respecting the
	// attempted/observed/skipped consistency rule (model.Observation.Validate).
	Observe(ctx context.Context, req Request) (Result, error)
}

// EvidenceFileName builds the fixed evidence file name schema of
// spec.md §4.4: exp_<N>_<kind>_<variant>.<ext>, N 1-based.
func EvidenceFileName(ordinal int, kind, variant, ext string) string {
	return "exp_" + itoa(ordinal) + "_" + kind + "_" + variant + "." + ext
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
