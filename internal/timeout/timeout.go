// Package timeout implements the three-tier preemption hierarchy of
// spec.md §4.10: a global watchdog, per-phase timeouts, and per-interaction
// timeouts, with the budget computed from expectation count and a
// framework-family multiplier. The BudgetConfig shape (base + per-unit
// rate, bounded by a capped multiplier, integer milliseconds) is grounded
// on the teacher's BackoffConfig
// (internal/attractor/engine/backoff.go: InitialDelayMS/BackoffFactor/
// MaxDelayMS, populated by applyDefaults-style sanity clamps).
package timeout

import (
	"context"
	"time"
)

// Tier identifies which of the three autonomous timeout tiers fired.
type Tier string

const (
	TierGlobal      Tier = "global"
	TierPhase       Tier = "phase"
	TierInteraction Tier = "interaction"
)

// BudgetConfig configures the runtime budget formula: base + per-expectation
// * count, bounded by a framework-family multiplier capped at MaxMultiplier.
// All durations are integer milliseconds; floors are enforced by Budget.
type BudgetConfig struct {
	BaseMS            int64
	PerExpectationMS   int64
	FrameworkMultiplier float64
	MaxMultiplier      float64
	FloorMS            int64
	PhaseFloorMS       int64
	InteractionFloorMS int64
}

// DefaultBudgetConfig mirrors the teacher's default-backoff sanity values:
// small, explicit, integer constants rather than derived magic numbers.
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{
		BaseMS:              15_000,
		PerExpectationMS:     2_500,
		FrameworkMultiplier:  1.0,
		MaxMultiplier:        3.0,
		FloorMS:              30_000,
		PhaseFloorMS:         5_000,
		InteractionFloorMS:   2_000,
	}
}

func (c BudgetConfig) sanitize() BudgetConfig {
	if c.BaseMS < 0 {
		c.BaseMS = 0
	}
	if c.PerExpectationMS < 0 {
		c.PerExpectationMS = 0
	}
	if c.FrameworkMultiplier <= 0 {
		c.FrameworkMultiplier = 1.0
	}
	if c.MaxMultiplier <= 0 {
		c.MaxMultiplier = c.FrameworkMultiplier
	}
	if c.FrameworkMultiplier > c.MaxMultiplier {
		c.FrameworkMultiplier = c.MaxMultiplier
	}
	if c.FloorMS < 0 {
		c.FloorMS = 0
	}
	if c.PhaseFloorMS < 0 {
		c.PhaseFloorMS = 0
	}
	if c.InteractionFloorMS < 0 {
		c.InteractionFloorMS = 0
	}
	return c
}

// GlobalBudget computes the whole-run watchdog deadline from the
// expectation count and framework multiplier, with a minimum floor.
func GlobalBudget(cfg BudgetConfig, expectationCount int) time.Duration {
	cfg = cfg.sanitize()
	raw := float64(cfg.BaseMS+cfg.PerExpectationMS*int64(expectationCount)) * cfg.FrameworkMultiplier
	ms := int64(raw)
	if ms < cfg.FloorMS {
		ms = cfg.FloorMS
	}
	return time.Duration(ms) * time.Millisecond
}

// PhaseBudget computes a phase's slice of the global budget: a fixed
// fraction, never below PhaseFloorMS.
func PhaseBudget(cfg BudgetConfig, global time.Duration, fraction float64) time.Duration {
	cfg = cfg.sanitize()
	if fraction <= 0 {
		fraction = 1
	}
	ms := int64(float64(global.Milliseconds()) * fraction)
	if ms < cfg.PhaseFloorMS {
		ms = cfg.PhaseFloorMS
	}
	return time.Duration(ms) * time.Millisecond
}

// InteractionBudget is the per-expectation-attempt ceiling.
func InteractionBudget(cfg BudgetConfig) time.Duration {
	cfg = cfg.sanitize()
	ms := cfg.InteractionFloorMS
	return time.Duration(ms) * time.Millisecond
}

// Manager arms the three independent timeout tiers for one run. Each tier
// is an ordinary context.WithTimeout; higher tiers naturally preempt lower
// ones because a phase/interaction context is always derived from the
// global one (spec.md §4.10: "higher preempts lower").
type Manager struct {
	cfg    BudgetConfig
	global time.Duration
}

// NewManager arms the global watchdog budget for expectationCount promises.
func NewManager(cfg BudgetConfig, expectationCount int) *Manager {
	return &Manager{cfg: cfg, global: GlobalBudget(cfg, expectationCount)}
}

// GlobalBudget reports the armed whole-run budget.
func (m *Manager) GlobalBudget() time.Duration { return m.global }

// WithGlobal derives a context bounded by the whole-run watchdog.
func (m *Manager) WithGlobal(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, m.global)
}

// WithPhase derives a context bounded by a phase timeout, itself bounded by
// the parent (global) context — cancellation of the parent always
// preempts, per the tier hierarchy.
func (m *Manager) WithPhase(parent context.Context, fraction float64) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, PhaseBudget(m.cfg, m.global, fraction))
}

// WithInteraction derives a context bounded by a single interaction
// timeout, itself bounded by the parent (phase) context.
func (m *Manager) WithInteraction(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, InteractionBudget(m.cfg))
}
