// Package fakeengine is an in-process implementation of observe.Engine
// driven entirely by a fixture table (SPEC_FULL.md §4.5): it exercises
// Detect, the Validator, the Truth Classifier, and the Digest Engine
// end-to-end in tests without a real browser. cmd/verax also wires it in
// as the CLI's engine, since no browser-driven implementation ships in
// this repository.
package fakeengine

import (
	"context"

	"github.com/odavlstudio/verax/internal/model"
	"github.com/odavlstudio/verax/internal/observe"
)

// Fixture is one canned observation outcome keyed by expectation ID.
type Fixture struct {
	Attempted     bool
	Observed      bool
	Skipped       bool
	SkipReason    string
	Signals       model.Signals
	EvidenceFiles []string
}

// Engine replays a fixed fixture table. Expectation IDs absent from the
// table get a default "attempted, observed, zero signals" record —
// the "dead_interaction_silent_failure" shape — rather than an error,
// so a test only needs to populate the fixtures it cares about.
type Engine struct {
	Fixtures map[string]Fixture
	Ready    bool
	NotReadyReason string
}

// New constructs a ready-by-default fake engine with an empty fixture
// table.
func New() *Engine {
	return &Engine{Fixtures: map[string]Fixture{}, Ready: true}
}

func (e *Engine) Probe(ctx context.Context, targetURL string) (bool, string, error) {
	return e.Ready, e.NotReadyReason, nil
}

func (e *Engine) Observe(ctx context.Context, req observe.Request) (observe.Result, error) {
	if !e.Ready {
		return observe.Result{
			Observations:   nil,
			Ready:          false,
			NotReadyReason: e.NotReadyReason,
		}, nil
	}

	observations := make([]model.Observation, 0, len(req.Expectations))
	for _, exp := range req.Expectations {
		fx, ok := e.Fixtures[exp.ID]
		if !ok {
			fx = Fixture{Attempted: true, Observed: true}
		}
		obs := model.Observation{
			ID:            exp.ID,
			Attempted:     fx.Attempted,
			Observed:      fx.Observed,
			Skipped:       fx.Skipped,
			SkipReason:    fx.SkipReason,
			Signals:       fx.Signals,
			EvidenceFiles: fx.EvidenceFiles,
		}
		observations = append(observations, obs)
		if req.OnProgress != nil {
			req.OnProgress(exp.ID, len(observations), len(req.Expectations))
		}
	}

	return observe.Result{Observations: observations, Ready: true}, nil
}

var _ observe.Engine = (*Engine)(nil)
