// Package truth implements T1 Truth Classifier and Exit-Code Mapper
// (spec.md §4.7, SPEC_FULL.md §4.8): a single pure function evaluating
// the classification rules top-down, with the CI-mode override and the
// SUCCESS-with-confirmed-findings invariant applied as a final pass over
// the classifier's own output so every code path that could produce
// SUCCESS is covered, never just the row that set TruthSuccess inline.
package truth

import (
	"sort"

	"github.com/odavlstudio/verax/internal/failuremode"
	"github.com/odavlstudio/verax/internal/model"
)

// ClassificationInput carries every signal the Truth Classifier needs
// (spec.md §4.7).
type ClassificationInput struct {
	ExpectationsTotal    int
	Attempted            int
	Observed             int
	ConfirmedFindings    int
	CoverageRatio        float64
	CriticalSilenceCount int
	HasInfraFailure      bool
	IsIncomplete         bool
	PolicyReasons        []string
	MinCoverage          float64
	CIMode               string
}

// Classify evaluates spec.md §4.7's rules top-down and returns the
// truth state, the sorted incomplete reasons (empty for FINDINGS and
// SUCCESS), and the mapped process exit code.
func Classify(in ClassificationInput) (model.TruthState, []string, model.ExitCode) {
	state, reasons := classifyState(in)
	state = applyCIModeOverride(state, in)
	state, reasons = enforceSuccessInvariant(state, reasons, in)

	switch state {
	case model.TruthIncomplete:
		return state, reasons, model.ExitIncomplete
	case model.TruthFindings:
		return state, nil, model.ExitFindings
	default:
		return model.TruthSuccess, nil, model.ExitSuccess
	}
}

func classifyState(in ClassificationInput) (model.TruthState, []string) {
	if in.HasInfraFailure {
		return model.TruthIncomplete, []string{string(failuremode.ReasonInfraFailure)}
	}

	coverageBelow := in.CoverageRatio < in.MinCoverage
	noExpectations := in.ExpectationsTotal == 0
	partial := in.Attempted < in.ExpectationsTotal

	if in.IsIncomplete || coverageBelow || in.CriticalSilenceCount > 0 || noExpectations || partial {
		reasons := buildIncompleteReasons(in, coverageBelow, partial)
		return model.TruthIncomplete, reasons
	}

	if in.ConfirmedFindings > 0 {
		return model.TruthFindings, nil
	}

	return model.TruthSuccess, nil
}

func buildIncompleteReasons(in ClassificationInput, coverageBelow, partial bool) []string {
	set := map[string]bool{}
	if coverageBelow {
		set[string(failuremode.ReasonCoverageBelowThreshold)] = true
	}
	if partial {
		set[string(failuremode.ReasonPartialAttempts)] = true
	}
	if in.Attempted > 0 && in.Observed < in.Attempted {
		set[string(failuremode.ReasonObservationIncomplete)] = true
	}
	if in.CriticalSilenceCount > 0 {
		set[string(failuremode.ReasonCriticalSilenceDetected)] = true
	}
	for _, r := range in.PolicyReasons {
		set[r] = true
	}
	if len(set) == 0 {
		set[string(failuremode.ReasonUnknownIncompleteness)] = true
	}
	out := make([]string, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// applyCIModeOverride hardens "strict" CI mode: classifyState's
// INCOMPLETE is promoted to FINDINGS (exit 20) rather than left at
// INCOMPLETE (exit 30), since a CI pipeline must not treat an incomplete run as a
// merely-advisory outcome (spec.md §4.7).
func applyCIModeOverride(state model.TruthState, in ClassificationInput) model.TruthState {
	if in.CIMode == "strict" && state == model.TruthIncomplete {
		return model.TruthFindings
	}
	return state
}

// enforceSuccessInvariant is the final pass spec.md's invariant demands:
// SUCCESS must never coexist with a confirmed finding, regardless of
// which code path produced it.
func enforceSuccessInvariant(state model.TruthState, reasons []string, in ClassificationInput) (model.TruthState, []string) {
	if state == model.TruthSuccess && in.ConfirmedFindings > 0 {
		return model.TruthFindings, nil
	}
	return state, reasons
}
