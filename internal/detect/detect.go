// Package detect implements M4 Detect Engine (spec.md §4.5,
// SPEC_FULL.md §4.6): a pure function over (expectations, observations,
// evidence index) emitting at most one Finding per observation via a
// fixed, ordered decision table — the first matching rule wins. The
// ordered-slice-of-predicates shape mirrors the teacher's
// internal/attractor/cond clause evaluator (a small sequential
// predicate language over a signal bag), expressed here as native Go
// predicates over the closed, compile-time-known Signals struct rather
// than a string condition DSL.
package detect

import (
	"fmt"
	"sort"

	"github.com/odavlstudio/verax/internal/idgen"
	"github.com/odavlstudio/verax/internal/model"
)

// EvidenceIndex reports which evidence files actually exist in the
// evidence directory, for evaluating "strong evidence present" (rule 1)
// without the Detect Engine touching the filesystem itself.
type EvidenceIndex interface {
	Exists(relPath string) bool
}

// detectRule is one row of the fixed decision table; the first rule
// whose predicate matches an observation wins (spec.md §4.5 tie-break).
// build also returns Impact, the human-readable description of exactly
// what broke (Finding's own required field, spec.md §3) — each rule is
// the only place that knows which signals were expected and absent, so
// it is the natural owner of that description.
type detectRule struct {
	name      string
	predicate func(exp model.Expectation, obs model.Observation, idx EvidenceIndex) bool
	build     func(exp model.Expectation, obs model.Observation, idx EvidenceIndex) (model.FindingType, model.Severity, model.FindingStatus, string)
}

var rules = []detectRule{
	{
		name: "broken_navigation_promise",
		predicate: func(exp model.Expectation, obs model.Observation, idx EvidenceIndex) bool {
			return exp.Type == model.ExpectationNavigation &&
				obs.Signals.NavigationChanged && !obs.Signals.DOMChanged && !obs.Signals.TitleChanged
		},
		build: func(exp model.Expectation, obs model.Observation, idx EvidenceIndex) (model.FindingType, model.Severity, model.FindingStatus, string) {
			status := model.StatusSuspected
			if hasStrongEvidence(obs, idx) {
				status = model.StatusConfirmed
			}
			impact := fmt.Sprintf("navigation promise %q reported a URL/history change but no DOM or title change followed", exp.Promise.Value)
			return model.FindingBrokenNavigationPromise, model.SeverityHigh, status, impact
		},
	},
	{
		name: "silent_submission",
		predicate: func(exp model.Expectation, obs model.Observation, idx EvidenceIndex) bool {
			return exp.Type == model.ExpectationForm &&
				obs.Signals.NetworkStatus >= 200 && obs.Signals.NetworkStatus < 300 &&
				!obs.Signals.NavigationChanged && !obs.Signals.DOMChanged && !obs.Signals.FeedbackSeen
		},
		build: func(exp model.Expectation, obs model.Observation, idx EvidenceIndex) (model.FindingType, model.Severity, model.FindingStatus, string) {
			impact := fmt.Sprintf("form promise %q received a %d response but produced no navigation, DOM change, or user feedback", exp.Promise.Value, obs.Signals.NetworkStatus)
			return model.FindingSilentSubmission, model.SeverityHigh, model.StatusConfirmed, impact
		},
	},
	{
		name: "render_failure",
		predicate: func(exp model.Expectation, obs model.Observation, idx EvidenceIndex) bool {
			return exp.Type == model.ExpectationState &&
				obs.Signals.StateChanged() && !obs.Signals.DOMChanged && !obs.Signals.ErrorMessageDetected
		},
		build: func(exp model.Expectation, obs model.Observation, idx EvidenceIndex) (model.FindingType, model.Severity, model.FindingStatus, string) {
			impact := fmt.Sprintf("state promise %q changed its underlying state but the DOM never reflected it and no error was shown", exp.Promise.Value)
			return model.FindingRenderFailure, model.SeverityMedium, model.StatusSuspected, impact
		},
	},
	{
		name: "invisible_state_failure",
		predicate: func(exp model.Expectation, obs model.Observation, idx EvidenceIndex) bool {
			return obs.Signals.NetworkActivity &&
				!obs.Signals.NavigationChanged && !obs.Signals.DOMChanged && !obs.Signals.FeedbackSeen
		},
		build: func(exp model.Expectation, obs model.Observation, idx EvidenceIndex) (model.FindingType, model.Severity, model.FindingStatus, string) {
			impact := fmt.Sprintf("promise %q triggered network activity with no visible navigation, DOM change, or feedback", exp.Promise.Value)
			return model.FindingInvisibleStateFailure, model.SeverityMedium, model.StatusSuspected, impact
		},
	},
	{
		name: "stuck_or_phantom_loading",
		predicate: func(exp model.Expectation, obs model.Observation, idx EvidenceIndex) bool {
			return obs.Signals.LoadingIndicatorDetected &&
				!obs.Signals.DOMChanged && !obs.Signals.ErrorMessageDetected && !obs.Signals.NavigationChanged
		},
		build: func(exp model.Expectation, obs model.Observation, idx EvidenceIndex) (model.FindingType, model.Severity, model.FindingStatus, string) {
			impact := fmt.Sprintf("promise %q showed a loading indicator that never resolved into a DOM change or an error", exp.Promise.Value)
			return model.FindingStuckOrPhantomLoading, model.SeverityLow, model.StatusSuspected, impact
		},
	},
	{
		name: "silent_permission_wall",
		predicate: func(exp model.Expectation, obs model.Observation, idx EvidenceIndex) bool {
			return isClickClass(exp) && zeroSignals(obs.Signals) && !obs.Signals.ElementDisabledOrLoading
		},
		build: func(exp model.Expectation, obs model.Observation, idx EvidenceIndex) (model.FindingType, model.Severity, model.FindingStatus, string) {
			impact := fmt.Sprintf("interaction %q produced no signal at all and the element was never marked disabled or loading", exp.Promise.Value)
			return model.FindingSilentPermissionWall, model.SeverityHigh, model.StatusSuspected, impact
		},
	},
	{
		name: "observed_break",
		predicate: func(exp model.Expectation, obs model.Observation, idx EvidenceIndex) bool {
			return !zeroSignals(obs.Signals) && !obs.Signals.RepeatedAcrossReplays
		},
		build: func(exp model.Expectation, obs model.Observation, idx EvidenceIndex) (model.FindingType, model.Severity, model.FindingStatus, string) {
			impact := fmt.Sprintf("promise %q produced a signal pattern that did not repeat across replays", exp.Promise.Value)
			return model.FindingObservedBreak, model.SeverityMedium, model.StatusSuspected, impact
		},
	},
	{
		name: "dead_interaction_silent_failure",
		predicate: func(exp model.Expectation, obs model.Observation, idx EvidenceIndex) bool {
			return obs.Attempted && zeroSignals(obs.Signals)
		},
		build: func(exp model.Expectation, obs model.Observation, idx EvidenceIndex) (model.FindingType, model.Severity, model.FindingStatus, string) {
			impact := fmt.Sprintf("interaction %q was attempted but produced no observable signal whatsoever", exp.Promise.Value)
			return model.FindingDeadInteractionSilentFail, model.SeverityMedium, model.StatusSuspected, impact
		},
	},
}

// hasStrongEvidence is rule 1's "strong evidence present" test: true when
// the observation carries a strong signal category (navigation, DOM,
// feedback, network) or, given an index, when any of its evidence files
// exists.
func hasStrongEvidence(obs model.Observation, idx EvidenceIndex) bool {
	if obs.Signals.NavigationChanged || obs.Signals.DOMChanged || obs.Signals.FeedbackSeen || obs.Signals.NetworkActivity {
		return true
	}
	if idx == nil {
		return false
	}
	for _, f := range obs.EvidenceFiles {
		if idx.Exists(f) {
			return true
		}
	}
	return false
}

func isClickClass(exp model.Expectation) bool {
	switch exp.Promise.Kind {
	case "link", "navigate", "state-setter":
		return true
	default:
		return false
	}
}

func zeroSignals(s model.Signals) bool {
	return !s.NavigationChanged && !s.DOMChanged && !s.FeedbackSeen &&
		!s.NetworkActivity && !s.ConsoleErrors && !s.BlockedWrite &&
		!s.LoadingIndicatorDetected && !s.ErrorMessageDetected &&
		!s.StateChanged() && s.NetworkStatus == 0 && !s.TitleChanged &&
		!s.ElementDisabledOrLoading
}

// statusPriority orders CONFIRMED ahead of SUSPECTED ahead of
// INFORMATIONAL for the final sort (spec.md §4.5: "Ordering is by
// (status priority, finding type, deterministic id)").
var statusPriority = map[model.FindingStatus]int{
	model.StatusConfirmed:     0,
	model.StatusSuspected:     1,
	model.StatusInformational: 2,
}

// Run evaluates the fixed decision table for every (expectation,
// observation) pair, keyed by expectation ID, and returns the resulting
// findings sorted per spec.md §4.5.
func Run(expectations []model.Expectation, observations []model.Observation, idx EvidenceIndex) []model.Finding {
	obsByID := make(map[string]model.Observation, len(observations))
	for _, o := range observations {
		obsByID[o.ID] = o
	}

	var findings []model.Finding
	for ordinal, exp := range expectations {
		obs, ok := obsByID[exp.ID]
		if !ok || !obs.Attempted || obs.Skipped {
			continue
		}
		for _, rule := range rules {
			if !rule.predicate(exp, obs, idx) {
				continue
			}
			ftype, severity, status, impact := rule.build(exp, obs, idx)
			id := idgen.ExpectationID(exp.Source.File, exp.Source.Line, exp.Source.Column, string(ftype), exp.ID)
			findings = append(findings, model.Finding{
				ID:         "fnd_" + id[len("exp_"):],
				Type:       ftype,
				Status:     status,
				Severity:   severity,
				Confidence: confidenceFor(status),
				Promise:    exp.Promise,
				Observed:   obs.Signals,
				Impact:     impact,
				Evidence: model.Evidence{
					EvidenceFiles: obs.EvidenceFiles,
					Signals:       obs.Signals,
				},
				ExpectationOrdinal: ordinal + 1,
			})
			break
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if statusPriority[a.Status] != statusPriority[b.Status] {
			return statusPriority[a.Status] < statusPriority[b.Status]
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.ID < b.ID
	})
	return findings
}

func confidenceFor(status model.FindingStatus) float64 {
	switch status {
	case model.StatusConfirmed:
		return 0.95
	case model.StatusSuspected:
		return 0.6
	default:
		return 0.3
	}
}
