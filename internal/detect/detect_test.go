package detect

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odavlstudio/verax/internal/model"
)

type fakeIndex map[string]bool

func (f fakeIndex) Exists(p string) bool { return f[p] }

func expAt(id string, typ model.ExpectationType, kind string) model.Expectation {
	return model.Expectation{
		ID:      id,
		Type:    typ,
		Promise: model.Promise{Kind: kind, Value: "/x"},
		Source:  model.Source{File: "a.jsx", Line: 1, Column: 1},
	}
}

func TestBrokenNavigationPromiseConfirmedWithStrongEvidence(t *testing.T) {
	exp := expAt("exp_1", model.ExpectationNavigation, "link")
	obs := model.Observation{
		ID: "exp_1", Attempted: true, Observed: true,
		Signals: model.Signals{NavigationChanged: true},
	}
	findings := Run([]model.Expectation{exp}, []model.Observation{obs}, nil)
	require.Len(t, findings, 1)
	require.Equal(t, model.FindingBrokenNavigationPromise, findings[0].Type)
	require.Equal(t, model.StatusConfirmed, findings[0].Status)
}

func TestSilentSubmission(t *testing.T) {
	exp := expAt("exp_1", model.ExpectationForm, "form")
	obs := model.Observation{
		ID: "exp_1", Attempted: true, Observed: true,
		Signals: model.Signals{NetworkStatus: 200},
	}
	findings := Run([]model.Expectation{exp}, []model.Observation{obs}, nil)
	require.Len(t, findings, 1)
	require.Equal(t, model.FindingSilentSubmission, findings[0].Type)
}

func TestDeadInteractionSilentFailureIsFallback(t *testing.T) {
	exp := expAt("exp_1", model.ExpectationNetwork, "fetch")
	obs := model.Observation{ID: "exp_1", Attempted: true, Observed: true}
	findings := Run([]model.Expectation{exp}, []model.Observation{obs}, nil)
	require.Len(t, findings, 1)
	require.Equal(t, model.FindingDeadInteractionSilentFail, findings[0].Type)
}

func TestUnattemptedObservationYieldsNoFinding(t *testing.T) {
	exp := expAt("exp_1", model.ExpectationNavigation, "link")
	obs := model.Observation{ID: "exp_1", Attempted: false}
	findings := Run([]model.Expectation{exp}, []model.Observation{obs}, nil)
	require.Empty(t, findings)
}

func TestFirstMatchingRuleWinsOverLaterRules(t *testing.T) {
	// A navigation expectation with NavigationChanged but no DOM/title
	// change matches rule 1 even though it also has nonzero signals that
	// would otherwise match observed_break further down the table.
	exp := expAt("exp_1", model.ExpectationNavigation, "link")
	obs := model.Observation{
		ID: "exp_1", Attempted: true, Observed: true,
		Signals: model.Signals{NavigationChanged: true, RepeatedAcrossReplays: false},
	}
	findings := Run([]model.Expectation{exp}, []model.Observation{obs}, nil)
	require.Len(t, findings, 1)
	require.Equal(t, model.FindingBrokenNavigationPromise, findings[0].Type)
}

func TestFindingsSortedByStatusPriorityThenType(t *testing.T) {
	confirmed := expAt("exp_1", model.ExpectationNavigation, "link")
	dead := expAt("exp_2", model.ExpectationNavigation, "navigate")
	dead.Source.Line = 2

	obsConfirmed := model.Observation{ID: "exp_1", Attempted: true, Observed: true, Signals: model.Signals{NavigationChanged: true}}
	obsDead := model.Observation{ID: "exp_2", Attempted: true, Observed: true}

	findings := Run([]model.Expectation{dead, confirmed}, []model.Observation{obsDead, obsConfirmed}, nil)
	require.Len(t, findings, 2)
	require.Equal(t, model.StatusConfirmed, findings[0].Status)
	require.Equal(t, model.StatusSuspected, findings[1].Status)
}
