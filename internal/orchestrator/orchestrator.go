// Package orchestrator implements O1 Run Orchestrator (spec.md §4.1,
// SPEC_FULL.md "O1"): the single driver that sequences Discovery, Learn,
// Observe, Detect, the Constitutional Validator, the Truth Classifier,
// and the Artifact Writer into one run, through the fixed state machine
// INIT → RUNNING → FINALIZING → FINAL. The Alignment Preflight
// (internal/preflight) is not invoked by Run.
// The phase-sequencing and status-write-on-every-transition shape
// mirrors the teacher's RunWithConfig driver
// (internal/attractor/engine/run_with_config.go), which sequences a
// fixed pipeline of named stages and persists state after each one.
package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/odavlstudio/verax/internal/artifact"
	"github.com/odavlstudio/verax/internal/detect"
	"github.com/odavlstudio/verax/internal/digest"
	"github.com/odavlstudio/verax/internal/discovery"
	"github.com/odavlstudio/verax/internal/eventbus"
	"github.com/odavlstudio/verax/internal/failuremode"
	"github.com/odavlstudio/verax/internal/idgen"
	"github.com/odavlstudio/verax/internal/learn"
	"github.com/odavlstudio/verax/internal/model"
	"github.com/odavlstudio/verax/internal/observe"
	"github.com/odavlstudio/verax/internal/policy"
	"github.com/odavlstudio/verax/internal/timeout"
	"github.com/odavlstudio/verax/internal/truth"
	"github.com/odavlstudio/verax/internal/validator"
)

// RunState is the closed state-machine vocabulary of spec.md §3/§4.1.
type RunState string

const (
	StateInit       RunState = "INIT"
	StateRunning    RunState = "RUNNING"
	StateFinalizing RunState = "FINALIZING"
	StateFinal      RunState = "FINAL"
)

// Invocation is the public contract input spec.md §4.1 names.
type Invocation struct {
	URL           string
	SrcRoot       string
	OutRoot       string
	Policy        policy.Policy
	Auth          observe.AuthConfig
	Deterministic bool
	DryLearn      bool
}

// Outcome is the orchestrator's public contract output, matching the
// RESULT/REASON/ACTION JSON object of spec.md §6.
type Outcome struct {
	Command  string           `json:"command"`
	ExitCode model.ExitCode   `json:"exitCode"`
	Reason   string           `json:"reason"`
	Action   string           `json:"action"`
	Truth    model.TruthState `json:"truth"`
	Digest   string           `json:"digest"`
	RunID    string           `json:"runId"`
	URL      string           `json:"url"`

	// ScanID is not part of spec.md §6's contract fields, but callers
	// (e.g. cmd/verax's --explain-expectations) need it to locate the
	// run directory that was just written under <out>/runs/<scanId>/<runId>/.
	ScanID string `json:"-"`
}

// usageError signals an immediate spec.md §6 USAGE_ERROR, short-circuiting
// the rest of Run.
type usageError struct{ reason failuremode.Reason }

func (e usageError) Error() string { return string(e.reason) }

// Run drives one full scan per the Invocation contract (spec.md §4.1).
func Run(ctx context.Context, inv Invocation, eng observe.Engine) (Outcome, error) {
	bus := eventbus.New()

	if err := validateInvocation(inv); err != nil {
		var ue usageError
		if asUsageError(err, &ue) {
			return usageOutcome(inv, ue.reason), nil
		}
		return Outcome{}, err
	}

	scanID := idgen.ScanID(inv.URL, inv.SrcRoot, profileName(inv.Policy))
	runID := idgen.RunID(scanID, inv.Deterministic)

	scanDir := filepath.Join(inv.OutRoot, "runs", scanID)
	runDir := filepath.Join(scanDir, runID)
	w, err := artifact.New(runDir)
	if err != nil {
		return Outcome{}, err
	}

	state := StateInit
	transition := func(next RunState) error {
		state = next
		return w.WriteJSON(artifact.NameRunStatus, map[string]any{"state": string(state)})
	}

	if err := w.WriteStarted(); err != nil {
		return Outcome{}, err
	}
	if err := transition(StateRunning); err != nil {
		return Outcome{}, err
	}
	bus.Emit(eventbus.KindPhaseStarted, "discovery", "", nil)

	limitedMode := inv.SrcRoot == ""
	var proj discovery.Project
	var policyReasons []string
	if !limitedMode {
		proj, err = discovery.Discover(inv.SrcRoot)
		if err != nil {
			return Outcome{}, err
		}
		if proj.UnsupportedFramework {
			policyReasons = append(policyReasons, string(failuremode.ReasonUnsupportedFramework))
		}
	} else {
		policyReasons = append(policyReasons,
			string(failuremode.ReasonSourceNotDetected),
			string(failuremode.ReasonLimitedRuntimeOnlyMode))
	}
	_ = w.WriteJSON(artifact.NameProject, proj)
	bus.Emit(eventbus.KindPhaseCompleted, "discovery", "", nil)

	if inv.Auth.Mode != "" {
		policyReasons = append(policyReasons,
			string(failuremode.ReasonPostAuthExperimental),
			string(failuremode.ReasonOutOfScopePerVision))
	}

	var learnResult learn.Result
	if !limitedMode {
		bus.Emit(eventbus.KindPhaseStarted, "learn", "", nil)
		learnResult, err = learn.Extract(inv.SrcRoot, learn.Config{
			InScopeExtensions: inv.Policy.Learn.InScopeExtensions,
			SkipGlobs:         inv.Policy.Learn.SkipGlobs,
		})
		if err != nil {
			return Outcome{}, err
		}
		bus.Emit(eventbus.KindPhaseCompleted, "learn", "", nil)
	}
	_ = w.WriteJSON(artifact.NameLearn, learnResult)

	if len(learnResult.Expectations) == 0 {
		if !limitedMode {
			return usageOutcome(inv, failuremode.ReasonUsageNoExpectations), nil
		}
	}

	budgetCfg := timeout.DefaultBudgetConfig()
	budgetCfg.BaseMS = int64(inv.Policy.Budget.BaseMS)
	budgetCfg.PerExpectationMS = int64(inv.Policy.Budget.PerExpectationMS)
	if inv.Policy.Budget.MaxFrameworkMultiplier > 0 {
		budgetCfg.MaxMultiplier = inv.Policy.Budget.MaxFrameworkMultiplier
	}
	mgr := timeout.NewManager(budgetCfg, len(learnResult.Expectations))
	ctx, cancel := mgr.WithGlobal(ctx)
	defer cancel()

	bus.Emit(eventbus.KindPhaseStarted, "observe", "", nil)
	ready, notReadyReason, probeErr := eng.Probe(ctx, inv.URL)
	if probeErr != nil {
		return Outcome{}, probeErr
	}
	hasInfraFailure := false
	var obsResult observe.Result
	if !ready {
		hasInfraFailure = failuremode.SurfacesAsIncomplete(failuremode.ReasonBrowserDriverUnready)
		policyReasons = append(policyReasons, notReadyReason)
	} else {
		obsResult, err = eng.Observe(ctx, observe.Request{
			Expectations: learnResult.Expectations,
			TargetURL:    inv.URL,
			EvidenceDir:  filepath.Join(runDir, "evidence"),
			Auth:         inv.Auth,
			OnProgress: func(id string, done, total int) {
				bus.Heartbeat("observe")
			},
		})
		if err != nil {
			return Outcome{}, err
		}
	}
	_ = w.WriteJSON(artifact.NameObserve, obsResult.Observations)
	bus.Emit(eventbus.KindPhaseCompleted, "observe", "", nil)

	bus.Emit(eventbus.KindPhaseStarted, "detect", "", nil)
	findings := detect.Run(learnResult.Expectations, obsResult.Observations, w)
	validated, diagnostics := validator.Run(findings, w)
	_ = w.WriteJSON(artifact.NameFindings, validated)
	_ = w.WriteJSON(artifact.NameJudgments, diagnostics)
	bus.Emit(eventbus.KindPhaseCompleted, "detect", "", nil)

	attempted, observedCount := tallyObservations(obsResult.Observations)
	confirmed := countConfirmed(validated)
	coverage := buildCoverage(learnResult.Expectations, obsResult.Observations)
	_ = w.WriteJSON(artifact.NameCoverage, coverage)

	classification := truth.ClassificationInput{
		ExpectationsTotal: len(learnResult.Expectations),
		Attempted:         attempted,
		Observed:          observedCount,
		ConfirmedFindings: confirmed,
		CoverageRatio:     coverage.CoverageRatio,
		HasInfraFailure:   hasInfraFailure,
		IsIncomplete:      limitedMode || len(policyReasons) > 0,
		PolicyReasons:     policyReasons,
		MinCoverage:       inv.Policy.MinCoverage,
		CIMode:            inv.Policy.CIMode,
	}
	truthState, reasons, exitCode := truth.Classify(classification)

	if err := transition(StateFinalizing); err != nil {
		return Outcome{}, err
	}

	digestReport, err := computeDigest(scanID, learnResult, obsResult, validated, proj, coverage, truthState, exitCode)
	if err != nil {
		return Outcome{}, err
	}
	_ = w.WriteJSON(artifact.NameDigest, digestReport)

	summary := map[string]any{
		"truthState":        truthState,
		"exitCode":          int(exitCode),
		"incompleteReasons": reasons,
		"confirmedFindings": confirmed,
		"coverageRatio":     coverage.CoverageRatio,
	}
	_ = w.WriteJSON(artifact.NameSummary, summary)
	_ = w.WriteJSON(artifact.NameRunMeta, map[string]any{
		"scanId": scanID, "runId": runID, "url": inv.URL, "deterministic": inv.Deterministic,
		"warnings": inv.Policy.Warnings,
	})

	for _, ev := range bus.Events() {
		if err := w.AppendTrace(ev); err != nil {
			return Outcome{}, err
		}
	}

	validationOK := len(diagnostics) == 0 || allDowngradesNotErrors(diagnostics)
	if err := w.WriteFinalized(); err != nil {
		return Outcome{}, err
	}
	if err := w.WriteCompletionSentinel(truthState == model.TruthSuccess || truthState == model.TruthFindings, validationOK); err != nil {
		return Outcome{}, err
	}
	if err := artifact.UpdateLatestPointer(scanDir, runID); err != nil {
		return Outcome{}, err
	}
	if err := transition(StateFinal); err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Command:  "run",
		ExitCode: exitCode,
		Reason:   strings.Join(reasons, ","),
		Action:   actionFor(truthState),
		Truth:    truthState,
		Digest:   digestReport.CompositeDigest,
		RunID:    runID,
		URL:      inv.URL,
		ScanID:   scanID,
	}, nil
}

func validateInvocation(inv Invocation) error {
	u, err := url.Parse(inv.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return usageError{failuremode.ReasonUsageMissingURL}
	}
	if inv.SrcRoot != "" {
		if info, err := os.Stat(inv.SrcRoot); err != nil || !info.IsDir() {
			return usageError{failuremode.ReasonUsageBadFlag}
		}
	}
	if inv.Policy.MinCoverage < 0 || inv.Policy.MinCoverage > 1 {
		return usageError{failuremode.ReasonUsageBadFlag}
	}
	return nil
}

func asUsageError(err error, out *usageError) bool {
	ue, ok := err.(usageError)
	if ok {
		*out = ue
	}
	return ok
}

func usageOutcome(inv Invocation, reason failuremode.Reason) Outcome {
	return Outcome{
		Command:  "run",
		ExitCode: model.ExitUsageError,
		Reason:   string(reason),
		Action:   "fix the invocation and re-run",
		Truth:    model.TruthIncomplete,
		URL:      inv.URL,
	}
}

func profileName(p policy.Policy) string {
	return fmt.Sprintf("cov=%.2f;ci=%s", p.MinCoverage, p.CIMode)
}

func actionFor(state model.TruthState) string {
	switch state {
	case model.TruthSuccess:
		return "no action required"
	case model.TruthFindings:
		return "review findings.json for confirmed silent failures"
	default:
		return "re-run with a more permissive policy or investigate incompleteness reasons"
	}
}

func tallyObservations(obs []model.Observation) (attempted, observed int) {
	for _, o := range obs {
		if o.Attempted {
			attempted++
		}
		if o.Observed {
			observed++
		}
	}
	return
}

func countConfirmed(findings []model.Finding) int {
	n := 0
	for _, f := range findings {
		if f.Status == model.StatusConfirmed {
			n++
		}
	}
	return n
}

// Coverage is the supplemented coverage.json shape (SPEC_FULL.md §4.11).
type Coverage struct {
	ByType        map[model.ExpectationType]TypeCoverage `json:"byType"`
	CoverageRatio float64                                `json:"coverageRatio"`
}

// TypeCoverage is one expectation type's tally.
type TypeCoverage struct {
	Total     int `json:"total"`
	Attempted int `json:"attempted"`
	Observed  int `json:"observed"`
	Skipped   int `json:"skipped"`
}

func buildCoverage(expectations []model.Expectation, observations []model.Observation) Coverage {
	obsByID := make(map[string]model.Observation, len(observations))
	for _, o := range observations {
		obsByID[o.ID] = o
	}
	byType := map[model.ExpectationType]TypeCoverage{}
	var totalObserved, total int
	for _, exp := range expectations {
		tc := byType[exp.Type]
		tc.Total++
		total++
		if o, ok := obsByID[exp.ID]; ok {
			if o.Attempted {
				tc.Attempted++
			}
			if o.Observed {
				tc.Observed++
				totalObserved++
			}
			if o.Skipped {
				tc.Skipped++
			}
		}
		byType[exp.Type] = tc
	}
	ratio := 0.0
	if total > 0 {
		ratio = float64(totalObserved) / float64(total)
	}
	return Coverage{ByType: byType, CoverageRatio: ratio}
}

// computeDigest builds the run's digest.Projection — excluding timings
// and finding IDs, the two run-to-run-volatile fields spec.md §9 marks
// "not hashed" — and delegates the actual hashing to internal/digest, so
// the Orchestrator and any other caller of internal/digest always derive
// run.digest.json the same way.
func computeDigest(scanID string, lr learn.Result, or observe.Result, findings []model.Finding, proj discovery.Project, cov Coverage, state model.TruthState, exitCode model.ExitCode) (digest.Report, error) {
	toAny := func(findings []model.Finding) []any {
		out := make([]any, len(findings))
		for i, f := range findings {
			out[i] = f
		}
		return out
	}
	exps := make([]any, len(lr.Expectations))
	for i, e := range lr.Expectations {
		exps[i] = e
	}
	obs := stripTimings(or.Observations)
	obsAny := make([]any, len(obs))
	for i, o := range obs {
		obsAny[i] = o
	}
	return digest.Compute(digest.Projection{
		ScanID:       scanID,
		Expectations: exps,
		Observations: obsAny,
		Findings:     toAny(stripFindingIDs(findings)),
		Project:      proj,
		Coverage:     cov,
		TruthState:   string(state),
		ExitCode:     int(exitCode),
	}, nil)
}

func stripTimings(obs []model.Observation) []model.Observation {
	out := make([]model.Observation, len(obs))
	for i, o := range obs {
		o.Timings = model.Timings{}
		out[i] = o
	}
	return out
}

func stripFindingIDs(findings []model.Finding) []model.Finding {
	out := make([]model.Finding, len(findings))
	for i, f := range findings {
		f.ID = ""
		out[i] = f
	}
	return out
}

func allDowngradesNotErrors(diags []validator.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == validator.SeverityError {
			return false
		}
	}
	return true
}
