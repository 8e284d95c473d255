// Package model defines the core entities shared across the scan
// pipeline: Expectation, Observation, Finding, and RunState (spec.md §3).
// These are plain value types with total field sets, following spec.md
// §9's re-architecture pointer to "Express Finding/Observation/Expectation
// as value types with total field sets; use sum types for status,
// severity, truthState, skipReason".
package model

// ExpectationType is the closed set of promise kinds spec.md §3 names.
type ExpectationType string

const (
	ExpectationNavigation ExpectationType = "navigation"
	ExpectationNetwork    ExpectationType = "network"
	ExpectationState      ExpectationType = "state"
	ExpectationValidation ExpectationType = "validation"
	ExpectationForm       ExpectationType = "form"
	ExpectationUIFeedback ExpectationType = "ui-feedback"
)

// Source pinpoints where a promise was statically found.
type Source struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// Promise is the literal action a promise commits to performing.
type Promise struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Expectation is a user-facing promise extracted deterministically from
// source (spec.md §3, §4.3).
type Expectation struct {
	ID         string          `json:"id"`
	Type       ExpectationType `json:"type"`
	Promise    Promise         `json:"promise"`
	Source     Source          `json:"source"`
	Confidence float64         `json:"confidence"`
}

// SkipReason is the closed set of reasons a candidate promise never became
// an Expectation (spec.md §4.3).
type SkipReason string

const (
	SkipDynamic    SkipReason = "dynamic"
	SkipParseError SkipReason = "parseError"
)

// Skipped tallies dynamic/computed/external values and parse failures that
// never became expectations, keyed by reason.
type Skipped struct {
	Dynamic    int `json:"dynamic"`
	ParseError int `json:"parseError"`
}

// StateSignal records a single observed state-identifier change.
type StateSignal struct {
	Identifier string `json:"identifier"`
	Changed    bool   `json:"changed"`
}

// Signals is the closed set of observable effects an Observation Engine
// implementation reports per expectation (spec.md §3).
type Signals struct {
	NavigationChanged       bool          `json:"navigationChanged"`
	DOMChanged               bool          `json:"domChanged"`
	FeedbackSeen             bool          `json:"feedbackSeen"`
	NetworkActivity          bool          `json:"networkActivity"`
	ConsoleErrors            bool          `json:"consoleErrors"`
	BlockedWrite             bool          `json:"blockedWrite"`
	LoadingIndicatorDetected bool          `json:"loadingIndicatorDetected"`
	ErrorMessageDetected     bool          `json:"errorMessageDetected"`
	State                    []StateSignal `json:"state"`
	NetworkStatus            int           `json:"networkStatus,omitempty"`
	TitleChanged             bool          `json:"titleChanged"`
	ElementDisabledOrLoading bool          `json:"elementDisabledOrLoading"`
	RepeatedAcrossReplays    bool          `json:"repeatedAcrossReplays"`
}

// StateChanged reports whether any tracked state identifier changed.
func (s Signals) StateChanged() bool {
	for _, st := range s.State {
		if st.Changed {
			return true
		}
	}
	return false
}

// Timings are informational only; spec.md §3 marks them "not hashed".
type Timings struct {
	AttemptMS   int64 `json:"attemptMs"`
	ObserveMS   int64 `json:"observeMs"`
}

// IncompleteReason is the closed set of stability reasons spec.md §3 names.
type IncompleteReason string

const (
	ReasonCoverageBelowThreshold  IncompleteReason = "coverage_below_threshold"
	ReasonPartialAttempts         IncompleteReason = "partial_attempts"
	ReasonObservationIncomplete   IncompleteReason = "observation_incomplete"
	ReasonCriticalSilenceDetected IncompleteReason = "critical_silence_detected"
	ReasonSourceNotDetected       IncompleteReason = "source_not_detected"
	ReasonUnsupportedFramework    IncompleteReason = "unsupported_framework"
	ReasonLimitedRuntimeOnlyMode  IncompleteReason = "limited_runtime_only_mode"
	ReasonPostAuthExperimental    IncompleteReason = "post_auth_experimental"
	ReasonOutOfScopePerVision     IncompleteReason = "out_of_scope_per_vision"
	ReasonGlobalTimeoutExceeded   IncompleteReason = "global_timeout_exceeded"
	ReasonInfraFailure            IncompleteReason = "infra_failure"
	ReasonUnknownIncompleteness   IncompleteReason = "unknown_incompleteness"
)

// Stability carries the observation-level incompleteness reasons.
type Stability struct {
	IncompleteReasons []string `json:"incompleteReasons"`
}

// Observation is the single execution record for one Expectation
// (spec.md §3, §4.4).
type Observation struct {
	ID            string   `json:"id"`
	Attempted     bool     `json:"attempted"`
	Observed      bool     `json:"observed"`
	Skipped       bool     `json:"skipped"`
	SkipReason    string   `json:"skipReason,omitempty"`
	Signals       Signals  `json:"signals"`
	EvidenceFiles []string `json:"evidenceFiles"`
	Timings       Timings  `json:"timings"`
	Stability     Stability `json:"stability"`
}

// Validate enforces the observation consistency rule spec.md §3 fixes:
// observed ⇒ attempted; skipped ⇒ ¬attempted; skipped ⇒ skipReason ≠ ∅.
func (o Observation) Validate() error {
	if o.Observed && !o.Attempted {
		return errInvalid("observed implies attempted")
	}
	if o.Skipped && o.Attempted {
		return errInvalid("skipped implies not attempted")
	}
	if o.Skipped && o.SkipReason == "" {
		return errInvalid("skipped implies a non-empty skipReason")
	}
	return nil
}

type validationError string

func (e validationError) Error() string { return string(e) }

func errInvalid(msg string) error { return validationError("observation: " + msg) }

// FindingStatus is the closed set of finding dispositions (spec.md §3).
type FindingStatus string

const (
	StatusConfirmed     FindingStatus = "CONFIRMED"
	StatusSuspected      FindingStatus = "SUSPECTED"
	StatusInformational  FindingStatus = "INFORMATIONAL"
)

// Severity is the closed set of finding severities (spec.md §3).
type Severity string

const (
	SeverityHigh    Severity = "HIGH"
	SeverityMedium  Severity = "MEDIUM"
	SeverityLow     Severity = "LOW"
	SeverityUnknown Severity = "UNKNOWN"
)

// FindingType is the closed set of finding types spec.md §4.5 names.
type FindingType string

const (
	FindingBrokenNavigationPromise    FindingType = "broken_navigation_promise"
	FindingSilentSubmission          FindingType = "silent_submission"
	FindingRenderFailure             FindingType = "render_failure"
	FindingInvisibleStateFailure     FindingType = "invisible_state_failure"
	FindingStuckOrPhantomLoading     FindingType = "stuck_or_phantom_loading"
	FindingSilentPermissionWall      FindingType = "silent_permission_wall"
	FindingObservedBreak             FindingType = "observed_break"
	FindingDeadInteractionSilentFail FindingType = "dead_interaction_silent_failure"
)

// Evidence is the finding-level evidence reference bundle.
type Evidence struct {
	EvidenceFiles []string       `json:"evidence_files"`
	Signals       Signals        `json:"signals"`
}

// Enrichment carries the Validator's non-authoritative annotations
// (spec.md §3).
type Enrichment struct {
	AmbiguityReasons              []string `json:"ambiguityReasons"`
	EvidenceCategories             []string `json:"evidenceCategories"`
	EvidenceLawDowngradeReasons     []string `json:"evidenceLawDowngradeReasons"`
	EvidenceFileLawDowngradeReasons []string `json:"evidenceFileLawDowngradeReasons"`
	EvidenceCrossArtifactNotes      []string `json:"evidenceCrossArtifactNotes"`
}

// Finding is a classified discrepancy between a promise and its
// observation (spec.md §3, §4.5).
type Finding struct {
	ID         string        `json:"id"`
	Type       FindingType   `json:"type"`
	Status     FindingStatus `json:"status"`
	Severity   Severity      `json:"severity"`
	Confidence float64       `json:"confidence"`
	Promise    Promise       `json:"promise"`
	Observed   Signals       `json:"observed"`
	Evidence   Evidence      `json:"evidence"`
	Impact     string        `json:"impact"`
	Enrichment Enrichment    `json:"enrichment"`

	// ExpectationOrdinal is the 1-based position of the source expectation
	// in the sorted expectation list, used to resolve the exp_<N>_ prefix
	// of evidence file names (spec.md §4.4, §4.6 rule 4).
	ExpectationOrdinal int `json:"-"`
}

// TruthState is the closed set of run-level verdicts (spec.md §4.7).
type TruthState string

const (
	TruthSuccess    TruthState = "SUCCESS"
	TruthFindings   TruthState = "FINDINGS"
	TruthIncomplete TruthState = "INCOMPLETE"
)

// ExitCode is the closed set of process exit codes (spec.md §6).
type ExitCode int

const (
	ExitSuccess            ExitCode = 0
	ExitFindings           ExitCode = 20
	ExitIncomplete         ExitCode = 30
	ExitInvariantViolation ExitCode = 50
	ExitUsageError         ExitCode = 64
)
