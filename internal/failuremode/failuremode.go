// Package failuremode is the normalized reason-code matrix (spec.md L8):
// a closed taxonomy mapping raw causes to the error kinds the Orchestrator
// classifies into an exit code (spec.md §7). Structurally grounded on the
// teacher's internal/attractor/engine/failure_policy.go, which maps a
// small set of named failure classes to boolean policy questions
// (retryable? escalatable?) via package-level lookup tables instead of
// scattered conditionals.
package failuremode

// Kind is the closed error taxonomy of spec.md §7.
type Kind string

const (
	KindUsage      Kind = "usage"
	KindData       Kind = "data"
	KindIncomplete Kind = "incomplete"
	KindInvariant  Kind = "invariant"
	KindExternal   Kind = "external"
)

// Reason is a normalized, stable reason code. Reasons are the vocabulary
// shared by incompleteReasons, REASON text, and event-bus entries.
type Reason string

const (
	ReasonUsageBadFlag              Reason = "usage_bad_flag"
	ReasonUsageMissingURL           Reason = "usage_missing_url"
	ReasonUsageSrcURLMismatch       Reason = "usage_src_url_mismatch"
	ReasonUsageNoExpectations       Reason = "usage_no_observable_promises"
	ReasonDataCorruptArtifact       Reason = "data_corrupt_artifact"
	ReasonCoverageBelowThreshold    Reason = "coverage_below_threshold"
	ReasonPartialAttempts           Reason = "partial_attempts"
	ReasonObservationIncomplete     Reason = "observation_incomplete"
	ReasonCriticalSilenceDetected   Reason = "critical_silence_detected"
	ReasonUnsupportedFramework      Reason = "unsupported_framework"
	ReasonSourceNotDetected         Reason = "source_not_detected"
	ReasonLimitedRuntimeOnlyMode    Reason = "limited_runtime_only_mode"
	ReasonPostAuthExperimental      Reason = "post_auth_experimental"
	ReasonOutOfScopePerVision       Reason = "out_of_scope_per_vision"
	ReasonGlobalTimeoutExceeded     Reason = "global_timeout_exceeded"
	ReasonPhaseTimeoutExceeded      Reason = "phase_timeout_exceeded"
	ReasonInteractionTimeoutExceeded Reason = "interaction-timeout-exceeded"
	ReasonInfraFailure              Reason = "infra_failure"
	ReasonUnknownIncompleteness     Reason = "unknown_incompleteness"
	ReasonSuccessWithFindingsInvariant Reason = "success_with_confirmed_findings"
	ReasonMissingRequiredArtifact    Reason = "missing_required_artifact"
	ReasonEvidenceFileUnresolved     Reason = "evidence_file_unresolved"
	ReasonCrossArtifactMismatch      Reason = "cross_artifact_mismatch"
	ReasonBrowserDriverUnready       Reason = "browser_driver_unready"
)

// kindOf is the fixed reason→kind lookup table (spec.md §7 taxonomy).
var kindOf = map[Reason]Kind{
	ReasonUsageBadFlag:                 KindUsage,
	ReasonUsageMissingURL:              KindUsage,
	ReasonUsageSrcURLMismatch:          KindUsage,
	ReasonUsageNoExpectations:          KindUsage,
	ReasonDataCorruptArtifact:          KindData,
	ReasonCoverageBelowThreshold:       KindIncomplete,
	ReasonPartialAttempts:              KindIncomplete,
	ReasonObservationIncomplete:        KindIncomplete,
	ReasonCriticalSilenceDetected:      KindIncomplete,
	ReasonUnsupportedFramework:         KindIncomplete,
	ReasonSourceNotDetected:            KindIncomplete,
	ReasonLimitedRuntimeOnlyMode:       KindIncomplete,
	ReasonPostAuthExperimental:         KindIncomplete,
	ReasonOutOfScopePerVision:          KindIncomplete,
	ReasonGlobalTimeoutExceeded:        KindIncomplete,
	ReasonPhaseTimeoutExceeded:         KindIncomplete,
	ReasonInteractionTimeoutExceeded:   KindIncomplete,
	ReasonInfraFailure:                 KindIncomplete,
	ReasonUnknownIncompleteness:        KindIncomplete,
	ReasonSuccessWithFindingsInvariant: KindInvariant,
	ReasonMissingRequiredArtifact:      KindInvariant,
	ReasonEvidenceFileUnresolved:       KindInvariant,
	ReasonCrossArtifactMismatch:        KindInvariant,
	ReasonBrowserDriverUnready:         KindExternal,
}

// KindOf returns the taxonomy kind for a normalized reason, defaulting to
// KindIncomplete for any reason this matrix has not enumerated — absence
// of a mapping must never silently collapse to success.
func KindOf(r Reason) Kind {
	if k, ok := kindOf[r]; ok {
		return k
	}
	return KindIncomplete
}

// externalSurfacesAsIncomplete lists External-kind reasons that the
// Truth Classifier must surface as INCOMPLETE rather than fail the process
// (spec.md §7: "External ... surfaces as Incomplete with a specific
// reason").
var externalSurfacesAsIncomplete = map[Reason]bool{
	ReasonBrowserDriverUnready: true,
}

// SurfacesAsIncomplete reports whether an External-kind reason must be
// folded into the run's INCOMPLETE classification instead of aborting.
func SurfacesAsIncomplete(r Reason) bool {
	return externalSurfacesAsIncomplete[r]
}
