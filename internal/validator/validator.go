// Package validator implements M5 Constitutional Validator (Evidence
// Law v2, spec.md §4.6, SPEC_FULL.md §4.7): six sequential rules run
// over the full finding set, never short-circuited, each contributing
// Diagnostics to one accumulated audit trail. Modeled directly on the
// teacher's lint-rule architecture
// (internal/attractor/validate/validate.go: Validate(g *Graph,
// extraRules ...LintRule) []Diagnostic, one function per rule,
// diagnostics appended never replaced) — same accumulate-don't-
// short-circuit shape, applied to findings instead of DOT graph nodes.
package validator

import (
	"sort"
	"strconv"
	"strings"

	"github.com/odavlstudio/verax/internal/model"
)

// Severity mirrors the teacher's Diagnostic severity vocabulary, mapped
// onto this domain's three dispositions: ERROR drops a finding, WARNING
// downgrades it to SUSPECTED, INFO only annotates it.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Diagnostic is one rule firing against one finding, in the same
// {Rule, Severity, Message} shape the teacher's Diagnostic carries.
type Diagnostic struct {
	Rule      string   `json:"rule"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	FindingID string   `json:"findingId,omitempty"`
}

// EvidenceIndex reports which evidence file paths actually exist under
// the run's evidence root, and which expectation ordinal's observation
// set a given file belongs to — the two lookups the Evidence File
// Existence Law and the Observe↔Findings Consistency rule need.
type EvidenceIndex interface {
	Exists(relPath string) bool
	ObservationFiles(ordinal int) []string
}

var strongEvidenceCategories = map[string]bool{
	"navigation": true, "meaningful_dom": true, "feedback": true, "network": true,
}

var weakEvidenceCategories = map[string]bool{
	"console": true, "blocked_write": true, "captured_evidence": true,
}

// evidenceFileRequiredTypes are the silent-failure finding types the
// Evidence File Existence Law (rule 3) additionally constrains.
var evidenceFileRequiredTypes = map[model.FindingType]bool{
	model.FindingDeadInteractionSilentFail: true,
	model.FindingBrokenNavigationPromise:   true,
	model.FindingSilentSubmission:          true,
}

// Run applies the six Evidence Law v2 stages in spec.md §4.6's fixed
// order over the full finding set and returns the (possibly dropped or
// downgraded) findings plus the complete audit trail.
func Run(findings []model.Finding, idx EvidenceIndex) ([]model.Finding, []Diagnostic) {
	var diags []Diagnostic
	live := make([]model.Finding, len(findings))
	copy(live, findings)
	dropped := make(map[int]bool, len(live))

	stages := []func([]model.Finding, map[int]bool, EvidenceIndex) []Diagnostic{
		ruleRequiredFields,
		ruleEvidenceLawV2,
		ruleEvidenceFileExistence,
		ruleObserveFindingsConsistency,
		ruleAmbiguityEngine,
		ruleNoGuessing,
	}
	for _, stage := range stages {
		diags = append(diags, stage(live, dropped, idx)...)
	}

	out := make([]model.Finding, 0, len(live))
	for i, f := range live {
		if !dropped[i] {
			out = append(out, f)
		}
	}

	for i := range out {
		sortAndDedup(&out[i].Enrichment.AmbiguityReasons)
		sortAndDedup(&out[i].Enrichment.EvidenceCategories)
		sortAndDedup(&out[i].Enrichment.EvidenceLawDowngradeReasons)
		sortAndDedup(&out[i].Enrichment.EvidenceFileLawDowngradeReasons)
		sortAndDedup(&out[i].Enrichment.EvidenceCrossArtifactNotes)
	}

	return out, diags
}

// ruleRequiredFields is rule 1: missing or mistyped required fields drop
// the finding outright.
func ruleRequiredFields(findings []model.Finding, dropped map[int]bool, idx EvidenceIndex) []Diagnostic {
	var diags []Diagnostic
	for i, f := range findings {
		if f.ID == "" || f.Type == "" || f.Status == "" || f.Severity == "" || f.Impact == "" {
			dropped[i] = true
			diags = append(diags, Diagnostic{Rule: "required_fields", Severity: SeverityError, Message: "missing required field", FindingID: f.ID})
		}
	}
	return diags
}

// ruleEvidenceLawV2 is rule 2: a CONFIRMED finding must carry at least
// one strong evidence category.
func ruleEvidenceLawV2(findings []model.Finding, dropped map[int]bool, idx EvidenceIndex) []Diagnostic {
	var diags []Diagnostic
	for i := range findings {
		if dropped[i] || findings[i].Status != model.StatusConfirmed {
			continue
		}
		categories := evidenceCategories(findings[i].Observed)
		findings[i].Enrichment.EvidenceCategories = append(findings[i].Enrichment.EvidenceCategories, categories...)
		if !hasAny(categories, strongEvidenceCategories) {
			findings[i].Status = model.StatusSuspected
			findings[i].Enrichment.EvidenceLawDowngradeReasons = append(findings[i].Enrichment.EvidenceLawDowngradeReasons, "no_strong_evidence_category")
			diags = append(diags, Diagnostic{Rule: "evidence_law_v2", Severity: SeverityWarning, Message: "no strong evidence category for CONFIRMED finding", FindingID: findings[i].ID})
		}
	}
	return diags
}

// ruleEvidenceFileExistence is rule 3: for the silent-failure types,
// CONFIRMED additionally requires a non-empty, existing, strong
// evidence file set.
func ruleEvidenceFileExistence(findings []model.Finding, dropped map[int]bool, idx EvidenceIndex) []Diagnostic {
	var diags []Diagnostic
	for i := range findings {
		if dropped[i] || findings[i].Status != model.StatusConfirmed || !evidenceFileRequiredTypes[findings[i].Type] {
			continue
		}
		files := findings[i].Evidence.EvidenceFiles
		reason := ""
		switch {
		case len(files) == 0:
			reason = "no_evidence_files"
		case idx != nil && !allExist(files, idx):
			reason = "evidence_file_missing"
		case !hasStrongEvidenceFileClass(files):
			reason = "no_strong_evidence_file_class"
		}
		if reason != "" {
			findings[i].Status = model.StatusSuspected
			findings[i].Enrichment.EvidenceFileLawDowngradeReasons = append(findings[i].Enrichment.EvidenceFileLawDowngradeReasons, reason)
			diags = append(diags, Diagnostic{Rule: "evidence_file_existence", Severity: SeverityWarning, Message: reason, FindingID: findings[i].ID})
		}
	}
	return diags
}

// ruleObserveFindingsConsistency is rule 4: evidence file references
// must map to exactly one expectation ordinal, consistently with the
// observation's own evidence set.
func ruleObserveFindingsConsistency(findings []model.Finding, dropped map[int]bool, idx EvidenceIndex) []Diagnostic {
	var diags []Diagnostic
	for i := range findings {
		if dropped[i] || findings[i].Status != model.StatusConfirmed || !evidenceFileRequiredTypes[findings[i].Type] {
			continue
		}
		ordinals := map[int]bool{}
		for _, f := range findings[i].Evidence.EvidenceFiles {
			if n, ok := ordinalFromEvidenceFile(f); ok {
				ordinals[n] = true
			}
		}
		note := ""
		switch {
		case len(ordinals) == 0:
			note = "unmapped_to_observation"
		case len(ordinals) > 1:
			note = "ambiguous_observation_mapping"
		default:
			var only int
			for n := range ordinals {
				only = n
			}
			if idx == nil {
				break
			}
			obsFiles := idx.ObservationFiles(only)
			if obsFiles == nil {
				note = "observation_missing"
			} else if !allIn(findings[i].Evidence.EvidenceFiles, obsFiles) {
				note = "evidence_not_in_observation"
			}
		}
		if note != "" {
			findings[i].Status = model.StatusSuspected
			findings[i].Enrichment.EvidenceCrossArtifactNotes = append(findings[i].Enrichment.EvidenceCrossArtifactNotes, note)
			diags = append(diags, Diagnostic{Rule: "observe_findings_consistency", Severity: SeverityWarning, Message: note, FindingID: findings[i].ID})
		}
	}
	return diags
}

// ruleAmbiguityEngine is rule 5: record-only ambiguity notes, never a
// rejection.
func ruleAmbiguityEngine(findings []model.Finding, dropped map[int]bool, idx EvidenceIndex) []Diagnostic {
	var diags []Diagnostic
	for i := range findings {
		if dropped[i] {
			continue
		}
		s := findings[i].Observed
		var reasons []string
		if s.BlockedWrite {
			reasons = append(reasons, "blocked_write_detected")
		}
		if s.ConsoleErrors && !s.NavigationChanged && !s.DOMChanged && !s.NetworkActivity {
			reasons = append(reasons, "console_only")
		}
		if s.NetworkActivity && !s.NavigationChanged && !s.DOMChanged && !s.FeedbackSeen {
			reasons = append(reasons, "network_only")
		}
		if len(reasons) > 0 {
			findings[i].Enrichment.AmbiguityReasons = append(findings[i].Enrichment.AmbiguityReasons, reasons...)
			diags = append(diags, Diagnostic{Rule: "ambiguity_engine", Severity: SeverityInfo, Message: strings.Join(reasons, ","), FindingID: findings[i].ID})
		}
	}
	return diags
}

// ruleNoGuessing is rule 6: a high-confidence finding with zero
// evidence entries is dropped outright, never merely downgraded.
func ruleNoGuessing(findings []model.Finding, dropped map[int]bool, idx EvidenceIndex) []Diagnostic {
	var diags []Diagnostic
	for i := range findings {
		if dropped[i] {
			continue
		}
		if findings[i].Confidence > 0.85 && len(findings[i].Evidence.EvidenceFiles) == 0 {
			dropped[i] = true
			diags = append(diags, Diagnostic{Rule: "no_guessing", Severity: SeverityError, Message: "confidence > 0.85 with zero evidence entries", FindingID: findings[i].ID})
		}
	}
	return diags
}

func evidenceCategories(s model.Signals) []string {
	var out []string
	if s.NavigationChanged {
		out = append(out, "navigation")
	}
	if s.DOMChanged {
		out = append(out, "meaningful_dom")
	}
	if s.FeedbackSeen {
		out = append(out, "feedback")
	}
	if s.NetworkActivity {
		out = append(out, "network")
	}
	if s.ConsoleErrors {
		out = append(out, "console")
	}
	if s.BlockedWrite {
		out = append(out, "blocked_write")
	}
	return out
}

func hasAny(categories []string, set map[string]bool) bool {
	for _, c := range categories {
		if set[c] {
			return true
		}
	}
	return false
}

func allExist(files []string, idx EvidenceIndex) bool {
	for _, f := range files {
		if !idx.Exists(f) {
			return false
		}
	}
	return true
}

func hasStrongEvidenceFileClass(files []string) bool {
	hasBefore, hasAfter := false, false
	for _, f := range files {
		switch {
		case strings.Contains(f, "_dom_diff."):
			return true
		case strings.Contains(f, "_network."):
			return true
		case strings.Contains(f, "_before."):
			hasBefore = true
		case strings.Contains(f, "_after."):
			hasAfter = true
		}
	}
	return hasBefore && hasAfter
}

// ordinalFromEvidenceFile parses the fixed exp_<N>_... schema
// (SPEC_FULL.md §4.5) to recover the expectation ordinal.
func ordinalFromEvidenceFile(name string) (int, bool) {
	base := name
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		base = name[i+1:]
	}
	if !strings.HasPrefix(base, "exp_") {
		return 0, false
	}
	rest := base[len("exp_"):]
	end := strings.IndexByte(rest, '_')
	if end < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func allIn(files, universe []string) bool {
	set := make(map[string]bool, len(universe))
	for _, u := range universe {
		set[u] = true
	}
	for _, f := range files {
		if !set[f] {
			return false
		}
	}
	return true
}

func sortAndDedup(s *[]string) {
	if len(*s) == 0 {
		return
	}
	seen := map[string]bool{}
	out := (*s)[:0]
	for _, v := range *s {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	*s = out
}
