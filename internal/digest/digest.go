// Package digest implements T3 Digest Engine (spec.md §4.9,
// SPEC_FULL.md §4.9): a canonical SHA-256 digest over a deliberately
// non-volatile projection of the run — timestamps, runId, and other
// elapsed-time-derived fields are excluded so identical inputs always
// produce an identical digest (spec.md §9). Built directly on
// internal/canon, the repo's single canonicalization routine.
package digest

import (
	"sort"

	"github.com/odavlstudio/verax/internal/canon"
)

// SchemaVersion is the fixed digest schema tag persisted in
// run.digest.json so that a future incompatible projection change is
// detectable rather than silently comparing apples to oranges.
const SchemaVersion = "v1"

// Projection is the non-volatile subset of a run's state the digest is
// computed over. Every field here must already have excluded anything
// spec.md §9 marks "not hashed" (timings, runId, heartbeats).
type Projection struct {
	ScanID       string         `json:"scanId"`
	Expectations []any          `json:"expectations"`
	Observations []any          `json:"observations"`
	Findings     []any          `json:"findings"`
	Project      any            `json:"project"`
	Coverage     any            `json:"coverage"`
	TruthState   string         `json:"truthState"`
	ExitCode     int            `json:"exitCode"`
}

// ArtifactDigest is one artifact's canonical hash plus its logical name,
// emitted as part of run.digest.json's per-artifact breakdown.
type ArtifactDigest struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
}

// Report is the full contents of run.digest.json.
type Report struct {
	SchemaVersion       string           `json:"schemaVersion"`
	CompositeDigest     string           `json:"deterministicDigest"`
	ArtifactDigests     []ArtifactDigest `json:"artifactDigests"`
}

// Compute hashes the projection and each named artifact payload, then
// folds every hash into one composite digest over their sorted
// (name, hash) pairs — so the composite itself is independent of the
// order artifacts happen to have been supplied in.
func Compute(proj Projection, artifacts map[string]any) (Report, error) {
	projHash, err := canon.Hash(proj)
	if err != nil {
		return Report{}, err
	}

	digests := make([]ArtifactDigest, 0, len(artifacts)+1)
	digests = append(digests, ArtifactDigest{Name: "projection", Hash: projHash})
	for name, payload := range artifacts {
		h, err := canon.Hash(payload)
		if err != nil {
			return Report{}, err
		}
		digests = append(digests, ArtifactDigest{Name: name, Hash: h})
	}
	sort.Slice(digests, func(i, j int) bool { return digests[i].Name < digests[j].Name })

	composite, err := canon.Hash(digests)
	if err != nil {
		return Report{}, err
	}

	return Report{
		SchemaVersion:   SchemaVersion,
		CompositeDigest: composite,
		ArtifactDigests: digests,
	}, nil
}
