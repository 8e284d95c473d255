package digest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeIsStableAcrossArtifactMapOrder(t *testing.T) {
	proj := Projection{ScanID: "scan_abc", TruthState: "SUCCESS", ExitCode: 0}
	a := map[string]any{"findings": []int{1, 2}, "coverage": map[string]any{"x": 1}}
	b := map[string]any{"coverage": map[string]any{"x": 1}, "findings": []int{1, 2}}

	r1, err := Compute(proj, a)
	require.NoError(t, err)
	r2, err := Compute(proj, b)
	require.NoError(t, err)
	require.Equal(t, r1.CompositeDigest, r2.CompositeDigest)
}

func TestComputeDiffersWhenProjectionChanges(t *testing.T) {
	a := Projection{ScanID: "scan_a"}
	b := Projection{ScanID: "scan_b"}
	r1, err := Compute(a, nil)
	require.NoError(t, err)
	r2, err := Compute(b, nil)
	require.NoError(t, err)
	require.NotEqual(t, r1.CompositeDigest, r2.CompositeDigest)
}

func TestComputeCarriesSchemaVersion(t *testing.T) {
	r, err := Compute(Projection{}, nil)
	require.NoError(t, err)
	require.Equal(t, "v1", r.SchemaVersion)
}
