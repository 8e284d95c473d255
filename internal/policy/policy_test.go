package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsOnly(t *testing.T) {
	p, err := Load("", nil, FlagOverrides{})
	require.NoError(t, err)
	require.Equal(t, Defaults().MinCoverage, p.MinCoverage)
	require.Equal(t, "balanced", p.CIMode)
	require.True(t, p.Redaction.Enabled)
}

func TestLoadFileOverridesMinCoverage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("min_coverage: 0.5\n"), 0o644))

	p, err := Load(path, nil, FlagOverrides{})
	require.NoError(t, err)
	require.Equal(t, 0.5, p.MinCoverage)
}

func TestLoadFileRejectsUnknownProperty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not_a_real_field: true\n"), 0o644))

	_, err := Load(path, nil, FlagOverrides{})
	require.Error(t, err)
}

func TestLoadFileRejectsOutOfRangeMinCoverage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"min_coverage": 2.0}`), 0o644))

	_, err := Load(path, nil, FlagOverrides{})
	require.Error(t, err)
}

func TestEnvOverridesBeatFileButLoseToFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("min_coverage: 0.5\n"), 0o644))

	env := []string{"VERAX_POLICY_MIN_COVERAGE=0.6"}
	p, err := Load(path, env, FlagOverrides{})
	require.NoError(t, err)
	require.Equal(t, 0.6, p.MinCoverage)

	flagVal := 0.9
	p2, err := Load(path, env, FlagOverrides{MinCoverage: &flagVal})
	require.NoError(t, err)
	require.Equal(t, 0.9, p2.MinCoverage)
}

func TestNoRedactionFlagAddsWarning(t *testing.T) {
	p, err := Load("", nil, FlagOverrides{NoRedaction: true})
	require.NoError(t, err)
	require.False(t, p.Redaction.Enabled)
	require.Contains(t, p.Warnings, "redaction_disabled")
}

func TestValidateRejectsOverlappingFrameworkLists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("frameworks:\n  allow: [react]\n  deny: [react]\n"), 0o644))

	_, err := Load(path, nil, FlagOverrides{})
	require.Error(t, err)
}

func TestValidateRejectsOutOfRangeMinCoverageFlag(t *testing.T) {
	bad := 1.5
	_, err := Load("", nil, FlagOverrides{MinCoverage: &bad})
	require.Error(t, err)
}
