package idgen

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanIDIsStableOverSameInputs(t *testing.T) {
	a := ScanID("https://example.com", "/src", "balanced")
	b := ScanID("https://example.com", "/src", "balanced")
	require.Equal(t, a, b)
	require.Regexp(t, `^scan_[0-9a-f]{16}$`, a)
}

func TestScanIDDiffersOnPolicyProfile(t *testing.T) {
	a := ScanID("https://example.com", "/src", "balanced")
	b := ScanID("https://example.com", "/src", "strict")
	require.NotEqual(t, a, b)
}

func TestExpectationIDIsStableOverSameTuple(t *testing.T) {
	a := ExpectationID("src/App.tsx", 12, 4, "navigation", "/cart")
	b := ExpectationID("src/App.tsx", 12, 4, "navigation", "/cart")
	require.Equal(t, a, b)
	require.Regexp(t, `^exp_[0-9a-f]{16}$`, a)
}

func TestExpectationIDDiffersOnLine(t *testing.T) {
	a := ExpectationID("src/App.tsx", 12, 4, "navigation", "/cart")
	b := ExpectationID("src/App.tsx", 13, 4, "navigation", "/cart")
	require.NotEqual(t, a, b)
}

func TestRunIDDeterministicModeIsStableGivenSameScanIDAndTime(t *testing.T) {
	t.Setenv("VERAX_TEST_TIME", "2026-01-01T00:00:00Z")
	scanID := ScanID("https://example.com", "/src", "balanced")
	a := RunID(scanID, true)
	b := RunID(scanID, true)
	require.Equal(t, a, b)
}

func TestRunIDNonDeterministicModeVaries(t *testing.T) {
	scanID := ScanID("https://example.com", "/src", "balanced")
	a := RunID(scanID, false)
	b := RunID(scanID, false)
	require.NotEqual(t, a, b)
}
