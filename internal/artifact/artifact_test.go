package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCreatesRunAndEvidenceDirs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run1")
	w, err := New(dir)
	require.NoError(t, err)
	info, err := os.Stat(filepath.Join(w.RunDir, "evidence"))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestWriteJSONIsCanonicalAndReadable(t *testing.T) {
	w, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, w.WriteJSON(NameSummary, map[string]any{"b": 1, "a": 2}))

	raw, err := os.ReadFile(filepath.Join(w.RunDir, NameSummary))
	require.NoError(t, err)
	require.Equal(t, `{"a":2,"b":1}`, string(raw))
}

func TestAppendTraceAppendsLines(t *testing.T) {
	w, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, w.AppendTrace(map[string]any{"seq": 1}))
	require.NoError(t, w.AppendTrace(map[string]any{"seq": 2}))

	raw, err := os.ReadFile(filepath.Join(w.RunDir, NameTraces))
	require.NoError(t, err)
	require.Equal(t, "{\"seq\":1}\n{\"seq\":2}\n", string(raw))
}

func TestCompletionSentinelOnlyWrittenWhenEligible(t *testing.T) {
	w, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, w.WriteCompletionSentinel(false, false))
	_, err = os.Stat(filepath.Join(w.RunDir, SentinelCompletion))
	require.True(t, os.IsNotExist(err))

	require.NoError(t, w.WriteCompletionSentinel(true, false))
	_, err = os.Stat(filepath.Join(w.RunDir, SentinelCompletion))
	require.NoError(t, err)
}

func TestUpdateLatestPointerWritesRunID(t *testing.T) {
	scanDir := filepath.Join(t.TempDir(), "scan_abc")
	require.NoError(t, UpdateLatestPointer(scanDir, "01ARZ3NDEKTSV4RRFFQ69G5FAV"))

	raw, err := os.ReadFile(filepath.Join(scanDir, LatestPointer))
	require.NoError(t, err)
	require.Equal(t, "01ARZ3NDEKTSV4RRFFQ69G5FAV", string(raw))
}

func TestSignManifestSkipsMissingFiles(t *testing.T) {
	w, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, w.WriteJSON(NameSummary, map[string]any{"x": 1}))

	var key [32]byte
	entries, err := w.SignManifest(key, []string{NameSummary, "does_not_exist.json"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, NameSummary, entries[0].Name)
	require.NotEmpty(t, entries[0].Blake3)
}
