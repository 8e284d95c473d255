package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odavlstudio/verax/internal/learn"
	"github.com/odavlstudio/verax/internal/model"
	"github.com/odavlstudio/verax/internal/observe"
	"github.com/odavlstudio/verax/internal/observe/fakeengine"
	"github.com/odavlstudio/verax/internal/policy"
)

func writeSrcFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "package.json"), []byte(`{"dependencies":{"react":"18.0.0"}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "App.jsx"), []byte(`<a href="/dashboard">Go</a>`), 0o644))
	return root
}

func TestRunRejectsBadURLAsUsageError(t *testing.T) {
	inv := Invocation{URL: "not-a-url", OutRoot: t.TempDir(), Policy: policy.Defaults()}
	out, err := Run(context.Background(), inv, fakeengine.New())
	require.NoError(t, err)
	require.Equal(t, model.ExitUsageError, out.ExitCode)
}

func TestRunSucceedsWithCleanObservations(t *testing.T) {
	root := writeSrcFixture(t)
	inv := Invocation{
		URL:     "https://example.com",
		SrcRoot: root,
		OutRoot: t.TempDir(),
		Policy:  policy.Defaults(),
	}
	eng := fakeengine.New()
	out, err := Run(context.Background(), inv, eng)
	require.NoError(t, err)
	// The fake engine's default fixture observes every expectation with
	// zero signals, which the Validator keeps at SUSPECTED (never
	// CONFIRMED without strong evidence) — so the run is clean SUCCESS.
	require.Equal(t, model.ExitSuccess, out.ExitCode)
	require.Equal(t, model.TruthSuccess, out.Truth)
}

func TestRunWithoutSourceIsLimitedIncomplete(t *testing.T) {
	inv := Invocation{
		URL:     "https://example.com",
		OutRoot: t.TempDir(),
		Policy:  policy.Defaults(),
	}
	out, err := Run(context.Background(), inv, fakeengine.New())
	require.NoError(t, err)
	require.Equal(t, model.TruthIncomplete, out.Truth)
	require.Equal(t, model.ExitIncomplete, out.ExitCode)
}

func TestRunCreatesArtifactTree(t *testing.T) {
	root := writeSrcFixture(t)
	outRoot := t.TempDir()
	inv := Invocation{URL: "https://example.com", SrcRoot: root, OutRoot: outRoot, Policy: policy.Defaults()}
	out, err := Run(context.Background(), inv, fakeengine.New())
	require.NoError(t, err)
	require.NotEmpty(t, out.RunID)

	runDir := filepath.Join(outRoot, "runs")
	entries, err := os.ReadDir(runDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

// evidenceEngine targets a single expectation with a strong navigation
// signal and writes its one evidence file to req.EvidenceDir before
// returning it — unlike fakeengine's fixtures, which never touch the
// filesystem — so a CONFIRMED finding can be exercised against the
// run's real evidence/ subtree instead of a hand-built fake index.
type evidenceEngine struct {
	expectationID string
	evidenceName  string
}

func (e *evidenceEngine) Probe(ctx context.Context, targetURL string) (bool, string, error) {
	return true, "", nil
}

func (e *evidenceEngine) Observe(ctx context.Context, req observe.Request) (observe.Result, error) {
	if err := os.MkdirAll(req.EvidenceDir, 0o755); err != nil {
		return observe.Result{}, err
	}
	if err := os.WriteFile(filepath.Join(req.EvidenceDir, e.evidenceName), []byte("dom-diff"), 0o644); err != nil {
		return observe.Result{}, err
	}

	observations := make([]model.Observation, 0, len(req.Expectations))
	for _, exp := range req.Expectations {
		obs := model.Observation{ID: exp.ID, Attempted: true, Observed: true}
		if exp.ID == e.expectationID {
			obs.Signals = model.Signals{NavigationChanged: true}
			obs.EvidenceFiles = []string{e.evidenceName}
		}
		observations = append(observations, obs)
		if req.OnProgress != nil {
			req.OnProgress(exp.ID, len(observations), len(req.Expectations))
		}
	}
	return observe.Result{Observations: observations, Ready: true}, nil
}

var _ observe.Engine = (*evidenceEngine)(nil)

func TestRunConfirmsFindingWithRealEvidenceFiles(t *testing.T) {
	root := writeSrcFixture(t)
	pol := policy.Defaults()

	learned, err := learn.Extract(root, learn.Config{
		InScopeExtensions: pol.Learn.InScopeExtensions,
		SkipGlobs:         pol.Learn.SkipGlobs,
	})
	require.NoError(t, err)
	require.Len(t, learned.Expectations, 1, "fixture's single href must be the only extracted expectation")

	eng := &evidenceEngine{expectationID: learned.Expectations[0].ID, evidenceName: "exp_1_dom_diff.png"}
	inv := Invocation{URL: "https://example.com", SrcRoot: root, OutRoot: t.TempDir(), Policy: pol}

	out, err := Run(context.Background(), inv, eng)
	require.NoError(t, err)
	require.Equal(t, model.TruthFindings, out.Truth)
	require.Equal(t, model.ExitFindings, out.ExitCode)
}

func TestRunPopulatesObserveProgressHeartbeats(t *testing.T) {
	root := writeSrcFixture(t)
	eng := fakeengine.New()
	outRoot := t.TempDir()
	inv := Invocation{URL: "https://example.com", SrcRoot: root, OutRoot: outRoot, Policy: policy.Defaults()}
	out, err := Run(context.Background(), inv, eng)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(outRoot, "runs", out.ScanID, out.RunID, "traces.jsonl"))
	require.NoError(t, err)
	require.Contains(t, string(raw), `"kind":"heartbeat"`)
}
