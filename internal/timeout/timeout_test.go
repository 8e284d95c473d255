package timeout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGlobalBudgetScalesWithExpectationCount(t *testing.T) {
	cfg := DefaultBudgetConfig()
	small := GlobalBudget(cfg, 1)
	large := GlobalBudget(cfg, 100)
	require.Greater(t, large, small)
}

func TestGlobalBudgetNeverBelowFloor(t *testing.T) {
	cfg := DefaultBudgetConfig()
	cfg.BaseMS = 0
	cfg.PerExpectationMS = 0
	got := GlobalBudget(cfg, 0)
	require.Equal(t, time.Duration(cfg.FloorMS)*time.Millisecond, got)
}

func TestFrameworkMultiplierCappedAtMax(t *testing.T) {
	cfg := DefaultBudgetConfig()
	cfg.FrameworkMultiplier = 50
	cfg.MaxMultiplier = 3
	uncapped := GlobalBudget(cfg, 10)

	capCfg := cfg
	capCfg.FrameworkMultiplier = 3
	capped := GlobalBudget(capCfg, 10)

	require.Equal(t, capped, uncapped)
}

func TestPhaseBudgetNeverBelowFloor(t *testing.T) {
	cfg := DefaultBudgetConfig()
	got := PhaseBudget(cfg, 1*time.Second, 0.001)
	require.Equal(t, time.Duration(cfg.PhaseFloorMS)*time.Millisecond, got)
}

func TestManagerTierDerivation(t *testing.T) {
	mgr := NewManager(DefaultBudgetConfig(), 4)
	ctx, cancel := mgr.WithGlobal(context.Background())
	defer cancel()

	phaseCtx, phaseCancel := mgr.WithPhase(ctx, 0.5)
	defer phaseCancel()

	interCtx, interCancel := mgr.WithInteraction(phaseCtx)
	defer interCancel()

	deadlinePhase, ok := phaseCtx.Deadline()
	require.True(t, ok)
	deadlineInter, ok := interCtx.Deadline()
	require.True(t, ok)
	require.True(t, deadlineInter.Before(deadlinePhase) || deadlineInter.Equal(deadlinePhase))
}
