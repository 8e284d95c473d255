package eventbus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmitAssignsIncreasingSequence(t *testing.T) {
	b := New()
	e1 := b.Emit(KindPhaseStarted, "learn", "starting", nil)
	e2 := b.Emit(KindPhaseCompleted, "learn", "done", nil)
	require.Equal(t, 1, e1.Seq)
	require.Equal(t, 2, e2.Seq)
	require.Len(t, b.Events(), 2)
}

func TestEventsPreservesInsertionOrderUnderConcurrency(t *testing.T) {
	b := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Emit(KindHeartbeat, "observe", "", nil)
		}()
	}
	wg.Wait()
	events := b.Events()
	require.Len(t, events, 50)
	for i, ev := range events {
		require.Equal(t, i+1, ev.Seq)
	}
}
