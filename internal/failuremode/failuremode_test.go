package failuremode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOfKnownReasons(t *testing.T) {
	require.Equal(t, KindUsage, KindOf(ReasonUsageNoExpectations))
	require.Equal(t, KindInvariant, KindOf(ReasonSuccessWithFindingsInvariant))
	require.Equal(t, KindExternal, KindOf(ReasonBrowserDriverUnready))
	require.Equal(t, KindIncomplete, KindOf(ReasonGlobalTimeoutExceeded))
}

func TestKindOfUnknownReasonDefaultsToIncomplete(t *testing.T) {
	require.Equal(t, KindIncomplete, KindOf(Reason("made_up_reason")))
}

func TestSurfacesAsIncomplete(t *testing.T) {
	require.True(t, SurfacesAsIncomplete(ReasonBrowserDriverUnready))
	require.False(t, SurfacesAsIncomplete(ReasonDataCorruptArtifact))
}
