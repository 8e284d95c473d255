package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObservationValidateConsistencyRule(t *testing.T) {
	cases := []struct {
		name    string
		obs     Observation
		wantErr bool
	}{
		{"attempted and observed", Observation{Attempted: true, Observed: true}, false},
		{"attempted not observed", Observation{Attempted: true, Observed: false}, false},
		{"skipped with reason", Observation{Skipped: true, SkipReason: "interaction-timeout-exceeded"}, false},
		{"observed without attempted", Observation{Observed: true}, true},
		{"skipped and attempted", Observation{Skipped: true, Attempted: true, SkipReason: "x"}, true},
		{"skipped without reason", Observation{Skipped: true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.obs.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSignalsStateChanged(t *testing.T) {
	require.False(t, Signals{}.StateChanged())
	require.True(t, Signals{State: []StateSignal{{Identifier: "count", Changed: true}}}.StateChanged())
	require.False(t, Signals{State: []StateSignal{{Identifier: "count", Changed: false}}}.StateChanged())
}
