// Package clock provides the single deterministic time source used across
// a run (spec §5: "Process-wide state is confined to the Time Provider and
// Policy singletons; both are initialized at run start and frozen
// thereafter"). In a real invocation VERAX_TEST_TIME is fixed for the life
// of the process, so reading it lazily on every call is equivalent to
// reading it once at start — and keeps the package trivially testable via
// t.Setenv instead of requiring a process restart per test case.
package clock

import (
	"os"
	"time"
)

const pinnedTimeEnv = "VERAX_TEST_TIME"

// Now returns the current time: real wall-clock time, unless VERAX_TEST_TIME
// pins a fixed instant.
func Now() time.Time {
	if t, ok := pinnedNow(); ok {
		return t
	}
	return time.Now().UTC()
}

// Pinned reports whether the clock is currently running in pinned
// (deterministic) mode.
func Pinned() bool {
	_, ok := pinnedNow()
	return ok
}

func pinnedNow() (time.Time, bool) {
	raw := os.Getenv(pinnedTimeEnv)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
