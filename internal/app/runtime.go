package app

import (
	"os"
	"strconv"
	"sync/atomic"
)

// TestModeEnv disables listeners and background work when set to a true value.
const TestModeEnv = "HERITAGE_TEST_MODE"

var testMode atomic.Pointer[bool]

// InTestMode reports whether binaries should exit before touching Postgres or Redis.
func InTestMode() bool {
	if on := testMode.Load(); on != nil {
		return *on
	}
	return RefreshTestMode()
}

// RefreshTestMode re-reads TestModeEnv, for tests that change it at runtime.
func RefreshTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	on = err == nil && on
	testMode.Store(&on)
	return on
}
