package app

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// testModeEnv marks a process started by go test. main returns before touching the
// terminal, the credential store or the network when it is set.
const testModeEnv = "TRIPLEDGER_TEST_MODE"

// testMode caches the parsed flag; nil until first read.
var testMode atomic.Pointer[bool]

// InTestMode reports whether the binary runs under go test.
func InTestMode() bool {
	if on := testMode.Load(); on != nil {
		return *on
	}
	return RefreshTestMode()
}

// RefreshTestMode re-reads TRIPLEDGER_TEST_MODE and returns the new value. Anything
// strconv.ParseBool rejects counts as off.
func RefreshTestMode() bool {
	on, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(testModeEnv)))
	on = on && err == nil
	testMode.Store(&on)
	return on
}
