package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestModeFollowsEnvironment(t *testing.T) {
	t.Cleanup(func() { RefreshTestMode() })

	cases := map[string]bool{
		"1":     true,
		"true":  true,
		" T ":   true,
		"0":     false,
		"false": false,
		"":      false,
		"maybe": false,
	}
	for value, want := range cases {
		t.Setenv(testModeEnv, value)
		assert.Equal(t, want, RefreshTestMode(), "%q", value)
		assert.Equal(t, want, InTestMode(), "%q", value)
	}
}
