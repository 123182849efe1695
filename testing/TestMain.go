package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("TRIPLEDGER_TEST_MODE", "1")
		if os.Getenv("TRIPLEDGER_STORE") == "" {
			_ = os.Setenv("TRIPLEDGER_STORE", "memory")
		}
		if os.Getenv("TRIPLEDGER_OAUTH_GRACE") == "" {
			_ = os.Setenv("TRIPLEDGER_OAUTH_GRACE", "0s")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
