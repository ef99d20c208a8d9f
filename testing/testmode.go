// Package testing switches the binaries into test mode when imported
// from a test package, so that main-package guards skip startup.
package testing

import (
	"os"
	"sync"
)

const testModeEnv = "ODYSSEY_TEST_MODE"

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		if os.Getenv(testModeEnv) == "" {
			_ = os.Setenv(testModeEnv, "1")
		}
	})
}

func init() {
	ensureTestMode()
}
