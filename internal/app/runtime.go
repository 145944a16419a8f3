package app

import (
	"os"
	"sync"
)

const testModeEnv = "USERDASH_TEST_MODE"

// InTestMode reports whether binaries should skip runtime side effects such
// as dialing redis or binding a listener. The flag is read once per process.
var InTestMode = sync.OnceValue(func() bool {
	return os.Getenv(testModeEnv) == "1"
})
