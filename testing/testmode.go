// Package testing switches the process into test mode. Test packages import
// it for its side effect:
//
//	import _ "github.com/odyssey-erp/koperasi/testing"
//
// Configuration then skips .env, uses the memory store unless STORE_DRIVER
// is set, and leaves Redis disabled.
package testing

import "os"

// ModeEnv is set to "1" while tests run.
const ModeEnv = "KOPERASI_TEST_MODE"

func init() {
	_ = os.Setenv(ModeEnv, "1")
	_ = os.Setenv("APP_ENV", "test")
	// Empty, not unset: unset would pick up the envconfig default address.
	_ = os.Setenv("REDIS_ADDR", "")
	if _, ok := os.LookupEnv("STORE_DRIVER"); !ok {
		_ = os.Setenv("STORE_DRIVER", "memory")
	}
	if _, ok := os.LookupEnv("LOG_LEVEL"); !ok {
		_ = os.Setenv("LOG_LEVEL", "warn")
	}
}
