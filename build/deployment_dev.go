//go:build dev
// +build dev

package build

import "os"

// Deployment specifies a development build.
const Deployment = Development

// LogLevel is the level used by stdout sub-loggers in development builds. It
// can be raised for a test run with CMDFUZZ_LOGLEVEL.
var LogLevel = logLevelFromEnv()

func logLevelFromEnv() string {
	if lvl := os.Getenv("CMDFUZZ_LOGLEVEL"); lvl != "" {
		return lvl
	}

	return "info"
}
