//go:build stdlog
// +build stdlog

package build

import "os"

// LoggingType is a log type that bypasses the log file.
const LoggingType = LogTypeStdOut

// Write only copies b to stdout, a rotator set on the writer is ignored.
func (w *LogWriter) Write(b []byte) (int, error) {
	return os.Stdout.Write(b)
}
