// Package fuzzutil holds small helpers shared by the mutator packages.
package fuzzutil

import (
	"encoding/hex"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

// LogClosure defers an expensive formatting operation until the logger
// decides the message is going to be printed.
type LogClosure func() string

// String invokes the underlying function and returns the result.
func (c LogClosure) String() string {
	return c()
}

// NewLogClosure wraps c so it can be handed to a logger as a fmt.Stringer.
func NewLogClosure(c func() string) LogClosure {
	return LogClosure(c)
}

// SpewLogClosure dumps a with spew.Sdump when printed.
func SpewLogClosure(a any) LogClosure {
	return func() string {
		return spew.Sdump(a)
	}
}

// HexDumpClosure renders b as a hex dump when printed. Buffers longer than
// limit bytes are cut and marked as truncated; a limit of zero dumps
// everything.
func HexDumpClosure(b []byte, limit int) LogClosure {
	return func() string {
		if limit <= 0 || len(b) <= limit {
			return hex.Dump(b)
		}

		var sb strings.Builder
		sb.WriteString(hex.Dump(b[:limit]))
		sb.WriteString("... (truncated)\n")

		return sb.String()
	}
}
