package fuzzcfg

import (
	"errors"
	"fmt"

	"github.com/cmdfuzz/cmdfuzz/babynotes"
	"github.com/cmdfuzz/cmdfuzz/grammar"
)

// Target selects the grammar of the fuzzed program.
//
//nolint:ll
type Target struct {
	Builtin     string `long:"builtin" description:"Name of a built-in grammar." choice:"babynotes" choice:"babynotes-header"`
	GrammarFile string `long:"grammar" description:"Path to a YAML grammar file. Takes precedence over the built-in grammar."`
}

// DefaultTarget selects the babynotes grammar with its profile header.
func DefaultTarget() *Target {
	return &Target{
		Builtin: babynotes.HeaderName,
	}
}

// Validate checks that a grammar is selected.
//
// NOTE: Part of the Validator interface.
func (t *Target) Validate() error {
	if t.Builtin == "" && t.GrammarFile == "" {
		return errors.New("either a built-in grammar or a grammar " +
			"file must be set")
	}

	return nil
}

// Load returns the selected grammar.
func (t *Target) Load() (*grammar.Grammar, error) {
	if t.GrammarFile != "" {
		return grammar.LoadFile(t.GrammarFile)
	}

	g, ok, err := babynotes.Lookup(t.Builtin)
	switch {
	case err != nil:
		return nil, err

	case !ok:
		return nil, fmt.Errorf("unknown built-in grammar %q",
			t.Builtin)
	}

	return g, nil
}

// A compile time check to ensure Target implements the Validator interface.
var _ Validator = (*Target)(nil)
