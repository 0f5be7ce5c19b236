package engine

import (
	"errors"
	"fmt"

	"github.com/cmdfuzz/cmdfuzz/fuzzrand"
	"github.com/cmdfuzz/cmdfuzz/grammar"
	"github.com/cmdfuzz/cmdfuzz/mutate"
)

const (
	// DefaultAddProb is the probability of inserting a new command.
	DefaultAddProb = 0.3

	// DefaultRemoveProb is the probability of removing a command when
	// more than one is present.
	DefaultRemoveProb = 0.3

	// DefaultHeaderProb is the probability of mutating a header field
	// instead of the command sequence.
	DefaultHeaderProb = 0.1
)

// Config bundles everything an Engine needs.
type Config struct {
	// Grammar describes the commands and header of the inputs.
	Grammar *grammar.Grammar

	// Seed seeds the engine's PCG stream when Rand is nil.
	Seed uint64

	// Rand overrides the random stream. It is mostly used by tests to
	// force specific branches.
	Rand fuzzrand.Rand

	// Mutation tunes the field mutators.
	Mutation mutate.Config

	// AddProb is the probability of inserting a command.
	AddProb float64

	// RemoveProb is the probability of removing a command. It is
	// cumulative with AddProb.
	RemoveProb float64

	// HeaderProb is the probability that MutateInput targets the header.
	HeaderProb float64

	// Observer, if set, is told about every mutation.
	Observer Observer
}

// DefaultConfig returns the reference probabilities for g and seed.
func DefaultConfig(g *grammar.Grammar, seed uint64) *Config {
	return &Config{
		Grammar:    g,
		Seed:       seed,
		Mutation:   mutate.DefaultConfig(),
		AddProb:    DefaultAddProb,
		RemoveProb: DefaultRemoveProb,
		HeaderProb: DefaultHeaderProb,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Grammar == nil {
		return errors.New("engine needs a grammar")
	}

	err := CheckProbabilities(c.AddProb, c.RemoveProb, c.HeaderProb)
	if err != nil {
		return err
	}

	return c.Mutation.Validate()
}

// CheckProbabilities checks the structural probabilities: each lies in
// [0, 1] and add and remove together do not exceed one.
func CheckProbabilities(add, remove, header float64) error {
	for name, p := range map[string]float64{
		"add":    add,
		"remove": remove,
		"header": header,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%w: %s=%v", mutate.ErrBadProbability,
				name, p)
		}
	}
	if add+remove > 1 {
		return fmt.Errorf("%w: add+remove=%v", mutate.ErrBadProbability,
			add+remove)
	}

	return nil
}
