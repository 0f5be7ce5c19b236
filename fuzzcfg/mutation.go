package fuzzcfg

import (
	"github.com/cmdfuzz/cmdfuzz/engine"
	"github.com/cmdfuzz/cmdfuzz/grammar"
	"github.com/cmdfuzz/cmdfuzz/mutate"
)

// Mutation exposes the engine probabilities and mutator tunables.
//
//nolint:ll
type Mutation struct {
	AddProb    float64 `long:"addprob" description:"Probability of inserting a generated command."`
	RemoveProb float64 `long:"removeprob" description:"Probability of removing a command when more than one is present."`
	HeaderProb float64 `long:"headerprob" description:"Probability of mutating a header field instead of the command sequence."`

	RegenProb float64 `long:"regenprob" description:"Probability of redrawing an integer field from its whole domain."`
	Walk      string  `long:"walk" description:"Integer walk used when not regenerating." choice:"unit" choice:"delta"`
	WalkDelta uint32  `long:"walkdelta" description:"Largest step of the delta integer walk."`

	ExtendProb float64 `long:"extendprob" description:"Weight of extending a buffer field."`
	SpliceProb float64 `long:"spliceprob" description:"Weight of removing a span from a buffer field."`
	ByteDelta  uint8   `long:"bytedelta" description:"Bound of the signed delta added to a single byte."`
}

// DefaultMutation returns the reference mutation settings.
func DefaultMutation() *Mutation {
	m := mutate.DefaultConfig()

	return &Mutation{
		AddProb:    engine.DefaultAddProb,
		RemoveProb: engine.DefaultRemoveProb,
		HeaderProb: engine.DefaultHeaderProb,
		RegenProb:  m.RegenProb,
		Walk:       m.Walk.String(),
		WalkDelta:  m.WalkDelta,
		ExtendProb: m.ExtendProb,
		SpliceProb: m.SpliceProb,
		ByteDelta:  m.ByteDelta,
	}
}

// MutateConfig converts the options into a mutate.Config.
func (m *Mutation) MutateConfig() (mutate.Config, error) {
	walk, err := mutate.ParseWalkMode(m.Walk)
	if err != nil {
		return mutate.Config{}, err
	}

	return mutate.Config{
		RegenProb:  m.RegenProb,
		Walk:       walk,
		WalkDelta:  m.WalkDelta,
		ExtendProb: m.ExtendProb,
		SpliceProb: m.SpliceProb,
		ByteDelta:  m.ByteDelta,
	}, nil
}

// EngineConfig returns the engine config of a session over g seeded with
// seed. It has the signature expected by afl.Config.NewEngineConfig once the
// options are validated.
func (m *Mutation) EngineConfig(g *grammar.Grammar,
	seed uint64) *engine.Config {

	cfg := engine.DefaultConfig(g, seed)
	cfg.AddProb = m.AddProb
	cfg.RemoveProb = m.RemoveProb
	cfg.HeaderProb = m.HeaderProb

	// Validate has already rejected a bad walk mode.
	cfg.Mutation, _ = m.MutateConfig()

	return cfg
}

// Validate checks that the options produce a valid engine config.
//
// NOTE: Part of the Validator interface.
func (m *Mutation) Validate() error {
	mcfg, err := m.MutateConfig()
	if err != nil {
		return err
	}

	err = engine.CheckProbabilities(m.AddProb, m.RemoveProb, m.HeaderProb)
	if err != nil {
		return err
	}

	return mcfg.Validate()
}

// A compile time check to ensure Mutation implements the Validator
// interface.
var _ Validator = (*Mutation)(nil)
