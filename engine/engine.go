// Package engine implements grammar-aware mutation of command sequences. An
// Engine owns a random stream and two reusable output buffers; it is not safe
// for concurrent use.
package engine

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/cmdfuzz/cmdfuzz/fuzzrand"
	"github.com/cmdfuzz/cmdfuzz/fuzzutil"
	"github.com/cmdfuzz/cmdfuzz/grammar"
	"github.com/cmdfuzz/cmdfuzz/mutate"
)

// Engine mutates inputs of one grammar.
type Engine struct {
	cfg Config
	rng fuzzrand.Rand

	fuzzBuf bytes.Buffer
	postBuf bytes.Buffer
}

// New creates an engine from cfg. Unless cfg.Rand is set, the stream is a PCG
// seeded with cfg.Seed, so two engines built from equal configs produce the
// same mutations for the same calls.
func New(cfg *Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rng := cfg.Rand
	if rng == nil {
		rng = fuzzrand.NewPCG(cfg.Seed)
	}

	log.Debugf("Created engine for grammar %q with seed %d",
		cfg.Grammar.Name, cfg.Seed)

	return &Engine{
		cfg: *cfg,
		rng: rng,
	}, nil
}

// Grammar returns the grammar the engine mutates against.
func (e *Engine) Grammar() *grammar.Grammar {
	return e.cfg.Grammar
}

// MutateInput applies one mutation to in. When the grammar declares a header,
// a header field is targeted with probability HeaderProb and the command
// sequence otherwise. Grammars without a header go straight to Mutate and do
// not consume the extra draw.
func (e *Engine) MutateInput(in *grammar.Input) Op {
	g := e.cfg.Grammar
	if !g.HasHeader() {
		return e.Mutate(in)
	}

	if len(in.Header) != len(g.Header) {
		panic(fmt.Sprintf("grammar mismatch: header has %d fields, "+
			"layout has %d", len(in.Header), len(g.Header)))
	}

	if e.rng.Float64() > e.cfg.HeaderProb {
		return e.Mutate(in)
	}

	idx := e.rng.IntN(len(g.Header))
	field := g.Header[idx]

	var outcome mutate.Outcome
	switch v := in.Header[idx].(type) {
	// Header buffers have a fixed size, so only their content moves.
	case grammar.Binary:
		if _, ok := field.Spec.(grammar.BinarySpec); !ok {
			panicMismatch(field.Spec, v)
		}
		mutate.Bytes(v, e.rng, e.cfg.Mutation.ByteDelta)
		outcome = mutate.ByteDelta
		if len(v) == 0 {
			outcome = mutate.Unchanged
		}

	default:
		in.Header[idx], outcome = e.mutateValue(field.Spec, v)
	}

	log.Tracef("Mutated header field %s: %v", field.Name, outcome)

	e.observe(MutateHeader)
	e.observeField(field.Spec.Kind(), outcome)

	return MutateHeader
}

// Mutate applies one structural mutation to the command sequence of in: with
// AddProb a generated command is inserted at a uniform position, with
// RemoveProb (only when more than one command is present) a uniform command
// is removed, and otherwise one field of a uniform command is mutated. An
// empty sequence always receives a new command.
//
// Every command of in must match the grammar's table, a mismatch panics.
func (e *Engine) Mutate(in *grammar.Input) Op {
	table := e.cfg.Grammar.Table

	p := e.rng.Float64()
	n := len(in.Commands)

	var op Op
	switch {
	case n == 0 || p <= e.cfg.AddProb:
		spec := table.At(e.rng.IntN(table.Len()))
		cmd := spec.Instantiate(e.rng)
		idx := e.rng.IntN(n + 1)
		in.Commands = slices.Insert(in.Commands, idx, cmd)

		log.Tracef("Inserted %v at %d", spec, idx)
		op = AddCommand

	case n > 1 && p <= e.cfg.AddProb+e.cfg.RemoveProb:
		idx := e.rng.IntN(n)
		in.Commands = slices.Delete(in.Commands, idx, idx+1)

		log.Tracef("Removed command %d of %d", idx, n)
		op = RemoveCommand

	default:
		cmd := &in.Commands[e.rng.IntN(n)]
		e.mutateCommand(cmd, table.MustLookup(cmd.Opcode))
		op = MutateCommand
	}

	e.observe(op)

	return op
}

// mutateCommand changes one uniformly chosen field of cmd.
func (e *Engine) mutateCommand(cmd *grammar.Command,
	spec *grammar.CommandSpec) {

	if len(cmd.Fields) != len(spec.Fields) {
		panic(fmt.Sprintf("grammar mismatch: %v has %d fields, "+
			"command has %d", spec, len(spec.Fields),
			len(cmd.Fields)))
	}
	if len(cmd.Fields) == 0 {
		return
	}

	idx := e.rng.IntN(len(cmd.Fields))
	fieldSpec := spec.Fields[idx]

	var outcome mutate.Outcome
	cmd.Fields[idx], outcome = e.mutateValue(fieldSpec, cmd.Fields[idx])

	log.Tracef("Mutated field %d of %v: %v", idx, spec, outcome)

	e.observeField(fieldSpec.Kind(), outcome)
}

// mutateValue dispatches to the field mutator of the spec's kind and returns
// the new value.
func (e *Engine) mutateValue(spec grammar.FieldSpec,
	value grammar.FieldValue) (grammar.FieldValue, mutate.Outcome) {

	cfg := &e.cfg.Mutation

	switch s := spec.(type) {
	case grammar.SIntSpec:
		v, ok := value.(grammar.SInt)
		if !ok {
			panicMismatch(spec, value)
		}
		i := int64(v)
		outcome := mutate.SignedInt(&i, s.Min, s.Max, e.rng, cfg)

		return grammar.SInt(i), outcome

	case grammar.UIntSpec:
		v, ok := value.(grammar.UInt)
		if !ok {
			panicMismatch(spec, value)
		}
		u := uint64(v)
		outcome := mutate.UnsignedInt(&u, s.Min, s.Max, e.rng, cfg)

		return grammar.UInt(u), outcome

	case grammar.BinarySpec:
		v, ok := value.(grammar.Binary)
		if !ok {
			panicMismatch(spec, value)
		}
		buf := []byte(v)
		outcome := mutate.Buffer(&buf, s.MinLen, s.MaxLen, e.rng, cfg)

		return grammar.Binary(buf), outcome

	default:
		panicMismatch(spec, value)
		return nil, mutate.Unchanged
	}
}

// AllocFuzzBuf resets and returns the scratch buffer for mutated encodings.
// Its content stays valid until the next call to AllocFuzzBuf.
func (e *Engine) AllocFuzzBuf() *bytes.Buffer {
	e.fuzzBuf.Reset()
	return &e.fuzzBuf
}

// FuzzBuf returns the current content of the fuzz scratch buffer.
func (e *Engine) FuzzBuf() []byte {
	return e.fuzzBuf.Bytes()
}

// AllocPostBuf resets and returns the scratch buffer for synthesized
// output. Its content stays valid until the next call to AllocPostBuf.
func (e *Engine) AllocPostBuf() *bytes.Buffer {
	e.postBuf.Reset()
	return &e.postBuf
}

// PostBuf returns the current content of the post-processing scratch buffer.
func (e *Engine) PostBuf() []byte {
	return e.postBuf.Bytes()
}

// DumpInput returns a lazy dump of in for trace logging.
func DumpInput(in *grammar.Input) fuzzutil.LogClosure {
	return fuzzutil.SpewLogClosure(in)
}

func (e *Engine) observe(op Op) {
	if e.cfg.Observer != nil {
		e.cfg.Observer.ObserveMutation(op)
	}
}

func (e *Engine) observeField(kind grammar.FieldKind,
	outcome mutate.Outcome) {

	if e.cfg.Observer != nil {
		e.cfg.Observer.ObserveField(kind, outcome)
	}
}

// panicMismatch reports a value whose kind does not match its spec. The
// decoder validates every input, so reaching this is a programming error.
func panicMismatch(spec grammar.FieldSpec, value grammar.FieldValue) {
	panic(fmt.Sprintf("grammar mismatch: %v value for %v spec",
		kindOf(value), spec.Kind()))
}

func kindOf(v grammar.FieldValue) string {
	if v == nil {
		return "nil"
	}

	return v.Kind().String()
}
