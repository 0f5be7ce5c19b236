package grammar

import (
	"errors"
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// ErrBadExitOpcode is returned when the exit opcode is missing from the table
// or names a command that carries fields.
var ErrBadExitOpcode = errors.New("exit opcode must name a field-less " +
	"command of the table")

// Grammar bundles everything needed to generate, mutate and serialize the
// inputs of one target: its command table, an optional header layout and an
// optional exit command appended during post-processing.
type Grammar struct {
	// Name identifies the grammar in logs.
	Name string

	// Table holds the command specs.
	Table *Table

	// Header is the header layout. It is empty when inputs carry no
	// header.
	Header []HeaderField

	// ExitOpcode is the opcode of the command that terminates a session
	// of the target.
	ExitOpcode fn.Option[int32]
}

// Option configures optional parts of a Grammar.
type Option func(*Grammar)

// WithHeader sets the header layout of the grammar.
func WithHeader(layout ...HeaderField) Option {
	return func(g *Grammar) {
		g.Header = append([]HeaderField(nil), layout...)
	}
}

// WithExitOpcode sets the opcode appended by post-processing.
func WithExitOpcode(opcode int32) Option {
	return func(g *Grammar) {
		g.ExitOpcode = fn.Some(opcode)
	}
}

// New creates a grammar over table and checks that the options are
// consistent with it.
func New(name string, table *Table, opts ...Option) (*Grammar, error) {
	if table == nil {
		return nil, ErrEmptyTable
	}

	g := &Grammar{
		Name:  name,
		Table: table,
	}
	for _, opt := range opts {
		opt(g)
	}

	if err := validateHeader(g.Header); err != nil {
		return nil, err
	}

	var exitErr error
	g.ExitOpcode.WhenSome(func(opcode int32) {
		spec := table.Lookup(opcode)
		if spec.IsNone() || len(spec.UnsafeFromSome().Fields) != 0 {
			exitErr = fmt.Errorf("%w: %d", ErrBadExitOpcode, opcode)
		}
	})
	if exitErr != nil {
		return nil, exitErr
	}

	log.Debugf("Loaded grammar %q: %d commands, %d header fields",
		name, table.Len(), len(g.Header))

	return g, nil
}

// HasHeader reports whether inputs of this grammar carry a header.
func (g *Grammar) HasHeader() bool {
	return len(g.Header) != 0
}

// ExitCommand returns the exit command, if the grammar has one.
func (g *Grammar) ExitCommand() fn.Option[Command] {
	return fn.MapOption(func(opcode int32) Command {
		return Command{
			Opcode: opcode,
			Fields: []FieldValue{},
		}
	})(g.ExitOpcode)
}

// ZeroHeader returns a header whose fields are the zero values of the
// layout.
func (g *Grammar) ZeroHeader() []FieldValue {
	if !g.HasHeader() {
		return nil
	}

	header := make([]FieldValue, len(g.Header))
	for i, field := range g.Header {
		header[i] = ZeroValue(field.Spec)
	}

	return header
}

// SeedInput returns the initial input of a corpus: a zero header followed by
// the exit command alone, or a single generated command when the grammar has
// no exit command.
func (g *Grammar) SeedInput() *Input {
	in := &Input{
		Header: g.ZeroHeader(),
	}

	cmd := g.ExitCommand().UnwrapOrFunc(func() Command {
		first := g.Table.At(0)
		fields := make([]FieldValue, len(first.Fields))
		for i, spec := range first.Fields {
			fields[i] = ZeroValue(spec)
		}

		return Command{Opcode: first.Opcode, Fields: fields}
	})
	in.Commands = []Command{cmd}

	return in
}

// Validate checks the header of in against the layout and every command
// against the table.
func (g *Grammar) Validate(in *Input) error {
	specs := make([]FieldSpec, len(g.Header))
	for i, field := range g.Header {
		specs[i] = field.Spec
	}
	if err := validateValues(specs, in.Header); err != nil {
		return fmt.Errorf("header: %w", err)
	}

	return g.Table.Validate(in)
}
