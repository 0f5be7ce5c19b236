package grammar

import (
	"errors"
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// ErrDuplicateOpcode is returned when two command specs share an
	// opcode.
	ErrDuplicateOpcode = errors.New("duplicate opcode")

	// ErrEmptyTable is returned when a table is built without any command
	// spec.
	ErrEmptyTable = errors.New("command table is empty")

	// ErrUnknownOpcode is returned when a command's opcode has no spec in
	// the table.
	ErrUnknownOpcode = errors.New("unknown opcode")

	// ErrArityMismatch is returned when a command carries a different
	// number of fields than its spec.
	ErrArityMismatch = errors.New("field count mismatch")

	// ErrKindMismatch is returned when a field value's kind differs from
	// the kind of its spec.
	ErrKindMismatch = errors.New("field kind mismatch")

	// ErrOutOfDomain is returned when a field value lies outside the
	// bounds of its spec.
	ErrOutOfDomain = errors.New("field value out of domain")
)

// Builder collects command specs for a Table. The first invalid spec is
// remembered and reported by Build.
type Builder struct {
	specs []CommandSpec
	err   error
}

// NewBuilder returns an empty table builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddSpec appends a command spec to the table under construction. Specs with
// inverted field bounds or a duplicate opcode make Build fail.
func (b *Builder) AddSpec(spec CommandSpec) *Builder {
	if b.err != nil {
		return b
	}

	for i, field := range spec.Fields {
		if err := field.Validate(); err != nil {
			b.err = fmt.Errorf("command %v field %d: %w", &spec, i,
				err)
			return b
		}
	}
	for i := range b.specs {
		if b.specs[i].Opcode == spec.Opcode {
			b.err = fmt.Errorf("%w: %v", ErrDuplicateOpcode, &spec)
			return b
		}
	}

	spec.Fields = append([]FieldSpec(nil), spec.Fields...)
	b.specs = append(b.specs, spec)

	return b
}

// Build returns the immutable table, or the first construction error.
func (b *Builder) Build() (*Table, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.specs) == 0 {
		return nil, ErrEmptyTable
	}

	t := &Table{
		specs:  append([]CommandSpec(nil), b.specs...),
		byCode: make(map[int32]int, len(b.specs)),
	}
	for i, spec := range t.specs {
		t.byCode[spec.Opcode] = i
	}

	log.Debugf("Built command table with %d specs", len(t.specs))

	return t, nil
}

// Table is the immutable set of command specs of a protocol, in insertion
// order. It is safe for concurrent reads.
type Table struct {
	specs  []CommandSpec
	byCode map[int32]int
}

// Len returns the number of command specs.
func (t *Table) Len() int {
	return len(t.specs)
}

// At returns the i-th command spec in insertion order.
func (t *Table) At(i int) *CommandSpec {
	return &t.specs[i]
}

// Specs returns a copy of all command specs in insertion order.
func (t *Table) Specs() []CommandSpec {
	return append([]CommandSpec(nil), t.specs...)
}

// Lookup returns the spec for opcode, if any.
func (t *Table) Lookup(opcode int32) fn.Option[*CommandSpec] {
	idx, ok := t.byCode[opcode]
	if !ok {
		return fn.None[*CommandSpec]()
	}

	return fn.Some(&t.specs[idx])
}

// MustLookup returns the spec for opcode. A missing spec means the caller
// holds a command that never came from this grammar, so it panics.
func (t *Table) MustLookup(opcode int32) *CommandSpec {
	return t.Lookup(opcode).UnwrapOrFunc(func() *CommandSpec {
		panic(fmt.Sprintf("grammar mismatch: %v %d", ErrUnknownOpcode,
			opcode))
	})
}

// ValidateCommand checks that cmd matches its spec: the opcode exists, the
// arity and the kinds agree position by position, and every value lies in
// its domain.
func (t *Table) ValidateCommand(cmd *Command) error {
	spec, err := t.Lookup(cmd.Opcode).UnwrapOrErr(
		fmt.Errorf("%w %d", ErrUnknownOpcode, cmd.Opcode),
	)
	if err != nil {
		return err
	}

	return validateValues(spec.Fields, cmd.Fields)
}

// Validate checks every command of the input against the table.
func (t *Table) Validate(in *Input) error {
	for i := range in.Commands {
		if err := t.ValidateCommand(&in.Commands[i]); err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}
	}

	return nil
}

// validateValues checks values against specs position by position.
func validateValues(specs []FieldSpec, values []FieldValue) error {
	if len(specs) != len(values) {
		return fmt.Errorf("%w: want %d, got %d", ErrArityMismatch,
			len(specs), len(values))
	}

	for i, spec := range specs {
		value := values[i]
		switch {
		case value == nil || value.Kind() != spec.Kind():
			return fmt.Errorf("field %d: %w: want %v", i,
				ErrKindMismatch, spec.Kind())

		case !spec.Contains(value):
			return fmt.Errorf("field %d: %w", i, ErrOutOfDomain)
		}
	}

	return nil
}
