package grammar

import (
	"fmt"

	"github.com/cmdfuzz/cmdfuzz/fuzzrand"
)

// CommandSpec describes one command of the protocol: its opcode and the
// ordered list of fields it carries.
type CommandSpec struct {
	// Opcode identifies the command on the wire.
	Opcode int32

	// Name is a human readable name used in grammar files and logs.
	Name string

	// Fields are the specs of the command's fields, in order.
	Fields []FieldSpec
}

// String returns the name of the command, or its opcode when it has none.
func (c *CommandSpec) String() string {
	if c.Name != "" {
		return fmt.Sprintf("%s(%d)", c.Name, c.Opcode)
	}

	return fmt.Sprintf("opcode(%d)", c.Opcode)
}

// Instantiate draws a new command whose fields are uniform over their
// domains. Integer fields are drawn from their inclusive bounds, buffers get
// a uniform length and then uniform bytes.
func (c *CommandSpec) Instantiate(rng fuzzrand.Rand) Command {
	fields := make([]FieldValue, len(c.Fields))
	for i, spec := range c.Fields {
		fields[i] = instantiateField(spec, rng)
	}

	return Command{
		Opcode: c.Opcode,
		Fields: fields,
	}
}

// instantiateField draws one value uniformly from the domain of spec.
func instantiateField(spec FieldSpec, rng fuzzrand.Rand) FieldValue {
	switch s := spec.(type) {
	case SIntSpec:
		return SInt(rng.Int64Range(s.Min, s.Max))

	case UIntSpec:
		return UInt(rng.Uint64Range(s.Min, s.Max))

	case BinarySpec:
		n := rng.IntN(s.MaxLen-s.MinLen+1) + s.MinLen
		buf := make([]byte, n)
		rng.Fill(buf)

		return Binary(buf)

	default:
		panic(fmt.Sprintf("unknown field spec %T", spec))
	}
}

// ZeroValue returns the value closest to zero inside the domain of spec:
// zero clamped into integer bounds, or MinLen zero bytes for buffers.
func ZeroValue(spec FieldSpec) FieldValue {
	switch s := spec.(type) {
	case SIntSpec:
		switch {
		case s.Min > 0:
			return SInt(s.Min)
		case s.Max < 0:
			return SInt(s.Max)
		default:
			return SInt(0)
		}

	case UIntSpec:
		return UInt(s.Min)

	case BinarySpec:
		return Binary(make([]byte, s.MinLen))

	default:
		panic(fmt.Sprintf("unknown field spec %T", spec))
	}
}

// Command is one generated instance of a CommandSpec.
type Command struct {
	Opcode int32
	Fields []FieldValue
}

// Clone returns a deep copy of the command.
func (c Command) Clone() Command {
	return Command{
		Opcode: c.Opcode,
		Fields: cloneValues(c.Fields),
	}
}

// Input is the unit that is generated, mutated and serialized: an optional
// fixed-layout header followed by an ordered sequence of commands. The order
// of commands is significant, it is replayed against the target as is.
type Input struct {
	// Header holds one value per field of the grammar's header layout. It
	// is empty when the grammar has no header.
	Header []FieldValue

	// Commands is the command sequence.
	Commands []Command
}

// Clone returns a deep copy of the input.
func (in *Input) Clone() *Input {
	out := &Input{
		Header: cloneValues(in.Header),
	}
	if in.Commands != nil {
		out.Commands = make([]Command, len(in.Commands))
		for i, cmd := range in.Commands {
			out.Commands[i] = cmd.Clone()
		}
	}

	return out
}
