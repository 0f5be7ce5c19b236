// Package babynotes describes the command grammar of the babynotes target, a
// small note keeping service that reads commands from its standard input.
package babynotes

import (
	"math"

	"github.com/cmdfuzz/cmdfuzz/grammar"
)

// Opcodes of the babynotes commands.
const (
	CmdAddNote    int32 = 1
	CmdShowNote   int32 = 2
	CmdDeleteNote int32 = 3
	CmdEditNote   int32 = 4
	CmdReset      int32 = 5
	CmdCheck      int32 = 6
	CmdExit       int32 = 7
)

const (
	// NameSize is the size of the name header field.
	NameSize = 0x18

	// MottoSize is the size of the motto header field.
	MottoSize = 0x20

	// MaxNotes bounds the note slot indexes.
	MaxNotes = 5

	// MaxNoteSize bounds the size of a new note.
	MaxNoteSize = 256

	// MaxEditSize bounds the content written by an edit.
	MaxEditSize = 512
)

// Names of the built-in grammars.
const (
	// Name is the command-only grammar.
	Name = "babynotes"

	// HeaderName is the grammar whose inputs start with the user
	// profile header.
	HeaderName = "babynotes-header"
)

// Table returns the command table of the target.
func Table() (*grammar.Table, error) {
	return grammar.NewBuilder().
		AddSpec(grammar.CommandSpec{
			Opcode: CmdAddNote,
			Name:   "add_note",
			Fields: []grammar.FieldSpec{
				grammar.UIntSpec{Min: 0, Max: MaxNotes},
				grammar.UIntSpec{Min: 0, Max: MaxNoteSize},
			},
		}).
		AddSpec(grammar.CommandSpec{
			Opcode: CmdShowNote,
			Name:   "show_note",
			Fields: []grammar.FieldSpec{
				grammar.UIntSpec{Min: 0, Max: MaxNotes},
			},
		}).
		AddSpec(grammar.CommandSpec{
			Opcode: CmdDeleteNote,
			Name:   "delete_note",
			Fields: []grammar.FieldSpec{
				// The target does not reject negative
				// indexes.
				grammar.SIntSpec{Min: math.MinInt64, Max: 3},
			},
		}).
		AddSpec(grammar.CommandSpec{
			Opcode: CmdEditNote,
			Name:   "edit_note",
			Fields: []grammar.FieldSpec{
				grammar.UIntSpec{Min: 0, Max: 3},
				grammar.BinarySpec{MinLen: 1, MaxLen: MaxEditSize},
			},
		}).
		AddSpec(grammar.CommandSpec{Opcode: CmdReset, Name: "reset"}).
		AddSpec(grammar.CommandSpec{Opcode: CmdCheck, Name: "check"}).
		AddSpec(grammar.CommandSpec{Opcode: CmdExit, Name: "exit"}).
		Build()
}

// Header returns the user profile header layout: a name, a motto and an age.
func Header() []grammar.HeaderField {
	return []grammar.HeaderField{
		{
			Name: "name",
			Spec: grammar.BinarySpec{MinLen: NameSize,
				MaxLen: NameSize},
		},
		{
			Name: "motto",
			Spec: grammar.BinarySpec{MinLen: MottoSize,
				MaxLen: MottoSize},
		},
		{
			Name: "age",
			Spec: grammar.SIntSpec{Min: math.MinInt64,
				Max: math.MaxInt64},
		},
	}
}

// Grammar returns the babynotes grammar, with the profile header when
// withHeader is set.
func Grammar(withHeader bool) (*grammar.Grammar, error) {
	table, err := Table()
	if err != nil {
		return nil, err
	}

	name := Name
	opts := []grammar.Option{grammar.WithExitOpcode(CmdExit)}
	if withHeader {
		name = HeaderName
		opts = append(opts, grammar.WithHeader(Header()...))
	}

	return grammar.New(name, table, opts...)
}

// Lookup returns the built-in grammar registered under name.
func Lookup(name string) (*grammar.Grammar, bool, error) {
	switch name {
	case Name:
		g, err := Grammar(false)
		return g, true, err

	case HeaderName:
		g, err := Grammar(true)
		return g, true, err

	default:
		return nil, false, nil
	}
}
