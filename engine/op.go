package engine

import (
	"fmt"

	"github.com/cmdfuzz/cmdfuzz/grammar"
	"github.com/cmdfuzz/cmdfuzz/mutate"
)

// Op is the mutation category applied to an input.
type Op uint8

const (
	// AddCommand inserted a freshly generated command.
	AddCommand Op = iota

	// RemoveCommand dropped one command.
	RemoveCommand

	// MutateCommand changed one field of an existing command, possibly
	// none when the command has no fields.
	MutateCommand

	// MutateHeader changed one header field.
	MutateHeader
)

// String returns a short lower case name for logs and metrics labels.
func (o Op) String() string {
	switch o {
	case AddCommand:
		return "add"
	case RemoveCommand:
		return "remove"
	case MutateCommand:
		return "mutate"
	case MutateHeader:
		return "header"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Observer is notified of every mutation the engine performs.
type Observer interface {
	// ObserveMutation is called once per mutation with its category.
	ObserveMutation(op Op)

	// ObserveField is called whenever a field mutator ran.
	ObserveField(kind grammar.FieldKind, outcome mutate.Outcome)
}
