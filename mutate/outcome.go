package mutate

import "fmt"

// Outcome reports which branch a field mutator took.
type Outcome uint8

const (
	// Unchanged means the value could not move, either because its
	// domain is a single value or the buffer is empty.
	Unchanged Outcome = iota

	// Regenerated means an integer was redrawn from its whole domain.
	Regenerated

	// SteppedDown means an integer walked towards its minimum.
	SteppedDown

	// SteppedUp means an integer walked towards its maximum.
	SteppedUp

	// Extended means random bytes were appended to a buffer.
	Extended

	// Spliced means a contiguous span was removed from a buffer.
	Spliced

	// ByteDelta means a signed delta was added to one byte.
	ByteDelta
)

// String returns a short lower case name for metrics labels.
func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Regenerated:
		return "regen"
	case SteppedDown:
		return "step_down"
	case SteppedUp:
		return "step_up"
	case Extended:
		return "extend"
	case Spliced:
		return "splice"
	case ByteDelta:
		return "byte_delta"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}
