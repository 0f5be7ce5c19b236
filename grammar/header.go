package grammar

import (
	"errors"
	"fmt"
)

// ErrHeaderNotFixed is returned when a header byte field has a variable
// length. Header buffers are laid out back to back without a length prefix,
// so their size must be known up front.
var ErrHeaderNotFixed = errors.New("header binary field must have a " +
	"fixed size")

// HeaderField is one entry of a header layout.
type HeaderField struct {
	// Name is used in grammar files and logs only.
	Name string

	// Spec is the domain of the field. Binary specs must be fixed size.
	Spec FieldSpec
}

// validateHeader checks a header layout.
func validateHeader(layout []HeaderField) error {
	for i, field := range layout {
		if field.Spec == nil {
			return fmt.Errorf("header field %d (%s) has no spec", i,
				field.Name)
		}
		if err := field.Spec.Validate(); err != nil {
			return fmt.Errorf("header field %s: %w", field.Name,
				err)
		}

		b, ok := field.Spec.(BinarySpec)
		if ok && !b.Fixed() {
			return fmt.Errorf("header field %s: %w", field.Name,
				ErrHeaderNotFixed)
		}
	}

	return nil
}
