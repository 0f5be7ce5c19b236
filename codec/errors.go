package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated is returned when the input ends in the middle of an
	// element.
	ErrTruncated = errors.New("truncated input")

	// ErrTrailingBytes is returned when bytes remain after the last
	// command.
	ErrTrailingBytes = errors.New("trailing bytes after last command")

	// ErrLengthOverflow is returned when a count or length prefix claims
	// more data than the input holds.
	ErrLengthOverflow = errors.New("length prefix exceeds input")

	// ErrMissingRecord is returned when a command stream lacks the opcode
	// or fields record.
	ErrMissingRecord = errors.New("command record missing")

	// ErrUnknownRecord is returned when a command stream carries a record
	// type this codec does not know.
	ErrUnknownRecord = errors.New("unknown command record")

	// ErrBadFieldKind is returned for a field kind byte outside the known
	// kinds.
	ErrBadFieldKind = errors.New("unknown field kind")

	// ErrInvalidInput is returned by the encoder for inputs that do not
	// match the grammar.
	ErrInvalidInput = errors.New("input does not match grammar")
)

// DecodeError reports why a byte string could not be decoded into an input.
// A decode failure never yields a partial input.
type DecodeError struct {
	// Offset is the position in the byte string where decoding stopped.
	Offset int

	// Err is the underlying cause.
	Err error
}

// Error returns a description including the offset.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode input at offset %d: %v", e.Offset, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
