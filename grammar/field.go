package grammar

import (
	"errors"
	"fmt"

	"github.com/lightningnetwork/lnd/tlv"
)

// MaxBinaryLen is the largest MaxLen a buffer field may declare. It matches
// the largest record the tlv stream decoder accepts from a peer.
const MaxBinaryLen = tlv.MaxRecordSize

var (
	// ErrInvertedBounds is returned when a field spec has its lower bound
	// above its upper bound.
	ErrInvertedBounds = errors.New("inverted field bounds")

	// ErrBinaryTooLarge is returned when a buffer field allows more than
	// MaxBinaryLen bytes.
	ErrBinaryTooLarge = errors.New("binary field too large")
)

// FieldKind identifies the variant of a field spec or field value.
type FieldKind uint8

const (
	// KindSInt is a bounded signed 64-bit integer.
	KindSInt FieldKind = iota

	// KindUInt is a bounded unsigned 64-bit integer.
	KindUInt

	// KindBinary is a byte buffer with bounded length.
	KindBinary
)

// String returns the name used for the kind in grammar files and logs.
func (k FieldKind) String() string {
	switch k {
	case KindSInt:
		return "sint"
	case KindUInt:
		return "uint"
	case KindBinary:
		return "binary"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// FieldSpec declares the type and valid domain of one command field. The set
// of implementations is closed: SIntSpec, UIntSpec and BinarySpec.
type FieldSpec interface {
	// Kind returns the variant of the spec.
	Kind() FieldKind

	// Validate returns ErrInvertedBounds if the spec's bounds are
	// inverted, or ErrBinaryTooLarge for oversized buffers.
	Validate() error

	// Contains reports whether v has the matching kind and lies within
	// the spec's domain.
	Contains(v FieldValue) bool

	fieldSpec()
}

// SIntSpec is the domain [Min, Max] of a signed integer field.
type SIntSpec struct {
	Min int64
	Max int64
}

// Kind returns KindSInt.
func (s SIntSpec) Kind() FieldKind { return KindSInt }

// Validate checks Min <= Max.
func (s SIntSpec) Validate() error {
	if s.Min > s.Max {
		return fmt.Errorf("%w: sint [%d, %d]", ErrInvertedBounds,
			s.Min, s.Max)
	}

	return nil
}

// Contains reports whether v is an SInt within [Min, Max].
func (s SIntSpec) Contains(v FieldValue) bool {
	i, ok := v.(SInt)

	return ok && int64(i) >= s.Min && int64(i) <= s.Max
}

func (SIntSpec) fieldSpec() {}

// UIntSpec is the domain [Min, Max] of an unsigned integer field.
type UIntSpec struct {
	Min uint64
	Max uint64
}

// Kind returns KindUInt.
func (s UIntSpec) Kind() FieldKind { return KindUInt }

// Validate checks Min <= Max.
func (s UIntSpec) Validate() error {
	if s.Min > s.Max {
		return fmt.Errorf("%w: uint [%d, %d]", ErrInvertedBounds,
			s.Min, s.Max)
	}

	return nil
}

// Contains reports whether v is a UInt within [Min, Max].
func (s UIntSpec) Contains(v FieldValue) bool {
	u, ok := v.(UInt)

	return ok && uint64(u) >= s.Min && uint64(u) <= s.Max
}

func (UIntSpec) fieldSpec() {}

// BinarySpec bounds the length of a byte buffer field to [MinLen, MaxLen].
type BinarySpec struct {
	MinLen int
	MaxLen int
}

// Kind returns KindBinary.
func (s BinarySpec) Kind() FieldKind { return KindBinary }

// Validate checks 0 <= MinLen <= MaxLen <= MaxBinaryLen.
func (s BinarySpec) Validate() error {
	switch {
	case s.MinLen < 0 || s.MinLen > s.MaxLen:
		return fmt.Errorf("%w: binary len [%d, %d]", ErrInvertedBounds,
			s.MinLen, s.MaxLen)

	case s.MaxLen > MaxBinaryLen:
		return fmt.Errorf("%w: max len %d above %d", ErrBinaryTooLarge,
			s.MaxLen, MaxBinaryLen)
	}

	return nil
}

// Contains reports whether v is a Binary whose length lies in
// [MinLen, MaxLen].
func (s BinarySpec) Contains(v FieldValue) bool {
	b, ok := v.(Binary)

	return ok && len(b) >= s.MinLen && len(b) <= s.MaxLen
}

// Fixed reports whether the buffer always has the same length.
func (s BinarySpec) Fixed() bool {
	return s.MinLen == s.MaxLen
}

func (BinarySpec) fieldSpec() {}
