package grammar

import "bytes"

// FieldValue is the concrete value of one command field. The variant always
// matches the kind of the FieldSpec at the same position.
type FieldValue interface {
	// Kind returns the variant of the value.
	Kind() FieldKind

	fieldValue()
}

// SInt is the value of a signed integer field.
type SInt int64

// Kind returns KindSInt.
func (SInt) Kind() FieldKind { return KindSInt }

func (SInt) fieldValue() {}

// UInt is the value of an unsigned integer field.
type UInt uint64

// Kind returns KindUInt.
func (UInt) Kind() FieldKind { return KindUInt }

func (UInt) fieldValue() {}

// Binary is the value of a byte buffer field.
type Binary []byte

// Kind returns KindBinary.
func (Binary) Kind() FieldKind { return KindBinary }

func (Binary) fieldValue() {}

// cloneValue returns a copy of v that shares no memory with it.
func cloneValue(v FieldValue) FieldValue {
	if b, ok := v.(Binary); ok {
		return Binary(bytes.Clone(b))
	}

	return v
}

// cloneValues deep copies a slice of values.
func cloneValues(vs []FieldValue) []FieldValue {
	if vs == nil {
		return nil
	}

	out := make([]FieldValue, len(vs))
	for i, v := range vs {
		out[i] = cloneValue(v)
	}

	return out
}
