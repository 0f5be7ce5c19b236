package codec

import (
	"bytes"
	"errors"
	"io"

	"github.com/cmdfuzz/cmdfuzz/grammar"
	"github.com/lightningnetwork/lnd/tlv"
)

const (
	// typeOpcode is the record carrying the command opcode.
	typeOpcode tlv.Type = 0

	// typeFields is the record carrying the field values.
	typeFields tlv.Type = 2
)

// newCommandStream returns the TLV stream of one command, bound to opcode
// and fields.
func newCommandStream(opcode *uint32,
	fields *[]grammar.FieldValue) (*tlv.Stream, error) {

	return tlv.NewStream(
		tlv.MakePrimitiveRecord(typeOpcode, opcode),
		tlv.MakeDynamicRecord(
			typeFields, fields, fieldsSize(fields), fieldsEncoder,
			fieldsDecoder,
		),
	)
}

// fieldsSize returns the encoded size of the fields blob.
func fieldsSize(fields *[]grammar.FieldValue) tlv.SizeFunc {
	return func() uint64 {
		size := tlv.VarIntSize(uint64(len(*fields)))
		for _, field := range *fields {
			// Kind byte.
			size++

			switch v := field.(type) {
			case grammar.SInt, grammar.UInt:
				size += 8

			case grammar.Binary:
				size += tlv.VarIntSize(uint64(len(v)))
				size += uint64(len(v))
			}
		}

		return size
	}
}

// fieldsEncoder writes the fields blob: a BigSize count followed by one kind
// byte and payload per field.
func fieldsEncoder(w io.Writer, val any, buf *[8]byte) error {
	t, ok := val.(*[]grammar.FieldValue)
	if !ok {
		return tlv.NewTypeForEncodingErr(val, "[]grammar.FieldValue")
	}

	if err := tlv.WriteVarInt(w, uint64(len(*t)), buf); err != nil {
		return err
	}

	for _, field := range *t {
		if err := encodeValue(w, field, buf); err != nil {
			return err
		}
	}

	return nil
}

// encodeValue writes one kind byte and the payload of v.
func encodeValue(w io.Writer, v grammar.FieldValue, buf *[8]byte) error {
	if v == nil {
		return ErrInvalidInput
	}

	buf[0] = byte(v.Kind())
	if _, err := w.Write(buf[:1]); err != nil {
		return err
	}

	switch v := v.(type) {
	case grammar.SInt:
		return tlv.EUint64T(w, uint64(v), buf)

	case grammar.UInt:
		return tlv.EUint64T(w, uint64(v), buf)

	case grammar.Binary:
		err := tlv.WriteVarInt(w, uint64(len(v)), buf)
		if err != nil {
			return err
		}
		_, err = w.Write(v)

		return err

	default:
		return ErrInvalidInput
	}
}

// fieldsDecoder reads the fields blob of exactly l bytes. Every count and
// length is checked against the bytes left in the record before anything is
// allocated.
func fieldsDecoder(r io.Reader, val any, buf *[8]byte, l uint64) error {
	t, ok := val.(*[]grammar.FieldValue)
	if !ok {
		return tlv.NewTypeForDecodingErr(
			val, "[]grammar.FieldValue", l, l,
		)
	}

	blob, err := io.ReadAll(io.LimitReader(r, int64(l)))
	if err != nil {
		return err
	}
	if uint64(len(blob)) != l {
		return ErrTruncated
	}

	br := bytes.NewReader(blob)
	count, err := tlv.ReadVarInt(br, buf)
	if err != nil {
		return truncated(err)
	}
	if count > uint64(br.Len()) {
		return ErrLengthOverflow
	}

	fields := make([]grammar.FieldValue, 0, count)
	for i := uint64(0); i < count; i++ {
		field, err := decodeValue(br, buf)
		if err != nil {
			return err
		}
		fields = append(fields, field)
	}

	if br.Len() != 0 {
		return ErrTrailingBytes
	}

	*t = fields

	return nil
}

// decodeValue reads one kind byte and its payload.
func decodeValue(br *bytes.Reader, buf *[8]byte) (grammar.FieldValue, error) {
	kind, err := br.ReadByte()
	if err != nil {
		return nil, truncated(err)
	}

	switch grammar.FieldKind(kind) {
	case grammar.KindSInt:
		var v uint64
		if err := tlv.DUint64(br, &v, buf, 8); err != nil {
			return nil, truncated(err)
		}

		return grammar.SInt(int64(v)), nil

	case grammar.KindUInt:
		var v uint64
		if err := tlv.DUint64(br, &v, buf, 8); err != nil {
			return nil, truncated(err)
		}

		return grammar.UInt(v), nil

	case grammar.KindBinary:
		n, err := tlv.ReadVarInt(br, buf)
		if err != nil {
			return nil, truncated(err)
		}
		if n > uint64(br.Len()) {
			return nil, ErrLengthOverflow
		}

		b := make([]byte, n)
		if _, err := io.ReadFull(br, b); err != nil {
			return nil, truncated(err)
		}

		return grammar.Binary(b), nil

	default:
		return nil, ErrBadFieldKind
	}
}

// truncated maps the end of input errors of the readers to ErrTruncated.
func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}

	return err
}
