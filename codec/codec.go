// Package codec converts inputs to and from their interchange bytes, and
// synthesizes the line oriented form replayed against the target.
//
// The interchange form is laid out as follows:
//
//	header:   one entry per header field, in layout order
//	            binary:    exactly the fixed size in raw bytes
//	            sint/uint: 8 bytes big endian
//	count:    4 bytes big endian
//	commands: count times [BigSize n][n bytes TLV stream]
//
// Each command's TLV stream holds the opcode as a uint32 record of type 0 and
// the field blob as a record of type 2. The blob is a BigSize field count and
// then, per field, one kind byte followed by 8 big endian bytes for integers
// or a BigSize length and the raw bytes for buffers.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/cmdfuzz/cmdfuzz/grammar"
	"github.com/lightningnetwork/lnd/tlv"
)

// Codec encodes and decodes inputs of one grammar. It holds no mutable state
// and is safe for concurrent use.
type Codec struct {
	g *grammar.Grammar
}

// New returns a codec for g.
func New(g *grammar.Grammar) *Codec {
	return &Codec{g: g}
}

// Grammar returns the grammar of the codec.
func (c *Codec) Grammar() *grammar.Grammar {
	return c.g
}

// EncodeBytes returns the interchange form of in.
func (c *Codec) EncodeBytes(in *grammar.Input) ([]byte, error) {
	var b bytes.Buffer
	if err := c.Encode(&b, in); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Encode writes the interchange form of in to w. The input must match the
// grammar, otherwise ErrInvalidInput is returned before anything is written.
func (c *Codec) Encode(w io.Writer, in *grammar.Input) error {
	if err := c.g.Validate(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if uint64(len(in.Commands)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d commands", ErrInvalidInput,
			len(in.Commands))
	}

	var buf [8]byte
	for _, v := range in.Header {
		if err := encodeHeaderValue(w, v, &buf); err != nil {
			return err
		}
	}

	err := tlv.EUint32T(w, uint32(len(in.Commands)), &buf)
	if err != nil {
		return err
	}

	var stream bytes.Buffer
	for i := range in.Commands {
		stream.Reset()
		if err := encodeCommand(&stream, &in.Commands[i]); err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}

		err := tlv.WriteVarInt(w, uint64(stream.Len()), &buf)
		if err != nil {
			return err
		}
		if _, err := w.Write(stream.Bytes()); err != nil {
			return err
		}
	}

	return nil
}

// encodeHeaderValue writes a header value without any framing.
func encodeHeaderValue(w io.Writer, v grammar.FieldValue,
	buf *[8]byte) error {

	switch v := v.(type) {
	case grammar.Binary:
		_, err := w.Write(v)
		return err

	case grammar.SInt:
		return tlv.EUint64T(w, uint64(v), buf)

	case grammar.UInt:
		return tlv.EUint64T(w, uint64(v), buf)

	default:
		return ErrInvalidInput
	}
}

// encodeCommand writes the TLV stream of cmd.
func encodeCommand(w io.Writer, cmd *grammar.Command) error {
	opcode := uint32(cmd.Opcode)
	fields := cmd.Fields
	if fields == nil {
		fields = []grammar.FieldValue{}
	}

	stream, err := newCommandStream(&opcode, &fields)
	if err != nil {
		return err
	}

	return stream.Encode(w)
}

// Decode reads r to its end and decodes the bytes. Read failures are returned
// as is, malformed bytes as a *DecodeError.
func (c *Codec) Decode(r io.Reader) (*grammar.Input, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return c.DecodeBytes(data)
}

// DecodeBytes decodes an interchange byte string. On success the returned
// input matches the grammar. On failure the error is a *DecodeError and no
// input is returned.
func (c *Codec) DecodeBytes(data []byte) (*grammar.Input, error) {
	br := bytes.NewReader(data)
	fail := func(err error) (*grammar.Input, error) {
		return nil, &DecodeError{
			Offset: len(data) - br.Len(),
			Err:    err,
		}
	}

	var buf [8]byte

	var header []grammar.FieldValue
	if c.g.HasHeader() {
		header = make([]grammar.FieldValue, len(c.g.Header))
		for i, field := range c.g.Header {
			v, err := decodeHeaderValue(br, field.Spec, &buf)
			if err != nil {
				return fail(fmt.Errorf("header field %s: %w",
					field.Name, err))
			}
			header[i] = v
		}
	}

	var count uint32
	if err := tlv.DUint32(br, &count, &buf, 4); err != nil {
		return fail(fmt.Errorf("command count: %w", truncated(err)))
	}
	if uint64(count) > uint64(br.Len()) {
		return fail(fmt.Errorf("command count %d: %w", count,
			ErrLengthOverflow))
	}

	commands := make([]grammar.Command, 0, count)
	for i := uint32(0); i < count; i++ {
		n, err := tlv.ReadVarInt(br, &buf)
		if err != nil {
			return fail(fmt.Errorf("command %d: %w", i,
				truncated(err)))
		}
		if n > uint64(br.Len()) {
			return fail(fmt.Errorf("command %d: %w", i,
				ErrLengthOverflow))
		}

		chunk := make([]byte, n)
		if _, err := io.ReadFull(br, chunk); err != nil {
			return fail(fmt.Errorf("command %d: %w", i,
				truncated(err)))
		}

		cmd, err := decodeCommand(chunk)
		if err != nil {
			return fail(fmt.Errorf("command %d: %w", i, err))
		}
		commands = append(commands, cmd)
	}

	if br.Len() != 0 {
		return fail(ErrTrailingBytes)
	}

	in := &grammar.Input{
		Header:   header,
		Commands: commands,
	}
	if err := c.g.Validate(in); err != nil {
		return fail(err)
	}

	log.Tracef("Decoded input with %d commands from %d bytes",
		len(commands), len(data))

	return in, nil
}

// decodeHeaderValue reads the header value described by spec.
func decodeHeaderValue(br *bytes.Reader, spec grammar.FieldSpec,
	buf *[8]byte) (grammar.FieldValue, error) {

	switch s := spec.(type) {
	case grammar.BinarySpec:
		if s.MinLen > br.Len() {
			return nil, ErrTruncated
		}
		b := make([]byte, s.MinLen)
		if _, err := io.ReadFull(br, b); err != nil {
			return nil, truncated(err)
		}

		return grammar.Binary(b), nil

	case grammar.SIntSpec:
		var v uint64
		if err := tlv.DUint64(br, &v, buf, 8); err != nil {
			return nil, truncated(err)
		}

		return grammar.SInt(int64(v)), nil

	case grammar.UIntSpec:
		var v uint64
		if err := tlv.DUint64(br, &v, buf, 8); err != nil {
			return nil, truncated(err)
		}

		return grammar.UInt(v), nil

	default:
		return nil, fmt.Errorf("unknown header spec %T", spec)
	}
}

// decodeCommand parses one command TLV stream. Both records must be present
// and no other record is accepted.
func decodeCommand(chunk []byte) (grammar.Command, error) {
	if err := checkRecords(chunk); err != nil {
		return grammar.Command{}, err
	}

	var (
		opcode uint32
		fields []grammar.FieldValue
	)
	stream, err := newCommandStream(&opcode, &fields)
	if err != nil {
		return grammar.Command{}, err
	}

	if err := stream.Decode(bytes.NewReader(chunk)); err != nil {
		return grammar.Command{}, truncated(err)
	}

	return grammar.Command{
		Opcode: int32(opcode),
		Fields: fields,
	}, nil
}

// checkRecords walks the record headers of a command stream. Every record
// must be a known type whose length fits the chunk, and both known records
// must be present. The stream decoder only sees chunks that pass.
func checkRecords(chunk []byte) error {
	var (
		buf                  [8]byte
		sawOpcode, sawFields bool
	)

	br := bytes.NewReader(chunk)
	for br.Len() > 0 {
		typ, err := tlv.ReadVarInt(br, &buf)
		if err != nil {
			return truncated(err)
		}

		length, err := tlv.ReadVarInt(br, &buf)
		if err != nil {
			return truncated(err)
		}
		if length > uint64(br.Len()) {
			return fmt.Errorf("record %d: %w", typ,
				ErrLengthOverflow)
		}

		switch tlv.Type(typ) {
		case typeOpcode:
			sawOpcode = true

		case typeFields:
			sawFields = true

		default:
			return fmt.Errorf("%w: type %d", ErrUnknownRecord, typ)
		}

		if _, err := br.Seek(int64(length), io.SeekCurrent); err != nil {
			return err
		}
	}

	switch {
	case !sawOpcode:
		return fmt.Errorf("%w: type %d", ErrMissingRecord, typeOpcode)

	case !sawFields:
		return fmt.Errorf("%w: type %d", ErrMissingRecord, typeFields)
	}

	return nil
}
