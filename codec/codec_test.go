package codec

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/cmdfuzz/cmdfuzz/grammar"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// testGrammar returns a grammar with every field kind and, optionally, a
// header with a 4 byte name and a signed age.
func testGrammar(t require.TestingT, header bool) *grammar.Grammar {
	table, err := grammar.NewBuilder().
		AddSpec(grammar.CommandSpec{
			Opcode: 1,
			Fields: []grammar.FieldSpec{
				grammar.UIntSpec{Min: 0, Max: 5},
				grammar.UIntSpec{Min: 0, Max: 256},
			},
		}).
		AddSpec(grammar.CommandSpec{
			Opcode: 3,
			Fields: []grammar.FieldSpec{
				grammar.SIntSpec{Min: math.MinInt64, Max: 3},
			},
		}).
		AddSpec(grammar.CommandSpec{
			Opcode: 4,
			Fields: []grammar.FieldSpec{
				grammar.UIntSpec{Min: 0, Max: 3},
				grammar.BinarySpec{MinLen: 1, MaxLen: 512},
			},
		}).
		AddSpec(grammar.CommandSpec{
			Opcode: -2,
			Fields: []grammar.FieldSpec{
				grammar.UIntSpec{Min: 0, Max: math.MaxUint64},
				grammar.BinarySpec{MinLen: 0, MaxLen: 300},
			},
		}).
		AddSpec(grammar.CommandSpec{Opcode: 7}).
		Build()
	require.NoError(t, err)

	opts := []grammar.Option{grammar.WithExitOpcode(7)}
	if header {
		opts = append(opts, grammar.WithHeader(
			grammar.HeaderField{
				Name: "name",
				Spec: grammar.BinarySpec{MinLen: 4, MaxLen: 4},
			},
			grammar.HeaderField{
				Name: "age",
				Spec: grammar.SIntSpec{
					Min: math.MinInt64, Max: math.MaxInt64,
				},
			},
		))
	}

	g, err := grammar.New("codec", table, opts...)
	require.NoError(t, err)

	return g
}

// drawValue draws a value anywhere in the domain of spec, boundaries
// included.
func drawValue(t *rapid.T, spec grammar.FieldSpec,
	label string) grammar.FieldValue {

	switch s := spec.(type) {
	case grammar.SIntSpec:
		return grammar.SInt(rapid.Int64Range(s.Min, s.Max).Draw(t, label))

	case grammar.UIntSpec:
		return grammar.UInt(
			rapid.Uint64Range(s.Min, s.Max).Draw(t, label),
		)

	case grammar.BinarySpec:
		return grammar.Binary(rapid.SliceOfN(
			rapid.Byte(), s.MinLen, s.MaxLen,
		).Draw(t, label))

	default:
		t.Fatalf("unknown spec %T", spec)
		return nil
	}
}

// drawInput draws a valid input of g.
func drawInput(t *rapid.T, g *grammar.Grammar) *grammar.Input {
	in := &grammar.Input{}
	for _, field := range g.Header {
		in.Header = append(in.Header, drawValue(t, field.Spec, field.Name))
	}

	n := rapid.IntRange(0, 12).Draw(t, "num_commands")
	for i := 0; i < n; i++ {
		idx := rapid.IntRange(0, g.Table.Len()-1).Draw(t, "spec")
		spec := g.Table.At(idx)

		cmd := grammar.Command{Opcode: spec.Opcode}
		for _, fs := range spec.Fields {
			cmd.Fields = append(cmd.Fields, drawValue(t, fs, "field"))
		}
		in.Commands = append(in.Commands, cmd)
	}

	return in
}

// TestRoundTrip asserts decode(encode(in)) == in for any valid input.
func TestRoundTrip(t *testing.T) {
	t.Parallel()

	for _, header := range []bool{false, true} {
		g := testGrammar(t, header)
		c := New(g)

		rapid.Check(t, func(t *rapid.T) {
			in := drawInput(t, g)

			b, err := c.EncodeBytes(in)
			require.NoError(t, err)

			out, err := c.DecodeBytes(b)
			require.NoError(t, err)

			diff := cmp.Diff(in, out, cmpopts.EquateEmpty())
			require.Empty(t, diff)

			// Encoding is canonical.
			b2, err := c.EncodeBytes(out)
			require.NoError(t, err)
			require.Equal(t, b, b2)
		})
	}
}

// TestEncodeGolden pins the interchange layout.
func TestEncodeGolden(t *testing.T) {
	t.Parallel()

	c := New(testGrammar(t, false))
	in := &grammar.Input{Commands: []grammar.Command{
		{
			Opcode: 1,
			Fields: []grammar.FieldValue{
				grammar.UInt(3), grammar.UInt(256),
			},
		},
		{Opcode: 7},
	}}

	want := []byte{
		// Command count.
		0x00, 0x00, 0x00, 0x02,

		// First command: stream length, opcode record, fields
		// record with two uint fields.
		0x1b,
		0x00, 0x04, 0x00, 0x00, 0x00, 0x01,
		0x02, 0x13, 0x02,
		0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x03,
		0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00,

		// Exit command: opcode record and an empty field blob.
		0x09,
		0x00, 0x04, 0x00, 0x00, 0x00, 0x07,
		0x02, 0x01, 0x00,
	}

	b, err := c.EncodeBytes(in)
	require.NoError(t, err)
	require.Equal(t, want, b)

	out, err := c.DecodeBytes(want)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(in, out, cmpopts.EquateEmpty()))
}

// TestEncodeRejectsInvalidInput asserts the encoder refuses inputs that the
// decoder would reject.
func TestEncodeRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	c := New(testGrammar(t, true))

	var b bytes.Buffer
	err := c.Encode(&b, &grammar.Input{
		Header: []grammar.FieldValue{
			grammar.Binary{1, 2, 3}, grammar.SInt(0),
		},
	})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Zero(t, b.Len())

	_, err = c.EncodeBytes(&grammar.Input{
		Header: []grammar.FieldValue{
			grammar.Binary{1, 2, 3, 4}, grammar.SInt(0),
		},
		Commands: []grammar.Command{{Opcode: 9}},
	})
	require.ErrorIs(t, err, ErrInvalidInput)
}

// TestDecodeErrors feeds malformed byte strings to the decoder.
func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	plain := New(testGrammar(t, false))
	withHeader := New(testGrammar(t, true))

	exit := []byte{
		0x09, 0x00, 0x04, 0x00, 0x00, 0x00, 0x07, 0x02, 0x01, 0x00,
	}
	oneCmd := func(cmd ...byte) []byte {
		return append([]byte{0x00, 0x00, 0x00, 0x01}, cmd...)
	}
	hugeRecord := []byte{
		0x0a, 0x01, 0xff, 0x3f, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff,
	}

	testCases := []struct {
		name  string
		codec *Codec
		data  []byte
		err   error
	}{
		{
			name:  "empty",
			codec: plain,
			data:  nil,
			err:   ErrTruncated,
		},
		{
			name:  "truncated header",
			codec: withHeader,
			data:  []byte{'a', 'b'},
			err:   ErrTruncated,
		},
		{
			name:  "truncated header integer",
			codec: withHeader,
			data:  []byte{'a', 'b', 'c', 'd', 0x00, 0x01},
			err:   ErrTruncated,
		},
		{
			name:  "count beyond input",
			codec: plain,
			data:  []byte{0xff, 0xff, 0xff, 0xff},
			err:   ErrLengthOverflow,
		},
		{
			name:  "stream length beyond input",
			codec: plain,
			data:  oneCmd(0xfd, 0xff, 0xff),
			err:   ErrLengthOverflow,
		},
		{
			name:  "trailing bytes",
			codec: plain,
			data:  append(oneCmd(exit...), 0x00),
			err:   ErrTrailingBytes,
		},
		{
			name:  "missing fields record",
			codec: plain,
			data:  oneCmd(0x06, 0x00, 0x04, 0x00, 0x00, 0x00, 0x07),
			err:   ErrMissingRecord,
		},
		{
			name:  "missing opcode record",
			codec: plain,
			data:  oneCmd(0x03, 0x02, 0x01, 0x00),
			err:   ErrMissingRecord,
		},
		{
			name:  "unknown record",
			codec: plain,
			data: oneCmd(
				0x0b, 0x00, 0x04, 0x00, 0x00, 0x00, 0x07,
				0x02, 0x01, 0x00, 0x05, 0x00,
			),
			err: ErrUnknownRecord,
		},
		{
			name:  "unknown record length beyond stream",
			codec: plain,
			data:  oneCmd(hugeRecord...),
			err:   ErrLengthOverflow,
		},
		{
			name:  "fields record length beyond stream",
			codec: plain,
			data: oneCmd(
				0x10, 0x00, 0x04, 0x00, 0x00, 0x00, 0x07,
				0x02, 0xff, 0x3f, 0xff, 0xff, 0xff, 0xff, 0xff,
				0xff, 0xff,
			),
			err: ErrLengthOverflow,
		},
		{
			name:  "unknown field kind",
			codec: plain,
			data: oneCmd(
				0x0a, 0x00, 0x04, 0x00, 0x00, 0x00, 0x03,
				0x02, 0x02, 0x01, 0x09,
			),
			err: ErrBadFieldKind,
		},
		{
			name:  "field count beyond blob",
			codec: plain,
			data: oneCmd(
				0x09, 0x00, 0x04, 0x00, 0x00, 0x00, 0x03,
				0x02, 0x01, 0x05,
			),
			err: ErrLengthOverflow,
		},
		{
			name:  "unknown opcode",
			codec: plain,
			data: oneCmd(
				0x09, 0x00, 0x04, 0x00, 0x00, 0x00, 0x08,
				0x02, 0x01, 0x00,
			),
			err: grammar.ErrUnknownOpcode,
		},
		{
			name:  "field out of domain",
			codec: plain,
			data: oneCmd(
				0x12, 0x00, 0x04, 0x00, 0x00, 0x00, 0x03,
				0x02, 0x0a, 0x01,
				0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
				0x00, 0x04,
			),
			err: grammar.ErrOutOfDomain,
		},
		{
			name:  "field of wrong kind",
			codec: plain,
			data: oneCmd(
				0x12, 0x00, 0x04, 0x00, 0x00, 0x00, 0x03,
				0x02, 0x0a, 0x01,
				0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
				0x00, 0x00,
			),
			err: grammar.ErrKindMismatch,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			in, err := tc.codec.DecodeBytes(tc.data)
			require.Nil(t, in)
			require.ErrorIs(t, err, tc.err)

			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr))
			require.LessOrEqual(t, decodeErr.Offset, len(tc.data))
		})
	}
}

// TestDecodeReaderError checks that read failures are not reported as decode
// errors.
func TestDecodeReaderError(t *testing.T) {
	t.Parallel()

	readErr := errors.New("disk on fire")
	_, err := New(testGrammar(t, false)).Decode(&failingReader{readErr})
	require.ErrorIs(t, err, readErr)

	var decodeErr *DecodeError
	require.False(t, errors.As(err, &decodeErr))
}

type failingReader struct {
	err error
}

func (f *failingReader) Read([]byte) (int, error) {
	return 0, f.err
}

// TestSynthesize pins the line oriented output.
func TestSynthesize(t *testing.T) {
	t.Parallel()

	c := New(testGrammar(t, true))
	in := &grammar.Input{
		Header: []grammar.FieldValue{
			grammar.Binary("abcd"), grammar.SInt(-5),
		},
		Commands: []grammar.Command{
			{
				Opcode: 1,
				Fields: []grammar.FieldValue{
					grammar.UInt(3), grammar.UInt(256),
				},
			},
			{
				Opcode: 4,
				Fields: []grammar.FieldValue{
					grammar.UInt(0), grammar.Binary("hi"),
				},
			},
			{
				Opcode: 3,
				Fields: []grammar.FieldValue{grammar.SInt(-9)},
			},
			{Opcode: 7},
		},
	}

	var b bytes.Buffer
	require.NoError(t, c.Synthesize(&b, in))
	require.Equal(t, "abcd-5\n1\n3\n256\n4\n0\nhi\n3\n-9\n7\n", b.String())

	require.Equal(
		t, []byte("x1\n"),
		AppendSynthesis([]byte("x"), &grammar.Input{
			Commands: []grammar.Command{{Opcode: 1}},
		}),
	)
}

// FuzzDecode checks that arbitrary bytes either fail to decode with a
// *DecodeError or decode into an input that survives a round trip.
func FuzzDecode(f *testing.F) {
	g := testGrammar(f, true)
	c := New(g)

	seed, err := c.EncodeBytes(g.SeedInput())
	require.NoError(f, err)
	f.Add(seed)
	f.Add([]byte{
		0x00, 0x00, 0x00, 0x01, 0x0a, 0x01, 0xff, 0x3f, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff,
	})

	f.Fuzz(func(t *testing.T, data []byte) {
		in, err := c.DecodeBytes(data)
		if err != nil {
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("unexpected error type %T: %v", err,
					err)
			}
			return
		}

		b, err := c.EncodeBytes(in)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(b, data) {
			t.Fatal("decoded input does not re-encode to the " +
				"original bytes")
		}
	})
}
