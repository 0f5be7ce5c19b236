package codec

import (
	"io"
	"strconv"

	"github.com/cmdfuzz/cmdfuzz/grammar"
)

// Synthesize writes the form of in that the target reads on its standard
// input: header buffers as raw bytes, header integers in decimal followed by
// a newline, then per command its opcode on one line and one line per field.
// Integers are written in decimal and buffers raw, each followed by a
// newline. The output is produced in a single write.
func (c *Codec) Synthesize(w io.Writer, in *grammar.Input) error {
	_, err := w.Write(AppendSynthesis(nil, in))
	return err
}

// AppendSynthesis appends the synthesized form of in to dst.
func AppendSynthesis(dst []byte, in *grammar.Input) []byte {
	for _, v := range in.Header {
		switch v := v.(type) {
		case grammar.Binary:
			dst = append(dst, v...)

		default:
			dst = appendValue(dst, v)
		}
	}

	for _, cmd := range in.Commands {
		dst = strconv.AppendInt(dst, int64(cmd.Opcode), 10)
		dst = append(dst, '\n')

		for _, v := range cmd.Fields {
			dst = appendValue(dst, v)
		}
	}

	return dst
}

// appendValue appends one field line.
func appendValue(dst []byte, v grammar.FieldValue) []byte {
	switch v := v.(type) {
	case grammar.SInt:
		dst = strconv.AppendInt(dst, int64(v), 10)

	case grammar.UInt:
		dst = strconv.AppendUint(dst, uint64(v), 10)

	case grammar.Binary:
		dst = append(dst, v...)
	}

	return append(dst, '\n')
}
