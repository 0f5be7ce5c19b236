package grammar

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// ErrBadGrammarFile is returned for grammar files that are well formed YAML
// but do not describe a grammar.
var ErrBadGrammarFile = errors.New("invalid grammar file")

// fileField is the YAML form of a FieldSpec. Integer bounds are kept as raw
// scalars so that both decimal and 0x-prefixed strings are accepted, and so
// that omitted bounds can default to the full range of the kind.
type fileField struct {
	Name   string      `yaml:"name"`
	Kind   string      `yaml:"kind"`
	Min    interface{} `yaml:"min"`
	Max    interface{} `yaml:"max"`
	MinLen int         `yaml:"min_len"`
	MaxLen int         `yaml:"max_len"`
	Size   int         `yaml:"size"`
}

// fileCommand is the YAML form of a CommandSpec.
type fileCommand struct {
	Opcode int32       `yaml:"opcode"`
	Name   string      `yaml:"name"`
	Fields []fileField `yaml:"fields"`
}

// file is the top level of a grammar file.
type file struct {
	Name       string        `yaml:"name"`
	ExitOpcode *int32        `yaml:"exit_opcode"`
	Header     []fileField   `yaml:"header"`
	Commands   []fileCommand `yaml:"commands"`
}

// LoadFile reads a grammar file from disk.
func LoadFile(path string) (*Grammar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	g, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return g, nil
}

// Parse builds a grammar from its YAML description:
//
//	name: babynotes
//	exit_opcode: 7
//	header:
//	  - {name: name, kind: binary, size: 24}
//	  - {name: age, kind: sint}
//	commands:
//	  - opcode: 1
//	    name: add_note
//	    fields:
//	      - {kind: uint, min: 0, max: 5}
//	      - {kind: binary, min_len: 1, max_len: 512}
func Parse(data []byte) (*Grammar, error) {
	var f file
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, err
	}

	b := NewBuilder()
	for _, cmd := range f.Commands {
		fields := make([]FieldSpec, len(cmd.Fields))
		for i, field := range cmd.Fields {
			spec, err := field.spec()
			if err != nil {
				return nil, fmt.Errorf("command %d field %d: %w",
					cmd.Opcode, i, err)
			}
			fields[i] = spec
		}

		b.AddSpec(CommandSpec{
			Opcode: cmd.Opcode,
			Name:   cmd.Name,
			Fields: fields,
		})
	}

	table, err := b.Build()
	if err != nil {
		return nil, err
	}

	var opts []Option
	if len(f.Header) != 0 {
		layout := make([]HeaderField, len(f.Header))
		for i, field := range f.Header {
			spec, err := field.spec()
			if err != nil {
				return nil, fmt.Errorf("header field %d: %w", i,
					err)
			}
			layout[i] = HeaderField{Name: field.Name, Spec: spec}
		}
		opts = append(opts, WithHeader(layout...))
	}
	if f.ExitOpcode != nil {
		opts = append(opts, WithExitOpcode(*f.ExitOpcode))
	}

	return New(f.Name, table, opts...)
}

// spec converts the YAML field into a FieldSpec.
func (f *fileField) spec() (FieldSpec, error) {
	switch f.Kind {
	case "sint":
		lo, err := parseSigned(f.Min, math.MinInt64)
		if err != nil {
			return nil, fmt.Errorf("min: %w", err)
		}
		hi, err := parseSigned(f.Max, math.MaxInt64)
		if err != nil {
			return nil, fmt.Errorf("max: %w", err)
		}

		return SIntSpec{Min: lo, Max: hi}, nil

	case "uint":
		lo, err := parseUnsigned(f.Min, 0)
		if err != nil {
			return nil, fmt.Errorf("min: %w", err)
		}
		hi, err := parseUnsigned(f.Max, math.MaxUint64)
		if err != nil {
			return nil, fmt.Errorf("max: %w", err)
		}

		return UIntSpec{Min: lo, Max: hi}, nil

	case "binary":
		if f.Size != 0 {
			return BinarySpec{MinLen: f.Size, MaxLen: f.Size}, nil
		}

		return BinarySpec{MinLen: f.MinLen, MaxLen: f.MaxLen}, nil

	default:
		return nil, fmt.Errorf("%w: unknown field kind %q",
			ErrBadGrammarFile, f.Kind)
	}
}

// parseSigned converts a YAML scalar into an int64, returning def when the
// scalar is absent.
func parseSigned(v interface{}, def int64) (int64, error) {
	switch n := v.(type) {
	case nil:
		return def, nil

	case int:
		return int64(n), nil

	case int64:
		return n, nil

	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d overflows int64",
				ErrBadGrammarFile, n)
		}
		return int64(n), nil

	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 ||
			n >= math.MaxInt64 {

			return 0, fmt.Errorf("%w: %v is not an int64",
				ErrBadGrammarFile, n)
		}
		return int64(n), nil

	case string:
		i, err := strconv.ParseInt(n, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrBadGrammarFile, err)
		}
		return i, nil

	default:
		return 0, fmt.Errorf("%w: %v is not an integer",
			ErrBadGrammarFile, v)
	}
}

// parseUnsigned converts a YAML scalar into a uint64, returning def when the
// scalar is absent.
func parseUnsigned(v interface{}, def uint64) (uint64, error) {
	switch n := v.(type) {
	case nil:
		return def, nil

	case int:
		if n < 0 {
			return 0, fmt.Errorf("%w: %d is negative",
				ErrBadGrammarFile, n)
		}
		return uint64(n), nil

	case int64:
		if n < 0 {
			return 0, fmt.Errorf("%w: %d is negative",
				ErrBadGrammarFile, n)
		}
		return uint64(n), nil

	case uint64:
		return n, nil

	case float64:
		if n != math.Trunc(n) || n < 0 || n >= math.MaxUint64 {
			return 0, fmt.Errorf("%w: %v is not a uint64",
				ErrBadGrammarFile, n)
		}
		return uint64(n), nil

	case string:
		u, err := strconv.ParseUint(n, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrBadGrammarFile, err)
		}
		return u, nil

	default:
		return 0, fmt.Errorf("%w: %v is not an integer",
			ErrBadGrammarFile, v)
	}
}
