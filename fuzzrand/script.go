package fuzzrand

import "fmt"

// Script is a Rand that replays queued draws before falling back to another
// stream. It pins the branch decisions of a mutation so that a specific path
// can be exercised or replayed. A queued value that falls outside the range
// requested by the caller panics.
type Script struct {
	// Floats are returned by Float64 in order.
	Floats []float64

	// Ints are returned by IntN in order.
	Ints []int

	// Int64s are returned by Int64Range in order.
	Int64s []int64

	// Uint64s are returned by Uint64Range in order.
	Uint64s []uint64

	// Fallback serves every draw whose queue is empty. When nil, an
	// exhausted queue panics.
	Fallback Rand
}

// A compile time check to ensure Script implements the Rand interface.
var _ Rand = (*Script)(nil)

// Float64 pops the next scripted float.
func (s *Script) Float64() float64 {
	if len(s.Floats) == 0 {
		return s.fallback("Float64").Float64()
	}

	f := s.Floats[0]
	s.Floats = s.Floats[1:]
	if f < 0 || f >= 1 {
		panic(fmt.Sprintf("fuzzrand: scripted float %v not in [0, 1)",
			f))
	}

	return f
}

// IntN pops the next scripted int.
func (s *Script) IntN(n int) int {
	if len(s.Ints) == 0 {
		return s.fallback("IntN").IntN(n)
	}

	i := s.Ints[0]
	s.Ints = s.Ints[1:]
	if i < 0 || i >= n {
		panic(fmt.Sprintf("fuzzrand: scripted int %d not in [0, %d)",
			i, n))
	}

	return i
}

// Int64Range pops the next scripted int64.
func (s *Script) Int64Range(min, max int64) int64 {
	if len(s.Int64s) == 0 {
		return s.fallback("Int64Range").Int64Range(min, max)
	}

	i := s.Int64s[0]
	s.Int64s = s.Int64s[1:]
	if i < min || i > max {
		panic(fmt.Sprintf("fuzzrand: scripted int64 %d not in "+
			"[%d, %d]", i, min, max))
	}

	return i
}

// Uint64Range pops the next scripted uint64.
func (s *Script) Uint64Range(min, max uint64) uint64 {
	if len(s.Uint64s) == 0 {
		return s.fallback("Uint64Range").Uint64Range(min, max)
	}

	u := s.Uint64s[0]
	s.Uint64s = s.Uint64s[1:]
	if u < min || u > max {
		panic(fmt.Sprintf("fuzzrand: scripted uint64 %d not in "+
			"[%d, %d]", u, min, max))
	}

	return u
}

// Fill always defers to the fallback, or zeroes b without one.
func (s *Script) Fill(b []byte) {
	if s.Fallback == nil {
		clear(b)
		return
	}

	s.Fallback.Fill(b)
}

// Exhausted reports whether every queue has been consumed.
func (s *Script) Exhausted() bool {
	return len(s.Floats) == 0 && len(s.Ints) == 0 &&
		len(s.Int64s) == 0 && len(s.Uint64s) == 0
}

func (s *Script) fallback(method string) Rand {
	if s.Fallback == nil {
		panic(fmt.Sprintf("fuzzrand: script exhausted in %s", method))
	}

	return s.Fallback
}
