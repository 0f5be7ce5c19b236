package mutate

import (
	"fmt"

	"github.com/cmdfuzz/cmdfuzz/fuzzrand"
)

// Buffer mutates a byte buffer whose length must stay in [minLen, maxLen].
// One draw selects, in order, extend (only when the buffer can grow), splice
// (only when it can shrink) and finally a byte delta. Weights of unavailable
// outcomes are not added to the threshold, so a non-empty buffer always
// changes shape or content.
func Buffer(buf *[]byte, minLen, maxLen int, rng fuzzrand.Rand,
	cfg *Config) Outcome {

	n := len(*buf)
	if n < minLen || n > maxLen {
		panic(fmt.Sprintf("mutate: buffer length %d outside [%d, %d]",
			n, minLen, maxLen))
	}

	p := rng.Float64()
	threshold := 0.0

	if n < maxLen {
		threshold += cfg.ExtendProb
		if p <= threshold {
			extend(buf, maxLen, rng)
			return Extended
		}
	}

	if n > minLen {
		threshold += cfg.SpliceProb
		if p <= threshold {
			splice(buf, minLen, rng)
			return Spliced
		}
	}

	if n == 0 {
		return Unchanged
	}

	Bytes(*buf, rng, cfg.ByteDelta)

	return ByteDelta
}

// extend appends between zero and maxLen-len(buf) random bytes.
func extend(buf *[]byte, maxLen int, rng fuzzrand.Rand) {
	n := rng.IntN(maxLen - len(*buf) + 1)
	if n == 0 {
		return
	}

	tail := make([]byte, n)
	rng.Fill(tail)
	*buf = append(*buf, tail...)

	log.Tracef("Extended buffer by %d bytes to %d", n, len(*buf))
}

// splice removes a span [begin, end) of at most len(buf)-minLen bytes. The
// buffer must be longer than minLen.
func splice(buf *[]byte, minLen int, rng fuzzrand.Rand) {
	n := len(*buf)
	maxSplice := n - minLen

	begin := rng.IntN(n)
	limit := min(begin+maxSplice, n)
	end := begin + rng.IntN(limit-begin) + 1

	*buf = append((*buf)[:begin], (*buf)[end:]...)

	log.Tracef("Spliced [%d, %d) out of %d byte buffer", begin, end, n)
}

// Bytes adds a uniform delta in [-delta, +delta] to one uniformly chosen byte
// of b, wrapping modulo 256. An empty slice is left as is.
func Bytes(b []byte, rng fuzzrand.Rand, delta uint8) {
	if len(b) == 0 {
		return
	}

	idx := rng.IntN(len(b))
	d := rng.IntN(2*int(delta)+1) - int(delta)

	b[idx] = byte((int(b[idx]) + d + 256) % 256)
}
