package mutate

import (
	"fmt"

	"github.com/cmdfuzz/cmdfuzz/fuzzrand"
	"golang.org/x/exp/constraints"
)

// SignedInt mutates a signed integer inside [min, max]. A value outside of
// its bounds is a caller bug and panics.
func SignedInt(v *int64, min, max int64, rng fuzzrand.Rand,
	cfg *Config) Outcome {

	return walk(v, min, max, rng, cfg, func() int64 {
		return rng.Int64Range(min, max)
	})
}

// UnsignedInt mutates an unsigned integer inside [min, max]. A value outside
// of its bounds is a caller bug and panics.
func UnsignedInt(v *uint64, min, max uint64, rng fuzzrand.Rand,
	cfg *Config) Outcome {

	return walk(v, min, max, rng, cfg, func() uint64 {
		return rng.Uint64Range(min, max)
	})
}

// walk implements integer mutation for both signednesses. With RegenProb the
// value is redrawn through regen. Otherwise it is walked according to
// cfg.Walk, never leaving [min, max].
func walk[T constraints.Integer](v *T, min, max T, rng fuzzrand.Rand,
	cfg *Config, regen func() T) Outcome {

	if *v < min || *v > max {
		panic(fmt.Sprintf("mutate: value %d outside [%d, %d]", *v,
			min, max))
	}

	if rng.Float64() <= cfg.RegenProb {
		*v = regen()
		return Regenerated
	}

	if min == max {
		return Unchanged
	}

	if cfg.Walk == IntWalkDelta {
		return deltaStep(v, min, max, rng, uint64(cfg.WalkDelta))
	}

	// The direction draw only happens when a decrement is possible, so
	// at the minimum the walk always goes up.
	if *v > min && rng.Float64() <= 0.5 {
		*v--
		return SteppedDown
	}
	if *v < max {
		*v++
		return SteppedUp
	}

	return Unchanged
}

// deltaStep adds a uniform step drawn from
// [-min(delta, v-min), +min(delta, max-v)].
func deltaStep[T constraints.Integer](v *T, min, max T, rng fuzzrand.Rand,
	delta uint64) Outcome {

	down := distance(min, *v)
	if down > delta {
		down = delta
	}
	up := distance(*v, max)
	if up > delta {
		up = delta
	}

	// Both spans are bounded by a uint32 delta, so they fit in an int64.
	step := rng.Int64Range(-int64(down), int64(up))
	switch {
	case step < 0:
		*v -= T(-step)
		return SteppedDown

	case step > 0:
		*v += T(step)
		return SteppedUp

	default:
		return Unchanged
	}
}

// distance returns hi-lo for lo <= hi. The subtraction is carried out in
// two's complement so it cannot overflow for any pair of int64 or uint64.
func distance[T constraints.Integer](lo, hi T) uint64 {
	return uint64(hi) - uint64(lo)
}
