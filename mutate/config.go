package mutate

import (
	"errors"
	"fmt"
)

// WalkMode selects how the non-regenerating branch of integer mutation moves
// a value.
type WalkMode uint8

const (
	// IntWalkUnit moves the value by exactly one towards a random
	// direction.
	IntWalkUnit WalkMode = iota

	// IntWalkDelta moves the value by a uniform step bounded by
	// Config.WalkDelta and by the distance to either bound.
	IntWalkDelta
)

// String returns the name of the walk mode as used in config files.
func (m WalkMode) String() string {
	switch m {
	case IntWalkUnit:
		return "unit"
	case IntWalkDelta:
		return "delta"
	default:
		return fmt.Sprintf("walk(%d)", uint8(m))
	}
}

// ParseWalkMode maps a config string to a WalkMode.
func ParseWalkMode(s string) (WalkMode, error) {
	switch s {
	case "unit", "":
		return IntWalkUnit, nil
	case "delta":
		return IntWalkDelta, nil
	default:
		return 0, fmt.Errorf("unknown integer walk %q", s)
	}
}

const (
	// DefaultRegenProb is the probability that an integer is redrawn from
	// its whole domain.
	DefaultRegenProb = 0.2

	// DefaultWalkDelta bounds the step of IntWalkDelta.
	DefaultWalkDelta = 8

	// DefaultExtendProb is the weight of buffer extension.
	DefaultExtendProb = 0.3

	// DefaultSpliceProb is the weight of buffer splicing.
	DefaultSpliceProb = 0.3

	// DefaultByteDelta bounds the signed delta added to a single byte.
	DefaultByteDelta = 10
)

// Config holds the tunables of the field mutators.
type Config struct {
	// RegenProb is the probability of redrawing an integer uniformly.
	RegenProb float64

	// Walk selects the integer walk used when not regenerating.
	Walk WalkMode

	// WalkDelta is the largest step of IntWalkDelta.
	WalkDelta uint32

	// ExtendProb is the weight of the extend outcome of Buffer.
	ExtendProb float64

	// SpliceProb is the weight of the splice outcome of Buffer.
	SpliceProb float64

	// ByteDelta is D in the byte delta range [-D, +D].
	ByteDelta uint8
}

// DefaultConfig returns the mutator settings of the reference fuzzer.
func DefaultConfig() Config {
	return Config{
		RegenProb:  DefaultRegenProb,
		Walk:       IntWalkUnit,
		WalkDelta:  DefaultWalkDelta,
		ExtendProb: DefaultExtendProb,
		SpliceProb: DefaultSpliceProb,
		ByteDelta:  DefaultByteDelta,
	}
}

// ErrBadProbability is returned for probabilities outside [0, 1] or weights
// that sum above one.
var ErrBadProbability = errors.New("probability out of range")

// Validate checks that the probabilities are usable.
func (c *Config) Validate() error {
	for name, p := range map[string]float64{
		"regen":  c.RegenProb,
		"extend": c.ExtendProb,
		"splice": c.SpliceProb,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%w: %s=%v", ErrBadProbability, name,
				p)
		}
	}
	if c.ExtendProb+c.SpliceProb > 1 {
		return fmt.Errorf("%w: extend+splice=%v", ErrBadProbability,
			c.ExtendProb+c.SpliceProb)
	}

	switch c.Walk {
	case IntWalkUnit:
	case IntWalkDelta:
		if c.WalkDelta == 0 {
			return errors.New("delta walk needs a positive step")
		}
	default:
		return fmt.Errorf("unknown integer walk %v", c.Walk)
	}

	return nil
}
