package eco

import (
	"math/rand/v2"
	"time"
)

// RNG supplies the randomness the rules consume. *rand.Rand satisfies it.
type RNG interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
	// IntN returns a uniform value in [0, n).
	IntN(n int) int
}

// NewRNG creates a PCG generator. Workers sharing a seed use distinct streams.
func NewRNG(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

// ResolveSeed returns seed, or a clock-derived seed when seed is zero.
func ResolveSeed(seed uint64) uint64 {
	if seed != 0 {
		return seed
	}
	return uint64(time.Now().UnixNano())
}

// Roll reports whether an event of probability p happens.
func Roll(rng RNG, p float64) bool {
	return rng.Float64() < p
}
