package domain

import (
	"math/rand/v2"
	"time"
)

// pcgStream is the fixed second word of the PCG state; only the seed varies.
const pcgStream = 0x9e3779b97f4a7c15

// Random is the single source of randomness of a repair run.
type Random struct {
	seed uint64
	rng  *rand.Rand
}

// NewRandom returns a generator whose draws are fully determined by seed.
func NewRandom(seed uint64) *Random {
	return &Random{seed: seed, rng: rand.New(rand.NewPCG(seed, pcgStream))}
}

// ClockSeed derives a seed from the wall clock for runs without one.
func ClockSeed() uint64 {
	return uint64(time.Now().UnixNano())
}

// Seed returns the seed the generator was created with.
func (r *Random) Seed() uint64 {
	return r.seed
}

// IntN returns a uniform integer in [0, n).
func (r *Random) IntN(n int) int {
	return r.rng.IntN(n)
}

// Coin returns true or false with equal probability.
func (r *Random) Coin() bool {
	return r.rng.IntN(2) == 1
}

// Sample picks k distinct items of items in random order. k is clamped to
// [0, len(items)]. items is not modified.
func Sample[T any](r *Random, items []T, k int) []T {
	k = max(0, min(k, len(items)))

	pool := append([]T(nil), items...)
	for i := 0; i < k; i++ {
		j := i + r.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}

	return pool[:k]
}

// Choice picks one item uniformly. It panics on an empty slice.
func Choice[T any](r *Random, items []T) T {
	return items[r.IntN(len(items))]
}
