package rng

import (
	"math/rand/v2"

	"popconn/ports"
)

// CounterRNG derives independent PCG streams from (name, seed, counter).
// Nothing is shared between streams, so trial t draws the same numbers no
// matter which goroutine runs it or in what order.
type CounterRNG struct{}

var _ ports.RNGPort = (*CounterRNG)(nil)

// NewCounterRNG creates a counter-based RNG adapter
func NewCounterRNG() *CounterRNG {
	return &CounterRNG{}
}

// TrialStream returns the generator for one trial of a named operation
func (r *CounterRNG) TrialStream(name string, seed uint64, trial int) *rand.Rand {
	stream := splitmix64(hashString(name) ^ splitmix64(uint64(trial)+1))
	return rand.New(rand.NewPCG(splitmix64(seed), stream))
}

// NewSeed draws a fresh seed from the runtime's randomly seeded source
func (r *CounterRNG) NewSeed() uint64 {
	return rand.Uint64()
}

// splitmix64 is the finalizer of the SplitMix64 generator; it spreads
// consecutive counters across the whole 64-bit space.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint64 {
	var hash uint64 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint64(c) // djb2 algorithm
	}
	return hash
}
