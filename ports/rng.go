package ports

import "math/rand/v2"

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// TrialStream returns the generator for one trial of a named operation.
	// The stream depends only on (name, seed, trial), never on how many
	// trials ran before it or on which worker draws it.
	TrialStream(name string, seed uint64, trial int) *rand.Rand

	// NewSeed draws a fresh seed for runs the caller did not seed.
	NewSeed() uint64
}
