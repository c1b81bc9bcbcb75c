package ports

import (
	"context"

	"popconn/domain/connectome"
)

// BatteryPort runs group-comparison permutation tests
type BatteryPort interface {
	Run(ctx context.Context, req PermutationRequest) (*connectome.PermutationResult, error)
}

// PermutationRequest describes one group comparison
type PermutationRequest struct {
	Matrix *connectome.CanonicalMatrix
	Groups connectome.GroupAssignment
	Metric Metric
	Method connectome.Method

	NumPermutations int
	// Seed fixes the trial streams; nil draws a fresh seed, reported in the
	// result.
	Seed *uint64

	ReturnDistribution bool
	KeepLabels         bool
}
