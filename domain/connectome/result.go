package connectome

import (
	"popconn/domain/core"
)

// NullSummary describes a scalar null distribution.
type NullSummary struct {
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Percentile95 float64 `json:"percentile_95"`
	Percentile99 float64 `json:"percentile_99"`
}

// PermutationResult is the outcome of one group comparison. It is built once
// by the permutation tester and not modified afterwards.
type PermutationResult struct {
	ID              core.RunID     `json:"id"`
	Metric          string         `json:"metric"`
	Method          Method         `json:"method"`
	GroupLabels     [2]string      `json:"group_labels"`
	GroupSizes      [2]int         `json:"group_sizes"`
	Regions         []string       `json:"regions"`
	NumPermutations int            `json:"n_permutations"`
	Seed            uint64         `json:"seed"`
	Observed        Statistic      `json:"observed"`
	PValues         Statistic      `json:"p_values"`
	Summary         *NullSummary   `json:"null_summary,omitempty"`
	CreatedAt       core.Timestamp `json:"created_at"`

	// NullDistribution holds one statistic per trial, in trial order, when
	// requested.
	NullDistribution []Statistic `json:"null_distribution,omitempty"`

	// PermutationLabels holds the shuffled per-subject labels of every trial,
	// in trial order, when requested.
	PermutationLabels [][]string `json:"permutation_labels,omitempty"`
}

// ScalarDistribution returns the null distribution of a scalar metric.
func (r *PermutationResult) ScalarDistribution() []float64 {
	if !r.Observed.IsScalar() || len(r.NullDistribution) == 0 {
		return nil
	}
	out := make([]float64, len(r.NullDistribution))
	for i, s := range r.NullDistribution {
		out[i] = s.Scalar()
	}
	return out
}

// MinPValue is the smallest p-value a run with n trials can report.
func MinPValue(n int) float64 {
	return 1 / float64(n+1)
}
