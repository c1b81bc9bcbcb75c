package metrics

import (
	"fmt"
	"sort"

	"popconn/domain/core"
	"popconn/ports"
)

// Catalog names for the built-in metrics. Names are resolved at the edges
// (HTTP, CLI); the permutation tester only ever sees a ports.Metric.
const (
	NameMatrixDifference           = "correlation_matrix_difference"
	NameMatrixDifferenceAbs        = "correlation_matrix_difference_abs"
	NameMatrixDifferenceFisherZ    = "correlation_matrix_difference_fisher_z"
	NameFrobeniusNorm              = "frobenius_norm_difference"
	NameDegreeDifference           = "degree_difference"
	NameStrengthDifference         = "strength_difference"
	NameGlobalEfficiencyDifference = "global_efficiency_difference"
)

// Default is the metric used when a caller names none.
const Default = NameMatrixDifference

// Descriptor documents a catalog entry.
type Descriptor struct {
	Name        string `json:"name"`
	Shape       string `json:"shape"`
	Description string `json:"description"`
}

type entry struct {
	metric ports.Metric
	desc   Descriptor
}

var catalog = map[string]entry{
	NameMatrixDifference: {
		metric: MatrixDifference{Transform: Raw},
		desc:   Descriptor{Shape: "matrix", Description: "Elementwise difference of the two group connectomes"},
	},
	NameMatrixDifferenceAbs: {
		metric: MatrixDifference{Transform: Absolute},
		desc:   Descriptor{Shape: "matrix", Description: "Absolute elementwise difference of the two group connectomes"},
	},
	NameMatrixDifferenceFisherZ: {
		metric: MatrixDifference{Transform: FisherZ},
		desc:   Descriptor{Shape: "matrix", Description: "Difference of Fisher z-transformed correlations"},
	},
	NameFrobeniusNorm: {
		metric: FrobeniusNorm{},
		desc:   Descriptor{Shape: "scalar", Description: "Frobenius norm of the connectome difference"},
	},
	NameDegreeDifference: {
		metric: DegreeDifference{},
		desc:   Descriptor{Shape: "vector", Description: "Per-region difference in weighted degree"},
	},
	NameStrengthDifference: {
		metric: StrengthDifference{},
		desc:   Descriptor{Shape: "vector", Description: "Per-region difference in absolute connection strength"},
	},
	NameGlobalEfficiencyDifference: {
		metric: GlobalEfficiencyDifference{},
		desc:   Descriptor{Shape: "scalar", Description: "Difference in unweighted global efficiency of the nonzero-edge graphs"},
	},
}

// Lookup resolves a catalog name; an empty name selects Default.
func Lookup(name string) (ports.Metric, error) {
	if name == "" {
		name = Default
	}
	e, ok := catalog[name]
	if !ok {
		return nil, core.NewInvalidArgumentError("metric", fmt.Sprintf("unknown metric %q (known: %v)", name, Names()))
	}
	return e.metric, nil
}

// Names lists catalog names in sorted order.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for n := range catalog {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Describe lists every catalog entry in name order.
func Describe() []Descriptor {
	out := make([]Descriptor, 0, len(catalog))
	for _, n := range Names() {
		d := catalog[n].desc
		d.Name = n
		out = append(out, d)
	}
	return out
}
