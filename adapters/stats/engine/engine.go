package engine

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"popconn/domain/connectome"
	"popconn/domain/core"
	"popconn/internal"
)

// CovarianceEngine computes region x region connectome matrices from a
// canonical subject x region matrix. It holds no mutable state and is safe
// for concurrent use by permutation workers.
type CovarianceEngine struct {
	logger *internal.Logger
}

// NewCovarianceEngine creates a new covariance engine
func NewCovarianceEngine(logger *internal.Logger) *CovarianceEngine {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &CovarianceEngine{logger: logger.With("covariance_engine")}
}

// Compute estimates the connectome across every subject of m.
func (e *CovarianceEngine) Compute(m *connectome.CanonicalMatrix, method connectome.Method) (*connectome.ConnectomeMatrix, error) {
	return e.ComputeRows(m, nil, method)
}

// ComputeRows estimates the connectome across the given subject rows only.
// A nil rows slice selects every subject.
func (e *CovarianceEngine) ComputeRows(m *connectome.CanonicalMatrix, rows []int, method connectome.Method) (*connectome.ConnectomeMatrix, error) {
	start := time.Now()
	if m == nil {
		return nil, core.NewInsufficientDataError("no canonical matrix")
	}
	if rows == nil {
		rows = make([]int, m.NumSubjects())
		for i := range rows {
			rows[i] = i
		}
	}
	if len(rows) < 2 {
		return nil, core.NewInsufficientDataError(fmt.Sprintf("%d subjects; at least 2 are required", len(rows)))
	}
	if m.NumRegions() == 0 {
		return nil, core.NewInsufficientDataError("no regions")
	}

	x := m.Subset(rows)
	if err := checkFinite(x, m, rows); err != nil {
		return nil, err
	}

	var (
		values *mat.SymDense
		err    error
	)
	switch method {
	case connectome.MethodPearson:
		if err = checkVariance(x, m.Regions()); err == nil {
			values = &mat.SymDense{}
			stat.CorrelationMatrix(values, x, nil)
		}
	case connectome.MethodSpearman:
		if err = checkVariance(x, m.Regions()); err == nil {
			values = &mat.SymDense{}
			stat.CorrelationMatrix(values, rankColumns(x), nil)
		}
	case connectome.MethodKendall:
		if err = checkVariance(x, m.Regions()); err == nil {
			values = kendallMatrix(x)
		}
	case connectome.MethodCovariance:
		values = &mat.SymDense{}
		stat.CovarianceMatrix(values, x, nil)
	default:
		err = core.NewInvalidArgumentError("method", fmt.Sprintf("unknown method %q", method))
	}
	if err != nil {
		return nil, err
	}

	if method.IsCorrelation() {
		normalizeCorrelation(values)
	}
	if bad := nanRegions(values, m.Regions()); len(bad) > 0 {
		return nil, core.NewDegenerateVarianceError(bad)
	}

	e.logger.Trace("computed %s connectome over %d subjects x %d regions in %v", method, len(rows), m.NumRegions(), time.Since(start))
	return connectome.NewConnectomeMatrix(m.Regions(), method, len(rows), values)
}

// checkFinite rejects NaN or infinite cells, naming the first offender.
func checkFinite(x *mat.Dense, m *connectome.CanonicalMatrix, rows []int) error {
	r, c := x.Dims()
	subjects, regions := m.Subjects(), m.Regions()
	for i := range r {
		for j := range c {
			v := x.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return core.NewIncompleteDataError(subjects[rows[i]], regions[j], fmt.Sprintf("non-finite value %v", v))
			}
		}
	}
	return nil
}

// checkVariance reports every region whose values are all identical.
// Correlation with such a region is undefined.
func checkVariance(x *mat.Dense, regions []string) error {
	_, c := x.Dims()
	var constant []string
	for j := range c {
		col := mat.Col(nil, j, x)
		if floats.Max(col) == floats.Min(col) {
			constant = append(constant, regions[j])
		}
	}
	if len(constant) > 0 {
		return core.NewDegenerateVarianceError(constant)
	}
	return nil
}

// normalizeCorrelation clamps rounding overshoot into [-1, 1] and writes an
// exact unit diagonal.
func normalizeCorrelation(s *mat.SymDense) {
	n := s.SymmetricDim()
	for i := range n {
		s.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			v := s.At(i, j)
			switch {
			case v > 1:
				s.SetSym(i, j, 1)
			case v < -1:
				s.SetSym(i, j, -1)
			}
		}
	}
}

func nanRegions(s *mat.SymDense, regions []string) []string {
	n := s.SymmetricDim()
	seen := make(map[int]bool)
	for i := range n {
		for j := i; j < n; j++ {
			if math.IsNaN(s.At(i, j)) {
				seen[i] = true
				seen[j] = true
			}
		}
	}
	var out []string
	for i := range n {
		if seen[i] {
			out = append(out, regions[i])
		}
	}
	return out
}
