package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"popconn/domain/connectome"
	"popconn/domain/core"
)

// Transform selects how MatrixDifference combines two matrices elementwise.
type Transform int

const (
	// Raw is a - b.
	Raw Transform = iota
	// Absolute is |a - b|.
	Absolute
	// FisherZ is atanh(a) - atanh(b); only defined for correlation matrices.
	FisherZ
)

// fisherClip bounds |r| before atanh so that perfectly correlated pairs stay
// finite.
const fisherClip = 1 - 1e-7

// MatrixDifference is the elementwise region x region difference of two
// connectomes.
type MatrixDifference struct {
	Transform Transform
}

// Name returns the catalog name of the metric.
func (m MatrixDifference) Name() string {
	switch m.Transform {
	case Absolute:
		return NameMatrixDifferenceAbs
	case FisherZ:
		return NameMatrixDifferenceFisherZ
	}
	return NameMatrixDifference
}

// Compute returns an n x n statistic labelled by region.
func (m MatrixDifference) Compute(a, b *connectome.ConnectomeMatrix) (connectome.Statistic, error) {
	if err := sameRegions(a, b); err != nil {
		return connectome.Statistic{}, err
	}
	regions := a.Regions()

	var d *mat.Dense
	switch m.Transform {
	case Raw, Absolute:
		d = difference(a, b)
		if m.Transform == Absolute {
			d.Apply(func(_, _ int, v float64) float64 { return math.Abs(v) }, d)
		}
	case FisherZ:
		if !a.Method().IsCorrelation() || !b.Method().IsCorrelation() {
			return connectome.Statistic{}, core.NewInvalidArgumentError("metric",
				fmt.Sprintf("fisher z needs correlation matrices, got %s and %s", a.Method(), b.Method()))
		}
		n := a.Size()
		d = mat.NewDense(n, n, nil)
		for i := range n {
			for j := range n {
				if i == j {
					continue
				}
				d.Set(i, j, fisherZ(a.At(i, j))-fisherZ(b.At(i, j)))
			}
		}
	default:
		return connectome.Statistic{}, core.NewInvalidArgumentError("transform", fmt.Sprintf("unknown transform %d", m.Transform))
	}
	return connectome.NewMatrixStatistic(regions, regions, d), nil
}

func fisherZ(r float64) float64 {
	return math.Atanh(math.Max(-fisherClip, math.Min(fisherClip, r)))
}

// FrobeniusNorm is the Frobenius norm of a - b, a scalar summary of how far
// two connectomes are apart.
type FrobeniusNorm struct{}

// Name returns the catalog name of the metric.
func (FrobeniusNorm) Name() string { return NameFrobeniusNorm }

// Compute returns a 1x1 statistic.
func (FrobeniusNorm) Compute(a, b *connectome.ConnectomeMatrix) (connectome.Statistic, error) {
	if err := sameRegions(a, b); err != nil {
		return connectome.Statistic{}, err
	}
	norm := mat.Norm(difference(a, b), 2)
	return connectome.NewMatrixStatistic([]string{"frobenius"}, []string{"norm"}, mat.NewDense(1, 1, []float64{norm})), nil
}

func difference(a, b *connectome.ConnectomeMatrix) *mat.Dense {
	n := a.Size()
	d := mat.NewDense(n, n, nil)
	d.Sub(a.Values(), b.Values())
	return d
}

// sameRegions guards every metric: outputs are indexed by region, so the two
// inputs must agree on the ordering.
func sameRegions(a, b *connectome.ConnectomeMatrix) error {
	if a == nil || b == nil {
		return core.NewShapeMismatchError("nil connectome matrix")
	}
	if err := a.SameRegions(b); err != nil {
		return err
	}
	if a.Size() == 0 {
		return core.NewInsufficientDataError("empty connectome matrix")
	}
	return nil
}
