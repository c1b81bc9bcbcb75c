package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/mat"

	"popconn/domain/connectome"
)

// DegreeDifference is the per-region difference in weighted degree. The
// diagonal is a self-loop and counts twice toward its region's degree.
type DegreeDifference struct{}

// Name returns the catalog name of the metric.
func (DegreeDifference) Name() string { return NameDegreeDifference }

// Compute returns an n x 1 statistic labelled by region.
func (DegreeDifference) Compute(a, b *connectome.ConnectomeMatrix) (connectome.Statistic, error) {
	if err := sameRegions(a, b); err != nil {
		return connectome.Statistic{}, err
	}
	diff := weightedDegree(a)
	floats.Sub(diff, weightedDegree(b))
	return connectome.NewVector(a.Regions(), "degree_diff", diff), nil
}

func weightedDegree(c *connectome.ConnectomeMatrix) []float64 {
	n := c.Size()
	out := make([]float64, n)
	row := make([]float64, n)
	for i := range n {
		for j := range n {
			row[j] = c.At(i, j)
		}
		out[i] = floats.Sum(row) + c.At(i, i)
	}
	return out
}

// StrengthDifference is the per-region difference in strength, the sum of
// absolute weights in the region's row.
type StrengthDifference struct{}

// Name returns the catalog name of the metric.
func (StrengthDifference) Name() string { return NameStrengthDifference }

// Compute returns an n x 1 statistic labelled by region.
func (StrengthDifference) Compute(a, b *connectome.ConnectomeMatrix) (connectome.Statistic, error) {
	if err := sameRegions(a, b); err != nil {
		return connectome.Statistic{}, err
	}
	diff := strength(a)
	floats.Sub(diff, strength(b))
	return connectome.NewVector(a.Regions(), "strength_diff", diff), nil
}

func strength(c *connectome.ConnectomeMatrix) []float64 {
	n := c.Size()
	out := make([]float64, n)
	for i := range n {
		for j := range n {
			out[i] += math.Abs(c.At(i, j))
		}
	}
	return out
}

// GlobalEfficiencyDifference compares the unweighted global efficiency of
// the graphs whose edges are off-diagonal entries with |w| > Threshold.
type GlobalEfficiencyDifference struct {
	Threshold float64
}

// Name returns the catalog name of the metric.
func (GlobalEfficiencyDifference) Name() string { return NameGlobalEfficiencyDifference }

// Compute returns a 1x1 statistic.
func (g GlobalEfficiencyDifference) Compute(a, b *connectome.ConnectomeMatrix) (connectome.Statistic, error) {
	if err := sameRegions(a, b); err != nil {
		return connectome.Statistic{}, err
	}
	diff := GlobalEfficiency(a, g.Threshold) - GlobalEfficiency(b, g.Threshold)
	return connectome.NewMatrixStatistic(
		[]string{"global_efficiency"},
		[]string{"global_efficiency_diff"},
		mat.NewDense(1, 1, []float64{diff}),
	), nil
}

// GlobalEfficiency is the mean inverse shortest-path length over all ordered
// region pairs; unreachable pairs contribute zero.
func GlobalEfficiency(c *connectome.ConnectomeMatrix, threshold float64) float64 {
	n := c.Size()
	if n < 2 {
		return 0
	}

	g := simple.NewUndirectedGraph()
	for i := range n {
		g.AddNode(simple.Node(i))
	}
	for i := range n {
		for j := i + 1; j < n; j++ {
			if math.Abs(c.At(i, j)) > threshold {
				g.SetEdge(simple.Edge{F: simple.Node(i), T: simple.Node(j)})
			}
		}
	}

	paths := path.DijkstraAllPaths(g)
	var sum float64
	for i := range n {
		for j := range n {
			if i == j {
				continue
			}
			d := paths.Weight(int64(i), int64(j))
			if d > 0 && !math.IsInf(d, 1) {
				sum += 1 / d
			}
		}
	}
	return sum / float64(n*(n-1))
}
