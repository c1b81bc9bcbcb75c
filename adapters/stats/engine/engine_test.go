package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"popconn/domain/connectome"
	"popconn/domain/core"
	"popconn/internal"
	"popconn/internal/testkit"
)

func newTestEngine() *CovarianceEngine {
	return NewCovarianceEngine(internal.NewDiscardLogger())
}

func canonical(t *testing.T, subjects, regions []string, rows [][]float64) *connectome.CanonicalMatrix {
	t.Helper()
	data := make([]float64, 0, len(subjects)*len(regions))
	for _, r := range rows {
		data = append(data, r...)
	}
	m, err := connectome.NewCanonicalMatrix(subjects, regions, mat.NewDense(len(subjects), len(regions), data), nil, nil)
	require.NoError(t, err)
	return m
}

func workedExample(t *testing.T) *connectome.CanonicalMatrix {
	return canonical(t, testkit.WorkedExampleSubjects, testkit.WorkedExampleRegions, testkit.WorkedExampleValues)
}

func assertSymmetric(t *testing.T, c *connectome.ConnectomeMatrix) {
	t.Helper()
	for i := range c.Size() {
		for j := range c.Size() {
			assert.Equal(t, c.At(i, j), c.At(j, i))
		}
	}
}

func TestCompute_PearsonWorkedExample(t *testing.T) {
	c, err := newTestEngine().Compute(workedExample(t), connectome.MethodPearson)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, c.Regions())
	assert.Equal(t, 6, c.Subjects())
	assert.InDelta(t, testkit.WorkedPearsonAB, c.At(0, 1), 1e-6)
	assert.InDelta(t, testkit.WorkedPearsonAC, c.At(0, 2), 1e-6)
	assert.InDelta(t, testkit.WorkedPearsonBC, c.At(1, 2), 1e-6)
	for i := range 3 {
		assert.Equal(t, 1.0, c.At(i, i), "diagonal must be exactly 1")
	}
	assertSymmetric(t, c)
}

func TestCompute_Spearman(t *testing.T) {
	c, err := newTestEngine().Compute(workedExample(t), connectome.MethodSpearman)
	require.NoError(t, err)

	assert.InDelta(t, 0.6470588, c.At(0, 1), 1e-6)
	assert.InDelta(t, 0.0588235, c.At(0, 2), 1e-6)
	assert.InDelta(t, -0.4117647, c.At(1, 2), 1e-6)
	assert.Equal(t, 1.0, c.At(2, 2))
}

func TestCompute_Kendall(t *testing.T) {
	m := canonical(t,
		[]string{"a", "b", "c", "d", "e"},
		[]string{"x", "y"},
		[][]float64{{1, 1}, {2, 3}, {3, 2}, {4, 5}, {5, 4}},
	)
	c, err := newTestEngine().Compute(m, connectome.MethodKendall)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, c.At(0, 1), 1e-12)
	assert.Equal(t, 1.0, c.At(0, 0))
	assertSymmetric(t, c)
}

func TestCompute_KendallWithTies(t *testing.T) {
	// x ties one pair; tau-b = 5 / sqrt(5 * 6)
	m := canonical(t,
		[]string{"a", "b", "c", "d"},
		[]string{"x", "y"},
		[][]float64{{1, 1}, {2, 2}, {2, 3}, {3, 4}},
	)
	c, err := newTestEngine().Compute(m, connectome.MethodKendall)
	require.NoError(t, err)
	assert.InDelta(t, 5/math.Sqrt(30), c.At(0, 1), 1e-12)
}

func TestCompute_Covariance(t *testing.T) {
	c, err := newTestEngine().Compute(workedExample(t), connectome.MethodCovariance)
	require.NoError(t, err)

	assert.InDelta(t, 0.0306667, c.At(0, 0), 1e-6)
	assert.InDelta(t, 0.0296667, c.At(1, 1), 1e-6)
	assert.InDelta(t, 0.0216667, c.At(2, 2), 1e-6)
	assert.InDelta(t, 0.0206667, c.At(0, 1), 1e-6)
	assert.InDelta(t, 0.0046667, c.At(0, 2), 1e-6)
	assert.InDelta(t, -0.0103333, c.At(1, 2), 1e-6)
	assertSymmetric(t, c)
}

func TestComputeRows_Subset(t *testing.T) {
	m := workedExample(t)
	e := newTestEngine()

	young, err := e.ComputeRows(m, []int{0, 1, 2}, connectome.MethodPearson)
	require.NoError(t, err)
	assert.Equal(t, 3, young.Subjects())
	assert.InDelta(t, 1.0, young.At(0, 1), 1e-9)
	assert.LessOrEqual(t, young.At(0, 1), 1.0)
	assert.InDelta(t, 0.6546537, young.At(0, 2), 1e-6)
	assert.InDelta(t, 0.6546537, young.At(1, 2), 1e-6)

	old, err := e.ComputeRows(m, []int{3, 4, 5}, connectome.MethodPearson)
	require.NoError(t, err)
	assert.InDelta(t, 0.7370435, old.At(0, 1), 1e-6)
	assert.InDelta(t, -0.7857143, old.At(0, 2), 1e-6)
	assert.InDelta(t, -0.9971765, old.At(1, 2), 1e-6)
}

func TestCompute_InsufficientData(t *testing.T) {
	m := canonical(t, []string{"s1"}, []string{"A", "B"}, [][]float64{{1, 2}})
	_, err := newTestEngine().Compute(m, connectome.MethodPearson)
	assert.ErrorIs(t, err, core.ErrInsufficientData)

	_, err = newTestEngine().ComputeRows(workedExample(t), []int{2}, connectome.MethodCovariance)
	assert.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestCompute_DegenerateVariance(t *testing.T) {
	m := canonical(t,
		[]string{"s1", "s2", "s3"},
		[]string{"A", "B", "C"},
		[][]float64{{1, 5, 2}, {2, 5, 2}, {3, 5, 2}},
	)

	for _, method := range []connectome.Method{connectome.MethodPearson, connectome.MethodSpearman, connectome.MethodKendall} {
		t.Run(string(method), func(t *testing.T) {
			_, err := newTestEngine().Compute(m, method)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrDegenerateVariance)
			de, ok := core.AsDataError(err)
			require.True(t, ok)
			assert.Equal(t, []string{"B", "C"}, de.Regions)
		})
	}

	t.Run("covariance accepts constant regions", func(t *testing.T) {
		c, err := newTestEngine().Compute(m, connectome.MethodCovariance)
		require.NoError(t, err)
		assert.Equal(t, 0.0, c.At(1, 1))
		assert.Equal(t, 1.0, c.At(0, 0))
	})
}

func TestCompute_NonFinite(t *testing.T) {
	m := canonical(t,
		[]string{"s1", "s2", "s3"},
		[]string{"A", "B"},
		[][]float64{{1, 2}, {2, math.NaN()}, {3, 1}},
	)
	_, err := newTestEngine().Compute(m, connectome.MethodPearson)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrIncompleteData)
	de, ok := core.AsDataError(err)
	require.True(t, ok)
	assert.Equal(t, "s2", de.Subject)
	assert.Equal(t, "B", de.Region)
}

func TestCompute_UnknownMethod(t *testing.T) {
	_, err := newTestEngine().Compute(workedExample(t), connectome.Method("partial"))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestComputeRanks(t *testing.T) {
	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, computeRanks([]float64{1, 3, 3, 7}))
	assert.Equal(t, []float64{3, 1, 2}, computeRanks([]float64{9, -1, 0}))
}
