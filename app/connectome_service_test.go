package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"popconn/adapters/battery"
	"popconn/adapters/reshape"
	"popconn/adapters/rng"
	"popconn/adapters/stats/engine"
	"popconn/adapters/stats/metrics"
	"popconn/domain/connectome"
	"popconn/domain/core"
	"popconn/internal"
	"popconn/internal/testkit"
)

func newTestService() *ConnectomeService {
	logger := internal.NewDiscardLogger()
	eng := engine.NewCovarianceEngine(logger)
	tester := battery.NewPermutationTester(eng, rng.NewCounterRNG(), logger)
	tester.SetWorkers(4)
	return NewConnectomeService(reshape.NewReshaper(logger), eng, tester, metrics.Lookup)
}

func seed(s uint64) *uint64 { return &s }

var groupedLong = connectome.Layout{Shape: connectome.ShapeLong, GroupColumn: "group"}

func TestBuildConnectome_WorkedExample(t *testing.T) {
	svc := newTestService()

	for name, tc := range map[string]struct {
		table  connectome.Table
		layout connectome.Layout
	}{
		"long": {testkit.WorkedExampleLong(), groupedLong},
		"wide": {testkit.WorkedExampleWide(), connectome.Layout{Shape: connectome.ShapeWide, GroupColumn: "group"}},
	} {
		t.Run(name, func(t *testing.T) {
			c, err := svc.BuildConnectome(context.Background(), BuildRequest{Table: tc.table, Layout: tc.layout})
			require.NoError(t, err)

			assert.Equal(t, connectome.MethodPearson, c.Method())
			assert.Equal(t, []string{"A", "B", "C"}, c.Regions())
			assert.Equal(t, 6, c.Subjects())
			ab, _ := c.Get("A", "B")
			ac, _ := c.Get("A", "C")
			bc, _ := c.Get("B", "C")
			assert.InDelta(t, testkit.WorkedPearsonAB, ab, 1e-9)
			assert.InDelta(t, testkit.WorkedPearsonAC, ac, 1e-9)
			assert.InDelta(t, testkit.WorkedPearsonBC, bc, 1e-9)
		})
	}
}

func TestBuildConnectome_Errors(t *testing.T) {
	svc := newTestService()

	_, err := svc.BuildConnectome(context.Background(), BuildRequest{Table: testkit.WorkedExampleLong(), Method: "cosine"})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = svc.BuildConnectome(context.Background(), BuildRequest{
		Table:  testkit.WorkedExampleLong(),
		Layout: connectome.Layout{ValueColumn: "thickness"},
	})
	assert.ErrorIs(t, err, core.ErrSchema)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.BuildConnectome(ctx, BuildRequest{Table: testkit.WorkedExampleLong()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompareGroups_WorkedExample(t *testing.T) {
	svc := newTestService()

	result, err := svc.CompareGroups(context.Background(), CompareRequest{
		Table:           testkit.WorkedExampleLong(),
		Layout:          groupedLong,
		NumPermutations: 200,
		Seed:            seed(7),
	})
	require.NoError(t, err)

	assert.Equal(t, metrics.NameMatrixDifference, result.Metric)
	assert.Equal(t, connectome.MethodPearson, result.Method)
	assert.Equal(t, [2]string{"young", "old"}, result.GroupLabels)
	assert.Equal(t, [2]int{3, 3}, result.GroupSizes)
	assert.Equal(t, uint64(7), result.Seed)
	assert.InDelta(t, testkit.WorkedDiffAB, result.Observed.At(0, 1), 1e-9)
	assert.InDelta(t, testkit.WorkedDiffAC, result.Observed.At(0, 2), 1e-9)
	assert.InDelta(t, testkit.WorkedDiffBC, result.Observed.At(1, 2), 1e-9)
	assert.Equal(t, 1.0, result.PValues.At(0, 0))
	assert.Empty(t, result.NullDistribution)

	again, err := svc.CompareGroups(context.Background(), CompareRequest{
		Table:           testkit.WorkedExampleWide(),
		Layout:          connectome.Layout{Shape: connectome.ShapeWide, GroupColumn: "group"},
		NumPermutations: 200,
		Seed:            seed(7),
	})
	require.NoError(t, err)
	assert.Equal(t, result.PValues.Table(), again.PValues.Table())
}

func TestCompareGroups_DefaultPermutations(t *testing.T) {
	svc := newTestService()
	svc.SetPermutationLimits(50, 60)

	result, err := svc.CompareGroups(context.Background(), CompareRequest{
		Table:              testkit.WorkedExampleLong(),
		Layout:             groupedLong,
		Metric:             metrics.NameFrobeniusNorm,
		Seed:               seed(3),
		ReturnDistribution: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 50, result.NumPermutations)
	assert.Len(t, result.NullDistribution, 50)
	require.NotNil(t, result.Summary)
	assert.InDelta(t, testkit.WorkedFrobenius, result.Observed.Scalar(), 1e-9)

	_, err = svc.CompareGroups(context.Background(), CompareRequest{
		Table:           testkit.WorkedExampleLong(),
		Layout:          groupedLong,
		NumPermutations: 61,
	})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestCompareGroups_Validation(t *testing.T) {
	threeGroups := testkit.WorkedExampleLong()
	for _, rec := range threeGroups.Records {
		if rec["subject_id"] == "s6" {
			rec["group"] = "middle"
		}
	}

	tests := []struct {
		name string
		req  CompareRequest
		want error
	}{
		{"no group column", CompareRequest{Table: testkit.WorkedExampleLong()}, core.ErrInvalidArgument},
		{"unknown metric", CompareRequest{Table: testkit.WorkedExampleLong(), Layout: groupedLong, Metric: "nope"}, core.ErrInvalidArgument},
		{"unknown method", CompareRequest{Table: testkit.WorkedExampleLong(), Layout: groupedLong, Method: "cosine"}, core.ErrInvalidArgument},
		{"negative permutations", CompareRequest{Table: testkit.WorkedExampleLong(), Layout: groupedLong, NumPermutations: -1}, core.ErrInvalidArgument},
		{"three groups", CompareRequest{Table: threeGroups, Layout: groupedLong, NumPermutations: 10}, core.ErrSchema},
		{"fisher z on covariance", CompareRequest{
			Table:           testkit.WorkedExampleLong(),
			Layout:          groupedLong,
			Method:          connectome.MethodCovariance,
			Metric:          metrics.NameMatrixDifferenceFisherZ,
			NumPermutations: 10,
		}, core.ErrInvalidArgument},
	}

	svc := newTestService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.CompareGroups(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, result)
		})
	}
}

func TestCompareGroups_GroupEmptiedByDrop(t *testing.T) {
	var records []connectome.Record
	for i, s := range []string{"x1", "x2", "x3"} {
		records = append(records,
			connectome.Record{"subject_id": s, "region": "A", "value": float64(i), "group": "x"},
			connectome.Record{"subject_id": s, "region": "B", "value": float64(i * i), "group": "x"},
		)
	}
	// Neither y subject has a region B value.
	records = append(records,
		connectome.Record{"subject_id": "y1", "region": "A", "value": 1.5, "group": "y"},
		connectome.Record{"subject_id": "y2", "region": "A", "value": 2.5, "group": "y"},
	)

	result, err := newTestService().CompareGroups(context.Background(), CompareRequest{
		Table:           connectome.NewTable([]string{"subject_id", "region", "value", "group"}, records),
		Layout:          connectome.Layout{Shape: connectome.ShapeLong, GroupColumn: "group", MissingPolicy: connectome.MissingDropSubjects},
		NumPermutations: 10,
		Seed:            seed(1),
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, core.ErrInsufficientData)
	assert.NotErrorIs(t, err, core.ErrSchema)
	assert.Contains(t, err.Error(), `"y"`)
}

func TestCompareGroups_SyntheticCohort(t *testing.T) {
	gen := testkit.NewCohortGenerator(testkit.DefaultCohortConfig())
	svc := newTestService()

	result, err := svc.CompareGroups(context.Background(), CompareRequest{
		Table:           gen.GenerateLong(),
		Layout:          groupedLong,
		Metric:          metrics.NameFrobeniusNorm,
		NumPermutations: 300,
		Seed:            seed(11),
	})
	require.NoError(t, err)
	assert.Less(t, result.PValues.Scalar(), 0.05)
}
