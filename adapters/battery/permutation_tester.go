package battery

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"popconn/domain/connectome"
	"popconn/domain/core"
	"popconn/internal"
	"popconn/ports"
)

// trialStreamName namespaces the per-trial RNG streams
const trialStreamName = "permutation"

// PermutationTester compares two groups by relabelling subjects at random and
// recomputing a metric on every relabelled split
type PermutationTester struct {
	engine   ports.ConnectomeEngine
	rngPort  ports.RNGPort
	observer ports.RunObserver
	logger   *internal.Logger
	workers  int
}

var _ ports.BatteryPort = (*PermutationTester)(nil)

// NewPermutationTester creates a tester using one worker per CPU
func NewPermutationTester(engine ports.ConnectomeEngine, rngPort ports.RNGPort, logger *internal.Logger) *PermutationTester {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &PermutationTester{
		engine:   engine,
		rngPort:  rngPort,
		observer: ports.NopObserver{},
		logger:   logger.With("permutation_tester"),
		workers:  runtime.GOMAXPROCS(0),
	}
}

// SetWorkers bounds the number of concurrent trials. Results do not depend on
// this value.
func (pt *PermutationTester) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	pt.workers = n
}

// SetObserver installs a run observer (metrics)
func (pt *PermutationTester) SetObserver(o ports.RunObserver) {
	if o == nil {
		o = ports.NopObserver{}
	}
	pt.observer = o
}

// Run performs the permutation test. Any failing trial aborts the whole run;
// no partial result is ever returned.
func (pt *PermutationTester) Run(ctx context.Context, req ports.PermutationRequest) (result *connectome.PermutationResult, err error) {
	start := time.Now()
	metricName := ports.MetricName(req.Metric)
	defer func() {
		pt.observer.RunFinished(metricName, outcome(err), time.Since(start))
	}()

	if err := pt.validate(req); err != nil {
		return nil, err
	}
	method := req.Method
	if method == "" {
		method = connectome.MethodPearson
	}

	var seed uint64
	if req.Seed != nil {
		seed = *req.Seed
	} else {
		seed = pt.rngPort.NewSeed()
	}

	sizes := req.Groups.Sizes()
	pt.logger.Info("permutation run: metric=%s method=%s groups=%v sizes=%v trials=%d seed=%d",
		metricName, method, req.Groups.Labels(), sizes, req.NumPermutations, seed)

	observed, err := pt.statistic(req.Matrix, req.Groups, method, req.Metric)
	if err != nil {
		return nil, fmt.Errorf("observed statistic: %w", err)
	}

	null, labels, err := pt.nullDistribution(ctx, req, method, seed, observed, metricName)
	if err != nil {
		return nil, err
	}

	pvalues := pValues(observed, null)

	result = &connectome.PermutationResult{
		ID:              core.NewRunID(),
		Metric:          metricName,
		Method:          method,
		GroupLabels:     req.Groups.Labels(),
		GroupSizes:      sizes,
		Regions:         req.Matrix.Regions(),
		NumPermutations: req.NumPermutations,
		Seed:            seed,
		Observed:        observed,
		PValues:         pvalues,
		CreatedAt:       core.Now(),
	}
	if req.ReturnDistribution {
		result.NullDistribution = null
	}
	if req.KeepLabels {
		result.PermutationLabels = labels
	}
	if observed.IsScalar() {
		summary, err := summarize(null)
		if err != nil {
			return nil, fmt.Errorf("summarize null distribution: %w", err)
		}
		result.Summary = summary
	}

	pt.logger.Info("permutation run finished: metric=%s trials=%d elapsed=%v", metricName, req.NumPermutations, time.Since(start))
	return result, nil
}

func (pt *PermutationTester) validate(req ports.PermutationRequest) error {
	if req.Matrix == nil {
		return core.NewInvalidArgumentError("matrix", "canonical matrix is required")
	}
	if req.Metric == nil {
		return core.NewInvalidArgumentError("metric", "metric is required")
	}
	if req.NumPermutations < 1 {
		return core.NewInvalidArgumentError("n_permutations", fmt.Sprintf("must be at least 1, got %d", req.NumPermutations))
	}
	if req.Groups.Len() != req.Matrix.NumSubjects() {
		return core.NewShapeMismatchError(fmt.Sprintf("%d group labels for %d subjects", req.Groups.Len(), req.Matrix.NumSubjects()))
	}
	sizes := req.Groups.Sizes()
	labels := req.Groups.Labels()
	for g, n := range sizes {
		if n < 2 {
			return core.NewInsufficientDataError(fmt.Sprintf("group %q has %d subjects; at least 2 are required", labels[g], n))
		}
	}
	return nil
}

// statistic computes both group connectomes under an assignment and feeds
// them to the metric, group 0 first.
func (pt *PermutationTester) statistic(m *connectome.CanonicalMatrix, groups connectome.GroupAssignment, method connectome.Method, metric ports.Metric) (connectome.Statistic, error) {
	a, err := pt.engine.ComputeRows(m, groups.Indices(0), method)
	if err != nil {
		return connectome.Statistic{}, err
	}
	b, err := pt.engine.ComputeRows(m, groups.Indices(1), method)
	if err != nil {
		return connectome.Statistic{}, err
	}
	s, err := metric.Compute(a, b)
	if err != nil {
		return connectome.Statistic{}, err
	}
	if s.IsZero() {
		return connectome.Statistic{}, core.NewShapeMismatchError("metric returned an empty statistic")
	}
	if s.HasNaN() {
		return connectome.Statistic{}, &core.DataError{Kind: core.ErrDegenerateVariance, Detail: "metric returned NaN"}
	}
	return s, nil
}

// nullDistribution fans trials out over a bounded worker pool. Trial t always
// draws from the stream (seed, t), so the distribution is identical for any
// worker count.
func (pt *PermutationTester) nullDistribution(ctx context.Context, req ports.PermutationRequest, method connectome.Method, seed uint64, observed connectome.Statistic, metricName string) ([]connectome.Statistic, [][]string, error) {
	n := req.NumPermutations
	null := make([]connectome.Statistic, n)
	var labels [][]string
	if req.KeepLabels {
		labels = make([][]string, n)
	}

	workers := min(pt.workers, n)
	var completed atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	work := make(chan int)

	g.Go(func() error {
		defer close(work)
		for t := range n {
			select {
			case work <- t:
			case <-gCtx.Done():
				return gCtx.Err()
			}
		}
		return nil
	})

	for range workers {
		g.Go(func() error {
			for t := range work {
				if err := gCtx.Err(); err != nil {
					return err
				}
				perm := req.Groups.Permute(pt.rngPort.TrialStream(trialStreamName, seed, t))
				s, err := pt.statistic(req.Matrix, perm, method, req.Metric)
				if err != nil {
					return fmt.Errorf("trial %d: %w", t, err)
				}
				if !s.SameShape(observed) {
					r1, c1 := s.Dims()
					r2, c2 := observed.Dims()
					return fmt.Errorf("trial %d: %w", t, core.NewShapeMismatchError(
						fmt.Sprintf("statistic is %dx%d, observed is %dx%d", r1, c1, r2, c2)))
				}
				null[t] = s
				if labels != nil {
					labels[t] = perm.SubjectLabels()
				}
				completed.Add(1)
				pt.observer.TrialCompleted(metricName)
				pt.logger.Trace("trial %d done", t)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// A trial that failed on its own keeps its error even if the caller
		// cancelled meanwhile.
		if ctx.Err() != nil && isContextErr(err) {
			done := int(completed.Load())
			pt.logger.Warn("permutation run cancelled after %d of %d trials", done, n)
			return nil, nil, &core.IncompleteRunError{Completed: done, Requested: n, Cause: ctx.Err()}
		}
		return nil, nil, err
	}
	return null, labels, nil
}

// pValues applies (#{|null| >= |observed|} + 1) / (n + 1) to every element.
func pValues(observed connectome.Statistic, null []connectome.Statistic) connectome.Statistic {
	values := make([]float64, observed.Len())
	denom := float64(len(null) + 1)
	for k := range values {
		obs := math.Abs(observed.Elem(k))
		extreme := 0
		for _, s := range null {
			if math.Abs(s.Elem(k)) >= obs {
				extreme++
			}
		}
		values[k] = float64(extreme+1) / denom
	}
	return observed.WithValues(values)
}

// summarize describes a scalar null distribution
func summarize(null []connectome.Statistic) (*connectome.NullSummary, error) {
	data := make(stats.Float64Data, len(null))
	for i, s := range null {
		data[i] = s.Scalar()
	}

	mean, err := stats.Mean(data)
	if err != nil {
		return nil, err
	}
	// A single trial has no sample deviation.
	stdDev := 0.0
	if len(data) > 1 {
		if stdDev, err = stats.StandardDeviationSample(data); err != nil {
			return nil, err
		}
	}
	lo, err := stats.Min(data)
	if err != nil {
		return nil, err
	}
	hi, err := stats.Max(data)
	if err != nil {
		return nil, err
	}
	p95, err := stats.Percentile(data, 95)
	if err != nil {
		return nil, err
	}
	p99, err := stats.Percentile(data, 99)
	if err != nil {
		return nil, err
	}

	return &connectome.NullSummary{
		Mean:         mean,
		StdDev:       stdDev,
		Min:          lo,
		Max:          hi,
		Percentile95: p95,
		Percentile99: p99,
	}, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrIncompleteRun):
		return "cancelled"
	default:
		return "error"
	}
}
