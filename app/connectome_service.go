package app

import (
	"context"
	"fmt"

	"popconn/domain/connectome"
	"popconn/domain/core"
	"popconn/ports"
)

// Permutation counts applied when a request does not set one
const (
	DefaultPermutations    = 1000
	DefaultMaxPermutations = 100000
)

// ConnectomeService builds population connectomes and compares them between
// two groups
type ConnectomeService struct {
	reshaper ports.ReshaperPort
	engine   ports.ConnectomeEngine
	battery  ports.BatteryPort
	metrics  ports.MetricResolver

	defaultPermutations int
	maxPermutations     int
}

// BuildRequest asks for the connectome of every subject in a table
type BuildRequest struct {
	Table  connectome.Table
	Layout connectome.Layout
	Method connectome.Method // defaults to pearson
}

// CompareRequest asks for a two-group permutation comparison. Layout must
// name a group column.
type CompareRequest struct {
	Table  connectome.Table
	Layout connectome.Layout
	Method connectome.Method // defaults to pearson
	Metric string            // catalog name; defaults to the resolver's default

	NumPermutations int // 0 selects the service default
	Seed            *uint64

	ReturnDistribution bool
	KeepLabels         bool
}

// NewConnectomeService creates a connectome service
func NewConnectomeService(reshaper ports.ReshaperPort, engine ports.ConnectomeEngine, battery ports.BatteryPort, metrics ports.MetricResolver) *ConnectomeService {
	return &ConnectomeService{
		reshaper:            reshaper,
		engine:              engine,
		battery:             battery,
		metrics:             metrics,
		defaultPermutations: DefaultPermutations,
		maxPermutations:     DefaultMaxPermutations,
	}
}

// SetPermutationLimits overrides the default and maximum trial counts
func (s *ConnectomeService) SetPermutationLimits(defaultN, maxN int) {
	if defaultN > 0 {
		s.defaultPermutations = defaultN
	}
	if maxN > 0 {
		s.maxPermutations = maxN
	}
}

// BuildConnectome reshapes the table and estimates one region x region matrix
// over all of its subjects
func (s *ConnectomeService) BuildConnectome(ctx context.Context, req BuildRequest) (*connectome.ConnectomeMatrix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	method, err := resolveMethod(req.Method)
	if err != nil {
		return nil, err
	}

	m, err := s.reshaper.Reshape(req.Table, req.Layout)
	if err != nil {
		return nil, fmt.Errorf("reshape table: %w", err)
	}
	c, err := s.engine.Compute(m, method)
	if err != nil {
		return nil, fmt.Errorf("compute %s connectome: %w", method, err)
	}
	return c, nil
}

// CompareGroups reshapes the table, splits its subjects by the group column
// and runs a permutation test on the chosen metric. Group 0 is the label seen
// first in the table.
func (s *ConnectomeService) CompareGroups(ctx context.Context, req CompareRequest) (*connectome.PermutationResult, error) {
	if req.Layout.GroupColumn == "" {
		return nil, core.NewInvalidArgumentError("group_column", "a group column is required to compare groups")
	}
	method, err := resolveMethod(req.Method)
	if err != nil {
		return nil, err
	}
	n, err := s.permutations(req.NumPermutations)
	if err != nil {
		return nil, err
	}
	metric, err := s.metrics(req.Metric)
	if err != nil {
		return nil, err
	}

	m, err := s.reshaper.Reshape(req.Table, req.Layout)
	if err != nil {
		return nil, fmt.Errorf("reshape table: %w", err)
	}
	groups, err := connectome.GroupsFromMatrix(m)
	if err != nil {
		return nil, fmt.Errorf("group column %q: %w", req.Layout.GroupColumn, err)
	}

	result, err := s.battery.Run(ctx, ports.PermutationRequest{
		Matrix:             m,
		Groups:             groups,
		Metric:             metric,
		Method:             method,
		NumPermutations:    n,
		Seed:               req.Seed,
		ReturnDistribution: req.ReturnDistribution,
		KeepLabels:         req.KeepLabels,
	})
	if err != nil {
		return nil, fmt.Errorf("compare %s vs %s: %w", groups.Labels()[0], groups.Labels()[1], err)
	}
	return result, nil
}

func (s *ConnectomeService) permutations(requested int) (int, error) {
	switch {
	case requested == 0:
		return s.defaultPermutations, nil
	case requested < 0:
		return 0, core.NewInvalidArgumentError("n_permutations", fmt.Sprintf("must be positive, got %d", requested))
	case requested > s.maxPermutations:
		return 0, core.NewInvalidArgumentError("n_permutations", fmt.Sprintf("%d exceeds the limit of %d", requested, s.maxPermutations))
	}
	return requested, nil
}

func resolveMethod(m connectome.Method) (connectome.Method, error) {
	if m == "" {
		return connectome.MethodPearson, nil
	}
	return connectome.ParseMethod(string(m))
}
