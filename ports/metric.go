package ports

import (
	"fmt"

	"popconn/domain/connectome"
)

// Metric turns two connectome matrices with identical region ordering into a
// statistic. Implementations must be pure: the permutation tester calls them
// concurrently from many trials.
type Metric interface {
	Compute(a, b *connectome.ConnectomeMatrix) (connectome.Statistic, error)
}

// MetricFunc adapts a plain function to Metric.
type MetricFunc func(a, b *connectome.ConnectomeMatrix) (connectome.Statistic, error)

// Compute calls f(a, b).
func (f MetricFunc) Compute(a, b *connectome.ConnectomeMatrix) (connectome.Statistic, error) {
	return f(a, b)
}

// MetricName returns the catalog name of m when it reports one, and its Go
// type otherwise.
func MetricName(m Metric) string {
	if named, ok := m.(interface{ Name() string }); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", m)
}

// MetricResolver resolves a metric by catalog name. An empty name selects
// the resolver's default.
type MetricResolver func(name string) (Metric, error)
