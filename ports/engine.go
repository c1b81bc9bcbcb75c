package ports

import (
	"popconn/domain/connectome"
)

// ConnectomeEngine estimates connectome matrices over subsets of subjects.
// Implementations must be safe for concurrent use.
type ConnectomeEngine interface {
	Compute(m *connectome.CanonicalMatrix, method connectome.Method) (*connectome.ConnectomeMatrix, error)
	ComputeRows(m *connectome.CanonicalMatrix, rows []int, method connectome.Method) (*connectome.ConnectomeMatrix, error)
}
