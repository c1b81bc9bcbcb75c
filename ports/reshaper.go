package ports

import (
	"popconn/domain/connectome"
)

// ReshaperPort normalizes tabular sources into canonical matrices
type ReshaperPort interface {
	Reshape(table connectome.Table, layout connectome.Layout) (*connectome.CanonicalMatrix, error)
}
