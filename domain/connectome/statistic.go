package connectome

import (
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Statistic is a metric outcome: a labelled matrix whose 1x1 form is a
// scalar and whose n x 1 form is a per-region vector. Null-distribution
// aggregation treats every shape elementwise.
type Statistic struct {
	rowLabels []string
	colLabels []string
	data      *mat.Dense
}

// NewScalar wraps a single value.
func NewScalar(label string, v float64) Statistic {
	return Statistic{
		rowLabels: []string{label},
		colLabels: []string{"value"},
		data:      mat.NewDense(1, 1, []float64{v}),
	}
}

// NewVector wraps one value per row label.
func NewVector(rowLabels []string, column string, values []float64) Statistic {
	return Statistic{
		rowLabels: append([]string(nil), rowLabels...),
		colLabels: []string{column},
		data:      mat.NewDense(len(values), 1, append([]float64(nil), values...)),
	}
}

// NewMatrixStatistic wraps a labelled matrix. The matrix is owned by the
// statistic afterwards.
func NewMatrixStatistic(rowLabels, colLabels []string, data *mat.Dense) Statistic {
	return Statistic{
		rowLabels: append([]string(nil), rowLabels...),
		colLabels: append([]string(nil), colLabels...),
		data:      data,
	}
}

// Dims returns rows and columns.
func (s Statistic) Dims() (int, int) {
	if s.data == nil {
		return 0, 0
	}
	return s.data.Dims()
}

// Len returns the number of elements.
func (s Statistic) Len() int {
	r, c := s.Dims()
	return r * c
}

// IsZero reports whether the statistic is empty.
func (s Statistic) IsZero() bool { return s.data == nil }

// IsScalar reports whether the statistic is a single value.
func (s Statistic) IsScalar() bool {
	r, c := s.Dims()
	return r == 1 && c == 1
}

// Scalar returns the (0, 0) element.
func (s Statistic) Scalar() float64 { return s.data.At(0, 0) }

// At returns element (i, j).
func (s Statistic) At(i, j int) float64 { return s.data.At(i, j) }

// Elem returns element k in row-major order.
func (s Statistic) Elem(k int) float64 {
	_, c := s.Dims()
	return s.data.At(k/c, k%c)
}

// RowLabels returns the row labels.
func (s Statistic) RowLabels() []string { return append([]string(nil), s.rowLabels...) }

// ColLabels returns the column labels.
func (s Statistic) ColLabels() []string { return append([]string(nil), s.colLabels...) }

// Data returns a read-only view of the values.
func (s Statistic) Data() mat.Matrix { return s.data }

// SameShape reports whether o has identical dimensions.
func (s Statistic) SameShape(o Statistic) bool {
	r1, c1 := s.Dims()
	r2, c2 := o.Dims()
	return r1 == r2 && c1 == c2
}

// HasNaN reports whether any element is NaN.
func (s Statistic) HasNaN() bool {
	for k := range s.Len() {
		if math.IsNaN(s.Elem(k)) {
			return true
		}
	}
	return false
}

// Table copies the values into row-major nested slices.
func (s Statistic) Table() [][]float64 {
	if s.data == nil {
		return nil
	}
	return denseTable(s.data)
}

// WithValues returns a statistic with the same labels and the given
// row-major values.
func (s Statistic) WithValues(values []float64) Statistic {
	r, c := s.Dims()
	return Statistic{
		rowLabels: s.rowLabels,
		colLabels: s.colLabels,
		data:      mat.NewDense(r, c, values),
	}
}

type statisticJSON struct {
	Rows    []string    `json:"rows"`
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// MarshalJSON renders the statistic as a labelled table.
func (s Statistic) MarshalJSON() ([]byte, error) {
	return json.Marshal(statisticJSON{
		Rows:    s.rowLabels,
		Columns: s.colLabels,
		Values:  s.Table(),
	})
}
