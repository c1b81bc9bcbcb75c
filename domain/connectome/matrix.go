package connectome

import (
	"encoding/json"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"popconn/domain/core"
)

// Method selects how region pairs are related across subjects.
type Method string

const (
	MethodPearson    Method = "pearson"
	MethodSpearman   Method = "spearman"
	MethodKendall    Method = "kendall"
	MethodCovariance Method = "covariance"
)

// ParseMethod parses a method name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodPearson, MethodSpearman, MethodKendall, MethodCovariance:
		return m, nil
	}
	return "", core.NewInvalidArgumentError("method", fmt.Sprintf("unknown method %q (want pearson|spearman|kendall|covariance)", s))
}

// IsCorrelation reports whether the method yields a unit-diagonal matrix.
func (m Method) IsCorrelation() bool {
	return m == MethodPearson || m == MethodSpearman || m == MethodKendall
}

// CanonicalMatrix is the subject x region matrix every computation starts
// from. Subjects and regions are unique and ordered; values hold no missing
// entries. It is never mutated after construction.
type CanonicalMatrix struct {
	subjects   []string
	regions    []string
	labels     []string
	groupOrder []string
	values     *mat.Dense
}

// NewCanonicalMatrix validates and wraps a subjects x regions matrix. labels
// is either empty or holds one group label per subject; groupOrder lists the
// distinct labels in the order the source presented them.
func NewCanonicalMatrix(subjects, regions []string, values *mat.Dense, labels, groupOrder []string) (*CanonicalMatrix, error) {
	if values == nil {
		if len(subjects) != 0 || len(regions) != 0 {
			return nil, core.NewShapeMismatchError("nil values for non-empty subjects/regions")
		}
	} else if r, c := values.Dims(); r != len(subjects) || c != len(regions) {
		return nil, core.NewShapeMismatchError(fmt.Sprintf("values are %dx%d, want %dx%d", r, c, len(subjects), len(regions)))
	}
	if len(labels) != 0 && len(labels) != len(subjects) {
		return nil, core.NewShapeMismatchError(fmt.Sprintf("%d labels for %d subjects", len(labels), len(subjects)))
	}
	if dup, ok := firstDuplicate(subjects); ok {
		return nil, core.NewShapeError(dup, "", "duplicate subject")
	}
	if dup, ok := firstDuplicate(regions); ok {
		return nil, core.NewShapeError("", dup, "duplicate region")
	}

	return &CanonicalMatrix{
		subjects:   append([]string(nil), subjects...),
		regions:    append([]string(nil), regions...),
		labels:     append([]string(nil), labels...),
		groupOrder: append([]string(nil), groupOrder...),
		values:     values,
	}, nil
}

func firstDuplicate(keys []string) (string, bool) {
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			return k, true
		}
		seen[k] = struct{}{}
	}
	return "", false
}

// Subjects returns the ordered subject ids.
func (m *CanonicalMatrix) Subjects() []string { return append([]string(nil), m.subjects...) }

// Regions returns the ordered region names.
func (m *CanonicalMatrix) Regions() []string { return append([]string(nil), m.regions...) }

// Labels returns the group label of every subject, or nil when the source
// carried no group column.
func (m *CanonicalMatrix) Labels() []string {
	if len(m.labels) == 0 {
		return nil
	}
	return append([]string(nil), m.labels...)
}

// GroupOrder returns the distinct group labels in source order.
func (m *CanonicalMatrix) GroupOrder() []string { return append([]string(nil), m.groupOrder...) }

// HasLabels reports whether every subject carries a group label.
func (m *CanonicalMatrix) HasLabels() bool { return len(m.labels) > 0 }

// NumSubjects returns the number of rows.
func (m *CanonicalMatrix) NumSubjects() int { return len(m.subjects) }

// NumRegions returns the number of columns.
func (m *CanonicalMatrix) NumRegions() int { return len(m.regions) }

// At returns the value of subject i at region j.
func (m *CanonicalMatrix) At(i, j int) float64 { return m.values.At(i, j) }

// Values returns a read-only view of the underlying matrix.
func (m *CanonicalMatrix) Values() mat.Matrix {
	if m.values == nil {
		return nil
	}
	return m.values
}

// Subset copies the given subject rows into a dense matrix.
func (m *CanonicalMatrix) Subset(rows []int) *mat.Dense {
	out := mat.NewDense(len(rows), len(m.regions), nil)
	for k, i := range rows {
		out.SetRow(k, m.values.RawRowView(i))
	}
	return out
}

// ConnectomeMatrix is a symmetric region x region matrix. The diagonal is
// exactly 1.0 for correlation methods and holds region variances for
// covariance.
type ConnectomeMatrix struct {
	regions  []string
	method   Method
	subjects int
	values   *mat.SymDense
}

// NewConnectomeMatrix wraps a symmetric matrix computed from subjects samples.
func NewConnectomeMatrix(regions []string, method Method, subjects int, values *mat.SymDense) (*ConnectomeMatrix, error) {
	if values == nil || values.SymmetricDim() != len(regions) {
		n := 0
		if values != nil {
			n = values.SymmetricDim()
		}
		return nil, core.NewShapeMismatchError(fmt.Sprintf("%d regions for a %dx%d matrix", len(regions), n, n))
	}
	return &ConnectomeMatrix{
		regions:  append([]string(nil), regions...),
		method:   method,
		subjects: subjects,
		values:   values,
	}, nil
}

// Regions returns the row/column region order.
func (c *ConnectomeMatrix) Regions() []string { return append([]string(nil), c.regions...) }

// Method returns the method used to compute the matrix.
func (c *ConnectomeMatrix) Method() Method { return c.method }

// Subjects returns the number of subjects the matrix was estimated from.
func (c *ConnectomeMatrix) Subjects() int { return c.subjects }

// Size returns the number of regions.
func (c *ConnectomeMatrix) Size() int { return len(c.regions) }

// At returns entry (i, j).
func (c *ConnectomeMatrix) At(i, j int) float64 { return c.values.At(i, j) }

// Values returns a read-only symmetric view.
func (c *ConnectomeMatrix) Values() mat.Symmetric { return c.values }

// Get looks an entry up by region name.
func (c *ConnectomeMatrix) Get(a, b string) (float64, bool) {
	i, j := indexOf(c.regions, a), indexOf(c.regions, b)
	if i < 0 || j < 0 {
		return 0, false
	}
	return c.values.At(i, j), true
}

// Table copies the matrix into row-major nested slices.
func (c *ConnectomeMatrix) Table() [][]float64 {
	return denseTable(c.values)
}

// SameRegions fails with a shape mismatch unless other shares this matrix's
// exact region ordering.
func (c *ConnectomeMatrix) SameRegions(other *ConnectomeMatrix) error {
	if other == nil {
		return core.NewShapeMismatchError("nil connectome matrix")
	}
	if len(c.regions) != len(other.regions) {
		return core.NewShapeMismatchError(fmt.Sprintf("%d regions vs %d regions", len(c.regions), len(other.regions)))
	}
	for i := range c.regions {
		if c.regions[i] != other.regions[i] {
			return &core.DataError{
				Kind:   core.ErrShapeMismatch,
				Region: c.regions[i],
				Detail: fmt.Sprintf("region order differs at position %d (%q vs %q)", i, c.regions[i], other.regions[i]),
			}
		}
	}
	return nil
}

type connectomeJSON struct {
	Regions  []string    `json:"regions"`
	Method   Method      `json:"method"`
	Subjects int         `json:"subjects"`
	Values   [][]float64 `json:"values"`
}

// MarshalJSON renders the matrix as a plain region-indexed table.
func (c *ConnectomeMatrix) MarshalJSON() ([]byte, error) {
	return json.Marshal(connectomeJSON{
		Regions:  c.regions,
		Method:   c.method,
		Subjects: c.subjects,
		Values:   c.Table(),
	})
}

func indexOf(keys []string, k string) int {
	for i, v := range keys {
		if v == k {
			return i
		}
	}
	return -1
}

func denseTable(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := range r {
		out[i] = make([]float64, c)
		for j := range c {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}
