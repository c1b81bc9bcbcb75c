package connectome

import (
	"fmt"
	"sort"
	"strings"

	"popconn/domain/core"
)

// Record is one row of a tabular source, keyed by column name.
type Record map[string]any

// Table is an already-validated tabular source presented to the core by
// column name. Cells may hold float64, any Go integer, json.Number, numeric
// strings, nil, or anything else (rejected as non-numeric where a number is
// required).
type Table struct {
	Columns []string `json:"columns"`
	Records []Record `json:"records"`
}

// NewTable builds a table, inferring the column set from the records when
// columns is empty.
func NewTable(columns []string, records []Record) Table {
	t := Table{Columns: columns, Records: records}
	if len(t.Columns) == 0 {
		t.Columns = t.InferColumns()
	}
	return t
}

// InferColumns returns the sorted union of record keys.
func (t Table) InferColumns() []string {
	seen := make(map[string]struct{})
	for _, r := range t.Records {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// HasColumn reports whether name is a declared column.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Len returns the number of records.
func (t Table) Len() int {
	return len(t.Records)
}

// Shape selects how a table lays out observations.
type Shape string

const (
	// ShapeWide has one record per subject and one column per region.
	ShapeWide Shape = "wide"
	// ShapeLong has one record per subject-region-value triple.
	ShapeLong Shape = "long"
)

// ParseShape parses a shape name.
func ParseShape(s string) (Shape, error) {
	switch Shape(strings.ToLower(strings.TrimSpace(s))) {
	case ShapeWide:
		return ShapeWide, nil
	case ShapeLong:
		return ShapeLong, nil
	}
	return "", core.NewInvalidArgumentError("shape", fmt.Sprintf("unknown shape %q (want wide|long)", s))
}

// MissingPolicy selects what happens to subjects lacking region measurements.
type MissingPolicy string

const (
	// MissingReject fails the operation on any missing value.
	MissingReject MissingPolicy = "reject"
	// MissingDropSubjects excludes every subject with a missing value.
	MissingDropSubjects MissingPolicy = "drop"
	// MissingDropRegions excludes every region with a missing value.
	MissingDropRegions MissingPolicy = "drop_regions"
)

// ParseMissingPolicy parses a missing-data policy name.
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch MissingPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case MissingReject:
		return MissingReject, nil
	case MissingDropSubjects, "drop_subjects":
		return MissingDropSubjects, nil
	case MissingDropRegions:
		return MissingDropRegions, nil
	}
	return "", core.NewInvalidArgumentError("missing_policy", fmt.Sprintf("unknown policy %q (want reject|drop|drop_regions)", s))
}

// Layout describes how a table presents subjects, regions and groups.
type Layout struct {
	Shape         Shape  `json:"shape" yaml:"shape"`
	SubjectColumn string `json:"subject_column,omitempty" yaml:"subject_column"`
	RegionColumn  string `json:"region_column,omitempty" yaml:"region_column"`
	ValueColumn   string `json:"value_column,omitempty" yaml:"value_column"`
	// RegionColumns declares the wide-format region columns. When empty,
	// every column other than the subject and group columns is a region.
	RegionColumns []string `json:"region_columns,omitempty" yaml:"region_columns"`
	// GroupColumn optionally names the group label column.
	GroupColumn   string        `json:"group_column,omitempty" yaml:"group_column"`
	MissingPolicy MissingPolicy `json:"missing_policy,omitempty" yaml:"missing_policy"`
}
