package reshape

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"popconn/domain/connectome"
	"popconn/domain/core"
	"popconn/internal"
)

// Default column names recognized in long-format tables
const (
	DefaultSubjectColumn = "subject_id"
	DefaultRegionColumn  = "region"
	DefaultValueColumn   = "value"
)

// maxListedMissing caps how many subject/region pairs an incomplete-data
// error spells out.
const maxListedMissing = 20

// Options describes how a table is laid out
type Options = connectome.Layout

func withDefaults(o Options) Options {
	if o.Shape == "" {
		o.Shape = connectome.ShapeLong
	}
	if o.Shape == connectome.ShapeLong {
		if o.SubjectColumn == "" {
			o.SubjectColumn = DefaultSubjectColumn
		}
		if o.RegionColumn == "" {
			o.RegionColumn = DefaultRegionColumn
		}
		if o.ValueColumn == "" {
			o.ValueColumn = DefaultValueColumn
		}
	}
	if o.MissingPolicy == "" {
		o.MissingPolicy = connectome.MissingReject
	}
	return o
}

// Reshaper normalizes wide or long tables into canonical subject x region
// matrices. Subjects and regions are ordered lexicographically so the same
// data yields the same matrix whatever its shape or row order.
type Reshaper struct {
	logger *internal.Logger
}

// NewReshaper creates a reshaper
func NewReshaper(logger *internal.Logger) *Reshaper {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Reshaper{logger: logger.With("reshaper")}
}

// grid is the pivot under construction: NaN marks a missing cell
type grid struct {
	subjects   []string
	regions    []string
	values     [][]float64
	labels     []string
	groupOrder []string
}

// Reshape converts table into a canonical matrix per opts
func (r *Reshaper) Reshape(table connectome.Table, opts Options) (*connectome.CanonicalMatrix, error) {
	opts = withDefaults(opts)
	policy, err := connectome.ParseMissingPolicy(string(opts.MissingPolicy))
	if err != nil {
		return nil, err
	}
	opts.MissingPolicy = policy

	var g *grid
	switch opts.Shape {
	case connectome.ShapeLong:
		g, err = r.pivotLong(table, opts)
	case connectome.ShapeWide:
		g, err = r.readWide(table, opts)
	default:
		return nil, core.NewInvalidArgumentError("shape", fmt.Sprintf("unknown shape %q", opts.Shape))
	}
	if err != nil {
		return nil, err
	}

	if err := r.applyMissingPolicy(g, opts.MissingPolicy); err != nil {
		return nil, err
	}

	data := make([]float64, 0, len(g.subjects)*len(g.regions))
	for _, row := range g.values {
		data = append(data, row...)
	}
	var values *mat.Dense
	if len(data) > 0 {
		values = mat.NewDense(len(g.subjects), len(g.regions), data)
	}

	r.logger.Debug("reshaped %s table: %d subjects x %d regions", opts.Shape, len(g.subjects), len(g.regions))
	return connectome.NewCanonicalMatrix(g.subjects, g.regions, values, g.labels, g.groupOrder)
}

type pairKey struct {
	subject string
	region  string
}

type pairValue struct {
	value   float64
	missing bool
}

// pivotLong builds the wide grid from an explicit (subject, region) -> value
// map. Conflicting duplicates are rejected rather than silently aggregated.
func (r *Reshaper) pivotLong(table connectome.Table, opts Options) (*grid, error) {
	required := []string{opts.SubjectColumn, opts.RegionColumn, opts.ValueColumn}
	if opts.GroupColumn != "" {
		required = append(required, opts.GroupColumn)
	}
	for _, col := range required {
		if !table.HasColumn(col) {
			return nil, core.NewSchemaError(col, "required column is absent")
		}
	}

	cells := make(map[pairKey]pairValue, len(table.Records))
	subjectSet := make(map[string]struct{})
	regionSet := make(map[string]struct{})
	groups := newGroupTracker()

	for i, rec := range table.Records {
		subject := identifier(rec[opts.SubjectColumn])
		if subject == "" {
			return nil, &core.DataError{Kind: core.ErrSchema, Column: opts.SubjectColumn, Detail: fmt.Sprintf("empty subject id in record %d", i)}
		}
		region := identifier(rec[opts.RegionColumn])
		if region == "" {
			return nil, &core.DataError{Kind: core.ErrSchema, Subject: subject, Column: opts.RegionColumn, Detail: fmt.Sprintf("empty region in record %d", i)}
		}

		v, kind := coerceNumeric(rec[opts.ValueColumn])
		if kind == cellInvalid {
			return nil, &core.DataError{
				Kind:    core.ErrShape,
				Subject: subject,
				Region:  region,
				Column:  opts.ValueColumn,
				Detail:  fmt.Sprintf("non-numeric value %v", rec[opts.ValueColumn]),
			}
		}
		current := pairValue{value: v, missing: kind == cellMissing}

		key := pairKey{subject: subject, region: region}
		if prev, ok := cells[key]; ok {
			if prev != current {
				return nil, core.NewShapeError(subject, region, fmt.Sprintf("duplicate rows with differing values %s and %s", prev, current))
			}
		}
		cells[key] = current
		subjectSet[subject] = struct{}{}
		regionSet[region] = struct{}{}

		if opts.GroupColumn != "" {
			if err := groups.observe(subject, rec[opts.GroupColumn], opts.GroupColumn); err != nil {
				return nil, err
			}
		}
	}

	g := &grid{
		subjects: sortedKeys(subjectSet),
		regions:  sortedKeys(regionSet),
	}
	g.values = make([][]float64, len(g.subjects))
	for i, s := range g.subjects {
		row := make([]float64, len(g.regions))
		for j, reg := range g.regions {
			c, ok := cells[pairKey{subject: s, region: reg}]
			if !ok || c.missing {
				row[j] = math.NaN()
				continue
			}
			row[j] = c.value
		}
		g.values[i] = row
	}
	if opts.GroupColumn != "" {
		g.labels = groups.labelsFor(g.subjects)
		g.groupOrder = groups.order
	}
	return g, nil
}

func (p pairValue) String() string {
	if p.missing {
		return "<missing>"
	}
	return strconv.FormatFloat(p.value, 'g', -1, 64)
}

// readWide validates a one-record-per-subject table
func (r *Reshaper) readWide(table connectome.Table, opts Options) (*grid, error) {
	subjectCol := opts.SubjectColumn
	if subjectCol == "" && table.HasColumn(DefaultSubjectColumn) {
		subjectCol = DefaultSubjectColumn
	}
	if subjectCol != "" && !table.HasColumn(subjectCol) {
		return nil, core.NewSchemaError(subjectCol, "subject column is absent")
	}
	if opts.GroupColumn != "" && !table.HasColumn(opts.GroupColumn) {
		return nil, core.NewSchemaError(opts.GroupColumn, "group column is absent")
	}

	regions := opts.RegionColumns
	if len(regions) == 0 {
		for _, c := range table.Columns {
			if c != subjectCol && c != opts.GroupColumn {
				regions = append(regions, c)
			}
		}
	}
	if len(regions) == 0 {
		return nil, core.NewSchemaError("", "no region columns")
	}
	for _, c := range regions {
		if !table.HasColumn(c) {
			return nil, core.NewSchemaError(c, "declared region column is absent")
		}
	}
	regions = append([]string(nil), regions...)
	sort.Strings(regions)
	if dup, ok := firstDuplicate(regions); ok {
		return nil, core.NewSchemaError(dup, "region column declared twice")
	}

	width := len(strconv.Itoa(len(table.Records)))
	rows := make(map[string][]float64, len(table.Records))
	groups := newGroupTracker()

	for i, rec := range table.Records {
		subject := fmt.Sprintf("row-%0*d", width, i+1)
		if subjectCol != "" {
			subject = identifier(rec[subjectCol])
			if subject == "" {
				return nil, &core.DataError{Kind: core.ErrSchema, Column: subjectCol, Detail: fmt.Sprintf("empty subject id in record %d", i)}
			}
		}
		if _, ok := rows[subject]; ok {
			return nil, core.NewShapeError(subject, "", "subject appears in more than one record")
		}

		row := make([]float64, len(regions))
		for j, col := range regions {
			v, kind := coerceNumeric(rec[col])
			switch kind {
			case cellInvalid:
				return nil, &core.DataError{
					Kind:    core.ErrSchema,
					Subject: subject,
					Column:  col,
					Detail:  fmt.Sprintf("region column holds non-numeric value %v", rec[col]),
				}
			case cellMissing:
				row[j] = math.NaN()
			default:
				row[j] = v
			}
		}
		rows[subject] = row

		if opts.GroupColumn != "" {
			if err := groups.observe(subject, rec[opts.GroupColumn], opts.GroupColumn); err != nil {
				return nil, err
			}
		}
	}

	g := &grid{subjects: make([]string, 0, len(rows)), regions: regions}
	for s := range rows {
		g.subjects = append(g.subjects, s)
	}
	sort.Strings(g.subjects)
	g.values = make([][]float64, len(g.subjects))
	for i, s := range g.subjects {
		g.values[i] = rows[s]
	}
	if opts.GroupColumn != "" {
		g.labels = groups.labelsFor(g.subjects)
		g.groupOrder = groups.order
	}
	return g, nil
}

// applyMissingPolicy rejects or drops incomplete subjects/regions in place.
// Values are never imputed.
func (r *Reshaper) applyMissingPolicy(g *grid, policy connectome.MissingPolicy) error {
	var missing []pairKey
	badSubjects := make(map[int]bool)
	badRegions := make(map[int]bool)
	for i, row := range g.values {
		for j, v := range row {
			if math.IsNaN(v) {
				missing = append(missing, pairKey{subject: g.subjects[i], region: g.regions[j]})
				badSubjects[i] = true
				badRegions[j] = true
			}
		}
	}
	if len(missing) == 0 {
		return checkNonEmpty(g)
	}

	switch policy {
	case connectome.MissingReject:
		listed := make([]string, 0, maxListedMissing)
		for k, m := range missing {
			if k == maxListedMissing {
				listed = append(listed, fmt.Sprintf("... %d more", len(missing)-maxListedMissing))
				break
			}
			listed = append(listed, m.subject+"/"+m.region)
		}
		return core.NewIncompleteDataError(missing[0].subject, missing[0].region,
			fmt.Sprintf("%d missing values: %s", len(missing), strings.Join(listed, ", ")))

	case connectome.MissingDropSubjects:
		keep := 0
		for i := range g.subjects {
			if badSubjects[i] {
				continue
			}
			g.subjects[keep] = g.subjects[i]
			g.values[keep] = g.values[i]
			if len(g.labels) > 0 {
				g.labels[keep] = g.labels[i]
			}
			keep++
		}
		r.logger.Warn("dropped %d of %d subjects with missing values", len(g.subjects)-keep, len(g.subjects))
		g.subjects = g.subjects[:keep]
		g.values = g.values[:keep]
		if len(g.labels) > 0 {
			g.labels = g.labels[:keep]
		}

	case connectome.MissingDropRegions:
		var regions []string
		var cols []int
		for j, reg := range g.regions {
			if !badRegions[j] {
				regions = append(regions, reg)
				cols = append(cols, j)
			}
		}
		for i, row := range g.values {
			kept := make([]float64, len(cols))
			for k, j := range cols {
				kept[k] = row[j]
			}
			g.values[i] = kept
		}
		r.logger.Warn("dropped %d of %d regions with missing values", len(g.regions)-len(regions), len(g.regions))
		g.regions = regions

	default:
		return core.NewInvalidArgumentError("missing_policy", fmt.Sprintf("unknown policy %q", policy))
	}

	return checkNonEmpty(g)
}

func checkNonEmpty(g *grid) error {
	if len(g.subjects) == 0 {
		return core.NewInsufficientDataError("no subjects with complete measurements")
	}
	if len(g.regions) == 0 {
		return core.NewInsufficientDataError("no regions with complete measurements")
	}
	return nil
}

// groupTracker records one label per subject and the source order of labels
type groupTracker struct {
	bySubject map[string]string
	order     []string
}

func newGroupTracker() *groupTracker {
	return &groupTracker{bySubject: make(map[string]string)}
}

func (t *groupTracker) observe(subject string, raw interface{}, column string) error {
	label := identifier(raw)
	if label == "" {
		return &core.DataError{Kind: core.ErrSchema, Subject: subject, Column: column, Detail: "empty group label"}
	}
	if prev, ok := t.bySubject[subject]; ok {
		if prev != label {
			return &core.DataError{
				Kind:    core.ErrShape,
				Subject: subject,
				Column:  column,
				Detail:  fmt.Sprintf("conflicting group labels %q and %q", prev, label),
			}
		}
		return nil
	}
	t.bySubject[subject] = label
	for _, l := range t.order {
		if l == label {
			return nil
		}
	}
	t.order = append(t.order, label)
	return nil
}

func (t *groupTracker) labelsFor(subjects []string) []string {
	out := make([]string, len(subjects))
	for i, s := range subjects {
		out[i] = t.bySubject[s]
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func firstDuplicate(sorted []string) (string, bool) {
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return sorted[i], true
		}
	}
	return "", false
}
