package connectome

import (
	"fmt"
	"math/rand/v2"

	"popconn/domain/core"
)

// GroupAssignment maps every subject of a canonical matrix to one of exactly
// two group labels. Both groups are non-empty and their sizes sum to the
// number of subjects.
type GroupAssignment struct {
	labels     [2]string
	subjects   []string
	membership []int
}

// NewGroupAssignment builds an assignment from per-subject labels. order
// fixes which label is group 0 and which is group 1; when empty, labels are
// ordered by first appearance.
func NewGroupAssignment(subjects, labels []string, order ...string) (GroupAssignment, error) {
	if len(subjects) != len(labels) {
		return GroupAssignment{}, core.NewShapeMismatchError(fmt.Sprintf("%d labels for %d subjects", len(labels), len(subjects)))
	}

	distinct := distinctInOrder(labels)
	if len(order) == 0 {
		order = distinct
	}
	if len(distinct) != 2 {
		return GroupAssignment{}, &core.DataError{
			Kind:   core.ErrSchema,
			Detail: fmt.Sprintf("expected exactly 2 groups, found %d: %q", len(distinct), distinct),
		}
	}
	if len(order) != 2 || !containsAll(order, distinct) {
		return GroupAssignment{}, core.NewInvalidArgumentError("group_order", fmt.Sprintf("order %q does not match labels %q", order, distinct))
	}

	ga := GroupAssignment{
		labels:     [2]string{order[0], order[1]},
		subjects:   append([]string(nil), subjects...),
		membership: make([]int, len(labels)),
	}
	for i, l := range labels {
		if l == order[1] {
			ga.membership[i] = 1
		}
	}
	return ga, nil
}

// GroupsFromMatrix builds the assignment carried by a labelled canonical
// matrix.
func GroupsFromMatrix(m *CanonicalMatrix) (GroupAssignment, error) {
	if !m.HasLabels() {
		return GroupAssignment{}, core.NewSchemaError("", "canonical matrix carries no group labels")
	}
	order := m.GroupOrder()
	// Subjects may have been dropped, leaving a label out of the source order.
	present := distinctInOrder(m.Labels())
	filtered := order[:0:0]
	var emptied []string
	for _, l := range order {
		if containsAll(present, []string{l}) {
			filtered = append(filtered, l)
		} else {
			emptied = append(emptied, l)
		}
	}
	if len(filtered) < 2 && len(emptied) > 0 {
		return GroupAssignment{}, core.NewInsufficientDataError(
			fmt.Sprintf("group %q has no subjects left after dropping incomplete subjects", emptied[0]))
	}
	return NewGroupAssignment(m.Subjects(), m.Labels(), filtered...)
}

func distinctInOrder(labels []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

func containsAll(set, want []string) bool {
	for _, w := range want {
		found := false
		for _, s := range set {
			if s == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Labels returns the two group labels, group 0 first.
func (g GroupAssignment) Labels() [2]string { return g.labels }

// Subjects returns the subjects in canonical order.
func (g GroupAssignment) Subjects() []string { return append([]string(nil), g.subjects...) }

// Len returns the number of subjects.
func (g GroupAssignment) Len() int { return len(g.membership) }

// Sizes returns the number of subjects in each group.
func (g GroupAssignment) Sizes() [2]int {
	var sizes [2]int
	for _, m := range g.membership {
		sizes[m]++
	}
	return sizes
}

// Indices returns the subject rows belonging to group.
func (g GroupAssignment) Indices(group int) []int {
	var out []int
	for i, m := range g.membership {
		if m == group {
			out = append(out, i)
		}
	}
	return out
}

// LabelOf returns the label of subject i.
func (g GroupAssignment) LabelOf(i int) string { return g.labels[g.membership[i]] }

// SubjectLabels returns the label of every subject in canonical order.
func (g GroupAssignment) SubjectLabels() []string {
	out := make([]string, len(g.membership))
	for i := range g.membership {
		out[i] = g.LabelOf(i)
	}
	return out
}

// Permute shuffles the label vector with a Fisher-Yates pass over rng.
// Subject identities stay attached to their rows; only labels move, so group
// sizes are preserved.
func (g GroupAssignment) Permute(rng *rand.Rand) GroupAssignment {
	shuffled := append([]int(nil), g.membership...)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return GroupAssignment{
		labels:     g.labels,
		subjects:   g.subjects,
		membership: shuffled,
	}
}
