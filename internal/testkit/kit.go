package testkit

import (
	"popconn/domain/connectome"
)

// Worked example: six subjects, three regions, two age groups. Used by unit
// tests across packages and by the CLI "example" command.
var (
	WorkedExampleSubjects = []string{"s1", "s2", "s3", "s4", "s5", "s6"}
	WorkedExampleRegions  = []string{"A", "B", "C"}
	WorkedExampleGroups   = []string{"young", "young", "young", "old", "old", "old"}

	// WorkedExampleValues is row-major: subject x region.
	WorkedExampleValues = [][]float64{
		{1.0, 2.0, 3.0},
		{1.2, 2.1, 2.9},
		{0.8, 1.9, 2.7},
		{1.1, 1.8, 3.1},
		{1.3, 2.3, 2.8},
		{1.0, 2.0, 3.0},
	}
)

// Reference values for the worked example, computed independently.
const (
	// Pearson correlations over all six subjects
	WorkedPearsonAB = 0.6851769942
	WorkedPearsonAC = 0.1810412100
	WorkedPearsonBC = -0.4075773227

	// Young minus old pearson matrix difference
	WorkedDiffAB = 0.2629565259
	WorkedDiffAC = 1.4403679564
	WorkedDiffBC = 1.6518301357

	// Frobenius norm of the young minus old difference
	WorkedFrobenius = 3.1216498143
)

// WorkedExampleLong returns the worked example in long format with a "group"
// column: one record per subject-region-value triple, in subject order.
func WorkedExampleLong() connectome.Table {
	var records []connectome.Record
	for i, s := range WorkedExampleSubjects {
		for j, r := range WorkedExampleRegions {
			records = append(records, connectome.Record{
				"subject_id": s,
				"region":     r,
				"value":      WorkedExampleValues[i][j],
				"group":      WorkedExampleGroups[i],
			})
		}
	}
	return connectome.NewTable([]string{"subject_id", "region", "value", "group"}, records)
}

// WorkedExampleWide returns the worked example with one record per subject.
func WorkedExampleWide() connectome.Table {
	records := make([]connectome.Record, len(WorkedExampleSubjects))
	for i, s := range WorkedExampleSubjects {
		rec := connectome.Record{"subject_id": s, "group": WorkedExampleGroups[i]}
		for j, r := range WorkedExampleRegions {
			rec[r] = WorkedExampleValues[i][j]
		}
		records[i] = rec
	}
	return connectome.NewTable([]string{"subject_id", "A", "B", "C", "group"}, records)
}
