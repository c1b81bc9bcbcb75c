package engine

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// rankColumns replaces every column of x by its average ranks.
func rankColumns(x *mat.Dense) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	col := make([]float64, r)
	for j := range c {
		mat.Col(col, j, x)
		out.SetCol(j, computeRanks(col))
	}
	return out
}

// computeRanks converts values to 1-based ranks, averaging ties
func computeRanks(data []float64) []float64 {
	n := len(data)
	ranks := make([]float64, n)
	if n == 0 {
		return ranks
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return data[idx[a]] < data[idx[b]]
	})

	i := 0
	for i < n {
		j := i + 1
		for j < n && data[idx[j]] == data[idx[i]] {
			j++
		}
		avgRank := float64(i+1) + float64(j-i-1)/2.0
		for k := i; k < j; k++ {
			ranks[idx[k]] = avgRank
		}
		i = j
	}
	return ranks
}

// kendallMatrix computes Kendall's tau-b for every column pair of x.
func kendallMatrix(x *mat.Dense) *mat.SymDense {
	_, c := x.Dims()
	out := mat.NewSymDense(c, nil)
	cols := make([][]float64, c)
	for j := range c {
		cols[j] = mat.Col(nil, j, x)
	}
	for a := range c {
		out.SetSym(a, a, 1)
		for b := a + 1; b < c; b++ {
			out.SetSym(a, b, kendallTauB(cols[a], cols[b]))
		}
	}
	return out
}

// kendallTauB is (C - D) / sqrt((C + D + Ty) * (C + D + Tx)) where Tx and Ty
// count pairs tied only in x and only in y.
func kendallTauB(x, y []float64) float64 {
	var concordant, discordant, tiedX, tiedY float64
	for i := range x {
		for j := i + 1; j < len(x); j++ {
			dx := sign(x[i] - x[j])
			dy := sign(y[i] - y[j])
			switch {
			case dx == 0 && dy == 0:
			case dx == 0:
				tiedX++
			case dy == 0:
				tiedY++
			case dx == dy:
				concordant++
			default:
				discordant++
			}
		}
	}
	denom := math.Sqrt((concordant + discordant + tiedY) * (concordant + discordant + tiedX))
	if denom == 0 {
		return math.NaN()
	}
	return (concordant - discordant) / denom
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
