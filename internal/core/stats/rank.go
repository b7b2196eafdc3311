package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// stdNormal is the reference distribution for the large-sample rank test
var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// midranks assigns average ranks (1-based) to xs, ties sharing their mean rank.
// Returns the ranks in input order and the tie-correction term sum(t^3 - t)
func midranks(xs []float64) (ranks []float64, tieTerm float64) {
	n := len(xs)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	ranks = make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && xs[idx[j+1]] == xs[idx[i]] {
			j++
		}
		avg := float64(i+j+2) / 2 // ranks i+1 .. j+1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		t := float64(j - i + 1)
		if t > 1 {
			tieTerm += t*t*t - t
		}
		i = j + 1
	}
	return ranks, tieTerm
}

// MannWhitneyResult holds the rank test output
type MannWhitneyResult struct {
	U float64 // U statistic of the first sample
	P float64 // one-sided p-value, alternative "first sample smaller"
}

// MannWhitneyLess performs a one-sided Mann-Whitney U test with the
// alternative that values in pre are stochastically smaller than in post.
// Normal approximation with tie correction and continuity correction.
// Returns NaN statistics when either sample is empty or all values tie
func MannWhitneyLess(pre, post []float64) MannWhitneyResult {
	n1, n2 := len(pre), len(post)
	if n1 == 0 || n2 == 0 {
		return MannWhitneyResult{U: math.NaN(), P: math.NaN()}
	}
	combined := make([]float64, 0, n1+n2)
	combined = append(combined, pre...)
	combined = append(combined, post...)
	ranks, tieTerm := midranks(combined)

	var r1 float64
	for i := 0; i < n1; i++ {
		r1 += ranks[i]
	}
	u1 := r1 - float64(n1)*float64(n1+1)/2

	fn1, fn2 := float64(n1), float64(n2)
	n := fn1 + fn2
	mu := fn1 * fn2 / 2
	variance := fn1 * fn2 / 12 * ((n + 1) - tieTerm/(n*(n-1)))
	if variance <= 0 {
		// every value identical; no evidence either way
		return MannWhitneyResult{U: u1, P: math.NaN()}
	}
	sigma := math.Sqrt(variance)
	z := (u1 + 0.5 - mu) / sigma
	return MannWhitneyResult{U: u1, P: stdNormal.CDF(z)}
}

// RankBiserial returns the rank-biserial correlation derived from the U
// statistic of the first sample: r = 1 - 2U/(n1*n2). Positive values mean
// the second sample dominates
func RankBiserial(u float64, n1, n2 int) float64 {
	if n1 == 0 || n2 == 0 || math.IsNaN(u) {
		return math.NaN()
	}
	return 1 - 2*u/(float64(n1)*float64(n2))
}

// PearsonR returns the Pearson correlation of x and y with a two-sided
// p-value from the t approximation. NaN below 3 pairs
func PearsonR(x, y []float64) (r, p float64) {
	if len(x) != len(y) || len(x) < 3 {
		return math.NaN(), math.NaN()
	}
	r = correlation(x, y)
	return r, corrPValue(r, len(x))
}

// SpearmanR returns the Spearman rank correlation with a two-sided p-value
// from the t approximation. NaN below 3 pairs
func SpearmanR(x, y []float64) (r, p float64) {
	if len(x) != len(y) || len(x) < 3 {
		return math.NaN(), math.NaN()
	}
	rx, _ := midranks(x)
	ry, _ := midranks(y)
	r = correlation(rx, ry)
	return r, corrPValue(r, len(x))
}

func correlation(x, y []float64) float64 {
	mx, my := Mean(x), Mean(y)
	var sxy, sxx, syy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	return sxy / math.Sqrt(sxx*syy)
}

func corrPValue(r float64, n int) float64 {
	if math.IsNaN(r) {
		return math.NaN()
	}
	if r >= 1 || r <= -1 {
		return 0
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	td := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * td.CDF(-math.Abs(t))
}
