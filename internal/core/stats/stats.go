// Package stats implements the descriptive and inferential statistics shared
// by the analysis layers: quantiles, rank tests, segmented regression with
// HAC standard errors, correlations and bootstrap intervals.
//
// Absent statistics are NaN, never zero. Callers render NaN as an empty cell
package stats

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean, NaN on empty input
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

// StdDev returns the sample standard deviation (ddof=1), NaN below 2 values
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.StdDev(xs, nil)
}

// PopStdDev returns the population standard deviation (ddof=0)
func PopStdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	m := stat.Mean(xs, nil)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// Percentile returns the q-th percentile (0..100) with linear interpolation
// between closest ranks
func Percentile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	if len(s) == 1 {
		return s[0]
	}
	pos := q / 100 * float64(len(s)-1)
	lo := int(math.Floor(pos))
	if lo >= len(s)-1 {
		return s[len(s)-1]
	}
	frac := pos - float64(lo)
	return s[lo] + frac*(s[lo+1]-s[lo])
}

// Median returns the 50th percentile
func Median(xs []float64) float64 { return Percentile(xs, 50) }

// Sum returns the total of xs
func Sum(xs []float64) float64 {
	var t float64
	for _, x := range xs {
		t += x
	}
	return t
}

// PercentShift returns 100*(post-pre)/pre, NaN when pre is 0 or either side is NaN
func PercentShift(pre, post float64) float64 {
	if pre == 0 || math.IsNaN(pre) || math.IsNaN(post) {
		return math.NaN()
	}
	return (post - pre) / pre * 100
}

// CohensD returns the pooled-standard-deviation effect size of b relative to a.
// NaN when either group has fewer than 2 values or the pooled SD is 0
func CohensD(a, b []float64) float64 {
	n1, n2 := float64(len(a)), float64(len(b))
	if n1 < 2 || n2 < 2 {
		return math.NaN()
	}
	v1 := stat.Variance(a, nil)
	v2 := stat.Variance(b, nil)
	sp := math.Sqrt(((n1-1)*v1 + (n2-1)*v2) / (n1 + n2 - 2))
	if sp == 0 {
		return math.NaN()
	}
	return (stat.Mean(b, nil) - stat.Mean(a, nil)) / sp
}

// BootstrapMedianCI returns a percentile bootstrap confidence interval for
// the median of xs. The generator is seeded by the caller so runs reproduce
func BootstrapMedianCI(xs []float64, resamples int, confidence float64, seed int64) (lo, hi float64) {
	if len(xs) == 0 || resamples < 1 {
		return math.NaN(), math.NaN()
	}
	rng := rand.New(rand.NewSource(seed))
	meds := make([]float64, resamples)
	sample := make([]float64, len(xs))
	for i := 0; i < resamples; i++ {
		for j := range sample {
			sample[j] = xs[rng.Intn(len(xs))]
		}
		meds[i] = Median(sample)
	}
	alpha := (1 - confidence) / 2 * 100
	return Percentile(meds, alpha), Percentile(meds, 100-alpha)
}

// RollingMean returns the trailing window mean of xs. Positions before a
// full window are NaN
func RollingMean(xs []float64, window int) []float64 {
	out := make([]float64, len(xs))
	var sum float64
	for i, x := range xs {
		sum += x
		if i >= window {
			sum -= xs[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}
