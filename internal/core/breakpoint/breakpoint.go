// Package breakpoint compares a dated series across an intervention boundary
// and probes the comparison with placebo boundaries
package breakpoint

import (
	"math"
	"sort"
	"time"

	"resurgence/internal/core/stats"
	perr "resurgence/internal/platform/errors"
)

// Point is one period of a dated series
type Point struct {
	When  time.Time
	Value float64
}

// Series is a dated series ordered by Sort before analysis
type Series []Point

// Sort orders the series by time ascending, stable on ties
func (s Series) Sort() {
	sort.SliceStable(s, func(i, j int) bool { return s[i].When.Before(s[j].When) })
}

// Split partitions the series at the boundary, boundary inclusive on post
func (s Series) Split(boundary time.Time) (pre, post []float64) {
	for _, p := range s {
		if p.When.Before(boundary) {
			pre = append(pre, p.Value)
		} else {
			post = append(post, p.Value)
		}
	}
	return pre, post
}

// Values returns the series values in time order
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// minPeriodsITS is the per-side floor below which the segmented fit is
// skipped rather than reported on an unstable design
const minPeriodsITS = 12

// hacLags caps the Newey-West lag window for monthly series
const hacLags = 6

// Comparison is the pre/post analysis of one series at one boundary.
// Absent statistics are NaN; HasITS marks whether the segmented fit ran
type Comparison struct {
	NPre            int
	NPost           int
	PreMedian       float64
	PostMedian      float64
	ShiftPct        float64
	PreVolatility   float64 // mean absolute month-to-month change
	PostVolatility  float64
	VolatilityRatio float64
	U               float64
	P               float64
	ITS             stats.ITSResult
	HasITS          bool
}

// Significant reports whether the rank test ran and cleared alpha
func (c Comparison) Significant(alpha float64) bool {
	return !math.IsNaN(c.P) && c.P < alpha
}

// Compare analyses series at boundary. The series is sorted in place.
// With fewer than 2 periods on either side the rank test and regression
// are absent; medians still report when at least one period exists
func Compare(series Series, boundary time.Time) Comparison {
	series.Sort()
	pre, post := series.Split(boundary)

	c := Comparison{
		NPre:       len(pre),
		NPost:      len(post),
		PreMedian:  stats.Median(pre),
		PostMedian: stats.Median(post),
		U:          math.NaN(),
		P:          math.NaN(),
	}
	c.ShiftPct = stats.PercentShift(c.PreMedian, c.PostMedian)

	// month-to-month changes, attributed to the side of their later month
	var preDiffs, postDiffs []float64
	for i := 1; i < len(series); i++ {
		d := math.Abs(series[i].Value - series[i-1].Value)
		if series[i].When.Before(boundary) {
			preDiffs = append(preDiffs, d)
		} else {
			postDiffs = append(postDiffs, d)
		}
	}
	c.PreVolatility = stats.Mean(preDiffs)
	c.PostVolatility = stats.Mean(postDiffs)
	if c.PreVolatility > 0 && !math.IsNaN(c.PostVolatility) {
		c.VolatilityRatio = c.PostVolatility / c.PreVolatility
	} else {
		c.VolatilityRatio = math.NaN()
	}

	if len(pre) >= 2 && len(post) >= 2 {
		mw := stats.MannWhitneyLess(pre, post)
		c.U, c.P = mw.U, mw.P
	}

	if len(pre) >= minPeriodsITS && len(post) >= minPeriodsITS {
		fit, err := stats.SegmentedITS(series.Values(), len(pre), hacLags)
		if err == nil {
			c.ITS = fit
			c.HasITS = true
		}
	}
	return c
}

// PreTrend fits a trend-only regression to the pre-boundary periods, the
// diagnostic for drift that predates the intervention. InsufficientData
// below 12 pre periods
func PreTrend(series Series, boundary time.Time) (stats.TrendFit, error) {
	series.Sort()
	pre, _ := series.Split(boundary)
	if len(pre) < minPeriodsITS {
		return stats.TrendFit{}, perr.InsufficientDataf("pre-trend: %d pre periods", len(pre))
	}
	return stats.LinearTrend(pre, hacLags)
}
