package breakpoint

import (
	"math"
	"time"
)

// RealCutover is the intervention boundary under test
var RealCutover = time.Date(2022, time.November, 1, 0, 0, 0, 0, time.UTC)

// PlaceboDates are the alternative boundaries checked alongside the real
// cutover. Spanning unrelated events before and decoy dates around it
var PlaceboDates = []time.Time{
	time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2021, time.June, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2022, time.October, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2022, time.December, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC),
}

// minPeriodsPlaceboMW is the per-side floor for reporting a rank p-value
// on a placebo boundary
const minPeriodsPlaceboMW = 6

// PlaceboRow is the comparison at one candidate boundary
type PlaceboRow struct {
	Boundary time.Time
	IsReal   bool
	Comparison
}

// PlaceboSweep compares the series at the real cutover and every placebo
// boundary, real first. Boundaries with 5 or fewer periods a side are
// skipped entirely; a non-positive pre median reports a zero shift
func PlaceboSweep(series Series) []PlaceboRow {
	boundaries := append([]time.Time{RealCutover}, PlaceboDates...)
	rows := make([]PlaceboRow, 0, len(boundaries))
	for _, b := range boundaries {
		c := Compare(series, b)
		if c.NPre < minPeriodsPlaceboMW || c.NPost < minPeriodsPlaceboMW {
			continue
		}
		if !(c.PreMedian > 0) {
			c.ShiftPct = 0
		}
		rows = append(rows, PlaceboRow{Boundary: b, IsReal: b.Equal(RealCutover), Comparison: c})
	}
	return rows
}

// StrongestByShift reports whether the real cutover's median shift exceeds
// every placebo's
func StrongestByShift(rows []PlaceboRow) bool {
	return strongest(rows, func(r PlaceboRow) float64 { return r.ShiftPct })
}

// MaxPlaceboShift returns the largest placebo median shift
func MaxPlaceboShift(rows []PlaceboRow) float64 {
	return maxPlacebo(rows, func(r PlaceboRow) float64 { return r.ShiftPct })
}

// StrongestBySlopeChange reports whether the real cutover's post-boundary
// slope change exceeds every placebo's, among boundaries where the
// segmented fit ran
func StrongestBySlopeChange(rows []PlaceboRow) bool {
	return strongest(rows, func(r PlaceboRow) float64 {
		if !r.HasITS {
			return math.NaN()
		}
		return r.ITS.SlopeChange
	})
}

// MaxPlaceboSlopeChange returns the largest placebo slope change among
// boundaries where the segmented fit ran
func MaxPlaceboSlopeChange(rows []PlaceboRow) float64 {
	return maxPlacebo(rows, func(r PlaceboRow) float64 {
		if !r.HasITS {
			return math.NaN()
		}
		return r.ITS.SlopeChange
	})
}

func maxPlacebo(rows []PlaceboRow, score func(PlaceboRow) float64) float64 {
	best := math.NaN()
	for _, r := range rows {
		if r.IsReal {
			continue
		}
		s := score(r)
		if math.IsNaN(s) {
			continue
		}
		if math.IsNaN(best) || s > best {
			best = s
		}
	}
	return best
}

func strongest(rows []PlaceboRow, score func(PlaceboRow) float64) bool {
	actual := math.NaN()
	best := math.Inf(-1)
	for _, r := range rows {
		s := score(r)
		if math.IsNaN(s) {
			continue
		}
		if r.IsReal {
			actual = s
			continue
		}
		if s > best {
			best = s
		}
	}
	if math.IsNaN(actual) {
		return false
	}
	return actual > best
}
