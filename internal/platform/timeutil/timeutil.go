// Package timeutil provides calendar-month keys and cutover helpers shared
// by the analysis stages
package timeutil

import (
	"fmt"
	"time"
)

// Cutover is the intervention boundary used across all layers.
// Periods on or after this instant count as "post"
var Cutover = time.Date(2022, time.November, 1, 0, 0, 0, 0, time.UTC)

// Month is a calendar month key (year*12 + month ordinal), cheap to compare
// and safe as a map key
type Month int

// MonthOf returns the Month containing t (UTC)
func MonthOf(t time.Time) Month {
	u := t.UTC()
	return Month(u.Year()*12 + int(u.Month()) - 1)
}

// MonthFromParts builds a Month from a year and a 1-based month number
func MonthFromParts(year, month int) Month {
	return Month(year*12 + month - 1)
}

// Year returns the calendar year
func (m Month) Year() int { return int(m) / 12 }

// MonthNum returns the 1-based month number
func (m Month) MonthNum() int { return int(m)%12 + 1 }

// Start returns midnight UTC on the first day of the month
func (m Month) Start() time.Time {
	return time.Date(m.Year(), time.Month(m.MonthNum()), 1, 0, 0, 0, 0, time.UTC)
}

// Next returns the following month
func (m Month) Next() Month { return m + 1 }

// String renders the canonical "YYYY-MM" key
func (m Month) String() string { return fmt.Sprintf("%04d-%02d", m.Year(), m.MonthNum()) }

// ParseMonth parses a "YYYY-MM" key
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, err
	}
	return MonthOf(t), nil
}

// IsPost reports whether t falls on or after the given boundary
func IsPost(t, boundary time.Time) bool { return !t.Before(boundary) }
