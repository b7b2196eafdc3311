// Package notes aggregates the crowd-annotation event log into monthly
// participation and responsiveness series
package notes

import (
	"math"
	"sort"
	"time"

	srcnotes "resurgence/internal/adapters/source/notes"
	"resurgence/internal/core/snowflake"
	"resurgence/internal/core/stats"
	"resurgence/internal/platform/timeutil"
)

// Aggregator folds chunks of annotation rows into monthly and per-language
// aggregates. Results are independent of how the input is chunked
type Aggregator struct {
	monthNotes   map[timeutil.Month]int
	monthAuthors map[timeutil.Month]map[string]struct{}
	allAuthors   map[string]struct{}

	langNotes   map[string]int
	langAuthors map[string]map[string]struct{}

	// earliest annotation instant (unix ms) per subject
	earliestMs map[int64]int64

	totalRows   int
	droppedRows int
}

// NewAggregator returns an empty aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{
		monthNotes:   make(map[timeutil.Month]int),
		monthAuthors: make(map[timeutil.Month]map[string]struct{}),
		allAuthors:   make(map[string]struct{}),
		langNotes:    make(map[string]int),
		langAuthors:  make(map[string]map[string]struct{}),
		earliestMs:   make(map[int64]int64),
	}
}

// AddChunk folds one chunk. rawCount is the number of source rows the chunk
// was parsed from, including rows the reader dropped; dropped is how many
// of those were dropped
func (a *Aggregator) AddChunk(rows []srcnotes.Row, rawCount, dropped int) {
	a.totalRows += rawCount
	a.droppedRows += dropped

	for _, r := range rows {
		m := timeutil.MonthOf(r.NoteTime)
		a.monthNotes[m]++

		authors := a.monthAuthors[m]
		if authors == nil {
			authors = make(map[string]struct{})
			a.monthAuthors[m] = authors
		}
		authors[r.Actor] = struct{}{}
		a.allAuthors[r.Actor] = struct{}{}

		a.langNotes[r.Language]++
		la := a.langAuthors[r.Language]
		if la == nil {
			la = make(map[string]struct{})
			a.langAuthors[r.Language] = la
		}
		la[r.Actor] = struct{}{}

		ms := r.NoteTime.UnixMilli()
		if prev, ok := a.earliestMs[r.Subject]; !ok || ms < prev {
			a.earliestMs[r.Subject] = ms
		}
	}
}

// MonthlyRow is one month of the aggregate series. NotesPerAuthor and
// MedianTimeToFirst are NaN when undefined for the month
type MonthlyRow struct {
	Month             timeutil.Month
	Notes             int
	ActiveAuthors     int
	NotesPerAuthor    float64
	MedianTimeToFirst float64 // hours
}

// Totals are the whole-dataset counters
type Totals struct {
	TotalNotes            int // all source rows, dropped included
	TotalContributors     int
	TotalDistinctSubjects int
	DroppedRows           int
	NegativeDeltaSubjects int // decode anomalies excluded from responsiveness
}

// LanguageRow is one language of the global distribution. Share divides by
// all source rows, dropped included
type LanguageRow struct {
	Language      string
	Notes         int
	Share         float64
	UniqueAuthors int
}

// Result is the finalized aggregate
type Result struct {
	Monthly   []MonthlyRow
	Totals    Totals
	Languages []LanguageRow
}

// Finalize assembles the monthly series, responsiveness medians and the
// language distribution. The aggregator may not be reused afterwards
func (a *Aggregator) Finalize() Result {
	// time from subject creation to its first annotation, grouped by the
	// month of that first annotation
	negDeltas := 0
	firstByMonth := make(map[timeutil.Month][]float64)
	for subject, firstMs := range a.earliestMs {
		deltaH := float64(firstMs-snowflake.CreationMs(subject)) / (1000 * 60 * 60)
		if deltaH < 0 {
			negDeltas++
			continue
		}
		m := timeutil.MonthOf(time.UnixMilli(firstMs).UTC())
		firstByMonth[m] = append(firstByMonth[m], deltaH)
	}

	months := make([]timeutil.Month, 0, len(a.monthNotes))
	for m := range a.monthNotes {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })

	monthly := make([]MonthlyRow, 0, len(months))
	for _, m := range months {
		notes := a.monthNotes[m]
		authors := len(a.monthAuthors[m])
		perAuthor := math.NaN()
		if authors > 0 {
			perAuthor = float64(notes) / float64(authors)
		}
		medFirst := math.NaN()
		if hs := firstByMonth[m]; len(hs) > 0 {
			medFirst = stats.Median(hs)
		}
		monthly = append(monthly, MonthlyRow{
			Month:             m,
			Notes:             notes,
			ActiveAuthors:     authors,
			NotesPerAuthor:    perAuthor,
			MedianTimeToFirst: medFirst,
		})
	}

	langs := make([]LanguageRow, 0, len(a.langNotes))
	for lang, n := range a.langNotes {
		share := math.NaN()
		if a.totalRows > 0 {
			share = float64(n) / float64(a.totalRows)
		}
		langs = append(langs, LanguageRow{
			Language:      lang,
			Notes:         n,
			Share:         share,
			UniqueAuthors: len(a.langAuthors[lang]),
		})
	}
	sort.Slice(langs, func(i, j int) bool {
		if langs[i].Notes != langs[j].Notes {
			return langs[i].Notes > langs[j].Notes
		}
		return langs[i].Language < langs[j].Language
	})

	return Result{
		Monthly: monthly,
		Totals: Totals{
			TotalNotes:            a.totalRows,
			TotalContributors:     len(a.allAuthors),
			TotalDistinctSubjects: len(a.earliestMs),
			DroppedRows:           a.droppedRows,
			NegativeDeltaSubjects: negDeltas,
		},
		Languages: langs,
	}
}
