package notes_test

import (
	"math"
	"math/rand"
	"testing"
	"time"

	srcnotes "resurgence/internal/adapters/source/notes"
	"resurgence/internal/core/snowflake"
	"resurgence/internal/services/notes"
)

// subjectAt builds a subject identifier whose embedded creation time is t
func subjectAt(t *testing.T, when time.Time) int64 {
	t.Helper()
	id, err := snowflake.FromTime(when)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return id
}

// fixtureRows builds a deterministic multi-month, multi-language row set
func fixtureRows(t *testing.T) []srcnotes.Row {
	t.Helper()
	base := time.Date(2022, time.June, 15, 12, 0, 0, 0, time.UTC)
	rows := make([]srcnotes.Row, 0, 200)
	langs := []string{"en", "es", "ja", "unk"}
	for i := 0; i < 200; i++ {
		noteAt := base.AddDate(0, i%12, i%27).Add(time.Duration(i) * time.Minute)
		rows = append(rows, srcnotes.Row{
			Actor:    string(rune('A' + i%17)),
			Subject:  subjectAt(t, noteAt.Add(-time.Duration(1+i%96)*time.Hour)),
			NoteTime: noteAt,
			Language: langs[i%len(langs)],
		})
	}
	return rows
}

func sameFloat(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return a == b
}

func mustSameResult(t *testing.T, a, b notes.Result) {
	t.Helper()
	if a.Totals != b.Totals {
		t.Fatalf("expected identical totals, got %+v and %+v", a.Totals, b.Totals)
	}
	if len(a.Monthly) != len(b.Monthly) {
		t.Fatalf("expected %d monthly rows, got %d", len(a.Monthly), len(b.Monthly))
	}
	for i := range a.Monthly {
		x, y := a.Monthly[i], b.Monthly[i]
		if x.Month != y.Month || x.Notes != y.Notes || x.ActiveAuthors != y.ActiveAuthors ||
			!sameFloat(x.NotesPerAuthor, y.NotesPerAuthor) ||
			!sameFloat(x.MedianTimeToFirst, y.MedianTimeToFirst) {
			t.Fatalf("monthly row %d differs: %+v vs %+v", i, x, y)
		}
	}
	if len(a.Languages) != len(b.Languages) {
		t.Fatalf("expected %d language rows, got %d", len(a.Languages), len(b.Languages))
	}
	for i := range a.Languages {
		x, y := a.Languages[i], b.Languages[i]
		if x.Language != y.Language || x.Notes != y.Notes ||
			!sameFloat(x.Share, y.Share) || x.UniqueAuthors != y.UniqueAuthors {
			t.Fatalf("language row %d differs: %+v vs %+v", i, x, y)
		}
	}
}

func TestAggregatorChunkSizeInvariant(t *testing.T) {
	rows := fixtureRows(t)

	whole := notes.NewAggregator()
	whole.AddChunk(rows, len(rows), 0)
	want := whole.Finalize()

	for _, size := range []int{1, 7, 10000} {
		agg := notes.NewAggregator()
		for i := 0; i < len(rows); i += size {
			end := i + size
			if end > len(rows) {
				end = len(rows)
			}
			agg.AddChunk(rows[i:end], end-i, 0)
		}
		mustSameResult(t, want, agg.Finalize())
	}
}

func TestAggregatorOrderInvariant(t *testing.T) {
	rows := fixtureRows(t)

	ordered := notes.NewAggregator()
	ordered.AddChunk(rows, len(rows), 0)
	want := ordered.Finalize()

	shuffled := append([]srcnotes.Row(nil), rows...)
	rand.New(rand.NewSource(5)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	agg := notes.NewAggregator()
	agg.AddChunk(shuffled, len(shuffled), 0)
	mustSameResult(t, want, agg.Finalize())
}

func TestAggregatorFirstNoteGroupedByItsMonth(t *testing.T) {
	subject := subjectAt(t, time.Date(2023, time.January, 10, 0, 0, 0, 0, time.UTC))
	first := time.Date(2023, time.January, 10, 6, 0, 0, 0, time.UTC)
	second := time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)

	agg := notes.NewAggregator()
	agg.AddChunk([]srcnotes.Row{
		{Actor: "a1", Subject: subject, NoteTime: second, Language: "en"},
		{Actor: "a2", Subject: subject, NoteTime: first, Language: "en"},
	}, 2, 0)
	res := agg.Finalize()

	if len(res.Monthly) != 2 {
		t.Fatalf("expected 2 monthly rows, got %d", len(res.Monthly))
	}
	jan, mar := res.Monthly[0], res.Monthly[1]
	if math.IsNaN(jan.MedianTimeToFirst) {
		t.Fatalf("expected a first-note median in the month of the first note")
	}
	if jan.MedianTimeToFirst != 6 {
		t.Fatalf("expected 6 hours to first note, got %v", jan.MedianTimeToFirst)
	}
	if !math.IsNaN(mar.MedianTimeToFirst) {
		t.Fatalf("expected an explicit absent median for a month with no first notes, got %v", mar.MedianTimeToFirst)
	}
	if res.Totals.TotalDistinctSubjects != 1 {
		t.Fatalf("expected 1 distinct subject, got %d", res.Totals.TotalDistinctSubjects)
	}
}

func TestAggregatorNegativeDeltaExcluded(t *testing.T) {
	noteAt := time.Date(2023, time.February, 1, 0, 0, 0, 0, time.UTC)
	// subject "created" after its own first note: a decode anomaly
	subject := subjectAt(t, noteAt.Add(48*time.Hour))

	agg := notes.NewAggregator()
	agg.AddChunk([]srcnotes.Row{
		{Actor: "a1", Subject: subject, NoteTime: noteAt, Language: "en"},
	}, 1, 0)
	res := agg.Finalize()

	if res.Totals.NegativeDeltaSubjects != 1 {
		t.Fatalf("expected 1 negative-delta subject, got %d", res.Totals.NegativeDeltaSubjects)
	}
	if !math.IsNaN(res.Monthly[0].MedianTimeToFirst) {
		t.Fatalf("expected the anomaly excluded from responsiveness, got %v", res.Monthly[0].MedianTimeToFirst)
	}
}

func TestAggregatorDroppedRowsInDenominator(t *testing.T) {
	noteAt := time.Date(2023, time.February, 1, 0, 0, 0, 0, time.UTC)
	subject := subjectAt(t, noteAt.Add(-time.Hour))

	agg := notes.NewAggregator()
	// 3 source rows read, 1 dropped by the reader
	agg.AddChunk([]srcnotes.Row{
		{Actor: "a1", Subject: subject, NoteTime: noteAt, Language: "en"},
		{Actor: "a2", Subject: subject, NoteTime: noteAt, Language: "en"},
	}, 3, 1)
	res := agg.Finalize()

	if res.Totals.TotalNotes != 3 {
		t.Fatalf("expected dropped rows in the total, got %d", res.Totals.TotalNotes)
	}
	if res.Totals.DroppedRows != 1 {
		t.Fatalf("expected 1 dropped row, got %d", res.Totals.DroppedRows)
	}
	if got := res.Languages[0].Share; got != 2.0/3 {
		t.Fatalf("expected the language share over all source rows, got %v", got)
	}
}
