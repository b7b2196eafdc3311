package notes_test

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"resurgence/internal/core/snowflake"
	perr "resurgence/internal/platform/errors"
	"resurgence/internal/platform/paths"
	"resurgence/internal/services/notes"
)

func serviceLayout(t *testing.T) paths.Layout {
	t.Helper()
	t.Setenv("RESURGENCE_ROOT", t.TempDir())
	l, err := paths.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.EnsureDirs(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return l
}

// writeDataset lays down a small dataset spanning the cutover: one note per
// day across four months, alternating authors and languages, each subject
// created six hours before its note
func writeDataset(t *testing.T, layout paths.Layout) string {
	t.Helper()
	dir := filepath.Join(layout.DataRaw, "community_notes_zenodo")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path := filepath.Join(dir, "notes_with_lang.csv")

	body := "noteAuthorParticipantId,noteId,tweetId,date,Timestamp,language\n"
	langs := []string{"en", "en", "es", "pt"}
	n := 0
	for _, start := range []string{"2022-09-01", "2022-10-01", "2022-11-01", "2022-12-01"} {
		day, err := time.Parse("2006-01-02", start)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i := 0; i < 10; i++ {
			noteAt := day.AddDate(0, 0, i).Add(12 * time.Hour)
			subject, err := snowflake.FromTime(noteAt.Add(-6 * time.Hour))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			body += fmt.Sprintf("author-%d,n%d,%d,%s,%s,%s\n",
				n%5, n, subject,
				noteAt.Format("2006-01-02"), noteAt.Format("15:04:05"),
				langs[n%len(langs)])
			n++
		}
	}
	body += "author-bad,nx,12345,not-a-date,09:00:00,en\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return path
}

func readTable(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("expected %s written, got %v", path, err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return recs
}

func TestRunWritesAllTables(t *testing.T) {
	layout := serviceLayout(t)
	path := writeDataset(t, layout)

	svc, err := notes.New(notes.Options{DatasetPath: path, ChunkSize: 7, Layout: layout})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	monthly := readTable(t, filepath.Join(layout.DataProcessed, "real_community_notes_monthly.csv"))
	if len(monthly) != 5 {
		t.Fatalf("expected header plus 4 months, got %d records", len(monthly))
	}
	if monthly[1][0] != "2022-09" || monthly[4][0] != "2022-12" {
		t.Fatalf("expected a sorted month range, got %v / %v", monthly[1][0], monthly[4][0])
	}
	if monthly[1][1] != "10" {
		t.Fatalf("expected 10 notes in the first month, got %q", monthly[1][1])
	}
	if h, err := strconv.ParseFloat(monthly[1][4], 64); err != nil || h != 6 {
		t.Fatalf("expected a 6h median time-to-first, got %q", monthly[1][4])
	}

	summary := readTable(t, filepath.Join(layout.DataProcessed, "real_community_notes.csv"))
	metrics := map[string]string{}
	for _, r := range summary[1:] {
		metrics[r[0]] = r[1]
	}
	// the total counts every source row, the dropped one included
	if metrics["Total Notes"] != "41" {
		t.Fatalf("expected 41 notes, got %q", metrics["Total Notes"])
	}
	if metrics["Total Contributors (unique authors)"] != "5" {
		t.Fatalf("expected 5 contributors, got %q", metrics["Total Contributors (unique authors)"])
	}
	if metrics["Pre-ChatGPT months"] != "2" || metrics["Post-ChatGPT months"] != "2" {
		t.Fatalf("expected a 2/2 month split, got %q / %q",
			metrics["Pre-ChatGPT months"], metrics["Post-ChatGPT months"])
	}
	if metrics["Dropped rows (timestamp parse failures)"] != "1" {
		t.Fatalf("expected the malformed row counted, got %q", metrics["Dropped rows (timestamp parse failures)"])
	}

	langTable := readTable(t, filepath.Join(layout.DataProcessed, "real_community_notes_language.csv"))
	if len(langTable) != 4 {
		t.Fatalf("expected header plus 3 languages, got %d records", len(langTable))
	}
	if langTable[1][0] != "en" || langTable[1][1] != "English" {
		t.Fatalf("expected English ranked first, got %v", langTable[1])
	}

	st, err := os.Stat(filepath.Join(layout.Figures, "layer3_real_community_notes.png"))
	if err != nil || st.Size() == 0 {
		t.Fatalf("expected a rendered figure, got %v", err)
	}
}

func TestRunMissingDataset(t *testing.T) {
	layout := serviceLayout(t)
	svc, err := notes.New(notes.FromConfig(layout, notes.DefaultChunkSize))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = svc.Run(context.Background())
	if !perr.IsCode(err, perr.ErrorCodeMissingInput) {
		t.Fatalf("expected missing input code, got %v", err)
	}
}

func TestNewRejectsZeroChunk(t *testing.T) {
	if _, err := notes.New(notes.Options{DatasetPath: "x.csv", ChunkSize: 0}); err == nil {
		t.Fatalf("expected a validation error for chunk size 0")
	}
}
