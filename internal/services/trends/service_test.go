package trends_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	srctrends "resurgence/internal/adapters/source/trends"
	"resurgence/internal/platform/paths"
	"resurgence/internal/services/trends"
)

// writeExports lays down four synthetic language exports with distinct
// post-cutover jumps so the effect ordering is known up front
func writeExports(t *testing.T, dir string) {
	t.Helper()
	jumps := map[string]float64{"English": 30, "German": 10, "French": 20, "Spanish": 0}
	for _, q := range srctrends.Queries {
		body := "date," + q.Column + "\n"
		month := time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 72; i++ {
			v := 40.0
			if !month.Before(time.Date(2022, time.November, 1, 0, 0, 0, 0, time.UTC)) {
				v += jumps[q.Language]
			}
			if i%2 == 0 {
				v += 0.5
			}
			body += fmt.Sprintf("%s,%.1f\n", month.Format("2006-01-02"), v)
			month = month.AddDate(0, 1, 0)
		}
		if err := os.WriteFile(filepath.Join(dir, q.File), []byte(body), 0o600); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func layoutAt(t *testing.T) paths.Layout {
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

func TestAnalyzeSortsByEffect(t *testing.T) {
	layout := layoutAt(t)
	writeExports(t, layout.DataRaw)

	svc, err := trends.New(trends.FromConfig(layout))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows, err := svc.Analyze(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 languages, got %d", len(rows))
	}
	if rows[0].Language != "English" || rows[1].Language != "French" || rows[2].Language != "German" {
		t.Fatalf("expected the effect ordering, got %v %v %v", rows[0].Language, rows[1].Language, rows[2].Language)
	}
	if rows[0].Cmp.ShiftPct < rows[1].Cmp.ShiftPct {
		t.Fatalf("expected descending shifts, got %v then %v", rows[0].Cmp.ShiftPct, rows[1].Cmp.ShiftPct)
	}
	if !rows[0].Cmp.Significant(0.001) {
		t.Fatalf("expected a clear jump to be significant, got p=%v", rows[0].Cmp.P)
	}
}

func TestRunWritesTableAndFigure(t *testing.T) {
	layout := layoutAt(t)
	writeExports(t, layout.DataRaw)

	svc, err := trends.New(trends.FromConfig(layout))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	table := filepath.Join(layout.DataProcessed, "real_trends_analysis.csv")
	if _, err := os.Stat(table); err != nil {
		t.Fatalf("expected the analysis table, got %v", err)
	}
	fig := filepath.Join(layout.Figures, "layer1_real_trends.png")
	st, err := os.Stat(fig)
	if err != nil || st.Size() == 0 {
		t.Fatalf("expected a rendered figure, got %v", err)
	}
}

func TestRunMissingExport(t *testing.T) {
	layout := layoutAt(t)
	svc, err := trends.New(trends.FromConfig(layout))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Run(context.Background()); err == nil {
		t.Fatalf("expected an error with no exports on disk")
	}
}
