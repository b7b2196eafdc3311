package robustness_test

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	srctrends "resurgence/internal/adapters/source/trends"
	"resurgence/internal/platform/paths"
	"resurgence/internal/services/robustness"
)

func sweepLayout(t *testing.T) paths.Layout {
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

// writeExports lays down six years of monthly data per language: flat until
// the real boundary, then ramping, so the kink sits where it should
func writeExports(t *testing.T, dir string) {
	t.Helper()
	cut := time.Date(2022, time.November, 1, 0, 0, 0, 0, time.UTC)
	for _, q := range srctrends.Queries {
		body := "date," + q.Column + "\n"
		month := time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)
		ramp := 0.0
		for i := 0; i < 72; i++ {
			v := 40.0
			if !month.Before(cut) {
				ramp += 2
			}
			v += ramp
			if i%2 == 0 {
				v += 0.3
			}
			body += fmt.Sprintf("%s,%.1f\n", month.Format("2006-01-02"), v)
			month = month.AddDate(0, 1, 0)
		}
		if err := os.WriteFile(filepath.Join(dir, q.File), []byte(body), 0o600); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func readTable(t *testing.T, path string) ([]string, [][]string) {
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
	if len(recs) == 0 {
		t.Fatalf("expected a header in %s", path)
	}
	return recs[0], recs[1:]
}

func TestRunWritesThreeTables(t *testing.T) {
	layout := sweepLayout(t)
	writeExports(t, layout.DataRaw)

	svc, err := robustness.New(robustness.FromConfig(layout))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	header, checks := readTable(t, filepath.Join(layout.DataProcessed, "robustness_checks.csv"))
	if header[0] != "language" || header[3] != "chatgpt_median_strongest" {
		t.Fatalf("unexpected checks header: %v", header)
	}
	if len(checks) != 4 {
		t.Fatalf("expected one row per language, got %d", len(checks))
	}
	for _, row := range checks {
		// a kink at the real boundary must make the real slope change the largest
		if row[6] != "True" {
			t.Fatalf("language %s: expected the real boundary strongest by slope, got %v", row[0], row)
		}
		realChange, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			t.Fatalf("unexpected slope change cell %q", row[4])
		}
		maxPlacebo, err := strconv.ParseFloat(row[5], 64)
		if err != nil {
			t.Fatalf("unexpected placebo cell %q", row[5])
		}
		if realChange <= maxPlacebo {
			t.Fatalf("expected the real kink above every placebo, got %v vs %v", realChange, maxPlacebo)
		}
		// flat pre-period, so no significant pre-trend
		if row[11] != "False" {
			t.Fatalf("expected no pre-trend flag, got %v", row)
		}
	}

	_, placebo := readTable(t, filepath.Join(layout.DataProcessed, "placebo_breakpoint_analysis.csv"))
	if len(placebo)%4 != 0 {
		t.Fatalf("expected the same sweep per language, got %d rows", len(placebo))
	}
	perLang := len(placebo) / 4
	if placebo[0][0] != "2022-11-01" || placebo[0][1] != "True" {
		t.Fatalf("expected the real boundary first, got %v", placebo[0][:2])
	}
	reals := 0
	for _, row := range placebo[:perLang] {
		if row[1] == "True" {
			reals++
		}
		if row[len(row)-1] != "english" {
			t.Fatalf("expected the first block to be english, got %q", row[len(row)-1])
		}
	}
	if reals != 1 {
		t.Fatalf("expected exactly one real row per language, got %d", reals)
	}

	header, effects := readTable(t, filepath.Join(layout.DataProcessed, "effect_sizes_trends.csv"))
	if header[10] != "bonferroni_significant" {
		t.Fatalf("unexpected effects header: %v", header)
	}
	if len(effects) != 4 {
		t.Fatalf("expected one effects row per language, got %d", len(effects))
	}
	for _, row := range effects {
		if row[10] != "True" {
			t.Fatalf("expected a clear ramp to clear the corrected bar, got %v", row)
		}
		lo, _ := strconv.ParseFloat(row[2], 64)
		hi, _ := strconv.ParseFloat(row[3], 64)
		med, _ := strconv.ParseFloat(row[1], 64)
		if lo > med || med > hi {
			t.Fatalf("expected the pre median inside its interval, got %v <= %v <= %v", lo, med, hi)
		}
	}
}

func TestRunMissingExports(t *testing.T) {
	layout := sweepLayout(t)
	svc, err := robustness.New(robustness.FromConfig(layout))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Run(context.Background()); err == nil {
		t.Fatalf("expected an error with no exports on disk")
	}
}
