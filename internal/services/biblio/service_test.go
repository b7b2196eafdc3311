package biblio_test

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"resurgence/internal/platform/paths"
	"resurgence/internal/platform/testkit"
	"resurgence/internal/services/biblio"
)

func denominatorServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"meta":{"count":800000,"groups_count":10},"group_by":[`)
		for i, y := range []int{2016, 2017, 2018, 2019, 2020, 2021, 2022, 2023, 2024, 2025} {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"key":"%d","count":%d}`, y, 50000+i*10000)
		}
		fmt.Fprint(w, `]}`)
	}))
}

func testLayout(t *testing.T) paths.Layout {
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

func TestAssembleJoinsDenominator(t *testing.T) {
	srv := denominatorServer(t)
	defer srv.Close()
	layout := testLayout(t)

	svc, err := biblio.New(biblio.Options{BaseURL: srv.URL, Layout: layout})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows, err := svc.Assemble(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 10 {
		t.Fatalf("expected 10 publication years, got %d", len(rows))
	}
	first := rows[0]
	if first.Year != 2016 {
		t.Fatalf("expected the series to start at 2016, got %d", first.Year)
	}
	testkit.MustClose(t, first.TotalAI, 50000, 1e-9)
	testkit.MustClose(t, first.RatioPer10k, first.CTAI/50000*10000, 1e-9)
	testkit.MustNaN(t, first.CTAIYoY)

	// 2023 onward carries the burst years
	var y2023, y2025 biblio.YearRow
	for _, r := range rows {
		switch r.Year {
		case 2023:
			y2023 = r
		case 2025:
			y2025 = r
		}
	}
	if y2023.CTAIYoY < 100 {
		t.Fatalf("expected a >100%% jump into 2023, got %v", y2023.CTAIYoY)
	}
	if !y2025.Burst {
		t.Fatalf("expected the strongest year flagged as a burst")
	}
	if rows[1].Burst {
		t.Fatalf("expected no burst flag on an early year")
	}
}

func TestAssembleReusesCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		fmt.Fprint(w, `{"meta":{"count":1,"groups_count":1},"group_by":[{"key":"2023","count":100}]}`)
	}))
	defer srv.Close()
	layout := testLayout(t)

	svc, err := biblio.New(biblio.Options{BaseURL: srv.URL, Layout: layout})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Assemble(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows, err := svc.Assemble(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected the dated cache to absorb the second call, got %d", calls)
	}
	// years missing from the denominator carry NaN totals
	if !math.IsNaN(rows[0].TotalAI) {
		t.Fatalf("expected NaN for an uncovered year, got %v", rows[0].TotalAI)
	}
}

func TestDetectBreak(t *testing.T) {
	mk := func(year int, ctai, yoy float64) biblio.YearRow {
		return biblio.YearRow{Year: year, CTAI: ctai, CTAIYoY: yoy}
	}
	rows := []biblio.YearRow{
		mk(2019, 100, math.NaN()),
		mk(2020, 110, 10),
		mk(2021, 120, 100.0/11),
		mk(2022, 130, 100.0/12),
		mk(2023, 260, 100),
		mk(2024, 520, 100),
		mk(2025, 1040, 100),
	}
	bs := biblio.DetectBreak(rows)
	testkit.MustClose(t, bs.PreSlope, 10, 1e-9)
	testkit.MustClose(t, bs.PostSlope, 390, 1e-9)
	testkit.MustClose(t, bs.SlopeRatio, 39, 1e-9)
	testkit.MustClose(t, bs.PreR2, 1, 1e-9)
	testkit.MustClose(t, bs.PostAvgGrowth, 100, 1e-9)
	if bs.AccelerationFactor < 10 {
		t.Fatalf("expected a strong acceleration, got %v", bs.AccelerationFactor)
	}
}

func TestDetectBreakEmptySides(t *testing.T) {
	bs := biblio.DetectBreak(nil)
	testkit.MustNaN(t, bs.PreSlope)
	testkit.MustNaN(t, bs.AccelerationFactor)
}

func TestRunWritesTableAndFigure(t *testing.T) {
	srv := denominatorServer(t)
	defer srv.Close()
	layout := testLayout(t)

	svc, err := biblio.New(biblio.Options{BaseURL: srv.URL, Layout: layout})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := os.Open(filepath.Join(layout.DataProcessed, "real_bibliometrics.csv"))
	if err != nil {
		t.Fatalf("expected the analysis table, got %v", err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 11 {
		t.Fatalf("expected header plus 10 years, got %d records", len(recs))
	}
	if recs[0][0] != "Year" || recs[1][0] != "2016" {
		t.Fatalf("unexpected table shape: %v", recs[0])
	}

	st, err := os.Stat(filepath.Join(layout.Figures, "layer2_real_bibliometrics.png"))
	if err != nil || st.Size() == 0 {
		t.Fatalf("expected a rendered figure, got %v", err)
	}
}
