package render_test

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"resurgence/internal/render"
)

func TestWriteCSVCreatesDirsAndPublishes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed", "out.csv")
	err := render.WriteCSV(path,
		[]string{"A", "B"},
		[][]string{{"1", "x"}, {"2", "y"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(path + ".part"); !os.IsNotExist(err) {
		t.Fatalf("expected the temp file renamed away")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 3 || recs[0][0] != "A" || recs[2][1] != "y" {
		t.Fatalf("unexpected content: %v", recs)
	}
}

func TestFloatFormatting(t *testing.T) {
	if got := render.F(3.14159, 2); got != "3.14" {
		t.Fatalf("expected 3.14, got %q", got)
	}
	if got := render.F(math.NaN(), 2); got != "" {
		t.Fatalf("expected an empty cell for NaN, got %q", got)
	}
	if got := render.F(math.Inf(1), 2); got != "" {
		t.Fatalf("expected an empty cell for Inf, got %q", got)
	}
	if got := render.G(0.00001234); !strings.Contains(got, "e-") {
		t.Fatalf("expected compact notation, got %q", got)
	}
	if got := render.G(math.NaN()); got != "" {
		t.Fatalf("expected an empty cell for NaN, got %q", got)
	}
	if render.B(true) != "True" || render.B(false) != "False" {
		t.Fatalf("expected True/False rendering")
	}
	if render.I(-7) != "-7" {
		t.Fatalf("expected -7, got %q", render.I(-7))
	}
}
