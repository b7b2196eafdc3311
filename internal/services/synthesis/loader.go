package synthesis

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"

	perr "resurgence/internal/platform/errors"
)

// Table is a loaded processed artifact with column access by header name
type Table struct {
	cols map[string]int
	Rows [][]string
}

// LoadTable reads a processed CSV produced by an earlier stage. A missing
// file is reported against the stage that should have produced it
func LoadTable(path, producedBy string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, perr.Newf(perr.ErrorCodeMissingInput,
				"missing processed table %s (run the %s stage first)", path, producedBy)
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeIO, "open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeMalformedRow, "read header of %s", path)
	}
	t := &Table{cols: make(map[string]int, len(header))}
	for i, h := range header {
		t.cols[h] = i
	}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeMalformedRow, "read %s", path)
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// Cell returns the named column of row i, empty string when absent
func (t *Table) Cell(i int, col string) string {
	j, ok := t.cols[col]
	if !ok || j >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][j]
}

// Num parses the named column of row i, NaN when empty or unparsable
func (t *Table) Num(i int, col string) float64 {
	s := t.Cell(i, col)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Find returns the first row index where col equals want, or -1
func (t *Table) Find(col, want string) int {
	for i := range t.Rows {
		if t.Cell(i, col) == want {
			return i
		}
	}
	return -1
}

// Metrics flattens a Metric/Value table into a lookup map
func (t *Table) Metrics() map[string]float64 {
	m := make(map[string]float64, len(t.Rows))
	for i := range t.Rows {
		name := t.Cell(i, "Metric")
		if name == "" {
			continue
		}
		m[name] = t.Num(i, "Value")
	}
	return m
}
