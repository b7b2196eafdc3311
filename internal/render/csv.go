// Package render writes the processed CSV tables and PNG figures
package render

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"

	perr "resurgence/internal/platform/errors"
)

// WriteCSV writes header and rows to path, creating parent directories.
// The write goes through a temp file so readers never see partial output
func WriteCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "create %s", filepath.Dir(path))
	}
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "create %s", tmp)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return perr.Wrap(err, perr.ErrorCodeIO, "write csv header")
	}
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			_ = f.Close()
			return perr.Wrap(err, perr.ErrorCodeIO, "write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return perr.Wrap(err, perr.ErrorCodeIO, "flush csv")
	}
	if err := f.Close(); err != nil {
		return perr.Wrap(err, perr.ErrorCodeIO, "close csv")
	}
	if err := os.Rename(tmp, path); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "publish %s", path)
	}
	return nil
}

// F renders a float with prec decimals; NaN and Inf become the empty cell
func F(v float64, prec int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// G renders a float in compact notation; NaN and Inf become the empty cell
func G(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// I renders an int
func I(v int) string { return strconv.Itoa(v) }

// B renders a bool as True/False
func B(v bool) string {
	if v {
		return "True"
	}
	return "False"
}
