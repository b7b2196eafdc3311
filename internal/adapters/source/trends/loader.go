// Package trends loads the per-language search-interest CSV exports
package trends

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"resurgence/internal/core/breakpoint"
	perr "resurgence/internal/platform/errors"
)

// Query names one language export: the file under data/raw and the column
// holding the search phrase's volume index
type Query struct {
	Language string
	File     string
	Column   string
}

// Queries are the four language exports, in presentation order
var Queries = []Query{
	{Language: "English", File: "trends_english.csv", Column: "critical thinking"},
	{Language: "German", File: "trends_german.csv", Column: "kritisches Denken"},
	{Language: "French", File: "trends_french.csv", Column: "pensée critique"},
	{Language: "Spanish", File: "trends_spanish.csv", Column: "pensamiento crítico"},
}

var dateLayouts = []string{"2006-01-02", "2006-01"}

// Load reads one export into a dated series. A missing file is a
// MissingInput error; rows with an unparsable date or value are malformed
func Load(dir string, q Query) (breakpoint.Series, error) {
	path := filepath.Join(dir, q.File)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, perr.MissingDataset(path, "")
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeIO, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeMalformedRow, "read %s header", q.File)
	}
	dateCol, valCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case "date":
			dateCol = i
		case q.Column:
			valCol = i
		}
	}
	if dateCol < 0 || valCol < 0 {
		return nil, perr.MalformedRowf("%s: want columns %q and %q, got %v", q.File, "date", q.Column, header)
	}

	var series breakpoint.Series
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeMalformedRow, "%s line %d", q.File, line)
		}
		when, ok := parseDate(rec[dateCol])
		if !ok {
			return nil, perr.MalformedRowf("%s line %d: bad date %q", q.File, line, rec[dateCol])
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[valCol]), 64)
		if err != nil {
			return nil, perr.MalformedRowf("%s line %d: bad value %q", q.File, line, rec[valCol])
		}
		series = append(series, breakpoint.Point{When: when, Value: v})
	}
	if len(series) == 0 {
		return nil, perr.InsufficientDataf("%s: no rows", q.File)
	}
	series.Sort()
	return series, nil
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
