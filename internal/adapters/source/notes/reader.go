// Package notes streams the crowd-annotation export (note author, subject
// identifier, creation date and time, language) in bounded chunks
package notes

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	perr "resurgence/internal/platform/errors"
)

// DatasetURL retrieves the note-level export (Zenodo record 16761304)
const DatasetURL = "https://zenodo.org/api/records/16761304/files/notes_with_lang.csv/content"

// FetchHint is the operator command for a missing dataset
func FetchHint(path string) string {
	return "curl -L --fail -o " + path + " " + DatasetURL
}

// Row is one parsed annotation event
type Row struct {
	Actor    string
	Subject  int64
	NoteTime time.Time
	Language string
}

// Stats counts reader progress. Dropped rows failed timestamp parsing or
// lacked an actor or subject identifier
type Stats struct {
	RowsRead    int
	RowsDropped int
}

// Reader streams rows from the notes CSV. Not safe for concurrent use
type Reader struct {
	f     *os.File
	cr    *csv.Reader
	cols  columns
	stats Stats
}

type columns struct {
	actor, subject, date, clock, language int
}

// the export stores the calendar date and the time of day in separate columns
var noteTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04",
}

// Open opens the CSV and resolves the header. A missing file is a
// MissingInput error carrying the retrieval command
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, perr.MissingDataset(path, FetchHint(path))
		}
		return nil, perr.Wrap(err, perr.ErrorCodeIO, "open notes csv")
	}
	cr := csv.NewReader(f)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		_ = f.Close()
		return nil, perr.Wrap(err, perr.ErrorCodeMalformedRow, "read notes header")
	}
	cols, err := resolveColumns(header)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Reader{f: f, cr: cr, cols: cols}, nil
}

func resolveColumns(header []string) (columns, error) {
	idx := func(name string) int {
		for i, h := range header {
			if strings.TrimSpace(h) == name {
				return i
			}
		}
		return -1
	}
	c := columns{
		actor:    idx("noteAuthorParticipantId"),
		subject:  idx("tweetId"),
		date:     idx("date"),
		clock:    idx("Timestamp"),
		language: idx("language"),
	}
	for name, i := range map[string]int{
		"noteAuthorParticipantId": c.actor,
		"tweetId":                 c.subject,
		"date":                    c.date,
		"Timestamp":               c.clock,
		"language":                c.language,
	} {
		if i < 0 {
			return columns{}, perr.MalformedRowf("notes csv missing column %q", name)
		}
	}
	return c, nil
}

// ReadChunk reads up to size rows. Malformed rows are dropped and counted,
// never returned. io.EOF signals exhaustion once all rows are consumed
func (r *Reader) ReadChunk(size int) ([]Row, error) {
	out := make([]Row, 0, size)
	for len(out) < size {
		rec, err := r.cr.Read()
		if err == io.EOF {
			if len(out) == 0 {
				return nil, io.EOF
			}
			return out, nil
		}
		if err != nil {
			// structurally broken line; count and move on
			r.stats.RowsRead++
			r.stats.RowsDropped++
			continue
		}
		r.stats.RowsRead++
		row, ok := r.parse(rec)
		if !ok {
			r.stats.RowsDropped++
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (r *Reader) parse(rec []string) (Row, bool) {
	actor := strings.TrimSpace(rec[r.cols.actor])
	if actor == "" {
		return Row{}, false
	}
	subject, err := strconv.ParseInt(strings.TrimSpace(rec[r.cols.subject]), 10, 64)
	if err != nil {
		return Row{}, false
	}
	ts, ok := parseNoteTime(rec[r.cols.date], rec[r.cols.clock])
	if !ok {
		return Row{}, false
	}
	lang := strings.TrimSpace(rec[r.cols.language])
	if lang == "" {
		lang = "unk"
	}
	return Row{Actor: actor, Subject: subject, NoteTime: ts, Language: lang}, true
}

func parseNoteTime(date, clock string) (time.Time, bool) {
	s := strings.TrimSpace(date) + " " + strings.TrimSpace(clock)
	for _, layout := range noteTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Stats returns reader counters so far
func (r *Reader) Stats() Stats { return r.stats }

// Close releases the underlying file
func (r *Reader) Close() error { return r.f.Close() }
