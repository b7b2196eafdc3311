package notes

import (
	"context"
	"image/color"
	"io"
	"math"
	"path/filepath"
	"time"

	srcnotes "resurgence/internal/adapters/source/notes"
	"resurgence/internal/core/stats"
	perr "resurgence/internal/platform/errors"
	"resurgence/internal/platform/logger"
	"resurgence/internal/platform/paths"
	"resurgence/internal/platform/store"
	"resurgence/internal/platform/timeutil"
	"resurgence/internal/render"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

// quality context reported alongside the dataset by its curators; carried
// into the summary table, never recomputed here
const (
	ctxHelpfulRate          = 0.083
	ctxNeedsMoreRatingsRate = 0.877
	ctxTopContributorNotes  = 33186
	ctxAvgHoursToHelpful    = 26
)

// Options configures the annotation stage
type Options struct {
	DatasetPath string `validate:"required"`
	ChunkSize   int    `validate:"min=1"`
	RunID       string
	Layout      paths.Layout
	Sink        store.Config
}

// DefaultChunkSize bounds reader memory per chunk
const DefaultChunkSize = 200000

// FromConfig builds Options from the RESURGENCE_ scope
func FromConfig(layout paths.Layout, chunkSize int) Options {
	return Options{
		DatasetPath: filepath.Join(layout.DataRaw, "community_notes_zenodo", "notes_with_lang.csv"),
		ChunkSize:   chunkSize,
		Layout:      layout,
	}
}

// Service runs the annotation layer
type Service struct {
	opts Options
}

// New validates options and returns the service
func New(opts Options) (*Service, error) {
	if err := validator.New().Struct(opts); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeConfig, "notes options")
	}
	return &Service{opts: opts}, nil
}

// PrePost summarizes the monthly series across the cutover. Participation
// metrics compare means of the monthly values; responsiveness compares
// medians of the monthly medians
type PrePost struct {
	PreMonths  int
	PostMonths int

	PreAvgNotes  float64
	PostAvgNotes float64
	NotesGrowth  float64

	PreAvgAuthors  float64
	PostAvgAuthors float64
	AuthorsGrowth  float64

	PreAvgPerAuthor  float64
	PostAvgPerAuthor float64
	PerAuthorGrowth  float64

	PreMedianFirstH  float64
	PostMedianFirstH float64
	FirstHChange     float64
}

// Run streams the dataset, writes the three processed tables and the
// figure, and publishes to the warehouse when one is configured
func (s *Service) Run(ctx context.Context) error {
	log := logger.C(ctx)
	log.Info().Str("path", s.opts.DatasetPath).Int("chunk_size", s.opts.ChunkSize).
		Msg("streaming annotation events")

	r, err := srcnotes.Open(s.opts.DatasetPath)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	agg := NewAggregator()
	for {
		prev := r.Stats()
		chunk, err := r.ReadChunk(s.opts.ChunkSize)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		cur := r.Stats()
		agg.AddChunk(chunk, cur.RowsRead-prev.RowsRead, cur.RowsDropped-prev.RowsDropped)
	}
	res := agg.Finalize()
	pp := summarize(res.Monthly)

	log.Info().
		Int("total_notes", res.Totals.TotalNotes).
		Int("contributors", res.Totals.TotalContributors).
		Int("distinct_subjects", res.Totals.TotalDistinctSubjects).
		Int("dropped_rows", res.Totals.DroppedRows).
		Int("negative_delta_subjects", res.Totals.NegativeDeltaSubjects).
		Msg("aggregation complete")

	if err := s.writeMonthly(res.Monthly); err != nil {
		return err
	}
	if err := s.writeSummary(res.Totals, pp); err != nil {
		return err
	}
	if err := s.writeLanguages(res.Languages); err != nil {
		return err
	}
	if err := s.renderFigure(res.Monthly); err != nil {
		return err
	}
	if s.opts.Sink.Enabled() {
		if err := publishMonthly(ctx, s.opts.Sink, s.opts.RunID, res.Monthly); err != nil {
			// the warehouse is optional; a publish failure does not fail the stage
			log.Warn().Err(err).Msg("warehouse publish failed")
		}
	}
	return nil
}

func summarize(monthly []MonthlyRow) PrePost {
	cut := timeutil.MonthOf(timeutil.Cutover)
	var preNotes, postNotes, preAuthors, postAuthors, prePer, postPer []float64
	var preFirst, postFirst []float64
	pre, post := 0, 0
	for _, m := range monthly {
		isPre := m.Month < cut
		if isPre {
			pre++
		} else {
			post++
		}
		push := func(dst *[]float64, v float64) {
			if !math.IsNaN(v) {
				*dst = append(*dst, v)
			}
		}
		if isPre {
			preNotes = append(preNotes, float64(m.Notes))
			preAuthors = append(preAuthors, float64(m.ActiveAuthors))
			push(&prePer, m.NotesPerAuthor)
			push(&preFirst, m.MedianTimeToFirst)
		} else {
			postNotes = append(postNotes, float64(m.Notes))
			postAuthors = append(postAuthors, float64(m.ActiveAuthors))
			push(&postPer, m.NotesPerAuthor)
			push(&postFirst, m.MedianTimeToFirst)
		}
	}
	pp := PrePost{
		PreMonths:        pre,
		PostMonths:       post,
		PreAvgNotes:      stats.Mean(preNotes),
		PostAvgNotes:     stats.Mean(postNotes),
		PreAvgAuthors:    stats.Mean(preAuthors),
		PostAvgAuthors:   stats.Mean(postAuthors),
		PreAvgPerAuthor:  stats.Mean(prePer),
		PostAvgPerAuthor: stats.Mean(postPer),
		PreMedianFirstH:  stats.Median(preFirst),
		PostMedianFirstH: stats.Median(postFirst),
	}
	pp.NotesGrowth = growthPct(pp.PreAvgNotes, pp.PostAvgNotes)
	pp.AuthorsGrowth = growthPct(pp.PreAvgAuthors, pp.PostAvgAuthors)
	pp.PerAuthorGrowth = growthPct(pp.PreAvgPerAuthor, pp.PostAvgPerAuthor)
	pp.FirstHChange = growthPct(pp.PreMedianFirstH, pp.PostMedianFirstH)
	return pp
}

func growthPct(pre, post float64) float64 {
	if pre == 0 || math.IsNaN(pre) || math.IsNaN(post) {
		return math.NaN()
	}
	return (post/pre - 1) * 100
}

func (s *Service) writeMonthly(monthly []MonthlyRow) error {
	header := []string{"Month", "Notes", "Active_Authors", "Notes_per_Author", "Median_TimeToFirstNote_hours"}
	rows := make([][]string, 0, len(monthly))
	for _, m := range monthly {
		rows = append(rows, []string{
			m.Month.String(),
			render.I(m.Notes),
			render.I(m.ActiveAuthors),
			render.F(m.NotesPerAuthor, 6),
			render.F(m.MedianTimeToFirst, 6),
		})
	}
	return render.WriteCSV(filepath.Join(s.opts.Layout.DataProcessed, "real_community_notes_monthly.csv"), header, rows)
}

func (s *Service) writeSummary(t Totals, pp PrePost) error {
	const src = "Zenodo notes_with_lang.csv"
	const computed = "Computed"
	const curated = "Mohammadi et al. (2025)"
	rows := [][]string{
		{"Total Contributors (unique authors)", render.I(t.TotalContributors), src},
		{"Total Notes", render.I(t.TotalNotes), src},
		{"Distinct Posts Annotated (tweetId count)", render.I(t.TotalDistinctSubjects), src},
		{"Pre-ChatGPT months", render.I(pp.PreMonths), computed},
		{"Post-ChatGPT months", render.I(pp.PostMonths), computed},
		{"Pre avg monthly notes", render.F(pp.PreAvgNotes, 1), computed},
		{"Post avg monthly notes", render.F(pp.PostAvgNotes, 1), computed},
		{"Raw monthly notes growth (%)", render.F(pp.NotesGrowth, 0), computed},
		{"Pre avg active authors", render.F(pp.PreAvgAuthors, 1), computed},
		{"Post avg active authors", render.F(pp.PostAvgAuthors, 1), computed},
		{"Active authors growth (%)", render.F(pp.AuthorsGrowth, 0), computed},
		{"Pre avg notes per active author", render.F(pp.PreAvgPerAuthor, 3), computed},
		{"Post avg notes per active author", render.F(pp.PostAvgPerAuthor, 3), computed},
		{"Notes per author growth (%)", render.F(pp.PerAuthorGrowth, 0), computed},
		{"Pre median time-to-first-note (hours)", render.F(pp.PreMedianFirstH, 2), computed},
		{"Post median time-to-first-note (hours)", render.F(pp.PostMedianFirstH, 2), computed},
		{"Time-to-first-note change (%)", render.F(pp.FirstHChange, 0), computed},
		{"Helpful rate (%)", render.F(ctxHelpfulRate*100, 1), curated},
		{"Needs More Ratings rate (%)", render.F(ctxNeedsMoreRatingsRate*100, 1), curated},
		{"Top contributor notes", render.I(ctxTopContributorNotes), curated},
		{"Avg hours to Helpful visible", render.I(ctxAvgHoursToHelpful), curated},
		{"Dropped rows (timestamp parse failures)", render.I(t.DroppedRows), computed},
		{"Subjects dropped (negative creation delta)", render.I(t.NegativeDeltaSubjects), computed},
	}
	return render.WriteCSV(
		filepath.Join(s.opts.Layout.DataProcessed, "real_community_notes.csv"),
		[]string{"Metric", "Value", "Source"},
		rows,
	)
}

func (s *Service) writeLanguages(langs []LanguageRow) error {
	header := []string{"Language", "Language_Name", "Notes", "Notes_Share", "Unique_Authors"}
	rows := make([][]string, 0, len(langs))
	for _, l := range langs {
		rows = append(rows, []string{
			l.Language,
			languageName(l.Language),
			render.I(l.Notes),
			render.F(l.Share, 6),
			render.I(l.UniqueAuthors),
		})
	}
	return render.WriteCSV(filepath.Join(s.opts.Layout.DataProcessed, "real_community_notes_language.csv"), header, rows)
}

// languageName resolves a BCP-47-ish code to its English display name.
// Unresolvable codes (including the "unk" sentinel) pass through untouched
func languageName(code string) string {
	if code == "unk" {
		return code
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}

func (s *Service) renderFigure(monthly []MonthlyRow) error {
	times := make([]time.Time, len(monthly))
	notes := make([]float64, len(monthly))
	authors := make([]float64, len(monthly))
	perAuthor := make([]float64, len(monthly))
	firstH := make([]float64, len(monthly))
	for i, m := range monthly {
		times[i] = m.Month.Start()
		notes[i] = float64(m.Notes)
		authors[i] = float64(m.ActiveAuthors)
		perAuthor[i] = m.NotesPerAuthor
		firstH[i] = m.MedianTimeToFirst
	}

	panel := func(title, ylabel string, vals []float64, c color.Color) (*plot.Plot, error) {
		return render.NewTimePanel(title, ylabel, []render.TimeSeries{
			{Times: times, Values: vals, Color: c},
		}, timeutil.Cutover)
	}
	p1, err := panel("Monthly Notes Created", "Notes / month", notes, render.Blue)
	if err != nil {
		return err
	}
	p2, err := panel("Monthly Active Note Writers", "Unique authors / month", authors, render.Green)
	if err != nil {
		return err
	}
	p3, err := panel("Notes per Active Writer (Participation Intensity)", "Notes / active author / month", perAuthor, render.Purple)
	if err != nil {
		return err
	}
	p4, err := panel("Responsiveness: Median Time-to-First-Note", "Hours (median)", firstH, render.Orange)
	if err != nil {
		return err
	}
	return render.SaveGrid(
		filepath.Join(s.opts.Layout.Figures, "layer3_real_community_notes.png"),
		[][]*plot.Plot{{p1, p2}, {p3, p4}},
		7*vg.Inch, 5*vg.Inch,
	)
}
