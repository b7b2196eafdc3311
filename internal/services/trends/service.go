// Package trends analyses the per-language search-interest series across
// the intervention boundary
package trends

import (
	"context"
	"image/color"
	"math"
	"path/filepath"
	"sort"
	"time"

	srctrends "resurgence/internal/adapters/source/trends"
	"resurgence/internal/core/breakpoint"
	"resurgence/internal/core/stats"
	perr "resurgence/internal/platform/errors"
	"resurgence/internal/platform/logger"
	"resurgence/internal/platform/paths"
	"resurgence/internal/platform/timeutil"
	"resurgence/internal/render"

	"github.com/go-playground/validator/v10"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

// Options configures the search-interest stage
type Options struct {
	DataDir string `validate:"required"`
	Layout  paths.Layout
}

// FromConfig builds Options from the resolved layout
func FromConfig(layout paths.Layout) Options {
	return Options{DataDir: layout.DataRaw, Layout: layout}
}

// Service runs the search-interest layer
type Service struct {
	opts Options
}

// New validates options and returns the service
func New(opts Options) (*Service, error) {
	if err := validator.New().Struct(opts); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeConfig, "trends options")
	}
	return &Service{opts: opts}, nil
}

// Row is one language's analysis
type Row struct {
	Language string
	Series   breakpoint.Series
	Cmp      breakpoint.Comparison
}

// Run loads every language, runs the comparison at the cutover, writes the
// analysis table sorted by median shift and renders the figure
func (s *Service) Run(ctx context.Context) error {
	log := logger.C(ctx)
	rows, err := s.Analyze(ctx)
	if err != nil {
		return err
	}
	for _, r := range rows {
		log.Info().
			Str("language", r.Language).
			Float64("pre_median", r.Cmp.PreMedian).
			Float64("post_median", r.Cmp.PostMedian).
			Float64("shift_pct", r.Cmp.ShiftPct).
			Float64("mw_p", r.Cmp.P).
			Msg("language analysed")
	}
	if err := s.writeAnalysis(rows); err != nil {
		return err
	}
	return s.renderFigure(rows)
}

// Analyze loads and compares every language, sorted by shift descending
func (s *Service) Analyze(ctx context.Context) ([]Row, error) {
	rows := make([]Row, 0, len(srctrends.Queries))
	for _, q := range srctrends.Queries {
		series, err := srctrends.Load(s.opts.DataDir, q)
		if err != nil {
			return nil, err
		}
		logger.C(ctx).Debug().Str("language", q.Language).Int("periods", len(series)).Msg("series loaded")
		rows = append(rows, Row{
			Language: q.Language,
			Series:   series,
			Cmp:      breakpoint.Compare(series, timeutil.Cutover),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Cmp.ShiftPct, rows[j].Cmp.ShiftPct
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		if math.IsNaN(a) {
			return false
		}
		return a > b
	})
	return rows, nil
}

var analysisHeader = []string{
	"Language", "Pre_Median", "Post_Median", "Effect_Pct",
	"Mann_Whitney_U", "MW_P_Value",
	"Slope_Pre", "Slope_Change", "Slope_Post", "R_Squared", "Slope_Change_P_HAC",
	"Pre_AbsDiff_Mean", "Post_AbsDiff_Mean", "Volatility_Ratio",
}

func (s *Service) writeAnalysis(rows []Row) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		c := r.Cmp
		slopePre, slopeChange, slopePost := math.NaN(), math.NaN(), math.NaN()
		r2, slopeP := math.NaN(), math.NaN()
		if c.HasITS {
			slopePre = c.ITS.Trend
			slopeChange = c.ITS.SlopeChange
			slopePost = slopePre + slopeChange
			r2 = c.ITS.R2
			slopeP = c.ITS.SlopeP
		}
		out = append(out, []string{
			r.Language,
			render.F(c.PreMedian, 1),
			render.F(c.PostMedian, 1),
			render.F(c.ShiftPct, 1),
			render.F(c.U, 1),
			render.G(c.P),
			render.F(slopePre, 4),
			render.F(slopeChange, 4),
			render.F(slopePost, 4),
			render.F(r2, 4),
			render.G(slopeP),
			render.F(c.PreVolatility, 3),
			render.F(c.PostVolatility, 3),
			render.F(c.VolatilityRatio, 3),
		})
	}
	return render.WriteCSV(filepath.Join(s.opts.Layout.DataProcessed, "real_trends_analysis.csv"), analysisHeader, out)
}

var languageColors = map[string]color.Color{
	"English": render.Blue,
	"German":  render.Red,
	"French":  render.Green,
	"Spanish": color.RGBA{R: 0xf3, G: 0x9c, B: 0x12, A: 0xff},
}

const rollingWindow = 6

func (s *Service) renderFigure(rows []Row) error {
	// fixed panel order regardless of effect sorting
	byLang := make(map[string]Row, len(rows))
	for _, r := range rows {
		byLang[r.Language] = r
	}
	panels := make([]*plot.Plot, 0, len(srctrends.Queries))
	for _, q := range srctrends.Queries {
		r, ok := byLang[q.Language]
		if !ok {
			continue
		}
		times := make([]time.Time, len(r.Series))
		vals := make([]float64, len(r.Series))
		for i, p := range r.Series {
			times[i] = p.When
			vals[i] = p.Value
		}
		c := languageColors[q.Language]
		faded := fade(c)
		p, err := render.NewTimePanel(
			q.Language+": search interest",
			"Search Volume Index",
			[]render.TimeSeries{
				{Times: times, Values: vals, Color: faded},
				{Name: q.Language + " (6-mo avg)", Times: times, Values: stats.RollingMean(vals, rollingWindow), Color: c},
			},
			timeutil.Cutover,
		)
		if err != nil {
			return err
		}
		panels = append(panels, p)
	}
	grid := [][]*plot.Plot{{nil, nil}, {nil, nil}}
	for i, p := range panels {
		grid[i/2][i%2] = p
	}
	return render.SaveGrid(
		filepath.Join(s.opts.Layout.Figures, "layer1_real_trends.png"),
		grid, 7*vg.Inch, 5*vg.Inch,
	)
}

// fade halves the alpha so the raw series sits behind the rolling mean
func fade(c color.Color) color.Color {
	r, g, b, _ := c.RGBA()
	return color.RGBA64{R: uint16(r), G: uint16(g), B: uint16(b), A: 0x7fff}
}
