// Package biblio analyses yearly publication counts for a structural break
// and normalizes them against field-wide output
package biblio

import (
	"context"
	"math"
	"path/filepath"
	"strconv"

	"resurgence/internal/adapters/source/openalex"
	"resurgence/internal/core/stats"
	perr "resurgence/internal/platform/errors"
	"resurgence/internal/platform/logger"
	"resurgence/internal/platform/paths"
	"resurgence/internal/render"

	"github.com/go-playground/validator/v10"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Yearly publication counts exported from the OpenAlex works API.
// Numerator queries: "critical thinking" AND ("artificial intelligence" OR
// "generative AI" OR "ChatGPT"); "generative AI" AND education
var (
	years       = []int{2016, 2017, 2018, 2019, 2020, 2021, 2022, 2023, 2024, 2025}
	ctAIPubs    = []float64{43, 59, 80, 156, 216, 214, 249, 600, 1227, 2725}
	genAIEdPubs = []float64{6, 9, 13, 14, 12, 10, 17, 379, 652, 989}
)

// breakYear is the first post-intervention publication year
const breakYear = 2023

// burstZ flags years whose count sits this many population SDs above mean
const burstZ = 1.5

const cachePrefix = "openalex_total_ai_by_year"

// Options configures the bibliometrics stage
type Options struct {
	BaseURL string // override for tests; empty hits production
	Layout  paths.Layout
}

// FromConfig builds Options from the resolved layout
func FromConfig(layout paths.Layout) Options {
	return Options{Layout: layout}
}

// Service runs the bibliometrics layer
type Service struct {
	opts   Options
	client *openalex.Client
}

// New validates options and returns the service
func New(opts Options) (*Service, error) {
	if err := validator.New().Struct(opts); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeConfig, "biblio options")
	}
	return &Service{opts: opts, client: openalex.New(opts.BaseURL)}, nil
}

// YearRow is one publication year of the analysis table
type YearRow struct {
	Year        int
	CTAI        float64
	GenAIEd     float64
	TotalAI     float64 // NaN when the denominator lacks the year
	Ratio       float64
	RatioPer10k float64
	CTAIYoY     float64
	GenAIEdYoY  float64
	CTAIZ       float64
	Burst       bool
}

// BreakStats summarize the pre/post-2023 regressions and growth rates
type BreakStats struct {
	PreSlope           float64
	PostSlope          float64
	SlopeRatio         float64
	PreR2              float64
	PostR2             float64
	PreAvgGrowth       float64
	PostAvgGrowth      float64
	AccelerationFactor float64
}

// Run assembles the yearly table, detects the break, writes the CSV and
// renders the figure
func (s *Service) Run(ctx context.Context) error {
	rows, err := s.Assemble(ctx)
	if err != nil {
		return err
	}
	bs := DetectBreak(rows)
	logger.C(ctx).Info().
		Float64("pre_avg_growth", bs.PreAvgGrowth).
		Float64("post_avg_growth", bs.PostAvgGrowth).
		Float64("acceleration", bs.AccelerationFactor).
		Msg("structural break analysed")

	if err := s.writeCSV(rows); err != nil {
		return err
	}
	return s.renderFigure(rows, bs)
}

// Assemble joins the pinned numerators with the cached field denominator
// and derives growth, normalization and burst columns
func (s *Service) Assemble(ctx context.Context) ([]YearRow, error) {
	payload, err := openalex.LoadOrFetch(ctx, s.opts.Layout.DataRaw, cachePrefix, func(ctx context.Context) (openalex.Payload, error) {
		return s.client.GroupBy(ctx, "concept.id:"+openalex.ConceptAI, "publication_year", 1)
	})
	if err != nil {
		return nil, err
	}
	totalByYear := make(map[int]float64, len(payload.GroupBy))
	for _, g := range payload.GroupBy {
		if y, err := strconv.Atoi(g.Key); err == nil {
			totalByYear[y] = float64(g.Count)
		}
	}

	zs := zscores(ctAIPubs)
	rows := make([]YearRow, len(years))
	for i, y := range years {
		total := math.NaN()
		if v, ok := totalByYear[y]; ok {
			total = v
		}
		ratio := ctAIPubs[i] / total
		r := YearRow{
			Year:        y,
			CTAI:        ctAIPubs[i],
			GenAIEd:     genAIEdPubs[i],
			TotalAI:     total,
			Ratio:       ratio,
			RatioPer10k: ratio * 10000,
			CTAIYoY:     math.NaN(),
			GenAIEdYoY:  math.NaN(),
			CTAIZ:       zs[i],
			Burst:       zs[i] > burstZ,
		}
		if i > 0 {
			r.CTAIYoY = stats.PercentShift(ctAIPubs[i-1], ctAIPubs[i])
			r.GenAIEdYoY = stats.PercentShift(genAIEdPubs[i-1], genAIEdPubs[i])
		}
		rows[i] = r
	}
	return rows, nil
}

// DetectBreak fits plain yearly regressions each side of the break and
// compares average YoY growth. Annual series are too short for HAC lags
func DetectBreak(rows []YearRow) BreakStats {
	var preY, postY []float64
	var preGrowth, postGrowth []float64
	for _, r := range rows {
		if r.Year < breakYear {
			preY = append(preY, r.CTAI)
			if r.Year >= 2017 && !math.IsNaN(r.CTAIYoY) {
				preGrowth = append(preGrowth, r.CTAIYoY)
			}
		} else {
			postY = append(postY, r.CTAI)
			if !math.IsNaN(r.CTAIYoY) {
				postGrowth = append(postGrowth, r.CTAIYoY)
			}
		}
	}
	bs := BreakStats{
		PreSlope: math.NaN(), PostSlope: math.NaN(), SlopeRatio: math.NaN(),
		PreR2: math.NaN(), PostR2: math.NaN(),
		PreAvgGrowth:  stats.Mean(preGrowth),
		PostAvgGrowth: stats.Mean(postGrowth),
	}
	if pre, err := stats.LinearTrend(preY, 0); err == nil {
		bs.PreSlope, bs.PreR2 = pre.Slope, pre.R2
	}
	if post, err := stats.LinearTrend(postY, 0); err == nil {
		bs.PostSlope, bs.PostR2 = post.Slope, post.R2
	}
	if bs.PreSlope != 0 && !math.IsNaN(bs.PreSlope) && !math.IsNaN(bs.PostSlope) {
		bs.SlopeRatio = bs.PostSlope / bs.PreSlope
	}
	if bs.PreAvgGrowth != 0 && !math.IsNaN(bs.PreAvgGrowth) && !math.IsNaN(bs.PostAvgGrowth) {
		bs.AccelerationFactor = bs.PostAvgGrowth / bs.PreAvgGrowth
	} else {
		bs.AccelerationFactor = math.NaN()
	}
	return bs
}

func zscores(xs []float64) []float64 {
	m := stats.Mean(xs)
	sd := stats.PopStdDev(xs)
	out := make([]float64, len(xs))
	for i, x := range xs {
		if sd == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (x - m) / sd
	}
	return out
}

var csvHeader = []string{
	"Year", "CT_AI_Pubs", "GenAI_Ed_Pubs", "Total_AI_Pubs",
	"Critical_Ratio", "Critical_Ratio_per_10k",
	"CT_AI_YoY", "GenAI_Ed_YoY", "CT_AI_zscore", "Burst",
}

func (s *Service) writeCSV(rows []YearRow) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		burst := "No"
		if r.Burst {
			burst = "Yes"
		}
		out = append(out, []string{
			render.I(r.Year),
			render.F(r.CTAI, 0),
			render.F(r.GenAIEd, 0),
			render.F(r.TotalAI, 0),
			render.G(r.Ratio),
			render.F(r.RatioPer10k, 4),
			render.F(r.CTAIYoY, 2),
			render.F(r.GenAIEdYoY, 2),
			render.F(r.CTAIZ, 4),
			burst,
		})
	}
	return render.WriteCSV(filepath.Join(s.opts.Layout.DataProcessed, "real_bibliometrics.csv"), csvHeader, out)
}

func (s *Service) renderFigure(rows []YearRow, bs BreakStats) error {
	labels := make([]string, len(rows))
	ct := make([]float64, len(rows))
	gen := make([]float64, len(rows))
	ratio := make([]float64, len(rows))
	yearsF := make([]float64, len(rows))
	for i, r := range rows {
		labels[i] = strconv.Itoa(r.Year)
		ct[i] = r.CTAI
		gen[i] = r.GenAIEd
		ratio[i] = r.RatioPer10k
		yearsF[i] = float64(r.Year)
	}

	p1, err := groupedBars("Publication Growth by Year", "Publication Count", labels, ct, gen)
	if err != nil {
		return err
	}
	p2, err := logGrowthPanel(yearsF, ct, gen, bs)
	if err != nil {
		return err
	}
	p3, err := render.NewScatterPanel(
		"Field-Normalized Ratio", "Year", "CT+AI per 10,000 AI papers",
		yearsF, ratio, render.Green,
	)
	if err != nil {
		return err
	}
	return render.SaveGrid(
		filepath.Join(s.opts.Layout.Figures, "layer2_real_bibliometrics.png"),
		[][]*plot.Plot{{p1, p2}, {p3, nil}},
		7*vg.Inch, 5*vg.Inch,
	)
}

func groupedBars(title, ylabel string, labels []string, a, b []float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = ylabel

	w := vg.Points(10)
	barsA, err := plotter.NewBarChart(plotter.Values(a), w)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "build bars")
	}
	barsA.Color = render.Red
	barsA.LineStyle.Width = 0
	barsA.Offset = -w / 2

	barsB, err := plotter.NewBarChart(plotter.Values(b), w)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "build bars")
	}
	barsB.Color = render.Blue
	barsB.LineStyle.Width = 0
	barsB.Offset = w / 2

	p.Add(barsA, barsB)
	p.Legend.Add("CT + AI", barsA)
	p.Legend.Add("GenAI + Education", barsB)
	p.Legend.Top = true
	p.NominalX(labels...)
	return p, nil
}

func logGrowthPanel(years, ct, gen []float64, bs BreakStats) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Exponential Growth (acceleration " + render.F(bs.AccelerationFactor, 1) + "x)"
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Publications (log scale)"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}

	mk := func(vals []float64) plotter.XYs {
		xys := make(plotter.XYs, 0, len(vals))
		for i, v := range vals {
			if v <= 0 {
				continue
			}
			xys = append(xys, plotter.XY{X: years[i], Y: v})
		}
		return xys
	}
	lnCT, err := plotter.NewLine(mk(ct))
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "build line")
	}
	lnCT.Color = render.Red
	lnCT.Width = vg.Points(2)
	lnGen, err := plotter.NewLine(mk(gen))
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "build line")
	}
	lnGen.Color = render.Blue
	lnGen.Width = vg.Points(2)
	lnGen.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}

	p.Add(lnCT, lnGen)
	p.Legend.Add("CT+AI", lnCT)
	p.Legend.Add("GenAI+Ed", lnGen)
	p.Legend.Top = true
	return p, nil
}
