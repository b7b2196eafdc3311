// Package synthesis condenses the processed artifacts of the four layers
// into summary figures
package synthesis

import (
	"context"
	"math"
	"path/filepath"
	"time"

	perr "resurgence/internal/platform/errors"
	"resurgence/internal/platform/logger"
	"resurgence/internal/platform/paths"
	"resurgence/internal/render"

	"github.com/go-playground/validator/v10"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

// trendPanelOrder fixes the language order of the interest panel
var trendPanelOrder = []string{"Spanish", "German", "French", "English"}

// tierOrder fixes the development-tier order of the stratification panel
var tierOrder = []string{"Very High", "High", "Medium", "Low"}

// Options configures the synthesis stage
type Options struct {
	Layout paths.Layout `validate:"required"`
}

// Service assembles the cross-layer summary
type Service struct {
	opts Options
}

// New validates options and returns the service
func New(opts Options) (*Service, error) {
	if err := validator.New().Struct(opts); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeConfig, "synthesis options")
	}
	return &Service{opts: opts}, nil
}

// inputs are the upstream artifacts the synthesis reads back
type inputs struct {
	trends     *Table
	biblio     *Table
	notes      map[string]float64
	notesLang  *Table // optional
	strat      *Table
	mooc       *Table
	robustness *Table // optional
}

func (s *Service) load() (*inputs, error) {
	dir := s.opts.Layout.DataProcessed
	in := &inputs{}

	var err error
	if in.trends, err = LoadTable(filepath.Join(dir, "real_trends_analysis.csv"), "trends"); err != nil {
		return nil, err
	}
	if in.biblio, err = LoadTable(filepath.Join(dir, "real_bibliometrics.csv"), "biblio"); err != nil {
		return nil, err
	}
	notes, err := LoadTable(filepath.Join(dir, "real_community_notes.csv"), "notes")
	if err != nil {
		return nil, err
	}
	in.notes = notes.Metrics()
	if in.strat, err = LoadTable(filepath.Join(dir, "real_hdi_stratification.csv"), "stratify"); err != nil {
		return nil, err
	}
	if in.mooc, err = LoadTable(filepath.Join(dir, "real_mooc_regional.csv"), "stratify"); err != nil {
		return nil, err
	}

	// supplementary artifacts enrich the figure but never block it
	in.notesLang, _ = LoadTable(filepath.Join(dir, "real_community_notes_language.csv"), "notes")
	in.robustness, _ = LoadTable(filepath.Join(dir, "robustness_checks.csv"), "robustness")
	return in, nil
}

// Run reads the processed tables back and writes the synthesis figures
func (s *Service) Run(ctx context.Context) error {
	log := logger.C(ctx)

	in, err := s.load()
	if err != nil {
		return err
	}

	if err := s.renderFourLayer(in); err != nil {
		return err
	}
	if err := s.renderDivide(in); err != nil {
		return err
	}

	ev := log.Info()
	if in.robustness != nil {
		strong := 0
		for i := range in.robustness.Rows {
			if in.robustness.Cell(i, "chatgpt_median_strongest") == "True" {
				strong++
			}
		}
		ev = ev.Int("placebo_strongest_languages", strong).
			Int("languages", len(in.robustness.Rows))
	}
	if r2022, r2024 := ratioPer10k(in.biblio, 2022), ratioPer10k(in.biblio, 2024); r2022 > 0 {
		ev = ev.Float64("ratio_acceleration_2022_2024", r2024/r2022)
	}
	if g := pctChange(in.notes["Pre avg monthly notes"], in.notes["Post avg monthly notes"]); !math.IsNaN(g) {
		ev = ev.Float64("notes_monthly_growth_pct", g)
	}
	if gap := tierGap(in.strat); !math.IsNaN(gap) {
		ev = ev.Float64("hdi_tier_gap", gap)
	}
	if in.notesLang != nil && len(in.notesLang.Rows) > 0 {
		ev = ev.Str("top_language", in.notesLang.Cell(0, "Language")).
			Float64("top_language_notes_share", in.notesLang.Num(0, "Notes_Share"))
	}
	ev.Msg("synthesis complete")
	return nil
}

// renderFourLayer writes the 2x2 cross-layer summary grid
func (s *Service) renderFourLayer(in *inputs) error {
	p1, err := s.trendsPanel(in.trends)
	if err != nil {
		return err
	}
	p2, err := s.biblioPanel(in.biblio)
	if err != nil {
		return err
	}
	p3, err := s.notesPanel(in.notes)
	if err != nil {
		return err
	}
	p4, err := s.stratPanel(in.strat)
	if err != nil {
		return err
	}
	return render.SaveGrid(
		filepath.Join(s.opts.Layout.Figures, "four_layer_synthesis.png"),
		[][]*plot.Plot{{p1, p2}, {p3, p4}},
		vg.Points(460), vg.Points(340),
	)
}

// trendsPanel shows the post-boundary slope change per language
func (s *Service) trendsPanel(trends *Table) (*plot.Plot, error) {
	vals := make([]float64, len(trendPanelOrder))
	for i, lang := range trendPanelOrder {
		vals[i] = math.NaN()
		if row := trends.Find("Language", lang); row >= 0 {
			vals[i] = trends.Num(row, "Slope_Change")
		}
	}
	return render.NewBarPanel(
		"Public interest: trend slope change (SVI/month)",
		"Slope change", trendPanelOrder, vals, render.Blue)
}

// biblioPanel shows the field-normalized publication ratio over years
func (s *Service) biblioPanel(biblio *Table) (*plot.Plot, error) {
	times := make([]time.Time, 0, len(biblio.Rows))
	vals := make([]float64, 0, len(biblio.Rows))
	for i := range biblio.Rows {
		y := biblio.Num(i, "Year")
		if math.IsNaN(y) {
			continue
		}
		times = append(times, time.Date(int(y), time.January, 1, 0, 0, 0, 0, time.UTC))
		vals = append(vals, biblio.Num(i, "Critical_Ratio_per_10k"))
	}
	// annual series, so the boundary marker sits at mid-2022
	rule := time.Date(2022, time.July, 1, 0, 0, 0, 0, time.UTC)
	return render.NewTimePanel(
		"Institutional discourse: CT+AI per 10k AI papers",
		"Papers per 10,000",
		[]render.TimeSeries{{Name: "CT+AI per 10k", Times: times, Values: vals, Color: render.Green}},
		rule)
}

// notesPanel shows the pre/post growth of the annotation activity metrics
func (s *Service) notesPanel(m map[string]float64) (*plot.Plot, error) {
	labels := []string{"Notes/month", "Authors/month", "Notes/author", "Time-to-first"}
	vals := []float64{
		pctChange(m["Pre avg monthly notes"], m["Post avg monthly notes"]),
		pctChange(m["Pre avg active authors"], m["Post avg active authors"]),
		pctChange(m["Pre avg notes per active author"], m["Post avg notes per active author"]),
		pctChange(m["Pre median time-to-first-note (hours)"], m["Post median time-to-first-note (hours)"]),
	}
	return render.NewBarPanel(
		"Behavioral enactment: pre/post growth",
		"Change (%)", labels, vals, render.Purple)
}

// stratPanel shows total attributions by development tier
func (s *Service) stratPanel(strat *Table) (*plot.Plot, error) {
	totals := tierTotals(strat)
	vals := make([]float64, len(tierOrder))
	for i, tier := range tierOrder {
		vals[i] = totals[tier]
	}
	return render.NewBarPanel(
		"Stratification: attributions by HDI tier",
		"Publication attributions", tierOrder, vals, render.Orange)
}

func tierTotals(strat *Table) map[string]float64 {
	totals := make(map[string]float64, len(tierOrder))
	for i := range strat.Rows {
		tier := strat.Cell(i, "HDI_Category")
		if v := strat.Num(i, "Publications"); !math.IsNaN(v) {
			totals[tier] += v
		}
	}
	return totals
}

// tierGap is the Very High to Low attribution ratio
func tierGap(strat *Table) float64 {
	totals := tierTotals(strat)
	if totals["Low"] == 0 {
		return math.NaN()
	}
	return totals["Very High"] / totals["Low"]
}

func ratioPer10k(biblio *Table, year int) float64 {
	for i := range biblio.Rows {
		if biblio.Num(i, "Year") == float64(year) {
			return biblio.Num(i, "Critical_Ratio_per_10k")
		}
	}
	return math.NaN()
}

func pctChange(pre, post float64) float64 {
	if math.IsNaN(pre) || math.IsNaN(post) || pre == 0 {
		return math.NaN()
	}
	return (post/pre - 1) * 100
}
