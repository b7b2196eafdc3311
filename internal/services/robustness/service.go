// Package robustness probes the search-interest findings with placebo
// boundaries, pre-trend diagnostics and effect sizes
package robustness

import (
	"context"
	"math"
	"path/filepath"
	"strings"

	srctrends "resurgence/internal/adapters/source/trends"
	"resurgence/internal/core/breakpoint"
	"resurgence/internal/core/stats"
	perr "resurgence/internal/platform/errors"
	"resurgence/internal/platform/logger"
	"resurgence/internal/platform/paths"
	"resurgence/internal/platform/timeutil"
	"resurgence/internal/render"

	"github.com/go-playground/validator/v10"
)

// placeboAlpha is the significance bar for the descriptive placebo check
const placeboAlpha = 0.001

// preTrendAlpha is the significance bar for the pre-trend diagnostic
const preTrendAlpha = 0.05

// bootstrap configuration for the median confidence intervals
const (
	bootResamples  = 10000
	bootConfidence = 0.95
	bootSeed       = 42
)

// Options configures the robustness stage
type Options struct {
	DataDir string `validate:"required"`
	Layout  paths.Layout
}

// FromConfig builds Options from the resolved layout
func FromConfig(layout paths.Layout) Options {
	return Options{DataDir: layout.DataRaw, Layout: layout}
}

// Service runs the robustness checks
type Service struct {
	opts Options
}

// New validates options and returns the service
func New(opts Options) (*Service, error) {
	if err := validator.New().Struct(opts); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeConfig, "robustness options")
	}
	return &Service{opts: opts}, nil
}

// LanguageCheck is the per-language robustness summary
type LanguageCheck struct {
	Language string

	RealShiftPct       float64
	MaxPlaceboShiftPct float64
	ShiftStrongest     bool

	RealSlopeChange       float64
	MaxPlaceboSlopeChange float64
	SlopeStrongest        bool
	RealSlopeChangeP      float64

	PreTrendSlope       float64
	PreTrendR2          float64
	PreTrendP           float64
	PreTrendSignificant bool
}

// EffectSizes is the per-language effect-size summary
type EffectSizes struct {
	Language      string
	PreMedian     float64
	PreCILower    float64
	PreCIUpper    float64
	PostMedian    float64
	PostCILower   float64
	PostCIUpper   float64
	CohensD       float64
	RankBiserialR float64
	P             float64
}

// Run sweeps every language, writes the three robustness tables and logs
// the headline verdicts
func (s *Service) Run(ctx context.Context) error {
	log := logger.C(ctx)

	var checks []LanguageCheck
	var placeboRows [][]string
	var effects []EffectSizes

	for _, q := range srctrends.Queries {
		lang := strings.ToLower(q.Language)
		series, err := srctrends.Load(s.opts.DataDir, q)
		if err != nil {
			return err
		}

		sweep := breakpoint.PlaceboSweep(series)
		for _, r := range sweep {
			placeboRows = append(placeboRows, placeboCSVRow(lang, r))
		}
		checks = append(checks, buildCheck(lang, series, sweep))
		effects = append(effects, buildEffects(lang, series))
	}

	// one shared significance bar across all rank tests
	bonferroniAlpha := 0.05 / float64(len(effects))

	strongestShift, strongestSlope, preTrends := 0, 0, 0
	for _, c := range checks {
		if c.ShiftStrongest {
			strongestShift++
		}
		if c.SlopeStrongest {
			strongestSlope++
		}
		if c.PreTrendSignificant {
			preTrends++
		}
	}
	log.Info().
		Int("strongest_by_shift", strongestShift).
		Int("strongest_by_slope", strongestSlope).
		Int("significant_pre_trends", preTrends).
		Int("languages", len(checks)).
		Msg("robustness sweep complete")

	if err := s.writeChecks(checks); err != nil {
		return err
	}
	if err := s.writePlacebo(placeboRows); err != nil {
		return err
	}
	return s.writeEffects(effects, bonferroniAlpha)
}

func buildCheck(lang string, series breakpoint.Series, sweep []breakpoint.PlaceboRow) LanguageCheck {
	c := LanguageCheck{
		Language:              lang,
		RealShiftPct:          math.NaN(),
		MaxPlaceboShiftPct:    breakpoint.MaxPlaceboShift(sweep),
		ShiftStrongest:        breakpoint.StrongestByShift(sweep),
		RealSlopeChange:       math.NaN(),
		MaxPlaceboSlopeChange: breakpoint.MaxPlaceboSlopeChange(sweep),
		SlopeStrongest:        breakpoint.StrongestBySlopeChange(sweep),
		RealSlopeChangeP:      math.NaN(),
		PreTrendSlope:         math.NaN(),
		PreTrendR2:            math.NaN(),
		PreTrendP:             math.NaN(),
	}
	for _, r := range sweep {
		if !r.IsReal {
			continue
		}
		c.RealShiftPct = r.ShiftPct
		if r.HasITS {
			c.RealSlopeChange = r.ITS.SlopeChange
			c.RealSlopeChangeP = r.ITS.SlopeP
		}
	}
	if fit, err := breakpoint.PreTrend(series, breakpoint.RealCutover); err == nil {
		c.PreTrendSlope = fit.Slope
		c.PreTrendR2 = fit.R2
		c.PreTrendP = fit.SlopeP
		c.PreTrendSignificant = !math.IsNaN(fit.SlopeP) && fit.SlopeP < preTrendAlpha
	}
	return c
}

func buildEffects(lang string, series breakpoint.Series) EffectSizes {
	series.Sort()
	pre, post := series.Split(timeutil.Cutover)

	mw := stats.MannWhitneyLess(pre, post)
	preLo, preHi := stats.BootstrapMedianCI(pre, bootResamples, bootConfidence, bootSeed)
	postLo, postHi := stats.BootstrapMedianCI(post, bootResamples, bootConfidence, bootSeed)

	return EffectSizes{
		Language:      lang,
		PreMedian:     stats.Median(pre),
		PreCILower:    preLo,
		PreCIUpper:    preHi,
		PostMedian:    stats.Median(post),
		PostCILower:   postLo,
		PostCIUpper:   postHi,
		CohensD:       stats.CohensD(pre, post),
		RankBiserialR: stats.RankBiserial(mw.U, len(pre), len(post)),
		P:             mw.P,
	}
}

var checksHeader = []string{
	"language",
	"chatgpt_median_effect_pct", "max_placebo_effect_pct", "chatgpt_median_strongest",
	"chatgpt_its_slope_change", "max_placebo_its_slope_change", "chatgpt_its_slope_strongest",
	"chatgpt_its_slope_change_p_hac",
	"pre_trend_slope", "pre_trend_r_squared", "pre_trend_p_value_hac", "pre_trend_significant",
}

func (s *Service) writeChecks(checks []LanguageCheck) error {
	rows := make([][]string, 0, len(checks))
	for _, c := range checks {
		rows = append(rows, []string{
			c.Language,
			render.F(c.RealShiftPct, 6),
			render.F(c.MaxPlaceboShiftPct, 6),
			render.B(c.ShiftStrongest),
			render.F(c.RealSlopeChange, 6),
			render.F(c.MaxPlaceboSlopeChange, 6),
			render.B(c.SlopeStrongest),
			render.G(c.RealSlopeChangeP),
			render.F(c.PreTrendSlope, 6),
			render.F(c.PreTrendR2, 6),
			render.G(c.PreTrendP),
			render.B(c.PreTrendSignificant),
		})
	}
	return render.WriteCSV(filepath.Join(s.opts.Layout.DataProcessed, "robustness_checks.csv"), checksHeader, rows)
}

var placeboHeader = []string{
	"break_date", "is_chatgpt", "pre_median", "post_median", "effect_pct",
	"p_value", "significant",
	"its_slope_pre", "its_slope_change", "its_slope_post", "its_slope_change_p_hac",
	"its_n_pre", "its_n_post", "its_r_squared",
	"language",
}

func placeboCSVRow(lang string, r breakpoint.PlaceboRow) []string {
	slopePre, slopeChange, slopePost := math.NaN(), math.NaN(), math.NaN()
	slopeP, r2 := math.NaN(), math.NaN()
	nPre, nPost := "", ""
	if r.HasITS {
		slopePre = r.ITS.Trend
		slopeChange = r.ITS.SlopeChange
		slopePost = slopePre + slopeChange
		slopeP = r.ITS.SlopeP
		r2 = r.ITS.R2
		nPre = render.I(r.NPre)
		nPost = render.I(r.NPost)
	}
	return []string{
		r.Boundary.Format("2006-01-02"),
		render.B(r.IsReal),
		render.F(r.PreMedian, 1),
		render.F(r.PostMedian, 1),
		render.F(r.ShiftPct, 6),
		render.G(r.P),
		render.B(!math.IsNaN(r.P) && r.P < placeboAlpha),
		render.F(slopePre, 6),
		render.F(slopeChange, 6),
		render.F(slopePost, 6),
		render.G(slopeP),
		nPre,
		nPost,
		render.F(r2, 6),
		lang,
	}
}

func (s *Service) writePlacebo(rows [][]string) error {
	return render.WriteCSV(filepath.Join(s.opts.Layout.DataProcessed, "placebo_breakpoint_analysis.csv"), placeboHeader, rows)
}

var effectsHeader = []string{
	"language",
	"pre_median", "pre_ci_lower", "pre_ci_upper",
	"post_median", "post_ci_lower", "post_ci_upper",
	"cohens_d", "rank_biserial_r", "p_value",
	"bonferroni_significant", "bonferroni_alpha",
}

func (s *Service) writeEffects(effects []EffectSizes, alpha float64) error {
	rows := make([][]string, 0, len(effects))
	for _, e := range effects {
		rows = append(rows, []string{
			e.Language,
			render.F(e.PreMedian, 1),
			render.F(e.PreCILower, 1),
			render.F(e.PreCIUpper, 1),
			render.F(e.PostMedian, 1),
			render.F(e.PostCILower, 1),
			render.F(e.PostCIUpper, 1),
			render.F(e.CohensD, 6),
			render.F(e.RankBiserialR, 6),
			render.G(e.P),
			render.B(!math.IsNaN(e.P) && e.P < alpha),
			render.G(alpha),
		})
	}
	return render.WriteCSV(filepath.Join(s.opts.Layout.DataProcessed, "effect_sizes_trends.csv"), effectsHeader, rows)
}
