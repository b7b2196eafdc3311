// Package stratify merges country-level publication attributions with the
// development index and measures how concentrated the output is
package stratify

import (
	"context"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"resurgence/internal/adapters/source/openalex"
	"resurgence/internal/adapters/source/undp"
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

// countryFilter selects the works whose country attributions we count
const countryFilter = "title_and_abstract.search:critical thinking AND " +
	"(artificial intelligence OR generative AI OR ChatGPT)"

const cachePrefix = "openalex_ct_ai_authorships_countries"

// tierOrder is the presentation order of the development tiers
var tierOrder = []string{"Very High", "High", "Medium", "Low"}

// Options configures the stratification stage
type Options struct {
	BaseURL string // override for tests; empty hits production
	Layout  paths.Layout
}

// FromConfig builds Options from the resolved layout
func FromConfig(layout paths.Layout) Options {
	return Options{Layout: layout}
}

// Service runs the stratification layer
type Service struct {
	opts   Options
	client *openalex.Client
}

// New validates options and returns the service
func New(opts Options) (*Service, error) {
	if err := validator.New().Struct(opts); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeConfig, "stratify options")
	}
	return &Service{opts: opts, client: openalex.New(opts.BaseURL)}, nil
}

// CountryRow is one merged country: development index joined with
// publication attributions (zero when the country has none)
type CountryRow struct {
	ISO3          string
	Country       string
	Tier          string
	HDI           float64
	Publications  int
	CountrySource string // attribution display name; empty without one
	ISO2          string
	LogPubs       float64
	ResearchIndex float64
}

// TierAgg aggregates one development tier
type TierAgg struct {
	Tier            string
	HDIMean         float64
	TotalPubs       float64
	CountryCount    int
	AvgPubs         float64
	MedianPubs      float64
	RatioToVeryHigh float64
}

// Correlations across countries with a reported index
type Correlations struct {
	PearsonRawR float64
	PearsonRawP float64
	PearsonLogR float64
	PearsonLogP float64
	SpearmanR   float64
	SpearmanP   float64
	N           int
}

// Concentration holds the top-country share and tier-gap statistics
type Concentration struct {
	TotalPubs  float64
	Top5Pubs   float64
	Top10Pubs  float64
	Top5Share  float64
	Top10Share float64
	TierGap    float64 // Very High total over Low total
}

// Run builds the merge, computes aggregates, writes both tables and
// renders the figure
func (s *Service) Run(ctx context.Context) error {
	log := logger.C(ctx)

	merged, err := s.Merge(ctx)
	if err != nil {
		return err
	}
	aggs := Stratify(merged)
	corr := Correlate(merged)
	conc := Concentrate(merged, aggs)

	log.Info().
		Int("countries", len(merged)).
		Float64("pearson_r_log", corr.PearsonLogR).
		Float64("spearman_r", corr.SpearmanR).
		Float64("top5_share_pct", conc.Top5Share).
		Float64("tier_gap", conc.TierGap).
		Msg("stratification computed")

	if err := s.writeMerged(merged); err != nil {
		return err
	}
	if err := s.writeMOOC(); err != nil {
		return err
	}
	return s.renderFigure(merged, aggs, conc)
}

// Merge joins attribution counts onto the full development-index country
// list; countries without attributions carry zero
func (s *Service) Merge(ctx context.Context) ([]CountryRow, error) {
	payload, err := openalex.LoadOrFetch(ctx, s.opts.Layout.DataRaw, cachePrefix, func(ctx context.Context) (openalex.Payload, error) {
		return s.client.GroupByAll(ctx, countryFilter, "authorships.countries")
	})
	if err != nil {
		return nil, err
	}

	type attribution struct {
		pubs int
		name string
		iso2 string
	}
	byISO3 := make(map[string]*attribution)
	unmapped := 0
	for _, g := range payload.GroupBy {
		// keys look like https://openalex.org/countries/US
		key := strings.TrimSuffix(g.Key, "/")
		iso2 := strings.ToUpper(key[strings.LastIndex(key, "/")+1:])
		iso3, ok := iso2to3[iso2]
		if !ok {
			unmapped++
			continue
		}
		a := byISO3[iso3]
		if a == nil {
			a = &attribution{name: g.KeyDisplayName, iso2: iso2}
			byISO3[iso3] = a
		}
		a.pubs += g.Count
	}
	if unmapped > 0 {
		logger.C(ctx).Debug().Int("groups", unmapped).Msg("attribution groups without a country mapping dropped")
	}

	undpPath := filepath.Join(s.opts.Layout.DataRaw, undp.FileName)
	if _, err := undp.Ensure(s.opts.Layout.DataRaw, nil); err != nil {
		return nil, err
	}
	countries, err := undp.Load(undpPath)
	if err != nil {
		return nil, err
	}

	merged := make([]CountryRow, 0, len(countries))
	maxLog := 0.0
	for _, c := range countries {
		row := CountryRow{ISO3: c.ISO3, Country: c.Country, Tier: c.Tier, HDI: c.HDI}
		if a := byISO3[c.ISO3]; a != nil {
			row.Publications = a.pubs
			row.CountrySource = a.name
			row.ISO2 = a.iso2
		}
		row.LogPubs = math.Log10(float64(row.Publications) + 1)
		if row.LogPubs > maxLog {
			maxLog = row.LogPubs
		}
		merged = append(merged, row)
	}
	for i := range merged {
		if maxLog > 0 {
			merged[i].ResearchIndex = math.Round(merged[i].LogPubs/maxLog*1000) / 10
		}
	}
	return merged, nil
}

// Stratify aggregates the merge by development tier, ordered strongest
// tier first; countries without a tier are excluded
func Stratify(merged []CountryRow) []TierAgg {
	byTier := make(map[string][]CountryRow)
	for _, r := range merged {
		if r.Tier == "" {
			continue
		}
		byTier[r.Tier] = append(byTier[r.Tier], r)
	}
	var veryHighTotal float64
	aggs := make([]TierAgg, 0, len(tierOrder))
	for _, tier := range tierOrder {
		rows, ok := byTier[tier]
		if !ok {
			continue
		}
		var hdis, pubs []float64
		for _, r := range rows {
			if !math.IsNaN(r.HDI) {
				hdis = append(hdis, r.HDI)
			}
			pubs = append(pubs, float64(r.Publications))
		}
		a := TierAgg{
			Tier:         tier,
			HDIMean:      stats.Mean(hdis),
			TotalPubs:    stats.Sum(pubs),
			CountryCount: len(rows),
			AvgPubs:      stats.Mean(pubs),
			MedianPubs:   stats.Median(pubs),
		}
		if tier == "Very High" {
			veryHighTotal = a.TotalPubs
		}
		aggs = append(aggs, a)
	}
	for i := range aggs {
		if veryHighTotal > 0 {
			aggs[i].RatioToVeryHigh = aggs[i].TotalPubs / veryHighTotal
		} else {
			aggs[i].RatioToVeryHigh = math.NaN()
		}
	}
	return aggs
}

// Correlate measures the index-output association over countries with a
// reported index
func Correlate(merged []CountryRow) Correlations {
	var hdi, pubs, logPubs []float64
	for _, r := range merged {
		if math.IsNaN(r.HDI) {
			continue
		}
		hdi = append(hdi, r.HDI)
		pubs = append(pubs, float64(r.Publications))
		logPubs = append(logPubs, r.LogPubs)
	}
	c := Correlations{N: len(hdi)}
	c.PearsonRawR, c.PearsonRawP = stats.PearsonR(hdi, pubs)
	c.PearsonLogR, c.PearsonLogP = stats.PearsonR(hdi, logPubs)
	c.SpearmanR, c.SpearmanP = stats.SpearmanR(hdi, pubs)
	return c
}

// Concentrate computes the top-country shares and the Very High to Low gap
func Concentrate(merged []CountryRow, aggs []TierAgg) Concentration {
	sorted := append([]CountryRow(nil), merged...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Publications > sorted[j].Publications })

	var total, top5, top10 float64
	for i, r := range sorted {
		p := float64(r.Publications)
		total += p
		if i < 5 {
			top5 += p
		}
		if i < 10 {
			top10 += p
		}
	}
	conc := Concentration{
		TotalPubs: total, Top5Pubs: top5, Top10Pubs: top10,
		Top5Share: math.NaN(), Top10Share: math.NaN(), TierGap: math.NaN(),
	}
	if total > 0 {
		conc.Top5Share = top5 / total * 100
		conc.Top10Share = top10 / total * 100
	}
	var vh, low float64 = math.NaN(), math.NaN()
	for _, a := range aggs {
		switch a.Tier {
		case "Very High":
			vh = a.TotalPubs
		case "Low":
			low = a.TotalPubs
		}
	}
	if !math.IsNaN(vh) && !math.IsNaN(low) && low != 0 {
		conc.TierGap = vh / low
	}
	return conc
}

var mergedHeader = []string{
	"ISO3", "Country", "HDI_Category", "HDI",
	"Publications", "Country_OpenAlex", "ISO2", "Log_Pubs", "Research_Index",
}

func (s *Service) writeMerged(merged []CountryRow) error {
	rows := make([][]string, 0, len(merged))
	for _, r := range merged {
		rows = append(rows, []string{
			r.ISO3,
			r.Country,
			r.Tier,
			render.F(r.HDI, 3),
			render.I(r.Publications),
			r.CountrySource,
			r.ISO2,
			render.F(r.LogPubs, 6),
			render.F(r.ResearchIndex, 1),
		})
	}
	return render.WriteCSV(filepath.Join(s.opts.Layout.DataProcessed, "real_hdi_stratification.csv"), mergedHeader, rows)
}

func (s *Service) writeMOOC() error {
	rows := make([][]string, 0, len(RegionalMOOCData))
	for _, m := range RegionalMOOCData {
		rows = append(rows, []string{
			m.Region,
			render.F(m.CTGrowth, 0),
			render.F(m.GenAIGrowth, 0),
			render.F(m.Ratio, 2),
		})
	}
	return render.WriteCSV(
		filepath.Join(s.opts.Layout.DataProcessed, "real_mooc_regional.csv"),
		[]string{"Region", "CT_Growth", "GenAI_Growth", "CT_GenAI_Ratio"},
		rows,
	)
}

func (s *Service) renderFigure(merged []CountryRow, aggs []TierAgg, conc Concentration) error {
	tiers := make([]string, len(aggs))
	totals := make([]float64, len(aggs))
	for i, a := range aggs {
		tiers[i] = a.Tier
		totals[i] = a.TotalPubs
	}
	p1, err := render.NewBarPanel("Publications by Development Tier", "Country-Level Attributions", tiers, totals, render.Blue)
	if err != nil {
		return err
	}

	var hdi, logPubs []float64
	for _, r := range merged {
		if math.IsNaN(r.HDI) {
			continue
		}
		hdi = append(hdi, r.HDI)
		logPubs = append(logPubs, r.LogPubs)
	}
	p2, err := render.NewScatterPanel(
		"Development Index vs Research Output",
		"HDI (2022)", "log10(Publications + 1)",
		hdi, logPubs, render.Purple,
	)
	if err != nil {
		return err
	}

	p3, err := moocPanel()
	if err != nil {
		return err
	}

	p4, err := topCountriesPanel(merged, conc)
	if err != nil {
		return err
	}

	return render.SaveGrid(
		filepath.Join(s.opts.Layout.Figures, "layer4_real_stratification.png"),
		[][]*plot.Plot{{p1, p2}, {p3, p4}},
		7*vg.Inch, 5*vg.Inch,
	)
}

func moocPanel() (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Enrollment Growth: GenAI vs Critical Thinking"
	p.X.Label.Text = "GenAI Skills Growth (%)"
	p.Y.Label.Text = "Critical Thinking Growth (%)"

	xys := make(plotter.XYs, len(RegionalMOOCData))
	maxX := 0.0
	for i, m := range RegionalMOOCData {
		xys[i] = plotter.XY{X: m.GenAIGrowth, Y: m.CTGrowth}
		if m.GenAIGrowth > maxX {
			maxX = m.GenAIGrowth
		}
	}
	sc, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "build scatter")
	}
	sc.GlyphStyle.Color = render.Orange
	sc.GlyphStyle.Radius = vg.Points(3.5)

	diag, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: maxX, Y: maxX}})
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "build diagonal")
	}
	diag.Color = render.Gray
	diag.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}

	p.Add(diag, sc)
	p.Legend.Add("1:1 balance", diag)
	p.Legend.Top = true
	return p, nil
}

func topCountriesPanel(merged []CountryRow, conc Concentration) (*plot.Plot, error) {
	sorted := append([]CountryRow(nil), merged...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Publications > sorted[j].Publications })
	if len(sorted) > 15 {
		sorted = sorted[:15]
	}

	labels := make([]string, len(sorted))
	vals := make([]float64, len(sorted))
	for i, r := range sorted {
		labels[i] = r.Country
		vals[i] = float64(r.Publications)
	}
	p, err := render.NewBarPanel(
		"Top Countries (Top-5 share "+render.F(conc.Top5Share, 0)+"%)",
		"Publication Attributions",
		labels, vals, render.Green,
	)
	if err != nil {
		return nil, err
	}
	p.X.Tick.Label.Rotation = 0.9
	p.X.Tick.Label.XAlign = -0.9
	return p, nil
}
