package synthesis

import (
	"math"
	"path/filepath"
	"sort"

	perr "resurgence/internal/platform/errors"
	"resurgence/internal/render"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// regionRow is one region of the enrollment-growth table, read back from
// the stratification artifact
type regionRow struct {
	Region string
	CT     float64
	GenAI  float64
	Ratio  float64
}

// renderDivide writes the regional skill-growth figures
func (s *Service) renderDivide(in *inputs) error {
	regions := make([]regionRow, 0, len(in.mooc.Rows))
	for i := range in.mooc.Rows {
		regions = append(regions, regionRow{
			Region: in.mooc.Cell(i, "Region"),
			CT:     in.mooc.Num(i, "CT_Growth"),
			GenAI:  in.mooc.Num(i, "GenAI_Growth"),
			Ratio:  in.mooc.Num(i, "CT_GenAI_Ratio"),
		})
	}
	// best to worst evaluation-to-adoption balance
	sort.SliceStable(regions, func(i, j int) bool { return regions[i].Ratio > regions[j].Ratio })

	if err := s.renderRegional(regions); err != nil {
		return err
	}
	if err := s.renderGap(regions); err != nil {
		return err
	}
	return s.renderTiers(in.strat)
}

// renderRegional is the grouped CT vs GenAI growth chart
func (s *Service) renderRegional(regions []regionRow) error {
	labels := make([]string, len(regions))
	ct := make([]float64, len(regions))
	gen := make([]float64, len(regions))
	for i, r := range regions {
		labels[i] = r.Region
		ct[i] = r.CT
		gen[i] = r.GenAI
	}

	p := plot.New()
	p.Title.Text = "Regional skill growth imbalance"
	p.Y.Label.Text = "Enrollment growth (%)"

	w := vg.Points(14)
	barsCT, err := plotter.NewBarChart(plotter.Values(ct), w)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "build bars")
	}
	barsCT.Color = render.Green
	barsCT.LineStyle.Width = 0
	barsCT.Offset = -w / 2

	barsGen, err := plotter.NewBarChart(plotter.Values(gen), w)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "build bars")
	}
	barsGen.Color = render.Red
	barsGen.LineStyle.Width = 0
	barsGen.Offset = w / 2

	p.Add(barsCT, barsGen)
	p.Legend.Add("Critical Thinking growth", barsCT)
	p.Legend.Add("GenAI skills growth", barsGen)
	p.Legend.Top = true
	p.NominalX(labels...)

	return render.SavePNG(
		filepath.Join(s.opts.Layout.Figures, "augmentation_divide_regional.png"),
		p, 11*vg.Inch, 5.5*vg.Inch)
}

// renderGap stacks evaluation capacity under the adoption overhang
func (s *Service) renderGap(regions []regionRow) error {
	labels := make([]string, len(regions))
	eval := make(plotter.Values, len(regions))
	gap := make(plotter.Values, len(regions))
	for i, r := range regions {
		labels[i] = r.Region
		eval[i] = r.CT
		gap[i] = r.GenAI - r.CT
		if gap[i] < 0 {
			gap[i] = 0
		}
	}

	p := plot.New()
	p.Title.Text = "Adoption vs evaluation capacity"
	p.Y.Label.Text = "Enrollment growth (%)"

	w := vg.Points(22)
	barsEval, err := plotter.NewBarChart(eval, w)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "build bars")
	}
	barsEval.Color = render.Blue
	barsEval.LineStyle.Width = 0

	barsGap, err := plotter.NewBarChart(gap, w)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "build bars")
	}
	barsGap.Color = render.Red
	barsGap.LineStyle.Width = 0
	barsGap.StackOn(barsEval)

	p.Add(barsEval, barsGap)
	p.Legend.Add("Evaluation capacity (CT growth)", barsEval)
	p.Legend.Add("Adoption-evaluation gap", barsGap)
	p.Legend.Top = true
	p.NominalX(labels...)

	return render.SavePNG(
		filepath.Join(s.opts.Layout.Figures, "adoption_evaluation_gap.png"),
		p, 10*vg.Inch, 6*vg.Inch)
}

// renderTiers is the two-panel tier concentration chart: total attributions
// and per-country averages
func (s *Service) renderTiers(strat *Table) error {
	totals := tierTotals(strat)
	counts := make(map[string]int, len(tierOrder))
	for i := range strat.Rows {
		counts[strat.Cell(i, "HDI_Category")]++
	}

	sums := make([]float64, len(tierOrder))
	perCountry := make([]float64, len(tierOrder))
	for i, tier := range tierOrder {
		sums[i] = totals[tier]
		if n := counts[tier]; n > 0 {
			perCountry[i] = totals[tier] / float64(n)
		} else {
			perCountry[i] = math.NaN()
		}
	}

	p1, err := render.NewBarPanel(
		"Research output by HDI tier",
		"Total attributions", tierOrder, sums, render.Orange)
	if err != nil {
		return err
	}
	p2, err := render.NewBarPanel(
		"Per-country output by HDI tier",
		"Attributions per country", tierOrder, perCountry, render.Blue)
	if err != nil {
		return err
	}
	return render.SaveGrid(
		filepath.Join(s.opts.Layout.Figures, "hdi_stratification_chart.png"),
		[][]*plot.Plot{{p1, p2}},
		7*vg.Inch, 5*vg.Inch)
}
