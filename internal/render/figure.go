package render

import (
	"image/color"
	"math"
	"os"
	"path/filepath"
	"time"

	perr "resurgence/internal/platform/errors"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Palette used across figures
var (
	Blue   = color.RGBA{R: 0x34, G: 0x98, B: 0xdb, A: 0xff}
	Green  = color.RGBA{R: 0x2e, G: 0xcc, B: 0x71, A: 0xff}
	Purple = color.RGBA{R: 0x9b, G: 0x59, B: 0xb6, A: 0xff}
	Orange = color.RGBA{R: 0xe6, G: 0x7e, B: 0x22, A: 0xff}
	Red    = color.RGBA{R: 0xe7, G: 0x4c, B: 0x3c, A: 0xff}
	Gray   = color.RGBA{R: 0x7f, G: 0x8c, B: 0x8d, A: 0xff}
)

// TimeSeries is one line of a time panel. NaN values break the line
type TimeSeries struct {
	Name   string
	Times  []time.Time
	Values []float64
	Color  color.Color
	Dashed bool
}

// NewTimePanel builds a dated line panel with an optional vertical rule at
// the intervention boundary (zero rule means no rule)
func NewTimePanel(title, ylabel string, series []TimeSeries, rule time.Time) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = ylabel
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01"}

	ymin, ymax := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		xys := make(plotter.XYs, 0, len(s.Values))
		for i, v := range s.Values {
			if math.IsNaN(v) {
				continue
			}
			xys = append(xys, plotter.XY{X: float64(s.Times[i].Unix()), Y: v})
			if v < ymin {
				ymin = v
			}
			if v > ymax {
				ymax = v
			}
		}
		if len(xys) == 0 {
			continue
		}
		ln, err := plotter.NewLine(xys)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "build line")
		}
		ln.Color = s.Color
		ln.Width = vg.Points(1.5)
		if s.Dashed {
			ln.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		}
		p.Add(ln)
		if s.Name != "" {
			p.Legend.Add(s.Name, ln)
		}
	}

	if !rule.IsZero() && ymin <= ymax {
		rx := float64(rule.Unix())
		rl, err := plotter.NewLine(plotter.XYs{{X: rx, Y: ymin}, {X: rx, Y: ymax}})
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "build rule")
		}
		rl.Color = Red
		rl.Dashes = []vg.Length{vg.Points(5), vg.Points(3)}
		p.Add(rl)
	}
	p.Legend.Top = true
	return p, nil
}

// NewBarPanel builds a categorical bar panel
func NewBarPanel(title, ylabel string, labels []string, values []float64, c color.Color) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = ylabel

	vals := make(plotter.Values, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			vals[i] = 0
			continue
		}
		vals[i] = v
	}
	bars, err := plotter.NewBarChart(vals, vg.Points(22))
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "build bars")
	}
	bars.Color = c
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(labels...)
	return p, nil
}

// NewScatterPanel builds a scatter panel, skipping NaN pairs
func NewScatterPanel(title, xlabel, ylabel string, xs, ys []float64, c color.Color) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel

	xys := make(plotter.XYs, 0, len(xs))
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		xys = append(xys, plotter.XY{X: xs[i], Y: ys[i]})
	}
	sc, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "build scatter")
	}
	sc.GlyphStyle.Color = c
	sc.GlyphStyle.Radius = vg.Points(2.5)
	p.Add(sc)
	return p, nil
}

// SaveGrid renders plots as a rows x cols grid PNG. Nil cells stay blank
func SaveGrid(path string, plots [][]*plot.Plot, panelW, panelH vg.Length) error {
	rows := len(plots)
	if rows == 0 {
		return perr.Internalf("empty plot grid")
	}
	cols := len(plots[0])

	img := vgimg.New(panelW*vg.Length(cols), panelH*vg.Length(rows))
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: rows, Cols: cols,
		PadX: vg.Points(8), PadY: vg.Points(8),
		PadTop: vg.Points(6), PadBottom: vg.Points(6),
		PadLeft: vg.Points(6), PadRight: vg.Points(6),
	}
	canvases := plot.Align(plots, tiles, dc)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if plots[r][c] != nil {
				plots[r][c].Draw(canvases[r][c])
			}
		}
	}
	return writePNG(path, img)
}

// SavePNG renders a single plot
func SavePNG(path string, p *plot.Plot, w, h vg.Length) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "create %s", filepath.Dir(path))
	}
	return p.Save(w, h, path)
}

func writePNG(path string, img *vgimg.Canvas) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "create %s", filepath.Dir(path))
	}
	f, err := os.Create(path)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "create %s", path)
	}
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		_ = f.Close()
		return perr.Wrap(err, perr.ErrorCodeIO, "encode png")
	}
	return f.Close()
}
