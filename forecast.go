package main

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// ForecastBand is a per-day credible band on the natural streamflow scale,
// index-aligned with the series dates.
type ForecastBand struct {
	Dates  []float64
	Lower  []float64
	Median []float64
	Upper  []float64
}

// NaturalScaleBand turns retained latent-state draws into a credible band.
// Each draw is exponentiated first and the quantiles are taken on the
// natural scale afterward; the order matters, the band is asymmetric around
// the median on purpose. post must already have burn-in discarded.
func NaturalScaleBand(post *Posterior, dates []float64, probs []float64) (*ForecastBand, error) {
	if len(probs) != 3 {
		return nil, fmt.Errorf("forecast: need lower/median/upper probabilities, got %d", len(probs))
	}
	chains, err := post.Vector(MonState)
	if err != nil {
		return nil, err
	}

	n := len(dates)
	total := 0
	for _, draws := range chains {
		total += len(draws)
		for _, draw := range draws {
			if len(draw) != n {
				return nil, fmt.Errorf("forecast: state draw length %d, series length %d", len(draw), n)
			}
		}
	}
	if total == 0 {
		return nil, fmt.Errorf("forecast: no retained state draws")
	}

	band := &ForecastBand{
		Dates:  append([]float64(nil), dates...),
		Lower:  make([]float64, n),
		Median: make([]float64, n),
		Upper:  make([]float64, n),
	}

	buf := make([]float64, 0, total)
	for t := 0; t < n; t++ {
		buf = buf[:0]
		for _, draws := range chains {
			for _, draw := range draws {
				buf = append(buf, math.Exp(draw[t]))
			}
		}
		band.Lower[t] = quantile(probs[0], buf)
		band.Median[t] = quantile(probs[1], buf)
		band.Upper[t] = quantile(probs[2], buf)
	}
	return band, nil
}

// SaveForecastPlot overlays the credible band with the observations,
// separating the points the model saw from the held-out ones past the
// cutoff, and writes a PNG.
func SaveForecastPlot(band *ForecastBand, split *HoldoutSplit, title, path string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "date"
	p.Y.Label.Text = "streamflow"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}

	bandLine := func(ys []float64, dashed bool, name string) error {
		xys := make(plotter.XYs, len(band.Dates))
		for t := range band.Dates {
			xys[t].X = band.Dates[t]
			xys[t].Y = ys[t]
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(0)
		if dashed {
			line.Dashes = plotutil.Dashes(1)
		}
		p.Add(line)
		p.Legend.Add(name, line)
		return nil
	}
	if err := bandLine(band.Median, false, "posterior median"); err != nil {
		return fmt.Errorf("forecast plot: %w", err)
	}
	if err := bandLine(band.Lower, true, "2.5%"); err != nil {
		return fmt.Errorf("forecast plot: %w", err)
	}
	if err := bandLine(band.Upper, true, "97.5%"); err != nil {
		return fmt.Errorf("forecast plot: %w", err)
	}

	var fitted, heldOut plotter.XYs
	for t := 0; t < split.Ref.Len(); t++ {
		truth := split.Ref.Flow[t]
		if math.IsNaN(truth) {
			continue
		}
		pt := plotter.XY{X: split.Ref.Dates[t], Y: truth}
		if math.IsNaN(split.Fit.Flow[t]) {
			heldOut = append(heldOut, pt)
		} else {
			fitted = append(fitted, pt)
		}
	}

	if len(fitted) > 0 {
		sc, err := plotter.NewScatter(fitted)
		if err != nil {
			return fmt.Errorf("forecast plot: %w", err)
		}
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(1.5)
		sc.GlyphStyle.Color = plotutil.Color(1)
		p.Add(sc)
		p.Legend.Add("observed (fitted)", sc)
	}
	if len(heldOut) > 0 {
		sc, err := plotter.NewScatter(heldOut)
		if err != nil {
			return fmt.Errorf("forecast plot: %w", err)
		}
		sc.GlyphStyle.Shape = draw.PyramidGlyph{}
		sc.GlyphStyle.Radius = vg.Points(2)
		sc.GlyphStyle.Color = plotutil.Color(2)
		p.Add(sc)
		p.Legend.Add("observed (held out)", sc)
	}

	p.Legend.Top = true

	if err := p.Save(9*vg.Inch, 4.5*vg.Inch, path); err != nil {
		return fmt.Errorf("forecast plot: save %s: %w", path, err)
	}
	return nil
}
