package main

import (
	"fmt"
	"math"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// SaveDiagnostics renders the visual convergence check for the given scalar
// parameters: one row per parameter, trace plot (value vs. iteration, one
// line per chain) on the left, marginal density per chain on the right,
// written as a single PNG.
func SaveDiagnostics(post *Posterior, params []string, path string) error {
	if len(params) == 0 {
		return fmt.Errorf("diagnostics: no parameters to plot")
	}

	plots := make([][]*plot.Plot, len(params))
	for i, name := range params {
		chains, err := post.Scalar(name)
		if err != nil {
			return err
		}

		trace := plot.New()
		trace.Title.Text = name + " trace"
		trace.X.Label.Text = "iteration"
		trace.Y.Label.Text = name

		density := plot.New()
		density.Title.Text = name + " density"
		density.X.Label.Text = name
		density.Y.Label.Text = "density"

		for ci, draws := range chains {
			xys := make(plotter.XYs, len(draws))
			for it, v := range draws {
				xys[it].X = float64(it)
				xys[it].Y = v
			}
			line, err := plotter.NewLine(xys)
			if err != nil {
				return fmt.Errorf("diagnostics: trace %s chain %d: %w", name, ci+1, err)
			}
			line.Color = plotutil.Color(ci)
			trace.Add(line)

			dens, err := plotter.NewLine(kde(draws))
			if err != nil {
				return fmt.Errorf("diagnostics: density %s chain %d: %w", name, ci+1, err)
			}
			dens.Color = plotutil.Color(ci)
			density.Add(dens)
		}

		plots[i] = []*plot.Plot{trace, density}
	}

	img := vgimg.New(8*vg.Inch, vg.Length(len(params))*2.2*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: len(params),
		Cols: 2,
		PadX: vg.Millimeter * 3,
		PadY: vg.Millimeter * 3,
	}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		for j := range plots[i] {
			plots[i][j].Draw(canvases[i][j])
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("diagnostics: create %s: %w", path, err)
	}
	defer f.Close()

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		return fmt.Errorf("diagnostics: write %s: %w", path, err)
	}
	return nil
}

// kde evaluates a Gaussian kernel density estimate of xs on a regular grid,
// with Silverman's rule-of-thumb bandwidth.
func kde(xs []float64) plotter.XYs {
	const gridN = 128

	n := len(xs)
	if n == 0 {
		return nil
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	sd := stat.StdDev(sorted, nil)
	if sd == 0 || math.IsNaN(sd) {
		sd = 1e-9
	}
	h := 1.06 * sd * math.Pow(float64(n), -0.2)

	lo := sorted[0] - 3*h
	hi := sorted[n-1] + 3*h
	step := (hi - lo) / (gridN - 1)

	out := make(plotter.XYs, gridN)
	norm := 1 / (float64(n) * h * math.Sqrt(2*math.Pi))
	for i := 0; i < gridN; i++ {
		g := lo + float64(i)*step
		sum := 0.0
		for _, x := range sorted {
			z := (g - x) / h
			sum += math.Exp(-0.5 * z * z)
		}
		out[i].X = g
		out[i].Y = norm * sum
	}
	return out
}

// GelmanRubin computes the split-Rhat statistic for one scalar parameter
// from its per-chain draws. Values near 1 indicate the chains agree; this is
// advisory only, the decisive check stays visual.
func GelmanRubin(chains [][]float64) float64 {
	// split each chain in half so within-chain drift also shows up
	var halves [][]float64
	for _, c := range chains {
		if len(c) < 4 {
			return math.NaN()
		}
		mid := len(c) / 2
		halves = append(halves, c[:mid], c[mid:mid*2])
	}

	n := float64(len(halves[0]))

	means := make([]float64, len(halves))
	vars := make([]float64, len(halves))
	for i, h := range halves {
		means[i] = stat.Mean(h, nil)
		vars[i] = stat.Variance(h, nil)
	}

	w := stat.Mean(vars, nil)
	b := n * stat.Variance(means, nil)
	if w <= 0 {
		return 1
	}
	varPlus := (n-1)/n*w + b/n
	return math.Sqrt(varPlus / w)
}

// CheckConvergence computes split-Rhat for every monitored scalar and
// returns a non-fatal SamplerDivergenceError naming the parameters above the
// threshold, plus the per-parameter values for reporting.
func CheckConvergence(post *Posterior, params []string, threshold float64) (map[string]float64, error) {
	rhats := make(map[string]float64, len(params))
	var flagged []string
	for _, name := range params {
		chains, err := post.Scalar(name)
		if err != nil {
			return nil, err
		}
		r := GelmanRubin(chains)
		rhats[name] = r
		if r > threshold {
			flagged = append(flagged, name)
		}
	}
	if len(flagged) > 0 {
		return rhats, &SamplerDivergenceError{Params: flagged}
	}
	return rhats, nil
}
