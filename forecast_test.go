package main

import (
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNaturalScaleBand_Ordering(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	n := 12
	dates := make([]float64, n)
	for i := range dates {
		dates[i] = float64(i)
	}

	p := newPosterior([]string{MonState}, 2)
	for _, c := range p.Chains {
		for it := 0; it < 200; it++ {
			draw := make([]float64, n)
			for i := range draw {
				draw[i] = rng.NormFloat64()
			}
			c.Vectors[MonState] = append(c.Vectors[MonState], draw)
		}
	}

	band, err := NaturalScaleBand(p, dates, []float64{0.025, 0.5, 0.975})
	if err != nil {
		t.Fatalf("NaturalScaleBand returned error: %v", err)
	}
	for i := 0; i < n; i++ {
		if band.Lower[i] > band.Median[i] || band.Median[i] > band.Upper[i] {
			t.Errorf("band not ordered at %d: %v %v %v", i, band.Lower[i], band.Median[i], band.Upper[i])
		}
		if band.Lower[i] <= 0 {
			t.Errorf("natural-scale lower bound at %d = %v, want > 0", i, band.Lower[i])
		}
	}
}

func TestNaturalScaleBand_LengthMismatch(t *testing.T) {
	p := newPosterior([]string{MonState}, 1)
	p.Chains[0].Vectors[MonState] = [][]float64{{1, 2, 3}}

	if _, err := NaturalScaleBand(p, []float64{0, 1}, []float64{0.025, 0.5, 0.975}); err == nil {
		t.Fatal("NaturalScaleBand accepted mismatched lengths")
	}
}

func TestSaveForecastPlot(t *testing.T) {
	start := time.Date(1988, 2, 20, 0, 0, 0, 0, time.UTC)
	cutoff := time.Date(1988, 2, 25, 0, 0, 0, 0, time.UTC)
	flows := []float64{2, 3, 2.5, 4, 3.5, 3, 2.8, 3.1, 2.9, 3.3}
	rains := make([]float64, len(flows))

	ref := makeSeries(start, flows, rains)
	split := MaskHoldout(ref, cutoff)

	n := ref.Len()
	band := &ForecastBand{
		Dates:  ref.Dates,
		Lower:  make([]float64, n),
		Median: make([]float64, n),
		Upper:  make([]float64, n),
	}
	for i := 0; i < n; i++ {
		band.Median[i] = 3
		band.Lower[i] = 2
		band.Upper[i] = 4.5
	}

	path := filepath.Join(t.TempDir(), "forecast.png")
	if err := SaveForecastPlot(band, split, "rainfall_walk", path); err != nil {
		t.Fatalf("SaveForecastPlot returned error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat plot: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("forecast plot is empty")
	}
}

func TestSaveDiagnostics(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	p := newPosterior([]string{MonObsPrec, MonProcPrec}, 3)
	for _, c := range p.Chains {
		for it := 0; it < 100; it++ {
			c.Scalars[MonObsPrec] = append(c.Scalars[MonObsPrec], math.Exp(rng.NormFloat64()))
			c.Scalars[MonProcPrec] = append(c.Scalars[MonProcPrec], math.Exp(rng.NormFloat64()))
		}
	}

	path := filepath.Join(t.TempDir(), "diag.png")
	if err := SaveDiagnostics(p, []string{MonObsPrec, MonProcPrec}, path); err != nil {
		t.Fatalf("SaveDiagnostics returned error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat plot: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("diagnostics plot is empty")
	}
}
