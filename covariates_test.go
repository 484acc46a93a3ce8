package main

import (
	"math"
	"testing"
	"time"
)

// helper: compare floats with tolerance
func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// helper: build a daily series starting at start with the given flow and
// rain values.
func makeSeries(start time.Time, flow, rain []float64) *DailySeries {
	s := &DailySeries{
		Dates: make([]float64, len(flow)),
		Flow:  append([]float64(nil), flow...),
		Rain:  append([]float64(nil), rain...),
	}
	for i := range flow {
		s.Dates[i] = float64(start.AddDate(0, 0, i).Unix())
	}
	return s
}

// The lag covariate at step t must equal the raw rainfall at t-1, and must be
// undefined at the first step.
func TestDeriveCovariates_RainLag(t *testing.T) {
	start := time.Date(1987, 7, 1, 0, 0, 0, 0, time.UTC)
	rain := []float64{3.5, 0, 12.25, math.NaN(), 1}
	flow := []float64{1, 1, 1, 1, 1}

	d := DeriveCovariates(makeSeries(start, flow, rain))

	if !math.IsNaN(d.RainLag[0]) {
		t.Errorf("RainLag[0] = %v, want NaN", d.RainLag[0])
	}
	for i := 1; i < len(rain); i++ {
		got, want := d.RainLag[i], rain[i-1]
		if math.IsNaN(want) {
			if !math.IsNaN(got) {
				t.Errorf("RainLag[%d] = %v, want NaN", i, got)
			}
			continue
		}
		if !almostEqual(got, want, 1e-12) {
			t.Errorf("RainLag[%d] = %v, want %v", i, got, want)
		}
	}
}

// sin^2 + cos^2 = 1 at every step.
func TestDeriveCovariates_SeasonalIdentity(t *testing.T) {
	start := time.Date(1987, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 400 // spans a year boundary
	flow := make([]float64, n)
	rain := make([]float64, n)
	for i := range flow {
		flow[i] = 1
	}

	d := DeriveCovariates(makeSeries(start, flow, rain))
	for i := 0; i < n; i++ {
		sum := d.SinDOY[i]*d.SinDOY[i] + d.CosDOY[i]*d.CosDOY[i]
		if !almostEqual(sum, 1, 1e-12) {
			t.Errorf("sin^2+cos^2 at %d = %v, want 1", i, sum)
		}
	}
}

// Log transform: positive flow maps to its log, missing and non-positive
// flow map to NaN.
func TestDeriveCovariates_LogFlow(t *testing.T) {
	start := time.Date(1987, 7, 1, 0, 0, 0, 0, time.UTC)
	flow := []float64{math.E, math.NaN(), 0, 2}
	rain := []float64{0, 0, 0, 0}

	d := DeriveCovariates(makeSeries(start, flow, rain))

	if !almostEqual(d.LogFlow[0], 1, 1e-12) {
		t.Errorf("LogFlow[0] = %v, want 1", d.LogFlow[0])
	}
	if !math.IsNaN(d.LogFlow[1]) {
		t.Errorf("LogFlow[1] = %v, want NaN (missing)", d.LogFlow[1])
	}
	if !math.IsNaN(d.LogFlow[2]) {
		t.Errorf("LogFlow[2] = %v, want NaN (zero flow)", d.LogFlow[2])
	}
	if !almostEqual(d.LogFlow[3], math.Log(2), 1e-12) {
		t.Errorf("LogFlow[3] = %v, want log 2", d.LogFlow[3])
	}
}

// Every date on/after the cutoff is masked in the fitting series and kept in
// the reference; lengths and dates stay aligned.
func TestMaskHoldout(t *testing.T) {
	start := time.Date(1988, 2, 25, 0, 0, 0, 0, time.UTC)
	cutoff := time.Date(1988, 3, 1, 0, 0, 0, 0, time.UTC)
	flow := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	rain := make([]float64, len(flow))

	ref := makeSeries(start, flow, rain)
	split := MaskHoldout(ref, cutoff)

	if split.Fit.Len() != split.Ref.Len() {
		t.Fatalf("fit length %d != ref length %d", split.Fit.Len(), split.Ref.Len())
	}
	for i := 0; i < split.Fit.Len(); i++ {
		if split.Fit.Dates[i] != split.Ref.Dates[i] {
			t.Fatalf("dates diverge at %d", i)
		}
		after := !split.Fit.Date(i).Before(cutoff)
		masked := math.IsNaN(split.Fit.Flow[i])
		if after && !masked {
			t.Errorf("flow at %s not masked", split.Fit.Date(i).Format("2006-01-02"))
		}
		if !after && masked {
			t.Errorf("flow at %s masked before cutoff", split.Fit.Date(i).Format("2006-01-02"))
		}
		if math.IsNaN(split.Ref.Flow[i]) {
			t.Errorf("reference flow at %d lost", i)
		}
	}
}

// Masking must not touch the reference series it was given.
func TestMaskHoldout_ReferenceUntouched(t *testing.T) {
	start := time.Date(1988, 2, 25, 0, 0, 0, 0, time.UTC)
	ref := makeSeries(start, []float64{1, 2, 3}, []float64{0, 0, 0})
	MaskHoldout(ref, start)

	for i, v := range ref.Flow {
		if math.IsNaN(v) {
			t.Fatalf("reference flow[%d] was masked in place", i)
		}
	}
}
