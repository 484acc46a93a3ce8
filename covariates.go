package main

import (
	"math"
	"time"
)

// DeriveCovariates builds the sampler's view of a series: log streamflow,
// the one-day rainfall lag, and annual sinusoids. Pure function of s.
//
// RainLag[t] holds the rainfall recorded at t-1; RainLag[0] is NaN because
// day zero has no predecessor. Missing rainfall stays NaN here: Model B
// substitutes zero at compile time, Model C imputes it during sampling.
func DeriveCovariates(s *DailySeries) *ModelData {
	n := s.Len()
	d := &ModelData{
		Dates:   append([]float64(nil), s.Dates...),
		LogFlow: make([]float64, n),
		RainLag: make([]float64, n),
		SinDOY:  make([]float64, n),
		CosDOY:  make([]float64, n),
	}

	for t := 0; t < n; t++ {
		flow := s.Flow[t]
		if !math.IsNaN(flow) && flow > 0 {
			d.LogFlow[t] = math.Log(flow)
		} else {
			// zero or negative flow has no log-scale observation
			d.LogFlow[t] = math.NaN()
		}

		if t == 0 {
			d.RainLag[t] = math.NaN()
		} else {
			d.RainLag[t] = s.Rain[t-1]
		}

		doy := float64(s.Date(t).YearDay())
		angle := 2 * math.Pi * doy / 365
		d.SinDOY[t] = math.Sin(angle)
		d.CosDOY[t] = math.Cos(angle)
	}

	return d
}

// MaskHoldout replaces streamflow on/after the cutoff with NaN in a copy of
// s, keeping the original as the reference series. Both sides of the split
// share dates and length.
func MaskHoldout(s *DailySeries, cutoff time.Time) *HoldoutSplit {
	cut := float64(cutoff.UTC().Unix())

	fit := &DailySeries{
		Dates: append([]float64(nil), s.Dates...),
		Flow:  append([]float64(nil), s.Flow...),
		Rain:  append([]float64(nil), s.Rain...),
	}
	for t := range fit.Dates {
		if fit.Dates[t] >= cut {
			fit.Flow[t] = math.NaN()
		}
	}

	return &HoldoutSplit{Fit: fit, Ref: s, Cutoff: cutoff}
}

// CountObserved reports how many entries of x are non-missing.
func CountObserved(x []float64) int {
	n := 0
	for _, v := range x {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}
