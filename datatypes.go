package main

import (
	"time"
)

// DailySeries holds one catchment's daily observations.
// Flow and Rain are index-aligned with Dates; missing values are NaN so the
// series keeps one slot per day and masking never shifts the time axis.
type DailySeries struct {
	Dates []float64 // unix seconds at midnight UTC, ascending
	Flow  []float64 // streamflow, m^3/s, NaN if missing
	Rain  []float64 // rainfall depth, mm/day, NaN if missing
}

func (s *DailySeries) Len() int { return len(s.Dates) }

// Date returns the calendar date at index i.
func (s *DailySeries) Date(i int) time.Time {
	return time.Unix(int64(s.Dates[i]), 0).UTC()
}

// HoldoutSplit pairs the masked fitting series with the untouched reference
// series. Both share dates and length so forecast quantiles at step t can be
// compared against either the fitted or the held-out truth.
type HoldoutSplit struct {
	Fit    *DailySeries
	Ref    *DailySeries
	Cutoff time.Time
}

// ModelData is the covariate view the sampler consumes: everything on the
// scales the model actually uses (log flow, lagged rain, annual sinusoids).
type ModelData struct {
	Dates   []float64
	LogFlow []float64 // NaN where unobserved or held out
	RainLag []float64 // rain at t-1; NaN at t=0 and where rain was missing
	SinDOY  []float64
	CosDOY  []float64
}

func (d *ModelData) Len() int { return len(d.LogFlow) }

type ModelVariant int

// The three escalating model structures.
const (
	RandomWalk    ModelVariant = iota // latent level + process noise only
	RainfallWalk                      // + linear term in lagged rainfall, missing rain -> 0
	MeanReverting                     // + decay toward a baseline, seasonality, rain imputation
)

func (v ModelVariant) String() string {
	switch v {
	case RandomWalk:
		return "random_walk"
	case RainfallWalk:
		return "rainfall_walk"
	case MeanReverting:
		return "mean_reverting"
	}
	return "unknown"
}

// GammaPrior is a shape/rate prior on a precision.
type GammaPrior struct {
	Shape float64 `yaml:"shape"`
	Rate  float64 `yaml:"rate"`
}

// NormalPrior is a mean/precision prior on a location parameter.
type NormalPrior struct {
	Mean      float64 `yaml:"mean"`
	Precision float64 `yaml:"precision"`
}

// ModelSpec declares one variant and every prior it uses. Each variant owns
// its own spec value; nothing is shared or mutated between fits.
type ModelSpec struct {
	Variant ModelVariant

	ObsPrecision  GammaPrior  // observation noise
	ProcPrecision GammaPrior  // process noise
	InitState     NormalPrior // x_1

	// RainfallWalk and MeanReverting
	RainCoef NormalPrior

	// MeanReverting only
	Level       NormalPrior // baseline the state decays toward
	SeasonCoef  NormalPrior // shared by the sin and cos terms
	MissingRain NormalPrior // prior for imputed rainfall, truncated at zero
}

// Monitor names accepted by CompiledModel.Sample.
const (
	MonObsPrec     = "tau.obs"
	MonProcPrec    = "tau.proc"
	MonRainCoef    = "beta.rain"
	MonSinCoef     = "beta.sin"
	MonCosCoef     = "beta.cos"
	MonDecay       = "phi"
	MonLevel       = "mu"
	MonState       = "state"
	MonMissingRain = "rain.imputed"
)

// RunOptions controls one Sample invocation on a compiled model.
type RunOptions struct {
	Iterations int
	Monitors   []string
}

// SamplerConfig is shared across the three fits of one analysis run.
type SamplerConfig struct {
	Chains int    `yaml:"chains"`
	Seed   uint64 `yaml:"seed"`
}
