package main

// The three model variants share an observation layer,
//
//	log y_t ~ N(x_t, 1/tau.obs)           for every observed day t
//	x_1     ~ N(initMean, 1/initPrec)
//
// and differ in the process layer that carries x_t forward:
//
//	random_walk:    x_t ~ N(x_{t-1}, 1/tau.proc)
//	rainfall_walk:  x_t ~ N(x_{t-1} + beta.rain*rainlag_t, 1/tau.proc)
//	mean_reverting: x_t ~ N(mu + phi*(x_{t-1}-mu) + beta.rain*rainlag_t
//	                        + beta.sin*sin_t + beta.cos*cos_t, 1/tau.proc)
//
// with phi flat on [0,1]. rainfall_walk replaces missing rainfall with zero;
// mean_reverting treats each missing value as a latent quantity with a
// zero-truncated Normal prior, sampled jointly with everything else.

// NewRandomWalkSpec declares the covariate-free baseline model.
func NewRandomWalkSpec(p VariantPriors) ModelSpec {
	return ModelSpec{
		Variant:       RandomWalk,
		ObsPrecision:  p.ObsPrecision,
		ProcPrecision: p.ProcPrecision,
		InitState:     p.InitState,
	}
}

// NewRainfallWalkSpec adds the lagged-rainfall term to the random walk.
func NewRainfallWalkSpec(p VariantPriors) ModelSpec {
	return ModelSpec{
		Variant:       RainfallWalk,
		ObsPrecision:  p.ObsPrecision,
		ProcPrecision: p.ProcPrecision,
		InitState:     p.InitState,
		RainCoef:      p.RainCoef,
	}
}

// NewMeanRevertingSpec declares the full model: decay toward a baseline,
// rainfall and seasonal terms, and joint imputation of missing rainfall.
func NewMeanRevertingSpec(p VariantPriors) ModelSpec {
	return ModelSpec{
		Variant:       MeanReverting,
		ObsPrecision:  p.ObsPrecision,
		ProcPrecision: p.ProcPrecision,
		InitState:     p.InitState,
		RainCoef:      p.RainCoef,
		Level:         p.Level,
		SeasonCoef:    p.SeasonCoef,
		MissingRain:   p.MissingRain,
	}
}

// Validate checks that the declared structure is internally consistent
// before any sampling starts.
func (m ModelSpec) Validate() error {
	switch m.Variant {
	case RandomWalk, RainfallWalk, MeanReverting:
	default:
		return &ModelSpecError{Variant: m.Variant, Msg: "unknown variant"}
	}

	if m.ObsPrecision.Shape <= 0 || m.ObsPrecision.Rate <= 0 {
		return &ModelSpecError{Variant: m.Variant, Msg: "observation precision prior needs positive shape and rate"}
	}
	if m.ProcPrecision.Shape <= 0 || m.ProcPrecision.Rate <= 0 {
		return &ModelSpecError{Variant: m.Variant, Msg: "process precision prior needs positive shape and rate"}
	}
	if m.InitState.Precision <= 0 {
		return &ModelSpecError{Variant: m.Variant, Msg: "initial state prior needs positive precision"}
	}

	if m.Variant == RainfallWalk || m.Variant == MeanReverting {
		if m.RainCoef.Precision <= 0 {
			return &ModelSpecError{Variant: m.Variant, Msg: "rain coefficient prior needs positive precision"}
		}
	}

	if m.Variant == MeanReverting {
		if m.Level.Precision <= 0 {
			return &ModelSpecError{Variant: m.Variant, Msg: "level prior needs positive precision"}
		}
		if m.SeasonCoef.Precision <= 0 {
			return &ModelSpecError{Variant: m.Variant, Msg: "seasonal coefficient prior needs positive precision"}
		}
		if m.MissingRain.Precision <= 0 {
			return &ModelSpecError{Variant: m.Variant, Msg: "missing rainfall prior needs positive precision"}
		}
	}

	return nil
}

// scalarMonitors returns the scalar parameters this variant exposes for the
// short diagnostic run, in reporting order.
func (m ModelSpec) scalarMonitors() []string {
	switch m.Variant {
	case RandomWalk:
		return []string{MonObsPrec, MonProcPrec}
	case RainfallWalk:
		return []string{MonObsPrec, MonProcPrec, MonRainCoef}
	case MeanReverting:
		return []string{MonObsPrec, MonProcPrec, MonRainCoef, MonSinCoef, MonCosCoef, MonDecay, MonLevel}
	}
	return nil
}

// hasMonitor reports whether name is a valid monitor for this variant.
func (m ModelSpec) hasMonitor(name string) bool {
	if name == MonState {
		return true
	}
	if name == MonMissingRain {
		return m.Variant == MeanReverting
	}
	for _, s := range m.scalarMonitors() {
		if s == name {
			return true
		}
	}
	return false
}
