package main

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// CompiledModel binds a declarative ModelSpec to one data set and holds the
// per-chain sampler state. Calling Sample twice on the same object continues
// the chains where the previous run stopped, so a short diagnostic run can be
// followed by a longer forecasting run without restarting.
type CompiledModel struct {
	spec ModelSpec
	data *ModelData
	cfg  SamplerConfig

	chains  []*chainState
	missing []int // indices with missing lagged rainfall (MeanReverting only)
}

// chainState carries the current value of every unknown in one chain.
type chainState struct {
	rng *rand.Rand

	x        []float64 // latent log-flow state
	rain     []float64 // working lagged-rainfall vector, imputed values filled in
	tauObs   float64
	tauProc  float64
	betaRain float64
	betaSin  float64
	betaCos  float64
	phi      float64 // decay; fixed at 1 for the walk variants
	mu       float64 // baseline; fixed at 0 for the walk variants
}

// Compile validates the spec against the data and initialises the chains.
func Compile(spec ModelSpec, data *ModelData, cfg SamplerConfig) (*CompiledModel, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	n := data.Len()
	if n < 2 {
		return nil, &EmptySeriesError{Rows: n}
	}
	if cfg.Chains < 1 {
		return nil, &ModelSpecError{Variant: spec.Variant, Msg: "need at least one chain"}
	}

	m := &CompiledModel{spec: spec, data: data, cfg: cfg}

	if spec.Variant == MeanReverting {
		// the process layer starts at t=1, so index 0 never enters the model
		for t := 1; t < n; t++ {
			if math.IsNaN(data.RainLag[t]) {
				m.missing = append(m.missing, t)
			}
		}
	}

	for i := 0; i < cfg.Chains; i++ {
		rng := rand.New(rand.NewPCG(cfg.Seed, uint64(i)+1))
		m.chains = append(m.chains, m.newChain(rng))
	}
	return m, nil
}

// MissingRainIndices exposes which time steps carry imputed rainfall.
func (m *CompiledModel) MissingRainIndices() []int {
	return append([]int(nil), m.missing...)
}

func (m *CompiledModel) newChain(rng *rand.Rand) *chainState {
	n := m.data.Len()
	c := &chainState{
		rng:     rng,
		x:       make([]float64, n),
		rain:    make([]float64, n),
		tauObs:  math.Exp(rng.NormFloat64() * 0.2),
		tauProc: math.Exp(rng.NormFloat64() * 0.2),
		phi:     1,
	}

	// working rainfall vector: variant-specific missing-value handling
	for t := 0; t < n; t++ {
		r := m.data.RainLag[t]
		switch {
		case !math.IsNaN(r):
			c.rain[t] = r
		case m.spec.Variant == MeanReverting:
			c.rain[t] = math.Max(0, m.spec.MissingRain.Mean+rng.NormFloat64())
		default:
			c.rain[t] = 0 // RainfallWalk substitutes zero; RandomWalk ignores it
		}
	}

	// initial state path: observed log flow carried across the gaps,
	// jittered so the chains start apart
	last := m.spec.InitState.Mean
	sum, cnt := 0.0, 0
	for t := 0; t < n; t++ {
		if y := m.data.LogFlow[t]; !math.IsNaN(y) {
			last = y
			sum += y
			cnt++
		}
		c.x[t] = last + 0.1*rng.NormFloat64()
	}

	if m.spec.Variant == RainfallWalk || m.spec.Variant == MeanReverting {
		c.betaRain = 0.1 * rng.NormFloat64()
	}
	if m.spec.Variant == MeanReverting {
		c.betaSin = 0.1 * rng.NormFloat64()
		c.betaCos = 0.1 * rng.NormFloat64()
		c.phi = rng.Float64()
		if cnt > 0 {
			c.mu = sum / float64(cnt)
		} else {
			c.mu = m.spec.InitState.Mean
		}
	}
	return c
}

// Sample advances every chain by opts.Iterations sweeps, recording the
// requested monitors once per sweep. Burn-in is not discarded here; the
// summarization step drops it so the raw draws stay available for
// diagnostics.
func (m *CompiledModel) Sample(opts RunOptions) (*Posterior, error) {
	if opts.Iterations <= 0 {
		return nil, &ModelSpecError{Variant: m.spec.Variant, Msg: "iterations must be > 0"}
	}
	if len(opts.Monitors) == 0 {
		return nil, &ModelSpecError{Variant: m.spec.Variant, Msg: "no monitors requested"}
	}
	for _, name := range opts.Monitors {
		if !m.spec.hasMonitor(name) {
			return nil, &ModelSpecError{Variant: m.spec.Variant, Msg: "unknown monitor " + name}
		}
	}

	post := newPosterior(opts.Monitors, m.cfg.Chains)
	for ci, c := range m.chains {
		for it := 0; it < opts.Iterations; it++ {
			m.sweep(c)
			m.record(post.Chains[ci], c, opts.Monitors)
		}
	}
	return post, nil
}

func (m *CompiledModel) record(cs *ChainSamples, c *chainState, monitors []string) {
	for _, name := range monitors {
		switch name {
		case MonObsPrec:
			cs.Scalars[name] = append(cs.Scalars[name], c.tauObs)
		case MonProcPrec:
			cs.Scalars[name] = append(cs.Scalars[name], c.tauProc)
		case MonRainCoef:
			cs.Scalars[name] = append(cs.Scalars[name], c.betaRain)
		case MonSinCoef:
			cs.Scalars[name] = append(cs.Scalars[name], c.betaSin)
		case MonCosCoef:
			cs.Scalars[name] = append(cs.Scalars[name], c.betaCos)
		case MonDecay:
			cs.Scalars[name] = append(cs.Scalars[name], c.phi)
		case MonLevel:
			cs.Scalars[name] = append(cs.Scalars[name], c.mu)
		case MonState:
			cs.Vectors[name] = append(cs.Vectors[name], append([]float64(nil), c.x...))
		case MonMissingRain:
			draw := make([]float64, len(m.missing))
			for i, t := range m.missing {
				draw[i] = c.rain[t]
			}
			cs.Vectors[name] = append(cs.Vectors[name], draw)
		}
	}
}

// cvec is the part of the process mean at step t that does not involve
// x_{t-1}: mu*(1-phi) plus the covariate terms. The walk variants reduce to
// the right expressions because their phi is pinned at 1 and mu at 0.
func (m *CompiledModel) cvec(c *chainState, t int) float64 {
	v := c.mu * (1 - c.phi)
	switch m.spec.Variant {
	case RainfallWalk:
		v += c.betaRain * c.rain[t]
	case MeanReverting:
		v += c.betaRain*c.rain[t] + c.betaSin*m.data.SinDOY[t] + c.betaCos*m.data.CosDOY[t]
	}
	return v
}

// sweep runs one full Gibbs scan: states, coefficients, decay, imputed
// rainfall, then the two precisions. Every conditional is conjugate.
func (m *CompiledModel) sweep(c *chainState) {
	m.updateStates(c)
	switch m.spec.Variant {
	case RainfallWalk:
		m.updateRainCoef(c)
	case MeanReverting:
		m.updateRegression(c)
		m.updateDecay(c)
		m.updateMissingRain(c)
	}
	m.updatePrecisions(c)
}

// updateStates draws each latent state from its full conditional, combining
// the observation at t, the process step into t, and the process step out of
// t, all Gaussian in x_t.
func (m *CompiledModel) updateStates(c *chainState) {
	n := m.data.Len()
	for t := 0; t < n; t++ {
		prec, pwm := 0.0, 0.0

		if y := m.data.LogFlow[t]; !math.IsNaN(y) {
			prec += c.tauObs
			pwm += c.tauObs * y
		}

		if t == 0 {
			prec += m.spec.InitState.Precision
			pwm += m.spec.InitState.Precision * m.spec.InitState.Mean
		} else {
			mean := m.cvec(c, t) + c.phi*c.x[t-1]
			prec += c.tauProc
			pwm += c.tauProc * mean
		}

		if t < n-1 {
			// x_{t+1} ~ N(cvec(t+1) + phi*x_t, 1/tauProc), viewed as a
			// likelihood for x_t
			prec += c.tauProc * c.phi * c.phi
			pwm += c.tauProc * c.phi * (c.x[t+1] - m.cvec(c, t+1))
		}

		c.x[t] = pwm/prec + c.rng.NormFloat64()/math.Sqrt(prec)
	}
}

// updateRainCoef is the scalar conjugate update for the rainfall_walk
// coefficient: response x_t - x_{t-1}, regressor the lagged rainfall.
func (m *CompiledModel) updateRainCoef(c *chainState) {
	n := m.data.Len()
	prec := m.spec.RainCoef.Precision
	pwm := m.spec.RainCoef.Precision * m.spec.RainCoef.Mean
	for t := 1; t < n; t++ {
		z := c.rain[t]
		r := c.x[t] - c.x[t-1]
		prec += c.tauProc * z * z
		pwm += c.tauProc * z * r
	}
	c.betaRain = pwm/prec + c.rng.NormFloat64()/math.Sqrt(prec)
}

// updateRegression jointly draws (mu, beta.rain, beta.sin, beta.cos) for the
// mean_reverting variant. Given phi, the process equation is linear in all
// four, so the conditional is multivariate Normal.
func (m *CompiledModel) updateRegression(c *chainState) {
	const k = 4
	n := m.data.Len()

	priorPrec := [k]float64{
		m.spec.Level.Precision,
		m.spec.RainCoef.Precision,
		m.spec.SeasonCoef.Precision,
		m.spec.SeasonCoef.Precision,
	}
	priorMean := [k]float64{
		m.spec.Level.Mean,
		m.spec.RainCoef.Mean,
		m.spec.SeasonCoef.Mean,
		m.spec.SeasonCoef.Mean,
	}

	var ztz [k][k]float64
	var ztr [k]float64
	for t := 1; t < n; t++ {
		z := [k]float64{1 - c.phi, c.rain[t], m.data.SinDOY[t], m.data.CosDOY[t]}
		r := c.x[t] - c.phi*c.x[t-1]
		for i := 0; i < k; i++ {
			ztr[i] += z[i] * r
			for j := i; j < k; j++ {
				ztz[i][j] += z[i] * z[j]
			}
		}
	}

	P := mat.NewSymDense(k, nil)
	b := mat.NewVecDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			v := c.tauProc * ztz[i][j]
			if i == j {
				v += priorPrec[i]
			}
			P.SetSym(i, j, v)
		}
		b.SetVec(i, priorPrec[i]*priorMean[i]+c.tauProc*ztr[i])
	}

	var chol mat.Cholesky
	if !chol.Factorize(P) {
		return // keep the current draw; the next sweep retries
	}
	var mean mat.VecDense
	if err := chol.SolveVecTo(&mean, b); err != nil {
		return
	}

	// draw = mean + L^{-T} z with P = L L^T
	L := mat.NewTriDense(k, mat.Lower, nil)
	chol.LTo(L)
	var z, u [k]float64
	for i := range z {
		z[i] = c.rng.NormFloat64()
	}
	for i := k - 1; i >= 0; i-- {
		s := z[i]
		for j := i + 1; j < k; j++ {
			s -= L.At(j, i) * u[j]
		}
		u[i] = s / L.At(i, i)
	}

	c.mu = mean.AtVec(0) + u[0]
	c.betaRain = mean.AtVec(1) + u[1]
	c.betaSin = mean.AtVec(2) + u[2]
	c.betaCos = mean.AtVec(3) + u[3]
}

// updateDecay draws phi from its conditional under a flat prior on [0,1]:
// a Normal likelihood in phi, truncated to the stability interval, so every
// retained draw satisfies the constraint by construction.
func (m *CompiledModel) updateDecay(c *chainState) {
	n := m.data.Len()
	likPrec, likPwm := 0.0, 0.0
	for t := 1; t < n; t++ {
		w := c.betaRain*c.rain[t] + c.betaSin*m.data.SinDOY[t] + c.betaCos*m.data.CosDOY[t]
		u := c.x[t-1] - c.mu
		s := c.x[t] - c.mu - w
		likPrec += c.tauProc * u * u
		likPwm += c.tauProc * u * s
	}
	if likPrec <= 0 {
		c.phi = c.rng.Float64()
		return
	}
	c.phi = truncNormal(c.rng, likPwm/likPrec, 1/math.Sqrt(likPrec), 0, 1)
}

// updateMissingRain imputes each missing lagged-rainfall value from its
// conditional: zero-truncated Normal prior times the Gaussian process
// likelihood of the one step it feeds.
func (m *CompiledModel) updateMissingRain(c *chainState) {
	for _, t := range m.missing {
		resid := c.x[t] - c.mu*(1-c.phi) - c.phi*c.x[t-1] -
			c.betaSin*m.data.SinDOY[t] - c.betaCos*m.data.CosDOY[t]
		prec := m.spec.MissingRain.Precision + c.tauProc*c.betaRain*c.betaRain
		pwm := m.spec.MissingRain.Precision*m.spec.MissingRain.Mean + c.tauProc*c.betaRain*resid
		c.rain[t] = truncNormal(c.rng, pwm/prec, 1/math.Sqrt(prec), 0, math.Inf(1))
	}
}

// updatePrecisions draws the observation and process precisions from their
// Gamma conditionals.
func (m *CompiledModel) updatePrecisions(c *chainState) {
	n := m.data.Len()

	sseObs, nObs := 0.0, 0
	for t := 0; t < n; t++ {
		if y := m.data.LogFlow[t]; !math.IsNaN(y) {
			d := y - c.x[t]
			sseObs += d * d
			nObs++
		}
	}
	c.tauObs = distuv.Gamma{
		Alpha: m.spec.ObsPrecision.Shape + float64(nObs)/2,
		Beta:  m.spec.ObsPrecision.Rate + sseObs/2,
		Src:   c.rng,
	}.Rand()

	sseProc := 0.0
	for t := 1; t < n; t++ {
		d := c.x[t] - m.cvec(c, t) - c.phi*c.x[t-1]
		sseProc += d * d
	}
	c.tauProc = distuv.Gamma{
		Alpha: m.spec.ProcPrecision.Shape + float64(n-1)/2,
		Beta:  m.spec.ProcPrecision.Rate + sseProc/2,
		Src:   c.rng,
	}.Rand()
}

// truncNormal draws from N(mean, sd^2) restricted to [lo, hi] by inverse-CDF
// sampling. Unbounded ends take +/-Inf.
func truncNormal(rng *rand.Rand, mean, sd, lo, hi float64) float64 {
	dist := distuv.Normal{Mu: mean, Sigma: sd}
	a, b := 0.0, 1.0
	if !math.IsInf(lo, -1) {
		a = dist.CDF(lo)
	}
	if !math.IsInf(hi, 1) {
		b = dist.CDF(hi)
	}
	if b-a < 1e-14 {
		// numerically degenerate interval: clamp to the nearest bound
		if mean < lo {
			return lo
		}
		if mean > hi {
			return hi
		}
		return mean
	}
	x := dist.Quantile(a + rng.Float64()*(b-a))
	return math.Min(math.Max(x, lo), hi)
}
