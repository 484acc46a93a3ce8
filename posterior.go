package main

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ChainSamples holds one chain's recorded draws, keyed by monitor name.
// Scalars map a parameter to its per-iteration values; Vectors map an array
// quantity (the latent state, imputed rainfall) to one slice per iteration.
type ChainSamples struct {
	Scalars map[string][]float64
	Vectors map[string][][]float64
}

// Posterior is the typed result of one Sample call: every requested monitor,
// per chain, in iteration order. No name-prefix scanning of a flat draw
// matrix; callers ask for parameters by name.
type Posterior struct {
	Monitors []string
	Chains   []*ChainSamples
}

func newPosterior(monitors []string, chains int) *Posterior {
	p := &Posterior{Monitors: append([]string(nil), monitors...)}
	for i := 0; i < chains; i++ {
		p.Chains = append(p.Chains, &ChainSamples{
			Scalars: make(map[string][]float64),
			Vectors: make(map[string][][]float64),
		})
	}
	return p
}

// Scalar returns the per-chain draw sequences for a scalar parameter.
func (p *Posterior) Scalar(name string) ([][]float64, error) {
	out := make([][]float64, len(p.Chains))
	for i, c := range p.Chains {
		draws, ok := c.Scalars[name]
		if !ok {
			return nil, fmt.Errorf("posterior: scalar %q was not monitored", name)
		}
		out[i] = draws
	}
	return out, nil
}

// Vector returns the per-chain draw sequences for an array quantity:
// out[chain][iteration][index].
func (p *Posterior) Vector(name string) ([][][]float64, error) {
	out := make([][][]float64, len(p.Chains))
	for i, c := range p.Chains {
		draws, ok := c.Vectors[name]
		if !ok {
			return nil, fmt.Errorf("posterior: vector %q was not monitored", name)
		}
		out[i] = draws
	}
	return out, nil
}

// Discard returns a view of the posterior without the first burn draws of
// every chain. The underlying draw storage is shared, not copied.
func (p *Posterior) Discard(burn int) *Posterior {
	out := &Posterior{Monitors: p.Monitors}
	for _, c := range p.Chains {
		nc := &ChainSamples{
			Scalars: make(map[string][]float64, len(c.Scalars)),
			Vectors: make(map[string][][]float64, len(c.Vectors)),
		}
		for name, draws := range c.Scalars {
			nc.Scalars[name] = draws[min(burn, len(draws)):]
		}
		for name, draws := range c.Vectors {
			nc.Vectors[name] = draws[min(burn, len(draws)):]
		}
		out.Chains = append(out.Chains, nc)
	}
	return out
}

// PooledScalar concatenates a scalar parameter's draws across chains.
func (p *Posterior) PooledScalar(name string) ([]float64, error) {
	chains, err := p.Scalar(name)
	if err != nil {
		return nil, err
	}
	var pooled []float64
	for _, draws := range chains {
		pooled = append(pooled, draws...)
	}
	return pooled, nil
}

// quantile computes the q-th linearly interpolated quantile of xs.
// xs is reordered.
func quantile(q float64, xs []float64) float64 {
	sort.Float64s(xs)
	return stat.Quantile(q, stat.LinInterp, xs, nil)
}

// SummarizeScalar reduces a pooled scalar to mean and the configured
// lower/median/upper quantiles.
func (p *Posterior) SummarizeScalar(name string, probs []float64) (mean float64, qs []float64, err error) {
	pooled, err := p.PooledScalar(name)
	if err != nil {
		return 0, nil, err
	}
	if len(pooled) == 0 {
		return 0, nil, fmt.Errorf("posterior: no retained draws for %q", name)
	}
	mean = stat.Mean(pooled, nil)
	sorted := append([]float64(nil), pooled...)
	sort.Float64s(sorted)
	qs = make([]float64, len(probs))
	for i, q := range probs {
		qs[i] = stat.Quantile(q, stat.LinInterp, sorted, nil)
	}
	return mean, qs, nil
}
