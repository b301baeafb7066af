package fitter

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"sansfit/domain/sans"
)

// quadrature builds normalized sample points and weights for averaging a
// form factor over a size distribution centered on nominal with relative
// width cfg.Width. Points are spread over ±3 standard spreads, clipped to
// stay positive.
func quadrature(nominal float64, cfg *sans.PDConfig) (points, weights []float64) {
	if cfg.Width <= 0 || nominal <= 0 {
		return nil, nil
	}
	n := cfg.N
	if n < sans.PDQuadratureMin {
		n = sans.PDQuadratureMin
	}
	if n > sans.PDQuadratureMax {
		n = sans.PDQuadratureMax
	}

	sigma := cfg.Width * nominal
	lo := nominal - 3*sigma
	hi := nominal + 3*sigma
	if lo <= 0 {
		lo = nominal * 1e-3
	}

	pdf := densityFor(nominal, cfg)
	points = make([]float64, 0, n)
	weights = make([]float64, 0, n)
	total := 0.0
	for i := 0; i < n; i++ {
		x := lo + (hi-lo)*(float64(i)+0.5)/float64(n)
		w := pdf(x)
		if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			continue
		}
		points = append(points, x)
		weights = append(weights, w)
		total += w
	}
	if total == 0 {
		return nil, nil
	}
	for i := range weights {
		weights[i] /= total
	}
	return points, weights
}

// densityFor maps a PD distribution to its probability density, all
// parameterized by the nominal value and the relative width.
func densityFor(nominal float64, cfg *sans.PDConfig) func(float64) float64 {
	w := cfg.Width
	switch cfg.Distribution {
	case sans.DistLogNormal:
		// Match mean = nominal, relative spread = width.
		s2 := math.Log(1 + w*w)
		d := distuv.LogNormal{Mu: math.Log(nominal) - s2/2, Sigma: math.Sqrt(s2)}
		return d.Prob
	case sans.DistSchulz:
		// Schulz is a gamma distribution with shape k = 1/width².
		k := 1 / (w * w)
		d := distuv.Gamma{Alpha: k, Beta: k / nominal}
		return d.Prob
	case sans.DistRectangle:
		half := w * math.Sqrt(3) * nominal
		lo := nominal - half
		if lo <= 0 {
			lo = nominal * 1e-3
		}
		d := distuv.Uniform{Min: lo, Max: nominal + half}
		return d.Prob
	case sans.DistBoltzmann:
		d := distuv.Laplace{Mu: nominal, Scale: w * nominal}
		return d.Prob
	default: // gaussian
		d := distuv.Normal{Mu: nominal, Sigma: w * nominal}
		return d.Prob
	}
}
