// Package testkit builds synthetic reduced SANS datasets for tests:
// analytic scattering curves with controllable noise, so fits and
// profile analysis have a known ground truth to recover.
package testkit

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"sansfit/domain/sans"
)

// CurveConfig describes the Q grid and noise model for a generated curve.
type CurveConfig struct {
	QMin   float64
	QMax   float64
	Points int
	Noise  float64 // relative noise amplitude; 0 means exact
	Seed   int64
}

// DefaultCurve covers a typical pinhole SANS Q range.
func DefaultCurve() CurveConfig {
	return CurveConfig{QMin: 0.004, QMax: 0.45, Points: 60, Seed: 1}
}

// LogspaceQ returns n log-spaced Q values between lo and hi inclusive.
func LogspaceQ(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / float64(n-1)
		out[i] = lo * math.Pow(hi/lo, t)
	}
	return out
}

// Generate evaluates intensity over the configured Q grid. Uncertainties
// are 2% of the (noise-free) intensity, floored to stay positive.
func Generate(cfg CurveConfig, intensity func(q float64) float64) *sans.Dataset {
	rng := rand.New(rand.NewSource(cfg.Seed))
	ds := &sans.Dataset{}
	for _, q := range LogspaceQ(cfg.QMin, cfg.QMax, cfg.Points) {
		ideal := intensity(q)
		di := math.Max(0.02*math.Abs(ideal), 1e-8)
		val := ideal
		if cfg.Noise > 0 {
			val += rng.NormFloat64() * cfg.Noise * math.Abs(ideal)
		}
		ds.Q = append(ds.Q, q)
		ds.I = append(ds.I, val)
		ds.DI = append(ds.DI, di)
	}
	return ds
}

// PowerLaw generates I(q) = q^slope, the standard probe for slope
// estimation in profile analysis.
func PowerLaw(cfg CurveConfig, slope float64) *sans.Dataset {
	return Generate(cfg, func(q float64) float64 {
		return math.Pow(q, slope)
	})
}

// Sphere generates the analytic monodisperse sphere curve
// scale*P(q,radius) + background with unit contrast.
func Sphere(cfg CurveConfig, radius, scale, background float64) *sans.Dataset {
	return Generate(cfg, func(q float64) float64 {
		x := q * radius
		f := 3 * (math.Sin(x) - x*math.Cos(x)) / (x * x * x)
		return scale*f*f + background
	})
}

// CSV renders a dataset in the upload file format.
func CSV(ds *sans.Dataset) string {
	var b strings.Builder
	b.WriteString("Q,I,dI\n")
	for i := range ds.Q {
		fmt.Fprintf(&b, "%g,%g,%g\n", ds.Q[i], ds.I[i], ds.DI[i])
	}
	return b.String()
}
