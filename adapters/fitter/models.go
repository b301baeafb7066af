package fitter

import (
	"math"
	"sort"
)

// ParamDef declares one model parameter with its defaults.
type ParamDef struct {
	Name         string
	Value        float64
	Min          float64
	Max          float64
	Vary         bool
	Description  string
	Polydisperse bool
}

// ModelDef describes one scattering model: its declared parameters and the
// orientation-averaged form factor P(q). P excludes scale and background;
// the fitter composes I(q) = scale * P(q) * S(q) + background.
type ModelDef struct {
	Name        string
	Description string
	Params      []ParamDef
	FormFactor  func(q float64, p map[string]float64) float64
}

const (
	sldScale  = 1e-6 // parameters are given in 1e-6 Å⁻²
	intenNorm = 1e-4 // cm⁻¹ per Å⁻³ volume normalization
)

// commonParams are declared by every model: overall scale and flat background.
func commonParams() []ParamDef {
	return []ParamDef{
		{Name: "scale", Value: 1.0, Min: 0, Max: math.Inf(1), Vary: true, Description: "Overall intensity scale factor"},
		{Name: "background", Value: 0.001, Min: 0, Max: math.Inf(1), Vary: true, Description: "Flat background (cm^-1)"},
	}
}

// sphereAmp is the normalized sphere scattering amplitude, 1 at x = 0.
func sphereAmp(x float64) float64 {
	if math.Abs(x) < 1e-4 {
		return 1 - x*x/10
	}
	return 3 * (math.Sin(x) - x*math.Cos(x)) / (x * x * x)
}

func sinc(x float64) float64 {
	if math.Abs(x) < 1e-6 {
		return 1
	}
	return math.Sin(x) / x
}

// orientAverage integrates f(cos alpha) over orientation with a midpoint
// rule, weighting by sin alpha. Enough resolution for smooth form factors.
func orientAverage(f func(u float64) float64) float64 {
	const n = 76
	sum := 0.0
	for i := 0; i < n; i++ {
		alpha := (float64(i) + 0.5) / n * math.Pi / 2
		sum += f(math.Cos(alpha)) * math.Sin(alpha)
	}
	return sum * (math.Pi / 2) / n
}

var modelRegistry = map[string]*ModelDef{}

func register(m *ModelDef) { modelRegistry[m.Name] = m }

// AllModels returns the sorted names of every registered scattering model.
func AllModels() []string {
	names := make([]string, 0, len(modelRegistry))
	for name := range modelRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupModel returns the model definition for a name, or nil.
func LookupModel(name string) *ModelDef { return modelRegistry[name] }

func init() {
	register(&ModelDef{
		Name:        "sphere",
		Description: "Monodisperse hard sphere",
		Params: append(commonParams(),
			ParamDef{Name: "radius", Value: 50, Min: 1, Max: 5000, Vary: true, Description: "Sphere radius (Å)", Polydisperse: true},
			ParamDef{Name: "sld", Value: 1, Min: -10, Max: 15, Description: "Particle scattering length density (1e-6 Å^-2)"},
			ParamDef{Name: "sld_solvent", Value: 6.3, Min: -10, Max: 15, Description: "Solvent scattering length density (1e-6 Å^-2)"},
		),
		FormFactor: func(q float64, p map[string]float64) float64 {
			r := p["radius"]
			contrast := (p["sld"] - p["sld_solvent"]) * sldScale
			vol := 4.0 / 3.0 * math.Pi * r * r * r
			f := sphereAmp(q * r)
			return intenNorm * contrast * contrast * vol * f * f * 1e8
		},
	})

	register(&ModelDef{
		Name:        "cylinder",
		Description: "Right circular cylinder, orientation averaged",
		Params: append(commonParams(),
			ParamDef{Name: "radius", Value: 20, Min: 1, Max: 5000, Vary: true, Description: "Cylinder radius (Å)", Polydisperse: true},
			ParamDef{Name: "length", Value: 400, Min: 1, Max: 50000, Vary: true, Description: "Cylinder length (Å)", Polydisperse: true},
			ParamDef{Name: "sld", Value: 4, Min: -10, Max: 15, Description: "Particle scattering length density (1e-6 Å^-2)"},
			ParamDef{Name: "sld_solvent", Value: 1, Min: -10, Max: 15, Description: "Solvent scattering length density (1e-6 Å^-2)"},
		),
		FormFactor: func(q float64, p map[string]float64) float64 {
			r, l := p["radius"], p["length"]
			contrast := (p["sld"] - p["sld_solvent"]) * sldScale
			vol := math.Pi * r * r * l
			avg := orientAverage(func(u float64) float64 {
				s := math.Sqrt(1 - u*u)
				a := q * r * s
				var radial float64
				if a < 1e-6 {
					radial = 1
				} else {
					radial = 2 * math.J1(a) / a
				}
				axial := sinc(q * l * u / 2)
				f := radial * axial
				return f * f
			})
			return intenNorm * contrast * contrast * vol * avg * 1e8
		},
	})

	register(&ModelDef{
		Name:        "ellipsoid",
		Description: "Ellipsoid of revolution, orientation averaged",
		Params: append(commonParams(),
			ParamDef{Name: "radius_polar", Value: 20, Min: 1, Max: 5000, Vary: true, Description: "Polar radius (Å)", Polydisperse: true},
			ParamDef{Name: "radius_equatorial", Value: 400, Min: 1, Max: 5000, Vary: true, Description: "Equatorial radius (Å)", Polydisperse: true},
			ParamDef{Name: "sld", Value: 4, Min: -10, Max: 15, Description: "Particle scattering length density (1e-6 Å^-2)"},
			ParamDef{Name: "sld_solvent", Value: 1, Min: -10, Max: 15, Description: "Solvent scattering length density (1e-6 Å^-2)"},
		),
		FormFactor: func(q float64, p map[string]float64) float64 {
			rp, re := p["radius_polar"], p["radius_equatorial"]
			contrast := (p["sld"] - p["sld_solvent"]) * sldScale
			vol := 4.0 / 3.0 * math.Pi * re * re * rp
			avg := orientAverage(func(u float64) float64 {
				reff := math.Sqrt(re*re*(1-u*u) + rp*rp*u*u)
				f := sphereAmp(q * reff)
				return f * f
			})
			return intenNorm * contrast * contrast * vol * avg * 1e8
		},
	})

	register(&ModelDef{
		Name:        "core_shell_sphere",
		Description: "Spherical core with a concentric shell",
		Params: append(commonParams(),
			ParamDef{Name: "radius", Value: 60, Min: 1, Max: 5000, Vary: true, Description: "Core radius (Å)", Polydisperse: true},
			ParamDef{Name: "thickness", Value: 10, Min: 0, Max: 1000, Vary: true, Description: "Shell thickness (Å)", Polydisperse: true},
			ParamDef{Name: "sld_core", Value: 1, Min: -10, Max: 15, Description: "Core scattering length density (1e-6 Å^-2)"},
			ParamDef{Name: "sld_shell", Value: 2, Min: -10, Max: 15, Description: "Shell scattering length density (1e-6 Å^-2)"},
			ParamDef{Name: "sld_solvent", Value: 6.3, Min: -10, Max: 15, Description: "Solvent scattering length density (1e-6 Å^-2)"},
		),
		FormFactor: func(q float64, p map[string]float64) float64 {
			rc := p["radius"]
			rs := rc + p["thickness"]
			vc := 4.0 / 3.0 * math.Pi * rc * rc * rc
			vs := 4.0 / 3.0 * math.Pi * rs * rs * rs
			dCore := (p["sld_core"] - p["sld_shell"]) * sldScale
			dShell := (p["sld_shell"] - p["sld_solvent"]) * sldScale
			f := dCore*vc*sphereAmp(q*rc) + dShell*vs*sphereAmp(q*rs)
			if vs <= 0 {
				return 0
			}
			return intenNorm * f * f / vs * 1e8
		},
	})

	register(&ModelDef{
		Name:        "gaussian_peak",
		Description: "Gaussian-shaped correlation peak",
		Params: append(commonParams(),
			ParamDef{Name: "peak_pos", Value: 0.05, Min: 1e-4, Max: 1, Vary: true, Description: "Peak position (Å^-1)"},
			ParamDef{Name: "sigma", Value: 0.005, Min: 1e-5, Max: 1, Vary: true, Description: "Peak width (Å^-1)"},
		),
		FormFactor: func(q float64, p map[string]float64) float64 {
			d := (q - p["peak_pos"]) / p["sigma"]
			return math.Exp(-d * d / 2)
		},
	})

	register(&ModelDef{
		Name:        "power_law",
		Description: "Simple power-law decay",
		Params: append(commonParams(),
			ParamDef{Name: "power", Value: 4, Min: 0, Max: 8, Vary: true, Description: "Power-law exponent"},
		),
		FormFactor: func(q float64, p map[string]float64) float64 {
			if q <= 0 {
				return 0
			}
			return math.Pow(q, -p["power"])
		},
	})

	register(&ModelDef{
		Name:        "fractal",
		Description: "Mass fractal aggregate of spherical blocks (Teixeira)",
		Params: append(commonParams(),
			ParamDef{Name: "radius", Value: 5, Min: 0.1, Max: 1000, Vary: true, Description: "Building block radius (Å)", Polydisperse: true},
			ParamDef{Name: "fractal_dim", Value: 2, Min: 1, Max: 3, Vary: true, Description: "Mass fractal dimension"},
			ParamDef{Name: "cor_length", Value: 100, Min: 1, Max: 100000, Vary: true, Description: "Correlation length (Å)"},
			ParamDef{Name: "sld_block", Value: 2, Min: -10, Max: 15, Description: "Block scattering length density (1e-6 Å^-2)"},
			ParamDef{Name: "sld_solvent", Value: 6.3, Min: -10, Max: 15, Description: "Solvent scattering length density (1e-6 Å^-2)"},
		),
		FormFactor: func(q float64, p map[string]float64) float64 {
			r := p["radius"]
			d := p["fractal_dim"]
			xi := p["cor_length"]
			contrast := (p["sld_block"] - p["sld_solvent"]) * sldScale
			vol := 4.0 / 3.0 * math.Pi * r * r * r
			f := sphereAmp(q * r)
			pq := intenNorm * contrast * contrast * vol * f * f * 1e8

			// Teixeira fractal structure factor.
			sq := 1.0
			qr := q * r
			if qr > 1e-8 && d > 1 {
				t := d * math.Gamma(d-1) * math.Sin((d-1)*math.Atan(q*xi))
				denom := math.Pow(qr, d) * math.Pow(1+1/(q*q*xi*xi), (d-1)/2) * (d - 1)
				if denom != 0 {
					sq = 1 + t/denom
				}
			}
			return pq * sq
		},
	})
}
