package fitter

import "math"

// StructureDef describes a multiplicative structure factor S(q) modeling
// interparticle interference. Its parameters are merged into the fitter's
// parameter set while active and removed when the factor is removed.
type StructureDef struct {
	Name        string
	Description string
	Params      []ParamDef
	Factor      func(q float64, p map[string]float64) float64
}

var structureRegistry = map[string]*StructureDef{}

func registerStructure(s *StructureDef) { structureRegistry[s.Name] = s }

// AllStructureFactors returns the names of supported structure factors.
func AllStructureFactors() []string {
	names := make([]string, 0, len(structureRegistry))
	for name := range structureRegistry {
		names = append(names, name)
	}
	return names
}

// LookupStructureFactor returns the structure factor definition, or nil.
func LookupStructureFactor(name string) *StructureDef { return structureRegistry[name] }

// hardSphereS is the Percus-Yevick hard sphere structure factor.
func hardSphereS(q, radius, volfraction float64) float64 {
	eta := volfraction
	if eta <= 0 || eta >= 0.64 || radius <= 0 {
		return 1
	}
	a := 2 * q * radius
	if a < 1e-6 {
		// q -> 0 compressibility limit
		return math.Pow(1-eta, 4) / ((1 + 2*eta) * (1 + 2*eta))
	}
	d := 1 - eta
	alpha := (1 + 2*eta) * (1 + 2*eta) / (d * d * d * d)
	beta := -6 * eta * (1 + eta/2) * (1 + eta/2) / (d * d * d * d)
	gamma := eta * alpha / 2

	sinA, cosA := math.Sin(a), math.Cos(a)
	a2 := a * a
	g := alpha*(sinA-a*cosA)/a2 +
		beta*(2*a*sinA+(2-a2)*cosA-2)/(a2*a) +
		gamma*(-a2*a2*cosA+4*((3*a2-6)*cosA+(a2*a-6*a)*sinA+6))/(a2*a2*a)
	return 1 / (1 + 24*eta*g/a)
}

func init() {
	registerStructure(&StructureDef{
		Name:        "hardsphere",
		Description: "Percus-Yevick hard sphere interference",
		Params: []ParamDef{
			{Name: "radius_effective", Value: 50, Min: 1, Max: 5000, Description: "Effective interaction radius (Å)"},
			{Name: "volfraction", Value: 0.2, Min: 0, Max: 0.6, Description: "Hard sphere volume fraction"},
		},
		Factor: func(q float64, p map[string]float64) float64 {
			return hardSphereS(q, p["radius_effective"], p["volfraction"])
		},
	})

	registerStructure(&StructureDef{
		Name:        "stickyhardsphere",
		Description: "Baxter adhesive hard sphere (one-parameter stickiness)",
		Params: []ParamDef{
			{Name: "radius_effective", Value: 50, Min: 1, Max: 5000, Description: "Effective interaction radius (Å)"},
			{Name: "volfraction", Value: 0.2, Min: 0, Max: 0.6, Description: "Hard sphere volume fraction"},
			{Name: "stickiness", Value: 0.2, Min: 0.01, Max: 10, Description: "Baxter stickiness parameter tau"},
		},
		Factor: func(q float64, p map[string]float64) float64 {
			eta := p["volfraction"]
			tau := p["stickiness"]
			r := p["radius_effective"]
			if eta <= 0 || eta >= 0.64 || r <= 0 {
				return 1
			}
			k := 2 * q * r
			if k < 1e-6 {
				k = 1e-6
			}
			// Smaller root of the Baxter quadratic for lambda.
			d := 1 - eta
			eps := tau + eta/d
			disc := eps*eps - eta/6*(1+eta/2)/(d*d)*2
			if disc < 0 {
				return hardSphereS(q, r, eta)
			}
			lam := (eps - math.Sqrt(disc)) / (eta / 6)
			mu := lam * eta * d
			alpha := (1 + 2*eta - mu) / (d * d)
			beta := (mu - 3*eta) / (2 * d * d)

			sinK, cosK := math.Sin(k), math.Cos(k)
			k2 := k * k
			aTerm := 1 + 12*eta*(alpha*(sinK-k*cosK)/(k2*k)+beta*(1-cosK)/k2-lam/12*sinK/k)
			bTerm := 12 * eta * (alpha*(0.5/k-sinK/k2+(1-cosK)/(k2*k)) + beta*(1/k-sinK/k2) - lam/12*(1-cosK)/k)
			s := 1 / (aTerm*aTerm + bTerm*bTerm)
			if math.IsNaN(s) || math.IsInf(s, 0) || s <= 0 {
				return 1
			}
			return s
		},
	})

	registerStructure(&StructureDef{
		Name:        "squarewell",
		Description: "Square well potential, first-order perturbation",
		Params: []ParamDef{
			{Name: "radius_effective", Value: 50, Min: 1, Max: 5000, Description: "Effective interaction radius (Å)"},
			{Name: "volfraction", Value: 0.2, Min: 0, Max: 0.6, Description: "Hard sphere volume fraction"},
			{Name: "welldepth", Value: 1.5, Min: 0, Max: 10, Description: "Well depth (units of kT)"},
			{Name: "wellwidth", Value: 1.2, Min: 1, Max: 2, Description: "Well width (units of diameter)"},
		},
		Factor: func(q float64, p map[string]float64) float64 {
			r := p["radius_effective"]
			eta := p["volfraction"]
			depth := p["welldepth"]
			lam := p["wellwidth"]
			s := hardSphereS(q, r, eta)
			x := 2 * q * r
			if x < 1e-6 {
				return s
			}
			shell := func(y float64) float64 { return math.Sin(y) - y*math.Cos(y) }
			ds := -24 * eta * depth * (lam*lam*lam*shell(lam*x)/math.Pow(lam*x, 3) - shell(x)/(x*x*x))
			out := s + ds
			if out <= 0 {
				return s
			}
			return out
		},
	})
}
