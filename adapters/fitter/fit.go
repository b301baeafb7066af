package fitter

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/optimize"

	"sansfit/domain/sans"
	"sansfit/internal/errors"
)

// Fit engine names. Two independent nonlinear optimizers are exposed:
// a Nelder-Mead simplex ("amoeba") and a quasi-Newton BFGS with numerical
// gradients ("gradient", also answering to the historical "leastsq").
const (
	EngineAmoeba   = "amoeba"
	EngineGradient = "gradient"
)

// Engines lists the supported fit engine names.
func Engines() []string { return []string{EngineAmoeba, EngineGradient} }

func methodFor(engine string) (optimize.Method, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineAmoeba, "neldermead", "bumps":
		return &optimize.NelderMead{}, nil
	case EngineGradient, "bfgs", "leastsq", "lmfit":
		return &optimize.BFGS{}, nil
	default:
		return nil, errors.InvalidInput("unknown fit engine " + engine + ": use amoeba or gradient")
	}
}

// Fit runs the nonlinear optimization over every parameter with Vary set,
// minimizing chi-square against the loaded data. On success the fitter's
// parameter values are updated in place and the result stored.
func (f *Fitter) Fit(engine string) (*sans.FitResult, error) {
	if f.data == nil {
		return nil, errors.NotInitialized("data")
	}
	if f.model == nil {
		return nil, errors.NotInitialized("model")
	}

	method, err := methodFor(engine)
	if err != nil {
		return nil, err
	}

	var varied []string
	for _, name := range f.paramOrder {
		if f.params[name].Vary {
			varied = append(varied, name)
		}
	}

	// Polydispersity widths marked vary join the fit as extra dimensions,
	// reported as "<name>_pd".
	var pdVaried []string
	if f.pdEnabled {
		for _, name := range f.paramOrder {
			if cfg, ok := f.pd[name]; ok && cfg.Vary && cfg.Width > 0 {
				pdVaried = append(pdVaried, name)
			}
		}
	}
	if len(varied)+len(pdVaried) == 0 {
		return nil, errors.ValidationError("no parameters set to vary")
	}

	initialWidths := make([]float64, len(pdVaried))
	for i, name := range pdVaried {
		initialWidths[i] = f.pd[name].Width
	}

	x0 := make([]float64, len(varied)+len(pdVaried))
	for i, name := range varied {
		x0[i] = f.params[name].Value
	}
	for i, name := range pdVaried {
		x0[len(varied)+i] = f.pd[name].Width
	}

	vals := f.paramValues()
	objective := func(x []float64) float64 {
		penalty := 0.0
		for i, name := range varied {
			v := x[i]
			info := f.params[name]
			if v < info.Min {
				penalty += (info.Min - v) * (info.Min - v) * 1e6
				v = info.Min
			} else if v > info.Max {
				penalty += (v - info.Max) * (v - info.Max) * 1e6
				v = info.Max
			}
			vals[name] = v
		}
		for i, name := range pdVaried {
			v := x[len(varied)+i]
			if v < 0 {
				penalty += v * v * 1e6
				v = 0
			} else if v > 1 {
				penalty += (v - 1) * (v - 1) * 1e6
				v = 1
			}
			f.pd[name].Width = v
		}
		return f.chiSquare(vals) + penalty
	}

	problem := optimize.Problem{Func: objective}
	settings := &optimize.Settings{
		MajorIterations: 4000,
		FuncEvaluations: 40000,
	}
	res, err := optimize.Minimize(problem, x0, settings, method)
	if err != nil && res == nil {
		for i, name := range pdVaried {
			f.pd[name].Width = initialWidths[i]
		}
		return nil, errors.FitError("optimization failed", err)
	}

	// The stderr probes evaluate the objective at perturbed points, which
	// writes perturbed widths into f.pd. Take them all before the final
	// write-through so the stored state is the clamped optimum, not the
	// last probe point.
	stderrs := make([]float64, len(res.X))
	for i := range res.X {
		stderrs[i] = f.stderrFor(objective, res.X, i)
	}

	// Clamp the optimum back into bounds and write it through. The result
	// reports the same clamped values the fitter now holds.
	clamped := make([]float64, len(res.X))
	for i, name := range varied {
		info := f.params[name]
		v := res.X[i]
		if v < info.Min {
			v = info.Min
		}
		if v > info.Max {
			v = info.Max
		}
		info.Value = v
		clamped[i] = v
	}
	for i, name := range pdVaried {
		v := res.X[len(varied)+i]
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		f.pd[name].Width = v
		clamped[len(varied)+i] = v
	}

	dof := f.data.Len() - len(res.X)
	if dof < 1 {
		dof = 1
	}
	final := f.paramValues()
	chisq := f.chiSquare(final) / float64(dof)

	result := &sans.FitResult{
		ChiSquare:  chisq,
		Parameters: make(map[string]sans.FitParam, len(res.X)),
	}
	for i, name := range varied {
		result.Parameters[name] = sans.FitParam{Value: clamped[i], Stderr: stderrs[i]}
	}
	for i, name := range pdVaried {
		result.Parameters[name+"_pd"] = sans.FitParam{
			Value:  clamped[len(varied)+i],
			Stderr: stderrs[len(varied)+i],
		}
	}

	f.result = result
	return result, nil
}

// ApplyFitResults copies the stored fit result's values back into the
// parameter set, including "<name>_pd" entries into the matching
// polydispersity widths. The parameter table mirror stays authoritative
// between submits, so callers re-mirror after applying.
func (f *Fitter) ApplyFitResults() error {
	if f.result == nil {
		return errors.NotInitialized("fit result")
	}
	for name, fp := range f.result.Parameters {
		if info, ok := f.params[name]; ok {
			info.Value = fp.Value
			continue
		}
		base, isPD := strings.CutSuffix(name, "_pd")
		if !isPD {
			continue
		}
		if cfg, ok := f.pd[base]; ok {
			cfg.Width = fp.Value
		}
	}
	return nil
}

// chiSquare is the weighted sum of squared residuals against the data.
func (f *Fitter) chiSquare(vals map[string]float64) float64 {
	sum := 0.0
	for i, q := range f.data.Q {
		di := f.data.DI[i]
		if di <= 0 {
			di = 1e-10
		}
		r := (f.data.I[i] - f.intensityWith(q, vals)) / di
		sum += r * r
	}
	return sum
}

// stderrFor estimates one parameter's uncertainty from the curvature of the
// objective about the optimum. A flat or negative curvature yields NaN,
// rendered as "N/A" downstream.
func (f *Fitter) stderrFor(objective func([]float64) float64, x []float64, i int) float64 {
	h := math.Abs(x[i]) * 1e-4
	if h < 1e-9 {
		h = 1e-9
	}
	probe := make([]float64, len(x))
	copy(probe, x)

	f0 := objective(probe)
	probe[i] = x[i] + h
	fp := objective(probe)
	probe[i] = x[i] - h
	fm := objective(probe)

	curv := (fp - 2*f0 + fm) / (h * h)
	if curv <= 0 || math.IsNaN(curv) || math.IsInf(curv, 0) {
		return math.NaN()
	}
	return math.Sqrt(2 / curv)
}
