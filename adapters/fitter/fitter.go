// Package fitter wraps the scattering model library and the gonum
// optimizers behind the adapter surface the rest of the application
// consumes: load data, select a model, configure parameters and
// polydispersity, attach a structure factor, run a fit.
package fitter

import (
	"fmt"
	"math"

	"sansfit/domain/sans"
	"sansfit/internal/errors"
)

// ParamPatch is a partial parameter update; nil fields are left unchanged.
type ParamPatch struct {
	Value *float64
	Min   *float64
	Max   *float64
	Vary  *bool
}

// PDPatch is a partial polydispersity update; nil fields are left unchanged.
type PDPatch struct {
	Width        *float64
	N            *int
	Distribution *sans.DistributionType
	Vary         *bool
}

// Fitter owns the current dataset, model, parameter set, and fit result.
// It is not safe for concurrent use; the session store serializes access.
type Fitter struct {
	data      *sans.Dataset
	model     *ModelDef
	structure *StructureDef

	params     map[string]*sans.ParamInfo
	paramOrder []string

	pd        map[string]*sans.PDConfig
	pdEnabled bool

	result *sans.FitResult
}

// New creates an empty fitter with no data or model loaded.
func New() *Fitter {
	return &Fitter{
		params: map[string]*sans.ParamInfo{},
		pd:     map[string]*sans.PDConfig{},
	}
}

// SetData installs an already-parsed dataset, replacing any previous one.
func (f *Fitter) SetData(ds *sans.Dataset) error {
	if ds == nil || ds.Len() == 0 {
		return errors.InvalidInput("dataset is empty")
	}
	if len(ds.I) != ds.Len() || len(ds.DI) != ds.Len() {
		return errors.InvalidInput("dataset columns have mismatched lengths")
	}
	f.data = ds
	return nil
}

// HasData reports whether a dataset is loaded.
func (f *Fitter) HasData() bool { return f.data != nil }

// Data returns the loaded dataset, or nil.
func (f *Fitter) Data() *sans.Dataset { return f.data }

// HasModel reports whether a model is selected.
func (f *Fitter) HasModel() bool { return f.model != nil }

// ModelName returns the selected model name, or "".
func (f *Fitter) ModelName() string {
	if f.model == nil {
		return ""
	}
	return f.model.Name
}

// SetModel selects a scattering model, rebuilding the parameter set from the
// model's declared defaults. Any previous parameters, polydispersity state,
// structure factor, and fit result are discarded wholesale.
func (f *Fitter) SetModel(name string) error {
	def := LookupModel(name)
	if def == nil {
		return errors.NotFound(fmt.Sprintf("model %q", name))
	}

	f.model = def
	f.structure = nil
	f.result = nil
	f.params = map[string]*sans.ParamInfo{}
	f.paramOrder = f.paramOrder[:0]
	f.pd = map[string]*sans.PDConfig{}
	f.pdEnabled = false

	for _, pd := range def.Params {
		info := &sans.ParamInfo{
			Value:       pd.Value,
			Min:         pd.Min,
			Max:         pd.Max,
			Vary:        pd.Vary,
			Description: pd.Description,
		}
		f.params[pd.Name] = info
		f.paramOrder = append(f.paramOrder, pd.Name)
		if pd.Polydisperse {
			f.pd[pd.Name] = &sans.PDConfig{
				Width:        0,
				N:            35,
				Distribution: sans.DistGaussian,
			}
		}
	}
	return nil
}

// ParamNames returns parameter names in declaration order.
func (f *Fitter) ParamNames() []string {
	out := make([]string, len(f.paramOrder))
	copy(out, f.paramOrder)
	return out
}

// Params returns a copy of the current parameter set.
func (f *Fitter) Params() map[string]sans.ParamInfo {
	out := make(map[string]sans.ParamInfo, len(f.params))
	for name, info := range f.params {
		out[name] = *info
	}
	return out
}

// Param returns one parameter by name.
func (f *Fitter) Param(name string) (sans.ParamInfo, error) {
	info, ok := f.params[name]
	if !ok {
		return sans.ParamInfo{}, errors.NotFound(fmt.Sprintf("parameter %q", name))
	}
	return *info, nil
}

// HasParam reports whether the current model declares the parameter.
func (f *Fitter) HasParam(name string) bool {
	_, ok := f.params[name]
	return ok
}

// SetParam applies a partial update to one parameter.
func (f *Fitter) SetParam(name string, patch ParamPatch) error {
	info, ok := f.params[name]
	if !ok {
		return errors.NotFound(fmt.Sprintf("parameter %q", name))
	}
	if patch.Value != nil {
		info.Value = *patch.Value
	}
	if patch.Min != nil {
		info.Min = *patch.Min
	}
	if patch.Max != nil {
		info.Max = *patch.Max
	}
	if patch.Vary != nil {
		info.Vary = *patch.Vary
	}
	if info.Vary && (math.IsInf(info.Min, 0) || math.IsInf(info.Max, 0)) {
		// Varying parameters need finite bounds for the optimizer; widen to
		// a large but finite box instead of rejecting.
		if math.IsInf(info.Min, -1) {
			info.Min = -1e12
		}
		if math.IsInf(info.Max, 1) {
			info.Max = 1e12
		}
	}
	return nil
}

// ApplyUpdate replaces the full row of one parameter.
func (f *Fitter) ApplyUpdate(name string, u sans.ParamUpdate) error {
	return f.SetParam(name, ParamPatch{Value: &u.Value, Min: &u.Min, Max: &u.Max, Vary: &u.Vary})
}

// SupportsPolydispersity reports whether the current model has any
// polydisperse-capable parameter.
func (f *Fitter) SupportsPolydispersity() bool { return len(f.pd) > 0 }

// PolydisperseParameters returns the names of polydisperse-capable
// parameters of the current model, in declaration order.
func (f *Fitter) PolydisperseParameters() []string {
	var out []string
	for _, name := range f.paramOrder {
		if _, ok := f.pd[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// EnablePolydispersity toggles polydispersity averaging on or off.
func (f *Fitter) EnablePolydispersity(on bool) { f.pdEnabled = on }

// IsPolydispersityEnabled reports the master toggle.
func (f *Fitter) IsPolydispersityEnabled() bool { return f.pdEnabled }

// GetPDParam returns the polydispersity configuration of one parameter.
func (f *Fitter) GetPDParam(name string) (sans.PDConfig, error) {
	cfg, ok := f.pd[name]
	if !ok {
		return sans.PDConfig{}, errors.NotFound(fmt.Sprintf("polydispersity for parameter %q", name))
	}
	return *cfg, nil
}

// SetPDParam applies a partial polydispersity update to one parameter.
func (f *Fitter) SetPDParam(name string, patch PDPatch) error {
	cfg, ok := f.pd[name]
	if !ok {
		return errors.NotFound(fmt.Sprintf("polydispersity for parameter %q", name))
	}
	next := *cfg
	if patch.Width != nil {
		next.Width = *patch.Width
	}
	if patch.N != nil {
		next.N = *patch.N
	}
	if patch.Distribution != nil {
		next.Distribution = *patch.Distribution
	}
	if patch.Vary != nil {
		next.Vary = *patch.Vary
	}
	if err := next.Validate(); err != nil {
		return errors.Wrap(err, fmt.Sprintf("invalid polydispersity for %q", name))
	}
	*cfg = next
	return nil
}

// SetStructureFactor attaches a structure factor, merging its parameters
// into the fitter's parameter set. Replaces any factor already attached.
func (f *Fitter) SetStructureFactor(name string) error {
	if f.model == nil {
		return errors.NotInitialized("model")
	}
	def := LookupStructureFactor(name)
	if def == nil {
		return errors.NotFound(fmt.Sprintf("structure factor %q", name))
	}
	f.RemoveStructureFactor()
	f.structure = def
	for _, pd := range def.Params {
		if _, exists := f.params[pd.Name]; exists {
			continue
		}
		f.params[pd.Name] = &sans.ParamInfo{
			Value:       pd.Value,
			Min:         pd.Min,
			Max:         pd.Max,
			Vary:        pd.Vary,
			Description: pd.Description,
		}
		f.paramOrder = append(f.paramOrder, pd.Name)
	}
	return nil
}

// StructureFactorName returns the attached structure factor name, or "".
func (f *Fitter) StructureFactorName() string {
	if f.structure == nil {
		return ""
	}
	return f.structure.Name
}

// RemoveStructureFactor detaches the structure factor and drops its
// parameters from the parameter set.
func (f *Fitter) RemoveStructureFactor() {
	if f.structure == nil {
		return
	}
	drop := map[string]bool{}
	for _, pd := range f.structure.Params {
		drop[pd.Name] = true
	}
	kept := f.paramOrder[:0]
	for _, name := range f.paramOrder {
		if drop[name] {
			delete(f.params, name)
			continue
		}
		kept = append(kept, name)
	}
	f.paramOrder = kept
	f.structure = nil
}

// Result returns the most recent fit result, or nil.
func (f *Fitter) Result() *sans.FitResult { return f.result }

// ClearResult drops the stored fit result.
func (f *Fitter) ClearResult() { f.result = nil }

// paramValues snapshots current parameter values into a plain map.
func (f *Fitter) paramValues() map[string]float64 {
	vals := make(map[string]float64, len(f.params))
	for name, info := range f.params {
		vals[name] = info.Value
	}
	return vals
}

// Intensity evaluates the composed model I(q) = scale*P(q)*S(q)+background
// at one scattering vector, including polydispersity averaging when enabled.
func (f *Fitter) Intensity(q float64) (float64, error) {
	if f.model == nil {
		return 0, errors.NotInitialized("model")
	}
	return f.intensityWith(q, f.paramValues()), nil
}

func (f *Fitter) intensityWith(q float64, vals map[string]float64) float64 {
	p := f.formFactor(q, vals)
	if f.structure != nil {
		p *= f.structure.Factor(q, vals)
	}
	return vals["scale"]*p + vals["background"]
}

// formFactor evaluates P(q), averaging over every active polydisperse
// parameter in turn.
func (f *Fitter) formFactor(q float64, vals map[string]float64) float64 {
	if !f.pdEnabled {
		return f.model.FormFactor(q, vals)
	}
	var active []string
	for _, name := range f.PolydisperseParameters() {
		if f.pd[name].Width > 0 {
			active = append(active, name)
		}
	}
	return f.pdAverage(q, vals, active)
}

func (f *Fitter) pdAverage(q float64, vals map[string]float64, remaining []string) float64 {
	if len(remaining) == 0 {
		return f.model.FormFactor(q, vals)
	}
	name := remaining[0]
	cfg := f.pd[name]
	points, weights := quadrature(vals[name], cfg)
	if len(points) == 0 {
		return f.pdAverage(q, vals, remaining[1:])
	}
	nominal := vals[name]
	sum := 0.0
	for i, x := range points {
		vals[name] = x
		sum += weights[i] * f.pdAverage(q, vals, remaining[1:])
	}
	vals[name] = nominal
	return sum
}
