package tools

import (
	"fmt"
	"sort"
	"strings"

	"sansfit/adapters/fitter"
	"sansfit/domain/sans"
	"sansfit/internal/session"
)

// Gating messages, one per mutation family. Contract: a gated call
// performs zero mutations and the message always contains "disabled".
const (
	disabledModel     = "AI tools are disabled. Enable them in the sidebar to allow model changes."
	disabledParams    = "AI tools are disabled. Enable them in the sidebar to allow parameter changes."
	disabledPD        = "AI tools are disabled. Enable them in the sidebar to allow polydispersity changes."
	disabledStructure = "AI tools are disabled. Enable them in the sidebar to allow structure factor changes."
	disabledFit       = "AI tools are disabled. Enable them in the sidebar to run fits."
)

// mirrorParam writes one fitter parameter through to its widget entry so
// the next render shows the change without the user touching anything.
func (r *Registry) mirrorParam(f *fitter.Fitter, name string) {
	p, err := f.Param(name)
	if err != nil {
		return
	}
	r.store.SetParamWidget(name, session.ParamWidget{
		Value: p.Value,
		Min:   p.Min,
		Max:   p.Max,
		Vary:  p.Vary,
	})
}

func (r *Registry) mirrorAllParams(f *fitter.Fitter) {
	r.store.ClearParameterWidgets()
	for _, name := range f.ParamNames() {
		r.mirrorParam(f, name)
	}
	for _, name := range f.PolydisperseParameters() {
		cfg, err := f.GetPDParam(name)
		if err != nil {
			continue
		}
		r.store.SetPDWidget(name, session.PDWidget{
			Width:        cfg.Width,
			N:            cfg.N,
			Distribution: cfg.Distribution,
			Vary:         cfg.Vary,
		})
	}
}

// SyncWidgets re-mirrors every fitter parameter and polydispersity
// config into the session's widget entries. The UI calls this after
// direct fitter mutations so widgets and fitter never drift apart.
func (r *Registry) SyncWidgets() {
	if f, err := r.store.Fitter(); err == nil {
		r.mirrorAllParams(f)
	}
}

func (r *Registry) setModel(input map[string]any) string {
	if !r.store.ToolsEnabled() {
		return disabledModel
	}
	modelName, _ := stringArg(input, "model_name")

	f, err := r.store.Fitter()
	if err != nil {
		return fmt.Sprintf("Error setting model '%s': %v", modelName, err)
	}
	if err := f.SetModel(modelName); err != nil {
		return fmt.Sprintf("Error setting model '%s': %v", modelName, err)
	}

	// Old widget entries go first so no parameter name from the previous
	// model can collide with the new one.
	r.mirrorAllParams(f)
	r.store.SetCurrentModelName(modelName)
	r.store.SetModelSelected(true)
	r.store.SetFitCompleted(false)
	r.store.SetFitResult(nil)
	r.store.SetNeedsRerun(true)

	return fmt.Sprintf("Model '%s' loaded successfully.\nParameters: %s",
		modelName, strings.Join(f.ParamNames(), ", "))
}

func patchFromSettings(settings map[string]any, valueKey, minKey, maxKey string) (fitter.ParamPatch, []string) {
	var patch fitter.ParamPatch
	var changes []string
	if v, ok := floatArg(settings, valueKey); ok {
		patch.Value = &v
		changes = append(changes, fmt.Sprintf("value=%v", v))
	}
	lo, hasLo := floatArg(settings, minKey)
	hi, hasHi := floatArg(settings, maxKey)
	if hasLo {
		patch.Min = &lo
	}
	if hasHi {
		patch.Max = &hi
	}
	if hasLo || hasHi {
		changes = append(changes, fmt.Sprintf("bounds=(%v, %v)", orUnchanged(patch.Min), orUnchanged(patch.Max)))
	}
	if v, ok := boolArg(settings, "vary"); ok {
		patch.Vary = &v
		changes = append(changes, fmt.Sprintf("vary=%v", v))
	}
	return patch, changes
}

func orUnchanged(v *float64) any {
	if v == nil {
		return "unchanged"
	}
	return *v
}

func (r *Registry) setParameter(input map[string]any) string {
	if !r.store.ToolsEnabled() {
		return disabledParams
	}
	name, _ := stringArg(input, "name")

	f, err := r.store.Fitter()
	if err != nil {
		return fmt.Sprintf("Error setting parameter '%s': %v", name, err)
	}
	if !f.HasParam(name) {
		return fmt.Sprintf("Parameter '%s' not found. Available: %s",
			name, strings.Join(f.ParamNames(), ", "))
	}

	patch, changes := patchFromSettings(input, "value", "min_bound", "max_bound")
	if err := f.SetParam(name, patch); err != nil {
		return fmt.Sprintf("Error setting parameter '%s': %v", name, err)
	}

	r.mirrorParam(f, name)
	r.store.SetNeedsRerun(true)
	return fmt.Sprintf("Parameter '%s' updated: %s", name, strings.Join(changes, ", "))
}

// setMultipleParameters applies each requested parameter independently:
// an unknown name becomes a NOT FOUND line instead of aborting the
// batch, and needs_rerun is set once at the end, not per item.
func (r *Registry) setMultipleParameters(input map[string]any) string {
	if !r.store.ToolsEnabled() {
		return disabledParams
	}

	params, ok := mapArg(input, "parameters")
	if !ok || len(params) == 0 {
		return "Error setting parameters: no parameters given"
	}
	f, err := r.store.Fitter()
	if err != nil {
		return fmt.Sprintf("Error setting parameters: %v", err)
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var results []string
	for _, name := range names {
		if !f.HasParam(name) {
			results = append(results, fmt.Sprintf("  - %s: NOT FOUND", name))
			continue
		}
		settings, ok := params[name].(map[string]any)
		if !ok {
			results = append(results, fmt.Sprintf("  - %s: invalid settings", name))
			continue
		}
		patch, changes := patchFromSettings(settings, "value", "min", "max")
		if err := f.SetParam(name, patch); err != nil {
			results = append(results, fmt.Sprintf("  - %s: %v", name, err))
			continue
		}
		r.mirrorParam(f, name)
		results = append(results, fmt.Sprintf("  - %s: %s", name, strings.Join(changes, ", ")))
	}

	r.store.SetNeedsRerun(true)
	return "Parameters updated:\n" + strings.Join(results, "\n")
}

func (r *Registry) enablePolydispersity(input map[string]any) string {
	if !r.store.ToolsEnabled() {
		return disabledPD
	}
	paramName, _ := stringArg(input, "parameter_name")
	pdType, ok := stringArg(input, "pd_type")
	if !ok {
		pdType = "gaussian"
	}
	pdValue, ok := floatArg(input, "pd_value")
	if !ok {
		pdValue = 0.1
	}

	f, err := r.store.Fitter()
	if err != nil {
		return fmt.Sprintf("Error enabling polydispersity: %v", err)
	}
	dist, err := sans.ParseDistribution(pdType)
	if err != nil {
		return fmt.Sprintf("Error enabling polydispersity: %v", err)
	}
	vary := true
	if err := f.SetPDParam(paramName, fitter.PDPatch{
		Width:        &pdValue,
		Distribution: &dist,
		Vary:         &vary,
	}); err != nil {
		return fmt.Sprintf("Polydispersity is not available for '%s'. This model may not support PD for that parameter. (%v)",
			paramName, err)
	}
	f.EnablePolydispersity(true)
	r.store.SetPDEnabled(true)

	cfg, _ := f.GetPDParam(paramName)
	r.store.SetPDWidget(paramName, session.PDWidget{
		Width:        cfg.Width,
		N:            cfg.N,
		Distribution: cfg.Distribution,
		Vary:         cfg.Vary,
	})
	r.store.SetNeedsRerun(true)
	return fmt.Sprintf("Polydispersity enabled for '%s': %s distribution, width=%v",
		paramName, pdType, pdValue)
}

func (r *Registry) setStructureFactor(input map[string]any) string {
	if !r.store.ToolsEnabled() {
		return disabledStructure
	}
	sfName, _ := stringArg(input, "sf_name")

	f, err := r.store.Fitter()
	if err != nil {
		return fmt.Sprintf("Error setting structure factor: %v", err)
	}
	if err := f.SetStructureFactor(sfName); err != nil {
		return fmt.Sprintf("Error setting structure factor: %v", err)
	}

	r.mirrorAllParams(f)
	r.store.SetNeedsRerun(true)
	return fmt.Sprintf("Structure factor '%s' added. Additional parameters are now available for the interaction potential.", sfName)
}

func (r *Registry) removeStructureFactor() string {
	if !r.store.ToolsEnabled() {
		return disabledStructure
	}
	f, err := r.store.Fitter()
	if err != nil {
		return fmt.Sprintf("Error removing structure factor: %v", err)
	}
	f.RemoveStructureFactor()
	r.mirrorAllParams(f)
	r.store.SetNeedsRerun(true)
	return "Structure factor removed."
}

func (r *Registry) runFit(input map[string]any) string {
	if !r.store.ToolsEnabled() {
		return disabledFit
	}
	f, err := r.store.Fitter()
	if err != nil {
		return fmt.Sprintf("Fit failed: %v", err)
	}
	if !f.HasData() {
		return "No data loaded. Load data before running a fit."
	}
	if !f.HasModel() {
		return "No model selected. Set a model before running a fit."
	}

	engine, _ := stringArg(input, "engine")
	_ = r.store.SetFitStatus(string(sans.FitRunning))
	result, err := f.Fit(engine)
	if err != nil {
		_ = r.store.SetFitStatus(string(sans.FitFailed))
		r.store.SetFitError(err.Error())
		return fmt.Sprintf("Fit failed: %v", err)
	}

	_ = r.store.SetFitStatus(string(sans.FitCompleted))
	r.store.SetFitError("")
	r.store.SetFitCompleted(true)
	r.store.SetFitResult(result)
	// Fitted values land in both plain parameters and polydispersity
	// widths, so the full mirror is refreshed, not just the varied names.
	r.mirrorAllParams(f)
	r.store.SetNeedsRerun(true)

	lines := []string{
		"Fit completed!",
		fmt.Sprintf("Reduced chi-square: %.4f", result.ChiSquare),
		"Optimized parameters:",
	}
	names := make([]string, 0, len(result.Parameters))
	for name := range result.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := result.Parameters[name]
		lines = append(lines, fmt.Sprintf("  - %s: %.4g ± %s", name, p.Value, p.StderrText()))
	}
	return strings.Join(lines, "\n")
}
