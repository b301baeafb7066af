package tools

import (
	"fmt"
	"sort"
	"strings"

	"sansfit/adapters/fitter"
)

func (r *Registry) listModels() string {
	models := fitter.AllModels()
	var b strings.Builder
	fmt.Fprintf(&b, "Available SANS models (%d):", len(models))
	for _, m := range models {
		fmt.Fprintf(&b, "\n  - %s", m)
	}
	return b.String()
}

// getModelParameters inspects a model without disturbing the session's
// fitter, using a throwaway instance.
func (r *Registry) getModelParameters(input map[string]any) string {
	modelName, _ := stringArg(input, "model_name")
	probe := fitter.New()
	if err := probe.SetModel(modelName); err != nil {
		return fmt.Sprintf("Error getting parameters for '%s': %v", modelName, err)
	}

	lines := []string{fmt.Sprintf("Parameters for '%s':", modelName)}
	for _, name := range probe.ParamNames() {
		p, _ := probe.Param(name)
		lines = append(lines, fmt.Sprintf("  - %s: %v (bounds: (%v, %v), vary: %v)",
			name, p.Value, p.Min, p.Max, p.Vary))
	}
	return strings.Join(lines, "\n")
}

func (r *Registry) getCurrentState() string {
	f, err := r.store.Fitter()
	if err != nil {
		return fmt.Sprintf("Error getting state: %v", err)
	}

	lines := []string{"Current SANS Fitter State:"}
	if f.HasData() {
		ds := f.Data()
		lo, hi := ds.QRange()
		lines = append(lines, fmt.Sprintf("  Data: %d points, Q range [%.4f, %.4f]", ds.Len(), lo, hi))
	} else {
		lines = append(lines, "  Data: Not loaded")
	}

	if f.HasModel() {
		lines = append(lines, fmt.Sprintf("  Model: %s", f.ModelName()))
		if sf := f.StructureFactorName(); sf != "" {
			lines = append(lines, fmt.Sprintf("  Structure factor: %s", sf))
		}
		lines = append(lines, "  Parameters:")
		for _, name := range f.ParamNames() {
			p, _ := f.Param(name)
			lines = append(lines, fmt.Sprintf("    - %s: %v (vary: %v)", name, p.Value, p.Vary))
		}
	} else {
		lines = append(lines, "  Model: Not selected")
	}
	return strings.Join(lines, "\n")
}

func (r *Registry) getFitResults() string {
	f, err := r.store.Fitter()
	if err != nil {
		return fmt.Sprintf("Error getting fit results: %v", err)
	}
	result := f.Result()
	if result == nil {
		return "No fit results available. Run a fit first."
	}

	lines := []string{
		"Fit Results:",
		fmt.Sprintf("  Reduced chi-square: %.4f", result.ChiSquare),
		"  Optimized parameters:",
	}
	names := make([]string, 0, len(result.Parameters))
	for name := range result.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := result.Parameters[name]
		lines = append(lines, fmt.Sprintf("    - %s: %.4g ± %s", name, p.Value, p.StderrText()))
	}
	return strings.Join(lines, "\n")
}
