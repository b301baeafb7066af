package ui

import (
	"fmt"
	"net/http"

	"sansfit/adapters/fitter"
	"sansfit/domain/sans"
	"sansfit/internal/errors"
	"sansfit/internal/session"
)

func (a *App) handleModelsList(w http.ResponseWriter, r *http.Request) {
	type modelInfo struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	var models []modelInfo
	for _, name := range fitter.AllModels() {
		models = append(models, modelInfo{Name: name, Description: fitter.LookupModel(name).Description})
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"models":            models,
		"structure_factors": fitter.AllStructureFactors(),
		"engines":           fitter.Engines(),
	})
}

// handleModelSelect performs the full model-change transition: load the
// model, drop stale widget entries, refresh the lifecycle flags, and
// discard any previous fit result.
func (a *App) handleModelSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model string `json:"model"`
	}
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, err)
		return
	}

	store := a.store(r)
	f, err := store.Fitter()
	if err != nil {
		a.writeError(w, err)
		return
	}
	if err := f.SetModel(req.Model); err != nil {
		a.writeError(w, err)
		return
	}

	a.c.RegistryFor(store).SyncWidgets()
	store.SetCurrentModelName(req.Model)
	store.SetModelSelected(true)
	store.SetFitCompleted(false)
	store.SetFitResult(nil)
	_ = store.SetFitStatus(string(sans.FitIdle))

	a.writeJSON(w, http.StatusOK, map[string]any{
		"model":      req.Model,
		"parameters": f.ParamNames(),
	})
}

type paramRow struct {
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Vary        bool    `json:"vary"`
	Description string  `json:"description,omitempty"`
}

type pdRow struct {
	Name         string  `json:"name"`
	Width        float64 `json:"width"`
	N            int     `json:"n"`
	Distribution string  `json:"distribution"`
	Vary         bool    `json:"vary"`
}

func (a *App) handleParametersGet(w http.ResponseWriter, r *http.Request) {
	store := a.store(r)
	f, err := store.Fitter()
	if err != nil {
		a.writeError(w, err)
		return
	}
	if !f.HasModel() {
		a.writeError(w, errors.NotInitialized("model"))
		return
	}

	var params []paramRow
	for _, name := range f.ParamNames() {
		p, _ := f.Param(name)
		params = append(params, paramRow{
			Name:        name,
			Value:       p.Value,
			Min:         p.Min,
			Max:         p.Max,
			Vary:        p.Vary,
			Description: p.Description,
		})
	}

	var pd []pdRow
	for _, name := range f.PolydisperseParameters() {
		cfg, _ := f.GetPDParam(name)
		pd = append(pd, pdRow{
			Name:         name,
			Width:        cfg.Width,
			N:            cfg.N,
			Distribution: string(cfg.Distribution),
			Vary:         cfg.Vary,
		})
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"model":            f.ModelName(),
		"structure_factor": f.StructureFactorName(),
		"parameters":       params,
		"polydispersity": map[string]any{
			"enabled":    f.IsPolydispersityEnabled(),
			"parameters": pd,
		},
	})
}

// handleParametersSubmit applies an explicit table submit: every row the
// user edited, in one batch.
func (a *App) handleParametersSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Parameters map[string]struct {
			Value *float64 `json:"value"`
			Min   *float64 `json:"min"`
			Max   *float64 `json:"max"`
			Vary  *bool    `json:"vary"`
		} `json:"parameters"`
	}
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, err)
		return
	}

	store := a.store(r)
	f, err := store.Fitter()
	if err != nil {
		a.writeError(w, err)
		return
	}

	updated := make([]string, 0, len(req.Parameters))
	for name, patch := range req.Parameters {
		if err := f.SetParam(name, fitter.ParamPatch{
			Value: patch.Value,
			Min:   patch.Min,
			Max:   patch.Max,
			Vary:  patch.Vary,
		}); err != nil {
			a.writeError(w, err)
			return
		}
		updated = append(updated, name)
	}

	a.c.RegistryFor(store).SyncWidgets()
	a.writeJSON(w, http.StatusOK, map[string]any{"updated": updated})
}

// handleParametersPreset applies one of the vary presets: fit only
// scale and background, fit everything, or fix everything.
func (a *App) handleParametersPreset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Preset string `json:"preset"`
	}
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, err)
		return
	}

	store := a.store(r)
	f, err := store.Fitter()
	if err != nil {
		a.writeError(w, err)
		return
	}

	for _, name := range f.ParamNames() {
		var vary bool
		switch req.Preset {
		case "scale_background":
			vary = name == "scale" || name == "background"
		case "fit_all":
			vary = true
		case "fix_all":
			vary = false
		default:
			a.writeError(w, errors.InvalidInput("unknown preset "+req.Preset+": use scale_background, fit_all, or fix_all"))
			return
		}
		v := vary
		if err := f.SetParam(name, fitter.ParamPatch{Vary: &v}); err != nil {
			a.writeError(w, err)
			return
		}
	}

	a.c.RegistryFor(store).SyncWidgets()
	a.writeJSON(w, http.StatusOK, map[string]any{"preset": req.Preset})
}

// handlePolydispersity submits the PD table: per-parameter width, point
// count, distribution, and vary, plus the global enable toggle. Widths
// above 0.5 go through but come back with a warning.
func (a *App) handlePolydispersity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled    bool `json:"enabled"`
		Parameters map[string]struct {
			Width        *float64 `json:"width"`
			N            *int     `json:"n"`
			Distribution *string  `json:"distribution"`
			Vary         *bool    `json:"vary"`
		} `json:"parameters"`
	}
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, err)
		return
	}

	store := a.store(r)
	f, err := store.Fitter()
	if err != nil {
		a.writeError(w, err)
		return
	}

	var warnings []string
	for name, patch := range req.Parameters {
		p := fitter.PDPatch{Width: patch.Width, N: patch.N, Vary: patch.Vary}
		if patch.Distribution != nil {
			dist, err := sans.ParseDistribution(*patch.Distribution)
			if err != nil {
				a.writeError(w, errors.InvalidInput(err.Error()))
				return
			}
			p.Distribution = &dist
		}
		if err := f.SetPDParam(name, p); err != nil {
			a.writeError(w, err)
			return
		}
		if patch.Width != nil && *patch.Width > 0.5 {
			warnings = append(warnings, fmt.Sprintf(
				"PD width for %s is %.2f. Values > 0.5 may cause numerical instability.", name, *patch.Width))
		}
	}
	f.EnablePolydispersity(req.Enabled)
	store.SetPDEnabled(req.Enabled)

	a.c.RegistryFor(store).SyncWidgets()
	a.writeJSON(w, http.StatusOK, map[string]any{
		"enabled":  req.Enabled,
		"warnings": warnings,
	})
}

func (a *App) handleStructureFactorSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, err)
		return
	}

	store := a.store(r)
	f, err := store.Fitter()
	if err != nil {
		a.writeError(w, err)
		return
	}
	if err := f.SetStructureFactor(req.Name); err != nil {
		a.writeError(w, err)
		return
	}

	a.c.RegistryFor(store).SyncWidgets()
	a.writeJSON(w, http.StatusOK, map[string]any{
		"structure_factor": req.Name,
		"parameters":       f.ParamNames(),
	})
}

func (a *App) handleStructureFactorRemove(w http.ResponseWriter, r *http.Request) {
	store := a.store(r)
	f, err := store.Fitter()
	if err != nil {
		a.writeError(w, err)
		return
	}
	f.RemoveStructureFactor()

	a.c.RegistryFor(store).SyncWidgets()
	a.writeJSON(w, http.StatusOK, map[string]any{
		"structure_factor": "",
		"parameters":       f.ParamNames(),
	})
}

// widgetSnapshot is used by handleState to expose the mirror maps.
func widgetSnapshot(store *session.Store) map[string]any {
	return map[string]any{
		"parameters":     store.ParamWidgets(),
		"polydispersity": store.PDWidgets(),
	}
}
