package ui

import (
	"net/http"

	"sansfit/adapters/dataio"
	"sansfit/adapters/export"
	"sansfit/domain/sans"
	"sansfit/internal/analysis"
	"sansfit/internal/errors"
)

// handleRunFit runs the optimization synchronously with the requested
// engine and reports the result. A fit with nothing to vary is a
// client error, not a crash.
func (a *App) handleRunFit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Engine string `json:"engine"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, err)
			return
		}
	}

	store := a.store(r)
	f, err := store.Fitter()
	if err != nil {
		a.writeError(w, err)
		return
	}

	_ = store.SetFitStatus(string(sans.FitRunning))
	result, err := f.Fit(req.Engine)
	if err != nil {
		_ = store.SetFitStatus(string(sans.FitFailed))
		store.SetFitError(err.Error())
		a.writeError(w, err)
		return
	}

	_ = store.SetFitStatus(string(sans.FitCompleted))
	store.SetFitError("")
	store.SetFitCompleted(true)
	store.SetFitResult(result)

	// The parameter table mirror deliberately stays at its pre-fit values:
	// the user commits a fit with the apply action, or reverts it by
	// resubmitting the table.
	a.writeJSON(w, http.StatusOK, fitResultPayload(result))
}

// handleApplyFitResults copies the stored fit result into the parameter
// table: fitted values (and "<name>_pd" widths) go back into the fitter
// and the widget mirror in one step.
func (a *App) handleApplyFitResults(w http.ResponseWriter, r *http.Request) {
	store := a.store(r)
	f, err := store.Fitter()
	if err != nil {
		a.writeError(w, err)
		return
	}
	if err := f.ApplyFitResults(); err != nil {
		a.writeError(w, err)
		return
	}
	a.c.RegistryFor(store).SyncWidgets()
	a.writeJSON(w, http.StatusOK, map[string]any{
		"applied":    true,
		"parameters": store.ParamWidgets(),
	})
}

func fitResultPayload(result *sans.FitResult) map[string]any {
	params := make(map[string]any, len(result.Parameters))
	for name, p := range result.Parameters {
		params[name] = map[string]any{
			"value":  p.Value,
			"stderr": p.StderrText(),
		}
	}
	return map[string]any{
		"chisq":      result.ChiSquare,
		"parameters": params,
	}
}

func (a *App) handleFitResults(w http.ResponseWriter, r *http.Request) {
	store := a.store(r)
	result := store.FitResult()
	if result == nil {
		a.writeJSON(w, http.StatusOK, map[string]any{"completed": false})
		return
	}
	payload := fitResultPayload(result)
	payload["completed"] = true
	payload["status"] = string(store.FitStatus())
	a.writeJSON(w, http.StatusOK, payload)
}

// handleFitCurve evaluates the model over the data's Q grid and returns
// the curve plus weighted residuals for plotting.
func (a *App) handleFitCurve(w http.ResponseWriter, r *http.Request) {
	f, err := a.store(r).Fitter()
	if err != nil {
		a.writeError(w, err)
		return
	}
	if !f.HasData() {
		a.writeError(w, errors.NotInitialized("data"))
		return
	}
	if !f.HasModel() {
		a.writeError(w, errors.NotInitialized("model"))
		return
	}

	ds := f.Data()
	fitted := make([]float64, ds.Len())
	for i, q := range ds.Q {
		v, err := f.Intensity(q)
		if err != nil {
			a.writeError(w, err)
			return
		}
		fitted[i] = v
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"q":         ds.Q,
		"i_fit":     fitted,
		"residuals": analysis.Residuals(ds.I, fitted, ds.DI),
	})
}

// handleExportParamsCSV streams the parameter table in the same CSV
// schema the import endpoint accepts.
func (a *App) handleExportParamsCSV(w http.ResponseWriter, r *http.Request) {
	f, err := a.store(r).Fitter()
	if err != nil {
		a.writeError(w, err)
		return
	}
	if !f.HasModel() {
		a.writeError(w, errors.NotInitialized("model"))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="parameters.csv"`)
	if err := dataio.WriteParamsCSV(w, f.ParamNames(), f.Params()); err != nil {
		a.c.Logger.Error("csv export failed: %v", err)
	}
}

// handleImportParamsCSV restores a previously exported parameter table.
func (a *App) handleImportParamsCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.writeError(w, errors.InvalidInput("invalid multipart form"))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		a.writeError(w, errors.InvalidInput("missing 'file' field"))
		return
	}
	defer file.Close()

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

	names, rows, err := dataio.ReadParamsCSV(file)
	if err != nil {
		a.writeError(w, err)
		return
	}

	applied := make([]string, 0, len(names))
	skipped := make([]string, 0)
	for _, name := range names {
		if !f.HasParam(name) {
			skipped = append(skipped, name)
			continue
		}
		row := rows[name]
		if err := f.ApplyUpdate(name, sans.ParamUpdate{
			Value: row.Value, Min: row.Min, Max: row.Max, Vary: row.Vary,
		}); err != nil {
			a.writeError(w, err)
			return
		}
		applied = append(applied, name)
	}

	a.c.RegistryFor(store).SyncWidgets()
	a.writeJSON(w, http.StatusOK, map[string]any{
		"applied": applied,
		"skipped": skipped,
	})
}

// handleExportXLSX builds the Excel workbook with the parameter table
// and, when present, the fit results sheet.
func (a *App) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
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

	wb := export.Workbook{
		ModelName:  f.ModelName(),
		ParamOrder: f.ParamNames(),
		Params:     f.Params(),
		FitResult:  store.FitResult(),
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="fit_results.xlsx"`)
	if err := export.WriteXLSX(w, wb); err != nil {
		a.c.Logger.Error("xlsx export failed: %v", err)
	}
}
