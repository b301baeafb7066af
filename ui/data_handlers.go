package ui

import (
	"net/http"

	"sansfit/adapters/dataio"
	"sansfit/domain/sans"
	"sansfit/internal/analysis"
	"sansfit/internal/errors"
)

const maxUploadBytes = 16 << 20

func (a *App) installDataset(r *http.Request, ds *sans.Dataset) error {
	if ds.Len() > a.c.Config.Data.MaxPoints {
		return errors.ValidationError("dataset exceeds the configured point limit")
	}
	store := a.store(r)
	f, err := store.Fitter()
	if err != nil {
		return err
	}
	if err := f.SetData(ds); err != nil {
		return err
	}
	store.SetDataLoaded(true)
	store.SetFitCompleted(false)
	store.SetFitResult(nil)
	_ = store.SetFitStatus(string(sans.FitIdle))
	return nil
}

func (a *App) dataSummary(ds *sans.Dataset) map[string]any {
	lo, hi := ds.QRange()
	return map[string]any{
		"points": ds.Len(),
		"q_min":  lo,
		"q_max":  hi,
	}
}

// handleDataUpload accepts a multipart CSV with the Q,I,dI schema.
func (a *App) handleDataUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.writeError(w, errors.InvalidInput("invalid multipart form"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		a.writeError(w, errors.InvalidInput("missing 'file' field"))
		return
	}
	defer file.Close()

	ds, err := dataio.ReadDataset(file)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if err := a.installDataset(r, ds); err != nil {
		a.writeError(w, err)
		return
	}

	a.c.Logger.Info("loaded %d points from %s", ds.Len(), header.Filename)
	resp := a.dataSummary(ds)
	resp["filename"] = header.Filename
	a.writeJSON(w, http.StatusOK, resp)
}

// handleDataExample loads the bundled example dataset.
func (a *App) handleDataExample(w http.ResponseWriter, r *http.Request) {
	ds, err := dataio.ReadDatasetFile(a.c.Config.Data.ExampleFile)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if err := a.installDataset(r, ds); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, a.dataSummary(ds))
}

func (a *App) handleDataGet(w http.ResponseWriter, r *http.Request) {
	f, err := a.store(r).Fitter()
	if err != nil {
		a.writeError(w, err)
		return
	}
	if !f.HasData() {
		a.writeJSON(w, http.StatusOK, map[string]any{"loaded": false})
		return
	}
	ds := f.Data()
	resp := a.dataSummary(ds)
	resp["loaded"] = true
	resp["q"] = ds.Q
	resp["i"] = ds.I
	resp["di"] = ds.DI
	a.writeJSON(w, http.StatusOK, resp)
}

// handleDataProfile returns the data characteristics plus suggested
// models, AI-assisted when a chat client is configured.
func (a *App) handleDataProfile(w http.ResponseWriter, r *http.Request) {
	f, err := a.store(r).Fitter()
	if err != nil {
		a.writeError(w, err)
		return
	}
	if !f.HasData() {
		a.writeError(w, errors.NotInitialized("data"))
		return
	}
	ds := f.Data()

	profile, err := analysis.Analyze(ds)
	if err != nil {
		a.writeError(w, err)
		return
	}
	suggestions := analysis.SuggestModelsAI(r.Context(), a.c.ChatClient(), ds, a.c.Logger)

	a.writeJSON(w, http.StatusOK, map[string]any{
		"q_min":           profile.QMin,
		"q_max":           profile.QMax,
		"points":          profile.Points,
		"slope":           profile.Slope,
		"intensity_decay": profile.IntensityDecay,
		"description":     profile.Describe(),
		"suggestions":     suggestions,
	})
}
