package ui

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sansfit/internal/container"
)

//go:embed templates/*
var embeddedFiles embed.FS

// App is the web application: a JSON API over the session stores plus a
// single page shell.
type App struct {
	router    *chi.Mux
	c         *container.Container
	templates *template.Template
}

// NewApp wires the HTTP surface onto the container.
func NewApp(c *container.Container) (*App, error) {
	templates, err := template.ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	app := &App{
		router:    chi.NewRouter(),
		c:         c,
		templates: templates,
	}
	app.setupMiddleware()
	app.setupRoutes()
	return app, nil
}

func (a *App) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
	a.router.Use(a.sessionMiddleware)
}

func (a *App) setupRoutes() {
	a.router.Get("/", a.handleIndex)

	// Data
	a.router.Post("/api/data/upload", a.handleDataUpload)
	a.router.Post("/api/data/example", a.handleDataExample)
	a.router.Get("/api/data", a.handleDataGet)
	a.router.Get("/api/data/profile", a.handleDataProfile)

	// Models and parameters
	a.router.Get("/api/models", a.handleModelsList)
	a.router.Post("/api/models/select", a.handleModelSelect)
	a.router.Get("/api/parameters", a.handleParametersGet)
	a.router.Post("/api/parameters", a.handleParametersSubmit)
	a.router.Post("/api/parameters/preset", a.handleParametersPreset)
	a.router.Post("/api/polydispersity", a.handlePolydispersity)
	a.router.Post("/api/structure-factor", a.handleStructureFactorSet)
	a.router.Delete("/api/structure-factor", a.handleStructureFactorRemove)

	// Fitting and export
	a.router.Post("/api/fit", a.handleRunFit)
	a.router.Post("/api/fit/apply", a.handleApplyFitResults)
	a.router.Get("/api/fit/results", a.handleFitResults)
	a.router.Get("/api/fit/curve", a.handleFitCurve)
	a.router.Get("/api/export/parameters.csv", a.handleExportParamsCSV)
	a.router.Post("/api/import/parameters", a.handleImportParamsCSV)
	a.router.Get("/api/export/results.xlsx", a.handleExportXLSX)

	// Assistant
	a.router.Post("/api/chat", a.handleChatSend)
	a.router.Get("/api/chat", a.handleChatHistory)
	a.router.Delete("/api/chat", a.handleChatClear)

	// Session settings and render-loop state
	a.router.Post("/api/settings", a.handleSettings)
	a.router.Get("/api/state", a.handleState)
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() http.Handler { return a.router }

// Serve runs the HTTP server until ctx is cancelled, then drains.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + a.c.Config.Server.Port,
		Handler: a.router,
	}

	errCh := make(chan error, 1)
	go func() {
		a.c.Logger.Info("listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if err := a.templates.ExecuteTemplate(w, "index.html", nil); err != nil {
		a.c.Logger.Error("template error: %v", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}
