// Package web is the presentation layer: it receives tabular results from
// the report pipeline and renders them, with the per-row color
// classification applied to the comparison table.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/rxops/orderlens/internal/history"
	"github.com/rxops/orderlens/internal/report"
	"github.com/rxops/orderlens/internal/web/middleware"
)

//go:embed templates/*
var templatesFS embed.FS

// Pipeline is the slice of the report pipeline the server drives.
type Pipeline interface {
	Sites(ctx context.Context) ([]string, error)
	Run(ctx context.Context, site string) (*report.Result, error)
}

// History is the slice of the history store the server reads and writes.
type History interface {
	SaveResult(res *report.Result, triggeredBy string) (int64, error)
	RecentRuns(limit int) ([]history.Run, error)
	RunRows(runID int64) ([]report.ComparisonRow, error)
}

// Server serves the reconciliation dashboard.
type Server struct {
	pipeline  Pipeline
	store     History
	port      int
	bind      string
	router    *chi.Mux
	templates map[string]*template.Template
}

// NewServer builds the dashboard server.
func NewServer(pipeline Pipeline, store History, port int, bind string) *Server {
	s := &Server{
		pipeline: pipeline,
		store:    store,
		port:     port,
		bind:     bind,
		router:   chi.NewRouter(),
	}
	s.loadTemplates()
	s.setupRoutes()
	return s
}

// Router exposes the configured handler, mainly for tests.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) loadTemplates() {
	s.templates = make(map[string]*template.Template)
	funcMap := template.FuncMap{
		"cell": formatCell,
	}

	pageTemplates := []string{
		"index.html",
		"compare.html",
		"history.html",
	}
	for _, page := range pageTemplates {
		tmpl, err := template.New("").Funcs(funcMap).ParseFS(templatesFS,
			"templates/base.html",
			"templates/"+page,
		)
		if err != nil {
			log.Fatal().Err(err).Str("template", page).Msg("Failed to parse template")
		}
		s.templates[page] = tmpl
	}
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/", s.Index)
	r.Get("/compare", s.Compare)
	r.Get("/history", s.History)
	r.Get("/history/{id}", s.HistoryRun)

	r.Route("/api", func(r chi.Router) {
		r.Get("/sites", s.APISites)
		r.Get("/compare", s.APICompare)
		r.Get("/runs", s.APIRuns)
	})
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	var addr string
	if s.bind != "" {
		addr = fmt.Sprintf("%s:%d", s.bind, s.port)
	} else {
		addr = fmt.Sprintf(":%d", s.port)
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

func (s *Server) render(w http.ResponseWriter, page string, data any) {
	s.renderStatus(w, http.StatusOK, page, data)
}

// renderStatus renders an HTML page under a non-200 status so error pages
// stay distinguishable to monitoring.
func (s *Server) renderStatus(w http.ResponseWriter, status int, page string, data any) {
	tmpl, ok := s.templates[page]
	if !ok {
		log.Error().Str("template", page).Msg("Unknown template")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Error().Err(err).Str("template", page).Msg("Failed to render template")
	}
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case time.Time:
		return x.Format("2006-01-02 15:04")
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}
