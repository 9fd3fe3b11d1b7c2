package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/rxops/orderlens/internal/history"
	"github.com/rxops/orderlens/internal/report"
)

// IndexData feeds the site-picker page.
type IndexData struct {
	Sites []string
	Error string
}

// CompareData feeds the comparison page.
type CompareData struct {
	Result *report.Result
	Error  string
}

// HistoryData feeds the run-history page.
type HistoryData struct {
	Runs []history.Run
	Run  *history.Run
	Rows []report.ComparisonRow
}

// Index renders the site picker.
func (s *Server) Index(w http.ResponseWriter, r *http.Request) {
	data := IndexData{}
	sites, err := s.pipeline.Sites(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list sites")
		data.Error = "Failed to load sites. Check the database connection."
	}
	data.Sites = sites
	s.render(w, "index.html", data)
}

// Compare runs the reconciliation for the selected site and renders the
// forecast, order, and comparison tables.
func (s *Server) Compare(w http.ResponseWriter, r *http.Request) {
	site := r.URL.Query().Get("site")
	if site == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	res, err := s.pipeline.Run(r.Context(), site)
	if err != nil {
		s.renderStatus(w, compareErrorStatus(err), "compare.html", CompareData{Error: compareErrorMessage(site, err)})
		return
	}

	if _, err := s.store.SaveResult(res, "manual"); err != nil {
		log.Error().Err(err).Str("site", site).Msg("Failed to record run")
	}
	s.render(w, "compare.html", CompareData{Result: res})
}

// History renders recent runs, or one recorded run's rows.
func (s *Server) History(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.RecentRuns(50)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load run history")
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	s.render(w, "history.html", HistoryData{Runs: runs})
}

// HistoryRun renders the stored comparison rows of one run.
func (s *Server) HistoryRun(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}

	runs, err := s.store.RecentRuns(50)
	if err != nil {
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	var run *history.Run
	for i := range runs {
		if runs[i].ID == id {
			run = &runs[i]
			break
		}
	}
	if run == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	rows, err := s.store.RunRows(id)
	if err != nil {
		log.Error().Err(err).Int64("run_id", id).Msg("Failed to load run rows")
		http.Error(w, "failed to load run rows", http.StatusInternalServerError)
		return
	}
	s.render(w, "history.html", HistoryData{Run: run, Rows: rows})
}

// APISites returns the selectable sites as JSON.
func (s *Server) APISites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.pipeline.Sites(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sites": sites})
}

// APICompare returns one reconciliation as JSON.
func (s *Server) APICompare(w http.ResponseWriter, r *http.Request) {
	site := r.URL.Query().Get("site")
	if site == "" {
		writeJSONError(w, http.StatusBadRequest, "site parameter is required")
		return
	}

	res, err := s.pipeline.Run(r.Context(), site)
	if err != nil {
		var serr *report.InvalidOrderStatusError
		switch {
		case errors.As(err, &serr):
			writeJSONError(w, http.StatusConflict, serr.Error())
		case errors.Is(err, report.ErrSiteNotFound):
			writeJSONError(w, http.StatusNotFound, err.Error())
		default:
			log.Error().Err(err).Str("site", site).Msg("API comparison failed")
			writeJSONError(w, http.StatusBadGateway, "comparison failed")
		}
		return
	}

	if _, err := s.store.SaveResult(res, "manual"); err != nil {
		log.Error().Err(err).Str("site", site).Msg("Failed to record run")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"site":       res.Site,
		"site_code":  res.SiteCode,
		"ran_at":     res.RanAt,
		"comparison": res.Comparison,
	})
}

// APIRuns returns recent recorded runs as JSON.
func (s *Server) APIRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.RecentRuns(50)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// compareErrorStatus mirrors the API's status mapping on the HTML path.
func compareErrorStatus(err error) int {
	var serr *report.InvalidOrderStatusError
	switch {
	case errors.As(err, &serr):
		return http.StatusConflict
	case errors.Is(err, report.ErrSiteNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func compareErrorMessage(site string, err error) string {
	var serr *report.InvalidOrderStatusError
	switch {
	case errors.As(err, &serr):
		return "One or more orders for this site yesterday have an invalid status. Cannot proceed."
	case errors.Is(err, report.ErrSiteNotFound):
		return "No site found for " + site + "."
	default:
		log.Error().Err(err).Str("site", site).Msg("Comparison failed")
		return "Comparison failed. Check the database connection and try again."
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
