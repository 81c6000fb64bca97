package web

import (
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/stocksync/internal/core"
	"github.com/JonMunkholm/stocksync/internal/logging"
	"github.com/JonMunkholm/stocksync/internal/web/templates"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// handleHistory lists recent applied imports, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", defaultHistoryLimit)
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	runs, err := s.service.History(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if runs == nil {
		runs = []core.ImportRun{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleHistoryRun returns one applied import with its outcomes.
func (s *Server) handleHistoryRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.HistoryRun(r.Context(), chi.URLParam(r, "importID"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	if isHTMX(r) {
		s.renderHTML(w, r, http.StatusOK, templates.OutcomeList(&core.ApplyResult{
			ImportID: run.ID,
			FileName: run.FileName,
			Summary:  run.Summary,
			Outcomes: run.Outcomes,
			Duration: run.FinishedAt.Sub(run.StartedAt),
		}))
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleCatalogStatus checks that the store accepts the configured credentials.
func (s *Server) handleCatalogStatus(w http.ResponseWriter, r *http.Request) {
	status := s.service.CatalogStatus(r.Context())

	if isHTMX(r) {
		if !status.Connected {
			s.renderHTML(w, r, http.StatusOK, templates.ErrorAlert(status.Detail.Message, status.Detail.Action, status.Detail.Code))
			return
		}
		s.renderHTML(w, r, http.StatusOK, templates.CatalogConnected(status.CheckedAt))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleSalesSummary totals units sold per SKU for orders with the
// requested status (completed by default).
func (s *Server) handleSalesSummary(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.SalesSummary(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	if isHTMX(r) {
		s.renderHTML(w, r, http.StatusOK, templates.SalesTable(report))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleHealthz reports liveness and apply slot usage.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"imports": s.service.LimiterStatus(),
	})
}

// renderHTML writes a templ component as an HTML response.
func (s *Server) renderHTML(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render fragment", "error", err)
	}
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
