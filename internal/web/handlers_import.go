package web

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/stocksync/internal/core"
	"github.com/JonMunkholm/stocksync/internal/logging"
	"github.com/JonMunkholm/stocksync/internal/web/templates"
)

// multipartOverhead is extra body allowance for form boundaries and headers.
const multipartOverhead = 1 << 20

type importResponse struct {
	ImportID string                `json:"import_id"`
	FileName string                `json:"file_name"`
	Report   core.ValidationReport `json:"report"`
}

type importDetailResponse struct {
	Session  core.ImportSession  `json:"session"`
	Progress *core.ApplyProgress `json:"progress,omitempty"`
	Result   *core.ApplyResult   `json:"result,omitempty"`
}

// handleValidateImport reads an uploaded file, validates it and stores it
// as a pending import. An invalid file still returns 200 with its report.
func (s *Server) handleValidateImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.service.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, core.ErrFileTooLarge, http.StatusRequestEntityTooLarge)
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: %v", errNoFile, err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	logger := logging.FromContext(r.Context())
	logger.Info("validating import", "file", header.Filename, "size", header.Size)

	sess, err := s.service.Validate(r.Context(), header.Filename, file)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	logging.ForImport(r.Context(), sess.ID, sess.FileName).Info("import validated",
		"valid", sess.Report.Valid,
		"rows", len(sess.Report.Rows),
		"issues", len(sess.Report.Issues),
	)

	if isHTMX(r) {
		s.renderHTML(w, r, http.StatusOK, templates.ValidationSummary(sess))
		return
	}
	writeJSON(w, http.StatusOK, importResponse{
		ImportID: sess.ID,
		FileName: sess.FileName,
		Report:   sess.Report,
	})
}

// handleGetImport returns a pending import with its report and, once
// applied, the live progress or final result.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	sess, err := s.service.Session(r.Context(), importID)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	resp := importDetailResponse{Session: sess}
	if sess.Applied {
		if p, err := s.service.Progress(importID); err == nil && !finalPhase(p.Phase) {
			resp.Progress = &p
		} else if result, err := s.service.Result(r.Context(), importID); err == nil {
			resp.Result = result
		}
	}

	if isHTMX(r) {
		if resp.Result != nil {
			s.renderHTML(w, r, http.StatusOK, templates.OutcomeList(resp.Result))
			return
		}
		s.renderHTML(w, r, http.StatusOK, templates.ValidationSummary(sess))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleApplyImport starts applying a validated import.
func (s *Server) handleApplyImport(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	if err := s.service.Apply(r.Context(), importID); err != nil {
		if errors.Is(err, core.ErrTooManyImports) {
			w.Header().Set("Retry-After", "5")
		}
		s.respondError(w, r, err, statusFor(err))
		return
	}
	logging.ForImport(r.Context(), importID, "").Info("apply started")

	if isHTMX(r) {
		s.renderHTML(w, r, http.StatusAccepted, templates.ApplyStarted(importID))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"import_id": importID,
		"status":    "applying",
	})
}

// handleApplyProgress streams apply progress via Server-Sent Events.
// Supports resumption via the lastEventId query parameter; the event ID is
// the progress percentage.
func (s *Server) handleApplyProgress(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	lastEventIDStr := r.URL.Query().Get("lastEventId")
	if lastEventIDStr == "" {
		lastEventIDStr = r.Header.Get("Last-Event-ID")
	}
	lastEventID, _ := strconv.Atoi(lastEventIDStr)

	progressCh, err := s.service.SubscribeProgress(importID)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, errNoStreaming, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	var last core.ApplyProgress
	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				data, _ := json.Marshal(last)
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				flusher.Flush()
				return
			}
			last = progress

			percent := progress.Percent()
			if lastEventIDStr != "" && percent <= lastEventID && !finalPhase(progress.Phase) {
				continue
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", percent, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleCancelApply cancels an in-progress apply.
func (s *Server) handleCancelApply(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	if err := s.service.CancelApply(importID); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// handleExportOutcomes downloads the per-row outcomes of an apply as CSV.
// A running apply gets 409 instead of holding the request until it ends.
func (s *Server) handleExportOutcomes(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	if p, err := s.service.Progress(importID); err == nil && !finalPhase(p.Phase) {
		w.Header().Set("Retry-After", "5")
		s.respondError(w, r, fmt.Errorf("export %s: %w", importID, core.ErrApplyInProgress), http.StatusConflict)
		return
	}

	result, err := s.service.Result(r.Context(), importID)
	if err != nil {
		if errors.Is(err, core.ErrImportNotFound) {
			if sess, serr := s.service.Session(r.Context(), importID); serr == nil && !sess.Applied {
				err = errNotApplied
				s.respondError(w, r, err, http.StatusConflict)
				return
			}
		}
		s.respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="outcomes_%s.csv"`, importID))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"line", "sku", "status", "new_quantity", "error_detail"})
	for _, o := range result.Outcomes {
		qty := ""
		if o.NewQuantity != nil {
			qty = strconv.Itoa(*o.NewQuantity)
		}
		_ = cw.Write([]string{strconv.Itoa(o.Line), o.SKU, string(o.Status), qty, o.ErrorDetail})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logging.FromContext(r.Context()).Error("write outcomes csv", "error", err)
	}
}

// handleDownloadTemplate serves the sample import file.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, core.TemplateFileName))
	_, _ = w.Write([]byte(s.service.Template()))
}

func finalPhase(p core.ApplyPhase) bool {
	return p == core.PhaseComplete || p == core.PhaseCancelled
}
