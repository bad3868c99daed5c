package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/dhsingh07/ensureu-sub002/internal/app"
	"github.com/dhsingh07/ensureu-sub002/internal/domain"
)

// Handler exposes the analytics core over JSON HTTP.
type Handler struct {
	ingest    *app.IngestService
	analytics *app.AnalyticsService
}

func NewHandler(ingest *app.IngestService, analytics *app.AnalyticsService) *Handler {
	return &Handler{ingest: ingest, analytics: analytics}
}

// Register mounts all analytics routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/results", h.handleResults)
	mux.HandleFunc("/v1/analytics", h.handleAnalytics)
	mux.HandleFunc("/v1/timeseries", h.handleTimeSeries)
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var result domain.PaperResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		http.Error(w, "invalid result payload", http.StatusBadRequest)
		return
	}
	if err := h.ingest.SubmitResult(r.Context(), &result); err != nil {
		writeError(w, err, result.UserID, result.PaperID)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "saved"})
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("userId")
	paperID := r.URL.Query().Get("paperId")

	analytics, err := h.analytics.GetAnalytics(r.Context(), userID, paperID)
	if err != nil {
		writeError(w, err, userID, paperID)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func (h *Handler) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var record domain.TimeSeriesRecord
		if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
			http.Error(w, "invalid time series payload", http.StatusBadRequest)
			return
		}
		if err := h.analytics.SaveTimeSeries(r.Context(), &record); err != nil {
			writeError(w, err, record.UserID, record.PaperID)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"status": "saved"})
	case http.MethodGet:
		userID := r.URL.Query().Get("userId")
		paperID := r.URL.Query().Get("paperId")
		if userID == "" || paperID == "" {
			http.Error(w, "missing userId or paperId", http.StatusBadRequest)
			return
		}
		series, err := h.analytics.FetchTimeSeries(r.Context(), userID, paperID)
		if err != nil {
			writeError(w, err, userID, paperID)
			return
		}
		writeJSON(w, http.StatusOK, series)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

// writeError maps the core error taxonomy onto HTTP statuses. Unexpected
// failures are logged with the request's user and paper ids so the failing
// call can be replayed.
func writeError(w http.ResponseWriter, err error, userID, paperID string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrResultNotFound),
		errors.Is(err, domain.ErrAggregateNotFound),
		errors.Is(err, domain.ErrTimeSeriesNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrDuplicateSubmission),
		errors.Is(err, domain.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Printf("internal error user [%s] paper [%s]: %v", userID, paperID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
