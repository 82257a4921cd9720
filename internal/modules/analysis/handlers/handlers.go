// Package handlers provides HTTP handlers for treasury analysis, alerts
// and value history.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/treasurer/internal/modules/analysis"
	"github.com/aristath/treasurer/internal/modules/snapshots"
)

// Handler handles analysis HTTP requests
type Handler struct {
	service   *analysis.Service
	snapshots *snapshots.Repository
	log       zerolog.Logger
}

// NewHandler creates a new analysis handler
func NewHandler(service *analysis.Service, snapshotRepo *snapshots.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		service:   service,
		snapshots: snapshotRepo,
		log:       log.With().Str("handler", "analysis").Logger(),
	}
}

// RegisterRoutes registers all analysis routes on the /treasury subtree.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/analysis", h.HandleAnalysis)
	r.Get("/alerts", h.HandleAlerts)
	r.Get("/history", h.HandleHistory)
}

// HandleAnalysis returns the full health report
func (h *Handler) HandleAnalysis(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Report()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

// HandleAlerts returns current alerts
func (h *Handler) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.Alerts()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}

// HandleHistory returns recent snapshots, newest first.
// Optional query parameter: limit (default 100).
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	snaps, err := h.snapshots.List(limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if snaps == nil {
		snaps = []snapshots.Snapshot{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"snapshots": snaps})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
