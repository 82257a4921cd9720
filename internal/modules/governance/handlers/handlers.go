// Package handlers provides HTTP handlers for governance proposals.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/treasurer/internal/domain"
	"github.com/aristath/treasurer/internal/modules/governance"
	"github.com/aristath/treasurer/internal/modules/treasury"
)

// CallerHeader carries the caller identity on privileged routes.
const CallerHeader = "X-Caller"

// Handler handles governance HTTP requests
type Handler struct {
	service  *governance.Service
	resolver *domain.Resolver
	log      zerolog.Logger
}

// NewHandler creates a new governance handler
func NewHandler(service *governance.Service, resolver *domain.Resolver, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		resolver: resolver,
		log:      log.With().Str("handler", "governance").Logger(),
	}
}

// RegisterRoutes registers all governance routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/governance", func(r chi.Router) {
		r.Get("/proposals", h.HandleListProposals)
		r.Post("/proposals", h.HandleSubmit)                  // dao
		r.Get("/proposals/{id}", h.HandleGetProposal)
		r.Post("/proposals/{id}/vote", h.HandleVote)          // dao
		r.Post("/proposals/{id}/execute", h.HandleExecute)    // dao
		r.Get("/metrics", h.HandleMetrics)
	})
}

func (h *Handler) caller(r *http.Request) domain.Caller {
	return h.resolver.Resolve(r.Header.Get(CallerHeader))
}

// HandleSubmit registers a new proposal. DAO only.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string                       `json:"title"`
		Description string                       `json:"description"`
		Actions     []treasury.RebalancingAction `json:"actions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	proposal, err := h.service.Submit(h.caller(r), req.Title, req.Description, req.Actions)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, proposal)
}

// HandleVote records a vote on an open proposal. DAO only.
func (h *Handler) HandleVote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Approve bool `json:"approve"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	proposal, err := h.service.Vote(h.caller(r), chi.URLParam(r, "id"), req.Approve)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, proposal)
}

// HandleExecute runs an approved proposal. DAO only.
func (h *Handler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	proposal, err := h.service.Execute(r.Context(), h.caller(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, proposal)
}

// HandleGetProposal returns one proposal
func (h *Handler) HandleGetProposal(w http.ResponseWriter, r *http.Request) {
	proposal, err := h.service.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, proposal)
}

// HandleListProposals returns the most recent proposals.
// Optional query parameter: limit (default 100).
func (h *Handler) HandleListProposals(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	proposals, err := h.service.List(limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if proposals == nil {
		proposals = []governance.Proposal{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"proposals": proposals})
}

// HandleMetrics returns aggregate proposal metrics
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.service.Metrics()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, metrics)
}

// writeServiceError maps governance and treasury errors to HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, treasury.ErrUnauthorizedCaller):
		status = http.StatusForbidden
	case errors.Is(err, governance.ErrProposalNotFound):
		status = http.StatusNotFound
	case errors.Is(err, governance.ErrProposalNotOpen),
		errors.Is(err, governance.ErrProposalNotApproved),
		errors.Is(err, treasury.ErrRebalancingDisabled):
		status = http.StatusConflict
	case errors.Is(err, governance.ErrEmptyProposal),
		errors.Is(err, treasury.ErrNegativeAmount),
		errors.Is(err, treasury.ErrInactiveAsset),
		errors.Is(err, treasury.ErrInsufficientBalance):
		status = http.StatusUnprocessableEntity
	}

	h.writeError(w, status, err.Error())
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
