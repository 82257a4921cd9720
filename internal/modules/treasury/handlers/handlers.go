// Package handlers provides HTTP handlers for the treasury module.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/treasurer/internal/domain"
	"github.com/aristath/treasurer/internal/modules/treasury"
)

// CallerHeader carries the caller identity on privileged routes. It is the
// service-level stand-in for a transaction sender.
const CallerHeader = "X-Caller"

// Handler handles treasury HTTP requests
type Handler struct {
	service  *treasury.Service
	resolver *domain.Resolver
	log      zerolog.Logger
}

// NewHandler creates a new treasury handler
func NewHandler(service *treasury.Service, resolver *domain.Resolver, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		resolver: resolver,
		log:      log.With().Str("handler", "treasury").Logger(),
	}
}

func (h *Handler) caller(r *http.Request) domain.Caller {
	return h.resolver.Resolve(r.Header.Get(CallerHeader))
}

// HandleListAssets returns active assets with their current allocations
func (h *Handler) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	assets := h.service.ActiveAssets()
	allocations := h.service.CurrentAllocations()

	byToken := make(map[string]treasury.Allocation, len(allocations))
	for _, alloc := range allocations {
		byToken[alloc.Token] = alloc
	}

	result := make([]map[string]interface{}, 0, len(assets))
	for _, asset := range assets {
		alloc := byToken[asset.Token]
		result = append(result, map[string]interface{}{
			"token":       asset.Token,
			"balance":     asset.Balance,
			"target_bps":  asset.TargetAllocation,
			"current_bps": alloc.CurrentBps,
			"created_at":  asset.CreatedAt,
			"updated_at":  asset.UpdatedAt,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"assets":      result,
		"total_value": h.service.TotalValue(),
	})
}

// HandleAddAsset registers a new asset. Owner only.
func (h *Handler) HandleAddAsset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token     string `json:"token"`
		TargetBps int64  `json:"target_bps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	asset, err := h.service.AddAsset(h.caller(r), req.Token, req.TargetBps)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, asset)
}

// HandleRemoveAsset deactivates an asset. Owner only.
func (h *Handler) HandleRemoveAsset(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if err := h.service.RemoveAsset(h.caller(r), token); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"token": token, "status": "removed"})
}

// HandleUpdateTarget updates an asset's target allocation. Owner only.
func (h *Handler) HandleUpdateTarget(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req struct {
		TargetBps int64 `json:"target_bps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.UpdateTargetAllocation(h.caller(r), token, req.TargetBps); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"token": token, "target_bps": req.TargetBps})
}

// HandleAllocations returns current basis-point shares
func (h *Handler) HandleAllocations(w http.ResponseWriter, r *http.Request) {
	allocations := h.service.CurrentAllocations()

	result := make([]map[string]interface{}, 0, len(allocations))
	for _, alloc := range allocations {
		result = append(result, map[string]interface{}{
			"token":         alloc.Token,
			"balance":       alloc.Balance,
			"target_bps":    alloc.TargetBps,
			"current_bps":   alloc.CurrentBps,
			"deviation_bps": alloc.DeviationBps(),
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"allocations": result,
		"total_value": h.service.TotalValue(),
	})
}

// HandleNeedsRebalancing returns the deviation detector's verdict
func (h *Handler) HandleNeedsRebalancing(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"needs_rebalancing": h.service.NeedsRebalancing(),
		"threshold_bps":     h.service.ThresholdBps(),
	})
}

// HandleSuggestions returns the planner's suggested actions
func (h *Handler) HandleSuggestions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": h.service.RebalancingSuggestions(),
	})
}

// HandleRebalance executes a batch of rebalancing actions. DAO only.
func (h *Handler) HandleRebalance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actions []treasury.RebalancingAction `json:"actions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.RebalanceTreasury(r.Context(), h.caller(r), req.Actions); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"executed":    len(req.Actions),
		"total_value": h.service.TotalValue(),
	})
}

// HandleEmergencyWithdraw drains all balances and disables rebalancing.
// Owner only.
func (h *Handler) HandleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	if err := h.service.EmergencyWithdraw(h.caller(r)); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":              "withdrawn",
		"rebalancing_enabled": false,
	})
}

// HandleSetRebalancingEnabled toggles the rebalancing flag. Owner only.
func (h *Handler) HandleSetRebalancingEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.SetRebalancingEnabled(h.caller(r), req.Enabled); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"enabled": req.Enabled})
}

// HandleUpdateThreshold sets the rebalancing threshold. Owner only.
func (h *Handler) HandleUpdateThreshold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ThresholdBps int64 `json:"threshold_bps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.UpdateThreshold(h.caller(r), req.ThresholdBps); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"threshold_bps": req.ThresholdBps})
}

// writeServiceError maps treasury errors to HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, treasury.ErrUnauthorizedCaller):
		status = http.StatusForbidden
	case errors.Is(err, treasury.ErrUnknownAsset):
		status = http.StatusNotFound
	case errors.Is(err, treasury.ErrDuplicateAsset),
		errors.Is(err, treasury.ErrNonZeroBalance),
		errors.Is(err, treasury.ErrRebalancingDisabled):
		status = http.StatusConflict
	case errors.Is(err, treasury.ErrInvalidAllocation),
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
