package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all treasury routes. The router is expected to
// be mounted under /treasury; the analysis module registers its read-only
// routes on the same subtree.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/assets", h.HandleListAssets)
	r.Post("/assets", h.HandleAddAsset)                   // owner
	r.Delete("/assets/{token}", h.HandleRemoveAsset)      // owner
	r.Put("/assets/{token}/target", h.HandleUpdateTarget) // owner
	r.Get("/allocations", h.HandleAllocations)
	r.Get("/needs-rebalancing", h.HandleNeedsRebalancing)
	r.Get("/suggestions", h.HandleSuggestions)
	r.Post("/rebalance", h.HandleRebalance)                       // dao
	r.Post("/emergency-withdraw", h.HandleEmergencyWithdraw)      // owner
	r.Post("/rebalancing-enabled", h.HandleSetRebalancingEnabled) // owner
	r.Put("/threshold", h.HandleUpdateThreshold)                  // owner
}
