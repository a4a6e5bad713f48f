package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all analytics routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/snapshot", h.HandleGetSnapshot)
		r.Get("/correlations", h.HandleGetCorrelations)
		r.Get("/optimize", h.HandleGetOptimize)
		r.Get("/insights", h.HandleGetInsights)
		r.Get("/stream", h.HandleStream)

		r.Route("/assets/{asset}", func(r chi.Router) {
			r.Get("/indicators", h.HandleGetAssetIndicators)
			r.Get("/risk", h.HandleGetAssetRisk)
		})
	})
}
