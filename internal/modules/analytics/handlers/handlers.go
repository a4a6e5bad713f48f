// Package handlers provides HTTP handlers for portfolio analytics.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-analytics/internal/domain"
	"github.com/aristath/portfolio-analytics/internal/events"
	"github.com/aristath/portfolio-analytics/internal/modules/analytics"
	"github.com/aristath/portfolio-analytics/internal/modules/optimization"
	"github.com/aristath/portfolio-analytics/internal/modules/portfolio"
	"github.com/aristath/portfolio-analytics/internal/modules/risk"
)

// Service is the analytics surface served over HTTP
type Service interface {
	Latest() (portfolio.Report, bool)
	Snapshot(ctx context.Context) (portfolio.Report, error)
	AssetIndicators(ctx context.Context, asset string) (analytics.AssetIndicators, error)
	AssetRisk(ctx context.Context, asset string) (domain.RiskProfile, error)
	Correlations(ctx context.Context) (risk.CorrelationMatrix, error)
	Optimize(ctx context.Context, strategy optimization.Strategy, target float64) (optimization.Result, error)
	Insights(ctx context.Context) (analytics.Insights, error)
}

// Handler handles analytics HTTP requests
type Handler struct {
	service Service
	bus     *events.Bus
	log     zerolog.Logger
}

// NewHandler creates a new analytics handler. bus may be nil, in which case
// the stream endpoint only sends the latest report.
func NewHandler(service Service, bus *events.Bus, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		bus:     bus,
		log:     log.With().Str("handler", "analytics").Logger(),
	}
}

// HandleGetSnapshot handles GET /api/analytics/snapshot
func (h *Handler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Snapshot(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to compute snapshot")
		return
	}
	h.writeData(w, report)
}

// HandleGetAssetIndicators handles GET /api/analytics/assets/{asset}/indicators
func (h *Handler) HandleGetAssetIndicators(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	result, err := h.service.AssetIndicators(r.Context(), asset)
	if err != nil {
		h.writeError(w, err, "Failed to compute indicators")
		return
	}
	h.writeData(w, result)
}

// HandleGetAssetRisk handles GET /api/analytics/assets/{asset}/risk
func (h *Handler) HandleGetAssetRisk(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	profile, err := h.service.AssetRisk(r.Context(), asset)
	if err != nil {
		h.writeError(w, err, "Failed to compute risk profile")
		return
	}
	h.writeData(w, profile)
}

// HandleGetCorrelations handles GET /api/analytics/correlations
func (h *Handler) HandleGetCorrelations(w http.ResponseWriter, r *http.Request) {
	matrix, err := h.service.Correlations(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to compute correlations")
		return
	}
	h.writeData(w, matrix)
}

// HandleGetOptimize handles GET /api/analytics/optimize?strategy=&target=
// A target without a strategy selects efficient_return.
func (h *Handler) HandleGetOptimize(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	strategy := optimization.Strategy(query.Get("strategy"))

	target := 0.0
	if raw := query.Get("target"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			http.Error(w, "Invalid target return", http.StatusBadRequest)
			return
		}
		target = v
		if strategy == "" {
			strategy = optimization.StrategyEfficientReturn
		}
	}

	switch strategy {
	case "":
		strategy = optimization.StrategyMinVolatility
	case optimization.StrategyMinVolatility, optimization.StrategyMaxSharpe:
	case optimization.StrategyEfficientReturn:
		if query.Get("target") == "" {
			http.Error(w, "efficient_return requires a target", http.StatusBadRequest)
			return
		}
	default:
		http.Error(w, "Unknown strategy", http.StatusBadRequest)
		return
	}

	result, err := h.service.Optimize(r.Context(), strategy, target)
	if err != nil {
		h.writeError(w, err, "Failed to optimize portfolio")
		return
	}
	h.writeData(w, result)
}

// HandleGetInsights handles GET /api/analytics/insights
func (h *Handler) HandleGetInsights(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Insights(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to build insights")
		return
	}
	h.writeData(w, out)
}

// writeError maps engine errors to status codes
func (h *Handler) writeError(w http.ResponseWriter, err error, msg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, analytics.ErrUnknownAsset):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientData), errors.Is(err, domain.ErrMisalignedSeries):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidParameter):
		status = http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg(msg)
	} else {
		h.log.Debug().Err(err).Int("status", status).Msg(msg)
	}

	h.writeJSON(w, status, map[string]interface{}{
		"error": err.Error(),
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeData wraps data in the response envelope
func (h *Handler) writeData(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
