package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/WessleyAI/wessley-advisor/engine/advisor"
	"github.com/WessleyAI/wessley-advisor/engine/domain"
	"github.com/WessleyAI/wessley-advisor/engine/history"
	"github.com/WessleyAI/wessley-advisor/engine/pricing"
)

type recommender interface {
	Recommend(ctx context.Context, q domain.UserQuery) (*advisor.Report, error)
	Estimate(in pricing.Input) domain.PriceEstimate
	Brand(brand string) domain.BrandProfile
}

type runStore interface {
	List(ctx context.Context, limit int) ([]history.Record, error)
	Get(ctx context.Context, id string) (history.Record, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleRecommend(svc recommender, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q domain.UserQuery
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		rep, err := svc.Recommend(r.Context(), q)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, rep)
		case errors.Is(err, domain.ErrInvalidQuery):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrDataUnavailable):
			logger.Warn("registry unavailable", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, rep)
		default:
			logger.Error("recommend failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
	}
}

// EstimateRequest is the JSON body for POST /api/estimate.
type EstimateRequest struct {
	Brand          string  `json:"brand"`
	Year           int     `json:"year"`
	BasePrice      float64 `json:"base_price"`
	Segment        string  `json:"segment,omitempty"`
	FuelEfficiency float64 `json:"fuel_efficiency,omitempty"`
}

// EstimateResponse is the JSON response for POST /api/estimate.
type EstimateResponse struct {
	Estimate domain.PriceEstimate `json:"estimate"`
	Brand    domain.BrandProfile  `json:"brand"`
}

func handleEstimate(svc recommender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EstimateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.BasePrice <= 0 || req.Year <= 0 {
			writeError(w, http.StatusBadRequest, "base_price and year are required")
			return
		}
		brand := svc.Brand(req.Brand)
		in := pricing.Input{
			BasePrice:      req.BasePrice,
			Year:           req.Year,
			Brand:          brand,
			FuelEfficiency: req.FuelEfficiency,
		}
		if req.Segment != "" {
			in.Segment = domain.ParseSegment(req.Segment)
		}
		writeJSON(w, http.StatusOK, EstimateResponse{Estimate: svc.Estimate(in), Brand: brand})
	}
}

func handleListRuns(runs runStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 500 {
				writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
				return
			}
			limit = n
		}
		recs, err := runs.List(r.Context(), limit)
		if err != nil {
			logger.Error("list runs failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func handleGetRun(runs runStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := runs.Get(r.Context(), r.PathValue("id"))
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, rec)
		case errors.Is(err, history.ErrNotFound):
			writeError(w, http.StatusNotFound, "run not found")
		default:
			logger.Error("get run failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
	}
}
