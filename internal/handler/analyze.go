package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/plateai/internal/domain"
)

// NutritionEstimator turns a meal description into component estimates
type NutritionEstimator interface {
	Estimate(ctx context.Context, description string) ([]domain.ComponentEstimate, error)
}

// AnalyzeHandler handles POST /api/meals/analyze
type AnalyzeHandler struct {
	estimator NutritionEstimator
	logger    *slog.Logger
}

// NewAnalyzeHandler creates a new analyze handler
func NewAnalyzeHandler(estimator NutritionEstimator, logger *slog.Logger) *AnalyzeHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &AnalyzeHandler{
		estimator: estimator,
		logger:    logger,
	}
}

// EstimateComponent is one estimated food item
type EstimateComponent struct {
	Name     string  `json:"name"`
	Calories float64 `json:"calories"`
	FatG     float64 `json:"fat_g"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
}

// AnalyzeResponse is the estimate for a description
type AnalyzeResponse struct {
	Components []EstimateComponent `json:"components"`
}

func (h *AnalyzeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	description, ok := body["description"].(string)
	if !ok {
		writeDetail(w, http.StatusBadRequest, "description must be a string")
		return
	}

	components, err := h.estimator.Estimate(r.Context(), description)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := AnalyzeResponse{Components: make([]EstimateComponent, 0, len(components))}
	for _, c := range components {
		resp.Components = append(resp.Components, EstimateComponent{
			Name:     c.Name,
			Calories: c.Calories,
			FatG:     c.FatG,
			ProteinG: c.ProteinG,
			CarbsG:   c.CarbsG,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
