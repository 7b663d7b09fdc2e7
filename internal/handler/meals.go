package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/plateai/internal/domain"
	"github.com/aryan0dhankhar/plateai/internal/security/middleware"
)

// MealStore is the owner-scoped meal API the handlers depend on
type MealStore interface {
	CreateMeal(ctx context.Context, ownerID uuid.UUID, draft domain.MealDraft) (uuid.UUID, error)
	ListMeals(ctx context.Context, ownerID uuid.UUID) ([]domain.MealSummary, error)
	GetMeal(ctx context.Context, ownerID, mealID uuid.UUID) (*domain.MealDetail, error)
	UpdateMeal(ctx context.Context, ownerID, mealID uuid.UUID, draft domain.MealDraft) error
	DeleteMeal(ctx context.Context, ownerID, mealID uuid.UUID) error
}

// MealsHandler serves the /api/meals endpoints. It must sit behind
// middleware.RequireUser.
type MealsHandler struct {
	meals  MealStore
	logger *slog.Logger
}

// NewMealsHandler creates a new meals handler
func NewMealsHandler(meals MealStore, logger *slog.Logger) *MealsHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &MealsHandler{
		meals:  meals,
		logger: logger,
	}
}

// ComponentRequest is one component of a meal payload
type ComponentRequest struct {
	Name     *string  `json:"name"`
	Calories *float64 `json:"calories"`
	FatG     *float64 `json:"fat_g"`
	ProteinG *float64 `json:"protein_g"`
	CarbsG   *float64 `json:"carbs_g"`
}

// MealRequest is the body of create and update
type MealRequest struct {
	MealDate    *string             `json:"meal_date"`
	Description *string             `json:"description"`
	Components  *[]ComponentRequest `json:"components"`
}

// MealSavedResponse is returned by create and update
type MealSavedResponse struct {
	MealID  string `json:"mealId"`
	Message string `json:"message"`
}

// MealSummaryResponse is one entry of the meal list
type MealSummaryResponse struct {
	MealID        string    `json:"mealId"`
	MealDate      time.Time `json:"meal_date"`
	Description   *string   `json:"description"`
	TotalCalories float64   `json:"total_calories"`
}

// ComponentResponse is a stored meal component
type ComponentResponse struct {
	ComponentID string  `json:"component_id"`
	Name        string  `json:"name"`
	Calories    float64 `json:"calories"`
	FatG        float64 `json:"fat_g"`
	ProteinG    float64 `json:"protein_g"`
	CarbsG      float64 `json:"carbs_g"`
}

// MealDetailResponse is a meal with all of its components
type MealDetailResponse struct {
	MealID      string              `json:"mealId"`
	MealDate    time.Time           `json:"meal_date"`
	Description *string             `json:"description"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Components  []ComponentResponse `json:"components"`
}

// Create handles POST /api/meals
func (h *MealsHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	draft, err := h.decodeDraft(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	mealID, err := h.meals.CreateMeal(r.Context(), owner, draft)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, MealSavedResponse{MealID: mealID.String(), Message: "Meal saved successfully."})
}

// List handles GET /api/meals
func (h *MealsHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	meals, err := h.meals.ListMeals(r.Context(), owner)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := make([]MealSummaryResponse, 0, len(meals))
	for _, m := range meals {
		out = append(out, MealSummaryResponse{
			MealID:        m.ID.String(),
			MealDate:      m.MealDate,
			Description:   m.Description,
			TotalCalories: m.TotalCalories,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /api/meals/{mealId}
func (h *MealsHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	mealID, err := parseMealID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	meal, err := h.meals.GetMeal(r.Context(), owner, mealID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := MealDetailResponse{
		MealID:      meal.ID.String(),
		MealDate:    meal.MealDate,
		Description: meal.Description,
		CreatedAt:   meal.CreatedAt,
		UpdatedAt:   meal.UpdatedAt,
		Components:  make([]ComponentResponse, 0, len(meal.Components)),
	}
	for _, c := range meal.Components {
		resp.Components = append(resp.Components, ComponentResponse{
			ComponentID: c.ID.String(),
			Name:        c.Name,
			Calories:    c.Calories,
			FatG:        c.FatG,
			ProteinG:    c.ProteinG,
			CarbsG:      c.CarbsG,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Update handles PUT /api/meals/{mealId}
func (h *MealsHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	mealID, err := parseMealID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	draft, err := h.decodeDraft(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.meals.UpdateMeal(r.Context(), owner, mealID, draft); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, MealSavedResponse{MealID: mealID.String(), Message: "Meal updated successfully."})
}

// Delete handles DELETE /api/meals/{mealId}
func (h *MealsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	mealID, err := parseMealID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.meals.DeleteMeal(r.Context(), owner, mealID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *MealsHandler) owner(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, domain.ErrUnauthorized)
		return uuid.Nil, false
	}
	return user.ID, true
}

func (h *MealsHandler) decodeDraft(r *http.Request) (domain.MealDraft, error) {
	var req MealRequest
	if err := decodeJSON(r, &req); err != nil {
		return domain.MealDraft{}, err
	}
	return req.Draft()
}

// Draft validates the payload and converts it into a domain.MealDraft
func (req MealRequest) Draft() (domain.MealDraft, error) {
	if req.MealDate == nil {
		return domain.MealDraft{}, domain.NewValidationError("meal_date", "field required")
	}
	mealDate, err := parseMealDate(*req.MealDate)
	if err != nil {
		return domain.MealDraft{}, err
	}

	var components []domain.MealComponent
	if req.Components != nil {
		components = make([]domain.MealComponent, 0, len(*req.Components))
		for _, c := range *req.Components {
			component, err := c.component()
			if err != nil {
				return domain.MealDraft{}, err
			}
			components = append(components, component)
		}
	}

	return domain.NewMeal(mealDate, req.Description, components)
}

func (c ComponentRequest) component() (domain.MealComponent, error) {
	switch {
	case c.Name == nil:
		return domain.MealComponent{}, domain.NewValidationError("components.name", "field required")
	case c.Calories == nil:
		return domain.MealComponent{}, domain.NewValidationError("components.calories", "field required")
	case c.FatG == nil:
		return domain.MealComponent{}, domain.NewValidationError("components.fat_g", "field required")
	case c.ProteinG == nil:
		return domain.MealComponent{}, domain.NewValidationError("components.protein_g", "field required")
	case c.CarbsG == nil:
		return domain.MealComponent{}, domain.NewValidationError("components.carbs_g", "field required")
	}
	return domain.MealComponent{
		Name: *c.Name,
		Macros: domain.Macros{
			Calories: *c.Calories,
			FatG:     *c.FatG,
			ProteinG: *c.ProteinG,
			CarbsG:   *c.CarbsG,
		},
	}, nil
}

// Accepted meal_date layouts. Values without an offset are taken as UTC.
var mealDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseMealDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range mealDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, domain.NewValidationError("meal_date", "invalid datetime")
}

func parseMealID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("mealId"))
	if err != nil {
		return uuid.Nil, domain.NewValidationError("mealId", "invalid UUID")
	}
	return id, nil
}
