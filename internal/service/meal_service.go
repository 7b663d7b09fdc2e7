package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/plateai/internal/domain"
	"github.com/aryan0dhankhar/plateai/internal/observability/metrics"
	"github.com/aryan0dhankhar/plateai/internal/security/audit"
)

// MealService runs owner-scoped meal operations and records metrics and
// audit entries for every write.
type MealService struct {
	meals  domain.MealRepository
	audit  *audit.Logger
	logger *slog.Logger
}

// NewMealService creates a new meal service
func NewMealService(meals domain.MealRepository, auditLog *audit.Logger, logger *slog.Logger) *MealService {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}

	return &MealService{
		meals:  meals,
		audit:  auditLog,
		logger: logger,
	}
}

// CreateMeal stores a validated draft for the owner and returns its id
func (s *MealService) CreateMeal(ctx context.Context, ownerID uuid.UUID, draft domain.MealDraft) (uuid.UUID, error) {
	mealID, err := s.meals.Create(ctx, ownerID, draft)
	s.record(ctx, "create", ownerID, mealID, err)
	if err != nil {
		return uuid.Nil, err
	}

	s.logger.Info("meal created",
		slog.String("meal_id", mealID.String()),
		slog.Int("components", len(draft.Components())),
	)
	return mealID, nil
}

// ListMeals returns the owner's meals, newest first
func (s *MealService) ListMeals(ctx context.Context, ownerID uuid.UUID) ([]domain.MealSummary, error) {
	return s.meals.List(ctx, ownerID)
}

// GetMeal returns one of the owner's meals with its components
func (s *MealService) GetMeal(ctx context.Context, ownerID, mealID uuid.UUID) (*domain.MealDetail, error) {
	return s.meals.Get(ctx, ownerID, mealID)
}

// UpdateMeal replaces the date, description and components of a meal
func (s *MealService) UpdateMeal(ctx context.Context, ownerID, mealID uuid.UUID, draft domain.MealDraft) error {
	err := s.meals.Update(ctx, ownerID, mealID, draft)
	s.record(ctx, "update", ownerID, mealID, err)
	return err
}

// DeleteMeal removes a meal and its components
func (s *MealService) DeleteMeal(ctx context.Context, ownerID, mealID uuid.UUID) error {
	err := s.meals.Delete(ctx, ownerID, mealID)
	s.record(ctx, "delete", ownerID, mealID, err)
	return err
}

func (s *MealService) record(ctx context.Context, op string, ownerID, mealID uuid.UUID, err error) {
	switch {
	case err == nil:
		metrics.ObserveMealOperation(op, "ok")
		s.audit.LogMeal(ctx, ownerID, op, mealID, audit.StatusSuccess, "")
	case errors.Is(err, domain.ErrNotFound):
		metrics.ObserveMealOperation(op, "not_found")
		s.audit.LogMeal(ctx, ownerID, op, mealID, audit.StatusFailure, "not found")
	default:
		metrics.ObserveMealOperation(op, "error")
		s.audit.LogMeal(ctx, ownerID, op, mealID, audit.StatusFailure, "store error")
	}
}
