package domain

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Storage limits of the meal tables
const (
	// MaxNameLength is the longest component, user or username name in characters
	MaxNameLength = 255
	// MaxMacroValue is the exclusive upper bound of a stored NUMERIC(10,2) quantity
	MaxMacroValue = 1e8
)

// Macros holds the nutritional quantities of one food item
type Macros struct {
	Calories float64
	FatG     float64
	ProteinG float64
	CarbsG   float64
}

// Validate rejects negative and non-finite quantities
func (m Macros) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"calories", m.Calories},
		{"fat_g", m.FatG},
		{"protein_g", m.ProteinG},
		{"carbs_g", m.CarbsG},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return NewValidationError(f.name, "must be a finite number")
		}
		if f.value < 0 {
			return NewValidationError(f.name, "must not be negative")
		}
		if f.value >= MaxMacroValue {
			return NewValidationError(f.name, "must be less than 100000000")
		}
	}
	return nil
}

// MealComponent is one food item of a meal
type MealComponent struct {
	ID   uuid.UUID // zero until persisted
	Name string
	Macros
}

// Meal is the persisted meal header, owned by exactly one user
type Meal struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	MealDate    time.Time
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MealDetail is a meal together with its full component list
type MealDetail struct {
	Meal
	Components []MealComponent
}

// MealSummary is the list view of a meal
type MealSummary struct {
	ID            uuid.UUID
	MealDate      time.Time
	Description   *string
	TotalCalories float64
}

// MealDraft is a validated, immutable meal payload ready to be written.
// Build one with NewMeal.
type MealDraft struct {
	mealDate    time.Time
	description *string
	components  []MealComponent
}

// NewMeal validates the input and returns a draft. Components are copied so
// later changes by the caller do not leak into the draft.
func NewMeal(mealDate time.Time, description *string, components []MealComponent) (MealDraft, error) {
	if mealDate.IsZero() {
		return MealDraft{}, NewValidationError("meal_date", "field required")
	}
	if components == nil {
		return MealDraft{}, NewValidationError("components", "field required")
	}

	copied := make([]MealComponent, 0, len(components))
	for _, c := range components {
		if strings.TrimSpace(c.Name) == "" {
			return MealDraft{}, NewValidationError("components.name", "field required")
		}
		if err := CheckLength("components.name", c.Name); err != nil {
			return MealDraft{}, err
		}
		if err := c.Macros.Validate(); err != nil {
			return MealDraft{}, err
		}
		copied = append(copied, MealComponent{Name: c.Name, Macros: c.Macros})
	}

	var desc *string
	if description != nil {
		d := *description
		desc = &d
	}

	return MealDraft{mealDate: mealDate, description: desc, components: copied}, nil
}

// CheckLength rejects values longer than MaxNameLength characters
func CheckLength(field, value string) error {
	if utf8.RuneCountInString(value) > MaxNameLength {
		return NewValidationError(field, "must be at most 255 characters")
	}
	return nil
}

func (d MealDraft) MealDate() time.Time { return d.mealDate }

func (d MealDraft) Description() *string { return d.description }

// Components returns a copy of the draft's components in submitted order
func (d MealDraft) Components() []MealComponent {
	out := make([]MealComponent, len(d.components))
	copy(out, d.components)
	return out
}

// MealRepository defines owner-scoped data access for meals. Every method
// treats a meal owned by another user exactly like a missing one.
type MealRepository interface {
	Create(ctx context.Context, ownerID uuid.UUID, draft MealDraft) (uuid.UUID, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]MealSummary, error)
	Get(ctx context.Context, ownerID, mealID uuid.UUID) (*MealDetail, error)
	// Update overwrites date and description and replaces the whole
	// component set in one transaction.
	Update(ctx context.Context, ownerID, mealID uuid.UUID, draft MealDraft) error
	// Delete removes the meal and all of its components.
	Delete(ctx context.Context, ownerID, mealID uuid.UUID) error
}

// ComponentEstimate is one food item detected by the nutrition estimator
type ComponentEstimate struct {
	Name string
	Macros
}
