package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/aryan0dhankhar/plateai/internal/domain"
)

// PostgresMealRepository implements domain.MealRepository using PostgreSQL.
// Every query is scoped by owner so a foreign meal is indistinguishable from
// a missing one.
type PostgresMealRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresMealRepository creates a new meal repository
func NewPostgresMealRepository(db *sql.DB, logger *slog.Logger) *PostgresMealRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresMealRepository{
		db:     db,
		logger: logger,
	}
}

const (
	insertMealQuery = `
		INSERT INTO meals (meal_id, user_id, meal_date, description)
		VALUES ($1, $2, $3, $4)
	`
	insertComponentQuery = `
		INSERT INTO meal_components (component_id, meal_id, position, name, calories, fat_g, protein_g, carbs_g)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	lockMealQuery = `
		SELECT meal_id FROM meals
		WHERE meal_id = $1 AND user_id = $2
		FOR UPDATE
	`
	deleteComponentsQuery = `DELETE FROM meal_components WHERE meal_id = $1`
)

// Create inserts the meal and all of its components in one transaction
func (r *PostgresMealRepository) Create(ctx context.Context, ownerID uuid.UUID, draft domain.MealDraft) (uuid.UUID, error) {
	mealID := uuid.New()

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertMealQuery,
			mealID,
			ownerID,
			draft.MealDate(),
			draft.Description(),
		); err != nil {
			return fmt.Errorf("insert meal: %w", err)
		}

		return insertComponents(ctx, tx, mealID, draft.Components())
	})
	if err != nil {
		wrapped := r.wrap("failed to create meal", err)
		if !isDomainError(wrapped) {
			r.logger.Error("failed to create meal",
				slog.String("user_id", ownerID.String()),
				slog.String("error", err.Error()),
			)
		}
		return uuid.Nil, wrapped
	}

	return mealID, nil
}

// List returns the owner's meals, newest first, with summed calories. The
// component rows for all meals are fetched in a single query.
func (r *PostgresMealRepository) List(ctx context.Context, ownerID uuid.UUID) ([]domain.MealSummary, error) {
	query := `
		SELECT meal_id, meal_date, description
		FROM meals
		WHERE user_id = $1
		ORDER BY meal_date DESC, meal_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		r.logger.Error("failed to list meals", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}
	defer rows.Close()

	meals := []domain.MealSummary{}
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var (
			m    domain.MealSummary
			desc sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.MealDate, &desc); err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		m.Description = nullableString(desc)
		index[m.ID] = len(meals)
		meals = append(meals, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}

	if len(meals) == 0 {
		return meals, nil
	}

	ids := make([]string, 0, len(meals))
	for _, m := range meals {
		ids = append(ids, m.ID.String())
	}

	calRows, err := r.db.QueryContext(ctx,
		`SELECT meal_id, calories FROM meal_components WHERE meal_id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		r.logger.Error("failed to load meal calories", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}
	defer calRows.Close()

	for calRows.Next() {
		var (
			mealID   uuid.UUID
			calories sql.NullString
		)
		if err := calRows.Scan(&mealID, &calories); err != nil {
			return nil, fmt.Errorf("failed to scan component: %w", err)
		}
		if i, ok := index[mealID]; ok {
			meals[i].TotalCalories += coerceNumeric(calories)
		}
	}
	if err := calRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}

	return meals, nil
}

// Get returns one meal with its components in submitted order
func (r *PostgresMealRepository) Get(ctx context.Context, ownerID, mealID uuid.UUID) (*domain.MealDetail, error) {
	query := `
		SELECT meal_id, user_id, meal_date, description, created_at, updated_at
		FROM meals
		WHERE meal_id = $1 AND user_id = $2
	`

	detail := &domain.MealDetail{}
	var desc sql.NullString
	err := r.db.QueryRowContext(ctx, query, mealID, ownerID).Scan(
		&detail.ID,
		&detail.UserID,
		&detail.MealDate,
		&desc,
		&detail.CreatedAt,
		&detail.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("meal %w", domain.ErrNotFound)
		}
		r.logger.Error("failed to get meal", slog.String("meal_id", mealID.String()), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get meal: %w", err)
	}
	detail.Description = nullableString(desc)

	rows, err := r.db.QueryContext(ctx, `
		SELECT component_id, name, calories, fat_g, protein_g, carbs_g
		FROM meal_components
		WHERE meal_id = $1
		ORDER BY position ASC, component_id ASC
	`, mealID)
	if err != nil {
		return nil, fmt.Errorf("failed to get meal components: %w", err)
	}
	defer rows.Close()

	detail.Components = []domain.MealComponent{}
	for rows.Next() {
		var c domain.MealComponent
		var calories, fat, protein, carbs sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &calories, &fat, &protein, &carbs); err != nil {
			return nil, fmt.Errorf("failed to scan component: %w", err)
		}
		c.Calories = coerceNumeric(calories)
		c.FatG = coerceNumeric(fat)
		c.ProteinG = coerceNumeric(protein)
		c.CarbsG = coerceNumeric(carbs)
		detail.Components = append(detail.Components, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get meal components: %w", err)
	}

	return detail, nil
}

// Update locks the owner's meal, overwrites its header and replaces the
// component set. Nothing is written unless every step succeeds.
func (r *PostgresMealRepository) Update(ctx context.Context, ownerID, mealID uuid.UUID, draft domain.MealDraft) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockOwnedMeal(ctx, tx, ownerID, mealID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE meals
			SET meal_date = $1, description = $2, updated_at = NOW()
			WHERE meal_id = $3
		`, draft.MealDate(), draft.Description(), mealID); err != nil {
			return fmt.Errorf("update meal: %w", err)
		}

		if _, err := tx.ExecContext(ctx, deleteComponentsQuery, mealID); err != nil {
			return fmt.Errorf("delete components: %w", err)
		}

		return insertComponents(ctx, tx, mealID, draft.Components())
	})
	if err != nil {
		if !isDomainError(err) {
			r.logger.Error("failed to update meal", slog.String("meal_id", mealID.String()), slog.String("error", err.Error()))
		}
		return r.wrap("failed to update meal", err)
	}

	return nil
}

// Delete locks the owner's meal and removes it with its components
func (r *PostgresMealRepository) Delete(ctx context.Context, ownerID, mealID uuid.UUID) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockOwnedMeal(ctx, tx, ownerID, mealID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, deleteComponentsQuery, mealID); err != nil {
			return fmt.Errorf("delete components: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM meals WHERE meal_id = $1 AND user_id = $2`,
			mealID, ownerID,
		); err != nil {
			return fmt.Errorf("delete meal: %w", err)
		}
		return nil
	})
	if err != nil {
		if !isDomainError(err) {
			r.logger.Error("failed to delete meal", slog.String("meal_id", mealID.String()), slog.String("error", err.Error()))
		}
		return r.wrap("failed to delete meal", err)
	}

	return nil
}

// withTx runs fn inside a transaction, rolling back when it fails
func (r *PostgresMealRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.logger.Warn("rollback failed", slog.String("error", rbErr.Error()))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// wrap returns domain errors as they are and adds context to anything else
func (r *PostgresMealRepository) wrap(msg string, err error) error {
	translated := translateError(err)
	if isDomainError(translated) {
		return translated
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func lockOwnedMeal(ctx context.Context, tx *sql.Tx, ownerID, mealID uuid.UUID) error {
	var id uuid.UUID
	err := tx.QueryRowContext(ctx, lockMealQuery, mealID, ownerID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("meal %w", domain.ErrNotFound)
		}
		return fmt.Errorf("lock meal: %w", err)
	}
	return nil
}

func insertComponents(ctx context.Context, tx *sql.Tx, mealID uuid.UUID, components []domain.MealComponent) error {
	for i, c := range components {
		if _, err := tx.ExecContext(ctx, insertComponentQuery,
			uuid.New(),
			mealID,
			i,
			c.Name,
			c.Calories,
			c.FatG,
			c.ProteinG,
			c.CarbsG,
		); err != nil {
			return fmt.Errorf("insert component %d: %w", i, err)
		}
	}
	return nil
}

// coerceNumeric parses a NUMERIC column read as text. NULL, NaN and
// unparseable values count as zero.
func coerceNumeric(v sql.NullString) float64 {
	if !v.Valid {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.String), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
