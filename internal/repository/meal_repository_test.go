package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/aryan0dhankhar/plateai/internal/domain"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func lunchDraft(t *testing.T) domain.MealDraft {
	t.Helper()
	desc := "lunch"
	draft, err := domain.NewMeal(
		time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		&desc,
		[]domain.MealComponent{
			{Name: "rice", Macros: domain.Macros{Calories: 200, FatG: 1, ProteinG: 4, CarbsG: 45}},
			{Name: "chicken", Macros: domain.Macros{Calories: 165, FatG: 3.6, ProteinG: 31}},
		},
	)
	if err != nil {
		t.Fatalf("NewMeal: %v", err)
	}
	return draft
}

func TestMealCreateCommitsMealAndComponents(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresMealRepository(db, nil)
	owner := uuid.New()
	draft := lunchDraft(t)

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO meals")).
		WithArgs(sqlmock.AnyArg(), owner, draft.MealDate(), "lunch").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO meal_components")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 0, "rice", 200.0, 1.0, 4.0, 45.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO meal_components")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 1, "chicken", 165.0, 3.6, 31.0, 0.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := repo.Create(context.Background(), owner, draft)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("expected a meal id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMealCreateRollsBackOnComponentFailure(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresMealRepository(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO meals")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO meal_components")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO meal_components")).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	if _, err := repo.Create(context.Background(), uuid.New(), lunchDraft(t)); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMealCreateOverflowIsValidation(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresMealRepository(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO meals")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO meal_components")).WillReturnError(&pq.Error{Code: "22003", Message: "numeric field overflow"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), uuid.New(), lunchDraft(t))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMealListSumsCaloriesAndCoercesUnreadable(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresMealRepository(db, nil)
	owner := uuid.New()
	newer, older := uuid.New(), uuid.New()
	desc := "dinner"

	mock.ExpectQuery(`SELECT meal_id, meal_date, description\s+FROM meals\s+WHERE user_id = \$1\s+ORDER BY meal_date DESC, meal_id ASC`).
		WithArgs(owner).
		WillReturnRows(sqlmock.NewRows([]string{"meal_id", "meal_date", "description"}).
			AddRow(newer.String(), time.Date(2024, 5, 2, 19, 0, 0, 0, time.UTC), desc).
			AddRow(older.String(), time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), nil))
	mock.ExpectQuery(q("WHERE meal_id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"meal_id", "calories"}).
			AddRow(newer.String(), "300.50").
			AddRow(newer.String(), "NaN").
			AddRow(newer.String(), "199.50").
			AddRow(older.String(), nil))

	meals, err := repo.List(context.Background(), owner)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(meals) != 2 {
		t.Fatalf("got %d meals, want 2", len(meals))
	}
	if meals[0].ID != newer || meals[0].TotalCalories != 500 {
		t.Errorf("first meal = %+v", meals[0])
	}
	if meals[0].Description == nil || *meals[0].Description != "dinner" {
		t.Errorf("description = %v", meals[0].Description)
	}
	if meals[1].ID != older || meals[1].TotalCalories != 0 || meals[1].Description != nil {
		t.Errorf("second meal = %+v", meals[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMealListEmpty(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresMealRepository(db, nil)

	mock.ExpectQuery(q("SELECT meal_id, meal_date, description")).
		WillReturnRows(sqlmock.NewRows([]string{"meal_id", "meal_date", "description"}))

	meals, err := repo.List(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if meals == nil || len(meals) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", meals)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMealGetReturnsComponentsInOrder(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresMealRepository(db, nil)
	owner, mealID := uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(q("FROM meals")).
		WithArgs(mealID, owner).
		WillReturnRows(sqlmock.NewRows([]string{"meal_id", "user_id", "meal_date", "description", "created_at", "updated_at"}).
			AddRow(mealID.String(), owner.String(), now, "lunch", now, now))
	mock.ExpectQuery(q("FROM meal_components")).
		WithArgs(mealID).
		WillReturnRows(sqlmock.NewRows([]string{"component_id", "name", "calories", "fat_g", "protein_g", "carbs_g"}).
			AddRow(uuid.NewString(), "rice", "200.00", "1.00", "4.00", "45.00").
			AddRow(uuid.NewString(), "chicken", "165.00", "3.60", "31.00", "0.00"))

	meal, err := repo.Get(context.Background(), owner, mealID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(meal.Components) != 2 || meal.Components[0].Name != "rice" || meal.Components[1].FatG != 3.6 {
		t.Fatalf("components = %+v", meal.Components)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMealGetForeignIsNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresMealRepository(db, nil)

	mock.ExpectQuery(q("FROM meals")).
		WillReturnRows(sqlmock.NewRows([]string{"meal_id", "user_id", "meal_date", "description", "created_at", "updated_at"}))

	if _, err := repo.Get(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMealUpdateReplacesComponents(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresMealRepository(db, nil)
	owner, mealID := uuid.New(), uuid.New()
	draft := lunchDraft(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).
		WithArgs(mealID, owner).
		WillReturnRows(sqlmock.NewRows([]string{"meal_id"}).AddRow(mealID.String()))
	mock.ExpectExec(q("UPDATE meals")).
		WithArgs(draft.MealDate(), "lunch", mealID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("DELETE FROM meal_components")).
		WithArgs(mealID).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(q("INSERT INTO meal_components")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO meal_components")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Update(context.Background(), owner, mealID, draft); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMealUpdateForeignIsNotFoundAndWritesNothing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresMealRepository(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).WillReturnRows(sqlmock.NewRows([]string{"meal_id"}))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), uuid.New(), uuid.New(), lunchDraft(t))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMealUpdateRollsBackWhenInsertFails(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresMealRepository(db, nil)
	mealID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).WillReturnRows(sqlmock.NewRows([]string{"meal_id"}).AddRow(mealID.String()))
	mock.ExpectExec(q("UPDATE meals")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("DELETE FROM meal_components")).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(q("INSERT INTO meal_components")).WillReturnError(errors.New("check constraint"))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), uuid.New(), mealID, lunchDraft(t))
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected store error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMealDeleteRemovesComponentsThenMeal(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresMealRepository(db, nil)
	owner, mealID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).
		WithArgs(mealID, owner).
		WillReturnRows(sqlmock.NewRows([]string{"meal_id"}).AddRow(mealID.String()))
	mock.ExpectExec(q("DELETE FROM meal_components")).WithArgs(mealID).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(q("DELETE FROM meals")).WithArgs(mealID, owner).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Delete(context.Background(), owner, mealID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMealDeleteMissingIsNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresMealRepository(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).WillReturnRows(sqlmock.NewRows([]string{"meal_id"}))
	mock.ExpectRollback()

	if err := repo.Delete(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCoerceNumeric(t *testing.T) {
	cases := []struct {
		in   sql.NullString
		want float64
	}{
		{sql.NullString{String: "12.50", Valid: true}, 12.5},
		{sql.NullString{String: " 3 ", Valid: true}, 3},
		{sql.NullString{String: "NaN", Valid: true}, 0},
		{sql.NullString{String: "abc", Valid: true}, 0},
		{sql.NullString{}, 0},
	}
	for _, c := range cases {
		if got := coerceNumeric(c.in); got != c.want {
			t.Errorf("coerceNumeric(%+v) = %v, want %v", c.in, got, c.want)
		}
	}
}
