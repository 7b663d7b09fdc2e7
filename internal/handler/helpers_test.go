package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/plateai/internal/domain"
	"github.com/aryan0dhankhar/plateai/internal/nutrition"
	"github.com/aryan0dhankhar/plateai/internal/security/audit"
	"github.com/aryan0dhankhar/plateai/internal/security/auth"
	"github.com/aryan0dhankhar/plateai/internal/security/middleware"
	"github.com/aryan0dhankhar/plateai/internal/service"
)

type memUserRepo struct {
	mu         sync.Mutex
	byID       map[uuid.UUID]*domain.User
	byUsername map[string]*domain.User
}

func (m *memUserRepo) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byUsername[u.Username]; taken {
		return domain.ErrConflict
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	m.byID[u.ID] = u
	m.byUsername[u.Username] = u
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byUsername[username]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

type memMealRepo struct {
	mu    sync.Mutex
	meals map[uuid.UUID]*domain.MealDetail
	calls int
}

func (m *memMealRepo) owned(owner, id uuid.UUID) (*domain.MealDetail, error) {
	meal, ok := m.meals[id]
	if !ok || meal.UserID != owner {
		return nil, domain.ErrNotFound
	}
	return meal, nil
}

func stored(draft domain.MealDraft) []domain.MealComponent {
	cs := draft.Components()
	for i := range cs {
		cs[i].ID = uuid.New()
	}
	return cs
}

func (m *memMealRepo) Create(_ context.Context, owner uuid.UUID, draft domain.MealDraft) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	id := uuid.New()
	now := time.Now().UTC()
	m.meals[id] = &domain.MealDetail{
		Meal:       domain.Meal{ID: id, UserID: owner, MealDate: draft.MealDate(), Description: draft.Description(), CreatedAt: now, UpdatedAt: now},
		Components: stored(draft),
	}
	return id, nil
}

func (m *memMealRepo) List(_ context.Context, owner uuid.UUID) ([]domain.MealSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	out := []domain.MealSummary{}
	for _, meal := range m.meals {
		if meal.UserID != owner {
			continue
		}
		s := domain.MealSummary{ID: meal.ID, MealDate: meal.MealDate, Description: meal.Description}
		for _, c := range meal.Components {
			s.TotalCalories += c.Calories
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MealDate.After(out[j].MealDate) })
	return out, nil
}

func (m *memMealRepo) Get(_ context.Context, owner, id uuid.UUID) (*domain.MealDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	meal, err := m.owned(owner, id)
	if err != nil {
		return nil, err
	}
	cp := *meal
	return &cp, nil
}

func (m *memMealRepo) Update(_ context.Context, owner, id uuid.UUID, draft domain.MealDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	meal, err := m.owned(owner, id)
	if err != nil {
		return err
	}
	meal.MealDate, meal.Description, meal.UpdatedAt = draft.MealDate(), draft.Description(), time.Now().UTC()
	meal.Components = stored(draft)
	return nil
}

func (m *memMealRepo) Delete(_ context.Context, owner, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if _, err := m.owned(owner, id); err != nil {
		return err
	}
	delete(m.meals, id)
	return nil
}

type stubGenerator struct {
	text string
	err  error
}

func (g stubGenerator) Generate(context.Context, string) (string, error) { return g.text, g.err }

type testServer struct {
	handler http.Handler
	meals   *memMealRepo
}

func newTestServer(t *testing.T, gen nutrition.Generator) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	tokens, err := auth.NewTokenManager("test-secret", "HS256", 30*time.Minute)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	users := &memUserRepo{byID: map[uuid.UUID]*domain.User{}, byUsername: map[string]*domain.User{}}
	meals := &memMealRepo{meals: map[uuid.UUID]*domain.MealDetail{}}
	auditLog := audit.NewLogger(log)

	authService := service.NewAuthService(users, tokens, log)
	mealService := service.NewMealService(meals, auditLog, log)
	estimator := nutrition.NewEstimator(gen, nil, time.Second, log)

	mux := http.NewServeMux()
	Routes{
		Auth:        NewAuthHandler(authService, auditLog, log),
		Meals:       NewMealsHandler(mealService, log),
		Analyze:     NewAnalyzeHandler(estimator, log),
		Health:      NewHealthHandler(nil, log),
		RequireUser: middleware.RequireUser(authService, auditLog, log),
	}.Register(mux)

	return &testServer{
		handler: middleware.ValidateContentType(log)(mux),
		meals:   meals,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) form(t *testing.T, path string, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// signup registers a user and returns its id and token
func (s *testServer) signup(t *testing.T, username string) (string, string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name": "Test " + username, "username": username, "password": "pw-" + username,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup %s: status %d body %s", username, rec.Code, rec.Body.String())
	}
	var resp AuthResponse
	decode(t, rec, &resp)
	return resp.UserID, resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func detailOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var e ErrorResponse
	decode(t, rec, &e)
	return e.Detail
}

func mealBody(date string, components ...map[string]any) map[string]any {
	if components == nil {
		components = []map[string]any{}
	}
	return map[string]any{
		"meal_date":   date,
		"description": "test meal",
		"components":  components,
	}
}

func component(name string, calories float64) map[string]any {
	return map[string]any{"name": name, "calories": calories, "fat_g": 1.5, "protein_g": 2, "carbs_g": 3}
}
