package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// apiClient is a thin JSON client for the PlateAI HTTP API
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// apiError is a non-2xx response
type apiError struct {
	Status int
	Detail string
}

func (e *apiError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Detail, e.Status)
}

type authResult struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

type mealComponent struct {
	ComponentID string  `json:"component_id,omitempty"`
	Name        string  `json:"name"`
	Calories    float64 `json:"calories"`
	FatG        float64 `json:"fat_g"`
	ProteinG    float64 `json:"protein_g"`
	CarbsG      float64 `json:"carbs_g"`
}

type mealPayload struct {
	MealDate    string          `json:"meal_date"`
	Description *string         `json:"description,omitempty"`
	Components  []mealComponent `json:"components"`
}

type mealSummary struct {
	MealID        string    `json:"mealId"`
	MealDate      time.Time `json:"meal_date"`
	Description   *string   `json:"description"`
	TotalCalories float64   `json:"total_calories"`
}

type mealDetail struct {
	MealID      string          `json:"mealId"`
	MealDate    time.Time       `json:"meal_date"`
	Description *string         `json:"description"`
	Components  []mealComponent `json:"components"`
}

func (c *apiClient) signup(ctx context.Context, name, username, password string) (*authResult, error) {
	var out authResult
	err := c.do(ctx, http.MethodPost, "/api/auth/signup", map[string]string{
		"name": name, "username": username, "password": password,
	}, &out)
	return &out, err
}

func (c *apiClient) signin(ctx context.Context, username, password string) (*authResult, error) {
	var out authResult
	err := c.do(ctx, http.MethodPost, "/api/auth/signin", map[string]string{
		"username": username, "password": password,
	}, &out)
	return &out, err
}

func (c *apiClient) listMeals(ctx context.Context) ([]mealSummary, error) {
	var out []mealSummary
	err := c.do(ctx, http.MethodGet, "/api/meals", nil, &out)
	return out, err
}

func (c *apiClient) getMeal(ctx context.Context, id string) (*mealDetail, error) {
	var out mealDetail
	err := c.do(ctx, http.MethodGet, "/api/meals/"+id, nil, &out)
	return &out, err
}

func (c *apiClient) createMeal(ctx context.Context, meal mealPayload) (string, error) {
	var out struct {
		MealID string `json:"mealId"`
	}
	err := c.do(ctx, http.MethodPost, "/api/meals", meal, &out)
	return out.MealID, err
}

func (c *apiClient) deleteMeal(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/meals/"+id, nil, nil)
}

func (c *apiClient) analyze(ctx context.Context, description string) ([]mealComponent, error) {
	var out struct {
		Components []mealComponent `json:"components"`
	}
	err := c.do(ctx, http.MethodPost, "/api/meals/analyze", map[string]string{"description": description}, &out)
	return out.Components, err
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Detail string `json:"detail"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return &apiError{Status: resp.StatusCode, Detail: e.Detail}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
