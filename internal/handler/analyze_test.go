package handler

import (
	"errors"
	"net/http"
	"testing"
)

func TestAnalyzeUnconfigured(t *testing.T) {
	s := newTestServer(t, nil)
	_, token := s.signup(t, "alice")

	rec := s.do(t, http.MethodPost, "/api/meals/analyze", token, map[string]string{"description": "toast"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", rec.Code)
	}
}

func TestAnalyzeRejectsNonStringDescription(t *testing.T) {
	s := newTestServer(t, stubGenerator{text: `{"components":[]}`})
	_, token := s.signup(t, "alice")

	for _, body := range []any{
		map[string]any{"description": 42},
		map[string]any{"description": nil},
		map[string]any{},
	} {
		rec := s.do(t, http.MethodPost, "/api/meals/analyze", token, body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %v: status %d, want 400", body, rec.Code)
		}
		if d := detailOf(t, rec); d != "description must be a string" {
			t.Fatalf("detail = %q", d)
		}
	}
}

func TestAnalyzeReturnsComponents(t *testing.T) {
	s := newTestServer(t, stubGenerator{text: `{"components":[{"name":"Oatmeal","calories":150,"fat_g":3,"protein_g":5,"carbs_g":27}]}`})
	_, token := s.signup(t, "alice")

	rec := s.do(t, http.MethodPost, "/api/meals/analyze", token, map[string]string{"description": "oatmeal"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var resp AnalyzeResponse
	decode(t, rec, &resp)
	if len(resp.Components) != 1 || resp.Components[0].Name != "Oatmeal" || resp.Components[0].CarbsG != 27 {
		t.Fatalf("response = %+v", resp)
	}
}

func TestAnalyzeEmptyResult(t *testing.T) {
	s := newTestServer(t, stubGenerator{text: `{"components": []}`})
	_, token := s.signup(t, "alice")

	rec := s.do(t, http.MethodPost, "/api/meals/analyze", token, map[string]string{"description": "water"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if got := rec.Body.String(); got != "{\"components\":[]}\n" {
		t.Fatalf("body = %q", got)
	}
}

func TestAnalyzeFailureIs500(t *testing.T) {
	for name, gen := range map[string]stubGenerator{
		"upstream error": {err: errors.New("quota")},
		"garbage":        {text: "no idea"},
	} {
		t.Run(name, func(t *testing.T) {
			s := newTestServer(t, gen)
			_, token := s.signup(t, "alice")

			rec := s.do(t, http.MethodPost, "/api/meals/analyze", token, map[string]string{"description": "soup"})
			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status %d, want 500", rec.Code)
			}
			if d := detailOf(t, rec); d != "Failed to analyze meal. Please try again later." {
				t.Fatalf("detail = %q", d)
			}
		})
	}
}
