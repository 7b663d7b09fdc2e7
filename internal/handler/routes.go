package handler

import "net/http"

// Routes bundles the handlers mounted on the API mux
type Routes struct {
	Auth    *AuthHandler
	Meals   *MealsHandler
	Analyze http.Handler
	Health  *HealthHandler

	// RequireUser guards every /api/meals route
	RequireUser func(http.Handler) http.Handler
}

// Register mounts all API routes on mux
func (rt Routes) Register(mux *http.ServeMux) {
	protect := func(h http.HandlerFunc) http.Handler { return rt.RequireUser(h) }

	mux.HandleFunc("GET /{$}", rt.Health.Root)
	mux.HandleFunc("GET /healthz", rt.Health.Health)
	mux.HandleFunc("GET /readyz", rt.Health.Ready)

	mux.HandleFunc("POST /api/auth/signup", rt.Auth.Signup)
	mux.HandleFunc("POST /api/auth/token", rt.Auth.Token)
	mux.HandleFunc("POST /api/auth/signin", rt.Auth.Signin)

	mux.Handle("POST /api/meals", protect(rt.Meals.Create))
	mux.Handle("POST /api/meals/{$}", protect(rt.Meals.Create))
	mux.Handle("GET /api/meals", protect(rt.Meals.List))
	mux.Handle("GET /api/meals/{$}", protect(rt.Meals.List))
	mux.Handle("POST /api/meals/analyze", rt.RequireUser(rt.Analyze))
	mux.Handle("GET /api/meals/{mealId}", protect(rt.Meals.Get))
	mux.Handle("PUT /api/meals/{mealId}", protect(rt.Meals.Update))
	mux.Handle("DELETE /api/meals/{mealId}", protect(rt.Meals.Delete))
}
