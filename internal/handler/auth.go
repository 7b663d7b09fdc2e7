package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/plateai/internal/domain"
	"github.com/aryan0dhankhar/plateai/internal/observability/metrics"
	"github.com/aryan0dhankhar/plateai/internal/security/audit"
	"github.com/aryan0dhankhar/plateai/internal/service"
)

// Authenticator is the part of service.AuthService the auth endpoints use
type Authenticator interface {
	Register(ctx context.Context, name, username, password string) (*service.AuthResult, error)
	Authenticate(ctx context.Context, username, password string) (*service.AuthResult, error)
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService Authenticator
	audit       *audit.Logger
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService Authenticator, auditLog *audit.Logger, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}

	return &AuthHandler{
		authService: authService,
		audit:       auditLog,
		logger:      logger,
	}
}

// SignupRequest represents registration request
type SignupRequest struct {
	Name     *string `json:"name"`
	Username *string `json:"username"`
	Password *string `json:"password"`
}

// SigninRequest represents login request
type SigninRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

// AuthResponse is returned by signup and signin
type AuthResponse struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

// TokenResponse is the OAuth2 password-flow response
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Signup handles POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := requireFields(map[string]*string{"name": req.Name, "username": req.Username, "password": req.Password}); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.authService.Register(r.Context(), *req.Name, *req.Username, *req.Password)
	if err != nil {
		h.observe(r.Context(), "signup", "", err)
		writeError(w, r, h.logger, err)
		return
	}
	h.observe(r.Context(), "signup", result.UserID.String(), nil)

	writeJSON(w, http.StatusCreated, AuthResponse{UserID: result.UserID.String(), Token: result.Token})
}

// Signin handles POST /api/auth/signin
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := requireFields(map[string]*string{"username": req.Username, "password": req.Password}); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.authService.Authenticate(r.Context(), *req.Username, *req.Password)
	if err != nil {
		h.observe(r.Context(), "signin", "", err)
		writeError(w, r, h.logger, err)
		return
	}
	h.observe(r.Context(), "signin", result.UserID.String(), nil)

	writeJSON(w, http.StatusOK, AuthResponse{UserID: result.UserID.String(), Token: result.Token})
}

const tokenFormMemory = 64 << 10

// Token handles POST /api/auth/token, the form-encoded password flow used
// by OAuth2 clients.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	// accepts urlencoded and multipart bodies, as OAuth2 clients send either
	if err := r.ParseMultipartForm(tokenFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeDetail(w, http.StatusUnprocessableEntity, "Username and password required")
		return
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "Username and password required")
		return
	}

	result, err := h.authService.Authenticate(r.Context(), username, password)
	if err != nil {
		h.observe(r.Context(), "token", "", err)
		writeError(w, r, h.logger, err)
		return
	}
	h.observe(r.Context(), "token", result.UserID.String(), nil)

	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: result.Token, TokenType: "bearer"})
}

func (h *AuthHandler) observe(ctx context.Context, kind, userID string, err error) {
	result := "ok"
	status := audit.StatusSuccess
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUnauthorized):
		result, status = "rejected", audit.StatusDenied
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrValidation):
		result, status = "invalid", audit.StatusFailure
	default:
		result, status = "error", audit.StatusFailure
	}
	metrics.ObserveAuth(kind, result)
	h.audit.LogAuth(ctx, kind, userID, status)
}

// requireFields reports the first absent field in a stable order
func requireFields(fields map[string]*string) error {
	for _, name := range []string{"name", "username", "password"} {
		if v, ok := fields[name]; ok && v == nil {
			return domain.NewValidationError(name, "field required")
		}
	}
	return nil
}
