package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/aryan0dhankhar/plateai/internal/domain"
)

// TokenIssuer issues and verifies access tokens bound to a user id
type TokenIssuer interface {
	GenerateToken(userID uuid.UUID) (string, error)
	ValidateToken(token string) (uuid.UUID, error)
}

// AuthService handles authentication operations
type AuthService struct {
	userRepo domain.UserRepository
	tokens   TokenIssuer
	cost     int
	logger   *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	userRepo domain.UserRepository,
	tokens TokenIssuer,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		cost:     bcrypt.DefaultCost,
		logger:   logger,
	}
}

// AuthResult is returned by Register and Authenticate
type AuthResult struct {
	UserID uuid.UUID
	Token  string
}

// Register creates a new user account and issues a token for it
func (s *AuthService) Register(ctx context.Context, name, username, password string) (*AuthResult, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domain.NewValidationError("name", "field required")
	}
	if username == "" {
		return nil, domain.NewValidationError("username", "field required")
	}
	if password == "" {
		return nil, domain.NewValidationError("password", "field required")
	}
	if err := domain.CheckLength("name", name); err != nil {
		return nil, err
	}
	if err := domain.CheckLength("username", username); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		// bcrypt rejects passwords over 72 bytes
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, domain.NewValidationError("password", "must be at most 72 bytes")
		}
		s.logger.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	user := &domain.User{
		Name:         name,
		Username:     username,
		PasswordHash: string(hash),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.logger.Info("registration with taken username", slog.String("username", username))
			return nil, err
		}
		if errors.Is(err, domain.ErrValidation) {
			return nil, err
		}
		s.logger.Error("failed to create user", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	token, err := s.issue(user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID.String()))

	return &AuthResult{UserID: user.ID, Token: token}, nil
}

// Authenticate verifies a username and password. An unknown username and a
// wrong password produce the same ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*AuthResult, error) {
	if username == "" || password == "" {
		return nil, domain.NewValidationError("credentials", "username and password required")
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Info("login attempt with unknown username")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("login failed with wrong password", slog.String("user_id", user.ID.String()))
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.issue(user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID.String()))

	return &AuthResult{UserID: user.ID, Token: token}, nil
}

// ResolveIdentity maps a bearer token to the user it was issued for. Every
// failure, including a valid token for a user that no longer exists, is
// reported as ErrUnauthorized.
func (s *AuthService) ResolveIdentity(ctx context.Context, token string) (*domain.User, error) {
	userID, err := s.tokens.ValidateToken(token)
	if err != nil {
		s.logger.Debug("token rejected", slog.String("error", err.Error()))
		return nil, domain.ErrUnauthorized
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}

	return user, nil
}

func (s *AuthService) issue(userID uuid.UUID) (string, error) {
	token, err := s.tokens.GenerateToken(userID)
	if err != nil {
		s.logger.Error("failed to sign token", slog.String("error", err.Error()))
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token, nil
}
