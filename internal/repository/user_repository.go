package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/plateai/internal/domain"
)

// PostgresUserRepository implements domain.UserRepository using PostgreSQL
type PostgresUserRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresUserRepository creates a new user repository
func NewPostgresUserRepository(db *sql.DB, logger *slog.Logger) *PostgresUserRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUserRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new user. Username uniqueness is left to the table's
// UNIQUE constraint so concurrent sign-ups cannot both succeed.
func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (user_id, name, username, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	id := uuid.New()
	err := r.db.QueryRowContext(ctx, query,
		id,
		user.Name,
		user.Username,
		user.PasswordHash,
	).Scan(&user.CreatedAt)

	if err != nil {
		translated := translateError(err)
		if errors.Is(translated, domain.ErrConflict) {
			return fmt.Errorf("username already taken: %w", translated)
		}
		if errors.Is(translated, domain.ErrValidation) {
			return translated
		}
		r.logger.Error("failed to create user",
			slog.String("username", user.Username),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.ID = id
	return nil
}

// GetByID retrieves a user by ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `
		SELECT user_id, name, username, password_hash, created_at
		FROM users
		WHERE user_id = $1
	`

	return r.scanOne(ctx, query, id)
}

// GetByUsername retrieves a user by exact username
func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `
		SELECT user_id, name, username, password_hash, created_at
		FROM users
		WHERE username = $1
	`

	return r.scanOne(ctx, query, username)
}

func (r *PostgresUserRepository) scanOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	user := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %w", domain.ErrNotFound)
		}
		r.logger.Error("failed to get user", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}
