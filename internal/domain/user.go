package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User represents a registered account
type User struct {
	ID           uuid.UUID
	Name         string
	Username     string // Unique, matched exactly (no case folding)
	PasswordHash string // Bcrypt digest, never the plaintext
	CreatedAt    time.Time
}

// UserRepository defines data access for users
type UserRepository interface {
	// Create persists a new user and fills ID and CreatedAt. A taken
	// username fails with ErrConflict and persists nothing.
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}
