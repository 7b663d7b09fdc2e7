package database

import (
	"context"
	"fmt"
)

// schema is applied in order at startup. Every statement is idempotent.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	`CREATE TABLE IF NOT EXISTS users (
		user_id       UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name          VARCHAR(255) NOT NULL,
		username      VARCHAR(255) NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS meals (
		meal_id     UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id     UUID NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
		meal_date   TIMESTAMPTZ NOT NULL,
		description TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_meals_user_date ON meals (user_id, meal_date DESC)`,
	`CREATE TABLE IF NOT EXISTS meal_components (
		component_id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		meal_id      UUID NOT NULL REFERENCES meals(meal_id) ON DELETE CASCADE,
		position     INTEGER NOT NULL DEFAULT 0,
		name         VARCHAR(255) NOT NULL,
		calories     NUMERIC(10,2) NOT NULL CHECK (calories >= 0),
		fat_g        NUMERIC(10,2) NOT NULL CHECK (fat_g >= 0),
		protein_g    NUMERIC(10,2) NOT NULL CHECK (protein_g >= 0),
		carbs_g      NUMERIC(10,2) NOT NULL CHECK (carbs_g >= 0)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_meal_components_meal ON meal_components (meal_id, position)`,
}

// EnsureSchema creates the tables the service needs if they are missing
func (cp *ConnectionPool) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := cp.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}

	cp.logger.Info("database schema ready", "statements", len(schema))
	return nil
}
