package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/plateai/internal/observability/requestid"
)

// Outcome values recorded with each audit entry
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDenied  = "denied"
)

// Logger writes audit entries for security-relevant actions
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger.With(slog.String("component", "audit"))}
}

func (al *Logger) LogAction(ctx context.Context, userID, action, resource, resourceID, status, details string) {
	al.logger.LogAttrs(ctx, slog.LevelInfo, "audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("user_id", userID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", requestid.FromContext(ctx)),
		slog.Time("timestamp", time.Now()),
	)
}

// LogMeal records a create, update or delete on a meal
func (al *Logger) LogMeal(ctx context.Context, userID uuid.UUID, action string, mealID uuid.UUID, status, details string) {
	resourceID := ""
	if mealID != uuid.Nil {
		resourceID = mealID.String()
	}
	al.LogAction(ctx, userID.String(), action, "meal", resourceID, status, details)
}

// LogAuth records a signup or signin. userID is empty on failure.
func (al *Logger) LogAuth(ctx context.Context, action, userID, status string) {
	al.LogAction(ctx, userID, action, "user", userID, status, "")
}

func (al *Logger) LogDenied(ctx context.Context, reason string) {
	al.LogAction(ctx, "", "access_denied", "api", "", StatusDenied, reason)
}
