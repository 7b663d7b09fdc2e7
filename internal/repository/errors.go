package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/aryan0dhankhar/plateai/internal/domain"
)

// PostgreSQL SQLSTATE codes we translate
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"

	// class 22: value too long, numeric overflow, invalid text representation
	dataException pq.ErrorClass = "22"
)

// translateError maps driver errors onto the domain taxonomy. Errors it does
// not recognise are returned unchanged for the caller to wrap.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%w: %s", domain.ErrConflict, pqErr.Constraint)
		case foreignKeyViolation:
			return fmt.Errorf("%w: referenced row does not exist", domain.ErrNotFound)
		}
		if pqErr.Code.Class() == dataException {
			return domain.NewValidationError("", "value out of range for storage")
		}
	}

	return err
}

// isDomainError reports whether err already belongs to the taxonomy
func isDomainError(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrConflict) ||
		errors.Is(err, domain.ErrValidation)
}
