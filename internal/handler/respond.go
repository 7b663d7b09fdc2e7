package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/plateai/internal/domain"
	"github.com/aryan0dhankhar/plateai/internal/observability/requestid"
	"github.com/aryan0dhankhar/plateai/internal/security/middleware"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// MessageResponse carries a plain status message
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

// writeError maps an error onto a status code and a message that is safe to
// show to the client. Anything outside the domain taxonomy is logged and
// reported as a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var ve *domain.ValidationError

	switch {
	case errors.As(err, &ve):
		writeDetail(w, http.StatusUnprocessableEntity, ve.Error())
	case errors.Is(err, domain.ErrValidation):
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request")
	case errors.Is(err, domain.ErrBadRequest):
		writeDetail(w, http.StatusBadRequest, "bad request")
	case errors.Is(err, domain.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeDetail(w, http.StatusUnauthorized, "Invalid username or password")
	case errors.Is(err, domain.ErrUnauthorized):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeDetail(w, http.StatusUnauthorized, middleware.UnauthorizedDetail)
	case errors.Is(err, domain.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "Meal not found")
	case errors.Is(err, domain.ErrConflict):
		writeDetail(w, http.StatusBadRequest, "Username already taken")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeDetail(w, http.StatusServiceUnavailable, "Meal analysis service is not available. Please check Google API configuration.")
	case errors.Is(err, domain.ErrEstimationFailed):
		writeDetail(w, http.StatusInternalServerError, "Failed to analyze meal. Please try again later.")
	default:
		log.Error("request failed",
			slog.String("request_id", requestid.FromContext(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeDetail(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads a single JSON document from the request body
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return domain.NewValidationError("body", "field required")
		case errors.As(err, &maxErr):
			return domain.NewValidationError("body", "too large")
		default:
			return domain.NewValidationError("body", "invalid JSON")
		}
	}
	return nil
}
