// Package response writes the JSON envelope shared by every endpoint.
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bcnelson/campaign-agent-api/internal/api/apicontext"
	"github.com/bcnelson/campaign-agent-api/internal/domain"
	"github.com/bcnelson/campaign-agent-api/internal/validation"
	"github.com/rs/zerolog/log"
)

// JSON writes a successful envelope.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, status, &domain.Envelope{Success: true, Data: data})
}

// NoContent writes an empty success response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes an error envelope.
func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	apicontext.SetError(r.Context(), message)
	write(w, status, &domain.Envelope{
		Success: false,
		Error: &domain.StandardError{
			Code:      code,
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			RequestID: apicontext.RequestID(r.Context()),
		},
	})
}

// FromError maps a service error onto the error envelope. Database and
// unexpected errors are logged and reported without their text.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verrs    validation.ValidationErrors
		verr     *validation.ValidationError
		exceeded *domain.BudgetExceededError
	)

	switch {
	case errors.As(err, &verrs):
		Error(w, r, http.StatusBadRequest, domain.ErrCodeValidationError, "Request validation failed", verrs.Details())
	case errors.As(err, &verr):
		Error(w, r, http.StatusBadRequest, domain.ErrCodeValidationError, verr.Error(),
			validation.ValidationErrors{verr}.Details())
	case errors.As(err, &exceeded):
		Error(w, r, http.StatusUnprocessableEntity, domain.ErrCodeBudgetExceeded, exceeded.Error(), exceeded.Details())
	case errors.Is(err, domain.ErrInvalidInput):
		Error(w, r, http.StatusBadRequest, domain.ErrCodeValidationError, err.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		Error(w, r, http.StatusNotFound, domain.ErrCodeResourceNotFound, "Resource not found", nil)
	case errors.Is(err, domain.ErrAlreadyExists):
		Error(w, r, http.StatusConflict, domain.ErrCodeResourceConflict, "Resource already exists", nil)
	case errors.Is(err, domain.ErrForbidden):
		Error(w, r, http.StatusForbidden, domain.ErrCodeForbidden, "Access to this resource is not allowed", nil)
	case errors.Is(err, domain.ErrInvalidAPIKey),
		errors.Is(err, domain.ErrAPIKeyRevoked),
		errors.Is(err, domain.ErrAPIKeyExpired),
		errors.Is(err, domain.ErrUnauthorized):
		Error(w, r, http.StatusUnauthorized, domain.ErrCodeUnauthorized, err.Error(), nil)
	case errors.Is(err, domain.ErrStaleVersion):
		Error(w, r, http.StatusPreconditionFailed, domain.ErrCodeVersionMismatch, "Resource has been modified", nil)
	case errors.Is(err, domain.ErrRateLimited):
		Error(w, r, http.StatusTooManyRequests, domain.ErrCodeRateLimitExceeded, "Rate limit exceeded", nil)
	case errors.Is(err, domain.ErrDatabase):
		log.Error().Err(err).Str("request_id", apicontext.RequestID(r.Context())).Msg("Database error")
		apicontext.SetError(r.Context(), err.Error())
		writeInternal(w, r, domain.ErrCodeDatabaseError, "A database error occurred")
	default:
		log.Error().Err(err).Str("request_id", apicontext.RequestID(r.Context())).Msg("Unhandled error")
		apicontext.SetError(r.Context(), err.Error())
		writeInternal(w, r, domain.ErrCodeInternalError, "An internal error occurred")
	}
}

// writeInternal keeps the detailed message recorded for the audit trail
// while the caller only sees a generic one.
func writeInternal(w http.ResponseWriter, r *http.Request, code, message string) {
	st := apicontext.State(r.Context())
	var detailed string
	if st != nil {
		detailed = st.ErrorMessage
	}
	Error(w, r, http.StatusInternalServerError, code, message, nil)
	if st != nil {
		st.ErrorMessage = detailed
	}
}

func write(w http.ResponseWriter, status int, env *domain.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		log.Debug().Err(err).Msg("failed to write response")
	}
}
