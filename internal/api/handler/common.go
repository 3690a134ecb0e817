package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bcnelson/campaign-agent-api/internal/api/response"
	"github.com/bcnelson/campaign-agent-api/internal/domain"
	"github.com/bcnelson/campaign-agent-api/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// decodeJSON decodes a single JSON object from the request body. Unknown
// fields are rejected so typos in agent tool calls surface as errors.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return validation.NewValidationError("body", "", fmt.Sprintf("must be at most %d bytes", maxErr.Limit))
		case errors.Is(err, io.EOF):
			return validation.NewValidationError("body", "", "is required")
		default:
			return validation.NewValidationError("body", "", "invalid JSON: "+err.Error())
		}
	}
	if dec.More() {
		return validation.NewValidationError("body", "", "must contain a single JSON object")
	}
	return nil
}

// pathID returns the named URL parameter if it is a UUID.
func pathID(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", validation.NewValidationError(name, raw, "must be a UUID")
	}
	return id.String(), nil
}

func listOptions(r *http.Request) (domain.ListOptions, error) {
	limit, offset, err := validation.ParsePagination(r.URL.Query())
	if err != nil {
		return domain.ListOptions{}, err
	}
	return domain.ListOptions{Limit: limit, Offset: offset}, nil
}

// withID runs fn with a validated path id, writing the error otherwise.
func withID(w http.ResponseWriter, r *http.Request, name string, fn func(id string)) {
	id, err := pathID(r, name)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	fn(id)
}
