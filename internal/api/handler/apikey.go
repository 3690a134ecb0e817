package handler

import (
	"net/http"

	"github.com/bcnelson/campaign-agent-api/internal/api/response"
	"github.com/bcnelson/campaign-agent-api/internal/apikey"
	"github.com/bcnelson/campaign-agent-api/internal/domain"
	"github.com/go-chi/chi/v5"
)

// OrganizationResolver returns the organization a dashboard request acts for.
type OrganizationResolver func(r *http.Request) string

// APIKeyHandler handles dashboard API key management.
type APIKeyHandler struct {
	keys *apikey.Service
	org  OrganizationResolver
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(keys *apikey.Service, org OrganizationResolver) *APIKeyHandler {
	return &APIKeyHandler{keys: keys, org: org}
}

// Create issues a new API key. The raw key is only returned here.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAPIKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		response.FromError(w, r, err)
		return
	}

	resp, err := h.keys.Issue(r.Context(), h.org(r), &req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusCreated, resp)
}

// List lists the organization's API keys without their secrets.
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.List(r.Context(), h.org(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, keys)
}

// Update changes a key's name, permissions, expiry or rate limit.
func (h *APIKeyHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateAPIKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		response.FromError(w, r, err)
		return
	}

	key, err := h.keys.Update(r.Context(), h.org(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, key)
}

// Revoke disables a key without deleting its record.
func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	key, err := h.keys.Revoke(r.Context(), h.org(r), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, key)
}

// Delete deletes an API key.
func (h *APIKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.keys.Delete(r.Context(), h.org(r), chi.URLParam(r, "id")); err != nil {
		response.FromError(w, r, err)
		return
	}

	response.NoContent(w)
}
