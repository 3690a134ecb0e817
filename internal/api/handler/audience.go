package handler

import (
	"net/http"

	"github.com/bcnelson/campaign-agent-api/internal/api/apicontext"
	"github.com/bcnelson/campaign-agent-api/internal/api/response"
	"github.com/bcnelson/campaign-agent-api/internal/domain"
	"github.com/bcnelson/campaign-agent-api/internal/service"
)

// AudienceHandler handles audience endpoints.
type AudienceHandler struct {
	audiences *service.AudienceService
}

// NewAudienceHandler creates a new AudienceHandler.
func NewAudienceHandler(audiences *service.AudienceService) *AudienceHandler {
	return &AudienceHandler{audiences: audiences}
}

func (h *AudienceHandler) List(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	audiences, err := h.audiences.List(r.Context(), apicontext.OrganizationID(r.Context()), opts)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, audiences)
}

func (h *AudienceHandler) Get(w http.ResponseWriter, r *http.Request) {
	withID(w, r, "id", func(id string) {
		audience, err := h.audiences.Get(r.Context(), apicontext.OrganizationID(r.Context()), id)
		if err != nil {
			response.FromError(w, r, err)
			return
		}
		response.JSON(w, r, http.StatusOK, audience)
	})
}

func (h *AudienceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAudienceRequest
	if err := decodeJSON(r, &req); err != nil {
		response.FromError(w, r, err)
		return
	}

	audience, err := h.audiences.Create(r.Context(), apicontext.OrganizationID(r.Context()), &req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusCreated, audience)
}
