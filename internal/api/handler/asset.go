package handler

import (
	"net/http"

	"github.com/bcnelson/campaign-agent-api/internal/api/apicontext"
	"github.com/bcnelson/campaign-agent-api/internal/api/response"
	"github.com/bcnelson/campaign-agent-api/internal/domain"
	"github.com/bcnelson/campaign-agent-api/internal/service"
)

// AssetHandler handles asset endpoints.
type AssetHandler struct {
	assets *service.AssetService
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(assets *service.AssetService) *AssetHandler {
	return &AssetHandler{assets: assets}
}

func (h *AssetHandler) List(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	assets, err := h.assets.List(r.Context(), apicontext.OrganizationID(r.Context()), opts)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, assets)
}

func (h *AssetHandler) Get(w http.ResponseWriter, r *http.Request) {
	withID(w, r, "id", func(id string) {
		asset, err := h.assets.Get(r.Context(), apicontext.OrganizationID(r.Context()), id)
		if err != nil {
			response.FromError(w, r, err)
			return
		}
		response.JSON(w, r, http.StatusOK, asset)
	})
}

func (h *AssetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAssetRequest
	if err := decodeJSON(r, &req); err != nil {
		response.FromError(w, r, err)
		return
	}

	asset, err := h.assets.Create(r.Context(), apicontext.OrganizationID(r.Context()), &req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusCreated, asset)
}
