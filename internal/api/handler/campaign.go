package handler

import (
	"net/http"

	"github.com/bcnelson/campaign-agent-api/internal/api/apicontext"
	"github.com/bcnelson/campaign-agent-api/internal/api/response"
	"github.com/bcnelson/campaign-agent-api/internal/domain"
	"github.com/bcnelson/campaign-agent-api/internal/service"
)

// CampaignHandler handles campaign endpoints.
type CampaignHandler struct {
	campaigns *service.CampaignService
}

// NewCampaignHandler creates a new CampaignHandler.
func NewCampaignHandler(campaigns *service.CampaignService) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns}
}

// List lists the organization's campaigns, optionally by status.
func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	campaigns, err := h.campaigns.List(r.Context(), domain.CampaignFilter{
		OrganizationID: apicontext.OrganizationID(r.Context()),
		Status:         r.URL.Query().Get("status"),
		Limit:          opts.Limit,
		Offset:         opts.Offset,
	})
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, campaigns)
}

// Get returns a campaign with its assigned assets and audiences.
func (h *CampaignHandler) Get(w http.ResponseWriter, r *http.Request) {
	withID(w, r, "id", func(id string) {
		campaign, err := h.campaigns.Get(r.Context(), apicontext.OrganizationID(r.Context()), id)
		if err != nil {
			response.FromError(w, r, err)
			return
		}
		setETag(w, campaign.Version())
		response.JSON(w, r, http.StatusOK, campaign)
	})
}

// Create creates a campaign after checking the monthly budget.
func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCampaignRequest
	if err := decodeJSON(r, &req); err != nil {
		response.FromError(w, r, err)
		return
	}

	campaign, err := h.campaigns.Create(r.Context(), apicontext.OrganizationID(r.Context()), &req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	setETag(w, campaign.Version())
	response.JSON(w, r, http.StatusCreated, campaign)
}

// Update applies a partial update to a campaign. An If-Match header makes
// the update conditional on the campaign's current ETag.
func (h *CampaignHandler) Update(w http.ResponseWriter, r *http.Request) {
	withID(w, r, "id", func(id string) {
		var req domain.UpdateCampaignRequest
		if err := decodeJSON(r, &req); err != nil {
			response.FromError(w, r, err)
			return
		}
		req.ExpectedVersion = ifMatchVersion(r)

		campaign, err := h.campaigns.Update(r.Context(), apicontext.OrganizationID(r.Context()), id, &req)
		if err != nil {
			response.FromError(w, r, err)
			return
		}
		setETag(w, campaign.Version())
		response.JSON(w, r, http.StatusOK, campaign)
	})
}

// AssignAsset links an asset to a campaign.
func (h *CampaignHandler) AssignAsset(w http.ResponseWriter, r *http.Request) {
	withID(w, r, "id", func(id string) {
		var req domain.AssignAssetRequest
		if err := decodeJSON(r, &req); err != nil {
			response.FromError(w, r, err)
			return
		}

		assignment, err := h.campaigns.AssignAsset(r.Context(), apicontext.OrganizationID(r.Context()), id, req.AssetID)
		if err != nil {
			response.FromError(w, r, err)
			return
		}
		response.JSON(w, r, http.StatusOK, assignment)
	})
}

// AssignAudience links an audience to a campaign.
func (h *CampaignHandler) AssignAudience(w http.ResponseWriter, r *http.Request) {
	withID(w, r, "id", func(id string) {
		var req domain.AssignAudienceRequest
		if err := decodeJSON(r, &req); err != nil {
			response.FromError(w, r, err)
			return
		}

		assignment, err := h.campaigns.AssignAudience(r.Context(), apicontext.OrganizationID(r.Context()), id, req.AudienceID)
		if err != nil {
			response.FromError(w, r, err)
			return
		}
		response.JSON(w, r, http.StatusOK, assignment)
	})
}
