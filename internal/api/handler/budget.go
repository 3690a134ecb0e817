package handler

import (
	"net/http"
	"time"

	"github.com/bcnelson/campaign-agent-api/internal/api/apicontext"
	"github.com/bcnelson/campaign-agent-api/internal/api/response"
	"github.com/bcnelson/campaign-agent-api/internal/budget"
	"github.com/bcnelson/campaign-agent-api/internal/service"
	"github.com/bcnelson/campaign-agent-api/internal/validation"
)

// BudgetHandler reports monthly budget commitment.
type BudgetHandler struct {
	campaigns *service.CampaignService
	now       func() time.Time
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(campaigns *service.CampaignService) *BudgetHandler {
	return &BudgetHandler{campaigns: campaigns, now: time.Now}
}

// Status returns the commitment for ?month=YYYY-MM, defaulting to the
// current month.
func (h *BudgetHandler) Status(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	month := budget.Month{Year: now.Year(), Month: now.Month()}
	if raw := r.URL.Query().Get("month"); raw != "" {
		t, err := validation.ParseMonth(raw)
		if err != nil {
			response.FromError(w, r, err)
			return
		}
		month = budget.Month{Year: t.Year(), Month: t.Month()}
	}

	status, err := h.campaigns.BudgetStatus(r.Context(), apicontext.OrganizationID(r.Context()), month)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, status)
}
