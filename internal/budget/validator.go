// Package budget enforces the per-organization monthly spending ceiling.
//
// A campaign's full budget counts toward every calendar month its date
// range touches; budgets are not prorated by days.
package budget

import (
	"context"
	"fmt"

	"github.com/bcnelson/campaign-agent-api/internal/domain"
)

// CampaignReader is the storage the validator reads from. Passing a
// transaction keeps the check and the following write consistent.
type CampaignReader interface {
	ListCampaignsInRange(ctx context.Context, organizationID string, from, to domain.Date) ([]*domain.Campaign, error)
}

// Request describes a proposed campaign budget.
type Request struct {
	OrganizationID string
	Budget         int64
	StartDate      domain.Date
	EndDate        domain.Date
	// ExcludeCampaignID is the campaign being updated; its stored
	// contribution is replaced by the proposal instead of added to it.
	ExcludeCampaignID string
}

// MonthUsage is the outcome of the check for one month.
type MonthUsage struct {
	Month     string `json:"month"`
	Limit     int64  `json:"limit"`
	Committed int64  `json:"committed"`
	Requested int64  `json:"requested"`
	Available int64  `json:"available"`
}

// Validation confirms that no touched month exceeds the ceiling.
type Validation struct {
	Months []MonthUsage `json:"months"`
}

// Status reports one month's commitment for the budget-status endpoint.
type Status struct {
	Month     string                        `json:"month"`
	Label     string                        `json:"label"`
	Limit     int64                         `json:"limit"`
	Committed int64                         `json:"committed"`
	Available int64                         `json:"available"`
	Campaigns []domain.CampaignContribution `json:"campaigns"`
}

// Validator checks proposals against a fixed monthly ceiling.
type Validator struct {
	limit int64
}

// NewValidator creates a Validator for the given monthly ceiling.
func NewValidator(limit int64) *Validator {
	return &Validator{limit: limit}
}

// Validate checks every month the proposal touches independently and
// returns a *domain.BudgetExceededError for the first month that would
// go over the ceiling. Storage failures are returned as database errors.
func (v *Validator) Validate(ctx context.Context, reader CampaignReader, req Request) (*Validation, error) {
	if req.Budget <= 0 {
		return nil, fmt.Errorf("%w: budget must be positive", domain.ErrInvalidInput)
	}
	months := MonthsBetween(req.StartDate, req.EndDate)
	if len(months) == 0 {
		return nil, fmt.Errorf("%w: end_date before start_date", domain.ErrInvalidInput)
	}

	campaigns, err := reader.ListCampaignsInRange(ctx, req.OrganizationID,
		months[0].First(), months[len(months)-1].Last())
	if err != nil {
		return nil, domain.NewDatabaseError("loading campaigns for budget check", err)
	}

	result := &Validation{Months: make([]MonthUsage, 0, len(months))}
	for _, m := range months {
		committed, contributors := v.commitment(campaigns, m, req.ExcludeCampaignID)
		if committed+req.Budget > v.limit {
			return nil, &domain.BudgetExceededError{
				AffectedMonth: m.Key(),
				CurrentTotal:  committed,
				Requested:     req.Budget,
				Available:     v.available(committed),
				Limit:         v.limit,
				Campaigns:     contributors,
			}
		}
		result.Months = append(result.Months, MonthUsage{
			Month:     m.Key(),
			Limit:     v.limit,
			Committed: committed,
			Requested: req.Budget,
			Available: v.available(committed + req.Budget),
		})
	}
	return result, nil
}

// Status reports the commitment for a single month.
func (v *Validator) Status(ctx context.Context, reader CampaignReader, organizationID string, m Month) (*Status, error) {
	campaigns, err := reader.ListCampaignsInRange(ctx, organizationID, m.First(), m.Last())
	if err != nil {
		return nil, domain.NewDatabaseError("loading campaigns for budget status", err)
	}

	committed, contributors := v.commitment(campaigns, m, "")
	return &Status{
		Month:     m.Key(),
		Label:     m.Label(),
		Limit:     v.limit,
		Committed: committed,
		Available: v.available(committed),
		Campaigns: contributors,
	}, nil
}

func (v *Validator) commitment(campaigns []*domain.Campaign, m Month, excludeID string) (int64, []domain.CampaignContribution) {
	first, last := m.First(), m.Last()
	var total int64
	contributors := []domain.CampaignContribution{}
	for _, c := range campaigns {
		if c.ID == excludeID || !c.CommitsBudget() || !c.Overlaps(first, last) {
			continue
		}
		total += c.Budget
		contributors = append(contributors, c.Contribution())
	}
	return total, contributors
}

func (v *Validator) available(committed int64) int64 {
	return max(v.limit-committed, 0)
}
