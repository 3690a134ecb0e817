package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bcnelson/campaign-agent-api/internal/budget"
	"github.com/bcnelson/campaign-agent-api/internal/domain"
	"github.com/bcnelson/campaign-agent-api/internal/metrics"
	"github.com/bcnelson/campaign-agent-api/internal/storage"
	"github.com/bcnelson/campaign-agent-api/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CampaignService handles campaign reads and budget-checked writes.
type CampaignService struct {
	store     storage.Storage
	validator *budget.Validator
	locker    *budget.OrgLocker
	now       func() time.Time
}

// NewCampaignService creates a new CampaignService.
func NewCampaignService(store storage.Storage, validator *budget.Validator) *CampaignService {
	return &CampaignService{
		store:     store,
		validator: validator,
		locker:    budget.NewOrgLocker(),
		now:       time.Now,
	}
}

// Create validates a campaign against the monthly budget and stores it.
// The budget check and the insert run under the organization's lock and
// inside one transaction, so concurrent writers cannot both pass.
func (s *CampaignService) Create(ctx context.Context, organizationID string, req *domain.CreateCampaignRequest) (*domain.Campaign, error) {
	if err := validation.ValidateCreateCampaign(req); err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	campaign := &domain.Campaign{
		ID:             uuid.New().String(),
		OrganizationID: organizationID,
		Name:           req.Name,
		Description:    req.Description,
		Budget:         req.Budget,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Status:         req.Status,
		Platforms:      domain.StringList(req.Platforms),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if campaign.Status == "" {
		campaign.Status = domain.CampaignStatusDraft
	}

	err := s.withOrgTx(ctx, organizationID, func(tx storage.Transaction) error {
		if campaign.CommitsBudget() {
			if err := s.checkBudget(ctx, tx, campaign, ""); err != nil {
				return err
			}
		}
		if err := tx.CreateCampaign(ctx, campaign); err != nil {
			return domain.NewDatabaseError("creating campaign", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("campaign_id", campaign.ID).
		Str("organization_id", organizationID).
		Int64("budget", campaign.Budget).
		Msg("Campaign created")

	return campaign, nil
}

// Update applies a partial update. The campaign's own stored budget is
// excluded from the check so it is never counted twice.
func (s *CampaignService) Update(ctx context.Context, organizationID, id string, req *domain.UpdateCampaignRequest) (*domain.Campaign, error) {
	var updated *domain.Campaign

	err := s.withOrgTx(ctx, organizationID, func(tx storage.Transaction) error {
		current, err := s.owned(ctx, tx, organizationID, id)
		if err != nil {
			return err
		}
		if req.ExpectedVersion != "" && req.ExpectedVersion != current.Version() {
			return domain.ErrStaleVersion
		}
		if err := validation.ValidateUpdateCampaign(current, req); err != nil {
			return err
		}

		next := *current
		applyCampaignUpdate(&next, req)
		next.UpdatedAt = s.now().UTC().Truncate(time.Microsecond)
		if !next.UpdatedAt.After(current.UpdatedAt) {
			// Keep versions distinct for back-to-back updates.
			next.UpdatedAt = current.UpdatedAt.Add(time.Microsecond)
		}

		if needsBudgetCheck(current, &next) {
			if err := s.checkBudget(ctx, tx, &next, current.ID); err != nil {
				return err
			}
		}
		if err := tx.UpdateCampaign(ctx, &next); err != nil {
			return domain.NewDatabaseError("updating campaign", err)
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("campaign_id", id).Str("organization_id", organizationID).Msg("Campaign updated")
	return updated, nil
}

func applyCampaignUpdate(c *domain.Campaign, req *domain.UpdateCampaignRequest) {
	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.Budget != nil {
		c.Budget = *req.Budget
	}
	if req.StartDate != nil {
		c.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		c.EndDate = *req.EndDate
	}
	if req.Status != nil {
		c.Status = *req.Status
	}
	if req.Platforms != nil {
		c.Platforms = domain.StringList(*req.Platforms)
	}
}

// needsBudgetCheck reports whether the update can raise any month's
// commitment. Shrinking a committed campaign in place never can.
func needsBudgetCheck(before, after *domain.Campaign) bool {
	if !after.CommitsBudget() {
		return false
	}
	if !before.CommitsBudget() || after.Budget > before.Budget {
		return true
	}
	return after.StartDate.Before(before.StartDate) || after.EndDate.After(before.EndDate)
}

func (s *CampaignService) checkBudget(ctx context.Context, reader budget.CampaignReader, c *domain.Campaign, excludeID string) error {
	result, err := s.validator.Validate(ctx, reader, budget.Request{
		OrganizationID:    c.OrganizationID,
		Budget:            c.Budget,
		StartDate:         c.StartDate,
		EndDate:           c.EndDate,
		ExcludeCampaignID: excludeID,
	})
	var exceeded *domain.BudgetExceededError
	if errors.As(err, &exceeded) {
		metrics.BudgetRejections.Inc()
		log.Info().
			Str("organization_id", c.OrganizationID).
			Str("affected_month", exceeded.AffectedMonth).
			Int64("current_total", exceeded.CurrentTotal).
			Int64("requested", exceeded.Requested).
			Msg("Campaign rejected by budget validator")
	}
	if err != nil {
		return err
	}
	for _, m := range result.Months {
		log.Debug().
			Str("organization_id", c.OrganizationID).
			Str("month", m.Month).
			Int64("committed", m.Committed).
			Int64("requested", m.Requested).
			Int64("available", m.Available).
			Msg("Budget month checked")
	}
	return nil
}

// withOrgTx runs fn in a transaction while holding the organization's
// in-process lock and, where the database supports it, its advisory lock.
func (s *CampaignService) withOrgTx(ctx context.Context, organizationID string, fn func(tx storage.Transaction) error) error {
	unlock, err := s.locker.Lock(ctx, organizationID)
	if err != nil {
		return err
	}
	defer unlock()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return domain.NewDatabaseError("beginning transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.LockOrganization(ctx, organizationID); err != nil {
		return domain.NewDatabaseError("locking organization", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return domain.NewDatabaseError("committing transaction", err)
	}
	return nil
}

// Get returns a campaign with its assignments. Campaigns of other
// organizations yield ErrForbidden.
func (s *CampaignService) Get(ctx context.Context, organizationID, id string) (*domain.Campaign, error) {
	campaign, err := s.owned(ctx, s.store, organizationID, id)
	if err != nil {
		return nil, err
	}

	campaign.AssetIDs, err = s.store.ListCampaignAssetIDs(ctx, id)
	if err != nil {
		return nil, domain.NewDatabaseError("listing campaign assets", err)
	}
	campaign.AudienceIDs, err = s.store.ListCampaignAudienceIDs(ctx, id)
	if err != nil {
		return nil, domain.NewDatabaseError("listing campaign audiences", err)
	}
	return campaign, nil
}

func (s *CampaignService) owned(ctx context.Context, store storage.Storage, organizationID, id string) (*domain.Campaign, error) {
	campaign, err := store.GetCampaign(ctx, id)
	if err != nil {
		return nil, domain.NewDatabaseError("getting campaign", err)
	}
	if campaign.OrganizationID != organizationID {
		return nil, fmt.Errorf("%w: campaign belongs to another organization", domain.ErrForbidden)
	}
	return campaign, nil
}

// List returns the organization's campaigns.
func (s *CampaignService) List(ctx context.Context, filter domain.CampaignFilter) ([]*domain.Campaign, error) {
	if filter.Status != "" {
		var errs validation.ValidationErrors
		validation.ValidateStatus(&errs, filter.Status)
		if err := errs.Err(); err != nil {
			return nil, err
		}
	}
	campaigns, err := s.store.ListCampaigns(ctx, filter)
	if err != nil {
		return nil, domain.NewDatabaseError("listing campaigns", err)
	}
	return campaigns, nil
}

// AssignAsset links an asset to a campaign. Both must belong to the
// organization. Assigning twice is not an error.
func (s *CampaignService) AssignAsset(ctx context.Context, organizationID, campaignID, assetID string) (*domain.Assignment, error) {
	if assetID == "" {
		return nil, validation.NewValidationError("asset_id", "", "is required")
	}
	if _, err := s.owned(ctx, s.store, organizationID, campaignID); err != nil {
		return nil, err
	}
	asset, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, domain.NewDatabaseError("getting asset", err)
	}
	if asset.OrganizationID != organizationID {
		return nil, fmt.Errorf("%w: asset belongs to another organization", domain.ErrForbidden)
	}

	if err := s.store.AssignAsset(ctx, campaignID, assetID); err != nil {
		return nil, domain.NewDatabaseError("assigning asset", err)
	}
	return &domain.Assignment{CampaignID: campaignID, AssetID: assetID}, nil
}

// AssignAudience links an audience to a campaign.
func (s *CampaignService) AssignAudience(ctx context.Context, organizationID, campaignID, audienceID string) (*domain.Assignment, error) {
	if audienceID == "" {
		return nil, validation.NewValidationError("audience_id", "", "is required")
	}
	if _, err := s.owned(ctx, s.store, organizationID, campaignID); err != nil {
		return nil, err
	}
	audience, err := s.store.GetAudience(ctx, audienceID)
	if err != nil {
		return nil, domain.NewDatabaseError("getting audience", err)
	}
	if audience.OrganizationID != organizationID {
		return nil, fmt.Errorf("%w: audience belongs to another organization", domain.ErrForbidden)
	}

	if err := s.store.AssignAudience(ctx, campaignID, audienceID); err != nil {
		return nil, domain.NewDatabaseError("assigning audience", err)
	}
	return &domain.Assignment{CampaignID: campaignID, AudienceID: audienceID}, nil
}

// BudgetStatus reports one month's commitment for the organization.
func (s *CampaignService) BudgetStatus(ctx context.Context, organizationID string, month budget.Month) (*budget.Status, error) {
	return s.validator.Status(ctx, s.store, organizationID, month)
}
