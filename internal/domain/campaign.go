package domain

import (
	"fmt"
	"time"
)

// Campaign statuses.
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusActive    = "active"
	CampaignStatusPaused    = "paused"
	CampaignStatusCompleted = "completed"
	CampaignStatusCancelled = "cancelled"
)

// CampaignStatuses lists every valid status.
var CampaignStatuses = []string{
	CampaignStatusDraft,
	CampaignStatusScheduled,
	CampaignStatusActive,
	CampaignStatusPaused,
	CampaignStatusCompleted,
	CampaignStatusCancelled,
}

// Platforms a campaign can run on.
var Platforms = []string{"facebook", "instagram", "google", "tiktok", "linkedin", "twitter", "youtube"}

// Campaign is an advertising campaign owned by an organization.
type Campaign struct {
	ID             string     `json:"id" db:"id"`
	OrganizationID string     `json:"organization_id" db:"organization_id"`
	Name           string     `json:"name" db:"name"`
	Description    string     `json:"description" db:"description"`
	Budget         int64      `json:"budget" db:"budget"`
	StartDate      Date       `json:"start_date" db:"start_date"`
	EndDate        Date       `json:"end_date" db:"end_date"`
	Status         string     `json:"status" db:"status"`
	Platforms      StringList `json:"platforms" db:"platforms"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`

	AssetIDs    []string `json:"asset_ids,omitempty" db:"-"`
	AudienceIDs []string `json:"audience_ids,omitempty" db:"-"`
}

// CommitsBudget reports whether the campaign counts toward the monthly
// ceiling. Cancelled campaigns release their budget.
func (c *Campaign) CommitsBudget() bool {
	return c.Status != CampaignStatusCancelled
}

// Overlaps reports whether the campaign runs on any day in [from, to].
// Both ranges are inclusive.
func (c *Campaign) Overlaps(from, to Date) bool {
	return !c.StartDate.After(to) && !c.EndDate.Before(from)
}

// Version identifies this revision of the campaign for If-Match checks.
func (c *Campaign) Version() string {
	return fmt.Sprintf("campaign-%s-%d", c.ID, c.UpdatedAt.UnixMicro())
}

// Contribution summarizes the campaign for budget reporting.
func (c *Campaign) Contribution() CampaignContribution {
	return CampaignContribution{
		ID:        c.ID,
		Name:      c.Name,
		Budget:    c.Budget,
		StartDate: c.StartDate,
		EndDate:   c.EndDate,
		Status:    c.Status,
	}
}

// CampaignFilter narrows a campaign listing.
type CampaignFilter struct {
	OrganizationID string
	Status         string
	Limit          int
	Offset         int
}

// CreateCampaignRequest is the request body for creating a campaign.
type CreateCampaignRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Budget      int64    `json:"budget"`
	StartDate   Date     `json:"start_date"`
	EndDate     Date     `json:"end_date"`
	Status      string   `json:"status"`
	Platforms   []string `json:"platforms"`
}

// UpdateCampaignRequest is the request body for updating a campaign.
type UpdateCampaignRequest struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Budget      *int64    `json:"budget,omitempty"`
	StartDate   *Date     `json:"start_date,omitempty"`
	EndDate     *Date     `json:"end_date,omitempty"`
	Status      *string   `json:"status,omitempty"`
	Platforms   *[]string `json:"platforms,omitempty"`

	// ExpectedVersion, when set, must match the stored campaign's Version.
	ExpectedVersion string `json:"-"`
}

// AssignAssetRequest links an asset to a campaign.
type AssignAssetRequest struct {
	AssetID string `json:"asset_id"`
}

// AssignAudienceRequest links an audience to a campaign.
type AssignAudienceRequest struct {
	AudienceID string `json:"audience_id"`
}

// Assignment is returned after linking a resource to a campaign.
type Assignment struct {
	CampaignID string `json:"campaign_id"`
	AssetID    string `json:"asset_id,omitempty"`
	AudienceID string `json:"audience_id,omitempty"`
}
