package storage

import (
	"context"

	"github.com/bcnelson/campaign-agent-api/internal/domain"
)

// Storage defines the interface for the storage layer.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Close closes the storage connection.
	Close() error

	// API Keys
	CreateAPIKey(ctx context.Context, key *domain.APIKey) error
	GetAPIKey(ctx context.Context, id string) (*domain.APIKey, error)
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	ListAPIKeys(ctx context.Context, organizationID string) ([]*domain.APIKey, error)
	UpdateAPIKey(ctx context.Context, key *domain.APIKey) error
	DeleteAPIKey(ctx context.Context, id string) error
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error

	// Campaigns
	CreateCampaign(ctx context.Context, campaign *domain.Campaign) error
	GetCampaign(ctx context.Context, id string) (*domain.Campaign, error)
	ListCampaigns(ctx context.Context, filter domain.CampaignFilter) ([]*domain.Campaign, error)
	// ListCampaignsInRange returns the organization's campaigns whose
	// inclusive date range intersects [from, to], ordered by start date.
	ListCampaignsInRange(ctx context.Context, organizationID string, from, to domain.Date) ([]*domain.Campaign, error)
	UpdateCampaign(ctx context.Context, campaign *domain.Campaign) error

	// Assets
	CreateAsset(ctx context.Context, asset *domain.Asset) error
	GetAsset(ctx context.Context, id string) (*domain.Asset, error)
	ListAssets(ctx context.Context, organizationID string, opts domain.ListOptions) ([]*domain.Asset, error)

	// Audiences
	CreateAudience(ctx context.Context, audience *domain.Audience) error
	GetAudience(ctx context.Context, id string) (*domain.Audience, error)
	ListAudiences(ctx context.Context, organizationID string, opts domain.ListOptions) ([]*domain.Audience, error)

	// Assignments are idempotent.
	AssignAsset(ctx context.Context, campaignID, assetID string) error
	AssignAudience(ctx context.Context, campaignID, audienceID string) error
	ListCampaignAssetIDs(ctx context.Context, campaignID string) ([]string, error)
	ListCampaignAudienceIDs(ctx context.Context, campaignID string) ([]string, error)

	// Audit Log
	CreateAuditLog(ctx context.Context, entry *domain.AuditLogEntry) error

	// Transaction support
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Storage

	// LockOrganization serializes budget-affecting writes for one
	// organization until the transaction ends.
	LockOrganization(ctx context.Context, organizationID string) error

	Commit() error
	Rollback() error
}
