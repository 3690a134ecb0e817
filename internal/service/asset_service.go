package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bcnelson/campaign-agent-api/internal/domain"
	"github.com/bcnelson/campaign-agent-api/internal/storage"
	"github.com/bcnelson/campaign-agent-api/internal/validation"
	"github.com/google/uuid"
)

// AssetService handles creative assets.
type AssetService struct {
	store storage.Storage
	now   func() time.Time
}

// NewAssetService creates a new AssetService.
func NewAssetService(store storage.Storage) *AssetService {
	return &AssetService{store: store, now: time.Now}
}

func (s *AssetService) Create(ctx context.Context, organizationID string, req *domain.CreateAssetRequest) (*domain.Asset, error) {
	if err := validation.ValidateCreateAsset(req); err != nil {
		return nil, err
	}

	asset := &domain.Asset{
		ID:             uuid.New().String(),
		OrganizationID: organizationID,
		Name:           req.Name,
		Type:           req.Type,
		URL:            req.URL,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.CreateAsset(ctx, asset); err != nil {
		return nil, domain.NewDatabaseError("creating asset", err)
	}
	return asset, nil
}

func (s *AssetService) Get(ctx context.Context, organizationID, id string) (*domain.Asset, error) {
	asset, err := s.store.GetAsset(ctx, id)
	if err != nil {
		return nil, domain.NewDatabaseError("getting asset", err)
	}
	if asset.OrganizationID != organizationID {
		return nil, fmt.Errorf("%w: asset belongs to another organization", domain.ErrForbidden)
	}
	return asset, nil
}

func (s *AssetService) List(ctx context.Context, organizationID string, opts domain.ListOptions) ([]*domain.Asset, error) {
	assets, err := s.store.ListAssets(ctx, organizationID, opts)
	if err != nil {
		return nil, domain.NewDatabaseError("listing assets", err)
	}
	return assets, nil
}
