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

// AudienceService handles targeting audiences.
type AudienceService struct {
	store storage.Storage
	now   func() time.Time
}

// NewAudienceService creates a new AudienceService.
func NewAudienceService(store storage.Storage) *AudienceService {
	return &AudienceService{store: store, now: time.Now}
}

func (s *AudienceService) Create(ctx context.Context, organizationID string, req *domain.CreateAudienceRequest) (*domain.Audience, error) {
	if err := validation.ValidateCreateAudience(req); err != nil {
		return nil, err
	}

	criteria := domain.JSONMap(req.Criteria)
	if criteria == nil {
		criteria = domain.JSONMap{}
	}
	audience := &domain.Audience{
		ID:             uuid.New().String(),
		OrganizationID: organizationID,
		Name:           req.Name,
		Description:    req.Description,
		Criteria:       criteria,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.CreateAudience(ctx, audience); err != nil {
		return nil, domain.NewDatabaseError("creating audience", err)
	}
	return audience, nil
}

func (s *AudienceService) Get(ctx context.Context, organizationID, id string) (*domain.Audience, error) {
	audience, err := s.store.GetAudience(ctx, id)
	if err != nil {
		return nil, domain.NewDatabaseError("getting audience", err)
	}
	if audience.OrganizationID != organizationID {
		return nil, fmt.Errorf("%w: audience belongs to another organization", domain.ErrForbidden)
	}
	return audience, nil
}

func (s *AudienceService) List(ctx context.Context, organizationID string, opts domain.ListOptions) ([]*domain.Audience, error) {
	audiences, err := s.store.ListAudiences(ctx, organizationID, opts)
	if err != nil {
		return nil, domain.NewDatabaseError("listing audiences", err)
	}
	return audiences, nil
}
