package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/bcnelson/campaign-agent-api/internal/domain"
	"github.com/bcnelson/campaign-agent-api/internal/storage"
)

// Store is an in-memory implementation of the storage interface for testing.
// Records are copied on the way in and out so callers never share state
// with the store.
type Store struct {
	mu sync.RWMutex

	apiKeys           map[string]*domain.APIKey
	campaigns         map[string]*domain.Campaign
	assets            map[string]*domain.Asset
	audiences         map[string]*domain.Audience
	campaignAssets    map[string][]string // key: campaign id
	campaignAudiences map[string][]string // key: campaign id
	auditLogs         []*domain.AuditLogEntry
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		apiKeys:           make(map[string]*domain.APIKey),
		campaigns:         make(map[string]*domain.Campaign),
		assets:            make(map[string]*domain.Asset),
		audiences:         make(map[string]*domain.Audience),
		campaignAssets:    make(map[string][]string),
		campaignAudiences: make(map[string][]string),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return &Tx{Store: s}, nil
}

// Tx is a no-op transaction for the in-memory store. Callers serialize
// budget writes in process, so LockOrganization has nothing to do.
type Tx struct {
	*Store
}

func (t *Tx) Commit() error   { return nil }
func (t *Tx) Rollback() error { return nil }
func (t *Tx) Close() error    { return nil }
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, domain.ErrInvalidInput
}
func (t *Tx) LockOrganization(ctx context.Context, organizationID string) error { return nil }

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

// ============================================
// API Keys
// ============================================

func copyAPIKey(k *domain.APIKey) *domain.APIKey {
	c := *k
	if k.Permissions != nil {
		c.Permissions = make(domain.Permissions, len(k.Permissions))
		for r, actions := range k.Permissions {
			c.Permissions[r] = slices.Clone(actions)
		}
	}
	return &c
}

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.apiKeys[key.ID]; exists {
		return domain.ErrAlreadyExists
	}
	for _, k := range s.apiKeys {
		if k.KeyHash == key.KeyHash {
			return domain.ErrAlreadyExists
		}
	}
	s.apiKeys[key.ID] = copyAPIKey(key)
	return nil
}

func (s *Store) GetAPIKey(ctx context.Context, id string) (*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, exists := s.apiKeys[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	return copyAPIKey(key), nil
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range s.apiKeys {
		if key.KeyHash == keyHash {
			return copyAPIKey(key), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListAPIKeys(ctx context.Context, organizationID string) ([]*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]*domain.APIKey, 0)
	for _, key := range s.apiKeys {
		if key.OrganizationID == organizationID {
			keys = append(keys, copyAPIKey(key))
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].CreatedAt.After(keys[j].CreatedAt)
	})
	return keys, nil
}

func (s *Store) UpdateAPIKey(ctx context.Context, key *domain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.apiKeys[key.ID]; !exists {
		return domain.ErrNotFound
	}
	key.UpdatedAt = time.Now()
	s.apiKeys[key.ID] = copyAPIKey(key)
	return nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.apiKeys[id]; !exists {
		return domain.ErrNotFound
	}
	delete(s.apiKeys, id)
	return nil
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, exists := s.apiKeys[id]
	if !exists {
		return domain.ErrNotFound
	}
	now := time.Now()
	key.LastUsedAt = &now
	return nil
}

// ============================================
// Campaigns
// ============================================

func copyCampaign(c *domain.Campaign) *domain.Campaign {
	out := *c
	out.Platforms = slices.Clone(c.Platforms)
	out.AssetIDs = nil
	out.AudienceIDs = nil
	return &out
}

func (s *Store) CreateCampaign(ctx context.Context, campaign *domain.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.campaigns[campaign.ID]; exists {
		return domain.ErrAlreadyExists
	}
	s.campaigns[campaign.ID] = copyCampaign(campaign)
	return nil
}

func (s *Store) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	campaign, exists := s.campaigns[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	return copyCampaign(campaign), nil
}

func (s *Store) ListCampaigns(ctx context.Context, filter domain.CampaignFilter) ([]*domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	campaigns := make([]*domain.Campaign, 0)
	for _, c := range s.campaigns {
		if c.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		campaigns = append(campaigns, copyCampaign(c))
	}
	sort.Slice(campaigns, func(i, j int) bool {
		return campaigns[i].CreatedAt.After(campaigns[j].CreatedAt)
	})
	return paginate(campaigns, filter.Limit, filter.Offset), nil
}

func (s *Store) ListCampaignsInRange(ctx context.Context, organizationID string, from, to domain.Date) ([]*domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	campaigns := make([]*domain.Campaign, 0)
	for _, c := range s.campaigns {
		if c.OrganizationID == organizationID && c.Overlaps(from, to) {
			campaigns = append(campaigns, copyCampaign(c))
		}
	}
	sort.Slice(campaigns, func(i, j int) bool {
		if campaigns[i].StartDate.Equal(campaigns[j].StartDate.Time) {
			return campaigns[i].ID < campaigns[j].ID
		}
		return campaigns[i].StartDate.Before(campaigns[j].StartDate)
	})
	return campaigns, nil
}

func (s *Store) UpdateCampaign(ctx context.Context, campaign *domain.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.campaigns[campaign.ID]; !exists {
		return domain.ErrNotFound
	}
	if campaign.UpdatedAt.IsZero() {
		campaign.UpdatedAt = time.Now()
	}
	s.campaigns[campaign.ID] = copyCampaign(campaign)
	return nil
}

// ============================================
// Assets
// ============================================

func (s *Store) CreateAsset(ctx context.Context, asset *domain.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.assets[asset.ID]; exists {
		return domain.ErrAlreadyExists
	}
	c := *asset
	s.assets[asset.ID] = &c
	return nil
}

func (s *Store) GetAsset(ctx context.Context, id string) (*domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	asset, exists := s.assets[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	c := *asset
	return &c, nil
}

func (s *Store) ListAssets(ctx context.Context, organizationID string, opts domain.ListOptions) ([]*domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assets := make([]*domain.Asset, 0)
	for _, a := range s.assets {
		if a.OrganizationID == organizationID {
			c := *a
			assets = append(assets, &c)
		}
	}
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].CreatedAt.After(assets[j].CreatedAt)
	})
	return paginate(assets, opts.Limit, opts.Offset), nil
}

// ============================================
// Audiences
// ============================================

func copyAudience(a *domain.Audience) *domain.Audience {
	c := *a
	if a.Criteria != nil {
		c.Criteria = make(domain.JSONMap, len(a.Criteria))
		for k, v := range a.Criteria {
			c.Criteria[k] = v
		}
	}
	return &c
}

func (s *Store) CreateAudience(ctx context.Context, audience *domain.Audience) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.audiences[audience.ID]; exists {
		return domain.ErrAlreadyExists
	}
	s.audiences[audience.ID] = copyAudience(audience)
	return nil
}

func (s *Store) GetAudience(ctx context.Context, id string) (*domain.Audience, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	audience, exists := s.audiences[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	return copyAudience(audience), nil
}

func (s *Store) ListAudiences(ctx context.Context, organizationID string, opts domain.ListOptions) ([]*domain.Audience, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	audiences := make([]*domain.Audience, 0)
	for _, a := range s.audiences {
		if a.OrganizationID == organizationID {
			audiences = append(audiences, copyAudience(a))
		}
	}
	sort.Slice(audiences, func(i, j int) bool {
		return audiences[i].CreatedAt.After(audiences[j].CreatedAt)
	})
	return paginate(audiences, opts.Limit, opts.Offset), nil
}

// ============================================
// Assignments
// ============================================

func (s *Store) AssignAsset(ctx context.Context, campaignID, assetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.campaigns[campaignID]; !ok {
		return domain.ErrNotFound
	}
	if _, ok := s.assets[assetID]; !ok {
		return domain.ErrNotFound
	}
	if !slices.Contains(s.campaignAssets[campaignID], assetID) {
		s.campaignAssets[campaignID] = append(s.campaignAssets[campaignID], assetID)
	}
	return nil
}

func (s *Store) AssignAudience(ctx context.Context, campaignID, audienceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.campaigns[campaignID]; !ok {
		return domain.ErrNotFound
	}
	if _, ok := s.audiences[audienceID]; !ok {
		return domain.ErrNotFound
	}
	if !slices.Contains(s.campaignAudiences[campaignID], audienceID) {
		s.campaignAudiences[campaignID] = append(s.campaignAudiences[campaignID], audienceID)
	}
	return nil
}

func (s *Store) ListCampaignAssetIDs(ctx context.Context, campaignID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.campaignAssets[campaignID]), nil
}

func (s *Store) ListCampaignAudienceIDs(ctx context.Context, campaignID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.campaignAudiences[campaignID]), nil
}

// ============================================
// Audit Log
// ============================================

func (s *Store) CreateAuditLog(ctx context.Context, entry *domain.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *entry
	s.auditLogs = append(s.auditLogs, &c)
	return nil
}

// AuditLogs returns a snapshot of the persisted audit entries.
func (s *Store) AuditLogs() []*domain.AuditLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.AuditLogEntry, len(s.auditLogs))
	copy(out, s.auditLogs)
	return out
}
