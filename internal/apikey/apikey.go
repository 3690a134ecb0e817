// Package apikey issues and authenticates organization-scoped agent keys.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/bcnelson/campaign-agent-api/internal/crypto"
	"github.com/bcnelson/campaign-agent-api/internal/domain"
	"github.com/bcnelson/campaign-agent-api/internal/storage"
	"github.com/bcnelson/campaign-agent-api/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const displayPrefixLen = 12

var keyFormat = regexp.MustCompile(`^` + domain.APIKeyPrefix + `[0-9a-f]{64}$`)

// Generate creates a new random key and returns it with its lookup hash
// and display prefix.
func Generate() (key, hash, prefix string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", err
	}

	key = domain.APIKeyPrefix + hex.EncodeToString(b)
	return key, Hash(key), key[:displayPrefixLen], nil
}

// Hash returns the SHA-256 lookup hash of a raw key. Keys are high
// entropy, so a fast hash is enough for lookups.
func Hash(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// WellFormed reports whether s looks like a key this service issues.
func WellFormed(s string) bool {
	return keyFormat.MatchString(s)
}

// Service manages the API key lifecycle.
type Service struct {
	store  storage.Storage
	sealer *crypto.Sealer
	now    func() time.Time
}

// NewService creates a Service.
func NewService(store storage.Storage, sealer *crypto.Sealer) *Service {
	return &Service{store: store, sealer: sealer, now: time.Now}
}

// Issue creates a key for an organization. The raw key is only returned here.
func (s *Service) Issue(ctx context.Context, organizationID string, req *domain.CreateAPIKeyRequest) (*domain.CreateAPIKeyResponse, error) {
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization is required", domain.ErrInvalidInput)
	}
	if err := validation.ValidateCreateAPIKey(req); err != nil {
		return nil, err
	}

	raw, hash, prefix, err := Generate()
	if err != nil {
		return nil, fmt.Errorf("generating API key: %w", err)
	}

	sealed, err := s.sealer.Seal([]byte(raw), []byte(hash))
	if err != nil {
		return nil, fmt.Errorf("sealing API key: %w", err)
	}

	now := s.now().UTC()
	key := &domain.APIKey{
		ID:              uuid.New().String(),
		OrganizationID:  organizationID,
		Name:            req.Name,
		KeyHash:         hash,
		EncryptedSecret: sealed,
		KeyPrefix:       prefix,
		Permissions:     req.Permissions,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.RateLimit != nil {
		key.RateLimit = *req.RateLimit
	}
	if req.ExpiresInDays != nil {
		expires := now.AddDate(0, 0, *req.ExpiresInDays)
		key.ExpiresAt = &expires
	}

	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return nil, domain.NewDatabaseError("creating API key", err)
	}

	log.Info().
		Str("api_key_id", key.ID).
		Str("organization_id", organizationID).
		Str("key_prefix", prefix).
		Msg("API key issued")

	return &domain.CreateAPIKeyResponse{APIKey: *key, Key: raw}, nil
}

// Authenticate resolves a presented bearer token to its key record.
// Unknown, malformed and tampered keys all yield ErrInvalidAPIKey.
func (s *Service) Authenticate(ctx context.Context, raw string) (*domain.APIKey, error) {
	if !WellFormed(raw) {
		return nil, domain.ErrInvalidAPIKey
	}

	hash := Hash(raw)
	key, err := s.store.GetAPIKeyByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidAPIKey
		}
		return nil, domain.NewDatabaseError("looking up API key", err)
	}

	secret, err := s.sealer.Open(key.EncryptedSecret, []byte(key.KeyHash))
	if err != nil {
		log.Warn().Str("api_key_id", key.ID).Msg("API key secret could not be opened")
		return nil, domain.ErrInvalidAPIKey
	}
	if subtle.ConstantTimeCompare(secret, []byte(raw)) != 1 {
		return nil, domain.ErrInvalidAPIKey
	}

	if key.Revoked() {
		return nil, domain.ErrAPIKeyRevoked
	}
	if key.Expired(s.now()) {
		return nil, domain.ErrAPIKeyExpired
	}

	go s.touch(key.ID)

	return key, nil
}

func (s *Service) touch(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.UpdateAPIKeyLastUsed(ctx, id); err != nil {
		log.Debug().Err(err).Str("api_key_id", id).Msg("failed to update API key last use")
	}
}

// List returns the organization's keys, newest first.
func (s *Service) List(ctx context.Context, organizationID string) ([]*domain.APIKey, error) {
	keys, err := s.store.ListAPIKeys(ctx, organizationID)
	if err != nil {
		return nil, domain.NewDatabaseError("listing API keys", err)
	}
	return keys, nil
}

// Get returns a key owned by the organization. Keys of other
// organizations are reported as not found.
func (s *Service) Get(ctx context.Context, organizationID, id string) (*domain.APIKey, error) {
	key, err := s.store.GetAPIKey(ctx, id)
	if err != nil {
		return nil, domain.NewDatabaseError("getting API key", err)
	}
	if key.OrganizationID != organizationID {
		return nil, domain.ErrNotFound
	}
	return key, nil
}

// Update changes a key's name, permissions, expiry or rate limit.
func (s *Service) Update(ctx context.Context, organizationID, id string, req *domain.UpdateAPIKeyRequest) (*domain.APIKey, error) {
	if err := validation.ValidateUpdateAPIKey(req, s.now()); err != nil {
		return nil, err
	}

	key, err := s.Get(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}
	if key.Revoked() {
		return nil, fmt.Errorf("%w: revoked keys cannot be modified", domain.ErrInvalidInput)
	}

	if req.Name != nil {
		key.Name = *req.Name
	}
	if req.Permissions != nil {
		key.Permissions = *req.Permissions
	}
	if req.ExpiresAt != nil {
		expires := req.ExpiresAt.UTC()
		key.ExpiresAt = &expires
	}
	if req.RateLimit != nil {
		key.RateLimit = *req.RateLimit
	}
	key.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateAPIKey(ctx, key); err != nil {
		return nil, domain.NewDatabaseError("updating API key", err)
	}
	return key, nil
}

// Revoke disables a key. Revoking twice keeps the original timestamp.
func (s *Service) Revoke(ctx context.Context, organizationID, id string) (*domain.APIKey, error) {
	key, err := s.Get(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}
	if key.Revoked() {
		return key, nil
	}

	now := s.now().UTC()
	key.RevokedAt = &now
	key.UpdatedAt = now
	if err := s.store.UpdateAPIKey(ctx, key); err != nil {
		return nil, domain.NewDatabaseError("revoking API key", err)
	}

	log.Info().Str("api_key_id", id).Str("organization_id", organizationID).Msg("API key revoked")
	return key, nil
}

// Delete removes a key permanently.
func (s *Service) Delete(ctx context.Context, organizationID, id string) error {
	if _, err := s.Get(ctx, organizationID, id); err != nil {
		return err
	}
	if err := s.store.DeleteAPIKey(ctx, id); err != nil {
		return domain.NewDatabaseError("deleting API key", err)
	}
	return nil
}
