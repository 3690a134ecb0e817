package apikey

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bcnelson/campaign-agent-api/internal/crypto"
	"github.com/bcnelson/campaign-agent-api/internal/domain"
	"github.com/bcnelson/campaign-agent-api/internal/storage/memory"
	"github.com/bcnelson/campaign-agent-api/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	sealer, err := crypto.NewSealer([]byte(strings.Repeat("s", 32)))
	require.NoError(t, err)
	store := memory.New()
	return NewService(store, sealer), store
}

func readCampaigns() domain.Permissions {
	return domain.Permissions{"campaigns": {"read"}}
}

func TestGenerate(t *testing.T) {
	key, hash, prefix, err := Generate()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "cak_"))
	assert.Len(t, key, 68)
	assert.True(t, WellFormed(key))
	assert.Equal(t, Hash(key), hash)
	assert.Equal(t, key[:12], prefix)

	other, _, _, err := Generate()
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestWellFormed(t *testing.T) {
	assert.False(t, WellFormed(""))
	assert.False(t, WellFormed("cak_short"))
	assert.False(t, WellFormed("acl_"+strings.Repeat("a", 64)))
	assert.False(t, WellFormed("cak_"+strings.Repeat("G", 64)))
	assert.True(t, WellFormed("cak_"+strings.Repeat("0", 64)))
}

func TestIssueAndAuthenticate(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	days := 30
	resp, err := svc.Issue(ctx, "org-1", &domain.CreateAPIKeyRequest{
		Name:          "planner",
		Permissions:   readCampaigns(),
		ExpiresInDays: &days,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Key)
	assert.Equal(t, resp.Key[:12], resp.KeyPrefix)
	require.NotNil(t, resp.ExpiresAt)

	stored, err := store.GetAPIKey(ctx, resp.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.EncryptedSecret, resp.Key)
	assert.Equal(t, Hash(resp.Key), stored.KeyHash)

	key, err := svc.Authenticate(ctx, resp.Key)
	require.NoError(t, err)
	assert.Equal(t, "org-1", key.OrganizationID)
	assert.True(t, key.Permissions.Allows("campaigns", "read"))
}

func TestIssueRejectsInvalidRequests(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Issue(context.Background(), "org-1", &domain.CreateAPIKeyRequest{
		Name:        "",
		Permissions: domain.Permissions{"payments": {"read"}},
	})
	var verrs validation.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 2)

	_, err = svc.Issue(context.Background(), "", &domain.CreateAPIKeyRequest{Name: "x", Permissions: readCampaigns()})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAuthenticateFailures(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Issue(ctx, "org-1", &domain.CreateAPIKeyRequest{Name: "k", Permissions: readCampaigns()})
	require.NoError(t, err)

	t.Run("malformed", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "not-a-key")
		assert.ErrorIs(t, err, domain.ErrInvalidAPIKey)
	})

	t.Run("unknown", func(t *testing.T) {
		raw, _, _, err := Generate()
		require.NoError(t, err)
		_, err = svc.Authenticate(ctx, raw)
		assert.ErrorIs(t, err, domain.ErrInvalidAPIKey)
	})

	t.Run("tampered secret", func(t *testing.T) {
		other, err := svc.Issue(ctx, "org-1", &domain.CreateAPIKeyRequest{Name: "other", Permissions: readCampaigns()})
		require.NoError(t, err)

		stored, err := store.GetAPIKey(ctx, other.ID)
		require.NoError(t, err)
		victim, err := store.GetAPIKey(ctx, resp.ID)
		require.NoError(t, err)
		// a sealed value copied from another record fails to open
		stored.EncryptedSecret = victim.EncryptedSecret
		require.NoError(t, store.UpdateAPIKey(ctx, stored))

		_, err = svc.Authenticate(ctx, other.Key)
		assert.ErrorIs(t, err, domain.ErrInvalidAPIKey)
	})

	t.Run("expired", func(t *testing.T) {
		days := 1
		exp, err := svc.Issue(ctx, "org-1", &domain.CreateAPIKeyRequest{Name: "short", Permissions: readCampaigns(), ExpiresInDays: &days})
		require.NoError(t, err)

		svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
		defer func() { svc.now = time.Now }()

		_, err = svc.Authenticate(ctx, exp.Key)
		assert.ErrorIs(t, err, domain.ErrAPIKeyExpired)
	})

	t.Run("revoked", func(t *testing.T) {
		_, err := svc.Revoke(ctx, "org-1", resp.ID)
		require.NoError(t, err)

		_, err = svc.Authenticate(ctx, resp.Key)
		assert.ErrorIs(t, err, domain.ErrAPIKeyRevoked)
	})
}

func TestOrganizationScoping(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Issue(ctx, "org-1", &domain.CreateAPIKeyRequest{Name: "k", Permissions: readCampaigns()})
	require.NoError(t, err)

	_, err = svc.Get(ctx, "org-2", resp.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Revoke(ctx, "org-2", resp.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, "org-2", resp.ID), domain.ErrNotFound)

	keys, err := svc.List(ctx, "org-2")
	require.NoError(t, err)
	assert.Empty(t, keys)

	keys, err = svc.List(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestUpdateAndRevoke(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Issue(ctx, "org-1", &domain.CreateAPIKeyRequest{Name: "k", Permissions: readCampaigns()})
	require.NoError(t, err)

	name := "renamed"
	limit := 5
	perms := domain.Permissions{"campaigns": {"read", "create"}, "budget": {"read"}}
	updated, err := svc.Update(ctx, "org-1", resp.ID, &domain.UpdateAPIKeyRequest{
		Name:        &name,
		Permissions: &perms,
		RateLimit:   &limit,
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, 5, updated.RateLimit)
	assert.True(t, updated.Permissions.Allows("budget", "read"))

	revoked, err := svc.Revoke(ctx, "org-1", resp.ID)
	require.NoError(t, err)
	require.NotNil(t, revoked.RevokedAt)
	first := *revoked.RevokedAt

	again, err := svc.Revoke(ctx, "org-1", resp.ID)
	require.NoError(t, err)
	assert.Equal(t, first, *again.RevokedAt)

	_, err = svc.Update(ctx, "org-1", resp.ID, &domain.UpdateAPIKeyRequest{Name: &name})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	require.NoError(t, svc.Delete(ctx, "org-1", resp.ID))
	_, err = svc.Get(ctx, "org-1", resp.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
