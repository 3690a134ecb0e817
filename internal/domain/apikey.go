package domain

import "time"

// APIKeyPrefix starts every agent key.
const APIKeyPrefix = "cak_"

// APIKey is an organization-issued agent credential.
// The raw key is only returned once on creation.
type APIKey struct {
	ID              string      `json:"id" db:"id"`
	OrganizationID  string      `json:"organization_id" db:"organization_id"`
	Name            string      `json:"name" db:"name"`
	KeyHash         string      `json:"-" db:"key_hash"`
	EncryptedSecret string      `json:"-" db:"encrypted_secret"`
	KeyPrefix       string      `json:"key_prefix" db:"key_prefix"`
	Permissions     Permissions `json:"permissions" db:"permissions"`
	RateLimit       int         `json:"rate_limit" db:"rate_limit"` // requests per window, 0 = server default
	ExpiresAt       *time.Time  `json:"expires_at,omitempty" db:"expires_at"`
	RevokedAt       *time.Time  `json:"revoked_at,omitempty" db:"revoked_at"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
	LastUsedAt      *time.Time  `json:"last_used_at,omitempty" db:"last_used_at"`
}

// Revoked reports whether the key has been revoked.
func (k *APIKey) Revoked() bool {
	return k.RevokedAt != nil
}

// Expired reports whether the key is past its expiry at now.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !now.Before(*k.ExpiresAt)
}

// CreateAPIKeyRequest is the request body for issuing an API key.
type CreateAPIKeyRequest struct {
	Name          string      `json:"name"`
	Permissions   Permissions `json:"permissions"`
	ExpiresInDays *int        `json:"expires_in_days,omitempty"`
	RateLimit     *int        `json:"rate_limit,omitempty"`
}

// UpdateAPIKeyRequest is the request body for updating an API key.
type UpdateAPIKeyRequest struct {
	Name        *string      `json:"name,omitempty"`
	Permissions *Permissions `json:"permissions,omitempty"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
	RateLimit   *int         `json:"rate_limit,omitempty"`
}

// CreateAPIKeyResponse is returned when issuing an API key.
// The key is only shown once.
type CreateAPIKeyResponse struct {
	APIKey
	Key string `json:"key"`
}
