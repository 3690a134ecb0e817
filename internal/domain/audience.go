package domain

import "time"

// Audience is a targeting definition usable by campaigns.
type Audience struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Description    string    `json:"description" db:"description"`
	Criteria       JSONMap   `json:"criteria" db:"criteria"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// CreateAudienceRequest is the request body for creating an audience.
type CreateAudienceRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Criteria    map[string]any `json:"criteria"`
}
