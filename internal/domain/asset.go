package domain

import "time"

// Asset types.
const (
	AssetTypeImage = "image"
	AssetTypeVideo = "video"
	AssetTypeText  = "text"
)

// Asset is a creative asset usable by campaigns.
type Asset struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Type           string    `json:"type" db:"type"`
	URL            string    `json:"url" db:"url"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// CreateAssetRequest is the request body for creating an asset.
type CreateAssetRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
}
