package domain

import "time"

// AuditLogEntry is the write-once record of one agent request.
type AuditLogEntry struct {
	ID             string    `json:"id" db:"id"`
	RequestID      string    `json:"request_id" db:"request_id"`
	APIKeyID       string    `json:"api_key_id,omitempty" db:"api_key_id"`
	OrganizationID string    `json:"organization_id,omitempty" db:"organization_id"`
	Action         string    `json:"action" db:"action"`
	ResourceType   string    `json:"resource_type,omitempty" db:"resource_type"`
	ResourceID     string    `json:"resource_id,omitempty" db:"resource_id"`
	Method         string    `json:"method" db:"method"`
	Path           string    `json:"path" db:"path"`
	RequestBody    JSONValue `json:"request_body,omitempty" db:"request_body"`
	ResponseBody   JSONValue `json:"response_body,omitempty" db:"response_body"`
	StatusCode     int       `json:"status_code" db:"status_code"`
	ErrorMessage   string    `json:"error_message,omitempty" db:"error_message"`
	DurationMS     int64     `json:"duration_ms" db:"duration_ms"`
	IPAddress      string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent      string    `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
