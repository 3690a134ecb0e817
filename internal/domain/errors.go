package domain

import (
	"errors"
	"fmt"
)

// Common errors used throughout the application.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrDatabase      = errors.New("database error")
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrStaleVersion  = errors.New("resource has been modified")

	ErrInvalidAPIKey = errors.New("invalid API key")
	ErrAPIKeyRevoked = errors.New("API key revoked")
	ErrAPIKeyExpired = errors.New("API key expired")
)

// Error codes for standardized API error responses.
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeValidationError   = "VALIDATION_ERROR"
	ErrCodeResourceNotFound  = "RESOURCE_NOT_FOUND"
	ErrCodeResourceConflict  = "RESOURCE_ALREADY_EXISTS"
	ErrCodeBudgetExceeded    = "BUDGET_EXCEEDED"
	ErrCodeDatabaseError     = "DATABASE_ERROR"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeVersionMismatch   = "PRECONDITION_FAILED"
)

// StandardError is the error member of the response envelope.
type StandardError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp string         `json:"timestamp"`
	RequestID string         `json:"request_id"`
}

// Envelope wraps every JSON response body.
type Envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *StandardError `json:"error,omitempty"`
}

// DatabaseError wraps a storage failure so callers can match ErrDatabase
// without the driver text leaking into responses.
type DatabaseError struct {
	Op  string
	Err error
}

// NewDatabaseError wraps err unless it is nil or already a domain sentinel.
func NewDatabaseError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrDatabase) {
		return err
	}
	return &DatabaseError{Op: op, Err: err}
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// Is reports whether target is ErrDatabase.
func (e *DatabaseError) Is(target error) bool { return target == ErrDatabase }

// CampaignContribution is an existing campaign counted against a month.
type CampaignContribution struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Budget    int64  `json:"budget"`
	StartDate Date   `json:"start_date"`
	EndDate   Date   `json:"end_date"`
	Status    string `json:"status"`
}

// BudgetExceededError is returned when a campaign write would push a
// calendar month over the organization's monthly ceiling.
type BudgetExceededError struct {
	AffectedMonth string                 `json:"affected_month"`
	CurrentTotal  int64                  `json:"current_total"`
	Requested     int64                  `json:"requested"`
	Available     int64                  `json:"available"`
	Limit         int64                  `json:"limit"`
	Campaigns     []CampaignContribution `json:"contributing_campaigns"`
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("monthly budget exceeded for %s: %d committed, %d requested, %d available of %d",
		e.AffectedMonth, e.CurrentTotal, e.Requested, e.Available, e.Limit)
}

// Details renders the error for the response envelope.
func (e *BudgetExceededError) Details() map[string]any {
	campaigns := e.Campaigns
	if campaigns == nil {
		campaigns = []CampaignContribution{}
	}
	return map[string]any{
		"affected_month":         e.AffectedMonth,
		"current_total":          e.CurrentTotal,
		"requested":              e.Requested,
		"available":              e.Available,
		"limit":                  e.Limit,
		"contributing_campaigns": campaigns,
	}
}
