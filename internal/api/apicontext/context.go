// Package apicontext carries per-request values between middleware and
// handlers.
package apicontext

import (
	"context"

	"github.com/bcnelson/campaign-agent-api/internal/domain"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	apiKeyKey    contextKey = "api_key"
	callStateKey contextKey = "call_state"
)

// CallState is filled in as a request passes through the stack and read
// by the audit middleware once the handler returns.
type CallState struct {
	APIKeyID       string
	OrganizationID string
	ErrorMessage   string
}

// WithRequestID stores the request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request ID, or "" outside a request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithAPIKey stores the authenticated key and records it on the call state.
func WithAPIKey(ctx context.Context, key *domain.APIKey) context.Context {
	if st := State(ctx); st != nil {
		st.APIKeyID = key.ID
		st.OrganizationID = key.OrganizationID
	}
	return context.WithValue(ctx, apiKeyKey, key)
}

// APIKey returns the authenticated key, or nil.
func APIKey(ctx context.Context) *domain.APIKey {
	key, _ := ctx.Value(apiKeyKey).(*domain.APIKey)
	return key
}

// OrganizationID returns the organization of the authenticated key.
func OrganizationID(ctx context.Context) string {
	if key := APIKey(ctx); key != nil {
		return key.OrganizationID
	}
	return ""
}

// WithState attaches a fresh call state.
func WithState(ctx context.Context) (context.Context, *CallState) {
	st := &CallState{}
	return context.WithValue(ctx, callStateKey, st), st
}

// State returns the call state, or nil when none is attached.
func State(ctx context.Context) *CallState {
	st, _ := ctx.Value(callStateKey).(*CallState)
	return st
}

// SetError records the error message reported to the caller.
func SetError(ctx context.Context, message string) {
	if st := State(ctx); st != nil {
		st.ErrorMessage = message
	}
}
