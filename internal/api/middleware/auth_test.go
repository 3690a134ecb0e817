package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bcnelson/campaign-agent-api/internal/domain"
	"github.com/bcnelson/campaign-agent-api/internal/ratelimit"
)

type staticAuthenticator struct {
	key *domain.APIKey
}

func (a staticAuthenticator) Authenticate(_ context.Context, raw string) (*domain.APIKey, error) {
	if raw != "cak_valid" {
		return nil, domain.ErrInvalidAPIKey
	}
	return a.key, nil
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string, int) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("redis: connection refused")
}

func TestAuthAllowsRequestsWhenLimiterFails(t *testing.T) {
	tests := []struct {
		name      string
		keyLimit  int
		wantLimit string
	}{
		{"server default", 0, "60"},
		{"per-key limit", 5, "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authn := staticAuthenticator{key: &domain.APIKey{ID: "key-1", OrganizationID: "org-1", RateLimit: tt.keyLimit}}
			reached := false
			handler := Auth(authn, brokenLimiter{}, 60)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/api/agent/v1/campaigns", nil)
			req.Header.Set("Authorization", "Bearer cak_valid")
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if !reached || rr.Code != http.StatusOK {
				t.Fatalf("Expected request to pass through with 200, got %d (reached=%v)", rr.Code, reached)
			}
			if got := rr.Header().Get("X-RateLimit-Limit"); got != tt.wantLimit {
				t.Errorf("Expected X-RateLimit-Limit %s, got %q", tt.wantLimit, got)
			}
		})
	}
}

func TestAuthRejectsInvalidKeyBeforeLimiter(t *testing.T) {
	handler := Auth(staticAuthenticator{}, brokenLimiter{}, 60)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be reached")
	}))

	req := httptest.NewRequest("GET", "/api/agent/v1/campaigns", nil)
	req.Header.Set("Authorization", "Bearer cak_wrong")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}
	if rr.Header().Get("X-RateLimit-Limit") != "" {
		t.Error("Expected no rate limit headers on an unauthenticated request")
	}
}
