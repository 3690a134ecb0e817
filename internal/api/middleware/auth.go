package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/bcnelson/campaign-agent-api/internal/api/apicontext"
	"github.com/bcnelson/campaign-agent-api/internal/api/response"
	"github.com/bcnelson/campaign-agent-api/internal/domain"
	"github.com/bcnelson/campaign-agent-api/internal/metrics"
	"github.com/bcnelson/campaign-agent-api/internal/ratelimit"
	"github.com/rs/zerolog/log"
)

// Authenticator resolves a raw bearer token to its key record.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*domain.APIKey, error)
}

// Auth authenticates agent requests and applies the per-key rate limit.
// defaultLimit applies to keys without their own limit.
func Auth(authn Authenticator, limiter ratelimit.Limiter, defaultLimit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract the API key from the Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, r, "missing_header", "Missing Authorization header")
				return
			}

			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				unauthorized(w, r, "malformed_header", "Authorization header must use the Bearer scheme")
				return
			}
			token = strings.TrimSpace(token)
			if token == "" {
				unauthorized(w, r, "malformed_header", "Empty API key")
				return
			}

			ctx := r.Context()
			key, err := authn.Authenticate(ctx, token)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrAPIKeyRevoked):
				unauthorized(w, r, "revoked", "API key has been revoked")
				return
			case errors.Is(err, domain.ErrAPIKeyExpired):
				unauthorized(w, r, "expired", "API key has expired")
				return
			case errors.Is(err, domain.ErrInvalidAPIKey):
				unauthorized(w, r, "invalid_key", "Invalid API key")
				return
			default:
				response.FromError(w, r, err)
				return
			}

			ctx = apicontext.WithAPIKey(ctx, key)
			r = r.WithContext(ctx)

			limit := key.RateLimit
			if limit <= 0 {
				limit = defaultLimit
			}
			res, err := limiter.Allow(ctx, key.ID, limit)
			if err != nil {
				log.Warn().Err(err).Str("api_key_id", key.ID).Msg("Rate limiter failed, allowing request")
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, res)
			if !res.Allowed {
				metrics.RateLimited.Inc()
				retryAfter := res.RetryAfterSeconds()
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				response.Error(w, r, http.StatusTooManyRequests, domain.ErrCodeRateLimitExceeded,
					"Rate limit exceeded, retry later", map[string]any{
						"limit":       res.Limit,
						"reset":       res.Reset.Unix(),
						"retry_after": retryAfter,
					})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, res ratelimit.Result) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))
}

func unauthorized(w http.ResponseWriter, r *http.Request, reason, message string) {
	metrics.AuthFailures.WithLabelValues(reason).Inc()
	w.Header().Set("WWW-Authenticate", `Bearer realm="agent-api"`)
	response.Error(w, r, http.StatusUnauthorized, domain.ErrCodeUnauthorized, message, nil)
}

// RequirePermission rejects requests whose key lacks resource:action.
// Unknown resources and actions are always denied.
func RequirePermission(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := apicontext.APIKey(r.Context())
			if key == nil {
				unauthorized(w, r, "missing_key", "Authentication required")
				return
			}
			if !key.Permissions.Allows(resource, action) {
				metrics.AuthFailures.WithLabelValues("forbidden").Inc()
				response.Error(w, r, http.StatusForbidden, domain.ErrCodeForbidden,
					"API key lacks the required permission", map[string]any{
						"required_permission": resource + ":" + action,
					})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
