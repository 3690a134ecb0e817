package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/bcnelson/campaign-agent-api/internal/api/response"
	"github.com/bcnelson/campaign-agent-api/internal/auth"
	"github.com/bcnelson/campaign-agent-api/internal/domain"
	"github.com/bcnelson/campaign-agent-api/internal/metrics"
)

type contextKey string

const sessionContextKey contextKey = "session"

// sessionAuth admits requests carrying the bootstrap bearer token or a
// valid session cookie.
func (s *Server) sessionAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if session := s.bootstrapSession(r); session != nil {
			next.ServeHTTP(w, withSession(r, session))
			return
		}

		if s.cfg.Sessions != nil {
			session, err := s.cfg.Sessions.Get(r)
			if err == nil {
				next.ServeHTTP(w, withSession(r, session))
				return
			}
		}

		metrics.AuthFailures.WithLabelValues("dashboard_session").Inc()
		response.Error(w, r, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "Sign in required", nil)
	})
}

func (s *Server) bootstrapSession(r *http.Request) *auth.Session {
	if s.cfg.BootstrapToken == "" || s.cfg.BootstrapOrg == "" {
		return nil
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || !auth.ConstantTimeCompare(strings.TrimSpace(token), s.cfg.BootstrapToken) {
		return nil
	}
	return &auth.Session{
		Subject:        "bootstrap",
		Name:           "Bootstrap Token",
		OrganizationID: s.cfg.BootstrapOrg,
	}
}

func withSession(r *http.Request, session *auth.Session) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), sessionContextKey, session))
}

// getSession retrieves the session from context.
func getSession(ctx context.Context) *auth.Session {
	session, _ := ctx.Value(sessionContextKey).(*auth.Session)
	return session
}

// organization resolves the acting organization for key management.
func organization(r *http.Request) string {
	if session := getSession(r.Context()); session != nil {
		return session.OrganizationID
	}
	return ""
}
