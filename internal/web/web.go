// Package web serves the dashboard's session routes and its API key
// management endpoints.
package web

import (
	"context"
	"net/http"

	"github.com/bcnelson/campaign-agent-api/internal/api/handler"
	"github.com/bcnelson/campaign-agent-api/internal/apikey"
	"github.com/bcnelson/campaign-agent-api/internal/auth"
	"github.com/go-chi/chi/v5"
)

// IdentityProvider is the OIDC surface the dashboard needs.
type IdentityProvider interface {
	AuthCodeURL(state, nonce string) string
	Exchange(ctx context.Context, code, nonce string) (*auth.OIDCClaims, error)
	ValidateClaims(claims *auth.OIDCClaims) error
	OrganizationFor(claims *auth.OIDCClaims) (string, error)
}

// Config holds the dashboard's dependencies. Sessions, States and
// Provider are nil when OIDC is disabled.
type Config struct {
	Sessions *auth.SessionManager
	States   *auth.StateStore
	Provider IdentityProvider

	BootstrapToken string
	BootstrapOrg   string

	// PostLoginRedirect, when set, is where the callback sends the
	// browser instead of answering with JSON.
	PostLoginRedirect string
}

// Server holds dependencies for dashboard handlers.
type Server struct {
	keys *apikey.Service
	cfg  Config
}

// NewRouter creates the dashboard router.
func NewRouter(keys *apikey.Service, cfg Config) http.Handler {
	s := &Server{keys: keys, cfg: cfg}
	keyHandler := handler.NewAPIKeyHandler(keys, organization)

	r := chi.NewRouter()

	// Public routes
	r.Get("/login", s.handleOIDCLogin)
	r.Get("/callback", s.handleOIDCCallback)
	r.Post("/logout", s.handleLogout)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.sessionAuth)

		r.Get("/api/session", s.handleSession)

		r.Route("/api/keys", func(r chi.Router) {
			r.Get("/", keyHandler.List)
			r.Post("/", keyHandler.Create)
			r.Patch("/{id}", keyHandler.Update)
			r.Post("/{id}/revoke", keyHandler.Revoke)
			r.Delete("/{id}", keyHandler.Delete)
		})
	})

	return r
}

func (s *Server) oidcEnabled() bool {
	return s.cfg.Provider != nil && s.cfg.Sessions != nil && s.cfg.States != nil
}
