package web

import (
	"net/http"
	"time"

	"github.com/bcnelson/campaign-agent-api/internal/api/response"
	"github.com/bcnelson/campaign-agent-api/internal/auth"
	"github.com/bcnelson/campaign-agent-api/internal/domain"
	"github.com/bcnelson/campaign-agent-api/internal/metrics"
	"github.com/rs/zerolog/log"
)

type sessionView struct {
	Subject        string `json:"subject"`
	Email          string `json:"email,omitempty"`
	Name           string `json:"name,omitempty"`
	OrganizationID string `json:"organization_id"`
	ExpiresAt      string `json:"expires_at,omitempty"`
}

func newSessionView(s *auth.Session) sessionView {
	v := sessionView{
		Subject:        s.Subject,
		Email:          s.Email,
		Name:           s.Name,
		OrganizationID: s.OrganizationID,
	}
	if !s.ExpiresAt.IsZero() {
		v.ExpiresAt = s.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return v
}

// handleOIDCLogin initiates the OIDC login flow.
func (s *Server) handleOIDCLogin(w http.ResponseWriter, r *http.Request) {
	if !s.oidcEnabled() {
		response.Error(w, r, http.StatusNotFound, domain.ErrCodeResourceNotFound, "OIDC authentication is not enabled", nil)
		return
	}

	stateData, err := s.cfg.States.Generate(w)
	if err != nil {
		log.Error().Err(err).Str("component", "dashboard").Msg("Failed to generate OIDC state")
		response.FromError(w, r, err)
		return
	}

	http.Redirect(w, r, s.cfg.Provider.AuthCodeURL(stateData.State, stateData.Nonce), http.StatusSeeOther)
}

// handleOIDCCallback handles the OIDC callback after authentication.
func (s *Server) handleOIDCCallback(w http.ResponseWriter, r *http.Request) {
	if !s.oidcEnabled() {
		response.Error(w, r, http.StatusNotFound, domain.ErrCodeResourceNotFound, "OIDC authentication is not enabled", nil)
		return
	}

	query := r.URL.Query()
	if errParam := query.Get("error"); errParam != "" {
		errDesc := query.Get("error_description")
		if errDesc == "" {
			errDesc = errParam
		}
		log.Warn().Str("component", "dashboard").Str("error", errParam).Msg("OIDC provider returned error")
		s.unauthorized(w, r, errDesc)
		return
	}

	code := query.Get("code")
	if code == "" {
		s.unauthorized(w, r, "No authorization code received")
		return
	}

	stateData, err := s.cfg.States.Validate(r, query.Get("state"))
	if err != nil {
		log.Warn().Err(err).Str("component", "dashboard").Msg("OIDC state validation failed")
		s.unauthorized(w, r, "Invalid state parameter")
		return
	}
	s.cfg.States.Clear(w)

	claims, err := s.cfg.Provider.Exchange(r.Context(), code, stateData.Nonce)
	if err != nil {
		log.Warn().Err(err).Str("component", "dashboard").Msg("OIDC token exchange failed")
		s.unauthorized(w, r, "Failed to complete authentication")
		return
	}

	if err := s.cfg.Provider.ValidateClaims(claims); err != nil {
		log.Warn().Err(err).Str("component", "dashboard").Str("subject", claims.Subject).Msg("OIDC claims rejected")
		response.Error(w, r, http.StatusForbidden, domain.ErrCodeForbidden, err.Error(), nil)
		return
	}

	org, err := s.cfg.Provider.OrganizationFor(claims)
	if err != nil {
		log.Warn().Err(err).Str("component", "dashboard").Str("subject", claims.Subject).Msg("No organization for user")
		response.Error(w, r, http.StatusForbidden, domain.ErrCodeForbidden, "No organization found for this account", nil)
		return
	}

	session := &auth.Session{
		Subject:        claims.Subject,
		Email:          claims.Email,
		Name:           claims.Name,
		OrganizationID: org,
	}
	if err := s.cfg.Sessions.Create(w, session); err != nil {
		log.Error().Err(err).Str("component", "dashboard").Msg("Failed to create session")
		response.FromError(w, r, err)
		return
	}

	log.Info().
		Str("component", "dashboard").
		Str("subject", session.Subject).
		Str("organization_id", org).
		Msg("Dashboard sign-in")

	if s.cfg.PostLoginRedirect != "" {
		http.Redirect(w, r, s.cfg.PostLoginRedirect, http.StatusSeeOther)
		return
	}
	response.JSON(w, r, http.StatusOK, newSessionView(session))
}

// handleLogout clears the session cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Sessions != nil {
		s.cfg.Sessions.Clear(w)
	}
	response.NoContent(w)
}

// handleSession reports who the caller is signed in as.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, newSessionView(getSession(r.Context())))
}

func (s *Server) unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	metrics.AuthFailures.WithLabelValues("oidc").Inc()
	response.Error(w, r, http.StatusUnauthorized, domain.ErrCodeUnauthorized, message, nil)
}
