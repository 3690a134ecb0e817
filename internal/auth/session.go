package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bcnelson/campaign-agent-api/internal/crypto"
)

const (
	// SessionCookieName is the name of the dashboard session cookie.
	SessionCookieName = "cak_dashboard_session"

	sessionPurpose = "dashboard-session"
)

// ErrNoSession is returned when the request carries no usable session.
var ErrNoSession = errors.New("no valid session")

// SessionManager handles encrypted session cookies.
type SessionManager struct {
	sealer   *crypto.Sealer
	duration time.Duration
	secure   bool // Use Secure flag on cookies (for HTTPS)
	now      func() time.Time
}

// Session is the dashboard user stored in the encrypted cookie.
type Session struct {
	Subject        string    `json:"sub"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	OrganizationID string    `json:"organization_id"`
	ExpiresAt      time.Time `json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewSessionManager creates a new session manager. The key must be
// exactly 32 bytes.
func NewSessionManager(key []byte, duration time.Duration, secure bool) (*SessionManager, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("session key must be 32 bytes, got %d", len(key))
	}
	sealer, err := crypto.NewSealer(key)
	if err != nil {
		return nil, err
	}
	return &SessionManager{
		sealer:   sealer,
		duration: duration,
		secure:   secure,
		now:      time.Now,
	}, nil
}

// Create writes an encrypted session cookie.
func (sm *SessionManager) Create(w http.ResponseWriter, session *Session) error {
	now := sm.now()
	session.CreatedAt = now
	session.ExpiresAt = now.Add(sm.duration)

	plaintext, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	sealed, err := sm.sealer.Seal(plaintext, []byte(sessionPurpose))
	if err != nil {
		return fmt.Errorf("failed to seal session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sealed,
		Path:     "/",
		MaxAge:   int(sm.duration.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   sm.secure,
	})

	return nil
}

// Get retrieves and validates the session from the cookie.
func (sm *SessionManager) Get(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, ErrNoSession
	}

	plaintext, err := sm.sealer.Open(cookie.Value, []byte(sessionPurpose))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}

	var session Session
	if err := json.Unmarshal(plaintext, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}

	if sm.now().After(session.ExpiresAt) {
		return nil, fmt.Errorf("%w: session expired", ErrNoSession)
	}
	if session.OrganizationID == "" {
		return nil, fmt.Errorf("%w: session has no organization", ErrNoSession)
	}

	return &session, nil
}

// Clear clears the session cookie.
func (sm *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   sm.secure,
	})
}

// ConstantTimeCompare performs a constant-time comparison of two strings.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
