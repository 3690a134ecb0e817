package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var testKey = []byte(strings.Repeat("k", 32))

func TestSessionRoundTrip(t *testing.T) {
	sm, err := NewSessionManager(testKey, time.Hour, true)
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}

	rr := httptest.NewRecorder()
	if err := sm.Create(rr, &Session{Subject: "u-1", Email: "ada@example.com", OrganizationID: "org-1"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != SessionCookieName {
		t.Fatalf("Expected one session cookie, got %v", cookies)
	}
	if !cookies[0].HttpOnly || !cookies[0].Secure {
		t.Errorf("Expected HttpOnly and Secure cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	session, err := sm.Get(req)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if session.OrganizationID != "org-1" || session.Email != "ada@example.com" {
		t.Errorf("Unexpected session %+v", session)
	}
}

func TestSessionRejectsTamperedAndExpired(t *testing.T) {
	sm, _ := NewSessionManager(testKey, time.Hour, false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := sm.Get(req); err == nil {
		t.Error("Expected error without cookie")
	}

	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "garbage"})
	if _, err := sm.Get(req); err == nil {
		t.Error("Expected error for tampered cookie")
	}

	rr := httptest.NewRecorder()
	_ = sm.Create(rr, &Session{OrganizationID: "org-1"})
	sm.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rr.Result().Cookies()[0])
	if _, err := sm.Get(req); err == nil {
		t.Error("Expected error for expired session")
	}
}

func TestStateValidate(t *testing.T) {
	ss, err := NewStateStore(testKey, false)
	if err != nil {
		t.Fatalf("NewStateStore() error = %v", err)
	}

	rr := httptest.NewRecorder()
	data, err := ss.Generate(rr)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/callback", nil)
	req.AddCookie(rr.Result().Cookies()[0])

	if _, err := ss.Validate(req, "wrong"); err == nil {
		t.Error("Expected state mismatch")
	}
	got, err := ss.Validate(req, data.State)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got.Nonce != data.Nonce {
		t.Errorf("Expected nonce %s, got %s", data.Nonce, got.Nonce)
	}
}

func TestOrganizationFromClaims(t *testing.T) {
	tests := []struct {
		name    string
		claims  OIDCClaims
		want    string
		wantErr bool
	}{
		{
			name:   "string claim",
			claims: OIDCClaims{Email: "a@example.com", Raw: map[string]any{"org_id": "org-42"}},
			want:   "org-42",
		},
		{
			name:   "list claim",
			claims: OIDCClaims{Email: "a@example.com", Raw: map[string]any{"org_id": []any{"org-7", "org-8"}}},
			want:   "org-7",
		},
		{
			name:   "falls back to email domain",
			claims: OIDCClaims{Email: "a@Example.COM", Raw: map[string]any{}},
			want:   "example.com",
		},
		{
			name:    "no org and bad email",
			claims:  OIDCClaims{Email: "nobody", Raw: map[string]any{}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := organizationFromClaims(&tt.claims, "org_id")
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateEmailDomain(t *testing.T) {
	allowed := normalizeDomains([]string{" Example.com ", ""})

	if err := validateEmailDomain("ada@example.com", allowed); err != nil {
		t.Errorf("Expected allowed domain, got %v", err)
	}
	if err := validateEmailDomain("ada@evil.com", allowed); err == nil {
		t.Error("Expected domain rejection")
	}
	if err := validateEmailDomain("", nil); err == nil {
		t.Error("Expected missing email error")
	}
	if err := validateEmailDomain("ada@anything.io", nil); err != nil {
		t.Errorf("Expected no restriction, got %v", err)
	}
}

func TestStateExpires(t *testing.T) {
	ss, _ := NewStateStore(testKey, false)

	rr := httptest.NewRecorder()
	data, err := ss.Generate(rr)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	ss.now = func() time.Time { return time.Now().Add(10 * time.Minute) }

	req := httptest.NewRequest(http.MethodGet, "/callback", nil)
	req.AddCookie(rr.Result().Cookies()[0])
	if _, err := ss.Validate(req, data.State); err == nil {
		t.Error("Expected expired state to be rejected")
	}
}

func TestSessionAndStateKeysAreNotInterchangeable(t *testing.T) {
	sm, _ := NewSessionManager(testKey, time.Hour, false)
	ss, _ := NewStateStore(testKey, false)

	rr := httptest.NewRecorder()
	if _, err := ss.Generate(rr); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: rr.Result().Cookies()[0].Value})
	if _, err := sm.Get(req); err == nil {
		t.Error("A sealed state must not open as a session")
	}
}
