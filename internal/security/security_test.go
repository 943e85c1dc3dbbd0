package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestIsSecureRequest(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  bool
	}{
		{"plain http", func(r *http.Request) {}, false},
		{"tls", func(r *http.Request) { r.TLS = &tls.ConnectionState{} }, true},
		{"forwarded https", func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "https") }, true},
		{"forwarded http", func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "http") }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(r)
			if got := IsSecureRequest(r); got != tt.want {
				t.Errorf("IsSecureRequest() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCookies(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-Proto", "https")

	session := CreateSessionCookie(r, "abc", time.Now().Add(time.Hour))
	if session.Name != SessionCookieName || !session.HttpOnly || !session.Secure {
		t.Errorf("unexpected session cookie: %+v", session)
	}

	flash := CreateFlashCookie(r, "saved", 3000*time.Millisecond)
	if flash.MaxAge != 3 {
		t.Errorf("flash MaxAge = %d, want 3", flash.MaxAge)
	}

	del := CreateDeleteCookie(r, SessionCookieName)
	if del.MaxAge != -1 || del.Value != "" {
		t.Errorf("unexpected delete cookie: %+v", del)
	}
}

func TestCSRF(t *testing.T) {
	g := NewCSRFGenerator("secret")

	token, err := g.GenerateToken("sess-1")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if !g.ValidateToken("sess-1", token) {
		t.Error("token should validate for its own session")
	}
	if g.ValidateToken("sess-2", token) {
		t.Error("token should not validate for another session")
	}
	if NewCSRFGenerator("other").ValidateToken("sess-1", token) {
		t.Error("token should not validate with another secret")
	}
	if _, err := g.GenerateToken(""); err == nil {
		t.Error("expected error for empty session")
	}

	form := url.Values{CSRFFormField: {token}}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if got := TokenFromRequest(r); got != token {
		t.Errorf("TokenFromRequest() = %q, want form token", got)
	}

	r = httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set(CSRFHeader, "from-header")
	if got := TokenFromRequest(r); got != "from-header" {
		t.Errorf("TokenFromRequest() = %q, want header token", got)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("fourth request should be limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("other IPs have their own bucket")
	}

	rl.prune(time.Now().Add(3 * time.Minute))
	rl.mu.Lock()
	remaining := len(rl.visitors)
	rl.mu.Unlock()
	if remaining != 0 {
		t.Errorf("visitors after prune = %d, want 0", remaining)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.1:1234", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.1:1234", "198.51.100.7"},
		{"remote addr", nil, "192.0.2.1:5555", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := GetClientIP(r); got != tt.want {
				t.Errorf("GetClientIP() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTokenBox(t *testing.T) {
	box := NewTokenBox("session-secret")

	sealed, err := box.Seal("eyJhbGciOi.payload.sig")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if strings.Contains(sealed, "payload") {
		t.Error("sealed token leaks plaintext")
	}

	again, _ := box.Seal("eyJhbGciOi.payload.sig")
	if again == sealed {
		t.Error("sealing twice should use a fresh nonce")
	}

	plain, err := box.Open(sealed)
	if err != nil || plain != "eyJhbGciOi.payload.sig" {
		t.Fatalf("Open() = %q, %v", plain, err)
	}

	if _, err := NewTokenBox("other-secret").Open(sealed); err != ErrTokenTampered {
		t.Errorf("Open() with wrong key error = %v, want ErrTokenTampered", err)
	}
	if _, err := box.Open("not-base64!"); err != ErrTokenTampered {
		t.Errorf("Open() garbage error = %v, want ErrTokenTampered", err)
	}
}
