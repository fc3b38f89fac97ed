// AngelaMos | 2026
// middleware_test.go

package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmart/localmart/internal/config"
	"github.com/localmart/localmart/internal/core"
)

type stubVerifier map[string]*AccessTokenClaims

func (s stubVerifier) VerifyAccessToken(_ context.Context, token string) (*AccessTokenClaims, error) {
	if c, ok := s[token]; ok {
		return c, nil
	}
	if token == "expired" {
		return nil, core.ErrTokenExpired
	}
	return nil, errors.New("bad token")
}

var verifier = stubVerifier{
	"shopper": {UserID: "u1", Roles: []string{"customer"}},
	"admin":   {UserID: "u2", Roles: []string{"customer", "admin"}},
}

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticator(t *testing.T) {
	var caller string
	h := Authenticator(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	assert.Equal(t, http.StatusUnauthorized, serve(h, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "garbage").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "expired").Code)

	rec := serve(h, "shopper")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", caller)
}

func TestRequireGlobalAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Authenticator(verifier)(RequireGlobalAdmin(ok))

	assert.Equal(t, http.StatusForbidden, serve(h, "shopper").Code)
	assert.Equal(t, http.StatusOK, serve(h, "admin").Code)

	anon := RequireGlobalAdmin(ok)
	assert.Equal(t, http.StatusUnauthorized, serve(anon, "").Code)
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Authenticator(verifier)(RequireRole("staff", "admin")(ok))

	assert.Equal(t, http.StatusForbidden, serve(h, "shopper").Code)
	assert.Equal(t, http.StatusOK, serve(h, "admin").Code)
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		assert.Equal(t, tt.want, ExtractToken(req), tt.header)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get(HeaderRequestID))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))
}

func TestRecoverer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recoverer(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORS(t *testing.T) {
	h := CORS(config.CORSConfig{
		AllowedOrigins: []string{"http://localhost:3000"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization"},
		MaxAge:         600,
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	pre := httptest.NewRequest(http.MethodOptions, "/", nil)
	pre.Header.Set("Origin", "http://localhost:3000")
	pre.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, pre)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))

	pre = httptest.NewRequest(http.MethodOptions, "/", nil)
	pre.Header.Set("Origin", "https://evil.example")
	pre.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, pre)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {})

	rec := serve(SecurityHeaders(false)(ok), "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	rec = serve(SecurityHeaders(true)(ok), "")
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestRateLimitFallsBackToLocalBuckets(t *testing.T) {
	rl := GlobalLimit(nil, config.RateLimitConfig{Requests: 2, Burst: 2, Window: time.Minute})
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(path, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("/api/v0/stores", "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, send("/api/v0/stores", "10.0.0.1").Code)

	rec := send("/api/v0/stores", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, send("/api/v0/stores", "10.0.0.2").Code)
	assert.Equal(t, http.StatusOK, send("/readyz", "10.0.0.1").Code)
}

func TestRouteKeyCollapsesIDs(t *testing.T) {
	assert.Equal(t, "/api/v0/stores/{id}/items",
		routeKey("/api/v0/stores/0b6f4d4e-4c1e-4b7a-9f57-3f1f0f4a2d11/items"))
	assert.Equal(t, "/api/v0/auth/login", routeKey("/api/v0/auth/login/"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 198.51.100.7")
	assert.Equal(t, "198.51.100.7", ClientIP(req))
}

func TestClientKeyIgnoresClaims(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	ctx := context.WithValue(req.Context(), claimsKey, &AccessTokenClaims{UserID: "u1"})
	assert.Equal(t, "ip:192.0.2.1", clientKey(req.WithContext(ctx)))
}
