package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"aquasim-server/internal/auth"
	"aquasim-server/internal/shared/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func serve(h http.Handler, req *http.Request) int {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(secret, ok)

	req := httptest.NewRequest(http.MethodPost, "/api/truchas/reset", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(h, req))

	req.Header.Set("Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, serve(h, req))

	token, err := auth.GenerateToken(secret, "ops", time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusNoContent, serve(h, req))

	viewer := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Operator:         "viewer",
		Role:             "viewer",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "aquasim"},
	})
	signed, err := viewer.SignedString([]byte(secret))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+signed)
	assert.Equal(t, http.StatusForbidden, serve(h, req))
}

func TestRequireAdminWithoutSecret(t *testing.T) {
	token, err := auth.GenerateToken(secret, "ops", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/truchas/reset", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, serve(RequireAdmin("", ok), req))
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, BurstSize: 2})
	h := rl.Middleware(ok)

	req := httptest.NewRequest(http.MethodGet, "/api/truchas/latest", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	assert.Equal(t, http.StatusNoContent, serve(h, req))
	assert.Equal(t, http.StatusNoContent, serve(h, req))
	assert.Equal(t, http.StatusTooManyRequests, serve(h, req))

	other := httptest.NewRequest(http.MethodGet, "/api/truchas/latest", nil)
	other.RemoteAddr = "10.0.0.2:5000"
	assert.Equal(t, http.StatusNoContent, serve(h, other))

	rl.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.Equal(t, 2, rl.evictIdle())
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(context.Background(), config.RateLimitConfig{Enabled: false, BurstSize: 0})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusNoContent, serve(rl.Middleware(ok), req))
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	assert.Equal(t, "192.168.1.1", getClientIP(req, false))
	assert.Equal(t, "203.0.113.7", getClientIP(req, true))

	req.Header.Del("X-Forwarded-For")
	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", getClientIP(req, true))
}

func TestCORSWildcardDisablesCredentials(t *testing.T) {
	h := NewCORS(config.FrontendConfig{URL: "*"}).Middleware(ok)

	req := httptest.NewRequest(http.MethodGet, "/api/truchas/latest", nil)
	req.Header.Set("Origin", "https://dash.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSExplicitOrigins(t *testing.T) {
	h := NewCORS(config.FrontendConfig{URL: "https://a.example, https://b.example"}).Middleware(ok)

	req := httptest.NewRequest(http.MethodGet, "/api/truchas/latest", nil)
	req.Header.Set("Origin", "https://b.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://b.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
