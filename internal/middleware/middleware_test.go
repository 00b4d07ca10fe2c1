package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/radiusdt/printworks-analytics/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := NewLogger("debug", format)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zap.DebugLevel))
	}

	logger, err := NewLogger("bogus", "json")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
}

func TestAuthMiddlewareGuardsAdminPaths(t *testing.T) {
	auth := NewAuthMiddleware(config.AuthConfig{
		Enabled:    true,
		MasterKey:  "secret",
		AdminPaths: []string{"/v1/admin/"},
	}, zap.NewNop())
	h := auth.Handler(okHandler)

	tests := []struct {
		name   string
		path   string
		key    string
		status int
	}{
		{name: "public path", path: "/v1/reports/traffic/daily", status: http.StatusOK},
		{name: "admin without key", path: "/v1/admin/events", status: http.StatusUnauthorized},
		{name: "admin wrong key", path: "/v1/admin/events", key: "nope", status: http.StatusUnauthorized},
		{name: "admin with key", path: "/v1/admin/events", key: "secret", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.key != "" {
				req.Header.Set(AuthHeaderName, tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestAuthMiddlewareQueryParamAndDisabled(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, MasterKey: "secret", AdminPaths: []string{"/v1/admin/"}}

	rec := httptest.NewRecorder()
	NewAuthMiddleware(cfg, zap.NewNop()).Handler(okHandler).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/admin/events?api_key=secret", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	cfg.Enabled = false
	rec = httptest.NewRecorder()
	NewAuthMiddleware(cfg, zap.NewNop()).Handler(okHandler).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/admin/events", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func signToken(t *testing.T, secret, subject string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestUserMiddleware(t *testing.T) {
	var seen string
	h := NewUserMiddleware("jwt-secret", zap.NewNop()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "no header", header: "", want: ""},
		{name: "valid token", header: "Bearer " + signToken(t, "jwt-secret", "user-42", time.Now().Add(time.Hour)), want: "user-42"},
		{name: "lowercase scheme", header: "bearer " + signToken(t, "jwt-secret", "user-7", time.Now().Add(time.Hour)), want: "user-7"},
		{name: "wrong secret", header: "Bearer " + signToken(t, "other", "user-42", time.Now().Add(time.Hour)), want: ""},
		{name: "expired", header: "Bearer " + signToken(t, "jwt-secret", "user-42", time.Now().Add(-time.Hour)), want: ""},
		{name: "no subject", header: "Bearer " + signToken(t, "jwt-secret", "", time.Now().Add(time.Hour)), want: ""},
		{name: "garbage", header: "Bearer not.a.jwt", want: ""},
		{name: "basic auth", header: "Basic dXNlcjpwYXNz", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = "unset"
			req := httptest.NewRequest(http.MethodGet, "/v1/dashboard/summary", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, seen)
		})
	}
}

func TestUserMiddlewareWithoutSecret(t *testing.T) {
	var seen string
	h := NewUserMiddleware("", zap.NewNop()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "x", "user-1", time.Now().Add(time.Hour)))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Empty(t, seen)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := NewRecoveryMiddleware(zap.NewNop()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimitMiddleware(config.RateLimitConfig{
		Enabled:    true,
		TrackRPS:   0.001,
		TrackBurst: 1,
		ReadRPS:    0.001,
		ReadBurst:  1,
	}, zap.NewNop())
	h := rl.Handler(okHandler)

	track := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/events/page_view", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, track("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, track("10.0.0.1"))
	assert.Equal(t, http.StatusOK, track("10.0.0.2"), "track limits are per client")
	assert.Equal(t, 2, rl.TrackedIPs())

	read := func() int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/reports/traffic/daily", nil))
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, read())
	assert.Equal(t, http.StatusTooManyRequests, read())

	rl.CleanupIPLimiters()
	assert.Zero(t, rl.TrackedIPs())
	assert.Equal(t, http.StatusOK, track("10.0.0.1"))
}

func TestClientIPWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	assert.Equal(t, "192.0.2.1", ClientIP(req), "headers are never trusted without a configured proxy")

	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", ClientIP(req))
}

func TestRealIPMiddleware(t *testing.T) {
	m, err := NewRealIPMiddleware([]string{"10.0.0.0/8", "192.0.2.10"}, zap.NewNop())
	require.NoError(t, err)

	var got string
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIP(r)
	}))

	tests := []struct {
		name   string
		remote string
		xff    string
		realIP string
		want   string
	}{
		{name: "untrusted peer ignores xff", remote: "198.51.100.9:1000", xff: "203.0.113.7", want: "198.51.100.9"},
		{name: "untrusted peer ignores x-real-ip", remote: "198.51.100.9:1000", realIP: "203.0.113.7", want: "198.51.100.9"},
		{name: "trusted peer uses xff", remote: "10.1.2.3:1000", xff: "203.0.113.7", want: "203.0.113.7"},
		{name: "spoofed leftmost hop skipped", remote: "10.1.2.3:1000", xff: "1.2.3.4, 203.0.113.7, 10.9.9.9", want: "203.0.113.7"},
		{name: "all hops trusted", remote: "192.0.2.10:1000", xff: "10.0.0.5, 10.0.0.6", want: "10.0.0.5"},
		{name: "trusted peer uses x-real-ip", remote: "192.0.2.10:1000", realIP: "203.0.113.8", want: "203.0.113.8"},
		{name: "garbage header falls back to peer", remote: "10.1.2.3:1000", xff: "not-an-ip", want: "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRealIPMiddlewareRejectsBadProxy(t *testing.T) {
	_, err := NewRealIPMiddleware([]string{"10.0.0.0/33"}, zap.NewNop())
	assert.Error(t, err)
	_, err = NewRealIPMiddleware([]string{"proxy.local"}, zap.NewNop())
	assert.Error(t, err)
}

func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	realIP, err := NewRealIPMiddleware(nil, zap.NewNop())
	require.NoError(t, err)
	rl := NewRateLimitMiddleware(config.RateLimitConfig{
		Enabled:    true,
		TrackRPS:   0.001,
		TrackBurst: 1,
		ReadRPS:    100,
		ReadBurst:  100,
	}, zap.NewNop())
	h := Chain(okHandler, realIP.Handler, rl.Handler)

	allowed := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/events/page_view", nil)
		req.RemoteAddr = "198.51.100.9:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed)
	assert.Equal(t, 1, rl.TrackedIPs())
}

func TestRateLimitCapsTrackedIPs(t *testing.T) {
	rl := NewRateLimitMiddleware(config.RateLimitConfig{
		Enabled:       true,
		TrackRPS:      0.001,
		TrackBurst:    1,
		ReadRPS:       100,
		ReadBurst:     100,
		MaxTrackedIPs: 3,
	}, zap.NewNop())
	h := rl.Handler(okHandler)

	codes := make([]int, 0, 10)
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/events/page_view", nil)
		req.RemoteAddr = fmt.Sprintf("198.51.100.%d:4000", i)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, 3, rl.TrackedIPs())
	// Three own limiters, then one shared overflow token.
	assert.Equal(t, []int{200, 200, 200, 200, 429, 429, 429, 429, 429, 429}, codes)
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/v1/events/{type}", routeLabel("/v1/events/page_view"))
	assert.Equal(t, "/v1/sessions/{id}/summary", routeLabel("/v1/sessions/abc/summary"))
	assert.Equal(t, "/v1/sessions/rotate", routeLabel("/v1/sessions/rotate"))
	assert.Equal(t, "other", routeLabel("/wp-login.php"))
}
