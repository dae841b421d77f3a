package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"campus-events/config"
	"campus-events/internal/api/handler"
	"campus-events/internal/service"
	"campus-events/pkg/jwt"
	"campus-events/pkg/metrics"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Mode: "production", BodyLimit: 1 << 20},
		Auth: config.AuthConfig{
			JWTSecret:      "router-test-secret-0123456789",
			AccessTokenTTL: time.Hour,
		},
		RateLimit: config.RateLimitConfig{AuthLimit: 2, AuthWindow: time.Minute},
		Metrics:   config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// 只验证不会进入 Service 的路径，Service 全部留空
func setupRouter(ping func(context.Context) error) *gin.Engine {
	cfg := testConfig()
	return Setup(Options{
		Config:  cfg,
		Handler: handler.NewHandler(&service.Service{}),
		JWT:     jwt.NewManager(&cfg.Auth),
		Metrics: metrics.New(),
		DBPing:  ping,
		Logger:  zap.NewNop(),
	})
}

func do(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHealthAndReady(t *testing.T) {
	r := setupRouter(func(context.Context) error { return nil })
	assert.Equal(t, http.StatusOK, do(r, "GET", "/health").Code)

	w := do(r, "GET", "/ready")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"disabled"`)

	down := setupRouter(func(context.Context) error { return errors.New("connection refused") })
	w = do(down, "GET", "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"code":10006`)
	assert.Contains(t, w.Body.String(), "Database unavailable")
}

func TestMetricsEndpoint(t *testing.T) {
	r := setupRouter(nil)
	do(r, "GET", "/health")

	w := do(r, "GET", "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "campus_http_requests_total")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := setupRouter(nil)
	for _, route := range []struct{ method, path string }{
		{"GET", "/api/auth"},
		{"PUT", "/api/auth/password"},
		{"POST", "/api/auth/logout"},
		{"POST", "/api/events"},
		{"PUT", "/api/events/e1"},
		{"DELETE", "/api/events/e1"},
		{"POST", "/api/events/e1/register"},
		{"DELETE", "/api/events/e1/register"},
		{"GET", "/api/events/e1/registrations/export"},
		{"GET", "/api/users/me"},
		{"GET", "/api/users/events"},
		{"PUT", "/api/users/profile"},
		{"PUT", "/api/users/preferences"},
		{"GET", "/api/users"},
		{"DELETE", "/api/users/u1"},
		{"POST", "/api/admin/reconcile"},
	} {
		w := do(r, route.method, route.path)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", route.method, route.path)
		assert.True(t, strings.Contains(w.Body.String(), "No token, authorization denied"), "%s %s", route.method, route.path)
	}
}

func TestAuthRoutesRateLimited(t *testing.T) {
	r := setupRouter(nil)
	var last int
	for i := 0; i < 3; i++ {
		// 空请求体在 handler 内被拒绝（400），不会调用 Service
		last = do(r, "POST", "/api/auth/login").Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
