package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/auth"
	"github.com/erp/ordersync/internal/infrastructure/config"
	"github.com/erp/ordersync/internal/infrastructure/event"
	"github.com/erp/ordersync/internal/interfaces/http/handler"
	"github.com/erp/ordersync/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v2"))

	group := NewRouteGroup("test", "/test")
	group.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	group.Group("nested", "/nested").
		Use(func(c *gin.Context) { c.Header("X-Nested", "1"); c.Next() }).
		POST("/echo", func(c *gin.Context) { c.String(http.StatusOK, "echo") })

	r.Register(group).Setup()

	assert.Equal(t, "test", group.Name())
	assert.Equal(t, "/test", group.Prefix())

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v2/test/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v2/test/nested/echo", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-Nested"))
}

type stubRunner struct{}

func (stubRunner) StartSync(context.Context, ordersync.StartSyncRequest) (*integration.SyncResult, error) {
	return integration.NewSyncResult(time.Now()), nil
}

func newTestAPI(t *testing.T, verifier middleware.TokenVerifier, log *zap.Logger) *gin.Engine {
	t.Helper()
	broker := event.NewProgressBroker(4, nil)
	t.Cleanup(broker.Close)

	engine, err := NewAPI(APIDeps{
		ServiceName: "ordersync",
		HTTP:        config.HTTPConfig{MaxBodySize: 1 << 20, TriggerPerMinute: 6, TriggerBurst: 1},
		Logger:      log,
		Verifier:    verifier,
		Sync:        handler.NewSyncHandler(stubRunner{}, nil, nil),
		Stream:      handler.NewSyncProgressSSEHandler(broker),
		System: handler.NewSystemHandler("ordersync", "test", map[string]handler.Pinger{
			"database": handler.PingFunc(func(context.Context) error { return errors.New("down") }),
		}),
	})
	require.NoError(t, err)
	return engine
}

func serve(engine http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(middleware.AuthHeaderKey, middleware.BearerPrefix+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestNewAPI_Routes(t *testing.T) {
	tokens, err := auth.NewTokenService(config.JWTConfig{Secret: "router-test-secret"})
	require.NoError(t, err)
	trigger, err := tokens.Issue("ops", []string{auth.ScopeSyncTrigger, auth.ScopeSyncRead}, time.Hour)
	require.NoError(t, err)
	reader, err := tokens.Issue("dashboard", []string{auth.ScopeSyncRead}, time.Hour)
	require.NoError(t, err)

	engine := newTestAPI(t, tokens, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{"ping is public", http.MethodGet, "/api/v1/system/ping", "", http.StatusOK},
		{"ready reports failing check", http.MethodGet, "/api/v1/system/ready", "", http.StatusServiceUnavailable},
		{"sync needs a token", http.MethodPost, "/api/v1/sync", "", http.StatusUnauthorized},
		{"sync needs trigger scope", http.MethodPost, "/api/v1/sync", reader, http.StatusForbidden},
		{"sync with trigger scope", http.MethodPost, "/api/v1/sync", trigger, http.StatusOK},
		{"jobs without scheduler", http.MethodGet, "/api/v1/sync/jobs", reader, http.StatusServiceUnavailable},
		{"jobs need a token", http.MethodGet, "/api/v1/sync/jobs", "", http.StatusUnauthorized},
		{"unknown route", http.MethodGet, "/api/v1/orders", trigger, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(engine, tt.method, tt.path, tt.token)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestNewAPI_TriggerRateLimited(t *testing.T) {
	tokens, err := auth.NewTokenService(config.JWTConfig{Secret: "router-test-secret"})
	require.NoError(t, err)
	trigger, err := tokens.Issue("ops", []string{auth.ScopeSyncTrigger}, time.Hour)
	require.NoError(t, err)

	engine := newTestAPI(t, tokens, nil)

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodPost, "/api/v1/sync", trigger).Code)
	w := serve(engine, http.MethodPost, "/api/v1/sync", trigger)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestNewAPI_WithoutVerifier(t *testing.T) {
	core, recorded := observer.New(zapcore.WarnLevel)
	engine := newTestAPI(t, nil, zap.New(core))

	assert.Equal(t, 1, recorded.FilterMessage("JWT secret not configured, sync API is served without authentication").Len())
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodPost, "/api/v1/sync", "").Code)
}

func TestNewAPI_RequiresHandlers(t *testing.T) {
	_, err := NewAPI(APIDeps{})
	assert.Error(t, err)
}
