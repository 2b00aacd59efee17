package middleware

import (
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

	"github.com/erp/ordersync/internal/infrastructure/auth"
	"github.com/erp/ordersync/internal/infrastructure/config"
	"github.com/erp/ordersync/internal/interfaces/http/dto"
)

func newTokenService(t *testing.T) *auth.TokenService {
	t.Helper()
	svc, err := auth.NewTokenService(config.JWTConfig{Secret: "test-secret-with-enough-entropy", Issuer: "ordersync"})
	require.NoError(t, err)
	return svc
}

func newAuthRouter(svc *auth.TokenService, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), BearerAuth(BearerConfig{
		Verifier:  svc,
		SkipPaths: []string{"/api/v1/system/ping"},
		Logger:    log,
	}))
	r.GET("/api/v1/system/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/v1/sync", RequireScope(auth.ScopeSyncTrigger), func(c *gin.Context) {
		c.String(http.StatusOK, GetSubject(c))
	})
	r.GET("/api/v1/sync/jobs", RequireScope(auth.ScopeSyncRead), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestBearerAuth(t *testing.T) {
	svc := newTokenService(t)

	trigger, err := svc.Issue("ops-cron", []string{auth.ScopeSyncTrigger, auth.ScopeSyncRead}, time.Hour)
	require.NoError(t, err)
	readOnly, err := svc.Issue("dashboard", []string{auth.ScopeSyncRead}, time.Hour)
	require.NoError(t, err)
	expired, err := svc.Issue("ops-cron", []string{auth.ScopeSyncTrigger}, -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name       string
		method     string
		path       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"skip path needs no token", http.MethodGet, "/api/v1/system/ping", "", http.StatusOK, ""},
		{"missing header", http.MethodPost, "/api/v1/sync", "", http.StatusUnauthorized, dto.ErrCodeUnauthorized},
		{"wrong scheme", http.MethodPost, "/api/v1/sync", "Basic Zm9vOmJhcg==", http.StatusUnauthorized, dto.ErrCodeUnauthorized},
		{"empty bearer", http.MethodPost, "/api/v1/sync", "Bearer   ", http.StatusUnauthorized, dto.ErrCodeUnauthorized},
		{"garbage token", http.MethodPost, "/api/v1/sync", "Bearer not.a.jwt", http.StatusUnauthorized, dto.ErrCodeTokenInvalid},
		{"expired token", http.MethodPost, "/api/v1/sync", "Bearer " + expired, http.StatusUnauthorized, dto.ErrCodeTokenExpired},
		{"missing scope", http.MethodPost, "/api/v1/sync", "Bearer " + readOnly, http.StatusForbidden, dto.ErrCodeForbidden},
		{"read scope", http.MethodGet, "/api/v1/sync/jobs", "Bearer " + readOnly, http.StatusOK, ""},
		{"trigger scope", http.MethodPost, "/api/v1/sync", "Bearer " + trigger, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newAuthRouter(svc, nil)
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderKey, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantCode != "" {
				assert.Contains(t, w.Body.String(), tt.wantCode)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")
			}
		})
	}
}

func TestBearerAuth_SetsSubject(t *testing.T) {
	svc := newTokenService(t)
	token, err := svc.Issue("ops-cron", []string{auth.ScopeSyncTrigger}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+token)
	w := httptest.NewRecorder()
	newAuthRouter(svc, nil).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ops-cron", w.Body.String())
}

func TestBearerAuth_LogsFailures(t *testing.T) {
	core, recorded := observer.New(zapcore.WarnLevel)
	r := newAuthRouter(newTokenService(t), zap.New(core))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	r.ServeHTTP(httptest.NewRecorder(), req)

	entries := recorded.FilterMessage("Bearer authentication failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"])
}

func TestRequireScope_WithoutBearerAuth(t *testing.T) {
	r := gin.New()
	r.GET("/x", RequireScope(auth.ScopeSyncRead), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
