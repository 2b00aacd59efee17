package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedRouter(level zapcore.Level, skip ...string) (*gin.Engine, *observer.ObservedLogs) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(level)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("request_id", "test-req-123")
		c.Next()
	})
	router.Use(GinMiddleware(zap.New(core), skip...))
	return router, recorded
}

func accessLog(t *testing.T, recorded *observer.ObservedLogs) observer.LoggedEntry {
	t.Helper()
	entries := recorded.FilterMessage("HTTP Request").All()
	require.Len(t, entries, 1)
	return entries[0]
}

func TestGinMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  zapcore.Level
	}{
		{"ok", http.StatusOK, zapcore.InfoLevel},
		{"accepted", http.StatusAccepted, zapcore.InfoLevel},
		{"client error", http.StatusBadRequest, zapcore.WarnLevel},
		{"server error", http.StatusInternalServerError, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, recorded := newObservedRouter(zapcore.DebugLevel)
			router.GET("/x", func(c *gin.Context) { c.Status(tt.status) })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.level, accessLog(t, recorded).Level)
		})
	}
}

func TestGinMiddleware_Fields(t *testing.T) {
	router, recorded := newObservedRouter(zapcore.InfoLevel)
	router.POST("/api/v1/sync", func(c *gin.Context) {
		c.JSON(http.StatusAccepted, gin.H{"id": "job"})
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync?async=true", nil)
	req.Header.Set("User-Agent", "Test-Agent/1.0")
	router.ServeHTTP(httptest.NewRecorder(), req)

	fields := accessLog(t, recorded).ContextMap()
	assert.Equal(t, "test-req-123", fields["request_id"])
	assert.Equal(t, http.MethodPost, fields["method"])
	assert.Equal(t, "/api/v1/sync", fields["path"])
	assert.Equal(t, "async=true", fields["query"])
	assert.Equal(t, "Test-Agent/1.0", fields["user_agent"])
	assert.EqualValues(t, http.StatusAccepted, fields["status"])
	assert.Contains(t, fields, "latency")
	assert.Contains(t, fields, "client_ip")
}

func TestGinMiddleware_PropagatesRequestContext(t *testing.T) {
	router, recorded := newObservedRouter(zapcore.InfoLevel)

	var requestID string
	router.GET("/x", func(c *gin.Context) {
		requestID = GetRequestID(c.Request.Context())
		L(c.Request.Context()).Info("inside handler")
		GetGinLogger(c).Info("via gin")
		c.Status(http.StatusOK)
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, "test-req-123", requestID)
	for _, msg := range []string{"inside handler", "via gin"} {
		entries := recorded.FilterMessage(msg).All()
		require.Len(t, entries, 1, msg)
		assert.Equal(t, "test-req-123", entries[0].ContextMap()["request_id"])
		assert.Equal(t, "/x", entries[0].ContextMap()["path"])
	}
}

func TestGinMiddleware_SkipPaths(t *testing.T) {
	router, recorded := newObservedRouter(zapcore.InfoLevel, "/stream")
	router.GET("/stream", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stream", nil))

	assert.Zero(t, recorded.FilterMessage("HTTP Request").Len())
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.ErrorLevel)

	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, 1, recorded.Len())
	assert.Equal(t, "Panic recovered", recorded.All()[0].Message)
	assert.Equal(t, "test panic", recorded.All()[0].ContextMap()["error"])
}

func TestGetGinLogger_NotSet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	l := GetGinLogger(c)
	require.NotNil(t, l)
	assert.NotPanics(t, func() { l.Info("test") })
}
