package router

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/infrastructure/auth"
	"github.com/erp/ordersync/internal/infrastructure/config"
	"github.com/erp/ordersync/internal/infrastructure/logger"
	"github.com/erp/ordersync/internal/interfaces/http/handler"
	"github.com/erp/ordersync/internal/interfaces/http/middleware"
)

// StreamPath is excluded from the access log; streams stay open for hours
const StreamPath = "/api/v1/sync/stream"

// APIDeps is everything the sync API needs
type APIDeps struct {
	ServiceName string
	HTTP        config.HTTPConfig
	Logger      *zap.Logger

	// Verifier enables bearer auth. When nil the API is served without
	// authentication, which is only meant for local development.
	Verifier middleware.TokenVerifier

	// Meter enables the HTTP request metrics when set
	Meter          metric.Meter
	TracingEnabled bool
	TracerProvider trace.TracerProvider

	Sync   *handler.SyncHandler
	Stream *handler.SyncProgressSSEHandler
	System *handler.SystemHandler
}

// NewAPI builds the gin engine serving the sync API
func NewAPI(deps APIDeps) (*gin.Engine, error) {
	if deps.Sync == nil || deps.Stream == nil || deps.System == nil {
		return nil, errors.New("router: sync, stream and system handlers are required")
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	middleware.SetupValidator()
	engine := gin.New()
	if err := engine.SetTrustedProxies(deps.HTTP.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName:    deps.ServiceName,
			Enabled:        deps.TracingEnabled,
			TracerProvider: deps.TracerProvider,
		}),
		logger.GinMiddleware(log, StreamPath),
		middleware.Secure(),
	)
	if deps.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(deps.HTTP.MaxBodySize))
	}
	if deps.Meter != nil {
		metricsMW, err := middleware.HTTPMetrics(deps.Meter)
		if err != nil {
			return nil, err
		}
		engine.Use(metricsMW)
	}

	system := NewRouteGroup("system", "/system").
		GET("/ping", deps.System.Ping).
		GET("/ready", deps.System.Ready)

	var requireTrigger, requireRead gin.HandlerFunc = passThrough, passThrough
	sync := NewRouteGroup("sync", "/sync")
	if deps.Verifier != nil {
		sync.Use(
			middleware.BearerAuth(middleware.BearerConfig{Verifier: deps.Verifier, Logger: log}),
			middleware.TraceAttributes(),
		)
		requireTrigger = middleware.RequireScope(auth.ScopeSyncTrigger)
		requireRead = middleware.RequireScope(auth.ScopeSyncRead)
	} else {
		log.Warn("JWT secret not configured, sync API is served without authentication")
	}

	var triggerLimit gin.HandlerFunc = passThrough
	if deps.HTTP.TriggerPerMinute > 0 {
		triggerLimit = middleware.NewRateLimiter(deps.HTTP.TriggerPerMinute, deps.HTTP.TriggerBurst, 10*time.Minute).Middleware()
	}
	sync.POST("", requireTrigger, triggerLimit, deps.Sync.StartSync).
		GET("/jobs", requireRead, deps.Sync.ListJobs).
		GET("/jobs/:id", requireRead, deps.Sync.GetJob).
		GET("/stream", requireRead, deps.Stream.Stream)

	NewRouter(engine).
		Register(system).
		Register(sync).
		Setup()

	return engine, nil
}

func passThrough(c *gin.Context) { c.Next() }
