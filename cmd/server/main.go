package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/auth"
	"github.com/erp/ordersync/internal/infrastructure/cache"
	"github.com/erp/ordersync/internal/infrastructure/config"
	"github.com/erp/ordersync/internal/infrastructure/event"
	"github.com/erp/ordersync/internal/infrastructure/logger"
	"github.com/erp/ordersync/internal/infrastructure/marketplace"
	"github.com/erp/ordersync/internal/infrastructure/persistence"
	"github.com/erp/ordersync/internal/infrastructure/scheduler"
	"github.com/erp/ordersync/internal/infrastructure/storage"
	"github.com/erp/ordersync/internal/infrastructure/telemetry"
	"github.com/erp/ordersync/internal/interfaces/http/handler"
	"github.com/erp/ordersync/internal/interfaces/http/middleware"
	"github.com/erp/ordersync/internal/interfaces/http/router"
)

//	@title			Order Sync API
//	@version		1.0
//	@description	Marketplace order synchronization and freight reconciliation
//	@BasePath		/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	if err := run(cfg, log); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(1)
	}
	log.Info("Server exited gracefully")
}

func run(cfg *config.Config, baseLog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
	}
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telCfg, baseLog)
	if err != nil {
		return err
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telCfg, baseLog)
	if err != nil {
		return err
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telCfg, baseLog)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(baseLog, loggerProvider, meterProvider, tracerProvider)

	log := loggerProvider.Bridge(baseLog, logger.ParseLevel(cfg.Log.Level))
	log.Info("Starting order sync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	db, err := persistence.NewDatabase(&cfg.Database, log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithFullSQL(cfg.Telemetry.DBLogFullSQL),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log)
	if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
		return fmt.Errorf("register database tracing: %w", err)
	}
	log.Info("Database connected")

	poolMetrics, err := telemetry.RegisterDBPoolMetrics(meterProvider.Meter("ordersync.db"), db.Stats)
	if err != nil {
		return fmt.Errorf("register pool metrics: %w", err)
	}
	defer func() { _ = poolMetrics.Unregister() }()

	syncMetrics, err := telemetry.NewSyncMetrics(meterProvider.Meter("ordersync"))
	if err != nil {
		return err
	}

	mpCfg := cfg.Marketplace.ClientConfig()
	client, err := marketplace.NewClient(mpCfg, log, marketplace.WithRetryCounter(syncMetrics.Retries()))
	if err != nil {
		return err
	}
	refresher, err := marketplace.NewOAuthRefresher(mpCfg, log, marketplace.WithRetryCounter(syncMetrics.Retries()))
	if err != nil {
		return err
	}

	broker := event.NewProgressBroker(event.DefaultSubscriberBuffer, log)
	defer broker.Close()

	checks := map[string]handler.Pinger{"database": db}
	opts := []ordersync.Option{
		ordersync.WithCredentialRefresher(refresher),
		ordersync.WithCostOfGoods(persistence.NewGormProductCostRepository(db.DB)),
		ordersync.WithMetrics(syncMetrics),
		ordersync.WithTracer(tracerProvider.Tracer("ordersync")),
	}

	var progress integration.ProgressSink = broker
	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })

		// progress goes through redis so every replica's streams see every run
		progress = event.NewRedisProgressSink(rdb, event.DefaultProgressChannel)
		go relayProgress(ctx, rdb, broker, log)
		opts = append(opts, ordersync.WithSyncLease(cache.NewRedisSyncLease(rdb, "")))
	} else {
		opts = append(opts, ordersync.WithSyncLease(cache.NewInMemorySyncLease()))
	}
	opts = append(opts, ordersync.WithProgressSink(event.NewMultiSink(log, progress, event.NewLogProgressSink(log))))

	if cfg.Sync.ArchiveRawPayloads {
		archive, err := storage.NewS3RawPayloadArchive(ctx, &cfg.Storage, storage.WithLogger(log))
		if err != nil {
			return err
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			return err
		}
		opts = append(opts, ordersync.WithRawPayloadArchive(archive))
	}

	orchestrator, err := ordersync.NewOrchestrator(
		cfg.Sync.EngineConfig(),
		persistence.NewGormConnectedAccountRepository(db.DB),
		persistence.NewGormReconciledOrderRepository(db.DB),
		client,
		log.Named("ordersync"),
		opts...,
	)
	if err != nil {
		return err
	}

	syncScheduler, err := scheduler.NewSyncScheduler(scheduler.SyncSchedulerConfig{
		Enabled:       cfg.Scheduler.Enabled,
		Interval:      cfg.Scheduler.Interval,
		Workers:       cfg.Scheduler.Workers,
		QueueSize:     cfg.Scheduler.QueueSize,
		JobTimeout:    cfg.Scheduler.JobTimeout,
		RetryAttempts: cfg.Scheduler.RetryAttempts,
		RetryDelay:    cfg.Scheduler.RetryDelay,
		HistoryLimit:  cfg.Scheduler.HistoryLimit,
	}, orchestrator, log)
	if err != nil {
		return err
	}
	if err := syncScheduler.Start(ctx); err != nil {
		return err
	}

	var verifier middleware.TokenVerifier
	if cfg.JWT.Secret != "" {
		tokens, err := auth.NewTokenService(cfg.JWT)
		if err != nil {
			return err
		}
		verifier = tokens
	}

	engine, err := router.NewAPI(router.APIDeps{
		ServiceName:    cfg.Telemetry.ServiceName,
		HTTP:           cfg.HTTP,
		Logger:         log,
		Verifier:       verifier,
		Meter:          meterProvider.Meter("ordersync.http"),
		TracingEnabled: tracerProvider.IsEnabled(),
		Sync:           handler.NewSyncHandler(orchestrator, syncScheduler, log),
		Stream: handler.NewSyncProgressSSEHandler(broker,
			handler.WithSSELogger(log),
			handler.WithSSEHeartbeat(cfg.HTTP.SSEHeartbeat),
			handler.WithSSEMaxClients(cfg.HTTP.SSEMaxClients),
		),
		System: handler.NewSystemHandler(cfg.App.Name, version, checks),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// closing the broker first ends the open progress streams
	broker.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := syncScheduler.Stop(shutdownCtx); err != nil {
		log.Error("Sync scheduler did not stop cleanly", zap.Error(err))
	}
	return nil
}

// relayProgress forwards redis progress to the local broker until ctx ends
func relayProgress(ctx context.Context, rdb redis.UniversalClient, broker *event.ProgressBroker, log *zap.Logger) {
	relay := event.NewProgressRelay(rdb, event.DefaultProgressChannel, broker, log)
	if err := relay.Run(ctx); err != nil {
		log.Error("Progress relay stopped", zap.Error(err))
	}
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

func shutdownTelemetry(log *zap.Logger, providers ...shutdowner) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, p := range providers {
		if err := p.Shutdown(ctx); err != nil {
			log.Error("Telemetry shutdown failed", zap.Error(err))
		}
	}
}
