package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/cache"
	"github.com/erp/ordersync/internal/infrastructure/config"
	"github.com/erp/ordersync/internal/infrastructure/event"
	"github.com/erp/ordersync/internal/infrastructure/logger"
	"github.com/erp/ordersync/internal/infrastructure/marketplace"
	"github.com/erp/ordersync/internal/infrastructure/persistence"
	"github.com/erp/ordersync/internal/infrastructure/storage"
)

func main() {
	var (
		accountsFlag string
		ordersFlag   string
		timeout      time.Duration
		logLevel     string
	)
	flag.StringVar(&accountsFlag, "account", "", "Comma separated connected account ids (default: every enabled account)")
	flag.StringVar(&ordersFlag, "orders", "", "Comma separated order ids to sync instead of the date windows; needs exactly one -account")
	flag.DurationVar(&timeout, "timeout", 30*time.Minute, "Whole-run timeout")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	log, err := logger.New(&logger.Config{Level: logLevel, Format: "console", Output: "stderr", Service: "ordersync-cli"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	req, err := parseRequest(accountsFlag, ordersFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	result, err := run(req, timeout, log)
	if err != nil {
		log.Fatal("Sync failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)

	if result.Status() == integration.SyncStatusFailed {
		os.Exit(1)
	}
}

// parseRequest turns the flag values into a sync request
func parseRequest(accounts, orders string) (ordersync.StartSyncRequest, error) {
	var req ordersync.StartSyncRequest
	for _, raw := range splitList(accounts) {
		id, err := uuid.Parse(raw)
		if err != nil {
			return req, fmt.Errorf("invalid -account %q: %w", raw, err)
		}
		req.AccountIDs = append(req.AccountIDs, id)
	}

	orderIDs := splitList(orders)
	if len(orderIDs) == 0 {
		return req, nil
	}
	if len(req.AccountIDs) != 1 {
		return req, errors.New("-orders needs exactly one -account")
	}
	req.OrderIDsByAccount = map[uuid.UUID][]string{req.AccountIDs[0]: orderIDs}
	return req, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func run(req ordersync.StartSyncRequest, timeout time.Duration, log *zap.Logger) (*integration.SyncResult, error) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	db, err := persistence.NewDatabase(&cfg.Database, log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithFullSQL(cfg.Telemetry.DBLogFullSQL),
	)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	mpCfg := cfg.Marketplace.ClientConfig()
	client, err := marketplace.NewClient(mpCfg, log)
	if err != nil {
		return nil, err
	}
	refresher, err := marketplace.NewOAuthRefresher(mpCfg, log)
	if err != nil {
		return nil, err
	}

	opts := []ordersync.Option{
		ordersync.WithCredentialRefresher(refresher),
		ordersync.WithCostOfGoods(persistence.NewGormProductCostRepository(db.DB)),
		ordersync.WithProgressSink(event.NewLogProgressSink(log)),
	}
	if cfg.Redis.Enabled {
		// share the lease with running servers so the CLI never overlaps a scheduled run
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		defer rdb.Close()
		opts = append(opts, ordersync.WithSyncLease(cache.NewRedisSyncLease(rdb, "")))
	}
	if cfg.Sync.ArchiveRawPayloads {
		archive, err := storage.NewS3RawPayloadArchive(ctx, &cfg.Storage, storage.WithLogger(log))
		if err != nil {
			return nil, err
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
		return nil, err
	}

	log.Info("Starting sync",
		zap.Int("accounts", len(req.AccountIDs)),
		zap.Duration("timeout", timeout),
	)
	return orchestrator.StartSync(ctx, req)
}
