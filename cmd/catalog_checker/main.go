package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/stadvdb/olap-insights/internal/catalog"
	"github.com/stadvdb/olap-insights/internal/config"
	"github.com/stadvdb/olap-insights/internal/logger"
	"github.com/stadvdb/olap-insights/internal/metrics"
	catalogService "github.com/stadvdb/olap-insights/internal/service/catalog"
	"github.com/stadvdb/olap-insights/internal/store"
	"github.com/stadvdb/olap-insights/internal/store/warehouse"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg.Env, "olap-catalog-checker", cfg.LogLevel)
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := store.NewDB(ctx, cfg.PostgresURL, store.PoolOptions{
		MaxConns:         int32(cfg.MaxDBConnections),
		StatementTimeout: cfg.QueryTimeout,
		ApplicationName:  "olap-catalog-checker",
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		log.Fatal("Warehouse unreachable", zap.Error(err))
	}

	metrics.Serve(ctx, metrics.NewServer(cfg.MetricsPort), log)

	repo := warehouse.NewWarehouseRepository(db.Pool, log)
	checker := catalogService.NewCatalogChecker(log, catalog.Default(), repo, cfg.MaxWorkerRoutineCount)

	log.Info("Running initial catalog check")
	if failed, err := checker.CheckAll(ctx); err != nil {
		log.Error("Initial check failed", zap.Int("failed_specs", failed), zap.Error(err))
	}

	checker.RunPeriodicCheck(ctx, cfg.CatalogCheckInterval)
	log.Info("Catalog checker stopped")
}
