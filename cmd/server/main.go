package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/stadvdb/olap-insights/internal/api"
	"github.com/stadvdb/olap-insights/internal/catalog"
	"github.com/stadvdb/olap-insights/internal/config"
	kafkax "github.com/stadvdb/olap-insights/internal/kafka"
	"github.com/stadvdb/olap-insights/internal/logger"
	"github.com/stadvdb/olap-insights/internal/middleware"
	redisx "github.com/stadvdb/olap-insights/internal/redis"
	"github.com/stadvdb/olap-insights/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.Env, "olap-server", cfg.LogLevel)
	defer log.Sync()

	cat, err := catalog.New(catalog.Specs())
	if err != nil {
		log.Fatal("invalid rollup catalog", zap.Error(err))
	}

	db, err := store.NewDB(context.Background(), cfg.PostgresURL, store.PoolOptions{
		MaxConns:         int32(cfg.MaxDBConnections),
		StatementTimeout: cfg.QueryTimeout,
		ApplicationName:  "olap-server",
	})
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := db.Ping(context.Background()); err != nil {
		log.Warn("warehouse not reachable, rollups will fail until it is", zap.Error(err))
	}

	rdb, err := redisx.NewClient(context.Background(), cfg.RedisAddr)
	if err != nil {
		log.Warn("redis unavailable, using in-memory rate limit", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	deps := api.Deps{Config: cfg, Catalog: cat, Warehouse: db.Pool, Redis: rdb}
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafkax.NewAsyncProducer(cfg.KafkaBrokers, cfg.AuditTopic, func(err error) {
			log.Warn("audit delivery failed", zap.Error(err))
		})
		defer producer.Close()
		deps.Audit = producer
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))

	api.RegisterRoutes(r, log, deps)

	// metrics endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   cfg.QueryTimeout + 10*time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Info("server starting", zap.Int("port", cfg.HTTPPort), zap.Int("rollups", len(cat.Specs())))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}
	log.Info("server exited")
}
