package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/stadvdb/olap-insights/internal/config"
	kafkax "github.com/stadvdb/olap-insights/internal/kafka"
	"github.com/stadvdb/olap-insights/internal/logger"
	"github.com/stadvdb/olap-insights/internal/metrics"
	"github.com/stadvdb/olap-insights/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg.Env, "olap-audit-worker", cfg.LogLevel)
	defer log.Sync()

	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required")
	}
	log.Info("audit worker starting", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.AuditTopic))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics.Serve(ctx, metrics.NewServer(cfg.MetricsPort), log)

	consumer := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.AuditGroup, cfg.AuditTopic)
	defer consumer.Close()
	dlq := kafkax.NewProducer(cfg.KafkaBrokers, cfg.AuditTopic+"-dlq")
	defer dlq.Close()

	a := worker.NewAuditor(log, consumer, dlq, cfg.MaxWorkerRoutineCount)
	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("audit worker failed", zap.Error(err))
	}
	log.Info("audit worker stopped")
}
