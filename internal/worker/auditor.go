package worker

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/stadvdb/olap-insights/internal/kafka"
	"github.com/stadvdb/olap-insights/internal/metrics"
)

type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

type Sink interface {
	Publish(ctx context.Context, key, value []byte) error
}

// Auditor consumes rollup audit events. Undecodable messages go to the DLQ.
type Auditor struct {
	log        *zap.Logger
	c          Source
	dlq        Sink
	maxWorkers int
	// retryDelay is the pause after a failed fetch, doubled up to maxRetryDelay.
	retryDelay time.Duration
}

const (
	defaultRetryDelay = 200 * time.Millisecond
	maxRetryDelay     = 5 * time.Second
)

func NewAuditor(log *zap.Logger, c Source, dlq Sink, maxWorkers int) *Auditor {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Auditor{log: log, c: c, dlq: dlq, maxWorkers: maxWorkers, retryDelay: defaultRetryDelay}
}

// Run blocks until ctx is done, then waits for in-flight messages. Messages
// already fetched are finished and committed even after ctx is cancelled.
func (a *Auditor) Run(ctx context.Context) error {
	sem := make(chan struct{}, a.maxWorkers)
	var wg sync.WaitGroup
	defer wg.Wait()

	work := context.WithoutCancel(ctx)
	delay := a.retryDelay
	for {
		m, err := a.c.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.log.Error("failed to read message", zap.Error(err), zap.Duration("retry_in", delay))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = min(delay*2, maxRetryDelay)
			continue
		}
		delay = a.retryDelay

		sem <- struct{}{}
		wg.Add(1)
		go func(m kafka.Message) {
			defer func() { <-sem; wg.Done() }()

			if err := a.handleMessage(m); err != nil {
				a.log.Warn("undecodable audit event", zap.Error(err), zap.Int64("offset", m.Offset))
				if err := a.dlq.Publish(work, m.Key, m.Value); err != nil {
					a.log.Error("dlq publish failed", zap.Error(err))
					return
				}
			}
			if err := a.c.Commit(work, m); err != nil {
				a.log.Error("commit failed", zap.Error(err))
			}
		}(m)
	}
}

func (a *Auditor) handleMessage(m kafka.Message) error {
	ev, err := kafkax.ParseAuditEvent(m.Value)
	if err != nil {
		metrics.AuditEventsTotal.WithLabelValues("unknown", "invalid").Inc()
		return err
	}
	metrics.AuditEventsTotal.WithLabelValues(ev.Spec, ev.Outcome).Inc()
	fields := []zap.Field{
		zap.String("spec", ev.Spec),
		zap.Any("filters", ev.Filters),
		zap.Int("rows", ev.Rows),
		zap.Int64("duration_ms", ev.DurationMS),
		zap.String("outcome", ev.Outcome),
	}
	if ev.Error != "" {
		fields = append(fields, zap.String("error", ev.Error))
	}
	a.log.Info("rollup audit", fields...)
	return nil
}
