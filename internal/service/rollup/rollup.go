package rollup

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	kafkax "github.com/stadvdb/olap-insights/internal/kafka"
	"github.com/stadvdb/olap-insights/internal/metrics"
	"github.com/stadvdb/olap-insights/internal/rollup"
)

// Publisher receives audit events. Publish must not wait on the brokers.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

type RollupService struct {
	log   *zap.Logger
	q     rollup.Querier
	audit Publisher
}

// NewRollupService wires the warehouse pool. audit may be nil.
func NewRollupService(log *zap.Logger, q rollup.Querier, audit Publisher) *RollupService {
	return &RollupService{log: log, q: q, audit: audit}
}

// Run resolves raw filter input against spec, compiles and executes the
// rollup. The query is detached from ctx cancellation: once dispatched it
// runs until it completes or hits the statement timeout.
func (s *RollupService) Run(ctx context.Context, spec rollup.Spec, raw map[string]string) ([]rollup.Row, error) {
	filters := rollup.Resolve(spec, raw)
	query, err := rollup.Compile(spec, filters)
	if err != nil {
		s.log.Error("rollup compile failed", zap.String("spec", spec.Key), zap.Error(err))
		return nil, err
	}

	start := time.Now()
	rows, err := rollup.Execute(context.WithoutCancel(ctx), s.q, query)
	elapsed := time.Since(start)
	metrics.RollupQueryDuration.WithLabelValues(spec.Key).Observe(elapsed.Seconds())

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RollupQueriesTotal.WithLabelValues(spec.Key, outcome).Inc()
	s.publish(spec.Key, filters, len(rows), elapsed, err)

	if err != nil {
		s.log.Error("rollup failed",
			zap.String("spec", spec.Key),
			zap.Int("filters", len(filters)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil, err
	}
	metrics.RollupRowsReturned.WithLabelValues(spec.Key).Observe(float64(len(rows)))
	s.log.Debug("rollup served",
		zap.String("spec", spec.Key),
		zap.Int("rows", len(rows)),
		zap.Int("pinned", query.Pinned),
		zap.Duration("elapsed", elapsed),
	)
	return rows, nil
}

func (s *RollupService) publish(spec string, filters []rollup.Filter, rows int, elapsed time.Duration, runErr error) {
	if s.audit == nil {
		return
	}
	ev := kafkax.AuditEvent{
		Type:       kafkax.AuditEventType,
		Spec:       spec,
		Rows:       rows,
		DurationMS: elapsed.Milliseconds(),
		Outcome:    "ok",
	}
	if len(filters) > 0 {
		ev.Filters = make(map[string]string, len(filters))
		for _, f := range filters {
			ev.Filters[f.Key] = f.Value
		}
	}
	if runErr != nil {
		ev.Outcome = "error"
		ev.Error = runErr.Error()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		s.log.Warn("audit marshal failed", zap.Error(err))
		return
	}
	if err := s.audit.Publish(context.Background(), []byte(spec), b); err != nil {
		s.log.Warn("audit publish failed", zap.String("spec", spec), zap.Error(err))
	}
}
