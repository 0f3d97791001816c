package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/stadvdb/olap-insights/internal/catalog"
	"github.com/stadvdb/olap-insights/internal/metrics"
	"github.com/stadvdb/olap-insights/internal/rollup"
)

type Explainer interface {
	Explain(ctx context.Context, q rollup.Query) error
}

// CatalogChecker verifies every spec still plans against the warehouse.
type CatalogChecker struct {
	log         *zap.Logger
	catalog     *catalog.Catalog
	warehouse   Explainer
	concurrency int
}

func NewCatalogChecker(log *zap.Logger, catalog *catalog.Catalog, warehouse Explainer, concurrency int) *CatalogChecker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &CatalogChecker{log: log, catalog: catalog, warehouse: warehouse, concurrency: concurrency}
}

// CheckAll compiles each spec without filters and asks the warehouse to plan
// it. It returns the number of failing specs and their combined error.
func (s *CatalogChecker) CheckAll(ctx context.Context) (int, error) {
	metrics.CatalogCheckRunsTotal.Inc()
	specs := s.catalog.Specs()
	failed := make([]bool, len(specs))

	p := pool.New().WithMaxGoroutines(s.concurrency).WithErrors()
	for i, spec := range specs {
		i, spec := i, spec
		p.Go(func() error {
			err := s.check(ctx, spec)
			if err != nil {
				failed[i] = true
				metrics.CatalogCheckStatus.WithLabelValues(spec.Key).Set(0)
				s.log.Error("catalog check failed", zap.String("spec", spec.Key), zap.Error(err))
				return fmt.Errorf("%s: %w", spec.Key, err)
			}
			metrics.CatalogCheckStatus.WithLabelValues(spec.Key).Set(1)
			return nil
		})
	}
	err := p.Wait()

	n := 0
	for _, f := range failed {
		if f {
			n++
		}
	}
	if n == 0 {
		s.log.Info("catalog check passed", zap.Int("specs", len(specs)))
	}
	return n, err
}

func (s *CatalogChecker) check(ctx context.Context, spec rollup.Spec) error {
	q, err := rollup.Compile(spec, nil)
	if err != nil {
		return err
	}
	return s.warehouse.Explain(ctx, q)
}

// RunPeriodicCheck runs CheckAll every interval until ctx is done.
func (s *CatalogChecker) RunPeriodicCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("Starting periodic catalog checker", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Stopping periodic catalog checker")
			return
		case <-ticker.C:
			if _, err := s.CheckAll(ctx); err != nil {
				s.log.Error("Periodic check failed", zap.Error(err))
			}
		}
	}
}
