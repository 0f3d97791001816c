package warehouse

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/stadvdb/olap-insights/internal/rollup"
)

type WarehouseRepository struct {
	q   rollup.Querier
	log *zap.Logger
}

func NewWarehouseRepository(q rollup.Querier, log *zap.Logger) *WarehouseRepository {
	return &WarehouseRepository{q: q, log: log}
}

// DimensionValues lists the filter options of a dimension: its sentinel
// first, then every distinct value rendered with the dimension's formatter.
// Derived dimensions answer from their bucket labels without a query.
func (r *WarehouseRepository) DimensionValues(ctx context.Context, d rollup.Dimension) ([]string, error) {
	values := []string{d.FilterSentinel()}
	if d.Bucket != nil {
		return append(values, d.Bucket.Labels()...), nil
	}
	if d.Lookup == nil {
		return nil, fmt.Errorf("dimension %s has no lookup", d.Key)
	}

	query, args, err := sq.Select("DISTINCT " + d.Lookup.Column).
		From(d.Lookup.Table).
		Where(sq.NotEq{d.Lookup.Column: nil}).
		OrderBy(d.Lookup.Column).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		if len(vals) != 1 {
			return nil, fmt.Errorf("dimension %s: expected 1 column, got %d", d.Key, len(vals))
		}
		var v string
		if d.Format != nil {
			v, err = d.Format(vals[0])
		} else {
			v, err = rollup.FormatText(vals[0])
		}
		if err != nil {
			return nil, fmt.Errorf("dimension %s: %w", d.Key, err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Explain asks the warehouse to plan a compiled rollup without running it.
// Missing tables or columns surface here as errors.
func (r *WarehouseRepository) Explain(ctx context.Context, q rollup.Query) error {
	rows, err := r.q.Query(ctx, "EXPLAIN "+q.SQL, q.Args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		r.log.Debug("explain failed", zap.String("spec", q.Spec.Key), zap.Error(err))
		return err
	}
	return nil
}
