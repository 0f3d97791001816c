package rollup

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Querier is the part of a pgx pool the executor needs. A pooled connection
// is acquired by Query and released when the rows are closed.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Execute runs a compiled query and returns its normalized rows. Store
// failures are terminal; no partial result is ever returned.
func Execute(ctx context.Context, q Querier, query Query) ([]Row, error) {
	rows, err := q.Query(ctx, query.SQL, query.Args...)
	if err != nil {
		return nil, storeError(err, query.Spec.Key)
	}
	defer rows.Close()

	var tuples [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, storeError(err, query.Spec.Key)
		}
		tuples = append(tuples, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err, query.Spec.Key)
	}
	return Normalize(query.Spec, tuples)
}
