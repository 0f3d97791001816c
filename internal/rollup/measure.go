package rollup

import "fmt"

type Aggregate string

const (
	Avg           Aggregate = "avg"
	Sum           Aggregate = "sum"
	CountDistinct Aggregate = "count_distinct"
)

// Measure is a named aggregate over a fact column.
type Measure struct {
	Key       string
	Agg       Aggregate
	Expr      string
	Precision int
}

// SQL renders the aggregate with its rounding. COUNT is integral already.
func (m Measure) SQL() (string, error) {
	if m.Precision < 0 || m.Precision > 2 {
		return "", fmt.Errorf("measure %s: precision %d out of range", m.Key, m.Precision)
	}
	switch m.Agg {
	case Avg:
		return fmt.Sprintf("ROUND(AVG(%s)::numeric, %d) AS %s", m.Expr, m.Precision, m.Key), nil
	case Sum:
		return fmt.Sprintf("ROUND(SUM(%s)::numeric, %d) AS %s", m.Expr, m.Precision, m.Key), nil
	case CountDistinct:
		return fmt.Sprintf("COUNT(DISTINCT %s) AS %s", m.Expr, m.Key), nil
	}
	return "", fmt.Errorf("measure %s: unknown aggregate %q", m.Key, m.Agg)
}
