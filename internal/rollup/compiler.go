package rollup

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/samber/lo"
)

const groupingColumn = "grouping_id"

// Query is a compiled rollup ready to run against the warehouse.
type Query struct {
	SQL  string
	Args []any
	Spec Spec
	// Pinned counts leading dimensions grouped outside ROLLUP because they
	// are filtered to a single value.
	Pinned int
}

// Compile builds the single-pass rollup query for spec restricted by filters.
//
// Every filter becomes LOWER(expr) = LOWER($n), numbered in filter order.
// The leading run of filtered dimensions is grouped plainly so no total row is
// emitted for a dimension that can only hold one value; the remaining
// dimensions form the ROLLUP and yield one subtotal level each plus a total.
func Compile(spec Spec, filters []Filter) (Query, error) {
	if err := spec.Validate(); err != nil {
		return Query{}, err
	}

	filtered := make(map[string]bool, len(filters))
	where := make([]sq.Sqlizer, 0, len(filters))
	for _, f := range filters {
		d, ok := spec.Dimension(f.Key)
		if !ok {
			return Query{}, fmt.Errorf("spec %s: filter on undeclared dimension %q", spec.Key, f.Key)
		}
		if filtered[f.Key] {
			return Query{}, fmt.Errorf("spec %s: dimension %q filtered twice", spec.Key, f.Key)
		}
		filtered[f.Key] = true
		where = append(where, sq.Expr(fmt.Sprintf("LOWER(%s) = LOWER(?)", d.filterExpr()), f.Value))
	}

	pinned := 0
	for pinned < len(spec.Dimensions) && filtered[spec.Dimensions[pinned].Key] {
		pinned++
	}

	exprs := lo.Map(spec.Dimensions, func(d Dimension, _ int) string { return d.Expr })
	columns := []string{fmt.Sprintf("GROUPING(%s) AS %s", strings.Join(exprs, ", "), groupingColumn)}
	for _, d := range spec.Dimensions {
		columns = append(columns, fmt.Sprintf("%s AS %s", d.Expr, d.Column))
	}
	for _, m := range spec.Measures {
		col, err := m.SQL()
		if err != nil {
			return Query{}, err
		}
		columns = append(columns, col)
	}

	groupBy := append([]string{}, exprs[:pinned]...)
	if pinned < len(exprs) {
		groupBy = append(groupBy, fmt.Sprintf("ROLLUP (%s)", strings.Join(exprs[pinned:], ", ")))
	}

	b := sq.Select(columns...).From(spec.From)
	if len(spec.Projections) > 0 {
		ctes, err := renderProjections(spec.Projections)
		if err != nil {
			return Query{}, fmt.Errorf("spec %s: %w", spec.Key, err)
		}
		b = b.Prefix("WITH " + ctes)
	}
	for _, j := range spec.Joins {
		b = b.JoinClause(string(j.Kind) + " " + j.Clause)
	}
	for _, w := range where {
		b = b.Where(w)
	}
	b = b.GroupBy(groupBy...).OrderBy(exprs...).PlaceholderFormat(sq.Dollar)

	sql, args, err := b.ToSql()
	if err != nil {
		return Query{}, fmt.Errorf("spec %s: %w", spec.Key, err)
	}
	return Query{SQL: sql, Args: args, Spec: spec, Pinned: pinned}, nil
}

func renderProjections(projections []Projection) (string, error) {
	ctes := make([]string, 0, len(projections))
	for _, p := range projections {
		cols := append([]string{}, p.Columns...)
		for _, b := range p.Buckets {
			cols = append(cols, b.CaseSQL())
		}
		pb := sq.Select(cols...).From(p.From)
		for _, j := range p.Joins {
			pb = pb.JoinClause(string(j.Kind) + " " + j.Clause)
		}
		if len(p.GroupBy) > 0 {
			pb = pb.GroupBy(p.GroupBy...)
		}
		sql, _, err := pb.ToSql()
		if err != nil {
			return "", fmt.Errorf("projection %s: %w", p.Name, err)
		}
		ctes = append(ctes, fmt.Sprintf("%s AS (%s)", p.Name, sql))
	}
	return strings.Join(ctes, ", "), nil
}
