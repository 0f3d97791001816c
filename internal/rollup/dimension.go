package rollup

import (
	"fmt"
	"strconv"
	"strings"
)

// Formatter renders a non-NULL dimension value as returned by the warehouse.
// NULLs never reach it.
type Formatter func(v any) (string, error)

// Dimension is one grouping attribute of a rollup.
type Dimension struct {
	// Key identifies the dimension in filter input (query string).
	Key string
	// Column is the output field name on every row.
	Column string
	// Name is the plural display name, e.g. "Countries".
	Name string
	// Expr selects the value inside the rollup query.
	Expr string
	// FilterExpr is compared against filter values. Defaults to Expr.
	FilterExpr string
	// Canonical is applied to a filter value after lower-casing and trimming.
	Canonical func(string) string
	Format    Formatter
	// Bucket is set for dimensions derived from a continuous score.
	Bucket *Bucket
	// Lookup names where the distinct values of the dimension live.
	Lookup *Lookup
}

// Lookup points at the table holding the distinct values of a dimension.
type Lookup struct {
	Table  string
	Column string
}

// TotalLabel is the sentinel placed on rows where the dimension is totaled.
func (d Dimension) TotalLabel() string {
	return "ALL " + strings.ToUpper(d.Name)
}

// FilterSentinel is the filter value meaning "no filter on this dimension".
func (d Dimension) FilterSentinel() string {
	return "All " + d.Name
}

func (d Dimension) filterExpr() string {
	if d.FilterExpr != "" {
		return d.FilterExpr
	}
	return d.Expr
}

func (d Dimension) format(v any) (string, error) {
	if d.Format == nil {
		return FormatText(v)
	}
	return d.Format(v)
}

// FormatText renders strings as stored and numbers in decimal.
func FormatText(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	}
	if n, ok := toInt64(v); ok {
		return strconv.FormatInt(n, 10), nil
	}
	return "", fmt.Errorf("unsupported dimension value %T", v)
}

// FormatTwoDigit zero-pads integral values to two digits (months).
func FormatTwoDigit(v any) (string, error) {
	if s, ok := v.(string); ok {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return "", fmt.Errorf("month %q: %w", s, err)
		}
		return fmt.Sprintf("%02d", n), nil
	}
	n, ok := toInt64(v)
	if !ok {
		return "", fmt.Errorf("unsupported month value %T", v)
	}
	return fmt.Sprintf("%02d", n), nil
}

// TrimLeadingZeros canonicalizes numeric filter values so "03" matches 3.
func TrimLeadingZeros(s string) string {
	t := strings.TrimLeft(s, "0")
	if t == "" && s != "" {
		return "0"
	}
	return t
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case float64:
		if x == float64(int64(x)) {
			return int64(x), true
		}
	}
	return 0, false
}
