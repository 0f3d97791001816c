package rollup

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
)

type JoinKind string

const (
	InnerJoin JoinKind = "JOIN"
	LeftJoin  JoinKind = "LEFT JOIN"
)

type Join struct {
	Kind JoinKind
	// Clause is "<table> <alias> ON <condition>".
	Clause string
}

// Projection is a named pre-aggregation step rendered as a CTE.
// Buckets are computed here so the rollup can group by them.
type Projection struct {
	Name    string
	From    string
	Joins   []Join
	Columns []string
	Buckets []Bucket
	GroupBy []string
}

// Spec describes one aggregate view: where facts come from, how they are
// grouped (outermost dimension first) and what is measured.
type Spec struct {
	Key         string
	Path        string
	Title       string
	Projections []Projection
	From        string
	Joins       []Join
	Dimensions  []Dimension
	Measures    []Measure
}

// Dimension returns the declared dimension with the given filter key.
func (s Spec) Dimension(key string) (Dimension, bool) {
	return lo.Find(s.Dimensions, func(d Dimension) bool { return d.Key == key })
}

// Validate checks that the spec can be compiled and decoded unambiguously.
func (s Spec) Validate() error {
	if s.Key == "" {
		return errors.New("spec key is required")
	}
	if s.From == "" {
		return fmt.Errorf("spec %s: from is required", s.Key)
	}
	if len(s.Dimensions) == 0 {
		return fmt.Errorf("spec %s: at least one dimension is required", s.Key)
	}
	// GROUPING() returns an int4 bitmask.
	if len(s.Dimensions) > 31 {
		return fmt.Errorf("spec %s: too many dimensions", s.Key)
	}
	if len(s.Measures) == 0 {
		return fmt.Errorf("spec %s: at least one measure is required", s.Key)
	}
	columns := map[string]bool{groupingColumn: true}
	for _, d := range s.Dimensions {
		if d.Key == "" || d.Column == "" || d.Expr == "" || d.Name == "" {
			return fmt.Errorf("spec %s: dimension %q is incomplete", s.Key, d.Key)
		}
		if columns[d.Column] {
			return fmt.Errorf("spec %s: duplicate column %q", s.Key, d.Column)
		}
		columns[d.Column] = true
	}
	for _, m := range s.Measures {
		if columns[m.Key] {
			return fmt.Errorf("spec %s: duplicate column %q", s.Key, m.Key)
		}
		columns[m.Key] = true
		if _, err := m.SQL(); err != nil {
			return fmt.Errorf("spec %s: %w", s.Key, err)
		}
	}
	return nil
}
