package rollup

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Band is one threshold of a bucket: scores >= Min fall into Label.
type Band struct {
	Min   float64
	Label string
}

// Bucket derives a categorical value from a continuous score.
// NULL is checked before any threshold.
type Bucket struct {
	Score     string
	As        string
	NullLabel string
	// Bands are ordered from the highest threshold down.
	Bands     []Band
	Otherwise string
}

// CaseSQL renders the bucket as a CASE expression aliased to As.
func (b Bucket) CaseSQL() string {
	var sb strings.Builder
	sb.WriteString("CASE")
	fmt.Fprintf(&sb, " WHEN %s IS NULL THEN %s", b.Score, quote(b.NullLabel))
	for _, band := range b.Bands {
		fmt.Fprintf(&sb, " WHEN %s >= %s THEN %s", b.Score, strconv.FormatFloat(band.Min, 'f', -1, 64), quote(band.Label))
	}
	fmt.Fprintf(&sb, " ELSE %s END AS %s", quote(b.Otherwise), b.As)
	return sb.String()
}

// Classify applies the same rules as CaseSQL to a single score.
func (b Bucket) Classify(score *float64) string {
	if score == nil {
		return b.NullLabel
	}
	for _, band := range b.Bands {
		if *score >= band.Min {
			return band.Label
		}
	}
	return b.Otherwise
}

// Labels lists every value the bucket can produce, best band first.
func (b Bucket) Labels() []string {
	labels := lo.Map(b.Bands, func(band Band, _ int) string { return band.Label })
	return append(labels, b.Otherwise, b.NullLabel)
}

// quote renders a catalog constant as a SQL string literal. Caller input never reaches it.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
