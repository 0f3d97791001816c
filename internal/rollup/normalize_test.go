package rollup

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLevels(t *testing.T) {
	assert.Equal(t, []Level{Detail, Detail}, DecodeLevels(0, 2))
	assert.Equal(t, []Level{Detail, Subtotal}, DecodeLevels(1, 2))
	assert.Equal(t, []Level{Subtotal, Subtotal}, DecodeLevels(3, 2))
	assert.Equal(t, []Level{Detail, Subtotal, Subtotal}, DecodeLevels(3, 3))
	assert.Equal(t, []Level{Subtotal, Subtotal, Subtotal}, DecodeLevels(7, 3))
}

func TestNormalize_Labels(t *testing.T) {
	tuples := [][]any{
		{int32(0), "Philippines", int16(1), 80.22},
		{int32(0), "Philippines", int16(2), nil},
		{int32(1), "Philippines", nil, 75.5},
		{int32(3), nil, nil, 75.5},
	}
	rows, err := Normalize(occupancySpec(), tuples)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	month, _ := rows[0].Label("month")
	assert.Equal(t, "01", month)
	occ, _ := rows[0].Measure("avg_occupancy")
	require.NotNil(t, occ)
	assert.Equal(t, 80.22, *occ)

	occ, ok := rows[1].Measure("avg_occupancy")
	assert.True(t, ok)
	assert.Nil(t, occ, "no facts must stay null")

	country, _ := rows[2].Label("country_name")
	month, _ = rows[2].Label("month")
	assert.Equal(t, "Philippines", country)
	assert.Equal(t, "ALL MONTHS", month)
	assert.False(t, rows[2].IsGrandTotal())

	country, _ = rows[3].Label("country_name")
	month, _ = rows[3].Label("month")
	assert.Equal(t, "ALL COUNTRIES", country)
	assert.Equal(t, "ALL MONTHS", month)
	assert.True(t, rows[3].IsGrandTotal())
}

func TestNormalize_EmptyResultIsNotAnError(t *testing.T) {
	rows, err := Normalize(occupancySpec(), nil)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	b, err := json.Marshal(rows)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(b))
}

func TestNormalize_MeasureTypes(t *testing.T) {
	spec := ratingSpec()
	numeric := pgtype.Numeric{Int: big.NewInt(8022), Exp: -2, Valid: true}
	rows, err := Normalize(spec, [][]any{
		{int32(0), "Good (4.0–4.49)", "Thailand", "Private room", numeric, int64(42)},
		{int32(7), nil, nil, nil, pgtype.Numeric{}, int64(0)},
	})
	require.NoError(t, err)

	occ, _ := rows[0].Measure("avg_occupancy")
	require.NotNil(t, occ)
	assert.InDelta(t, 80.22, *occ, 1e-9)
	count, _ := rows[0].Measure("listing_count")
	require.NotNil(t, count)
	assert.Equal(t, float64(42), *count)

	occ, _ = rows[1].Measure("avg_occupancy")
	assert.Nil(t, occ)
	label, _ := rows[1].Label("rating_group")
	assert.Equal(t, "ALL RATING GROUPS", label)
	label, _ = rows[1].Label("room_type")
	assert.Equal(t, "ALL ROOM TYPES", label)
}

func TestNormalize_Errors(t *testing.T) {
	tests := []struct {
		name  string
		tuple []any
		msg   string
	}{
		{name: "short tuple", tuple: []any{int32(0), "Japan"}, msg: "expected 4 columns"},
		{name: "bad indicator", tuple: []any{"0", "Japan", int16(1), 1.0}, msg: "grouping indicator"},
		{name: "concrete below total", tuple: []any{int32(2), nil, int16(1), 1.0}, msg: "concrete below a totaled dimension"},
		{name: "bad measure", tuple: []any{int32(0), "Japan", int16(1), true}, msg: "unsupported measure value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(occupancySpec(), [][]any{tt.tuple})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDecode))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestRow_MarshalJSON(t *testing.T) {
	row := Row{
		Dimensions: []Label{
			{Column: "country_name", Value: "Vietnam"},
			{Column: "month", Value: "ALL MONTHS", Level: Subtotal},
		},
		Measures: []Value{{Key: "avg_occupancy", Value: f64(61.5)}, {Key: "listing_count", Value: nil}},
	}
	b, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Equal(t, `{"country_name":"Vietnam","month":"ALL MONTHS","avg_occupancy":61.5,"listing_count":null}`, string(b))
}

type fact struct {
	country string
	month   int16
	value   float64
}

// simulateRollup produces what ROLLUP (country, month) returns for facts.
func simulateRollup(facts []fact) [][]any {
	type acc struct {
		sum float64
		n   int
	}
	var tuples [][]any
	for level := 2; level >= 0; level-- {
		groups := map[string]*acc{}
		keys := map[string][]any{}
		for _, f := range facts {
			parts := []any{f.country, f.month}[:level]
			k := fmt.Sprintf("%v", parts)
			if groups[k] == nil {
				groups[k] = &acc{}
				keys[k] = parts
			}
			groups[k].sum += f.value
			groups[k].n++
		}
		names := make([]string, 0, len(groups))
		for k := range groups {
			names = append(names, k)
		}
		sort.Strings(names)
		mask := int32((1 << (2 - level)) - 1)
		for _, k := range names {
			vals := append([]any{mask}, keys[k]...)
			for len(vals) < 3 {
				vals = append(vals, nil)
			}
			tuples = append(tuples, append(vals, groups[k].sum/float64(groups[k].n)))
		}
	}
	return tuples
}

func TestNormalize_RollupCardinalityAndMonotonicity(t *testing.T) {
	facts := []fact{
		{"Japan", 1, 70}, {"Japan", 1, 80}, {"Japan", 2, 60},
		{"Thailand", 1, 50}, {"Thailand", 3, 40}, {"Thailand", 4, 30},
		{"Vietnam", 12, 90},
	}
	rows, err := Normalize(occupancySpec(), simulateRollup(facts))
	require.NoError(t, err)

	// 6 distinct (country, month) + 3 country subtotals + 1 grand total.
	assert.Len(t, rows, 6+3+1)

	seen := map[string]int{}
	grand := 0
	for _, r := range rows {
		totaled := false
		for _, l := range r.Dimensions {
			isSentinel := strings.HasPrefix(l.Value, "ALL ")
			assert.Equal(t, l.Level == Subtotal, isSentinel)
			if totaled {
				assert.Equal(t, Subtotal, l.Level, "sentinels must nest")
			}
			totaled = totaled || l.Level == Subtotal
		}
		if r.IsGrandTotal() {
			grand++
		}
		c, _ := r.Label("country_name")
		m, _ := r.Label("month")
		seen[c+"/"+m]++
	}
	assert.Equal(t, 1, grand)
	for k, n := range seen {
		assert.Equal(t, 1, n, k)
	}
}

func TestNormalize_NullDetailValues(t *testing.T) {
	tests := []struct {
		name   string
		tuple  []any
		column string
		want   string
	}{
		{
			name:   "two digit formatter",
			tuple:  []any{int32(0), "Japan", nil, 1.0},
			column: "month",
			want:   `{"country_name":"Japan","month":null,"avg_occupancy":1}`,
		},
		{
			name:   "text formatter",
			tuple:  []any{int32(0), nil, int16(1), 1.0},
			column: "country_name",
			want:   `{"country_name":null,"month":"01","avg_occupancy":1}`,
		},
		{
			name:   "null detail under a subtotal",
			tuple:  []any{int32(1), nil, nil, 1.0},
			column: "country_name",
			want:   `{"country_name":null,"month":"ALL MONTHS","avg_occupancy":1}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := Normalize(occupancySpec(), [][]any{tt.tuple})
			require.NoError(t, err)
			require.Len(t, rows, 1)

			for _, l := range rows[0].Dimensions {
				if l.Column == tt.column {
					assert.True(t, l.Null)
					assert.Equal(t, Detail, l.Level)
				}
			}
			b, err := json.Marshal(rows[0])
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))
		})
	}
}

func TestNormalize_EmptyStringIsNotNull(t *testing.T) {
	rows, err := Normalize(occupancySpec(), [][]any{{int32(0), "", int16(2), 1.0}})
	require.NoError(t, err)
	assert.False(t, rows[0].Dimensions[0].Null)

	b, err := json.Marshal(rows[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"country_name":"","month":"02","avg_occupancy":1}`, string(b))
}
