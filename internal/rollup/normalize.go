package rollup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/jackc/pgx/v5/pgtype"
)

// Level says whether a dimension holds a concrete value on a row or is
// totaled away.
type Level int

const (
	Detail Level = iota
	Subtotal
)

func (l Level) String() string {
	if l == Subtotal {
		return "subtotal"
	}
	return "detail"
}

// DecodeLevels turns a GROUPING(d1, ..., dn) bitmask into one level per
// dimension. The leftmost argument owns the most significant bit.
func DecodeLevels(mask int64, n int) []Level {
	levels := make([]Level, n)
	for i := 0; i < n; i++ {
		if mask&(1<<(n-1-i)) != 0 {
			levels[i] = Subtotal
		}
	}
	return levels
}

// Label is one dimension cell of a row. Null marks a detail row whose
// grouping value is NULL in the warehouse; it serializes as JSON null.
type Label struct {
	Column string
	Value  string
	Level  Level
	Null   bool
}

// Value is one measure cell. A nil Value means no facts, not zero.
type Value struct {
	Key   string
	Value *float64
}

// Row is a labeled rollup row. Dimensions and measures keep spec order.
type Row struct {
	Dimensions []Label
	Measures   []Value
}

// Label returns the rendered value of a dimension column. A NULL value
// renders as "".
func (r Row) Label(column string) (string, bool) {
	for _, l := range r.Dimensions {
		if l.Column == column {
			return l.Value, true
		}
	}
	return "", false
}

// Measure returns the value of a measure column.
func (r Row) Measure(key string) (*float64, bool) {
	for _, v := range r.Measures {
		if v.Key == key {
			return v.Value, true
		}
	}
	return nil, false
}

// IsGrandTotal reports whether every dimension is totaled.
func (r Row) IsGrandTotal() bool {
	for _, l := range r.Dimensions {
		if l.Level != Subtotal {
			return false
		}
	}
	return true
}

// MarshalJSON writes a flat object with dimensions first, then measures.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(key string, v any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
		return nil
	}
	for _, l := range r.Dimensions {
		var v any = l.Value
		if l.Null {
			v = nil
		}
		if err := write(l.Column, v); err != nil {
			return nil, err
		}
	}
	for _, m := range r.Measures {
		if err := write(m.Key, m.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Normalize decodes raw tuples laid out as
// [grouping_id, dimension values..., measure values...].
func Normalize(spec Spec, tuples [][]any) ([]Row, error) {
	rows := make([]Row, 0, len(tuples))
	for i, t := range tuples {
		row, err := normalizeTuple(spec, t)
		if err != nil {
			return nil, decodeError(fmt.Errorf("row %d: %w", i, err), spec.Key)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func normalizeTuple(spec Spec, t []any) (Row, error) {
	nd, nm := len(spec.Dimensions), len(spec.Measures)
	if len(t) != 1+nd+nm {
		return Row{}, fmt.Errorf("expected %d columns, got %d", 1+nd+nm, len(t))
	}
	mask, ok := toInt64(t[0])
	if !ok {
		return Row{}, fmt.Errorf("grouping indicator has type %T", t[0])
	}
	levels := DecodeLevels(mask, nd)

	row := Row{
		Dimensions: make([]Label, nd),
		Measures:   make([]Value, nm),
	}
	totaled := false
	for i, d := range spec.Dimensions {
		if levels[i] == Subtotal {
			totaled = true
			row.Dimensions[i] = Label{Column: d.Column, Value: d.TotalLabel(), Level: Subtotal}
			continue
		}
		if totaled {
			return Row{}, fmt.Errorf("dimension %s is concrete below a totaled dimension", d.Key)
		}
		if t[1+i] == nil {
			row.Dimensions[i] = Label{Column: d.Column, Level: Detail, Null: true}
			continue
		}
		v, err := d.format(t[1+i])
		if err != nil {
			return Row{}, fmt.Errorf("dimension %s: %w", d.Key, err)
		}
		row.Dimensions[i] = Label{Column: d.Column, Value: v, Level: Detail}
	}
	for i, m := range spec.Measures {
		v, err := measureValue(t[1+nd+i])
		if err != nil {
			return Row{}, fmt.Errorf("measure %s: %w", m.Key, err)
		}
		row.Measures[i] = Value{Key: m.Key, Value: v}
	}
	return row, nil
}

func measureValue(v any) (*float64, error) {
	var f float64
	switch x := v.(type) {
	case nil:
		return nil, nil
	case float64:
		f = x
	case float32:
		f = float64(x)
	case pgtype.Numeric:
		if !x.Valid {
			return nil, nil
		}
		f8, err := x.Float64Value()
		if err != nil {
			return nil, err
		}
		if !f8.Valid {
			return nil, nil
		}
		f = f8.Float64
	case string:
		p, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return nil, err
		}
		f = p
	default:
		n, ok := toInt64(v)
		if !ok {
			return nil, fmt.Errorf("unsupported measure value %T", v)
		}
		f = float64(n)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, nil
	}
	return &f, nil
}
