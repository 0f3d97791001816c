package rollup

import "strings"

// Filter binds a declared dimension to a normalized value.
type Filter struct {
	Key   string
	Value string
}

// Resolve narrows raw caller input to the filters the spec can apply.
// Unknown keys, empty values and "All <Dimension>" sentinels are dropped.
// The result follows the spec's dimension order.
func Resolve(spec Spec, raw map[string]string) []Filter {
	var filters []Filter
	for _, d := range spec.Dimensions {
		v, ok := raw[d.Key]
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" || strings.EqualFold(v, d.FilterSentinel()) {
			continue
		}
		v = strings.ToLower(v)
		if d.Canonical != nil {
			v = d.Canonical(v)
		}
		filters = append(filters, Filter{Key: d.Key, Value: v})
	}
	return filters
}
