package catalog

import (
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/stadvdb/olap-insights/internal/rollup"
)

// RatingBand derives the rating group of a listing from its overall score.
var RatingBand = rollup.Bucket{
	Score:     "a.rating_overall",
	As:        "rating_group",
	NullLabel: "Unrated",
	Bands: []rollup.Band{
		{Min: 4.5, Label: "Excellent (4.5–5.0)"},
		{Min: 4.0, Label: "Good (4.0–4.49)"},
		{Min: 3.0, Label: "Average (3.0–3.99)"},
	},
	Otherwise: "Low (<3.0)",
}

func country() rollup.Dimension {
	return rollup.Dimension{
		Key:    "country",
		Column: "country_name",
		Name:   "Countries",
		Expr:   "c.country_name",
		Lookup: &rollup.Lookup{Table: "country", Column: "country_name"},
	}
}

func month() rollup.Dimension {
	return rollup.Dimension{
		Key:        "month",
		Column:     "month",
		Name:       "Months",
		Expr:       "d.month",
		FilterExpr: "d.month::text",
		Canonical:  rollup.TrimLeadingZeros,
		Format:     rollup.FormatTwoDigit,
		Lookup:     &rollup.Lookup{Table: "date", Column: "month"},
	}
}

// tourismYear groups by the tourism fact's own year so the values offered for
// filtering are exactly the years the rollups can return.
func tourismYear() rollup.Dimension {
	return rollup.Dimension{
		Key:        "year",
		Column:     "year",
		Name:       "Years",
		Expr:       "t.year",
		FilterExpr: "t.year::text",
		Canonical:  rollup.TrimLeadingZeros,
		Lookup:     &rollup.Lookup{Table: "tourism", Column: "year"},
	}
}

func listingType() rollup.Dimension {
	return rollup.Dimension{
		Key:    "listing_type",
		Column: "listing_type",
		Name:   "Types",
		Expr:   "a.listing_type",
		Lookup: &rollup.Lookup{Table: "airbnb_listing", Column: "listing_type"},
	}
}

func roomType() rollup.Dimension {
	return rollup.Dimension{
		Key:    "room_type",
		Column: "room_type",
		Name:   "Room Types",
		Expr:   "r.room_type",
		Lookup: &rollup.Lookup{Table: "airbnb_listing", Column: "room_type"},
	}
}

func ratingGroup() rollup.Dimension {
	band := RatingBand
	return rollup.Dimension{
		Key:    "rating_group",
		Column: "rating_group",
		Name:   "Rating Groups",
		Expr:   "r.rating_group",
		Bucket: &band,
	}
}

func avgOccupancy(expr string) rollup.Measure {
	return rollup.Measure{Key: "avg_occupancy", Agg: rollup.Avg, Expr: expr, Precision: 2}
}

var listingCount = rollup.Measure{Key: "listing_count", Agg: rollup.CountDistinct, Expr: "m.listing_id"}

var (
	joinDate    = rollup.Join{Kind: rollup.InnerJoin, Clause: "date d ON m.date_id = d.date_id"}
	joinCountry = rollup.Join{Kind: rollup.InnerJoin, Clause: "country c ON m.country_id = c.country_id"}
)

// Specs is the full set of rollups the service exposes.
func Specs() []rollup.Spec {
	return []rollup.Spec{
		{
			Key:        "occupancy-by-country",
			Path:       "/api/occupancy-by-country",
			Title:      "Average Occupancy by Country and Month",
			From:       "monthly_airbnb m",
			Joins:      []rollup.Join{joinDate, joinCountry},
			Dimensions: []rollup.Dimension{country(), month()},
			Measures:   []rollup.Measure{avgOccupancy("m.occupancy")},
		},
		{
			Key:   "occupancy-vs-arrivals",
			Path:  "/api/occupancy-vs-arrivals",
			Title: "Occupancy vs. Tourism Arrivals",
			Projections: []rollup.Projection{{
				Name:    "yearly_occupancy",
				From:    "monthly_airbnb m",
				Joins:   []rollup.Join{joinDate},
				Columns: []string{"m.country_id", "d.year", "ROUND(AVG(m.occupancy)::numeric, 2) AS avg_occupancy"},
				GroupBy: []string{"m.country_id", "d.year"},
			}},
			From: "tourism t",
			Joins: []rollup.Join{
				{Kind: rollup.InnerJoin, Clause: "country c ON t.country_id = c.country_id"},
				{Kind: rollup.LeftJoin, Clause: "yearly_occupancy y ON y.country_id = t.country_id AND y.year = t.year"},
			},
			Dimensions: []rollup.Dimension{country(), tourismYear()},
			Measures: []rollup.Measure{
				avgOccupancy("y.avg_occupancy"),
				{Key: "avg_arrivals", Agg: rollup.Avg, Expr: "t.total_arrivals", Precision: 0},
			},
		},
		{
			Key:   "occupancy-by-type",
			Path:  "/api/occupancy-by-type",
			Title: "Occupancy by Listing Type",
			From:  "monthly_airbnb m",
			Joins: []rollup.Join{
				{Kind: rollup.InnerJoin, Clause: "airbnb_listing a ON m.listing_id = a.listing_id"},
				joinCountry,
			},
			Dimensions: []rollup.Dimension{country(), listingType()},
			Measures:   []rollup.Measure{avgOccupancy("m.occupancy"), listingCount},
		},
		{
			Key:   "occupancy-by-rating",
			Path:  "/api/occupancy-by-rating",
			Title: "Occupancy by Rating Band",
			Projections: []rollup.Projection{{
				Name:    "rating_band",
				From:    "airbnb_listing a",
				Columns: []string{"a.listing_id", "a.country_id", "a.room_type"},
				Buckets: []rollup.Bucket{RatingBand},
			}},
			From: "monthly_airbnb m",
			Joins: []rollup.Join{
				{Kind: rollup.InnerJoin, Clause: "rating_band r ON m.listing_id = r.listing_id"},
				joinCountry,
			},
			Dimensions: []rollup.Dimension{ratingGroup(), country(), roomType()},
			Measures:   []rollup.Measure{avgOccupancy("m.occupancy"), listingCount},
		},
		{
			Key:        "tourism-rollup",
			Path:       "/api/tourism-rollup",
			Title:      "Tourism Trends",
			From:       "tourism t",
			Joins:      []rollup.Join{{Kind: rollup.InnerJoin, Clause: "country c ON t.country_id = c.country_id"}},
			Dimensions: []rollup.Dimension{country(), tourismYear()},
			Measures: []rollup.Measure{
				{Key: "total_arrivals", Agg: rollup.Sum, Expr: "t.total_arrivals", Precision: 0},
				{Key: "total_departures", Agg: rollup.Sum, Expr: "t.total_departures", Precision: 0},
				{Key: "avg_personal_arrivals", Agg: rollup.Avg, Expr: "t.arrivals_personal", Precision: 0},
				{Key: "avg_business_arrivals", Agg: rollup.Avg, Expr: "t.arrivals_business", Precision: 0},
			},
		},
	}
}

// Catalog indexes specs and the dimensions they declare.
type Catalog struct {
	specs      []rollup.Spec
	byKey      map[string]rollup.Spec
	dimensions map[string]rollup.Dimension
}

// New validates specs and indexes them. Keys and paths must be unique.
func New(specs []rollup.Spec) (*Catalog, error) {
	c := &Catalog{
		specs:      specs,
		byKey:      lo.KeyBy(specs, func(s rollup.Spec) string { return s.Key }),
		dimensions: map[string]rollup.Dimension{},
	}
	if len(c.byKey) != len(specs) {
		return nil, fmt.Errorf("catalog: duplicate spec key")
	}
	if paths := lo.Uniq(lo.Map(specs, func(s rollup.Spec, _ int) string { return s.Path })); len(paths) != len(specs) {
		return nil, fmt.Errorf("catalog: duplicate spec path")
	}
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		for _, d := range s.Dimensions {
			if _, seen := c.dimensions[d.Key]; !seen {
				c.dimensions[d.Key] = d
			}
		}
	}
	return c, nil
}

// Default returns the catalog built from Specs.
func Default() *Catalog {
	c, err := New(Specs())
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Specs() []rollup.Spec { return c.specs }

func (c *Catalog) Spec(key string) (rollup.Spec, bool) {
	s, ok := c.byKey[key]
	return s, ok
}

// Dimension returns the first declaration of a dimension key across specs.
func (c *Catalog) Dimension(key string) (rollup.Dimension, bool) {
	d, ok := c.dimensions[key]
	return d, ok
}

// DimensionKeys lists every dimension key, sorted.
func (c *Catalog) DimensionKeys() []string {
	keys := lo.Keys(c.dimensions)
	slices.Sort(keys)
	return keys
}
