package rollup

func occupancySpec() Spec {
	return Spec{
		Key:  "occupancy-by-country",
		Path: "/api/occupancy-by-country",
		From: "monthly_airbnb m",
		Joins: []Join{
			{Kind: InnerJoin, Clause: "date d ON m.date_id = d.date_id"},
			{Kind: InnerJoin, Clause: "country c ON m.country_id = c.country_id"},
		},
		Dimensions: []Dimension{
			{Key: "country", Column: "country_name", Name: "Countries", Expr: "c.country_name"},
			{Key: "month", Column: "month", Name: "Months", Expr: "d.month", FilterExpr: "d.month::text", Canonical: TrimLeadingZeros, Format: FormatTwoDigit},
		},
		Measures: []Measure{{Key: "avg_occupancy", Agg: Avg, Expr: "m.occupancy", Precision: 2}},
	}
}

var testBand = Bucket{
	Score:     "a.rating_overall",
	As:        "rating_group",
	NullLabel: "Unrated",
	Bands: []Band{
		{Min: 4.5, Label: "Excellent (4.5–5.0)"},
		{Min: 4.0, Label: "Good (4.0–4.49)"},
		{Min: 3.0, Label: "Average (3.0–3.99)"},
	},
	Otherwise: "Low (<3.0)",
}

func ratingSpec() Spec {
	band := testBand
	return Spec{
		Key: "occupancy-by-rating",
		Projections: []Projection{{
			Name:    "rating_band",
			From:    "airbnb_listing a",
			Columns: []string{"a.listing_id", "a.country_id", "a.room_type"},
			Buckets: []Bucket{testBand},
		}},
		From: "monthly_airbnb m",
		Joins: []Join{
			{Kind: InnerJoin, Clause: "rating_band r ON m.listing_id = r.listing_id"},
			{Kind: InnerJoin, Clause: "country c ON m.country_id = c.country_id"},
		},
		Dimensions: []Dimension{
			{Key: "rating_group", Column: "rating_group", Name: "Rating Groups", Expr: "r.rating_group", Bucket: &band},
			{Key: "country", Column: "country_name", Name: "Countries", Expr: "c.country_name"},
			{Key: "room_type", Column: "room_type", Name: "Room Types", Expr: "r.room_type"},
		},
		Measures: []Measure{
			{Key: "avg_occupancy", Agg: Avg, Expr: "m.occupancy", Precision: 2},
			{Key: "listing_count", Agg: CountDistinct, Expr: "m.listing_id"},
		},
	}
}

func f64(v float64) *float64 { return &v }
