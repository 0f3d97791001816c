package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stadvdb/olap-insights/internal/catalog"
	"github.com/stadvdb/olap-insights/internal/config"
	"github.com/stadvdb/olap-insights/internal/rollup"
)

var occupancyColumns = []string{"grouping_id", "country_name", "month", "avg_occupancy"}

func setup(t *testing.T) (*gin.Engine, pgxmock.PgxPoolIface) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	r := gin.New()
	RegisterRoutes(r, zap.NewNop(), Deps{
		Config:    config.Config{CORSOrigin: "*", RateLimitRPS: 1000, RateLimitBurst: 1000},
		Catalog:   catalog.Default(),
		Warehouse: mock,
	})
	return r, mock
}

func get(r *gin.Engine, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func compile(t *testing.T, key string, filters ...rollup.Filter) rollup.Query {
	t.Helper()
	spec, ok := catalog.Default().Spec(key)
	require.True(t, ok)
	q, err := rollup.Compile(spec, filters)
	require.NoError(t, err)
	return q
}

func TestOccupancyByCountry_Philippines(t *testing.T) {
	r, mock := setup(t)
	q := compile(t, "occupancy-by-country", rollup.Filter{Key: "country", Value: "philippines"})

	rows := pgxmock.NewRows(occupancyColumns)
	for m := int16(1); m <= 12; m++ {
		rows.AddRow(int32(0), "Philippines", m, 80.22)
	}
	rows.AddRow(int32(1), "Philippines", nil, 80.22)
	mock.ExpectQuery(q.SQL).WithArgs("philippines").WillReturnRows(rows)

	w := get(r, "/api/occupancy-by-country?country=Philippines")
	require.Equal(t, http.StatusOK, w.Code)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body, 13)
	for _, row := range body {
		assert.Equal(t, "Philippines", row["country_name"])
	}
	assert.Equal(t, "01", body[0]["month"])
	assert.Equal(t, "ALL MONTHS", body[12]["month"])
	assert.Equal(t, 80.22, body[12]["avg_occupancy"])
	assert.NotContains(t, w.Body.String(), "ALL COUNTRIES")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOccupancyByCountry_SentinelMatchesOmitted(t *testing.T) {
	r, mock := setup(t)
	q := compile(t, "occupancy-by-country")

	for i := 0; i < 2; i++ {
		mock.ExpectQuery(q.SQL).WillReturnRows(pgxmock.NewRows(occupancyColumns).
			AddRow(int32(0), "Japan", int16(1), 70.5).
			AddRow(int32(1), "Japan", nil, 70.5).
			AddRow(int32(3), nil, nil, 70.5))
	}

	a := get(r, "/api/occupancy-by-country?country=All+Countries&month=All+Months")
	b := get(r, "/api/occupancy-by-country")
	require.Equal(t, http.StatusOK, a.Code)
	assert.JSONEq(t, b.Body.String(), a.Body.String())
	assert.JSONEq(t, `[
		{"country_name":"Japan","month":"01","avg_occupancy":70.5},
		{"country_name":"Japan","month":"ALL MONTHS","avg_occupancy":70.5},
		{"country_name":"ALL COUNTRIES","month":"ALL MONTHS","avg_occupancy":70.5}
	]`, a.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRollup_StoreFailureIs500(t *testing.T) {
	r, mock := setup(t)
	q := compile(t, "tourism-rollup")
	mock.ExpectQuery(q.SQL).WillReturnError(errors.New(`relation "tourism" does not exist`))

	w := get(r, "/api/tourism-rollup")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["error"], `relation "tourism" does not exist`)
}

func TestRollup_EmptyResultIsEmptyArray(t *testing.T) {
	r, mock := setup(t)
	q := compile(t, "occupancy-by-type", rollup.Filter{Key: "country", Value: "atlantis"})
	mock.ExpectQuery(q.SQL).WithArgs("atlantis").
		WillReturnRows(pgxmock.NewRows([]string{"grouping_id", "country_name", "listing_type", "avg_occupancy", "listing_count"}))

	w := get(r, "/api/occupancy-by-type?country=Atlantis")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestCatalogRoutes(t *testing.T) {
	r, mock := setup(t)

	w := get(r, "/api/catalog")
	require.Equal(t, http.StatusOK, w.Code)
	var cat struct {
		Rollups []struct {
			Key        string `json:"key"`
			Path       string `json:"path"`
			Dimensions []struct {
				Key            string `json:"key"`
				FilterSentinel string `json:"filter_sentinel"`
				TotalLabel     string `json:"total_label"`
			} `json:"dimensions"`
		} `json:"rollups"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cat))
	require.Len(t, cat.Rollups, 5)
	assert.Equal(t, "/api/occupancy-by-country", cat.Rollups[0].Path)
	assert.Equal(t, "All Countries", cat.Rollups[0].Dimensions[0].FilterSentinel)
	assert.Equal(t, "ALL COUNTRIES", cat.Rollups[0].Dimensions[0].TotalLabel)

	mock.ExpectQuery("SELECT DISTINCT listing_type FROM airbnb_listing WHERE listing_type IS NOT NULL ORDER BY listing_type").
		WillReturnRows(pgxmock.NewRows([]string{"listing_type"}).AddRow("Apartment").AddRow("Villa"))
	w = get(r, "/api/dimensions/listing_type/values")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"dimension":"listing_type","values":["All Types","Apartment","Villa"]}`, w.Body.String())

	w = get(r, "/api/dimensions/planet/values")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInfoAndHealth(t *testing.T) {
	r, _ := setup(t)

	w := get(r, "/v1/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = get(r, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/tourism-rollup")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = get(r, "/openapi.yaml")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/occupancy-by-country")

	w = get(r, "/docs")
	assert.Contains(t, w.Body.String(), "<title>OLAP Insights API</title>")
}
