package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "olap_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "olap_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	RollupQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "olap_rollup_queries_total",
		Help: "Rollup query outcomes",
	}, []string{"spec", "outcome"})

	RollupQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "olap_rollup_query_duration_seconds",
		Help:    "Rollup round trip to the warehouse",
		Buckets: prometheus.DefBuckets,
	}, []string{"spec"})

	RollupRowsReturned = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "olap_rollup_rows_returned",
		Help:    "Rows returned per rollup",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"spec"})

	CatalogCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "olap_catalog_check_ok",
		Help: "1 if the spec planned successfully on the last check",
	}, []string{"spec"})

	CatalogCheckRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "olap_catalog_check_runs_total",
		Help: "Total catalog check runs",
	})

	AuditEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "olap_audit_events_total",
		Help: "Audit events consumed",
	}, []string{"spec", "outcome"})
)
